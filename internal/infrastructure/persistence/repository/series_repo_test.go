package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "series_test.db")
	db, err := sql.Open("sqlite3",
		fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE invoice_series (
			series_key TEXT PRIMARY KEY,
			last_sequence INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	require.NoError(t, err)

	return db
}

func TestSeriesRepository_NextSequence(t *testing.T) {
	repo := NewSeriesRepository(newTestDB(t), zap.NewNop())
	ctx := context.Background()

	first, err := repo.NextSequence(ctx, "EGS1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	second, err := repo.NextSequence(ctx, "EGS1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)

	// Series are independent counters
	other, err := repo.NextSequence(ctx, "EGS2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	series, err := repo.Get(ctx, "EGS1")
	require.NoError(t, err)
	require.NotNil(t, series)
	assert.Equal(t, int64(2), series.LastSequence)
}

func TestSeriesRepository_NextSequence_ConcurrentCallersGetDistinctNumbers(t *testing.T) {
	repo := NewSeriesRepository(newTestDB(t), zap.NewNop())

	const callers = 32
	results := make(chan int64, callers)
	errs := make(chan error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq, err := repo.NextSequence(context.Background(), "EGS1")
			if err != nil {
				errs <- err
				return
			}
			results <- seq
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		t.Fatalf("NextSequence() error = %v", err)
	}

	seen := make(map[int64]bool, callers)
	for seq := range results {
		if seen[seq] {
			t.Fatalf("sequence %d returned to two concurrent callers", seq)
		}
		seen[seq] = true
	}
	require.Len(t, seen, callers)

	// Exactly 1..callers was handed out
	for seq := int64(1); seq <= callers; seq++ {
		assert.True(t, seen[seq], "sequence %d was never allocated", seq)
	}

	series, err := repo.Get(context.Background(), "EGS1")
	require.NoError(t, err)
	require.NotNil(t, series)
	assert.Equal(t, int64(callers), series.LastSequence)
}

func TestSeriesRepository_Get_Missing(t *testing.T) {
	repo := NewSeriesRepository(newTestDB(t), zap.NewNop())

	series, err := repo.Get(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.Nil(t, series)
}
