// Package database opens and migrates the invoice store. A single sqlite
// file holds the series counters, the invoice rows with their signed XML,
// and the submission audit trail.
package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps the sql pool for the invoice store
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// New opens the invoice store. WAL keeps chain reads from blocking
// submission writes; immediate transactions take the write lock up front so
// a series counter update never deadlocks mid-transaction; foreign keys
// back the invoice-submission reference.
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	params.Set("_foreign_keys", "on")
	dsn := fmt.Sprintf("file:%s?%s", cfg.Path, params.Encode())

	pool, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open invoice store: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping invoice store: %w", err)
	}

	logger.Info("Invoice store opened", zap.String("path", cfg.Path))
	return &DB{DB: pool, logger: logger}, nil
}

// WithTransaction runs fn in a transaction, rolling back on error or panic
func (db *DB) WithTransaction(fn func(*sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Close closes the invoice store
func (db *DB) Close() error {
	db.logger.Info("Closing invoice store")
	return db.DB.Close()
}
