package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/service"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/assembler"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/config"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/export"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/infrastructure/gateway/zatca"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/infrastructure/persistence/repository"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/infrastructure/persistence/sqlite"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/infrastructure/signing"
	httpserver "github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/interfaces/http"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/sequencer"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/pkg/database"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/pkg/utils"
)

func main() {
	// Local overrides for development; missing file is fine
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting e-invoicing compliance service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Repositories and transaction manager share the same connection pool
	txManager := sqlite.NewDB(db.DB, logger)
	seriesRepo := repository.NewSeriesRepository(db.DB, logger)
	invoiceRepo := repository.NewInvoiceRepository(db.DB, logger)
	unitRepo := repository.NewUnitRepository(db.DB, logger)
	submissionRepo := repository.NewSubmissionRepository(db.DB, logger)

	// External adapters
	signer := signing.NewTool(signing.Config{
		ToolPath: cfg.Signing.ToolPath,
		Timeout:  cfg.Signing.Timeout,
	}, logger)

	gateway := zatca.NewClient(zatca.Config{
		BaseURL: cfg.Authority.BaseURL,
		Timeout: cfg.Authority.APITimeout,
	}, logger)

	// Core pipeline
	seq := sequencer.New(txManager, seriesRepo, invoiceRepo, nil, logger)
	asm := assembler.New(nil)

	kvLogger := &zapLoggerAdapter{logger: logger}

	invoicingService := service.NewInvoicingService(seq, asm, signer, unitRepo, invoiceRepo, txManager, nil, kvLogger)
	onboardingService := service.NewOnboardingService(unitRepo, invoiceRepo, submissionRepo, signer, gateway, nil, kvLogger)
	submissionService := service.NewSubmissionService(invoiceRepo, unitRepo, submissionRepo, gateway, nil, kvLogger)

	registerWriter := export.NewRegisterWriter(logger)

	server := httpserver.NewServer(
		httpserver.ServerConfig{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		invoicingService,
		onboardingService,
		submissionService,
		registerWriter,
		kvLogger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server error", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces
// used by the application and interface layers
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
