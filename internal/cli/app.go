package cli

import (
	"context"
	"fmt"

	"accounting/internal/amqp"
	"accounting/internal/config"
	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/services"
	"accounting/internal/sheets/google"
	"accounting/internal/sheets/xlsx"
	"accounting/internal/storage"
)

// App is an opened ledger with its optional sinks.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Store  *xlsx.Store
	Ledger *services.LedgerService
	Audit  *storage.AuditRepository
	Broker *amqp.Client
}

// OpenApp initializes the ledger file when needed, opens it and connects the
// configured sinks. Only a ledger that cannot be initialized or opened is
// fatal; an unreachable sink is logged and left out.
func OpenApp(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if err := xlsx.Initialize(cfg.LedgerFile); err != nil {
		return nil, fmt.Errorf("initialize ledger: %w", err)
	}
	store, err := xlsx.Open(cfg.LedgerFile, xlsx.Options{
		StrictHeader:    cfg.LedgerStrictHeader,
		BackupOnReplace: cfg.LedgerHeaderBackup,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	app := &App{Config: cfg, Logger: logger, Store: store}
	opts := []services.Option{
		services.WithLogger(logger),
		services.WithCloser(store.Close),
	}

	if cfg.AuditEnabled() {
		repo, err := storage.NewAuditRepository(cfg.AuditDBPath)
		if err != nil {
			logger.WarnContext(ctx, "audit journal unavailable", log.FieldPath, cfg.AuditDBPath, log.FieldError, err)
		} else {
			app.Audit = repo
			opts = append(opts,
				services.WithSink("audit", services.SinkFunc(repo.Record)),
				services.WithCloser(repo.Close))
		}
	}

	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.WarnContext(ctx, "message broker unavailable", log.FieldError, err)
		} else {
			app.Broker = client
			opts = append(opts,
				services.WithSink("amqp", services.SinkFunc(client.PublishChange)),
				services.WithCloser(client.Close))
		}
	}

	app.Ledger = services.NewLedgerService(store, opts...)
	return app, nil
}

// Close releases the ledger and every sink.
func (a *App) Close() error {
	return a.Ledger.Close()
}

// NewExporter connects to the configured Google spreadsheet.
func NewExporter(ctx context.Context, cfg *config.Config) (*google.Client, error) {
	return google.New(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
}

// ReadLedger opens the ledger file read-only for one listing. The sync
// worker uses it so that it never holds the workbook between cycles.
func ReadLedger(cfg *config.Config, logger *log.Logger) services.SnapshotFunc {
	return func(ctx context.Context) ([]core.Entry, error) {
		store, err := xlsx.Open(cfg.LedgerFile, xlsx.Options{StrictHeader: true, Logger: logger})
		if err != nil {
			return nil, err
		}
		defer store.Close()
		listing, err := store.List()
		if err != nil {
			return nil, err
		}
		return listing.Entries(), nil
	}
}
