package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/odyssey-erp/odyssey-sales/internal/integrations/erpnext"
	"github.com/odyssey-erp/odyssey-sales/internal/platform/db"
	"github.com/odyssey-erp/odyssey-sales/internal/platform/migrate"
	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/mongostore"
)

// Backend is the document store selected by STORE_BACKEND together with the
// catalog price source, when one is configured.
type Backend struct {
	Store   sales.DocumentStore
	Lister  sales.DocumentLister
	Catalog sales.CatalogPricer
	Checks  []HealthCheck
	closers []func()
}

// Close releases connections in reverse order of opening.
func (b *Backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// OpenBackend connects the configured document store. ERPNext doubles as the
// catalog source whenever ERPNEXT_URL is set, whichever store is selected.
func OpenBackend(ctx context.Context, cfg *Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.MigrateOnStart {
			if err := migrate.Up(cfg.PGDSN, logger); err != nil {
				return nil, err
			}
		}
		pool, err := db.New(ctx, db.Config{DSN: cfg.PGDSN, MaxConns: cfg.PGMaxConns})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		repo := sales.NewRepository(pool)
		b.Store, b.Lister = repo, repo
		b.Checks = append(b.Checks, HealthCheck{Name: "postgres", Check: pool.Ping})

	case BackendMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect", slog.Any("error", err))
			}
		})
		store := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := store.EnsureIndexes(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.Store, b.Lister = store, store
		b.Checks = append(b.Checks, HealthCheck{Name: "mongo", Check: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		}})

	case BackendERPNext:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.StoreBackend == BackendERPNext || cfg.ERPNextURL != "" {
		client, err := erpnext.NewClient(erpnext.Config{
			BaseURL:   cfg.ERPNextURL,
			APIKey:    cfg.ERPNextAPIKey,
			APISecret: cfg.ERPNextAPISecret,
			PriceList: cfg.ERPNextPriceList,
			Timeout:   cfg.ERPNextTimeout,
		}, logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		site := erpnext.NewStore(client)
		if cfg.StoreBackend == BackendERPNext {
			b.Store, b.Lister = site, site
		}
		b.Catalog = site
		b.Checks = append(b.Checks, HealthCheck{Name: "erpnext", Check: client.Ping})
	}

	logger.Info("document store ready",
		slog.String("backend", cfg.StoreBackend),
		slog.Bool("catalog", b.Catalog != nil),
	)
	return b, nil
}
