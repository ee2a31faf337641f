package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/sitebooks/sitebooks/internal/accounting"
	"github.com/sitebooks/sitebooks/internal/assist"
	"github.com/sitebooks/sitebooks/internal/inventory"
	"github.com/sitebooks/sitebooks/internal/observability"
	"github.com/sitebooks/sitebooks/internal/platform/cache"
	"github.com/sitebooks/sitebooks/internal/platform/db"
	"github.com/sitebooks/sitebooks/internal/procurement"
	"github.com/sitebooks/sitebooks/internal/shared"
	"github.com/sitebooks/sitebooks/internal/store/memory"
)

// LockPrefix namespaces Redis lock keys.
const LockPrefix = "sitebooks:"

// Container holds the services shared by the binaries.
type Container struct {
	Config  *Config
	Logger  *slog.Logger
	Metrics *observability.Metrics

	Accounting  *accounting.Service
	Inventory   *inventory.Service
	Procurement *procurement.Service
	Assist      *assist.Service

	Pool  *pgxpool.Pool
	Redis *redis.Client

	closers []func()
}

type auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type repositories struct {
	accounting  accounting.RepositoryPort
	inventory   inventory.RepositoryPort
	procurement procurement.RepositoryPort
	audit       auditor
}

// NewContainer connects the configured storage driver and wires services.
func NewContainer(ctx context.Context, cfg *Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	repos, err := c.openStorage(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	c.Accounting = accounting.NewService(repos.accounting, repos.audit)
	c.Inventory = inventory.NewService(repos.inventory, repos.audit, inventory.ServiceConfig{
		Defaults: inventory.Defaults{Category: cfg.InventoryDefaultCategory, Unit: cfg.InventoryDefaultUnit},
	})
	c.Procurement = procurement.NewService(repos.procurement, repos.audit, procurement.Config{
		Codes:    accounting.ControlCodes{Inventory: cfg.AccountInventoryCode, Payable: cfg.AccountPayableCode},
		Defaults: inventory.Defaults{Category: cfg.InventoryDefaultCategory, Unit: cfg.InventoryDefaultUnit},
	})
	c.Procurement.WithObserver(c.Metrics)

	if cfg.RedisLocks {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Redis = client
		c.closers = append(c.closers, func() {
			if err := client.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		})
		c.Procurement.WithLocker(cache.NewLocker(client, LockPrefix))
	}

	var gen assist.Generator
	if cfg.AssistEnabled() {
		gen = assist.NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	c.Assist = assist.NewService(gen, c.Procurement)

	if cfg.SeedChart {
		if err := c.SeedChart(ctx, ""); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) openStorage(ctx context.Context) (repositories, error) {
	switch c.Config.StorageDriver {
	case StorageMemory:
		store := memory.New()
		if c.Config.StorageFile != "" {
			var err error
			store, err = memory.Open(c.Config.StorageFile)
			if err != nil {
				return repositories{}, err
			}
		}
		c.Logger.Info("using local storage", slog.String("file", c.Config.StorageFile))
		return repositories{
			accounting:  store.Accounting(),
			inventory:   store.Inventory(),
			procurement: store.Procurement(),
			audit:       shared.NewSlogAuditor(c.Logger),
		}, nil
	default:
		pool, err := db.New(ctx, c.Config.PGDSN)
		if err != nil {
			return repositories{}, err
		}
		c.Pool = pool
		c.closers = append(c.closers, pool.Close)
		return repositories{
			accounting:  accounting.NewRepository(pool),
			inventory:   inventory.NewRepository(pool),
			procurement: procurement.NewRepository(pool),
			audit:       shared.NewAuditLogger(pool),
		}, nil
	}
}

// SeedChart loads the chart at path, or the embedded default when path is
// empty, and inserts the accounts that are missing.
func (c *Container) SeedChart(ctx context.Context, path string) error {
	var (
		chart accounting.Chart
		err   error
	)
	if path == "" {
		chart, err = accounting.DefaultChart()
	} else {
		chart, err = accounting.LoadChart(path)
	}
	if err != nil {
		return fmt.Errorf("load chart: %w", err)
	}
	created, err := c.Accounting.SeedChart(ctx, chart)
	if err != nil {
		return fmt.Errorf("seed chart: %w", err)
	}
	c.Logger.Info("chart of accounts seeded", slog.Int("created", created))
	return nil
}

// Close releases connections in reverse order of acquisition.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
