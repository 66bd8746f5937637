package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/banditlabs/stratcore/internal/alloc"
	"github.com/banditlabs/stratcore/internal/config"
	"github.com/banditlabs/stratcore/internal/engine"
	"github.com/banditlabs/stratcore/internal/gates"
	httpapi "github.com/banditlabs/stratcore/internal/interfaces/http"
	"github.com/banditlabs/stratcore/internal/persistence"
	"github.com/banditlabs/stratcore/internal/persistence/postgres"
	"github.com/banditlabs/stratcore/internal/statecache"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the learning engine and its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}
}

func runServe(flags *rootFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.logLevel == "" {
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	metrics := httpapi.NewMetricsRegistry()
	hub := httpapi.NewHub()
	defer hub.Close()

	cache := buildCache(cfg.Redis)
	repo, dbClose, err := buildRepository(cfg.Database)
	if err != nil {
		return err
	}
	defer dbClose()

	eng := engine.New(engine.Options{
		ExplorationRate: cfg.Engine.ExplorationRate,
		Seed:            cfg.Engine.Seed,
		GateConfig:      gateConfig(cfg.Engine),
		AllocConfig: alloc.Config{
			MinAllocationPct:      cfg.Engine.MinAllocationPct,
			MaxAllocationPct:      cfg.Engine.MaxAllocationPct,
			MaxChangePerRebalance: cfg.Engine.MaxChangePerRebalance,
			RebalanceInterval:     cfg.Engine.RebalanceInterval,
		},
		SnapshotDir:      cfg.Engine.StateDir,
		SnapshotInterval: cfg.Engine.SnapshotInterval,
		Repo:             repo,
		DBTimeout:        cfg.Database.Timeout,
		Cache:            cache,
		CacheTTL:         cfg.Redis.TTL,
		Metrics:          metrics,
		Events:           hub,
	})
	defer eng.Close()

	if err := eng.Load(); err != nil {
		return fmt.Errorf("state restore failed: %w", err)
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:         cfg.HTTP.Host,
		Port:         cfg.HTTP.Port,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}, eng, metrics, hub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func gateConfig(engCfg config.EngineConfig) gates.Config {
	cfg := gates.DefaultConfig()
	cfg.ExplorationRate = engCfg.ExplorationRate
	return cfg
}

func buildCache(redisCfg config.RedisConfig) statecache.Cache {
	if redisCfg.Addr == "" {
		return statecache.New()
	}
	log.Info().Str("addr", redisCfg.Addr).Msg("mirroring live stats to redis")
	return statecache.NewRedis(redis.NewClient(&redis.Options{Addr: redisCfg.Addr}))
}

// buildRepository connects Postgres when a DSN is configured; without one
// the engine runs memory-only.
func buildRepository(dbCfg config.DatabaseConfig) (persistence.Repository, func(), error) {
	if dbCfg.DSN == "" {
		return persistence.Repository{}, func() {}, nil
	}

	db, err := sqlx.Connect("postgres", dbCfg.DSN)
	if err != nil {
		return persistence.Repository{}, nil, fmt.Errorf("database connection failed: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbCfg.Timeout)
	defer cancel()
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return persistence.Repository{}, nil, fmt.Errorf("migration failed: %w", err)
	}

	log.Info().Msg("sql persistence enabled")
	repo := persistence.Repository{
		Allocations: persistence.GuardAllocations(postgres.NewAllocationsRepo(db, dbCfg.Timeout)),
		Rebalances:  persistence.GuardRebalances(postgres.NewRebalancesRepo(db, dbCfg.Timeout)),
	}
	return repo, func() { db.Close() }, nil
}
