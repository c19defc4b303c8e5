package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ent0n29/concierge/internal/catalog"
	"github.com/ent0n29/concierge/internal/config"
	"github.com/ent0n29/concierge/internal/dialogue"
	"github.com/ent0n29/concierge/internal/httpapi"
	"github.com/ent0n29/concierge/internal/logger"
	"github.com/ent0n29/concierge/internal/memory"
	"github.com/ent0n29/concierge/internal/observability"
	"github.com/ent0n29/concierge/internal/orders"
	"github.com/ent0n29/concierge/internal/retrieval"
	"github.com/ent0n29/concierge/internal/scheduler"
	"github.com/ent0n29/concierge/internal/session"
)

const (
	serviceName       = "concierge"
	transcriptMaxSize = 200
)

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *session.Manager
	Hub      *scheduler.Hub
	Catalog  catalog.Provider
	Metrics  *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB, redis, tracer).
	Cleanup func(ctx context.Context) error
}

func Build(ctx context.Context, cfg config.Config, log logger.Logger) (*BuildResult, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	var closers []func(context.Context) error
	fail := func(err error) (*BuildResult, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i](ctx)
		}
		return nil, err
	}

	shutdownTracing, err := observability.InitTracing(serviceName, cfg.TracingJaegerEndpoint)
	if err != nil {
		return fail(fmt.Errorf("tracing init failed: %w", err))
	}
	closers = append(closers, shutdownTracing)

	var db *sql.DB
	if cfg.CatalogSource == "postgres" || cfg.OrdersSource == "postgres" {
		db, err = catalog.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func(context.Context) error { return db.Close() })
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" && cfg.CatalogCacheTTL > 0 {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func(context.Context) error { return rdb.Close() })
	}

	products, err := catalog.NewProvider(ctx, catalog.Options{
		Source:   cfg.CatalogSource,
		File:     cfg.CatalogFile,
		DB:       db,
		Redis:    rdb,
		CacheTTL: cfg.CatalogCacheTTL,
	}, log)
	if err != nil {
		return fail(fmt.Errorf("catalog init failed: %w", err))
	}

	lookup, err := orders.NewLookup(orders.Options{
		Source:  cfg.OrdersSource,
		APIURL:  cfg.OrdersAPIURL,
		Timeout: cfg.OrderLookupTimeout,
		DB:      db,
		Seed:    orders.SampleOrders(time.Now().UTC()),
	})
	if err != nil {
		return fail(fmt.Errorf("order lookup init failed: %w", err))
	}

	engine := dialogue.NewEngine(
		retrieval.New(products, log),
		lookup,
		dialogue.Options{
			HistoryLimit:  cfg.HistoryLimit,
			LookupTimeout: cfg.OrderLookupTimeout,
		},
		log,
	)

	transcript := memory.NewTranscript(transcriptMaxSize)
	hub := scheduler.NewHub(scheduler.Config{
		QueueSize: cfg.TurnQueueSize,
		Delay: scheduler.DelayPolicy{
			Base:    cfg.ThinkingBase,
			PerChar: cfg.ThinkingPerChar,
			Cap:     cfg.ThinkingCap,
			Jitter:  cfg.ThinkingJitter,
		},
		Sleeper: scheduler.RealSleeper,
	}, scheduler.Deps{
		Handler:    engine,
		Composer:   engine.Composer(),
		Transcript: transcript,
		Metrics:    metrics,
		Logger:     log,
	})
	closers = append(closers, func(context.Context) error {
		hub.CloseAll()
		return nil
	})

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	api := httpapi.New(cfg, sessions, hub, transcript, metrics, log)
	api.SetReadinessCheck(func(ctx context.Context) error {
		if _, err := products.Products(ctx); err != nil {
			return fmt.Errorf("catalog: %w", err)
		}
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
		}
		return nil
	})
	sessions.SetExpireHook(func(s *session.Session) {
		api.TeardownSession(s.ID)
		metrics.ObserveSessionEvent("expired")
		metrics.SetActiveSessions(sessions.ActiveCount())
		log.Info("session expired", map[string]any{"session_id": s.ID, "turns": s.TurnCount})
	})

	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Hub:      hub,
		Catalog:  products,
		Metrics:  metrics,
		Cleanup:  cleanup,
	}, nil
}
