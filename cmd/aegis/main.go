package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mirrorloop/aegis/internal/adapter/execlog"
	"github.com/mirrorloop/aegis/internal/adapter/fixedschedule"
	aegishttp "github.com/mirrorloop/aegis/internal/adapter/http"
	aegisnats "github.com/mirrorloop/aegis/internal/adapter/nats"
	"github.com/mirrorloop/aegis/internal/adapter/natskv"
	aegisotel "github.com/mirrorloop/aegis/internal/adapter/otel"
	"github.com/mirrorloop/aegis/internal/adapter/postgres"
	"github.com/mirrorloop/aegis/internal/adapter/ristretto"
	"github.com/mirrorloop/aegis/internal/adapter/tiered"
	"github.com/mirrorloop/aegis/internal/config"
	"github.com/mirrorloop/aegis/internal/logger"
	"github.com/mirrorloop/aegis/internal/middleware"
	"github.com/mirrorloop/aegis/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	slog.SetDefault(logger.New(cfg.Logging))
	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"approval_ttl", cfg.Engine.ApprovalTTL,
		"sweep_interval", cfg.Engine.SweepInterval,
	)

	ctx := context.Background()

	// --- Telemetry ---
	if cfg.Telemetry.Enabled {
		shutdown, err := aegisotel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
		if err != nil {
			return fmt.Errorf("otel: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	var metrics *aegisotel.Metrics
	if cfg.Telemetry.Enabled {
		metrics, err = aegisotel.NewMetrics()
		if err != nil {
			return fmt.Errorf("otel metrics: %w", err)
		}
	}

	// --- Infrastructure ---

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS
	queue, err := aegisnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Close() }()
	slog.Info("nats connected")

	// Settings cache: in-process ristretto in front of a NATS KV bucket
	// shared across instances.
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("ristretto: %w", err)
	}
	defer l1.Close()

	kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("nats kv: %w", err)
	}
	settingsCache := tiered.New(l1, natskv.New(kv), cfg.Cache.TTL)

	// --- Services ---

	store := postgres.NewStore(pool)

	sched, err := fixedschedule.New(cfg.Schedule)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	exec := execlog.New()

	settingsSvc := service.NewSettingsService(store, settingsCache, cfg.Cache.TTL,
		cfg.Engine.AllowNewCapabilities)
	autonomySvc := service.NewAutonomyService(store, settingsSvc, sched, exec, queue, metrics,
		service.EngineConfig{
			RiskBars:        cfg.Engine.RiskBars,
			ConfidenceFloor: cfg.Engine.ConfidenceFloor,
			ApprovalTTL:     cfg.Engine.ApprovalTTL,
		})
	approvalSvc := service.NewApprovalService(store, exec, queue, metrics,
		cfg.Engine.SweepInterval, cfg.Engine.Retention)
	recommendSvc := service.NewRecommendationService(store, settingsSvc,
		cfg.Engine.RiskBars, cfg.Engine.Watermarks, cfg.Engine.AnalyzerWindow)

	approvalSvc.StartSweeper(ctx)
	defer approvalSvc.StopSweeper()

	// --- HTTP ---

	handlers := aegishttp.NewHandlers(settingsSvc, autonomySvc, approvalSvc, recommendSvc)

	r := chi.NewRouter()
	r.Use(aegishttp.CORS(cfg.Server.CORSOrigin))
	r.Use(middleware.RequestID)
	r.Use(aegishttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Telemetry.Enabled {
		r.Use(aegisotel.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(middleware.Identity)

	aegishttp.MountRoutes(r, handlers, map[string]aegishttp.HealthFunc{
		"postgres": func() error {
			pctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pctx)
		},
		"nats": func() error {
			if !queue.Healthy() {
				return errors.New("nats connection down")
			}
			return nil
		},
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
