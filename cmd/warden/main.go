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
	"golang.org/x/sync/errgroup"

	wdhttp "github.com/wardenhq/warden/internal/adapter/http"
	wdmcp "github.com/wardenhq/warden/internal/adapter/mcp"
	wdnats "github.com/wardenhq/warden/internal/adapter/nats"
	otelad "github.com/wardenhq/warden/internal/adapter/otel"
	"github.com/wardenhq/warden/internal/adapter/postgres"
	"github.com/wardenhq/warden/internal/adapter/ristretto"
	"github.com/wardenhq/warden/internal/adapter/ws"
	"github.com/wardenhq/warden/internal/config"
	"github.com/wardenhq/warden/internal/drift"
	"github.com/wardenhq/warden/internal/gatekeeper"
	"github.com/wardenhq/warden/internal/hold"
	"github.com/wardenhq/warden/internal/logger"
	"github.com/wardenhq/warden/internal/port/audit"
)

const version = "0.1.0"

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(bootstrap)

	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			slog.Error("admin command failed", "error", err)
			os.Exit(1)
		}
		return
	}

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

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"postgres", cfg.Postgres.Enabled,
		"nats", cfg.NATS.Enabled,
		"telemetry", cfg.Telemetry.Enabled,
		"mcp", cfg.MCP.Enabled,
	)

	ctx := context.Background()

	// --- Telemetry ---

	var metrics *otelad.Metrics
	if cfg.Telemetry.Enabled {
		shutdown, err := otelad.Init(ctx, otelad.Config{
			Endpoint:       cfg.Telemetry.Endpoint,
			Insecure:       cfg.Telemetry.Insecure,
			SampleRate:     cfg.Telemetry.SampleRate,
			ServiceName:    cfg.Logging.Service,
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shCtx); err != nil {
				slog.Error("telemetry shutdown failed", "error", err)
			}
		}()

		metrics, err = otelad.NewMetrics()
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		slog.Info("telemetry initialized", "endpoint", cfg.Telemetry.Endpoint)
	}

	// --- Decision sinks ---

	var sinks audit.Multi
	var decisions wdhttp.DecisionLister

	if cfg.Postgres.Enabled {
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()
		store := postgres.NewStore(pool)
		sinks = append(sinks, audit.NewBreakerSink(store, 5, 30*time.Second))
		decisions = store
		slog.Info("postgres connected")
	}

	if cfg.NATS.Enabled {
		sink, err := wdnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = sink.Close() }()
		sinks = append(sinks, audit.NewBreakerSink(sink, 5, 30*time.Second))
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	// --- Core ---

	hub := ws.NewHub()
	engine := drift.NewEngine(cfg.Drift)
	holds := hold.NewManager()

	cache, err := ristretto.NewMatchCache(cfg.Cache.MaxEntries)
	if err != nil {
		return fmt.Errorf("match cache: %w", err)
	}
	defer cache.Close()

	opts := []gatekeeper.Option{
		gatekeeper.WithBroadcaster(hub),
		gatekeeper.WithMatchCache(cache),
	}
	if len(sinks) > 0 {
		opts = append(opts, gatekeeper.WithAuditSink(sinks))
	}
	if metrics != nil {
		opts = append(opts, gatekeeper.WithMetrics(metrics))
	}

	gk := gatekeeper.New(engine, holds, opts...)
	defer gk.Close()

	if err := gk.SetControl(cfg.Control); err != nil {
		return fmt.Errorf("control: %w", err)
	}

	// --- MCP ---

	if cfg.MCP.Enabled {
		mcpSrv := wdmcp.NewServer(wdmcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    cfg.Logging.Service,
			Version: version,
		}, wdmcp.ServerDeps{
			Agents: engine,
			Holds:  holds,
		})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mcpSrv.Stop(stopCtx); err != nil {
				slog.Error("mcp shutdown failed", "error", err)
			}
		}()
		slog.Info("mcp server started", "addr", cfg.MCP.Addr)
	}

	// --- HTTP ---

	handlers := wdhttp.NewHandlers(gk, engine, holds)
	handlers.Decisions = decisions
	handlers.Hub = hub
	handlers.Metrics = metrics
	handlers.Version = version

	r := chi.NewRouter()

	r.Use(wdhttp.RequestID)
	r.Use(wdhttp.SecurityHeaders)
	r.Use(wdhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	if cfg.Telemetry.Enabled {
		r.Use(otelad.HTTPMiddleware(cfg.Logging.Service))
	}
	r.Use(wdhttp.BearerAuth(cfg.Admin.TokenHash))

	r.Get("/ws", hub.HandleWS)
	wdhttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		slog.Info("starting server", "addr", addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Expire overdue holds in the background. Resolution paths also
	// expire lazily, so the sweep only bounds staleness of listings.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Hold.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if n := holds.Sweep(); n > 0 {
					slog.Debug("expired holds swept", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
