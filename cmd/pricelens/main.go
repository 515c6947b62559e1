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
	_ "time/tzdata"

	"github.com/go-git/go-billy/v5/osfs"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/pricelens/analytics"
	"github.com/use-agent/pricelens/api"
	"github.com/use-agent/pricelens/capture"
	"github.com/use-agent/pricelens/config"
	"github.com/use-agent/pricelens/report"
	"github.com/use-agent/pricelens/runs"
	"github.com/use-agent/pricelens/scraper"
	"github.com/use-agent/pricelens/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pricelens exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pricelens starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxDomains", cfg.Runs.MaxDomains,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Open the analytics log (prunes expired events) ───────────
	events, err := analytics.New(osfs.New("."), cfg.Analytics.Path, analytics.Options{})
	if err != nil {
		return fmt.Errorf("open analytics log: %w", err)
	}

	// ── 4. Capture sessions: one fresh browser per run ──────────────
	sessions := capture.NewSessions(
		scraper.NewLauncher(cfg.Browser, cfg.Capture),
		capture.Options{
			PricingPath:      cfg.Capture.PricingPath,
			RetryDelay:       cfg.Capture.RetryDelay,
			BodyPreviewChars: cfg.Capture.BodyPreviewChars,
		},
	)
	open := func(ctx context.Context) (runs.Capturer, error) {
		s, err := sessions.Open(ctx)
		if err != nil {
			return nil, err
		}
		return s, nil
	}

	// ── 5. Run orchestrator ─────────────────────────────────────────
	var notifier runs.Notifier
	if n := webhook.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret); n != nil {
		notifier = n
		slog.Info("webhook notifications enabled", "url", cfg.Webhook.URL)
	}
	store := runs.NewStore(cfg.Runs.TTL)
	defer store.Close()
	manager := runs.NewManager(store, open, report.NewAssembler(), events, notifier, runs.Options{
		DomainDelay: cfg.Runs.DomainDelay,
	})

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(ctx, manager, events, cfg, time.Now())

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// ── 8. Graceful shutdown ────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")

		// Give in-flight requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}

		// Running captures keep going until they reach a terminal state.
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancelDrain()
		if err := manager.Wait(drainCtx); err != nil {
			slog.Warn("runs still active at shutdown", "active", manager.ActiveRuns(), "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("pricelens stopped")
	return nil
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
