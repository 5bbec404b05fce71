package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/fightcard/ringside/internal/adapters/http/api"
	"github.com/fightcard/ringside/internal/adapters/ws"
	app "github.com/fightcard/ringside/internal/app"
	"github.com/fightcard/ringside/internal/config"
	"github.com/fightcard/ringside/internal/domain/audit"
	"github.com/fightcard/ringside/internal/domain/scoring"
	"github.com/fightcard/ringside/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second // next-round holds the connection open
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection; the custom registry carries
	// what the scoreboard needs.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	hub := ws.NewHub(ws.WithLogger(log.Named("ws")))

	opts := []app.Option{
		app.WithLogger(log),
		app.WithSink(hub),
		app.WithStalenessWindow(time.Duration(cfg.StalenessWindowSeconds) * time.Second),
		app.WithBarrierTimeout(time.Duration(cfg.BarrierTimeoutSeconds) * time.Second),
		app.WithRoundDuration(cfg.RoundDurationSeconds),
		app.WithQueueCapacity(cfg.BroadcastQueueSize),
		app.WithDispatcherCount(cfg.DispatcherCount),
		app.WithScoringOptions(scoring.WithCardThresholds(cfg.EvenThreshold, cfg.ClearThreshold, cfg.DominanceThreshold)),
	}
	if cfg.AuditSigningKey != "" {
		opts = append(opts, app.WithAuditOptions(audit.WithSigningKey([]byte(cfg.AuditSigningKey))))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, hub, cfg.SupervisorToken)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}
