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

	"github.com/bryanwahyu/drishti/internal/bootstrap"
	"github.com/bryanwahyu/drishti/internal/config"
	"github.com/bryanwahyu/drishti/internal/infra/httpserver"
	"github.com/bryanwahyu/drishti/internal/infra/telemetry"
	"github.com/bryanwahyu/drishti/internal/logging"
	"github.com/bryanwahyu/drishti/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logging.Init(cfg.Log.Level, cfg.Log.Format)
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		ServiceName:  cfg.Telemetry.ServiceName,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		Insecure:     cfg.Telemetry.Insecure,
		SampleRate:   cfg.Telemetry.SampleRate,
	})
	if err != nil {
		// tracing is optional, keep serving
		slog.Warn("telemetry setup failed", "error", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	// init model, vector store, bucket
	comps, err := bootstrap.Build(ctx, cfg, false)
	if err != nil {
		fatal("component init error", err)
	}
	defer comps.Close()

	wf, err := bootstrap.Workflow(cfg, comps)
	if err != nil {
		fatal("workflow init error", err)
	}

	checks := map[string]middleware.HealthChecker{
		"vector_store": middleware.PingChecker{Target: comps.Store},
	}
	if comps.Bucket != nil {
		checks["minio"] = middleware.PingChecker{Target: comps.Bucket}
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	stopLimiter := make(chan struct{})
	go limiter.Run(stopLimiter)

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(wf, httpserver.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		APIKeys:        cfg.Server.APIKeys,
		RateLimiter:    limiter,
		AllowedHosts:   cfg.Downloader.AllowedHosts,
		HealthChecks:   checks,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	slog.Info("shutting down server...")
	close(stopLimiter)

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if err := shutdownTracing(ctx2); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
