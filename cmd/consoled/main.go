// Package main implements the entry point for the channel console service.
// It wires the engine client, workspaces, journal and HTTP API and runs the
// server until interrupted.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/relaycore/channel-console/internal/archive"
	"github.com/relaycore/channel-console/internal/config"
	"github.com/relaycore/channel-console/internal/event"
	"github.com/relaycore/channel-console/internal/journal"
	"github.com/relaycore/channel-console/internal/jwks"
	"github.com/relaycore/channel-console/internal/metrics"
	"github.com/relaycore/channel-console/internal/mirth"
	"github.com/relaycore/channel-console/internal/schema"
	"github.com/relaycore/channel-console/internal/server"
	"github.com/relaycore/channel-console/internal/storage"
	"github.com/relaycore/channel-console/internal/telemetry"
	"github.com/relaycore/channel-console/internal/workflow"
	"github.com/relaycore/channel-console/internal/workspace"
)

// version is set at build time.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	var traceOut io.Writer
	if cfg.Env == "dev" {
		traceOut = os.Stderr
	}
	tp, err := telemetry.InitTracer(telemetry.Options{
		ServiceName: "channel-console",
		Version:     version,
		Environment: cfg.Env,
		Writer:      traceOut,
	})
	if err != nil {
		logger.Error("failed to initialize OpenTelemetry tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		telemetry.ShutdownTracer(ctx, tp)
	}()

	m := metrics.NewMetrics()

	// Storage backend (PostgreSQL or in-memory)
	var store storage.Store
	if cfg.DatabaseDSN != "" {
		store, err = storage.NewPostgres(cfg.DatabaseDSN)
		if err != nil {
			logger.Error("failed to initialize postgres storage", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("CONSOLE_DB_DSN not set; drafts and snapshots are kept in memory")
		store = storage.NewMemory()
	}
	defer store.Close()

	pub := event.WithObserver(event.NewPublisher(cfg.NATSURL, logger), m)
	defer pub.Close()

	journalOpts := []journal.Option{journal.WithObserver(m), journal.WithLogger(logger)}
	var exports server.ExportLinker
	if cfg.S3Bucket != "" {
		a, err := archive.New(context.Background(), archive.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Error("failed to initialize export archive", "error", err)
			os.Exit(1)
		}
		journalOpts = append(journalOpts, journal.WithExporter(a))
		exports = a
	}
	j := journal.New(store, pub, journalOpts...)

	validator, err := schema.NewValidator(m)
	if err != nil {
		logger.Error("failed to load channel schemas", "error", err)
		os.Exit(1)
	}

	engine := mirth.New(cfg.EngineURL, mirth.Options{
		Username:    cfg.EngineUsername,
		Password:    cfg.EnginePassword,
		Timeout:     cfg.EngineTimeout,
		InsecureTLS: cfg.EngineInsecureTLS,
		Observer:    m,
	})
	runner := workflow.NewRunner(engine,
		workflow.WithValidator(validator),
		workflow.WithRecorder(m),
		workflow.WithLogger(logger),
	)
	workspaces := workspace.NewManager(runner, engine, j.Hooks(), logger)

	jwksURL := cfg.JWKSURL
	if jwksURL == "" {
		jwksURL = strings.TrimRight(cfg.JWTIssuer, "/") + "/.well-known/jwks.json"
	}

	mux := server.NewMux(server.Deps{
		Engine:             engine,
		Workspaces:         workspaces,
		Journal:            j,
		Store:              store,
		Exports:            exports,
		Verifier:           jwks.NewClient(jwksURL),
		Validator:          validator,
		Metrics:            m,
		Logger:             logger,
		JWTIssuer:          cfg.JWTIssuer,
		JWTAudience:        cfg.JWTAudience,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		StreamRefresh:      cfg.StreamRefreshInterval,
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: workspace streams stay open.
		IdleTimeout: 2 * time.Minute,
	}

	go func() {
		logger.Info("server starting", "addr", addr, "env", cfg.Env, "engine", cfg.EngineURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	logger.Info("server exited")
}

// newLogger writes JSON logs to stdout and, when configured, to a rotating file.
func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Env == "dev" {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}
