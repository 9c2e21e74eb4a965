package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/analytics"
	"github.com/cwrk-planet/meet-bridge/internal/metrics"
	grpcx "github.com/cwrk-planet/meet-bridge/internal/transport/grpc"
	httpx "github.com/cwrk-planet/meet-bridge/internal/transport/http"
	"github.com/cwrk-planet/meet-bridge/internal/transport/ws"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP, websocket and gRPC servers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	initLogger(cfg)
	log := logger.L()
	log.Info("starting meet-bridge",
		slog.String("env", cfg.Logging.Env),
		slog.String("version", cfg.Logging.Version),
		slog.String("analytics", cfg.Analytics.Driver))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- storage ---
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("analytics store: %w", err)
	}
	if store != nil {
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = store.Close(shCtx)
		}()
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	// --- readiness, events, metrics ---
	checker, closeChecker, err := newChecker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeChecker()

	pub, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	m := metrics.NewWithRuntime()

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, ws.Options{
		Checker:   checker,
		Readiness: readinessConfig(cfg),
		Store:     store,
		Publisher: pub,
		Analytics: analytics.Config{
			HeartbeatInterval: cfg.Analytics.HeartbeatInterval,
			StaleAfter:        cfg.Analytics.StaleAfter,
			WriteTimeout:      cfg.Analytics.WriteTimeout,
		},
		JitsiDomain:      cfg.Conference.Domain,
		MountTimeout:     cfg.Conference.MountTimeout,
		DefaultReturnURL: cfg.Meeting.ReturnURL,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		PingEvery:        cfg.Conference.PingEvery,
		Metrics:          m,
		Logger:           logger.Component("ws"),
	})

	// --- HTTP ---
	router := httpx.NewRouter(httpx.Deps{
		Store:          store,
		Presence:       hub,
		WS:             wsServer.Handler(),
		Metrics:        m,
		StaleAfter:     cfg.Analytics.StaleAfter,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})
	httpSrv := httpx.NewServer(httpx.Config{
		Addr:        cfg.HTTP.Addr,
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
	}, router)

	// --- run servers ---
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	var running int

	running++
	go func() { errCh <- httpSrv.Run(ctx, hub.CloseAll) }()

	if cfg.GRPC.Addr != "" {
		var pinger grpcx.Pinger
		if store != nil {
			pinger = store
		}
		grpcSrv := grpcx.NewServer(grpcx.Config{
			Addr:          cfg.GRPC.Addr,
			CheckInterval: cfg.GRPC.CheckInterval,
		}, pinger)
		running++
		go func() { errCh <- grpcSrv.Run(ctx) }()
	}

	// первая ошибка (или сигнал) останавливает все серверы
	var firstErr error
	for i := 0; i < running; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
			log.Error("server error", logger.Err(err))
		}
		cancel()
	}
	if firstErr != nil {
		return firstErr
	}
	log.Info("stopped")
	return nil
}
