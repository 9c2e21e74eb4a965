package grpcx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// AnalyticsService: имя сервиса в grpc.health.v1, отражающее хранилище аналитики.
const AnalyticsService = "meetbridge.analytics"

// Pinger: проверка доступности хранилища.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr          string
	CheckInterval time.Duration
	PingTimeout   time.Duration
}

type Server struct {
	cfg    Config
	srv    *grpc.Server
	health *health.Server
	store  Pinger
	log    *slog.Logger
}

// NewServer builds a grpc server exposing grpc.health.v1. store may be nil
// when analytics are disabled; the analytics service then reports NOT_SERVING.
func NewServer(cfg Config, store Pinger) *Server {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 10 * time.Second
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 3 * time.Second
	}
	log := logger.Component("grpc")

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(log)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{cfg: cfg, srv: srv, health: hs, store: store, log: log}
}

func (s *Server) Health() *health.Server { return s.health }

// Check pings the store once and publishes the result.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if s.store == nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	} else {
		pctx, cancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
		err := s.store.Ping(pctx)
		cancel()
		if err != nil {
			s.log.Warn("analytics store ping failed", logger.Err(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus(AnalyticsService, st)
	return st
}

func (s *Server) watch(ctx context.Context) {
	t := time.NewTicker(s.cfg.CheckInterval)
	defer t.Stop()
	for {
		s.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Run слушает Addr и блокирует до завершения ctx.
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("grpc: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("grpc listening", slog.String("addr", lis.Addr().String()))
		if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.srv.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}
