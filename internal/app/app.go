// Package app собирает сервис: конфигурация, зависимости, gRPC и HTTP серверы,
// фоновые воркеры и graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/stockroom/internal/health"
	"github.com/vladislavdragonenkov/stockroom/internal/service/idempotency"
	grpcsvc "github.com/vladislavdragonenkov/stockroom/internal/service/grpc"
	"github.com/vladislavdragonenkov/stockroom/internal/service/outbox"
	"github.com/vladislavdragonenkov/stockroom/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx или ошибки gRPC сервера.
// При отмене ctx возвращает ctx.Err() после остановки всех компонентов.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel).WithField("component", "app")
	logger.WithField("version", version.String()).Info("starting stockroom")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	pubs := initPublishers(cfg, logger)
	defer pubs.close(logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}

	grpcServer, grpcHealth := newGRPCServer(deps.Service)

	healthHandler := health.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.StorageChecker())
	adminSrv, err := startAdminServer(cfg.MetricsAddr, logger, healthHandler)
	if err != nil {
		grpcServer.Stop()
		_ = lis.Close()
		return err
	}

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	startWorkers(workersCtx, &workers, cfg, deps, pubs, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		grpcHealth.Shutdown()
		stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
		runErr = ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			runErr = err
		}
	}

	stopWorkers()
	workers.Wait()
	shutdownHTTP(adminSrv, cfg.ShutdownTimeout, logger)
	return runErr
}

func newLogger(level string) *log.Logger {
	logger := log.New()
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	if parsed, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(parsed)
	}
	return logger
}

// newGRPCServer собирает gRPC сервер с метриками, health и reflection.
func newGRPCServer(service grpcsvc.StockroomServer) (*grpc.Server, *grpchealth.Server) {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		}
	}

	server := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	grpcsvc.RegisterStockroomServer(server, service)
	grpcMetrics.InitializeMetrics(server)

	healthServer := grpchealth.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	reflection.Register(server)
	return server, healthServer
}

func startWorkers(ctx context.Context, wg *sync.WaitGroup, cfg Config, deps *Dependencies, pubs publishers, logger *log.Entry) {
	outboxWorker := outbox.NewWorker(deps.Outbox, pubs.events,
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithDLQPublisher(pubs.dlq),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	)
	cleanupWorker := idempotency.NewCleanupWorker(deps.Idempotency,
		idempotency.WithLogger(logger.WithField("layer", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)

	for _, run := range []func(context.Context){outboxWorker.Run, cleanupWorker.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}
}

// stopGRPC ждёт завершения активных RPC не дольше timeout.
func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// adminRouter — HTTP эндпоинты эксплуатации: метрики и health probes.
func adminRouter(healthHandler *health.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Method(http.MethodGet, "/healthz", healthHandler)
	r.Get("/livez", health.LivenessHandler)
	r.Get("/readyz", healthHandler.ReadinessHandler)
	return r
}

// startAdminServer занимает адрес синхронно, чтобы ошибка порта вернулась из Run.
func startAdminServer(addr string, logger *log.Entry, healthHandler *health.Handler) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen admin http %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           adminRouter(healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("метрики и health checks доступны на %s", lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("admin server failed")
		}
	}()
	return srv, nil
}

func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("admin server shutdown with error")
	}
}
