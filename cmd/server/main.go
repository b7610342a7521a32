// Command sable-server serves the backup repositories over the gRPC method channel.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/sable-sync/internal/client"
	"github.com/and161185/sable-sync/internal/config"
	"github.com/and161185/sable-sync/internal/limiter"
	"github.com/and161185/sable-sync/internal/migrate"
	"github.com/and161185/sable-sync/internal/model"
	"github.com/and161185/sable-sync/internal/repository"
	"github.com/and161185/sable-sync/internal/repository/memory"
	"github.com/and161185/sable-sync/internal/repository/objectstore"
	"github.com/and161185/sable-sync/internal/repository/postgres"
	grpcserver "github.com/and161185/sable-sync/internal/server/grpc"
	"github.com/and161185/sable-sync/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, opens the configured record store and starts the bridge.
func main() {
	cfg, err := config.Load(os.Args[0], os.Args[1:], os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, _ := zap.NewProduction()
	if cfg.Dev {
		logger, _ = zap.NewDevelopment()
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.Store),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, lim, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.Error(err))
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	remote := client.New(store,
		client.WithLogger(logger.Named("client")),
		client.WithMetrics(client.NewMetrics(reg)),
	)
	backup := service.NewBackup(remote)

	interceptors := []grpc.UnaryServerInterceptor{
		grpcserver.RecoverUnary(logger),
		grpcserver.LoggingUnary(logger),
	}
	if cfg.JWTKey != "" {
		tokens, err := service.NewTokens([]byte(cfg.JWTKey), service.WithMaxTTL(cfg.TokenTTL))
		if err != nil {
			logger.Fatal("tokens", zap.Error(err))
		}
		interceptors = append(interceptors, grpcserver.AuthUnary(tokens, lim))
	} else {
		logger.Warn("bridge auth disabled (no --jwt-key)")
	}

	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}
	if cfg.TLS() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)

	grpcserver.RegisterBackupServer(s, grpcserver.New(backup, logger.Named("bridge")))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLS()))
		errCh <- s.Serve(lis)
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	go watchAccount(ctx, remote, hs, logger)

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsSrv.Shutdown(sctx)
			cancel()
		}
		// graceful shutdown
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

// openStore builds the configured RemoteStore, the auth limiter sharing its
// backend and a cleanup function.
func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repository.RemoteStore, limiter.Limiter, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		if cfg.Migrate {
			if err := migrate.Up(ctx, cfg.DSN); err != nil {
				return nil, nil, nil, fmt.Errorf("migrate up: %w", err)
			}
			if err := migrate.EnsureAccount(ctx, cfg.DSN, cfg.AccountID); err != nil {
				return nil, nil, nil, fmt.Errorf("ensure account: %w", err)
			}
		}
		db, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		return postgres.NewRecordStore(db, cfg.AccountID), limiter.NewPG(db.Pool, limiter.DefaultPolicy), db.Close, nil
	case config.StoreS3:
		st, err := objectstore.New(ctx, objectstore.Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return st, limiter.NewMemory(limiter.DefaultPolicy), func() {}, nil
	default:
		logger.Warn("using in-memory store; records are lost on restart")
		return memory.New(model.AccountAvailable), limiter.NewMemory(limiter.DefaultPolicy), func() {}, nil
	}
}

// watchAccount mirrors the account status into the health service.
func watchAccount(ctx context.Context, remote *client.Client, hs *health.Server, logger *zap.Logger) {
	const name = grpcserver.ServiceName
	var last model.AccountStatus = -1
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	for {
		st, err := remote.AccountStatus(ctx)
		if err == nil && st != last {
			logger.Info("account status", zap.Stringer("status", st))
			last = st
		}
		if st == model.AccountAvailable && err == nil {
			hs.SetServingStatus(name, healthpb.HealthCheckResponse_SERVING)
		} else {
			hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
