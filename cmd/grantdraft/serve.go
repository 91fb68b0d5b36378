package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/grantdraft/internal/metrics"
	"github.com/nainya/grantdraft/internal/server"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var port, metricsPort int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the version history over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if cmd.Flags().Changed("metrics-port") {
				a.cfg.Server.MetricsPort = metricsPort
			}
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			lis, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.serve(ctx, lis, prometheus.NewRegistry())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "gRPC port (overrides config)")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 0, "Metrics and pprof port, 0 disables (overrides config)")

	return cmd
}

// serve runs the gRPC service on lis until ctx is cancelled, then drains it
func (a *app) serve(ctx context.Context, lis net.Listener, reg *prometheus.Registry) error {
	cfg := a.cfg
	m := metrics.NewMetrics(reg)

	a.log.LogServerStart(cfg.Server.Port, cfg.Storage.Backend, cfg.Storage.Path)

	store := a.openStore(m)
	m.SetVersionsStored(store.Len())
	srv := server.NewServer(store, a.log)
	defer srv.Close()

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(cfg.Server.MaxMessageBytes),
		grpc.MaxSendMsgSize(cfg.Server.MaxMessageBytes),
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, a.log)),
	)
	server.RegisterVersionServiceServer(grpcServer, srv)

	// Reflection lets grpcurl list the service
	reflection.Register(grpcServer)

	stopUptime := make(chan struct{})
	defer close(stopUptime)
	m.StartUptime(5*time.Second, stopUptime)

	var draining atomic.Bool
	var obs *server.ObservabilityServer
	if cfg.Server.MetricsPort != 0 {
		obs = server.NewObservabilityServer(cfg.Server.MetricsPort, reg, func() error {
			if draining.Load() {
				return errors.New("shutting down")
			}
			return nil
		}, a.log)
		go func() {
			if err := obs.Start(); err != nil {
				a.log.Error("observability server stopped").Err(err).Send()
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(lis)
	}()
	a.log.LogServerReady(cfg.Server.Port)

	select {
	case err := <-serveErr:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	a.log.LogServerShutdown()
	draining.Store(true)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcServer.Stop()
	}

	if obs != nil {
		if err := obs.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("observability server shutdown").Err(err).Send()
		}
	}
	return nil
}
