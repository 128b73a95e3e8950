package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nainya/itemstore/internal/metrics"
	"github.com/nainya/itemstore/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC item service",
	Long: `Start the gRPC item service together with an HTTP endpoint serving
/metrics, /health, /ready and pprof. With server.watch enabled the data
dictionary is invalidated whenever a record file changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "gRPC port (overrides server.grpc_port)")
	serveCmd.Flags().Int("metrics-port", 0, "Observability port (overrides server.metrics_port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	cfg := a.cfg
	if p, _ := cmd.Flags().GetInt("port"); p > 0 {
		cfg.Server.GrpcPort = p
	}
	if p, _ := cmd.Flags().GetInt("metrics-port"); p > 0 {
		cfg.Server.MetricsPort = p
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.log.LogServerStart(cfg.Server.GrpcPort, cfg.Store.Location)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)
	go m.StartUptime(ctx.Done())

	strategy, err := a.strategy()
	if err != nil {
		return err
	}
	idx, err := a.openIndex(ctx)
	if err != nil {
		return err
	}

	itemServer, err := server.NewServer(server.Options{
		Location:  cfg.Store.Location,
		CacheName: cfg.Store.CacheName,
		Strategy:  strategy,
		Index:     idx,
		Logger:    a.log,
		Metrics:   m,
	})
	if err != nil {
		if idx != nil {
			idx.Close()
		}
		return err
	}
	defer itemServer.Close()

	if cfg.Server.Watch {
		w, err := server.NewCorpusWatcher(cfg.Store.Location, itemServer.Dictionary(), a.log)
		if err != nil {
			return err
		}
		defer w.Close()
		go w.Run(ctx)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GrpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.MaxRecvMsgSize(100*1024*1024), // 100 MB
		grpc.MaxSendMsgSize(100*1024*1024), // 100 MB
		grpc.UnaryInterceptor(server.GrpcMetricsInterceptor(m, a.log)),
	)
	server.RegisterItemServiceServer(grpcServer, itemServer)

	// Register reflection service for grpcurl/grpcui
	reflection.Register(grpcServer)

	obs := server.NewObservabilityServer(cfg.Server.MetricsPort, a.log, prometheus.DefaultGatherer, itemServer.ReadyWhenLocationExists)
	go func() {
		if err := obs.Start(); err != nil {
			a.log.Error("Observability server stopped").Err(err).Send()
		}
	}()

	go func() {
		<-ctx.Done()
		a.log.LogServerShutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
	}()

	a.log.LogServerReady(cfg.Server.GrpcPort)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}
