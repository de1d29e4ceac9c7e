package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/DaDevFox/task-systems/stockcast/internal/config"
	"github.com/DaDevFox/task-systems/stockcast/internal/events"
	"github.com/DaDevFox/task-systems/stockcast/internal/forecast"
	stockgrpc "github.com/DaDevFox/task-systems/stockcast/internal/grpc"
	"github.com/DaDevFox/task-systems/stockcast/internal/logging"
	"github.com/DaDevFox/task-systems/stockcast/internal/metrics"
	"github.com/DaDevFox/task-systems/stockcast/internal/repository"
	"github.com/DaDevFox/task-systems/stockcast/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "stockcast-server",
		Short:        "Serve sales forecasts over gRPC, grpc-web and Prometheus metrics",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	dbType, err := repository.ParseDatabaseType(cfg.Storage.Type)
	if err != nil {
		return err
	}
	repo, err := repository.NewSalesRepository(cfg.Storage.Path, dbType)
	if err != nil {
		logger.WithError(err).Error("failed to initialize repository")
		return err
	}
	defer repo.Close()

	forecastCache, err := service.NewForecastCache(cfg.Forecast.CacheSize, cfg.Forecast.CacheTTL)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	bus := events.NewPubSub(logger)
	bus.Subscribe(events.EventStockLow, func(ctx context.Context, event events.Event) error {
		logger.WithFields(logrus.Fields{
			"product_id":  event.ProductID,
			"stock_level": event.Data["stock_level"],
		}).Warn("low stock alert")
		return nil
	})

	engine := forecast.NewEngine(forecast.EngineConfig{SeasonalPeriod: cfg.Forecast.SeasonalPeriod}, logger)
	forecastService := service.NewForecastService(repo, engine, forecastCache, m, bus, logger)
	forecastService.SetDefaultSteps(cfg.Forecast.DefaultSteps)
	forecastService.SetMaxSteps(cfg.Forecast.MaxSteps)

	interceptor := stockgrpc.NewLoggingInterceptor(logger)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(interceptor.Unary()))
	stockgrpc.RegisterForecastServiceServer(grpcServer, stockgrpc.NewForecastServer(forecastService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddress())
	if err != nil {
		logger.WithError(err).Error("failed to listen")
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           httpHandler(grpcServer, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Expired forecasts would otherwise linger until evicted
	go sweepCache(ctx, forecastCache, cfg.Forecast.CacheTTL, logger)

	go func() {
		logger.WithField("addr", cfg.GRPCAddress()).Info("starting stockcast gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			logger.WithError(err).Error("gRPC server failed")
			cancel()
		}
	}()

	go func() {
		logger.WithField("addr", cfg.HTTPAddress()).Info("starting metrics and grpc-web server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("HTTP server failed")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("received shutdown signal")
	case <-ctx.Done():
		logger.Info("context cancelled")
	}

	logger.Info("shutting down stockcast server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()
	bus.Clear("")
	return nil
}

// httpHandler serves grpc-web calls and falls back to /metrics and /healthz.
func httpHandler(grpcServer *grpc.Server, registry *prometheus.Registry) http.Handler {
	grpcWebServer := grpcweb.WrapServer(grpcServer, grpcweb.WithOriginFunc(func(string) bool { return true }))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		if grpcWebServer.IsGrpcWebRequest(req) || grpcWebServer.IsAcceptableGrpcCorsRequest(req) {
			grpcWebServer.ServeHTTP(resp, req)
			return
		}
		mux.ServeHTTP(resp, req)
	})
}

func sweepCache(ctx context.Context, forecastCache *service.ForecastCache, ttl time.Duration, logger *logrus.Logger) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := forecastCache.CleanupExpired(); removed > 0 {
				logger.WithField("removed", removed).Debug("expired forecasts swept")
			}
		case <-ctx.Done():
			return
		}
	}
}
