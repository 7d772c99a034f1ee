// Package main wires together the crawlcoord service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/crawlcoord/internal/api"
	"github.com/JakeFAU/crawlcoord/internal/app"
	"github.com/JakeFAU/crawlcoord/internal/config"
	"github.com/JakeFAU/crawlcoord/internal/logging"
	"github.com/JakeFAU/crawlcoord/internal/progress"
	"github.com/JakeFAU/crawlcoord/internal/progress/sinks"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	// Cloud Run style platforms inject PORT.
	if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil && port > 0 {
		cfg.Server.Port = port
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	runErr := run(cfg, logger)
	if runErr != nil {
		logger.Error("crawlcoord exited with error", zap.Error(runErr))
	}
	_ = logger.Sync()
	if runErr != nil {
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("prometheus sink: %w", err)
	}
	hubCfg := cfg.Progress.Hub()
	hubCfg.Logger = logger.Named("progress")
	hub := progress.NewHub(hubCfg, sinks.NewLogSink(logger.Named("events")), promSink)

	runner := app.New(cfg, logger.Named("app"), hub)
	apiServer := api.NewServer(runner, cfg, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server started",
			zap.Int("port", cfg.Server.Port),
			zap.Strings("sources", runner.Sources()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown initiated")
		apiServer.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
		if err := hub.Close(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("progress hub close: %w", err))
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
