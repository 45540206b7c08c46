package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/payoff/internal/advisor"
	"github.com/iwvelando/payoff/internal/config"
	"github.com/iwvelando/payoff/internal/debts"
	"github.com/iwvelando/payoff/internal/logging"
	"github.com/iwvelando/payoff/internal/server"
	"github.com/iwvelando/payoff/internal/store"
	"github.com/iwvelando/payoff/pkg/constants"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	configLocation := flag.String("config", constants.DefaultServerConfigFile, "path to server configuration file")
	address := flag.String("address", "", "listen address override")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	config.LoadEnv()

	cfg, err := server.LoadConfig(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load server configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}
	if *address != "" {
		cfg.Address = *address
	}

	logger, err := logging.NewLogger(cfg.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server exited with error",
			zap.String("op", "main"),
			zap.Error(err),
		)
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg *server.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := store.New(ctx, logger, cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() {
		if closeErr := docs.Close(); closeErr != nil {
			logger.Warn("failed to close store",
				zap.String("op", "main.run"),
				zap.Error(closeErr),
			)
		}
	}()

	svc := debts.NewService(logger, docs, advisor.New(logger, cfg.Advisor))
	handler, err := server.NewHandler(logger, svc, cfg, version)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Advisor.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting payoff server",
			zap.String("op", "main.run"),
			zap.String("address", cfg.Address),
			zap.String("store", cfg.Store.Backend),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", cfg.Address, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down payoff server",
			zap.String("op", "main.run"),
		)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultShutdownTimeoutSeconds*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("payoff server stopped",
		zap.String("op", "main.run"),
	)
	return nil
}
