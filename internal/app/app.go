package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/failcast/internal/classifier"
	"github.com/chrissnell/failcast/internal/controllers/restserver"
	"github.com/chrissnell/failcast/internal/log"
	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/internal/storage"
	"github.com/chrissnell/failcast/pkg/config"
)

// App represents the prediction server
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.REST == nil {
		return fmt.Errorf("no rest section in configuration; nothing to serve")
	}

	// The classifier is loaded once and shared read-only for the process
	// lifetime.
	model, err := classifier.New(cfg.Model)
	if err != nil {
		return fmt.Errorf("error loading classifier: %w", err)
	}
	log.Infof("loaded %s classifier with %d features", cfg.Model.Type, len(model.FeatureNames()))

	store, err := storage.New(ctx, cfg.Storage, a.logger)
	if err != nil {
		return fmt.Errorf("error opening prediction store: %w", err)
	}
	defer store.Close()

	svc := predict.NewService(cfg, model, a.logger)

	rest, err := restserver.NewController(ctx, &wg, cfg, svc, store, a.logger)
	if err != nil {
		return err
	}
	if err := rest.StartController(); err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
