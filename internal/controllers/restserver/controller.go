// Package restserver is the HTTP shell around the prediction service: upload
// an event log to get predictions, then browse stored batches by day and
// line or download them as CSV.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/failcast/internal/ingest"
	"github.com/chrissnell/failcast/internal/log"
	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/internal/storage"
	"github.com/chrissnell/failcast/pkg/config"
)

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.RESTServerData
	Server     http.Server
	service    *predict.Service
	store      storage.Store
	reader     *ingest.CSVReader
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, svc *predict.Service, store storage.Store, logger *zap.SugaredLogger) (*Controller, error) {
	if cfg.REST == nil {
		return nil, fmt.Errorf("rest server is not configured")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: *cfg.REST,
		service:    svc,
		store:      store,
		reader:     ingest.NewCSVReader(cfg.Input),
		logger:     logger,
	}

	ctrl.handlers = NewHandlers(ctrl)

	router := ctrl.setupRouter()
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.restConfig.ListenAddr, ctrl.restConfig.Port)
	// CSV downloads and full batches compress well
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(logger.Desugar())),
		handlers.PrintRecoveryStack(true),
	)
	ctrl.Server.Handler = recovery(handlers.CompressHandler(router))

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Infof("Starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/predict", c.handlers.PostPredict).Methods(http.MethodPost)
	router.HandleFunc("/predictions", c.handlers.GetPredictions).Methods(http.MethodGet)
	router.HandleFunc("/predictions.csv", c.handlers.GetPredictionsCSV).Methods(http.MethodGet)
	router.HandleFunc("/summary", c.handlers.GetSummary).Methods(http.MethodGet)
	router.HandleFunc("/filters", c.handlers.GetFilters).Methods(http.MethodGet)

	return router
}
