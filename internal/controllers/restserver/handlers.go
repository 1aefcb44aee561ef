package restserver

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/chrissnell/failcast/internal/export"
	"github.com/chrissnell/failcast/internal/features"
	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/internal/storage"
	"github.com/chrissnell/failcast/internal/types"
	"github.com/chrissnell/failcast/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// PredictResponse is returned by POST /predict
type PredictResponse struct {
	BatchID     string               `json:"batch_id"`
	CreatedAt   time.Time            `json:"created_at"`
	Summary     predict.Summary      `json:"summary"`
	Predictions []predict.Prediction `json:"predictions"`
}

// PredictionsResponse is returned by GET /predictions
type PredictionsResponse struct {
	Summary     predict.Summary      `json:"summary"`
	Predictions []predict.Prediction `json:"predictions"`
}

// FiltersResponse lists the values available for filtering the latest batch
type FiltersResponse struct {
	BatchID string   `json:"batch_id"`
	Days    []string `json:"days"`
	Lines   []string `json:"lines"`
}

func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, map[string]string{"status": "ok"})
}

// PostPredict runs the prediction service over an uploaded CSV event log and
// stores the resulting batch. The day and line query parameters filter the
// predictions returned, not the ones stored.
func (h *Handlers) PostPredict(w http.ResponseWriter, req *http.Request) {
	filter, err := parseFilter(req)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err)
		return
	}

	body := http.MaxBytesReader(w, req.Body, h.controller.restConfig.MaxUploadBytes)
	raw, err := h.controller.reader.Read(body)
	if err != nil {
		h.writeInputError(w, req, err)
		return
	}

	batch, err := h.controller.service.Run(req.Context(), raw)
	if err != nil {
		h.writeInputError(w, req, err)
		return
	}

	if err := h.controller.store.SaveBatch(req.Context(), batch); err != nil {
		h.controller.logger.Errorf("could not store batch %s: %v", batch.ID, err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, errors.New("could not store prediction batch"))
		return
	}

	preds := filter.Apply(batch.Predictions)
	predict.SortByRisk(preds)

	h.formatter.WriteResponse(w, req, PredictResponse{
		BatchID:     batch.ID,
		CreatedAt:   batch.CreatedAt,
		Summary:     predict.Summarize(preds),
		Predictions: preds,
	})
}

func (h *Handlers) GetPredictions(w http.ResponseWriter, req *http.Request) {
	preds, ok := h.queryStore(w, req)
	if !ok {
		return
	}
	predict.SortByRisk(preds)

	h.formatter.WriteResponse(w, req, PredictionsResponse{
		Summary:     predict.Summarize(preds),
		Predictions: preds,
	})
}

// GetPredictionsCSV serves the same selection as GetPredictions as a CSV
// download
func (h *Handlers) GetPredictionsCSV(w http.ResponseWriter, req *http.Request) {
	preds, ok := h.queryStore(w, req)
	if !ok {
		return
	}
	predict.SortByRisk(preds)

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="predictions.csv"`)
	if err := export.WritePredictions(w, preds); err != nil {
		h.controller.logger.Errorf("error writing predictions CSV: %v", err)
	}
}

func (h *Handlers) GetSummary(w http.ResponseWriter, req *http.Request) {
	preds, ok := h.queryStore(w, req)
	if !ok {
		return
	}
	h.formatter.WriteResponse(w, req, predict.Summarize(preds))
}

func (h *Handlers) GetFilters(w http.ResponseWriter, req *http.Request) {
	id := req.URL.Query().Get("batch")
	if id == "" {
		var err error
		if id, err = h.controller.store.LatestBatchID(req.Context()); err != nil {
			h.writeStoreError(w, req, err)
			return
		}
	}

	preds, err := h.controller.store.Predictions(req.Context(), storage.Query{BatchID: id})
	if err != nil {
		h.writeStoreError(w, req, err)
		return
	}

	resp := FiltersResponse{BatchID: id, Days: []string{}, Lines: predict.Lines(preds)}
	for _, d := range predict.Days(preds) {
		resp.Days = append(resp.Days, d.Format(features.DefaultDayLayout))
	}
	if resp.Lines == nil {
		resp.Lines = []string{}
	}
	h.formatter.WriteResponse(w, req, resp)
}

func (h *Handlers) queryStore(w http.ResponseWriter, req *http.Request) ([]predict.Prediction, bool) {
	filter, err := parseFilter(req)
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusBadRequest, err)
		return nil, false
	}

	preds, err := h.controller.store.Predictions(req.Context(), storage.Query{
		BatchID: req.URL.Query().Get("batch"),
		Day:     filter.Day,
		Line:    filter.Line,
	})
	if err != nil {
		h.writeStoreError(w, req, err)
		return nil, false
	}
	return preds, true
}

func (h *Handlers) writeStoreError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, storage.ErrNoBatches) || errors.Is(err, storage.ErrBatchNotFound) {
		h.formatter.WriteError(w, req, http.StatusNotFound, err)
		return
	}
	h.controller.logger.Errorf("error querying prediction store: %v", err)
	h.formatter.WriteError(w, req, http.StatusInternalServerError, errors.New("error querying prediction store"))
}

func (h *Handlers) writeInputError(w http.ResponseWriter, req *http.Request, err error) {
	var me *types.MalformedInputError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &me):
		h.formatter.WriteError(w, req, http.StatusUnprocessableEntity, err)
	case errors.As(err, &tooLarge):
		h.formatter.WriteError(w, req, http.StatusRequestEntityTooLarge, err)
	default:
		h.controller.logger.Errorf("prediction failed: %v", err)
		h.formatter.WriteError(w, req, http.StatusInternalServerError, err)
	}
}

func parseFilter(req *http.Request) (predict.Filter, error) {
	var f predict.Filter
	q := req.URL.Query()

	if s := q.Get("day"); s != "" {
		day, ok := features.ParseDay(s, features.DefaultDayLayout)
		if !ok {
			return f, fmt.Errorf("invalid day %q, expected YYYY-MM-DD", s)
		}
		f.Day = day
	}
	f.Line = q.Get("line")
	return f, nil
}
