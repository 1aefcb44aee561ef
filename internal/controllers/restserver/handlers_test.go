package restserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/chrissnell/failcast/internal/classifier"
	"github.com/chrissnell/failcast/internal/predict"
	"github.com/chrissnell/failcast/internal/storage"
	"github.com/chrissnell/failcast/pkg/config"
)

const eventLog = `data_dzienna,Linia,Stacja,awaria
2024-05-01,L1,S1,1
2024-05-02,L1,S1,1
2024-05-03,L1,S1,0
2024-05-01,L2,S2,0
2024-05-02,L2,S2,0
2024-05-03,L2,S2,0
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.ConfigData{
		Model: config.ModelData{Path: "unused.json"},
		REST:  &config.RESTServerData{MaxUploadBytes: 1 << 10},
	}
	cfg.ApplyDefaults()

	// Fails a station once it has two recent failures.
	model := &classifier.LogisticModel{
		Features:  []string{"failures_7d", "line_L2"},
		Weights:   []float64{4, 0},
		Intercept: -6,
		Threshold: 0.5,
	}

	logger := zap.NewNop().Sugar()
	svc := predict.NewService(cfg, model, logger)

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, cfg, svc, storage.NewMemoryStore(), logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srv := httptest.NewServer(ctrl.Server.Handler)
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, srv *httptest.Server, query, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/predict"+query, "text/csv", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("error decoding response: %v", err)
	}
}

func TestPostPredict(t *testing.T) {
	srv := newTestServer(t)

	resp := upload(t, srv, "", eventLog)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got PredictResponse
	decode(t, resp, &got)

	if got.BatchID == "" {
		t.Error("expected a batch id")
	}
	if len(got.Predictions) != 6 {
		t.Fatalf("expected 6 predictions, got %d", len(got.Predictions))
	}
	if got.Summary.PredictedFailures != 1 || got.Summary.StationsAtRisk[0] != "S1" {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
	first := got.Predictions[0]
	if first.Station != "S1" || first.Day.Format("2006-01-02") != "2024-05-03" || first.Status != predict.StatusFailureExpected {
		t.Errorf("expected S1 on 2024-05-03 first, got %+v", first)
	}
}

func TestPostPredictFiltersResponse(t *testing.T) {
	srv := newTestServer(t)

	var got PredictResponse
	decode(t, upload(t, srv, "?day=2024-05-02&line=L2", eventLog), &got)

	if len(got.Predictions) != 1 || got.Predictions[0].Station != "S2" {
		t.Errorf("expected only S2 on 2024-05-02, got %+v", got.Predictions)
	}
}

func TestPostPredictErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		query  string
		body   string
		status int
	}{
		{name: "bad flag", body: "station,day,failure\nS1,2024-05-01,x\n", status: http.StatusUnprocessableEntity},
		{name: "missing column", body: "station,day\nS1,2024-05-01\n", status: http.StatusUnprocessableEntity},
		{name: "bad day filter", query: "?day=tomorrow", body: eventLog, status: http.StatusBadRequest},
		{name: "too large", body: eventLog + strings.Repeat("2024-05-04,L1,S1,0\n", 100), status: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := upload(t, srv, tt.query, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.status {
				body, _ := io.ReadAll(resp.Body)
				t.Errorf("expected %d, got %d: %s", tt.status, resp.StatusCode, body)
			}
		})
	}
}

func TestStoredBatchQueries(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/predictions")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 before any upload, got %d", resp.StatusCode)
	}

	upload(t, srv, "", eventLog).Body.Close()

	var preds PredictionsResponse
	resp, err = http.Get(srv.URL + "/predictions?line=L1")
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &preds)
	if len(preds.Predictions) != 3 || preds.Summary.PredictedFailures != 1 {
		t.Errorf("unexpected L1 predictions %+v", preds)
	}

	var sum predict.Summary
	resp, err = http.Get(srv.URL + "/summary?day=2024-05-03")
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &sum)
	if sum.Rows != 2 || sum.PredictedFailures != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}

	var filters FiltersResponse
	resp, err = http.Get(srv.URL + "/filters")
	if err != nil {
		t.Fatal(err)
	}
	decode(t, resp, &filters)
	if strings.Join(filters.Days, ",") != "2024-05-01,2024-05-02,2024-05-03" || strings.Join(filters.Lines, ",") != "L1,L2" {
		t.Errorf("unexpected filters %+v", filters)
	}

	resp, err = http.Get(srv.URL + "/predictions.csv?day=2024-05-03")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	want := "day,line,station,status\n2024-05-03,L1,S1,failure expected\n2024-05-03,L2,S2,no failure\n"
	if string(body) != want {
		t.Errorf("expected CSV\n%s\ngot\n%s", want, body)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "predictions.csv") {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}

	resp, err = http.Get(srv.URL + "/predictions?batch=unknown")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown batch, got %d", resp.StatusCode)
	}
}
