package responseformat

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

type payload struct {
	Station string `json:"station"`
	Count   int    `json:"predicted_failures"`
}

func TestWriteResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary", nil)

	if err := NewFormatter().WriteResponse(rec, req, payload{Station: "S1", Count: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["station"] != "S1" || got["predicted_failures"] != float64(2) {
		t.Errorf("unexpected body %v", got)
	}
}

func TestWriteResponseMsgPack(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/summary?format=msgpack", nil)

	if err := NewFormatter().WriteResponse(rec, req, payload{Station: "S1", Count: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/x-msgpack" {
		t.Errorf("expected application/x-msgpack, got %q", ct)
	}
	var got map[string]any
	if err := msgpack.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid msgpack: %v", err)
	}
	if got["station"] != "S1" {
		t.Errorf("expected json tag names in msgpack body, got %v", got)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/predictions", nil)

	NewFormatter().WriteError(rec, req, http.StatusBadRequest, errors.New("bad day"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	var got ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || got.Error != "bad day" {
		t.Errorf("unexpected error body %q (%v)", rec.Body.String(), err)
	}
}
