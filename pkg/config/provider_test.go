package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseYAMLDefaults(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
model:
  path: model.json
rest: {}
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Model.Type != "logistic" {
		t.Errorf("expected default model type logistic, got %q", cfg.Model.Type)
	}
	if cfg.Input.DayLayout != "2006-01-02" || cfg.Input.Delimiter != "," {
		t.Errorf("unexpected input defaults: %+v", cfg.Input)
	}
	if !*cfg.Input.AggregateDuplicates || !*cfg.Features.DropFirst {
		t.Error("expected aggregate_duplicates and drop_first to default to true")
	}
	if !reflect.DeepEqual(cfg.Input.Columns.Station, DefaultStationColumns) {
		t.Errorf("unexpected station columns %v", cfg.Input.Columns.Station)
	}
	if cfg.REST.Port != 8080 || cfg.REST.ListenAddr != "0.0.0.0" {
		t.Errorf("unexpected rest defaults: %+v", cfg.REST)
	}
	if cfg.Features.Workers != 1 {
		t.Errorf("expected 1 worker, got %d", cfg.Features.Workers)
	}
}

func TestParseYAMLExplicitValues(t *testing.T) {
	cfg, err := ParseYAML([]byte(`
input:
  delimiter: ";"
  aggregate_duplicates: false
  columns:
    station: [machine]
features:
  workers: 4
  drop_first: false
model:
  type: http
  url: http://scorer:9000/predict
  feature_names: [failures_7d, line_L2]
storage:
  sqlite:
    path: /var/lib/failcast/predictions.db
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Input.Delimiter != ";" || *cfg.Input.AggregateDuplicates {
		t.Errorf("unexpected input: %+v", cfg.Input)
	}
	if !reflect.DeepEqual(cfg.Input.Columns.Station, []string{"machine"}) {
		t.Errorf("unexpected station columns %v", cfg.Input.Columns.Station)
	}
	if cfg.Features.Workers != 4 || *cfg.Features.DropFirst {
		t.Errorf("unexpected features: %+v", cfg.Features)
	}
	if cfg.Storage.SQLite == nil || cfg.Storage.SQLite.Path != "/var/lib/failcast/predictions.db" {
		t.Errorf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.REST != nil {
		t.Error("rest section should stay nil when not configured")
	}
}

func TestParseYAMLValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{name: "logistic without path", doc: "model: {type: logistic}", wantErr: "model.path"},
		{name: "http without url", doc: "model: {type: http, feature_names: [a]}", wantErr: "model.url"},
		{name: "http without features", doc: "model: {type: http, url: 'http://x'}", wantErr: "model.feature_names"},
		{name: "unknown model", doc: "model: {type: lightgbm}", wantErr: "unsupported model type"},
		{name: "bad delimiter", doc: "input: {delimiter: ';;'}\nmodel: {path: m.json}", wantErr: "single character"},
		{
			name:    "two backends",
			doc:     "model: {path: m.json}\nstorage:\n  sqlite: {path: a.db}\n  timescaledb: {connection_string: 'host=db'}",
			wantErr: "only one storage backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseYAML([]byte(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestYAMLProviderLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failcast.yaml")
	if err := os.WriteFile(path, []byte("model:\n  path: model.json\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewYAMLProvider(path).LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Model.Path != "model.json" {
		t.Errorf("expected model path model.json, got %q", cfg.Model.Path)
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "absent.yaml")).LoadConfig(); err == nil {
		t.Error("expected error for missing file")
	}
}
