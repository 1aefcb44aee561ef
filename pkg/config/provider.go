package config

import (
	"errors"
	"fmt"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration, with defaults applied and validated
	LoadConfig() (*ConfigData, error)
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Input    InputData       `json:"input" yaml:"input"`
	Features FeaturesData    `json:"features" yaml:"features"`
	Model    ModelData       `json:"model" yaml:"model"`
	Storage  StorageData     `json:"storage,omitempty" yaml:"storage,omitempty"`
	REST     *RESTServerData `json:"rest,omitempty" yaml:"rest,omitempty"`
}

// InputData describes the event-log CSV
type InputData struct {
	DayLayout           string      `json:"day_layout,omitempty" yaml:"day_layout,omitempty"`
	Delimiter           string      `json:"delimiter,omitempty" yaml:"delimiter,omitempty"`
	AggregateDuplicates *bool       `json:"aggregate_duplicates,omitempty" yaml:"aggregate_duplicates,omitempty"`
	Columns             ColumnsData `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// ColumnsData lists accepted header names for each event-log field.
// Matching is case-insensitive.
type ColumnsData struct {
	Station []string `json:"station,omitempty" yaml:"station,omitempty"`
	Line    []string `json:"line,omitempty" yaml:"line,omitempty"`
	Day     []string `json:"day,omitempty" yaml:"day,omitempty"`
	Failure []string `json:"failure,omitempty" yaml:"failure,omitempty"`
	Shift   []string `json:"shift,omitempty" yaml:"shift,omitempty"`
}

// FeaturesData controls derivation and encoding
type FeaturesData struct {
	Workers     int      `json:"workers,omitempty" yaml:"workers,omitempty"`
	Numeric     []string `json:"numeric,omitempty" yaml:"numeric,omitempty"`
	Categorical []string `json:"categorical,omitempty" yaml:"categorical,omitempty"`
	DropFirst   *bool    `json:"drop_first,omitempty" yaml:"drop_first,omitempty"`
}

// ModelData selects and configures the classifier
type ModelData struct {
	// Type is "logistic" (local model file) or "http" (remote scoring endpoint)
	Type         string   `json:"type" yaml:"type"`
	Path         string   `json:"path,omitempty" yaml:"path,omitempty"`
	URL          string   `json:"url,omitempty" yaml:"url,omitempty"`
	Timeout      string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	FeatureNames []string `json:"feature_names,omitempty" yaml:"feature_names,omitempty"`
}

// StorageData holds the configuration for the prediction store. At most one
// backend may be configured.
type StorageData struct {
	SQLite      *SQLiteData      `json:"sqlite,omitempty" yaml:"sqlite,omitempty"`
	TimescaleDB *TimescaleDBData `json:"timescaledb,omitempty" yaml:"timescaledb,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path" yaml:"path"`
}

type TimescaleDBData struct {
	ConnectionString string `json:"connection_string" yaml:"connection_string"`
}

// RESTServerData configures the HTTP serving shell
type RESTServerData struct {
	ListenAddr     string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty"`
	Port           int    `json:"port,omitempty" yaml:"port,omitempty"`
	Cert           string `json:"cert,omitempty" yaml:"cert,omitempty"`
	Key            string `json:"key,omitempty" yaml:"key,omitempty"`
	MaxUploadBytes int64  `json:"max_upload_bytes,omitempty" yaml:"max_upload_bytes,omitempty"`
}

// Default header aliases, including the names used in the plant's exports.
var (
	DefaultStationColumns = []string{"station", "stacja"}
	DefaultLineColumns    = []string{"line", "linia"}
	DefaultDayColumns     = []string{"day", "date", "data_dzienna"}
	DefaultFailureColumns = []string{"failure", "failed", "awaria"}
	DefaultShiftColumns   = []string{"shift", "zmiana"}
)

// ApplyDefaults fills unset fields with their default values
func (c *ConfigData) ApplyDefaults() {
	if c.Input.DayLayout == "" {
		c.Input.DayLayout = "2006-01-02"
	}
	if c.Input.Delimiter == "" {
		c.Input.Delimiter = ","
	}
	if c.Input.AggregateDuplicates == nil {
		c.Input.AggregateDuplicates = boolPtr(true)
	}

	cols := &c.Input.Columns
	if len(cols.Station) == 0 {
		cols.Station = DefaultStationColumns
	}
	if len(cols.Line) == 0 {
		cols.Line = DefaultLineColumns
	}
	if len(cols.Day) == 0 {
		cols.Day = DefaultDayColumns
	}
	if len(cols.Failure) == 0 {
		cols.Failure = DefaultFailureColumns
	}
	if len(cols.Shift) == 0 {
		cols.Shift = DefaultShiftColumns
	}

	if c.Features.Workers == 0 {
		c.Features.Workers = 1
	}
	if c.Features.DropFirst == nil {
		c.Features.DropFirst = boolPtr(true)
	}

	if c.Model.Type == "" {
		c.Model.Type = "logistic"
	}
	if c.Model.Timeout == "" {
		c.Model.Timeout = "30s"
	}

	if c.REST != nil {
		if c.REST.ListenAddr == "" {
			c.REST.ListenAddr = "0.0.0.0"
		}
		if c.REST.Port == 0 {
			c.REST.Port = 8080
		}
		if c.REST.MaxUploadBytes == 0 {
			c.REST.MaxUploadBytes = 32 << 20
		}
	}
}

// Validate checks the configuration for internal consistency
func (c *ConfigData) Validate() error {
	var errs []error

	if len([]rune(c.Input.Delimiter)) != 1 {
		errs = append(errs, fmt.Errorf("input.delimiter must be a single character, got %q", c.Input.Delimiter))
	}
	if c.Features.Workers < 0 {
		errs = append(errs, fmt.Errorf("features.workers must not be negative"))
	}

	switch c.Model.Type {
	case "logistic":
		if c.Model.Path == "" {
			errs = append(errs, errors.New("model.path is required for the logistic model"))
		}
	case "http":
		if c.Model.URL == "" {
			errs = append(errs, errors.New("model.url is required for the http model"))
		}
		if len(c.Model.FeatureNames) == 0 {
			errs = append(errs, errors.New("model.feature_names is required for the http model"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported model type %q, use 'logistic' or 'http'", c.Model.Type))
	}

	if c.Storage.SQLite != nil && c.Storage.TimescaleDB != nil {
		errs = append(errs, errors.New("only one storage backend may be configured"))
	}
	if c.Storage.SQLite != nil && c.Storage.SQLite.Path == "" {
		errs = append(errs, errors.New("storage.sqlite.path is required"))
	}
	if c.Storage.TimescaleDB != nil && c.Storage.TimescaleDB.ConnectionString == "" {
		errs = append(errs, errors.New("storage.timescaledb.connection_string is required"))
	}

	return errors.Join(errs...)
}

func boolPtr(b bool) *bool { return &b }
