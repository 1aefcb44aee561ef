package predict

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/failcast/internal/types"
	"github.com/chrissnell/failcast/pkg/config"
)

// thresholdClassifier labels a row as failing when its first feature is at
// least min. It records the matrix it was given.
type thresholdClassifier struct {
	names []string
	min   float64
	got   *mat.Dense
	err   error
}

func (c *thresholdClassifier) FeatureNames() []string { return c.names }

func (c *thresholdClassifier) Predict(_ context.Context, x *mat.Dense) ([]int, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.got = x
	r, _ := x.Dims()
	labels := make([]int, r)
	for i := range labels {
		if x.At(i, 0) >= c.min {
			labels[i] = 1
		}
	}
	return labels, nil
}

func testConfig() *config.ConfigData {
	cfg := &config.ConfigData{Model: config.ModelData{Path: "unused.json"}}
	cfg.ApplyDefaults()
	return cfg
}

func raw(rows ...[4]string) []types.RawEvent {
	out := make([]types.RawEvent, len(rows))
	for i, r := range rows {
		out[i] = types.RawEvent{Row: i + 2, Station: r[0], Line: r[1], Day: r[2], Failure: r[3]}
	}
	return out
}

func TestServiceRun(t *testing.T) {
	clf := &thresholdClassifier{names: []string{"failures_7d", "line_L2", "station_B", "station_Z"}, min: 2}
	svc := NewService(testConfig(), clf, zap.NewNop().Sugar())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	batch, err := svc.Run(context.Background(), raw(
		[4]string{"A", "L1", "2024-05-01", "1"},
		[4]string{"B", "L2", "2024-05-01", "0"},
		[4]string{"A", "L1", "2024-05-02", "1"},
		[4]string{"A", "L1", "2024-05-03", "0"},
		[4]string{"A", "L1", "2024-05-03", "1"},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.ID == "" || !batch.CreatedAt.Equal(svc.now()) {
		t.Errorf("unexpected batch metadata: %s %s", batch.ID, batch.CreatedAt)
	}
	// The duplicate A/2024-05-03 rows collapse into one failing day.
	if len(batch.Predictions) != 4 {
		t.Fatalf("expected 4 predictions, got %d", len(batch.Predictions))
	}

	var labels []int
	var stations []string
	for _, p := range batch.Predictions {
		labels = append(labels, p.Label)
		stations = append(stations, p.Station)
	}
	if want := []string{"A", "A", "A", "B"}; !reflect.DeepEqual(stations, want) {
		t.Errorf("expected stations %v, got %v", want, stations)
	}
	if want := []int{0, 0, 1, 0}; !reflect.DeepEqual(labels, want) {
		t.Errorf("expected labels %v, got %v", want, labels)
	}
	if batch.Predictions[2].Status != StatusFailureExpected || batch.Predictions[0].Status != StatusNoFailure {
		t.Errorf("unexpected statuses: %+v", batch.Predictions)
	}
	if !batch.Predictions[2].Failed {
		t.Error("collapsed duplicate day should have failed")
	}

	// station_Z never appears and must be zero-filled; B's row has
	// line_L2 and station_B set.
	want := mat.NewDense(4, 4, []float64{
		0, 0, 0, 0,
		1, 0, 0, 0,
		2, 0, 0, 0,
		0, 1, 1, 0,
	})
	if !mat.Equal(clf.got, want) {
		t.Errorf("unexpected aligned matrix\n%v", mat.Formatted(clf.got))
	}
}

func TestServiceRunEmpty(t *testing.T) {
	svc := NewService(testConfig(), &thresholdClassifier{names: []string{"failures_7d"}}, zap.NewNop().Sugar())

	batch, err := svc.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Predictions == nil || len(batch.Predictions) != 0 {
		t.Errorf("expected empty predictions, got %v", batch.Predictions)
	}
}

func TestServiceRunErrors(t *testing.T) {
	t.Run("malformed row", func(t *testing.T) {
		svc := NewService(testConfig(), &thresholdClassifier{names: []string{"failures_7d"}}, zap.NewNop().Sugar())
		_, err := svc.Run(context.Background(), raw([4]string{"A", "L1", "2024-05-01", "maybe"}))

		var me *types.MalformedInputError
		if !errors.As(err, &me) {
			t.Fatalf("expected MalformedInputError, got %v", err)
		}
		if me.Row != 2 || me.Station != "A" {
			t.Errorf("unexpected error details %+v", me)
		}
	})

	t.Run("classifier failure", func(t *testing.T) {
		boom := errors.New("boom")
		svc := NewService(testConfig(), &thresholdClassifier{names: []string{"failures_7d"}, err: boom}, zap.NewNop().Sugar())
		_, err := svc.Run(context.Background(), raw([4]string{"A", "L1", "2024-05-01", "0"}))
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped classifier error, got %v", err)
		}
	})
}

func TestServiceKeepsDuplicatesWhenAggregationDisabled(t *testing.T) {
	cfg := testConfig()
	off := false
	cfg.Input.AggregateDuplicates = &off

	svc := NewService(cfg, &thresholdClassifier{names: []string{"failures_7d"}}, zap.NewNop().Sugar())
	records, err := svc.Derive(raw(
		[4]string{"A", "L1", "2024-05-01", "0"},
		[4]string{"A", "L1", "2024-05-01", "1"},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected duplicates to be kept, got %d records", len(records))
	}
}
