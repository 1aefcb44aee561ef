package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// LogisticModel is a logistic regression exported to JSON by the training
// job. A row is labelled FailureExpected when its predicted probability is
// at least Threshold. NaN inputs (a station that never failed has no
// days_since_last_failure) are replaced with MissingValue.
type LogisticModel struct {
	Features     []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold"`
	MissingValue float64   `json:"missing_value"`
}

// LoadLogisticModel reads and validates a model file.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading model file: %w", err)
	}

	m := &LogisticModel{Threshold: 0.5}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("error decoding model file %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model file %s: %w", path, err)
	}
	return m, nil
}

func (m *LogisticModel) validate() error {
	if len(m.Features) == 0 {
		return fmt.Errorf("no feature names")
	}
	if len(m.Weights) != len(m.Features) {
		return fmt.Errorf("%d weights for %d features", len(m.Weights), len(m.Features))
	}
	seen := make(map[string]struct{}, len(m.Features))
	for _, f := range m.Features {
		if _, ok := seen[f]; ok {
			return fmt.Errorf("duplicate feature %q", f)
		}
		seen[f] = struct{}{}
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return fmt.Errorf("threshold %v outside (0, 1)", m.Threshold)
	}
	return nil
}

// FeatureNames returns the model's input schema.
func (m *LogisticModel) FeatureNames() []string {
	return m.Features
}

// Probabilities returns the predicted failure probability of every row.
func (m *LogisticModel) Probabilities(features *mat.Dense) ([]float64, error) {
	rows, err := checkDims(features, len(m.Weights))
	if err != nil {
		return nil, err
	}

	x := features
	if hasNaN(features) {
		x = mat.DenseCopyOf(features)
		x.Apply(func(_, _ int, v float64) float64 {
			if math.IsNaN(v) {
				return m.MissingValue
			}
			return v
		}, x)
	}

	var z mat.VecDense
	z.MulVec(x, mat.NewVecDense(len(m.Weights), m.Weights))

	p := make([]float64, rows)
	for i := range p {
		p[i] = 1 / (1 + math.Exp(-(z.AtVec(i) + m.Intercept)))
	}
	return p, nil
}

// Predict labels every row of features.
func (m *LogisticModel) Predict(ctx context.Context, features *mat.Dense) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	probs, err := m.Probabilities(features)
	if err != nil {
		return nil, err
	}

	labels := make([]int, len(probs))
	for i, p := range probs {
		if p >= m.Threshold {
			labels[i] = FailureExpected
		}
	}
	return labels, nil
}

func hasNaN(a mat.Matrix) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(a.At(i, j)) {
				return true
			}
		}
	}
	return false
}
