// Package classifier defines the failure classifier consumed by the
// prediction service and provides a local logistic model and a client for a
// remotely served model.
package classifier

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/chrissnell/failcast/pkg/config"
)

// Labels produced by a Classifier.
const (
	NoFailure       = 0
	FailureExpected = 1
)

// Classifier predicts a 0/1 failure label per row of a feature matrix. The
// matrix columns must be exactly FeatureNames, in order.
type Classifier interface {
	FeatureNames() []string
	Predict(ctx context.Context, features *mat.Dense) ([]int, error)
}

// New builds the classifier selected by the model configuration.
func New(c config.ModelData) (Classifier, error) {
	switch c.Type {
	case "logistic", "":
		return LoadLogisticModel(c.Path)
	case "http":
		timeout, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid model timeout %q: %w", c.Timeout, err)
		}
		return NewHTTPClassifier(c.URL, c.FeatureNames, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported model type: %s", c.Type)
	}
}

func checkDims(features *mat.Dense, want int) (int, error) {
	if features == nil {
		return 0, fmt.Errorf("nil feature matrix")
	}
	rows, cols := features.Dims()
	if cols != want {
		return 0, fmt.Errorf("feature matrix has %d columns, model expects %d", cols, want)
	}
	return rows, nil
}
