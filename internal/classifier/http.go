package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"gonum.org/v1/gonum/mat"
)

// HTTPClassifier sends feature matrices to a remote scoring endpoint, such as
// the Python service hosting the trained gradient-boosting model.
type HTTPClassifier struct {
	url      string
	features []string
	client   *http.Client
}

type scoreRequest struct {
	FeatureNames []string     `json:"feature_names"`
	Rows         [][]*float64 `json:"rows"`
}

type scoreResponse struct {
	Labels []int  `json:"labels"`
	Error  string `json:"error,omitempty"`
}

// NewHTTPClassifier creates a client for the scoring endpoint at url.
func NewHTTPClassifier(url string, featureNames []string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		url:      url,
		features: featureNames,
		client:   &http.Client{Timeout: timeout},
	}
}

// FeatureNames returns the remote model's input schema.
func (h *HTTPClassifier) FeatureNames() []string {
	return h.features
}

// Predict posts the rows of features and returns the labels the endpoint
// assigns. NaN values are sent as JSON null.
func (h *HTTPClassifier) Predict(ctx context.Context, features *mat.Dense) ([]int, error) {
	rows, err := checkDims(features, len(h.features))
	if err != nil {
		return nil, err
	}

	req := scoreRequest{
		FeatureNames: h.features,
		Rows:         make([][]*float64, rows),
	}
	for i := 0; i < rows; i++ {
		raw := mat.Row(nil, i, features)
		row := make([]*float64, len(raw))
		for j := range raw {
			if !math.IsNaN(raw[j]) {
				row[j] = &raw[j]
			}
		}
		req.Rows[i] = row
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error encoding scoring request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating scoring request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error calling scoring endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading scoring response: %w", err)
	}

	var sr scoreResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("scoring endpoint returned %s", resp.Status)
		}
		return nil, fmt.Errorf("error decoding scoring response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scoring endpoint returned %s: %s", resp.Status, sr.Error)
	}

	if len(sr.Labels) != rows {
		return nil, fmt.Errorf("scoring endpoint returned %d labels for %d rows", len(sr.Labels), rows)
	}
	for i, l := range sr.Labels {
		if l != NoFailure && l != FailureExpected {
			return nil, fmt.Errorf("scoring endpoint returned non-binary label %d at row %d", l, i)
		}
	}
	return sr.Labels, nil
}
