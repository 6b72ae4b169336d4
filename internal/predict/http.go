package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPModel calls an inference endpoint serving the trained model.
type HTTPModel struct {
	URL    string
	client *http.Client
}

// NewHTTPModel creates a client for the inference endpoint at url.
func NewHTTPModel(url string, timeout time.Duration) *HTTPModel {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPModel{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Predict posts the single-row feature vector and parses the raw output.
func (m *HTTPModel) Predict(ctx context.Context, f Features) (Output, error) {
	body := map[string]any{
		"feature_names": FeatureNames,
		"features":      [][]float64{f[:]},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return Output{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", m.URL, bytes.NewReader(data))
	if err != nil {
		return Output{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Output{}, fmt.Errorf("model API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Output{}, fmt.Errorf("model API returned %d: %s", resp.StatusCode, string(respBody))
	}

	return ParseOutput(string(respBody))
}
