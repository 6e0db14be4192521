package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/pet-microclimate/internal/domain"
)

// Remote calls an HTTP inference endpoint that serves the PET model.
type Remote struct {
	url        string
	httpClient *http.Client
}

// NewRemote creates a client for the inference endpoint at url.
func NewRemote(url string, timeout time.Duration) *Remote {
	return &Remote{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type predictRequest struct {
	Rows []domain.Features `json:"rows"`
}

type predictResponse struct {
	Predictions []float64 `json:"predictions"`
}

// Predict posts the feature rows and returns the model output.
func (m *Remote) Predict(ctx context.Context, rows []domain.Features) ([]float64, error) {
	body, err := json.Marshal(predictRequest{Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("model server error: status %d: %s", resp.StatusCode, msg)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if len(out.Predictions) != len(rows) {
		return nil, fmt.Errorf("model returned %d predictions for %d rows", len(out.Predictions), len(rows))
	}
	return out.Predictions, nil
}
