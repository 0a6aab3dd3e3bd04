// Package openwake provides a wake.Classifier backed by an openWakeWord
// sidecar process over HTTP.
//
// The sidecar wraps the openWakeWord ONNX models behind a small REST API:
//
//	POST /predict  {"samples":[...]}  ->  {"scores":{"hey_jarvis":0.93}}
//	POST /reset                       ->  200
//	GET  /health                      ->  200
//
// One classifier instance corresponds to one sidecar session; the sidecar
// keeps the rolling audio window between /predict calls.
package openwake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/earshot/pkg/provider/wake"
)

const defaultTimeout = 5 * time.Second

// Compile-time assertions that Classifier satisfies the wake interfaces.
var (
	_ wake.Classifier = (*Classifier)(nil)
	_ wake.Pinger     = (*Classifier)(nil)
)

// Option is a functional option for configuring a Classifier.
type Option func(*Classifier)

// WithTimeout sets the per-request HTTP timeout. Defaults to 5 s; prediction
// runs once per audio frame, so this should stay well below the frame
// interval budget.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		c.httpClient.Timeout = d
	}
}

// Classifier implements wake.Classifier against an openWakeWord sidecar.
type Classifier struct {
	serverURL  string
	httpClient *http.Client
}

// New creates a Classifier that connects to the sidecar at serverURL (e.g.,
// "http://localhost:9000"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Classifier, error) {
	if serverURL == "" {
		return nil, errors.New("openwake: serverURL must not be empty")
	}
	c := &Classifier{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// predictRequest is the JSON body sent to POST /predict.
type predictRequest struct {
	Samples []float32 `json:"samples"`
}

// predictResponse is the JSON body returned by POST /predict.
type predictResponse struct {
	Scores map[string]float64 `json:"scores"`
}

// Predict submits one audio frame and returns the per-phrase confidence
// scores.
func (c *Classifier) Predict(ctx context.Context, frame []float32) (map[string]float64, error) {
	body, err := json.Marshal(predictRequest{Samples: frame})
	if err != nil {
		return nil, fmt.Errorf("openwake: marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openwake: create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openwake: predict: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openwake: predict returned HTTP %d", resp.StatusCode)
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("openwake: decode predict response: %w", err)
	}
	return result.Scores, nil
}

// Reset clears the sidecar's rolling audio window.
func (c *Classifier) Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/reset", nil)
	if err != nil {
		return fmt.Errorf("openwake: create reset request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openwake: reset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("openwake: reset returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// Ping verifies the sidecar is reachable via its health endpoint.
func (c *Classifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("openwake: create ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openwake: ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openwake: ping returned HTTP %d", resp.StatusCode)
	}
	return nil
}
