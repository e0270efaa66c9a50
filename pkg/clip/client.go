// Package clip talks to an external CLIP inference service over HTTP and
// returns L2-normalized image embeddings.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
)

// VectorSize is the embedding width of the ViT-B/32 CLIP model backing
// the index.
const VectorSize = 512

// DefaultTimeout bounds a single embedding call. The transport default is
// not relied on.
const DefaultTimeout = 30 * time.Second

// Embedder produces an image embedding for raw image bytes.
type Embedder interface {
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
}

// Client is an Embedder backed by an HTTP CLIP service.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type embedRequest struct {
	Model string `json:"model,omitempty"`
	Image string `json:"image"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

// NewClient creates a CLIP client for the given server URL.
func NewClient(serverURL, model string) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8001"
	}
	return &Client{
		baseURL: strings.TrimSuffix(serverURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

// Embed sends the image to the service and returns its normalized
// embedding. The image travels base64-encoded in a JSON body.
func (c *Client) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	reqBody := embedRequest{
		Model: c.model,
		Image: base64.StdEncoding.EncodeToString(imageData),
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("clip: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("clip: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("clip: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out embedResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("clip: parse response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("clip: server error: %s", out.Error)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("clip: empty embedding in response")
	}

	return Normalize(out.Embedding), nil
}

// Normalize scales a vector to unit L2 norm and narrows it to float32,
// which is what the index stores. A zero vector is returned unchanged.
func Normalize(v []float64) []float32 {
	norm := floats.Norm(v, 2)
	out := make([]float32, len(v))
	for i, x := range v {
		if norm > 0 {
			out[i] = float32(x / norm)
		} else {
			out[i] = float32(x)
		}
	}
	return out
}
