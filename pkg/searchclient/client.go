// Package searchclient calls the search endpoint the way the web client
// does: one multipart upload, one JSON response.
package searchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/tyarity/boothlens/pkg/types"
)

// Endpoint is the fixed search path.
const Endpoint = "/api/search"

// DefaultTimeout bounds one search request end to end.
const DefaultTimeout = 30 * time.Second

// Client posts cropped image blobs to a search server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a Client for the given server base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Search uploads the blob in multipart field "file" and returns the
// ranked results. A response without a results field is an empty result
// set, not an error; any transport or non-2xx failure is.
func (c *Client) Search(ctx context.Context, imageData []byte) ([]types.SearchResultItem, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "crop.jpg")
	if err != nil {
		return nil, fmt.Errorf("searchclient: build form: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("searchclient: write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("searchclient: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("searchclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("searchclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("searchclient: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("searchclient: server returned %d", resp.StatusCode)
	}

	var parsed types.SearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("searchclient: parse response: %w", err)
	}
	// A missing results field decodes as nil; normalize so callers can
	// range without a nil check.
	if parsed.Results == nil {
		return []types.SearchResultItem{}, nil
	}
	return parsed.Results, nil
}
