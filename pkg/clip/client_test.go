package clip

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	var gotPath, gotModel string
	var gotImage []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		gotModel = req.Model
		gotImage, _ = base64.StdEncoding.DecodeString(req.Image)
		json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{3, 4}})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "test-model")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	vec, err := client.Embed(context.Background(), []byte("image-bytes"))
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if gotPath != "/embed" {
		t.Errorf("Expected POST to /embed, got %s", gotPath)
	}
	if gotModel != "test-model" {
		t.Errorf("Expected model test-model, got %s", gotModel)
	}
	if string(gotImage) != "image-bytes" {
		t.Errorf("Image bytes did not round-trip: %q", gotImage)
	}

	// Response vector comes back L2-normalized.
	want := []float32{0.6, 0.8}
	for i := range want {
		if math.Abs(float64(vec[i]-want[i])) > 1e-6 {
			t.Errorf("Expected normalized vector %v, got %v", want, vec)
			break
		}
	}
}

func TestEmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	if _, err := client.Embed(context.Background(), []byte("x")); err == nil {
		t.Error("Expected error for 500 response")
	}
}

func TestEmbedErrorField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Error: "bad image"})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	if _, err := client.Embed(context.Background(), []byte("x")); err == nil {
		t.Error("Expected error when response carries an error field")
	}
}

func TestEmbedEmptyEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer server.Close()

	client, _ := NewClient(server.URL, "")
	if _, err := client.Embed(context.Background(), []byte("x")); err == nil {
		t.Error("Expected error for empty embedding")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float32
	}{
		{"unit already", []float64{1, 0, 0}, []float32{1, 0, 0}},
		{"scaled", []float64{0, 3, 4}, []float32{0, 0.6, 0.8}},
		{"zero vector unchanged", []float64{0, 0}, []float32{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d elements, got %d", len(tt.want), len(got))
			}
			for i := range tt.want {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-6 {
					t.Errorf("Expected %v, got %v", tt.want, got)
					break
				}
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.baseURL != "http://localhost:8001" {
		t.Errorf("Expected default base URL, got %s", client.baseURL)
	}

	client, _ = NewClient("http://example.com/", "m")
	if client.baseURL != "http://example.com" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
}
