package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestModelDimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"nomic-embed-text:latest", 768},
		{"mxbai-embed-large", 1024},
		{"all-minilm:l6-v2", 384},
		{"some-future-model", fallbackDimensions},
	}
	for _, tc := range tests {
		if got := modelDimensions(tc.model); got != tc.want {
			t.Errorf("modelDimensions(%q) = %d, want %d", tc.model, got, tc.want)
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Error("expected error without api key or base url")
	}
	if _, err := New("", "nomic-embed-text", WithBaseURL("http://localhost:11434/v1")); err != nil {
		t.Errorf("keyless local server rejected: %v", err)
	}
	if _, err := New("sk-test", "", WithDimensions(-1)); err == nil {
		t.Error("expected error for negative dimensions")
	}

	p, err := New("sk-test", "", WithOrganization("org-1"), WithDimensions(256))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("ModelID = %q, want %q", p.ModelID(), DefaultModel)
	}
	if p.Dimensions() != 256 {
		t.Errorf("Dimensions = %d, want 256", p.Dimensions())
	}
}

// embeddingServer answers /embeddings with a vector of length dims and
// records the request body.
func embeddingServer(t *testing.T, dims int, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/embeddings") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, got)

		vec := make([]float64, dims)
		for i := range vec {
			vec[i] = 0.5
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "nomic-embed-text",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": vec}},
			"usage":  map[string]any{"prompt_tokens": 3, "total_tokens": 3},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbed(t *testing.T) {
	var req map[string]any
	srv := embeddingServer(t, 768, &req)

	p, err := New("", "nomic-embed-text", WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	vec, err := p.Embed(context.Background(), "quarterly planning")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 768 || vec[0] != 0.5 {
		t.Errorf("vector len = %d, first = %v", len(vec), vec[0])
	}
	if req["input"] != "quarterly planning" || req["model"] != "nomic-embed-text" {
		t.Errorf("request = %v", req)
	}
	if _, ok := req["dimensions"]; ok {
		t.Error("dimensions sent although none were configured")
	}
}

func TestEmbed_DimensionMismatch(t *testing.T) {
	var req map[string]any
	srv := embeddingServer(t, 8, &req)

	p, err := New("sk-test", "text-embedding-3-small", WithBaseURL(srv.URL+"/v1/"), WithDimensions(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error when the server ignores the requested dimensions")
	}
	if req["dimensions"] != float64(4) {
		t.Errorf("dimensions = %v, want 4", req["dimensions"])
	}
}
