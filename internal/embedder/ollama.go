package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Ollama embeds text via the Ollama /api/embed endpoint. It is safe for
// concurrent use and needs no API key.
type Ollama struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// client is the shared HTTP client.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL.
	Host string
	// Model is the embedding model name.
	Model string
}

// NewOllama constructs an Ollama embedder from the given config.
func NewOllama(cfg *OllamaConfig) *Ollama {
	return &Ollama{
		host:   cfg.Host,
		model:  cfg.Model,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into embeddings, parallel to the input.
func (e *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedder: ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedder: ollama decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("embedder: ollama: %s", msg)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder: ollama returned %d embeddings for %d texts",
			len(result.Embeddings), len(texts))
	}
	return result.Embeddings, nil
}
