// Package embedder provides retrieval.Embedder implementations for turning
// text into dense vectors. Backends are plain HTTP (Ollama, OpenAI, Azure
// OpenAI) so no extra SDK is pulled in. Embedding is optional in this system:
// a nil embedder means keyword indexing, and the factory returns nil rather
// than an error when embeddings are disabled outright.
package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/dataq-go/internal/retrieval"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// DefaultDimensions returns the default embedding vector size for the given
// backend name, for callers that pre-create a vector collection.
// EMBEDDING_DIMENSIONS always wins when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	if backend == "ollama" {
		return defaultOllamaDimensions
	}
	return defaultOpenAIDimensions
}

// NewFromEnv constructs an embedder from the environment.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER — "none" disables embedding (keyword indexing);
//     unset inherits MODEL_PROVIDER, then defaults to ollama
//  2. EMBEDDING_MODEL — overrides the backend's default model
//  3. EMBEDDING_API_KEY / EMBEDDING_ENDPOINT — override the chat provider's
//     inherited credentials
//  4. EMBEDDING_DIMENSIONS — overrides the default dimensions
//
// A nil, nil return means embedding is disabled, not failed.
func NewFromEnv() (retrieval.Embedder, error) {
	backend := os.Getenv("EMBEDDING_PROVIDER")
	if backend == "" {
		backend = getEnvOrDefault("MODEL_PROVIDER", "ollama")
	}

	// A chat model cannot embed; warn but let the backend reject it so the
	// caller can still fall back to keyword indexing.
	if m := os.Getenv("EMBEDDING_MODEL"); m != "" && LooksLikeChatModel(m) {
		slog.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", m))
	}

	switch backend {
	case "none", "keyword":
		return nil, nil

	case "ollama":
		host := os.Getenv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllama(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := firstEnv("EMBEDDING_API_KEY", "OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := os.Getenv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		return NewOpenAI(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		}), nil

	case "azure":
		apiKey := firstEnv("EMBEDDING_API_KEY", "AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		endpoint := firstEnv("EMBEDDING_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAI(&OpenAIConfig{
			BaseURL:    endpoint + "/openai",
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview"),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: none, ollama, openai, azure", backend)
	}
}

// chatModelFragments are name fragments of chat/completion models that are
// not embedding models. A match means the operator probably set
// EMBEDDING_MODEL to the wrong thing.
var chatModelFragments = []string{
	"gpt-4", "gpt-3.5", "o1", "o3",
	"llama", "mistral", "mixtral", "gemma", "phi-",
	"claude", "deepseek", "qwen",
}

// LooksLikeChatModel reports whether the model name resembles a chat model
// rather than a dedicated embedding model.
func LooksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, f := range chatModelFragments {
		if strings.Contains(lower, f) {
			return true
		}
	}
	return false
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnvOrDefault returns the variable's value, or fallback when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the variable's integer value, or fallback when unset,
// empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
