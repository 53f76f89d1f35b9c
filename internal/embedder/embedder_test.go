package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func Test_Ollama_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Model != "nomic-embed-text" || len(req.Input) != 2 {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{
			Embeddings: [][]float32{{1, 2}, {3, 4}},
		})
	}))
	defer srv.Close()

	e := NewOllama(&OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(got) != 2 || got[1][0] != 3 {
		t.Errorf("embeddings = %v", got)
	}
}

func Test_Ollama_EmbedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Error: "model not found"})
	}))
	defer srv.Close()

	e := NewOllama(&OllamaConfig{Host: srv.URL, Model: "missing"})
	if _, err := e.Embed(context.Background(), []string{"a"}); err == nil {
		t.Error("want error from 500 response")
	}
}

func Test_OpenAI_Embed_OutOfOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth header = %q", got)
		}
		// Data intentionally out of order.
		w.Write([]byte(`{"data":[{"embedding":[3,4],"index":1},{"embedding":[1,2],"index":0}]}`))
	}))
	defer srv.Close()

	e := NewOpenAI(&OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Model: "text-embedding-3-small"})
	got, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if got[0][0] != 1 || got[1][0] != 3 {
		t.Errorf("embeddings not reordered by index: %v", got)
	}
}

func Test_NewFromEnv_None(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "none")
	e, err := NewFromEnv()
	if err != nil {
		t.Fatalf("none backend: %v", err)
	}
	if e != nil {
		t.Error("none backend should yield a nil embedder")
	}
}

func Test_NewFromEnv_Unknown(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "carrier-pigeon")
	if _, err := NewFromEnv(); err == nil {
		t.Error("want error for unknown backend")
	}
}

func Test_NewFromEnv_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("EMBEDDING_API_KEY", "")
	if _, err := NewFromEnv(); err == nil {
		t.Error("want error when openai key is missing")
	}
}

func Test_NewFromEnv_ChatModelNameStillConstructs(t *testing.T) {
	// A chat model name in EMBEDDING_MODEL is a misconfiguration worth a
	// warning, but construction still succeeds and the backend rejects it
	// at embed time.
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("EMBEDDING_MODEL", "llama3.2")
	e, err := NewFromEnv()
	if err != nil {
		t.Fatalf("chat-like model name must not fail construction: %v", err)
	}
	if e == nil {
		t.Error("want a non-nil embedder")
	}
}

func Test_LooksLikeChatModel(t *testing.T) {
	t.Parallel()
	if !LooksLikeChatModel("llama3.2") {
		t.Error("llama3.2 should look like a chat model")
	}
	if LooksLikeChatModel("nomic-embed-text") {
		t.Error("nomic-embed-text should not look like a chat model")
	}
}
