package provider

import (
	"context"
	"testing"
)

func Test_New_UnknownBackend(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), &Config{Backend: "telepathy"}); err == nil {
		t.Error("want error for unknown backend")
	}
}

func Test_New_OpenAIRequiresKey(t *testing.T) {
	t.Parallel()
	_, err := New(context.Background(), &Config{Backend: BackendOpenAI, Model: "gpt-4o"})
	if err == nil {
		t.Error("want error when API key is missing")
	}
}

func Test_New_AzureRequiredFields(t *testing.T) {
	t.Parallel()
	cases := []Config{
		{Backend: BackendAzure},
		{Backend: BackendAzure, APIKey: "k"},
		{Backend: BackendAzure, APIKey: "k", BaseURL: "https://x.openai.azure.com"},
	}
	for i, cfg := range cases {
		if _, err := New(context.Background(), &cfg); err == nil {
			t.Errorf("case %d: want error for incomplete azure config", i)
		}
	}
}

func Test_NewFromEnv_DefaultsToOllama(t *testing.T) {
	t.Setenv("MODEL_PROVIDER", "")
	m, err := NewFromEnv(context.Background())
	if err != nil {
		t.Fatalf("ollama default: %v", err)
	}
	if m == nil {
		t.Error("want a chat model")
	}
}
