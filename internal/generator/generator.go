// Package generator produces the natural-language answer text for the RAG
// path. The model-backed generator prompts an LLM with the retrieved context;
// the template generator is a deterministic fallback that works with no model
// configured, so the engine always has a generation path.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/dataq-go/internal/budget"
	"github.com/54b3r/dataq-go/internal/logging"
)

// Generator turns a question plus retrieved context into answer text.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Generate returns answer text for the question given the assembled
	// context block. contextBlock may be empty.
	Generate(ctx context.Context, question, contextBlock string) (string, error)
}

// systemPrompt frames the model's role for grounded answering.
const systemPrompt = `You are a data analyst assistant. Answer the user's question using only the provided dataset context. Be concise and concrete: quote the numbers and column names from the context. If the context does not contain the answer, say so plainly.`

// Model generates answers with an LLM chat model.
type Model struct {
	// chat is the backing chat model.
	chat model.BaseChatModel
}

// NewModel constructs a model-backed generator.
func NewModel(chat model.BaseChatModel) (*Model, error) {
	if chat == nil {
		return nil, fmt.Errorf("generator: chat model must not be nil")
	}
	return &Model{chat: chat}, nil
}

// Generate prompts the chat model with the context block and question.
func (g *Model) Generate(ctx context.Context, question, contextBlock string) (string, error) {
	user := question
	if contextBlock != "" {
		user = fmt.Sprintf("Dataset context:\n%s\n\nQuestion: %s", contextBlock, question)
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(user),
	}
	logging.FromContext(ctx).Debug("prompt assembled",
		slog.Int("estimated_tokens", budget.EstimateMessages(msgs)))

	out, err := g.chat.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generator: model generate: %w", err)
	}
	text := strings.TrimSpace(out.Content)
	if text == "" {
		return "", fmt.Errorf("generator: model returned empty content")
	}
	return text, nil
}

// Template is the no-model fallback generator: it restates the retrieved
// context as the answer. Deterministic, and good enough to keep the RAG path
// alive without an LLM.
type Template struct{}

// NewTemplate constructs the template generator.
func NewTemplate() *Template { return &Template{} }

// Generate renders the context block into a plain text answer.
func (g *Template) Generate(_ context.Context, question, contextBlock string) (string, error) {
	if strings.TrimSpace(contextBlock) == "" {
		return fmt.Sprintf("No indexed information was found for: %s", question), nil
	}
	return fmt.Sprintf("Based on the indexed data:\n%s", contextBlock), nil
}
