// Package router is the orchestration core: it decides, per question,
// whether to answer through retrieval-augmented generation or through direct
// structured analysis (SQL over the introspected schema, statistics over a
// CSV dataset), runs the chosen path, and returns a self-describing Answer.
// Collaborator failures degrade the answer; they never escape as panics and
// only invalid requests surface as errors.
package router

import (
	"fmt"

	"github.com/54b3r/dataq-go/internal/retrieval"
	"github.com/54b3r/dataq-go/internal/tabular"
)

// Mode is the caller's routing override.
type Mode int

const (
	// ModeAuto lets the classifier pick the strategy.
	ModeAuto Mode = iota
	// ModeRAG forces retrieval-augmented generation when an index exists.
	ModeRAG
	// ModeTraditional forces direct structured analysis.
	ModeTraditional
)

// String returns the mode name accepted by ParseMode.
func (m Mode) String() string {
	switch m {
	case ModeRAG:
		return "rag"
	case ModeTraditional:
		return "traditional"
	default:
		return "auto"
	}
}

// ConfigurationError reports an invalid routing configuration value, such as
// an unknown mode string. It is a caller error, distinct from the degraded
// answers produced when a collaborator fails.
type ConfigurationError struct {
	// Field names the offending setting.
	Field string
	// Value is the rejected value.
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("router: invalid %s %q", e.Field, e.Value)
}

// ParseMode converts a mode string into a Mode. The empty string means auto.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "rag":
		return ModeRAG, nil
	case "traditional", "direct":
		return ModeTraditional, nil
	default:
		return ModeAuto, &ConfigurationError{Field: "mode", Value: s}
	}
}

// Strategy names the answering path that was taken.
type Strategy string

const (
	// StrategyRAG is retrieval-augmented generation.
	StrategyRAG Strategy = "rag"
	// StrategyTraditional is direct structured analysis.
	StrategyTraditional Strategy = "traditional"
)

// Routing decision reasons. These appear in answers, logs, and metrics
// labels, so they are fixed strings rather than free-form text.
const (
	ReasonForcedTraditional = "traditional_forced"
	ReasonForcedRAG         = "rag_forced"
	ReasonForcedRAGNoIndex  = "rag_forced_index_empty"
	ReasonAnalytical        = "analytical_question"
	ReasonStructured        = "structured_question"
	ReasonNoIndex           = "no_indexed_data"
)

// Decision records why a strategy was chosen.
type Decision struct {
	// Strategy is the chosen answering path.
	Strategy Strategy `json:"strategy"`
	// Reason is the fixed reason code for the choice.
	Reason string `json:"reason"`
	// Score is the classifier score (analytical minus structured) when the
	// classifier ran; zero for forced modes.
	Score int `json:"score"`
	// Matched lists the classifier rules that fired, for explainability.
	Matched []string `json:"matched,omitempty"`
}

// Request is one question to answer.
type Request struct {
	// DatasetID names the dataset to answer against.
	DatasetID string `json:"dataset"`
	// Question is the natural-language question.
	Question string `json:"question"`
	// Mode optionally overrides routing.
	Mode Mode `json:"-"`
}

// Answer is the result of routing and answering one question.
type Answer struct {
	// ID uniquely identifies this answer for the history trail.
	ID string `json:"id"`
	// DatasetID names the dataset the answer was computed against.
	DatasetID string `json:"dataset"`
	// Question echoes the input question.
	Question string `json:"question"`
	// Text is the human-readable answer.
	Text string `json:"text"`
	// Decision records the routing choice and why.
	Decision Decision `json:"decision"`
	// Retrieved lists the chunks used by the RAG path, in rank order.
	Retrieved []retrieval.Result `json:"retrieved,omitempty"`
	// SQL is the generated statement when the schema path ran.
	SQL string `json:"sql,omitempty"`
	// Statistic is the machine-readable value when the tabular path ran.
	Statistic *tabular.Statistic `json:"statistic,omitempty"`
	// Degraded is set when a collaborator failed and the answer carries an
	// explanation or fallback instead of the intended result.
	Degraded bool `json:"degraded,omitempty"`
}
