package router

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/54b3r/dataq-go/internal/budget"
	"github.com/54b3r/dataq-go/internal/chunk"
	"github.com/54b3r/dataq-go/internal/classify"
	"github.com/54b3r/dataq-go/internal/generator"
	"github.com/54b3r/dataq-go/internal/logging"
	"github.com/54b3r/dataq-go/internal/retrieval"
	"github.com/54b3r/dataq-go/internal/schema"
	"github.com/54b3r/dataq-go/internal/sqlgen"
	"github.com/54b3r/dataq-go/internal/tabular"
)

// Recorder persists answers for the history trail. Implementations must
// tolerate concurrent calls.
type Recorder interface {
	// Record appends one answer to the history.
	Record(ctx context.Context, a *Answer) error
}

// Config holds the collaborators the engine orchestrates.
type Config struct {
	// Classifier scores questions. Nil uses the default rule set.
	Classifier *classify.Classifier

	// Registry holds the published indexes. Required.
	Registry *retrieval.Registry

	// Retriever scores queries against the registry. Required.
	Retriever *retrieval.Engine

	// Builder indexes loaded datasets. Required.
	Builder *retrieval.Builder

	// Generator produces RAG answer text. Nil uses the template fallback.
	Generator generator.Generator

	// Introspector is the relational backend. Nil disables the schema path.
	Introspector *schema.Introspector

	// History records answers. Nil disables recording.
	History Recorder

	// TopK is the retrieval depth for the RAG path (0 = retriever default).
	TopK int

	// MaxContextTokens bounds the assembled RAG context (0 = budget default).
	MaxContextTokens int
}

// Engine routes questions to the right answering path. It also owns the
// dataset catalog: loading a dataset registers it and publishes its index.
type Engine struct {
	classifier *classify.Classifier
	registry   *retrieval.Registry
	retriever  *retrieval.Engine
	builder    *retrieval.Builder
	gen        generator.Generator
	fallback   *generator.Template
	intro      *schema.Introspector
	history    Recorder
	topK       int
	maxTokens  int

	mu sync.RWMutex
	// datasets maps dataset ID to its loaded CSV data.
	datasets map[string]*tabular.Dataset
	// snap caches the last schema snapshot for SQL generation and
	// schema-description answers.
	snap *schema.Snapshot
}

// New constructs an Engine from the config.
func New(cfg *Config) (*Engine, error) {
	if cfg.Registry == nil || cfg.Retriever == nil || cfg.Builder == nil {
		return nil, fmt.Errorf("router: registry, retriever, and builder are required")
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.Default()
	}
	gen := cfg.Generator
	fallback := generator.NewTemplate()
	if gen == nil {
		gen = fallback
	}
	return &Engine{
		classifier: classifier,
		registry:   cfg.Registry,
		retriever:  cfg.Retriever,
		builder:    cfg.Builder,
		gen:        gen,
		fallback:   fallback,
		intro:      cfg.Introspector,
		history:    cfg.History,
		topK:       cfg.TopK,
		maxTokens:  cfg.MaxContextTokens,
		datasets:   make(map[string]*tabular.Dataset),
	}, nil
}

// LoadCSV registers a CSV dataset under the given ID and publishes its index.
func (e *Engine) LoadCSV(ctx context.Context, id, path string) (*tabular.Dataset, error) {
	ds, err := tabular.LoadCSVFile(id, path)
	if err != nil {
		return nil, err
	}
	return ds, e.registerDataset(ctx, id, ds)
}

// RegisterDataset registers an already-loaded dataset and publishes its index.
func (e *Engine) RegisterDataset(ctx context.Context, id string, ds *tabular.Dataset) error {
	return e.registerDataset(ctx, id, ds)
}

func (e *Engine) registerDataset(ctx context.Context, id string, ds *tabular.Dataset) error {
	e.mu.Lock()
	e.datasets[id] = ds
	e.mu.Unlock()

	if _, err := e.builder.Build(ctx, id, chunk.FromDataset(id, ds)); err != nil {
		return fmt.Errorf("router: index dataset %s: %w", id, err)
	}
	logging.FromContext(ctx).Info("dataset loaded",
		"dataset", id, "rows", ds.RowCount(), "columns", len(ds.Columns))
	return nil
}

// LoadSchema introspects the relational backend, publishes its chunks under
// the given ID, and caches the table names for SQL generation.
func (e *Engine) LoadSchema(ctx context.Context, id string) (*schema.Snapshot, error) {
	if e.intro == nil {
		return nil, fmt.Errorf("router: no database configured")
	}
	snap, err := e.intro.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("router: introspect: %w", err)
	}

	e.mu.Lock()
	e.snap = snap
	e.mu.Unlock()

	if _, err := e.builder.Build(ctx, id, chunk.FromSchema(id, snap)); err != nil {
		return nil, fmt.Errorf("router: index schema %s: %w", id, err)
	}
	logging.FromContext(ctx).Info("schema loaded", "dataset", id, "tables", len(snap.Tables))
	return snap, nil
}

// Datasets returns the IDs of all indexed datasets, sorted.
func (e *Engine) Datasets() []string {
	return e.registry.Datasets()
}

// Ask routes and answers one question. The only errors returned are request
// errors (empty question); everything downstream degrades into the Answer.
func (e *Engine) Ask(ctx context.Context, req Request) (*Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("router: question must not be empty")
	}

	log := logging.FromContext(ctx)
	a := &Answer{
		ID:        uuid.NewString(),
		DatasetID: req.DatasetID,
		Question:  req.Question,
		Decision:  e.decide(req),
	}
	log.Info("routing decided",
		"dataset", req.DatasetID,
		"strategy", string(a.Decision.Strategy),
		"reason", a.Decision.Reason,
		"score", a.Decision.Score)

	switch a.Decision.Strategy {
	case StrategyRAG:
		e.answerRAG(ctx, req, a)
	default:
		e.answerTraditional(ctx, req, a)
	}

	if e.history != nil {
		if err := e.history.Record(ctx, a); err != nil {
			log.Warn("history record failed", "answer", a.ID, "error", err)
		}
	}
	return a, nil
}

// decide picks the strategy. Forced modes win over the classifier; a forced
// RAG request against an empty index falls back to traditional with an
// explicit reason instead of failing.
func (e *Engine) decide(req Request) Decision {
	switch req.Mode {
	case ModeTraditional:
		return Decision{Strategy: StrategyTraditional, Reason: ReasonForcedTraditional}
	case ModeRAG:
		if e.indexEmpty(req.DatasetID) {
			return Decision{Strategy: StrategyTraditional, Reason: ReasonForcedRAGNoIndex}
		}
		return Decision{Strategy: StrategyRAG, Reason: ReasonForcedRAG}
	}

	res := e.classifier.Classify(req.Question)
	if !res.Analytical {
		return Decision{Strategy: StrategyTraditional, Reason: ReasonStructured,
			Score: res.Score, Matched: res.Matched}
	}
	if e.indexEmpty(req.DatasetID) {
		return Decision{Strategy: StrategyTraditional, Reason: ReasonNoIndex,
			Score: res.Score, Matched: res.Matched}
	}
	return Decision{Strategy: StrategyRAG, Reason: ReasonAnalytical,
		Score: res.Score, Matched: res.Matched}
}

func (e *Engine) indexEmpty(datasetID string) bool {
	ix, ok := e.registry.Get(datasetID)
	return !ok || ix.Len() == 0
}

// answerRAG retrieves context and generates the answer text. Retrieval or
// generation failure degrades to the template fallback rather than erroring.
func (e *Engine) answerRAG(ctx context.Context, req Request, a *Answer) {
	log := logging.FromContext(ctx)

	results, err := e.retriever.Retrieve(ctx, req.DatasetID, req.Question, e.topK)
	if err != nil {
		log.Warn("retrieval failed", "dataset", req.DatasetID, "error", err)
		a.Degraded = true
		a.Text = fmt.Sprintf("Retrieval failed (%v); no context was available for: %s", err, req.Question)
		return
	}
	results = budget.TrimResults(req.Question, results, e.maxTokens)
	a.Retrieved = results

	var parts []string
	for _, r := range results {
		parts = append(parts, r.Chunk.Text)
	}
	contextBlock := strings.Join(parts, "\n\n")

	text, err := e.gen.Generate(ctx, req.Question, contextBlock)
	if err != nil {
		log.Warn("generation failed, using template fallback", "dataset", req.DatasetID, "error", err)
		a.Degraded = true
		text, _ = e.fallback.Generate(ctx, req.Question, contextBlock)
	}
	a.Text = text
}

// answerTraditional dispatches to the schema or tabular collaborator. An
// ambiguous question goes to the loaded CSV dataset when one exists, else to
// the database.
func (e *Engine) answerTraditional(ctx context.Context, req Request, a *Answer) {
	ds := e.dataset(req.DatasetID)

	target := classify.Dispatch(req.Question)
	if target == classify.TargetAmbiguous {
		if ds != nil {
			target = classify.TargetTabular
		} else {
			target = classify.TargetSchema
		}
	}

	switch target {
	case classify.TargetTabular:
		if ds == nil {
			a.Degraded = true
			a.Text = fmt.Sprintf("No CSV dataset %q is loaded.", req.DatasetID)
			return
		}
		text, stat, err := ds.AnswerQuestion(req.Question)
		if err != nil {
			a.Degraded = true
			a.Text = fmt.Sprintf("Could not analyze dataset %q: %v", req.DatasetID, err)
			return
		}
		a.Text = text
		a.Statistic = stat

	default:
		e.answerSchema(ctx, req, a, ds)
	}
}

// answerSchema generates and executes SQL. When no statement can be built or
// no database is configured, it tries the CSV dataset before degrading.
func (e *Engine) answerSchema(ctx context.Context, req Request, a *Answer, ds *tabular.Dataset) {
	if e.intro == nil {
		if ds != nil {
			text, stat, err := ds.AnswerQuestion(req.Question)
			if err == nil {
				a.Text = text
				a.Statistic = stat
				return
			}
		}
		a.Degraded = true
		a.Text = "No database is configured for structured queries."
		return
	}

	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	// Questions about the schema itself are answered from the snapshot,
	// without generating SQL. Raw SQL always goes to the executor.
	rawSQL := strings.HasPrefix(strings.ToLower(strings.TrimSpace(req.Question)), "select")
	if snap != nil && !rawSQL && schemaMeta.MatchString(req.Question) {
		a.Text = describeSchema(snap)
		return
	}

	var tables []string
	if snap != nil {
		tables = snap.TableNames()
	}
	stmt, ok := sqlgen.Generate(req.Question, tables)
	if !ok {
		a.Degraded = true
		a.Text = fmt.Sprintf("Could not derive a SQL query from: %s", req.Question)
		return
	}
	a.SQL = stmt

	text, err := e.intro.Execute(ctx, stmt)
	if err != nil {
		logging.FromContext(ctx).Warn("query execution failed", "sql", stmt, "error", err)
		a.Degraded = true
		a.Text = fmt.Sprintf("Query failed: %v\nSQL: %s", err, stmt)
		return
	}
	a.Text = text
}

func (e *Engine) dataset(id string) *tabular.Dataset {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.datasets[id]
}

// schemaMeta matches questions about the schema itself rather than the data.
var schemaMeta = regexp.MustCompile(`(?i)\b(tables?|schema|structure|describe)\b`)

// describeSchema renders a table listing from the snapshot.
func describeSchema(snap *schema.Snapshot) string {
	if len(snap.Tables) == 0 {
		return "The database has no tables."
	}
	var lines []string
	for _, t := range snap.Tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, c.Name)
		}
		lines = append(lines, fmt.Sprintf("  %s (%d rows): %s",
			t.Name, t.RowCount, strings.Join(cols, ", ")))
	}
	return "Database tables:\n" + strings.Join(lines, "\n")
}
