package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/54b3r/dataq-go/internal/generator"
	"github.com/54b3r/dataq-go/internal/retrieval"
	"github.com/54b3r/dataq-go/internal/schema"
	"github.com/54b3r/dataq-go/internal/tabular"
)

const salesCSV = `region,sales,units
north,100.5,10
south,200.0,20
north,300.25,30
west,50.0,5
south,150.0,15
`

// failingGenerator always errors, standing in for an unreachable model.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, string) (string, error) {
	return "", errors.New("model unreachable")
}

// fakeRecorder captures recorded answers.
type fakeRecorder struct {
	mu      sync.Mutex
	answers []*Answer
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, a *Answer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, a)
	return r.err
}

type engineOpts struct {
	withDB   bool
	gen      generator.Generator
	recorder Recorder
}

func newTestEngine(t *testing.T, opts engineOpts) *Engine {
	t.Helper()

	reg := retrieval.NewRegistry()
	ret, err := retrieval.NewEngine(reg, nil, 0)
	if err != nil {
		t.Fatalf("retrieval engine: %v", err)
	}

	var intro *schema.Introspector
	if opts.withDB {
		intro, err = schema.Open(":memory:")
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		t.Cleanup(func() { intro.Close() })
		if err := intro.Seed(context.Background()); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	eng, err := New(&Config{
		Registry:     reg,
		Retriever:    ret,
		Builder:      retrieval.NewBuilder(nil, reg),
		Generator:    opts.gen,
		Introspector: intro,
		History:      opts.recorder,
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return eng
}

func loadSalesDataset(t *testing.T, e *Engine) {
	t.Helper()
	ds, err := tabular.LoadCSV("sales", strings.NewReader(salesCSV))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if err := e.RegisterDataset(context.Background(), "sales", ds); err != nil {
		t.Fatalf("register: %v", err)
	}
}

func Test_Ask_SchemaQuestion(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{withDB: true})
	if _, err := e.LoadSchema(context.Background(), "shop"); err != nil {
		t.Fatalf("load schema: %v", err)
	}

	a, err := e.Ask(context.Background(), Request{DatasetID: "shop", Question: "What tables are in the database?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyTraditional || a.Decision.Reason != ReasonStructured {
		t.Errorf("decision = %+v, want traditional/structured", a.Decision)
	}
	if a.Degraded {
		t.Errorf("degraded answer: %q", a.Text)
	}
	for _, table := range []string{"customers", "products", "orders"} {
		if !strings.Contains(a.Text, table) {
			t.Errorf("answer missing table %s: %q", table, a.Text)
		}
	}
}

func Test_Ask_RawSQL(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{withDB: true})
	if _, err := e.LoadSchema(context.Background(), "shop"); err != nil {
		t.Fatalf("load schema: %v", err)
	}

	a, err := e.Ask(context.Background(), Request{DatasetID: "shop", Question: "SELECT COUNT(*) FROM customers"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyTraditional {
		t.Errorf("strategy = %s, want traditional", a.Decision.Strategy)
	}
	if a.SQL != "SELECT COUNT(*) FROM customers" {
		t.Errorf("sql = %q", a.SQL)
	}
	if a.Degraded || !strings.Contains(a.Text, "5") {
		t.Errorf("answer = %q degraded=%v, want count 5", a.Text, a.Degraded)
	}
}

func Test_Ask_AnalyticalRoutesToRAG(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})
	loadSalesDataset(t, e)

	a, err := e.Ask(context.Background(), Request{DatasetID: "sales", Question: "Analyze patterns in the sales data"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyRAG || a.Decision.Reason != ReasonAnalytical {
		t.Fatalf("decision = %+v, want rag/analytical", a.Decision)
	}
	if len(a.Retrieved) == 0 {
		t.Error("no retrieved chunks on the rag path")
	}
	if a.Text == "" {
		t.Error("empty answer text")
	}
	for i, r := range a.Retrieved {
		if r.Rank != i+1 {
			t.Errorf("retrieved[%d].Rank = %d", i, r.Rank)
		}
	}
}

func Test_Ask_AnalyticalWithoutIndexFallsBack(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{withDB: true})

	a, err := e.Ask(context.Background(), Request{DatasetID: "nothing", Question: "Analyze patterns in the sales data"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyTraditional || a.Decision.Reason != ReasonNoIndex {
		t.Errorf("decision = %+v, want traditional/no_indexed_data", a.Decision)
	}
}

func Test_Ask_ForcedRAGWithEmptyIndex(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{withDB: true})

	a, err := e.Ask(context.Background(), Request{DatasetID: "nothing", Question: "How many customers?", Mode: ModeRAG})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyTraditional || a.Decision.Reason != ReasonForcedRAGNoIndex {
		t.Errorf("decision = %+v, want traditional/rag_forced_index_empty", a.Decision)
	}
}

func Test_Ask_ForcedRAGWithEmptyDataset(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})

	// A registered dataset with no columns and no rows publishes an empty
	// index, so forcing RAG against it still falls back.
	ds, err := tabular.LoadCSV("empty", strings.NewReader(""))
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if err := e.RegisterDataset(context.Background(), "empty", ds); err != nil {
		t.Fatalf("register: %v", err)
	}

	a, err := e.Ask(context.Background(), Request{DatasetID: "empty", Question: "Summarize the data", Mode: ModeRAG})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyTraditional || a.Decision.Reason != ReasonForcedRAGNoIndex {
		t.Errorf("decision = %+v, want traditional/rag_forced_index_empty", a.Decision)
	}
}

func Test_Ask_ForcedRAG(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})
	loadSalesDataset(t, e)

	// A structured question still takes the RAG path when forced.
	a, err := e.Ask(context.Background(), Request{DatasetID: "sales", Question: "How many rows are there?", Mode: ModeRAG})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyRAG || a.Decision.Reason != ReasonForcedRAG {
		t.Errorf("decision = %+v, want rag/rag_forced", a.Decision)
	}
}

func Test_Ask_ForcedTraditional(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})
	loadSalesDataset(t, e)

	a, err := e.Ask(context.Background(), Request{DatasetID: "sales", Question: "Analyze trends", Mode: ModeTraditional})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyTraditional || a.Decision.Reason != ReasonForcedTraditional {
		t.Errorf("decision = %+v, want traditional/traditional_forced", a.Decision)
	}
	if len(a.Retrieved) != 0 {
		t.Error("forced traditional should not retrieve")
	}
}

func Test_Ask_TabularAverage(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})
	loadSalesDataset(t, e)

	a, err := e.Ask(context.Background(), Request{DatasetID: "sales", Question: "What is the average sales?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a.Decision.Strategy != StrategyTraditional {
		t.Fatalf("strategy = %s, want traditional", a.Decision.Strategy)
	}
	if a.Statistic == nil || a.Statistic.Metric != "mean" || a.Statistic.Column != "sales" {
		t.Errorf("statistic = %+v", a.Statistic)
	}
	if !strings.Contains(a.Text, "160.15") {
		t.Errorf("answer = %q, want mean 160.15", a.Text)
	}
}

func Test_Ask_EmptyQuestion(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})
	if _, err := e.Ask(context.Background(), Request{Question: "   "}); err == nil {
		t.Error("want error for empty question")
	}
}

func Test_Ask_GeneratorFailureDegrades(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{gen: failingGenerator{}})
	loadSalesDataset(t, e)

	a, err := e.Ask(context.Background(), Request{DatasetID: "sales", Question: "Analyze patterns in the data", Mode: ModeRAG})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !a.Degraded {
		t.Error("want degraded answer when the generator fails")
	}
	if a.Text == "" {
		t.Error("degraded answer should still carry text")
	}
}

func Test_Ask_NoCollaborators(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})

	// No database, no dataset: the answer degrades but Ask does not error.
	a, err := e.Ask(context.Background(), Request{DatasetID: "none", Question: "show everything"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !a.Degraded {
		t.Errorf("want degraded answer, got %q", a.Text)
	}
}

func Test_Ask_RecordsHistory(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{}
	e := newTestEngine(t, engineOpts{recorder: rec})
	loadSalesDataset(t, e)

	a, err := e.Ask(context.Background(), Request{DatasetID: "sales", Question: "how many rows?"})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.answers) != 1 || rec.answers[0].ID != a.ID {
		t.Errorf("recorded %d answers", len(rec.answers))
	}
}

func Test_Ask_HistoryFailureDoesNotFail(t *testing.T) {
	t.Parallel()
	rec := &fakeRecorder{err: errors.New("disk full")}
	e := newTestEngine(t, engineOpts{recorder: rec})
	loadSalesDataset(t, e)

	if _, err := e.Ask(context.Background(), Request{DatasetID: "sales", Question: "how many rows?"}); err != nil {
		t.Errorf("history failure should not fail the ask: %v", err)
	}
}

func Test_ParseMode(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"rag", ModeRAG, false},
		{"traditional", ModeTraditional, false},
		{"direct", ModeTraditional, false},
		{"magic", ModeAuto, true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.in)
		if tc.wantErr {
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("ParseMode(%q): want ConfigurationError, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseMode(%q) = %v, %v", tc.in, got, err)
		}
	}
}

func Test_Ask_Deterministic(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, engineOpts{})
	loadSalesDataset(t, e)

	req := Request{DatasetID: "sales", Question: "Analyze patterns in the sales data"}
	a1, err := e.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	a2, err := e.Ask(context.Background(), req)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if a1.Decision.Strategy != a2.Decision.Strategy || a1.Decision.Reason != a2.Decision.Reason ||
		a1.Decision.Score != a2.Decision.Score {
		t.Errorf("routing not deterministic: %+v vs %+v", a1.Decision, a2.Decision)
	}
	if len(a1.Retrieved) != len(a2.Retrieved) {
		t.Fatalf("retrieval not deterministic: %d vs %d", len(a1.Retrieved), len(a2.Retrieved))
	}
	for i := range a1.Retrieved {
		if a1.Retrieved[i].Chunk.ID != a2.Retrieved[i].Chunk.ID {
			t.Errorf("retrieved[%d] differs", i)
		}
	}
}
