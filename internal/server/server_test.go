package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/dataq-go/internal/logging"
	"github.com/54b3r/dataq-go/internal/retrieval"
	"github.com/54b3r/dataq-go/internal/router"
	"github.com/54b3r/dataq-go/internal/tabular"
)

// okHandler is a trivial downstream handler used by middleware tests.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// fakeAsker is a test double for the asker interface.
type fakeAsker struct {
	// answer is returned by Ask when err is nil.
	answer *router.Answer
	// err is returned by Ask.
	err error
	// datasets is returned by Datasets.
	datasets []string
	// loadErr is returned by LoadCSV.
	loadErr error
	// lastReq captures the request passed to Ask.
	lastReq router.Request
}

func (f *fakeAsker) Ask(_ context.Context, req router.Request) (*router.Answer, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func (f *fakeAsker) Datasets() []string { return f.datasets }

func (f *fakeAsker) LoadCSV(_ context.Context, id, _ string) (*tabular.Dataset, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return tabular.LoadCSV(id, strings.NewReader("region,sales\nnorth,100\nsouth,200\n"))
}

// newTestServer builds a *Server with a fake asker and an isolated metrics
// registry so tests do not pollute prometheus.DefaultRegisterer.
func newTestServer() *Server {
	return newTestServerWith(&fakeAsker{answer: &router.Answer{ID: "a-1", Text: "two rows"}})
}

func newTestServerWith(fake *fakeAsker) *Server {
	return &Server{
		asker:   fake,
		cfg:     &Config{},
		log:     logging.New(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func Test_HandleAsk_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeAsker{answer: &router.Answer{
		ID:   "a-1",
		Text: "There are 5 rows.",
		Decision: router.Decision{
			Strategy: router.StrategyTraditional,
			Reason:   router.ReasonStructured,
		},
		SQL: "SELECT COUNT(*) FROM customers;",
	}}
	s := newTestServerWith(fake)

	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{
		Question: "how many customers are there?",
		Dataset:  "shop",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp askResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "a-1" || resp.Answer != "There are 5 rows." {
		t.Errorf("response = %+v", resp)
	}
	if resp.Decision.Strategy != router.StrategyTraditional {
		t.Errorf("strategy = %q", resp.Decision.Strategy)
	}
	if resp.SQL == "" {
		t.Error("expected generated SQL in response")
	}
	if fake.lastReq.DatasetID != "shop" {
		t.Errorf("dataset passed to engine = %q", fake.lastReq.DatasetID)
	}
}

func Test_HandleAsk_ForcedMode(t *testing.T) {
	t.Parallel()

	fake := &fakeAsker{answer: &router.Answer{ID: "a-2", Text: "ok"}}
	s := newTestServerWith(fake)

	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{
		Question: "analyze trends",
		Dataset:  "shop",
		Mode:     "rag",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fake.lastReq.Mode != router.ModeRAG {
		t.Errorf("mode passed to engine = %v", fake.lastReq.Mode)
	}
}

func Test_HandleAsk_InvalidMode(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{
		Question: "hello",
		Mode:     "hybrid",
	})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown mode, got %d", w.Code)
	}
}

func Test_HandleAsk_MissingQuestion(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{Dataset: "shop"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func Test_HandleAsk_InvalidBody(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.handleAsk(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func Test_HandleAsk_EngineError(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(&fakeAsker{err: errors.New("boom")})
	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{Question: "anything"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func Test_HandleDatasets(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(&fakeAsker{datasets: []string{"sales", "shop"}})
	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	w := httptest.NewRecorder()
	s.handleDatasets(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp datasetsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Datasets) != 2 || resp.Datasets[0] != "sales" {
		t.Errorf("datasets = %v", resp.Datasets)
	}
}

func Test_HandleDatasets_Empty(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(&fakeAsker{})
	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	w := httptest.NewRecorder()
	s.handleDatasets(w, req)

	// An empty catalog must serialize as [], not null.
	if !strings.Contains(w.Body.String(), "[]") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func Test_HandleLoad_OK(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := postJSON(t, s.handleLoad, "/api/datasets/load", loadRequest{
		Dataset: "sales",
		Path:    "/data/sales.csv",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	var resp loadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Dataset != "sales" || resp.Rows != 2 {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Columns) != 2 || resp.Columns[0] != "region" {
		t.Errorf("columns = %v", resp.Columns)
	}
}

func Test_HandleLoad_MissingFields(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := postJSON(t, s.handleLoad, "/api/datasets/load", loadRequest{Dataset: "sales"})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func Test_HandleLoad_LoadError(t *testing.T) {
	t.Parallel()

	s := newTestServerWith(&fakeAsker{loadErr: errors.New("no such file")})
	w := postJSON(t, s.handleLoad, "/api/datasets/load", loadRequest{
		Dataset: "sales",
		Path:    "/missing.csv",
	})

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

// Test_New_RoutesEndToEnd wires a real routing engine behind the full
// middleware chain and exercises POST /api/ask over HTTP.
func Test_New_RoutesEndToEnd(t *testing.T) {
	t.Parallel()

	registry := retrieval.NewRegistry()
	retriever, err := retrieval.NewEngine(registry, nil, 0)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	engine, err := router.New(&router.Config{
		Registry:  registry,
		Retriever: retriever,
		Builder:   retrieval.NewBuilder(nil, registry),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	s, err := New(engine, &Config{
		APIKey:  "secret",
		Metrics: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	body := strings.NewReader(`{"question":"show everything","dataset":"none"}`)
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/api/ask", body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/ask: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var ar askResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ar.ID == "" {
		t.Error("expected an answer ID")
	}
	// No dataset, no database: the engine degrades rather than erroring.
	if !ar.Degraded {
		t.Error("expected a degraded answer with no collaborators")
	}
}

func Test_New_NilEngine(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil); err == nil {
		t.Error("expected error for nil engine")
	}
}

func Test_New_AuthRequired(t *testing.T) {
	t.Parallel()

	registry := retrieval.NewRegistry()
	retriever, err := retrieval.NewEngine(registry, nil, 0)
	if err != nil {
		t.Fatalf("retriever: %v", err)
	}
	engine, err := router.New(&router.Config{
		Registry:  registry,
		Retriever: retriever,
		Builder:   retrieval.NewBuilder(nil, registry),
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	s, err := New(engine, &Config{
		APIKey:  "secret",
		Metrics: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)

	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	// Protected route without a token.
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/api/datasets", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /api/datasets: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	// Health stays open.
	hreq, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/api/health", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	hresp, err := http.DefaultClient.Do(hreq)
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	hresp.Body.Close()
	if hresp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 for health without token, got %d", hresp.StatusCode)
	}
}
