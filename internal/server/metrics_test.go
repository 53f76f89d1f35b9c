package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/dataq-go/internal/logging"
	"github.com/54b3r/dataq-go/internal/router"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := &Server{
		asker:   &fakeAsker{answer: &router.Answer{ID: "a-1", Text: "ok"}},
		cfg:     &Config{Metrics: reg},
		log:     logging.New(),
		metrics: newServerMetrics(reg),
	}
	return s, reg
}

// counterValue returns the value of the named counter with the given label
// pair, or -1 if absent.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return -1
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	_, reg := newMetricsTestServer(t)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_AskOutcomeCounted(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{Question: "how many rows?"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask failed: %d", w.Code)
	}

	if got := counterValue(t, reg, "dataq_ask_requests_total", "outcome", "ok"); got != 1 {
		t.Errorf("ask_requests_total{outcome=ok} = %v, want 1", got)
	}
}

func Test_Metrics_DegradedOutcomeCounted(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s := &Server{
		asker: &fakeAsker{answer: &router.Answer{
			ID:       "a-2",
			Text:     "fallback",
			Degraded: true,
		}},
		cfg:     &Config{Metrics: reg},
		log:     logging.New(),
		metrics: newServerMetrics(reg),
	}

	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{Question: "anything"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask failed: %d", w.Code)
	}

	if got := counterValue(t, reg, "dataq_ask_requests_total", "outcome", "degraded"); got != 1 {
		t.Errorf("ask_requests_total{outcome=degraded} = %v, want 1", got)
	}
}

func Test_Metrics_RoutingDecisionCounted(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	s := &Server{
		asker: &fakeAsker{answer: &router.Answer{
			ID:   "a-3",
			Text: "ok",
			Decision: router.Decision{
				Strategy: router.StrategyRAG,
				Reason:   router.ReasonAnalytical,
			},
		}},
		cfg:     &Config{Metrics: reg},
		log:     logging.New(),
		metrics: newServerMetrics(reg),
	}

	w := postJSON(t, s.handleAsk, "/api/ask", askRequest{Question: "analyze trends"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask failed: %d", w.Code)
	}

	if got := counterValue(t, reg, "dataq_routing_decisions_total", "strategy", "rag"); got != 1 {
		t.Errorf("routing_decisions_total{strategy=rag} = %v, want 1", got)
	}
	if got := counterValue(t, reg, "dataq_routing_decisions_total", "reason", router.ReasonAnalytical); got != 1 {
		t.Errorf("routing_decisions_total{reason=%s} = %v, want 1", router.ReasonAnalytical, got)
	}
}

func Test_Metrics_HTTPMiddlewareLabelsByPattern(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	mux := http.NewServeMux()
	mux.Handle("GET /api/health", okHandler)
	h := m.httpMiddleware(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := counterValue(t, reg, "dataq_http_requests_total", labelHandler, "GET /api/health"); got != 1 {
		t.Errorf("http_requests_total{handler=GET /api/health} = %v, want 1", got)
	}
	if got := counterValue(t, reg, "dataq_http_requests_total", "code", "200"); got != 1 {
		t.Errorf("http_requests_total{code=200} = %v, want 1", got)
	}
}
