package tutor

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunnryd/tutorcore/pkg/config"
	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/llm"
	"github.com/harunnryd/tutorcore/pkg/metrics"
	"github.com/harunnryd/tutorcore/pkg/transcribe"
)

func mockConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	cfg.Vendors.LLM = config.VendorConfig{Provider: "mock", Settings: map[string]any{
		"response_text": `{"summary":"mock summary","action_items":[{"type":"task","content":"review"}]}`,
	}}
	cfg.Vendors.Speech = config.VendorConfig{Provider: "mock", Settings: map[string]any{"transcript": "today we studied graphs"}}
	cfg.Vendors.Storage = config.VendorConfig{Provider: "mock"}
	cfg.Analysis.Instruction = "Summarize the lecture as JSON."
	cfg.Metrics.Async = false
	return cfg
}

func newTestEngine(t *testing.T, cfg config.Config, obs ...metrics.Observer) *Engine {
	t.Helper()
	e, err := New(Options{Config: cfg, LogOutput: io.Discard, Observers: obs})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestEngineWiresChatAndAnalysis(t *testing.T) {
	mem := metrics.NewMemoryObserver()
	e := newTestEngine(t, mockConfig(t), mem)
	ctx := context.Background()

	reply := e.Chat().Complete(ctx, llm.History{{Role: llm.RoleUser, Content: "hi"}}, llm.DefaultChatOptions())
	if !strings.Contains(reply, "mock summary") {
		t.Fatalf("expected mock reply, got %q", reply)
	}

	res, err := e.Analyzer().Analyze(ctx, "lecture transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "mock summary" || len(res.ActionItems) != 1 {
		t.Fatalf("unexpected analysis %#v", res)
	}
	if mem.Count(metrics.EventChatComplete) != 1 || mem.Count(metrics.EventAnalysisComplete) != 1 {
		t.Fatalf("expected chat and analysis events, got %#v", mem.Events)
	}
}

func TestEngineAsyncTranscriptionWithMockProviders(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Transcription.Mode = "async"
	e := newTestEngine(t, cfg)
	ctx := context.Background()

	orch, err := e.Transcriber()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.TranscriptionMode() != gateway.ModeAsync {
		t.Fatalf("expected async mode")
	}
	key, err := orch.Upload(ctx, "lecture.m4a", []byte("audio"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	job := transcribe.NewJob(key, "", e.TranscriptionMode())
	if err := orch.Submit(ctx, job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := orch.Refresh(ctx, job); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if job.Status != transcribe.StatusCompleted || job.Transcript != "today we studied graphs" {
		t.Fatalf("unexpected job %#v", job)
	}
}

func TestEnginePrometheusHandler(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Metrics.Prometheus = true
	e := newTestEngine(t, cfg)

	e.Chat().Complete(context.Background(), llm.History{{Role: llm.RoleUser, Content: "hi"}}, llm.DefaultChatOptions())

	h := e.MetricsHandler()
	if h == nil {
		t.Fatalf("expected metrics handler")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `tutorcore_events_total{component="chat",name="chat_complete"`) {
		t.Fatalf("expected chat counter in output:\n%s", rec.Body.String())
	}
}

func TestEngineUnknownProvider(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Vendors.LLM.Provider = "nope"
	_, err := New(Options{Config: cfg, LogOutput: io.Discard})
	if !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestEngineStorageSettingsValidated(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Vendors.Storage = config.VendorConfig{Provider: "s3", Settings: map[string]any{"endpoint": "https://kr.object.ncloudstorage.com"}}
	e := newTestEngine(t, cfg)

	if _, err := e.Transcriber(); !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config error for missing bucket, got %v", err)
	}
	if e.Chat() == nil {
		t.Fatalf("expected chat available without storage")
	}
}

func TestEngineCircuitBreakerWrapsTransport(t *testing.T) {
	cfg := mockConfig(t)
	cfg.Circuit.Enabled = true
	e := newTestEngine(t, cfg)
	if _, ok := e.completion.(*gateway.BreakerTransport); !ok {
		t.Fatalf("expected breaker transport, got %T", e.completion)
	}
	if e.CircuitOpen() {
		t.Fatalf("expected closed breaker")
	}
}
