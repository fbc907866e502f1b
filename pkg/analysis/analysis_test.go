package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/llm"
	"github.com/harunnryd/tutorcore/pkg/metrics"
	"github.com/harunnryd/tutorcore/pkg/providers/mock"
)

func TestParseContentFencedJSON(t *testing.T) {
	res := ParseContent("```json\n{\"summary\":\"ok\",\"action_items\":[]}\n```", nil)
	if res.Degraded() {
		t.Fatalf("expected parsed result, got %s", res.Outcome)
	}
	if res.Summary != "ok" {
		t.Fatalf("expected summary ok, got %q", res.Summary)
	}
	if res.ActionItems == nil || len(res.ActionItems) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", res.ActionItems)
	}
}

func TestParseContentUnparseableDegrades(t *testing.T) {
	for _, content := range []string{"no json here", "{not json}", ""} {
		res := ParseContent(content, nil)
		if !res.Degraded() || res.Outcome != OutcomeDecodeError {
			t.Fatalf("%q: expected decode error, got %s", content, res.Outcome)
		}
		if res.Summary != DegradedSummary || len(res.ActionItems) != 0 {
			t.Fatalf("%q: unexpected degraded shape %#v", content, res)
		}
	}
}

func TestParseContentMissingKeysIsShapeError(t *testing.T) {
	res := ParseContent(`{"summary":"only summary"}`, nil)
	if res.Outcome != OutcomeShapeError || res.Summary != DegradedSummary {
		t.Fatalf("expected shape error, got %#v", res)
	}
	res = ParseContent(`{"summary":"x","action_items":"nope"}`, nil)
	if res.Outcome != OutcomeShapeError {
		t.Fatalf("expected shape error for non-list items, got %s", res.Outcome)
	}
}

func TestParseContentBadDueDateKeepsItem(t *testing.T) {
	res := ParseContent(`{"summary":"s","action_items":[{"type":"task","content":"read ch.3","due_date":"not-a-date"}]}`, nil)
	if res.Degraded() || len(res.ActionItems) != 1 {
		t.Fatalf("expected one item, got %#v", res)
	}
	item := res.ActionItems[0]
	if item.DueDate != nil {
		t.Fatalf("expected nil due date, got %v", item.DueDate)
	}
	if item.Type != "task" || item.Content != "read ch.3" {
		t.Fatalf("unexpected item %#v", item)
	}
}

func TestParseContentDateFragmentsHaveNoDueDate(t *testing.T) {
	for _, raw := range []string{"12/", "1.1."} {
		res := ParseContent(`{"summary":"s","action_items":[{"type":"task","content":"c","due_date":"`+raw+`"}]}`, nil)
		if len(res.ActionItems) != 1 {
			t.Fatalf("%q: expected one item, got %#v", raw, res)
		}
		if d := res.ActionItems[0].DueDate; d != nil {
			t.Fatalf("%q: expected nil due date, got %v", raw, *d)
		}
	}
}

func TestParseContentDueDateInLocation(t *testing.T) {
	loc := time.FixedZone("KST", 9*60*60)
	res := ParseContent(`{"summary":"s","action_items":[{"type":"exam","content":"midterm","due_date":"2024-05-01"}]}`, loc)
	if len(res.ActionItems) != 1 || res.ActionItems[0].DueDate == nil {
		t.Fatalf("expected parsed due date, got %#v", res)
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, loc)
	if !res.ActionItems[0].DueDate.Equal(want) {
		t.Fatalf("expected %v, got %v", want, *res.ActionItems[0].DueDate)
	}
}

func TestParseContentToleratesCommentaryAndControlChars(t *testing.T) {
	content := "Here is the analysis:\n{\"summary\":\"line one\nline two\",\"action_items\":[{\"type\":\"task\",\"content\":\"a\tb\"}]}\nHope this helps."
	res := ParseContent(content, nil)
	if res.Degraded() {
		t.Fatalf("expected parsed result, got %s", res.Outcome)
	}
	if res.Summary != "line one\nline two" {
		t.Fatalf("unexpected summary %q", res.Summary)
	}
	if len(res.ActionItems) != 1 || res.ActionItems[0].Content != "a\tb" {
		t.Fatalf("unexpected items %#v", res.ActionItems)
	}
}

func TestParseContentSkipsIncompleteItems(t *testing.T) {
	res := ParseContent(`{"summary":"s","action_items":[{"type":"task"},{"type":"task","content":"keep"},42]}`, nil)
	if len(res.ActionItems) != 1 || res.ActionItems[0].Content != "keep" {
		t.Fatalf("expected only the complete item, got %#v", res.ActionItems)
	}
}

func TestParseContentNullItemsIsEmpty(t *testing.T) {
	res := ParseContent(`{"summary":"s","action_items":null}`, nil)
	if res.Degraded() || res.ActionItems == nil || len(res.ActionItems) != 0 {
		t.Fatalf("expected parsed empty items, got %#v", res)
	}
}

func TestExtractObject(t *testing.T) {
	got, ok := ExtractObject("```JSON\n{\"a\":{\"b\":1}}\n``` trailing")
	if !ok || got != `{"a":{"b":1}}` {
		t.Fatalf("unexpected extraction %q %v", got, ok)
	}
	if _, ok := ExtractObject("} before {"); ok {
		t.Fatalf("expected no object when braces are reversed")
	}
}

func TestAnalyzeParsesCompletion(t *testing.T) {
	transport := mock.NewCompletionTransport(mock.CompletionConfig{
		ResponseText: "```json\n{\"summary\":\"ok\",\"action_items\":[]}\n```",
	})
	obs := metrics.NewMemoryObserver()
	p := NewParser(transport, Config{Instruction: "summarize"}, WithObserver(obs))

	res, err := p.Analyze(context.Background(), "today we covered limits")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary != "ok" || res.Degraded() {
		t.Fatalf("unexpected result %#v", res)
	}
	reqs := transport.Requests()
	if len(reqs) != 1 {
		t.Fatalf("expected one request, got %d", len(reqs))
	}
	msgs := reqs[0].Messages
	if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem || msgs[0].Content != "summarize" {
		t.Fatalf("unexpected messages %#v", msgs)
	}
	if msgs[1].Role != llm.RoleUser || msgs[1].Content != "today we covered limits" {
		t.Fatalf("unexpected user message %#v", msgs[1])
	}
	if reqs[0].Options.MaxTokens != llm.DefaultAnalysisOptions().MaxTokens {
		t.Fatalf("expected analysis defaults, got %#v", reqs[0].Options)
	}
	if obs.Count(metrics.EventAnalysisComplete) != 1 {
		t.Fatalf("expected analysis_complete event")
	}
}

func TestAnalyzeTransportErrorDegrades(t *testing.T) {
	transport := mock.NewCompletionTransport(mock.CompletionConfig{
		CompleteErr: errorsx.Wrap(errors.New("dial tcp: refused"), errorsx.ReasonTransport),
	})
	obs := metrics.NewMemoryObserver()
	p := NewParser(transport, Config{Instruction: "summarize"}, WithObserver(obs))

	res, err := p.Analyze(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome != OutcomeTransportError || res.Summary != DegradedSummary {
		t.Fatalf("expected transport degradation, got %#v", res)
	}
	ev, ok := obs.Last(metrics.EventAnalysisDegraded)
	if !ok || ev.Tags["outcome"] != string(OutcomeTransportError) {
		t.Fatalf("expected degraded event with outcome tag, got %#v", ev)
	}
}

func TestAnalyzeConfigErrorPropagates(t *testing.T) {
	transport := mock.NewCompletionTransport(mock.CompletionConfig{
		CompleteErr: errorsx.New(errorsx.ReasonConfig, "api key missing"),
	})
	p := NewParser(transport, Config{Instruction: "summarize"})

	_, err := p.Analyze(context.Background(), "transcript")
	if !errorsx.HasReason(err, errorsx.ReasonConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestAnalyzeWithoutInstruction(t *testing.T) {
	transport := mock.NewCompletionTransport(mock.CompletionConfig{})
	p := NewParser(transport, Config{})

	_, err := p.Analyze(context.Background(), "transcript")
	if !errors.Is(err, ErrNoInstruction) {
		t.Fatalf("expected ErrNoInstruction, got %v", err)
	}
	if len(transport.Requests()) != 0 {
		t.Fatalf("expected no request without instruction")
	}
}

func TestAnalyzeEmptyTranscriptSkipsRequest(t *testing.T) {
	transport := mock.NewCompletionTransport(mock.CompletionConfig{})
	p := NewParser(transport, Config{Instruction: "summarize"})

	res, err := p.Analyze(context.Background(), "   ")
	if err != nil || res.Outcome != OutcomeShapeError {
		t.Fatalf("expected shape degradation, got %#v %v", res, err)
	}
	if len(transport.Requests()) != 0 {
		t.Fatalf("expected no request for empty transcript")
	}
}

func TestParseResponseEnvelope(t *testing.T) {
	if res := ParseResponse([]byte("<html>"), nil); res.Outcome != OutcomeDecodeError {
		t.Fatalf("expected decode error, got %s", res.Outcome)
	}
	if res := ParseResponse([]byte(`{"result":{}}`), nil); res.Outcome != OutcomeShapeError {
		t.Fatalf("expected shape error, got %s", res.Outcome)
	}
}
