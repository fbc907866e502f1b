package llm

import (
	"encoding/json"
	"testing"
)

func TestHistoryValidate(t *testing.T) {
	if err := (History{}).Validate(); err != ErrEmptyHistory {
		t.Fatalf("expected ErrEmptyHistory, got %v", err)
	}
	bad := History{{Role: "robot", Content: "hi"}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected invalid role error")
	}
	ok := History{{Role: RoleSystem, Content: "be kind"}, {Role: RoleUser, Content: "hi"}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHistoryAppendDoesNotAlias(t *testing.T) {
	base := make(History, 1, 4)
	base[0] = Message{Role: RoleUser, Content: "a"}
	first := base.Append(Message{Role: RoleAssistant, Content: "b"})
	second := base.Append(Message{Role: RoleAssistant, Content: "c"})
	if first[1].Content != "b" || second[1].Content != "c" {
		t.Fatalf("appends share backing storage: %v %v", first, second)
	}
}

func TestHistoryPruneKeepsSystemAndRecentTurns(t *testing.T) {
	h := History{
		{Role: RoleSystem, Content: "tutor"},
		{Role: RoleUser, Content: "q1"},
		{Role: RoleAssistant, Content: "a1"},
		{Role: RoleUser, Content: "q2"},
		{Role: RoleAssistant, Content: "a2"},
	}
	got := h.Prune(2)
	if len(got) != 3 || got[0].Content != "tutor" || got[1].Content != "q2" || got[2].Content != "a2" {
		t.Fatalf("unexpected pruned history %+v", got)
	}
	if len(h) != 5 {
		t.Fatalf("prune modified its input")
	}
	if len(h.Prune(0)) != 5 || len(h.Prune(10)) != 5 {
		t.Fatalf("expected no pruning without a limit")
	}
}

func TestCompletionRequestBodyChat(t *testing.T) {
	req := CompletionRequest{
		Messages: History{
			{Role: RoleSystem, Content: "tutor"},
			{Role: RoleUser, Content: "why?"},
		},
		Options: DefaultChatOptions(),
	}
	raw, err := req.Body()
	if err != nil {
		t.Fatalf("body error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	first, _ := msgs[0].(map[string]any)
	if first["role"] != "system" {
		t.Fatalf("expected order preserved, got role %v", first["role"])
	}
	content, _ := first["content"].([]any)
	frag, _ := content[0].(map[string]any)
	if frag["type"] != "text" || frag["text"] != "tutor" {
		t.Fatalf("unexpected fragment %v", frag)
	}
	if got["topP"] != 0.8 || got["topK"] != float64(0) || got["repetitionPenalty"] != 1.1 {
		t.Fatalf("sampling knobs not forwarded: %v", got)
	}
	if got["maxTokens"] != float64(553) || got["includeAiFilters"] != true {
		t.Fatalf("unexpected options: %v", got)
	}
}

func TestCompletionRequestBodyWithoutSampling(t *testing.T) {
	req := CompletionRequest{
		Messages: History{{Role: RoleUser, Content: "x"}},
		Options:  DefaultAnalysisOptions(),
	}
	raw, err := req.Body()
	if err != nil {
		t.Fatalf("body error: %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(raw, &got)
	if _, ok := got["topP"]; ok {
		t.Fatalf("did not expect topP without sampling")
	}
	if got["maxTokens"] != float64(2048) {
		t.Fatalf("expected maxTokens 2048, got %v", got["maxTokens"])
	}
}

func TestNormalizeRequestID(t *testing.T) {
	if got := NormalizeRequestID("a-b-c"); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
}
