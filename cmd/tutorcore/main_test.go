package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const mockConfig = `
vendors:
  llm:
    provider: mock
    settings:
      response_text: '{"summary":"covered recursion","action_items":[{"type":"homework","content":"exercise 4","due_date":"2024-03-01"}]}'
  speech:
    provider: mock
    settings:
      transcript: recursion is a function calling itself
  storage:
    provider: mock
analysis:
  instruction: Return JSON with summary and action_items.
metrics:
  async: false
log_level: error
`

func writeMockConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tutorcore.yaml")
	if err := os.WriteFile(path, []byte(mockConfig), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunChatPrompt(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-config", writeMockConfig(t), "chat", "-prompt", "hello"}, strings.NewReader(""), &out, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "covered recursion") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestRunAnalyzeFromStdin(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-config", writeMockConfig(t), "analyze"}, strings.NewReader("lecture about recursion"), &out, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res struct {
		Summary     string `json:"summary"`
		ActionItems []struct {
			Type    string  `json:"type"`
			DueDate *string `json:"due_date"`
		} `json:"action_items"`
	}
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if res.Summary != "covered recursion" || len(res.ActionItems) != 1 || res.ActionItems[0].DueDate == nil {
		t.Fatalf("unexpected analysis %+v", res)
	}
}

func TestRunUploadAndTranscribe(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "lecture.mp3")
	if err := os.WriteFile(audio, []byte("ID3"), 0o600); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	cfgPath := writeMockConfig(t)

	var out bytes.Buffer
	if err := run([]string{"-config", cfgPath, "upload", "-file", audio}, nil, &out, io.Discard); err != nil {
		t.Fatalf("upload: %v", err)
	}
	key := strings.TrimSpace(out.String())
	if !strings.HasPrefix(key, "audio-storage/") || !strings.HasSuffix(key, ".mp3") {
		t.Fatalf("unexpected key %q", key)
	}

	out.Reset()
	if err := run([]string{"-config", cfgPath, "transcribe", "-key", key, "-mode", "sync"}, nil, &out, io.Discard); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if !strings.Contains(out.String(), "recursion is a function calling itself") || !strings.Contains(out.String(), `"completed"`) {
		t.Fatalf("unexpected output %s", out.String())
	}
}

func TestRunPollPending(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-config", writeMockConfig(t), "poll", "-key", "audio-storage/missing.mp3"}, nil, &out, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"pending"`) {
		t.Fatalf("expected pending status, got %s", out.String())
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if err := run([]string{"grade"}, nil, io.Discard, io.Discard); err == nil {
		t.Fatalf("expected error for unknown command")
	}
	if err := run(nil, nil, io.Discard, io.Discard); err == nil {
		t.Fatalf("expected error for missing command")
	}
}
