package redact

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRedactDisabled(t *testing.T) {
	SetEnabled(false)
	in := "email student@school.ac.kr and phone +82 10 1234 5678"
	if got := Text(in); got != in {
		t.Fatalf("expected no redaction, got %q", got)
	}
}

func TestRedactEnabled(t *testing.T) {
	SetEnabled(true)
	defer SetEnabled(false)
	in := "email student@school.ac.kr and phone +82 10 1234 5678"
	got := Text(in)
	if want := "[REDACTED_EMAIL]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
	if want := "[REDACTED_PHONE]"; !strings.Contains(got, want) {
		t.Fatalf("expected %q in output", want)
	}
}

func TestSnippetTruncatesLongText(t *testing.T) {
	SetEnabled(false)
	long := strings.Repeat("강의", 300)
	got := Snippet(long)
	if n := utf8.RuneCountInString(got); n != maxLoggedRunes+1 {
		t.Fatalf("expected %d runes, got %d", maxLoggedRunes+1, n)
	}
	if Snippet("short") != "short" {
		t.Fatalf("expected short text unchanged")
	}
}
