package frames

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// Kind identifies what a decoded stream line contributes to a reply.
type Kind string

const (
	KindDelta   Kind = "delta"
	KindDone    Kind = "done"
	KindIgnored Kind = "ignored"
)

// IgnoreReason explains why a line carried no text.
type IgnoreReason string

const (
	IgnoreNoJSON       IgnoreReason = "no-json"
	IgnoreDecodeError  IgnoreReason = "decode-error"
	IgnoreFinishReason IgnoreReason = "finish-reason"
	IgnoreNoContent    IgnoreReason = "no-content"
)

const (
	dataMarker    = "data:"
	doneSentinel  = "[DONE]"
	byteOrderMark = "\uFEFF"
)

// Event is the normalized result of decoding one transport line.
type Event struct {
	Kind   Kind
	Text   string
	Reason IgnoreReason

	// FinishReason is set when Reason is IgnoreFinishReason.
	FinishReason string
}

func Delta(text string) Event { return Event{Kind: KindDelta, Text: text} }

func Done() Event { return Event{Kind: KindDone} }

func Ignored(reason IgnoreReason) Event { return Event{Kind: KindIgnored, Reason: reason} }

type wireFrame struct {
	Data         json.RawMessage `json:"data"`
	FinishReason json.RawMessage `json:"finishReason"`
	Message      *struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type wireFragment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// DecodeBytes decodes a raw line. Lines that are not valid UTF-8 are ignored
// as decode errors.
func DecodeBytes(line []byte) Event {
	line = bytes.TrimPrefix(line, []byte(byteOrderMark))
	if !utf8.Valid(line) {
		return Ignored(IgnoreDecodeError)
	}
	return Decode(string(line))
}

// Decode turns one line of the completion stream into exactly one Event.
// It never fails; malformed lines come back as KindIgnored.
func Decode(line string) Event {
	line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), byteOrderMark))

	var payload string
	if rest, ok := strings.CutPrefix(line, dataMarker); ok {
		payload = strings.TrimSpace(rest)
	} else if i := strings.IndexByte(line, '{'); i >= 0 {
		payload = line[i:]
	} else {
		payload = line
	}
	// The sentinel carries no brace, so it is checked before the JSON guard.
	if payload == doneSentinel {
		return Done()
	}
	if !strings.Contains(line, "{") {
		return Ignored(IgnoreNoJSON)
	}

	var f wireFrame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Ignored(IgnoreDecodeError)
	}
	if isDoneData(f.Data) {
		return Done()
	}
	if !isNull(f.FinishReason) {
		ev := Ignored(IgnoreFinishReason)
		_ = json.Unmarshal(f.FinishReason, &ev.FinishReason)
		return ev
	}
	if f.Message == nil || isNull(f.Message.Content) {
		return Ignored(IgnoreNoContent)
	}
	if text, ok := contentText(f.Message.Content); ok {
		return Delta(text)
	}
	return Ignored(IgnoreNoContent)
}

func contentText(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var fragments []wireFragment
	if err := json.Unmarshal(raw, &fragments); err != nil {
		return "", false
	}
	var b strings.Builder
	for _, frag := range fragments {
		if frag.Type == "text" {
			b.WriteString(frag.Text)
		}
	}
	return b.String(), true
}

func isDoneData(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false
	}
	return s == doneSentinel
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
