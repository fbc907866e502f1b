package analysis

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DegradedSummary is the placeholder summary of a degraded result.
const DegradedSummary = "Error: Could not generate analysis."

// Outcome records how a Result was produced. Degraded results share one
// external shape, the outcome keeps them distinguishable.
type Outcome string

const (
	OutcomeParsed         Outcome = "parsed"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeDecodeError    Outcome = "decode_error"
	OutcomeShapeError     Outcome = "shape_error"
)

type ActionItemDraft struct {
	Type    string     `json:"type"`
	Content string     `json:"content"`
	DueDate *time.Time `json:"due_date"`
}

type Result struct {
	Summary     string            `json:"summary"`
	ActionItems []ActionItemDraft `json:"action_items"`
	Outcome     Outcome           `json:"-"`
}

// Degraded reports whether r is the placeholder returned on failure.
func (r Result) Degraded() bool {
	return r.Outcome != OutcomeParsed
}

func degraded(outcome Outcome) Result {
	return Result{
		Summary:     DegradedSummary,
		ActionItems: []ActionItemDraft{},
		Outcome:     outcome,
	}
}

// ParseContent converts the model's textual answer into a Result.
// Dates are interpreted in loc; a nil loc means UTC.
func ParseContent(content string, loc *time.Location) Result {
	payload, ok := ExtractObject(content)
	if !ok {
		return degraded(OutcomeDecodeError)
	}
	var raw map[string]json.RawMessage
	if err := DecodeLenient(payload, &raw); err != nil {
		return degraded(OutcomeDecodeError)
	}
	rawSummary, hasSummary := raw["summary"]
	rawItems, hasItems := raw["action_items"]
	if !hasSummary || !hasItems {
		return degraded(OutcomeShapeError)
	}

	var entries []json.RawMessage
	if !isNull(rawItems) {
		if err := json.Unmarshal(rawItems, &entries); err != nil {
			return degraded(OutcomeShapeError)
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	res := Result{
		Summary:     textValue(rawSummary),
		ActionItems: make([]ActionItemDraft, 0, len(entries)),
		Outcome:     OutcomeParsed,
	}
	for _, entry := range entries {
		if item, ok := draftFrom(entry, loc); ok {
			res.ActionItems = append(res.ActionItems, item)
		}
	}
	return res
}

// draftFrom builds a draft from an object carrying type and content.
// A due date that cannot be parsed is dropped, the item is kept.
func draftFrom(entry json.RawMessage, loc *time.Location) (ActionItemDraft, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return ActionItemDraft{}, false
	}
	rawType, hasType := fields["type"]
	rawContent, hasContent := fields["content"]
	if !hasType || !hasContent {
		return ActionItemDraft{}, false
	}
	return ActionItemDraft{
		Type:    textValue(rawType),
		Content: textValue(rawContent),
		DueDate: parseDueDate(fields["due_date"], loc),
	}, true
}

func parseDueDate(raw json.RawMessage, loc *time.Location) *time.Time {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := dateparse.ParseIn(s, loc)
	// Fragments such as "12/" parse without a year.
	if err != nil || t.Year() == 0 {
		return nil
	}
	return &t
}

// textValue returns a JSON string as-is and any other non-null value as its
// compact JSON text.
func textValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
