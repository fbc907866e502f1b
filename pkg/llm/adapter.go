package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the roles the completion endpoint accepts.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

type Message struct {
	Role    Role   `json:"role" mapstructure:"role"`
	Content string `json:"content" mapstructure:"content"`
}

// History is a chronological conversation. Order is forwarded unchanged.
type History []Message

var ErrEmptyHistory = errors.New("conversation history is empty")

func (h History) Validate() error {
	if len(h) == 0 {
		return ErrEmptyHistory
	}
	for i, m := range h {
		if !m.Role.Valid() {
			return fmt.Errorf("message %d: invalid role %q", i, m.Role)
		}
	}
	return nil
}

// Append returns a copy of h with msgs added, leaving h untouched.
func (h History) Append(msgs ...Message) History {
	out := make(History, 0, len(h)+len(msgs))
	out = append(out, h...)
	return append(out, msgs...)
}

// Prune keeps the most recent maxHistory non-system messages. System
// messages are always kept and relative order is unchanged. A non-positive
// maxHistory returns h as is.
func (h History) Prune(maxHistory int) History {
	if maxHistory <= 0 {
		return h
	}
	nonSystem := 0
	for _, m := range h {
		if m.Role != RoleSystem {
			nonSystem++
		}
	}
	toDrop := nonSystem - maxHistory
	if toDrop <= 0 {
		return h
	}
	out := make(History, 0, len(h)-toDrop)
	for _, m := range h {
		if m.Role != RoleSystem && toDrop > 0 {
			toDrop--
			continue
		}
		out = append(out, m)
	}
	return out
}

// Sampling holds the nucleus/top-k knobs sent on conversational calls.
type Sampling struct {
	TopP              float64  `mapstructure:"top_p"`
	TopK              int      `mapstructure:"top_k"`
	RepetitionPenalty float64  `mapstructure:"repetition_penalty"`
	Stop              []string `mapstructure:"stop"`
	Seed              int      `mapstructure:"seed"`
}

// Options are forwarded verbatim to the completion endpoint.
type Options struct {
	MaxTokens        int       `mapstructure:"max_tokens"`
	Temperature      float64   `mapstructure:"temperature"`
	IncludeAIFilters bool      `mapstructure:"include_ai_filters"`
	Sampling         *Sampling `mapstructure:"sampling"`
}

func DefaultChatOptions() Options {
	return Options{
		MaxTokens:        553,
		Temperature:      0.5,
		IncludeAIFilters: true,
		Sampling: &Sampling{
			TopP:              0.8,
			TopK:              0,
			RepetitionPenalty: 1.1,
			Stop:              []string{},
			Seed:              0,
		},
	}
}

func DefaultAnalysisOptions() Options {
	return Options{
		MaxTokens:        2048,
		Temperature:      0.5,
		IncludeAIFilters: true,
	}
}

// CompletionRequest is one call to the completion endpoint.
type CompletionRequest struct {
	RequestID string
	Messages  History
	Options   Options
	Stream    bool
}

type wireFragment struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wireMessage struct {
	Role    Role           `json:"role"`
	Content []wireFragment `json:"content"`
}

type wireRequest struct {
	Messages          []wireMessage `json:"messages"`
	TopP              *float64      `json:"topP,omitempty"`
	TopK              *int          `json:"topK,omitempty"`
	MaxTokens         int           `json:"maxTokens,omitempty"`
	Temperature       float64       `json:"temperature"`
	RepetitionPenalty *float64      `json:"repetitionPenalty,omitempty"`
	Stop              []string      `json:"stop,omitempty"`
	Seed              *int          `json:"seed,omitempty"`
	IncludeAIFilters  bool          `json:"includeAiFilters"`
}

// Body renders the request in the endpoint's wire format, where every
// message content is a list holding a single text fragment.
func (r CompletionRequest) Body() ([]byte, error) {
	req := wireRequest{
		Messages:         make([]wireMessage, 0, len(r.Messages)),
		MaxTokens:        r.Options.MaxTokens,
		Temperature:      r.Options.Temperature,
		IncludeAIFilters: r.Options.IncludeAIFilters,
	}
	for _, m := range r.Messages {
		req.Messages = append(req.Messages, wireMessage{
			Role:    m.Role,
			Content: []wireFragment{{Type: "text", Text: m.Content}},
		})
	}
	if s := r.Options.Sampling; s != nil {
		topP, topK, penalty, seed := s.TopP, s.TopK, s.RepetitionPenalty, s.Seed
		req.TopP = &topP
		req.TopK = &topK
		req.RepetitionPenalty = &penalty
		req.Seed = &seed
		req.Stop = s.Stop
	}
	return json.Marshal(req)
}

// NormalizeRequestID strips dashes so a UUID fits the endpoint's request-id header.
func NormalizeRequestID(id string) string {
	return strings.ReplaceAll(id, "-", "")
}
