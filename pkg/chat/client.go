// Package chat assembles conversational replies from the streaming
// completion endpoint.
package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/frames"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/llm"
	"github.com/harunnryd/tutorcore/pkg/logging"
	"github.com/harunnryd/tutorcore/pkg/metrics"
	"github.com/harunnryd/tutorcore/pkg/redact"
)

const (
	DefaultFallbackText = "I'm sorry, I cannot respond right now."
	DefaultTimeout      = 60 * time.Second
)

type Config struct {
	SystemPrompt string
	FallbackText string
	Options      llm.Options
	// Timeout bounds the whole streaming call, including reading the body.
	Timeout time.Duration
	// MaxHistory caps the non-system messages Reply keeps; 0 keeps all.
	MaxHistory int
}

// Client turns a conversation history into a single reply string. It never
// returns an error: transport failures yield the fallback text.
type Client struct {
	transport gateway.CompletionTransport
	cfg       Config
	log       *slog.Logger
	obs       metrics.Observer
	newID     func() string
}

type Option func(*Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = logging.NewComponentLogger(log, "chat")
		}
	}
}

func WithObserver(obs metrics.Observer) Option {
	return func(c *Client) { c.obs = obs }
}

func NewClient(transport gateway.CompletionTransport, cfg Config, opts ...Option) *Client {
	if cfg.FallbackText == "" {
		cfg.FallbackText = DefaultFallbackText
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Options.MaxTokens == 0 && cfg.Options.Sampling == nil {
		cfg.Options = llm.DefaultChatOptions()
	}
	c := &Client{
		transport: transport,
		cfg:       cfg,
		log:       logging.NewComponentLogger(slog.Default(), "chat"),
		obs:       metrics.NoopObserver{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FallbackText is the reply returned when the endpoint cannot be reached.
func (c *Client) FallbackText() string { return c.cfg.FallbackText }

// Complete streams a reply for history. Lines are consumed strictly in order
// and reading stops at the first done event. If the call fails before any
// text arrives the fallback text is returned; text received before a failure
// is returned as is.
func (c *Client) Complete(ctx context.Context, history llm.History, opts llm.Options) string {
	start := time.Now()
	requestID := c.newID()
	log := c.log.With(slog.String("request_id", requestID))

	if err := history.Validate(); err != nil {
		log.Warn("chat_invalid_history", "error", err)
		return c.fallback(start, errorsx.Wrap(err, errorsx.ReasonShape))
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := c.transport.Stream(ctx, llm.CompletionRequest{
		RequestID: requestID,
		Messages:  history,
		Options:   opts,
		Stream:    true,
	})
	if err != nil {
		log.Warn("chat_stream_failed", "error", err, "reason", errorsx.Reason(err))
		return c.fallback(start, err)
	}
	defer body.Close()

	text, stats, err := Assemble(body, c.observeEvent)
	if err != nil {
		err = errorsx.Wrap(err, errorsx.ReasonTransport)
		if text == "" {
			log.Warn("chat_stream_interrupted", "error", err, "lines", stats.Lines)
			return c.fallback(start, err)
		}
		log.Warn("chat_stream_partial", "error", err, "lines", stats.Lines, "chars", len(text))
		c.record(metrics.EventChatComplete, start, "partial")
		return text
	}
	if !stats.Done {
		log.Debug("chat_stream_ended_without_done", "lines", stats.Lines)
	}
	log.Debug("chat_reply", "deltas", stats.Deltas, "ignored", stats.Ignored, "text", redact.Snippet(text))
	c.record(metrics.EventChatComplete, start, "ok")
	return text
}

// Reply appends userText to history, seeding the system prompt for a new
// conversation, and returns the reply together with the extended history.
// Older turns beyond MaxHistory are dropped. The input history is not
// modified.
func (c *Client) Reply(ctx context.Context, history llm.History, userText string) (string, llm.History) {
	if len(history) == 0 && c.cfg.SystemPrompt != "" {
		history = llm.History{{Role: llm.RoleSystem, Content: c.cfg.SystemPrompt}}
	}
	history = history.Append(llm.Message{Role: llm.RoleUser, Content: userText}).Prune(c.cfg.MaxHistory)
	reply := c.Complete(ctx, history, c.cfg.Options)
	return reply, history.Append(llm.Message{Role: llm.RoleAssistant, Content: reply})
}

func (c *Client) fallback(start time.Time, err error) string {
	metrics.Record(c.obs, metrics.EventChatFallback, 1, map[string]string{
		"component": "chat",
		"outcome":   string(errorsx.Reason(err)),
	})
	c.record(metrics.EventChatComplete, start, "fallback")
	return c.cfg.FallbackText
}

func (c *Client) observeEvent(ev frames.Event) {
	tags := map[string]string{"component": "chat", "outcome": string(ev.Kind)}
	if ev.Reason != "" {
		tags["reason"] = string(ev.Reason)
	}
	metrics.Record(c.obs, metrics.EventChatStreamEvent, 0, tags)
}

func (c *Client) record(name string, start time.Time, outcome string) {
	metrics.Record(c.obs, name, time.Since(start).Seconds(), map[string]string{
		"component": "chat",
		"outcome":   outcome,
	})
}
