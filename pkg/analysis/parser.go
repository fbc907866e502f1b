// Package analysis turns a lecture transcript into a summary and a list of
// action items by asking the completion endpoint for structured output.
package analysis

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/llm"
	"github.com/harunnryd/tutorcore/pkg/logging"
	"github.com/harunnryd/tutorcore/pkg/metrics"
	"github.com/harunnryd/tutorcore/pkg/redact"
)

// ErrNoInstruction is returned when no analysis instruction is configured.
var ErrNoInstruction = errorsx.New(errorsx.ReasonConfig, "analysis instruction is not configured")

type Config struct {
	// Instruction is sent as the system message.
	Instruction string
	Options     llm.Options
	// Location is used for due dates without an explicit zone.
	Location *time.Location
}

// Parser runs the analysis request. Every failure except misconfiguration
// degrades to a placeholder Result.
type Parser struct {
	transport gateway.CompletionTransport
	cfg       Config
	log       *slog.Logger
	obs       metrics.Observer
	newID     func() string
}

type Option func(*Parser)

func WithLogger(log *slog.Logger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = logging.NewComponentLogger(log, "analysis")
		}
	}
}

func WithObserver(obs metrics.Observer) Option {
	return func(p *Parser) { p.obs = obs }
}

func NewParser(transport gateway.CompletionTransport, cfg Config, opts ...Option) *Parser {
	if cfg.Options.MaxTokens == 0 {
		cfg.Options = llm.DefaultAnalysisOptions()
	}
	p := &Parser{
		transport: transport,
		cfg:       cfg,
		log:       logging.NewComponentLogger(slog.Default(), "analysis"),
		obs:       metrics.NoopObserver{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type completionEnvelope struct {
	Result struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"result"`
}

// Analyze sends transcript with the configured instruction and parses the
// answer. The returned error is non-nil only for configuration failures.
func (p *Parser) Analyze(ctx context.Context, transcript string) (Result, error) {
	if strings.TrimSpace(p.cfg.Instruction) == "" {
		return Result{}, ErrNoInstruction
	}
	start := time.Now()
	requestID := p.newID()
	log := p.log.With(slog.String("request_id", requestID))

	if strings.TrimSpace(transcript) == "" {
		log.Warn("analysis_empty_transcript")
		return p.finish(start, degraded(OutcomeShapeError)), nil
	}

	body, err := p.transport.Complete(ctx, llm.CompletionRequest{
		RequestID: requestID,
		Messages: llm.History{
			{Role: llm.RoleSystem, Content: p.cfg.Instruction},
			{Role: llm.RoleUser, Content: transcript},
		},
		Options: p.cfg.Options,
	})
	if err != nil {
		if !errorsx.Reason(err).Absorbable() {
			return Result{}, err
		}
		log.Warn("analysis_request_failed", "error", err, "reason", errorsx.Reason(err))
		return p.finish(start, degraded(OutcomeTransportError)), nil
	}

	res := ParseResponse(body, p.cfg.Location)
	if res.Degraded() {
		log.Warn("analysis_degraded", "outcome", res.Outcome, "body", redact.Snippet(string(body)))
	} else {
		log.Debug("analysis_parsed", "action_items", len(res.ActionItems))
	}
	return p.finish(start, res), nil
}

// ParseResponse reads the answer text out of a non-streaming completion body
// and parses it with ParseContent.
func ParseResponse(body []byte, loc *time.Location) Result {
	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return degraded(OutcomeDecodeError)
	}
	content := env.Result.Message.Content
	if content == nil {
		return degraded(OutcomeShapeError)
	}
	return ParseContent(*content, loc)
}

func (p *Parser) finish(start time.Time, res Result) Result {
	name := metrics.EventAnalysisComplete
	if res.Degraded() {
		name = metrics.EventAnalysisDegraded
	}
	metrics.Record(p.obs, name, time.Since(start).Seconds(), map[string]string{
		"component": "analysis",
		"outcome":   string(res.Outcome),
	})
	return res
}
