// Package tutor assembles the integration layer from configuration: gateway
// providers, observers and the chat, analysis and transcription components.
package tutor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harunnryd/tutorcore/pkg/analysis"
	"github.com/harunnryd/tutorcore/pkg/chat"
	"github.com/harunnryd/tutorcore/pkg/config"
	"github.com/harunnryd/tutorcore/pkg/configutil"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/llm"
	"github.com/harunnryd/tutorcore/pkg/logging"
	"github.com/harunnryd/tutorcore/pkg/metrics"
	"github.com/harunnryd/tutorcore/pkg/observers"
	"github.com/harunnryd/tutorcore/pkg/redact"
	"github.com/harunnryd/tutorcore/pkg/resilience"
	"github.com/harunnryd/tutorcore/pkg/transcribe"
)

type Options struct {
	Config    config.Config
	Providers *ProviderRegistry
	// Logger defaults to one built from the config's log settings.
	Logger *slog.Logger
	// LogOutput is where the default logger writes; stdout when nil.
	LogOutput io.Writer
	// Registry receives the Prometheus collectors when metrics.prometheus
	// is enabled. A fresh registry is created when nil.
	Registry *prometheus.Registry
	// Observers are added to the configured observer fan-out.
	Observers []metrics.Observer
}

// Engine owns the configured components. It is safe for concurrent use once
// built; only transcription is constructed lazily.
type Engine struct {
	cfg       config.Config
	providers *ProviderRegistry
	log       *slog.Logger
	obs       metrics.Observer
	asyncObs  *metrics.AsyncObserver
	closers   []io.Closer
	registry  *prometheus.Registry
	breaker   *resilience.CircuitBreaker

	completion gateway.CompletionTransport
	chat       *chat.Client
	analysis   *analysis.Parser

	transcribeOnce sync.Once
	transcriber    *transcribe.Orchestrator
	transcribeErr  error
}

func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logging.InitLogger(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: opts.LogOutput})
	}
	redact.SetEnabled(cfg.Privacy.RedactPII)

	providers := opts.Providers
	if providers == nil {
		providers = DefaultProviders()
	}

	e := &Engine{cfg: cfg, providers: providers, log: log}
	if err := e.buildObservers(opts); err != nil {
		_ = e.Close()
		return nil, err
	}

	log.Info("tutorcore_init",
		"environment", cfg.Environment,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"speech_provider", cfg.Vendors.Speech.Provider,
		"storage_provider", cfg.Vendors.Storage.Provider,
		"circuit_enabled", cfg.Circuit.Enabled,
		"redact_pii", cfg.Privacy.RedactPII,
	)

	completion, err := providers.BuildCompletion(cfg.Vendors.LLM)
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("build completion transport: %w", err)
	}
	if cfg.Circuit.Enabled {
		e.breaker = resilience.NewCircuitBreaker(cfg.Circuit.Threshold, configutil.Millis(cfg.Circuit.CooldownMS, 0))
		bt := gateway.NewBreakerTransport(completion, e.breaker)
		bt.SetObserver(e.obs)
		completion = bt
	}
	e.completion = completion

	e.chat = chat.NewClient(completion, chat.Config{
		SystemPrompt: cfg.Chat.SystemPrompt,
		FallbackText: cfg.Chat.FallbackText,
		Options:      chatOptions(cfg.Chat),
		Timeout:      cfg.Chat.Timeout(),
		MaxHistory:   cfg.Chat.MaxHistory,
	}, chat.WithLogger(log), chat.WithObserver(e.obs))

	loc, err := cfg.Analysis.Location()
	if err != nil {
		_ = e.Close()
		return nil, fmt.Errorf("analysis location: %w", err)
	}
	e.analysis = analysis.NewParser(completion, analysis.Config{
		Instruction: cfg.Analysis.Instruction,
		Options: llm.Options{
			MaxTokens:        cfg.Analysis.MaxTokens,
			Temperature:      cfg.Analysis.Temperature,
			IncludeAIFilters: cfg.Analysis.IncludeAIFilters,
		},
		Location: loc,
	}, analysis.WithLogger(log), analysis.WithObserver(e.obs))

	return e, nil
}

func chatOptions(c config.ChatConfig) llm.Options {
	return llm.Options{
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
		IncludeAIFilters: c.IncludeAIFilters,
		Sampling: &llm.Sampling{
			TopP:              c.TopP,
			TopK:              c.TopK,
			RepetitionPenalty: c.RepetitionPenalty,
			Stop:              append([]string{}, c.Stop...),
			Seed:              c.Seed,
		},
	}
}

func (e *Engine) buildObservers(opts Options) error {
	cfg := e.cfg.Metrics
	list := []metrics.Observer{
		observers.NewLoggerObserver(e.log),
		observers.NewTurnaroundObserver(e.log).WithTTL(e.cfg.Transcription.TurnaroundTTL()),
	}
	if path := strings.TrimSpace(cfg.JSONLPath); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open metrics jsonl: %w", err)
		}
		e.closers = append(e.closers, f)
		list = append(list, metrics.NewJSONLObserver(f))
	}
	if cfg.Prometheus {
		e.registry = opts.Registry
		if e.registry == nil {
			e.registry = prometheus.NewRegistry()
		}
		prom, err := metrics.NewPrometheusObserver(e.registry)
		if err != nil {
			return fmt.Errorf("register prometheus collectors: %w", err)
		}
		list = append(list, prom)
	}
	list = append(list, opts.Observers...)

	var obs metrics.Observer = observers.NewMultiObserver(list...)
	if cfg.SampleRate > 0 && cfg.SampleRate < 1 {
		obs = metrics.NewSamplingObserver(obs, cfg.SampleRate, metrics.EventChatStreamEvent)
	}
	if cfg.Async {
		e.asyncObs = metrics.NewAsyncObserver(obs, 2048)
		obs = e.asyncObs
	}
	e.obs = obs
	return nil
}

func (e *Engine) Config() config.Config { return e.cfg }

func (e *Engine) Logger() *slog.Logger { return e.log }

func (e *Engine) Chat() *chat.Client { return e.chat }

func (e *Engine) Analyzer() *analysis.Parser { return e.analysis }

// Transcriber builds the orchestrator on first use so that chat-only
// deployments do not need speech or storage credentials.
func (e *Engine) Transcriber() (*transcribe.Orchestrator, error) {
	e.transcribeOnce.Do(func() {
		speech, err := e.providers.BuildSpeech(e.cfg.Vendors.Speech)
		if err != nil {
			e.transcribeErr = fmt.Errorf("build speech transport: %w", err)
			return
		}
		store, err := e.providers.BuildStorage(e.cfg.Vendors.Storage)
		if err != nil {
			e.transcribeErr = fmt.Errorf("build object store: %w", err)
			return
		}
		tc := e.cfg.Transcription
		e.transcriber = transcribe.NewOrchestrator(speech, store, transcribe.Config{
			Languages:       tc.Languages,
			DefaultLanguage: tc.DefaultLanguage,
			ResultPrefix:    tc.ResultPrefix,
			ResultSuffix:    tc.ResultSuffix,
			UploadPrefix:    tc.UploadPrefix,
			WordAlignment:   tc.WordAlignment,
			FullText:        tc.FullText,
			Diarization:     tc.Diarization,
		}, transcribe.WithLogger(e.log), transcribe.WithObserver(e.obs))
	})
	return e.transcriber, e.transcribeErr
}

// TranscriptionMode is the configured default submit mode.
func (e *Engine) TranscriptionMode() gateway.CompletionMode {
	if strings.EqualFold(e.cfg.Transcription.Mode, string(gateway.ModeAsync)) {
		return gateway.ModeAsync
	}
	return gateway.ModeSync
}

// CircuitOpen reports whether the completion breaker is rejecting calls.
func (e *Engine) CircuitOpen() bool {
	return e.breaker != nil && e.breaker.Open()
}

// MetricsHandler serves the Prometheus registry, or nil when Prometheus
// export is disabled.
func (e *Engine) MetricsHandler() http.Handler {
	if e.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Drain flushes buffered metrics. It satisfies runner.Drainer.
func (e *Engine) Drain() error {
	if e.asyncObs != nil {
		e.asyncObs.Close()
	}
	return nil
}

func (e *Engine) Close() error {
	start := time.Now()
	_ = e.Drain()
	var errs error
	for _, c := range e.closers {
		errs = errors.Join(errs, c.Close())
	}
	e.closers = nil
	if e.log != nil {
		e.log.Debug("tutorcore_closed", "duration_ms", time.Since(start).Milliseconds())
	}
	return errs
}
