// Package transcribe submits stored audio to the speech recognizer and
// resolves async jobs by polling object storage for their result artifact.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/gateway"
	"github.com/harunnryd/tutorcore/pkg/logging"
	"github.com/harunnryd/tutorcore/pkg/metrics"
	"github.com/harunnryd/tutorcore/pkg/redact"
)

const (
	DefaultLanguage     = "ko-KR"
	DefaultResultSuffix = ".json"
	DefaultUploadPrefix = "audio-storage"
)

// DefaultLanguages is the recognizer's supported language set.
var DefaultLanguages = []string{"ko-KR", "en-US", "enko", "ja", "zh-cn", "zh-tw"}

var audioExtensions = map[string]bool{"mp3": true, "m4a": true, "wav": true, "aac": true}

type Config struct {
	Languages       []string
	DefaultLanguage string
	// ResultPrefix is prepended to the audio key when listing result
	// artifacts. Empty means artifacts are stored under the audio key itself.
	ResultPrefix string
	ResultSuffix string
	UploadPrefix string

	WordAlignment bool
	FullText      bool
	Diarization   bool
}

// DefaultConfig matches the recognizer options the backend has always sent.
func DefaultConfig() Config {
	return Config{
		Languages:       append([]string(nil), DefaultLanguages...),
		DefaultLanguage: DefaultLanguage,
		ResultSuffix:    DefaultResultSuffix,
		UploadPrefix:    DefaultUploadPrefix,
		WordAlignment:   true,
		FullText:        true,
	}
}

// Orchestrator drives recognition jobs. It holds no per-job state, so one
// instance can serve concurrent callers.
type Orchestrator struct {
	speech gateway.SpeechTransport
	store  gateway.ObjectStore
	cfg    Config
	langs  map[string]bool
	log    *slog.Logger
	obs    metrics.Observer
	newKey func() string
}

type Option func(*Orchestrator)

func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = logging.NewComponentLogger(log, "transcribe")
		}
	}
}

func WithObserver(obs metrics.Observer) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func NewOrchestrator(speech gateway.SpeechTransport, store gateway.ObjectStore, cfg Config, opts ...Option) *Orchestrator {
	defaults := DefaultConfig()
	if len(cfg.Languages) == 0 {
		cfg.Languages = defaults.Languages
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = defaults.DefaultLanguage
	}
	if cfg.ResultSuffix == "" {
		cfg.ResultSuffix = defaults.ResultSuffix
	}
	if cfg.UploadPrefix == "" {
		cfg.UploadPrefix = defaults.UploadPrefix
	}
	langs := make(map[string]bool, len(cfg.Languages))
	for _, l := range cfg.Languages {
		langs[strings.ToLower(l)] = true
	}
	o := &Orchestrator{
		speech: speech,
		store:  store,
		cfg:    cfg,
		langs:  langs,
		log:    logging.NewComponentLogger(slog.Default(), "transcribe"),
		obs:    metrics.NoopObserver{},
		newKey: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type recognizeResponse struct {
	Result  string  `json:"result"`
	Message string  `json:"message"`
	Token   string  `json:"token"`
	Text    *string `json:"text"`
}

// SubmitSync recognizes audioKey and blocks until the transcript is ready.
func (o *Orchestrator) SubmitSync(ctx context.Context, audioKey, language string) (string, error) {
	const op = "submit_sync"
	resp, err := o.recognize(ctx, op, audioKey, language, gateway.ModeSync)
	if err != nil {
		return "", err
	}
	if resp.Text == nil {
		o.log.Warn("transcribe_invalid_response", "op", op, "object_key", audioKey, "result", resp.Result)
		o.recordSubmit(gateway.ModeSync, audioKey, "shape_error")
		return "", shapeError(op, resp.Message)
	}
	o.recordSubmit(gateway.ModeSync, audioKey, "ok")
	o.log.Info("transcribe_completed", "object_key", audioKey, "transcript", redact.Snippet(*resp.Text))
	return *resp.Text, nil
}

// SubmitAsync asks the recognizer to deliver its result to object storage
// and returns the job token without waiting for recognition.
func (o *Orchestrator) SubmitAsync(ctx context.Context, audioKey, language string) (string, error) {
	const op = "submit_async"
	resp, err := o.recognize(ctx, op, audioKey, language, gateway.ModeAsync)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Token) == "" {
		o.log.Warn("transcribe_invalid_response", "op", op, "object_key", audioKey, "result", resp.Result)
		o.recordSubmit(gateway.ModeAsync, audioKey, "shape_error")
		return "", shapeError(op, resp.Message)
	}
	o.recordSubmit(gateway.ModeAsync, audioKey, "ok")
	o.log.Info("transcribe_accepted", "object_key", audioKey, "token", resp.Token, "result", resp.Result)
	return resp.Token, nil
}

// Submit runs job in its mode and records the outcome on it. A sync job ends
// completed or failed; an async job moves to pending with its token. Only a
// job that is still submitted is sent to the recognizer.
func (o *Orchestrator) Submit(ctx context.Context, job *Job) error {
	if job.Status != StatusSubmitted {
		to := StatusCompleted
		if job.Mode == gateway.ModeAsync {
			to = StatusPending
		}
		return &InvalidTransitionError{JobID: job.ID, From: job.Status, To: to}
	}
	if job.Mode == gateway.ModeAsync {
		token, err := o.SubmitAsync(ctx, job.ObjectKey, job.Language)
		if err != nil {
			o.fail(job, err)
			return err
		}
		job.Token = token
		return job.transition(StatusPending)
	}
	text, err := o.SubmitSync(ctx, job.ObjectKey, job.Language)
	if err != nil {
		o.fail(job, err)
		return err
	}
	return job.Apply(Poll{Status: StatusCompleted, Transcript: text})
}

func (o *Orchestrator) fail(job *Job, err error) {
	msg := err.Error()
	var e *Error
	if errors.As(err, &e) && e.Remote != "" {
		msg = e.Remote
	}
	if applyErr := job.Apply(Poll{Status: StatusFailed, Message: msg}); applyErr != nil {
		o.log.Warn("transcribe_job_transition_failed", "job_id", job.ID, "error", applyErr)
	}
}

func (o *Orchestrator) recognize(ctx context.Context, op, audioKey, language string, mode gateway.CompletionMode) (recognizeResponse, error) {
	var resp recognizeResponse
	if strings.TrimSpace(audioKey) == "" {
		return resp, &Error{Op: op, Reason: errorsx.ReasonInvalidInput, Err: errorsx.New(errorsx.ReasonInvalidInput, "object key is required")}
	}
	lang, err := o.language(language)
	if err != nil {
		return resp, &Error{Op: op, Reason: errorsx.ReasonInvalidInput, Err: err}
	}
	body, err := o.speech.Recognize(ctx, gateway.SpeechRequest{
		DataKey:       audioKey,
		Language:      lang,
		Completion:    mode,
		ResultToObs:   mode == gateway.ModeAsync,
		WordAlignment: o.cfg.WordAlignment,
		FullText:      o.cfg.FullText,
		Diarization:   o.cfg.Diarization,
	})
	if err != nil {
		e := newError(op, err)
		o.log.Error("transcribe_request_failed", "op", op, "object_key", audioKey, "error", err, "reason", e.Reason, "remote", redact.Snippet(e.Remote))
		o.recordSubmit(mode, audioKey, string(e.Reason))
		return resp, e
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		o.log.Warn("transcribe_decode_failed", "op", op, "object_key", audioKey, "body", redact.Snippet(string(body)))
		o.recordSubmit(mode, audioKey, "decode_error")
		return resp, &Error{Op: op, Reason: errorsx.ReasonDecode, Remote: string(body), Err: errorsx.Wrap(ErrInvalidResponse, errorsx.ReasonDecode)}
	}
	return resp, nil
}

// language resolves an empty value to the default and checks the allow-list.
func (o *Orchestrator) language(language string) (string, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		return o.cfg.DefaultLanguage, nil
	}
	if !o.langs[strings.ToLower(language)] {
		return "", errorsx.New(errorsx.ReasonInvalidInput, "unsupported language %q", language)
	}
	return language, nil
}

// Languages returns the allowed recognition languages.
func (o *Orchestrator) Languages() []string {
	return append([]string(nil), o.cfg.Languages...)
}

// PollResult looks for the result artifact of audioKey. Storage and decode
// failures are logged and reported as pending; only an explicit failure
// signal in the artifact resolves to failed. Pending polls only read.
func (o *Orchestrator) PollResult(ctx context.Context, audioKey string) Poll {
	start := time.Now()
	res := o.poll(ctx, audioKey)
	metrics.Record(o.obs, metrics.EventTranscribePoll, time.Since(start).Seconds(), map[string]string{
		"component":  "transcribe",
		"outcome":    string(res.Status),
		"object_key": audioKey,
	})
	return res
}

type artifact struct {
	Result  string  `json:"result"`
	Message string  `json:"message"`
	Text    *string `json:"text"`
}

func (o *Orchestrator) poll(ctx context.Context, audioKey string) Poll {
	pending := Poll{Status: StatusPending}
	if strings.TrimSpace(audioKey) == "" {
		return pending
	}
	prefix := audioKey
	if o.cfg.ResultPrefix != "" {
		prefix = path.Join(o.cfg.ResultPrefix, audioKey)
	}
	entries, err := o.store.List(ctx, prefix)
	if err != nil {
		o.log.Warn("transcribe_poll_list_failed", "object_key", audioKey, "error", err)
		return pending
	}
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Key, o.cfg.ResultSuffix) || !strings.Contains(entry.Key, audioKey) {
			continue
		}
		body, err := o.store.Get(ctx, entry.Key)
		if err != nil {
			o.log.Warn("transcribe_poll_get_failed", "key", entry.Key, "error", err)
			continue
		}
		var art artifact
		if err := json.Unmarshal(body, &art); err != nil {
			o.log.Warn("transcribe_poll_decode_failed", "key", entry.Key, "error", err)
			continue
		}
		if strings.EqualFold(art.Result, "FAILED") {
			o.log.Warn("transcribe_job_failed", "key", entry.Key, "message", art.Message)
			return Poll{Status: StatusFailed, Message: art.Message, ArtifactKey: entry.Key}
		}
		if art.Text != nil {
			o.log.Info("transcribe_poll_completed", "key", entry.Key, "transcript", redact.Snippet(*art.Text))
			return Poll{Status: StatusCompleted, Transcript: *art.Text, ArtifactKey: entry.Key}
		}
	}
	o.log.Debug("transcribe_poll_pending", "object_key", audioKey, "listed", len(entries))
	return pending
}

// Refresh polls for job's result and applies it. Terminal jobs are left as
// they are.
func (o *Orchestrator) Refresh(ctx context.Context, job *Job) error {
	if job.Status.Terminal() {
		return nil
	}
	return job.Apply(o.PollResult(ctx, job.ObjectKey))
}

// Upload stores audio under a fresh key derived from filename's extension
// and returns that key.
func (o *Orchestrator) Upload(ctx context.Context, filename string, body []byte) (string, error) {
	ext := "bin"
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		ext = strings.ToLower(filename[i+1:])
	}
	contentType := "application/octet-stream"
	if audioExtensions[ext] {
		contentType = "audio/" + ext
	}
	key := fmt.Sprintf("%s/%s.%s", strings.TrimRight(o.cfg.UploadPrefix, "/"), o.newKey(), ext)

	start := time.Now()
	err := o.store.Put(ctx, key, body, contentType)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.Record(o.obs, metrics.EventStorageUpload, float64(len(body)), map[string]string{
		"component": "transcribe",
		"outcome":   outcome,
	})
	if err != nil {
		o.log.Error("storage_upload_failed", "key", key, "error", err)
		return "", newError("upload", err)
	}
	o.log.Info("storage_uploaded", "key", key, "bytes", len(body), "content_type", contentType, "duration_ms", time.Since(start).Milliseconds())
	return key, nil
}

// Remove deletes a stored object.
func (o *Orchestrator) Remove(ctx context.Context, key string) error {
	if err := o.store.Delete(ctx, key); err != nil {
		o.log.Warn("storage_delete_failed", "key", key, "error", err)
		return newError("remove", err)
	}
	o.log.Info("storage_deleted", "key", key)
	return nil
}

func (o *Orchestrator) recordSubmit(mode gateway.CompletionMode, audioKey, outcome string) {
	metrics.Record(o.obs, metrics.EventTranscribeSubmit, 1, map[string]string{
		"component":  "transcribe",
		"mode":       string(mode),
		"outcome":    outcome,
		"object_key": audioKey,
	})
}
