package observers

import (
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/tutorcore/pkg/metrics"
)

// DefaultTurnaroundTTL bounds how long an unresolved job is tracked.
const DefaultTurnaroundTTL = 24 * time.Hour

// TurnaroundObserver measures async transcription jobs from an accepted
// submit to the poll that resolves them, keyed by object key. Jobs that are
// not resolved within the TTL are dropped.
type TurnaroundObserver struct {
	mu   sync.Mutex
	jobs map[string]*turnaround
	ttl  time.Duration
	log  *slog.Logger
}

type turnaround struct {
	submitted time.Time
	polls     int
}

func NewTurnaroundObserver(log *slog.Logger) *TurnaroundObserver {
	if log == nil {
		log = slog.Default()
	}
	return &TurnaroundObserver{
		jobs: make(map[string]*turnaround),
		ttl:  DefaultTurnaroundTTL,
		log:  log,
	}
}

// WithTTL sets how long an unresolved job is kept. Non-positive values keep
// the default.
func (o *TurnaroundObserver) WithTTL(ttl time.Duration) *TurnaroundObserver {
	if ttl > 0 {
		o.mu.Lock()
		o.ttl = ttl
		o.mu.Unlock()
	}
	return o
}

func (o *TurnaroundObserver) RecordEvent(ev metrics.MetricsEvent) {
	if ev.Tags == nil {
		return
	}
	key := ev.Tags["object_key"]
	if key == "" {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	switch ev.Name {
	case metrics.EventTranscribeSubmit:
		o.expire(ev.Time)
		if ev.Tags["mode"] == "async" && ev.Tags["outcome"] == "ok" {
			o.jobs[key] = &turnaround{submitted: ev.Time}
		}
	case metrics.EventTranscribePoll:
		t := o.jobs[key]
		if t == nil {
			return
		}
		t.polls++
		outcome := ev.Tags["outcome"]
		if outcome != "completed" && outcome != "failed" {
			return
		}
		o.log.Info("transcribe_turnaround",
			"object_key", key,
			"outcome", outcome,
			"polls", t.polls,
			"turnaround_ms", durationMs(t.submitted, ev.Time),
		)
		delete(o.jobs, key)
	}
}

// expire drops jobs submitted more than ttl before now. Callers hold mu.
func (o *TurnaroundObserver) expire(now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	for key, t := range o.jobs {
		if now.Sub(t.submitted) <= o.ttl {
			continue
		}
		o.log.Debug("transcribe_turnaround_expired", "object_key", key, "polls", t.polls)
		delete(o.jobs, key)
	}
}

// Pending returns the number of submitted jobs not yet resolved.
func (o *TurnaroundObserver) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.jobs)
}

func durationMs(a, b time.Time) int64 {
	if a.IsZero() || b.IsZero() {
		return -1
	}
	return b.Sub(a).Milliseconds()
}
