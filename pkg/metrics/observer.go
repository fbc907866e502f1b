package metrics

import "time"

// Event names emitted by the integration layer.
const (
	EventChatComplete     = "chat_complete"
	EventChatFallback     = "chat_fallback"
	EventChatStreamEvent  = "chat_stream_event"
	EventAnalysisComplete = "analysis_complete"
	EventAnalysisDegraded = "analysis_degraded"
	EventTranscribeSubmit = "transcribe_submit"
	EventTranscribePoll   = "transcribe_poll"
	EventStorageUpload    = "storage_upload"
	EventRateLimit        = "rate_limit"
	EventBreakerOpen      = "breaker_open"
	EventBreakerClose     = "breaker_close"
	EventBreakerDenied    = "breaker_denied"
)

type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

type Observer interface {
	RecordEvent(ev MetricsEvent)
}

type Flusher interface {
	Flush() error
}

type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}

// Record is a nil-safe helper for emitting an event stamped with the current time.
func Record(obs Observer, name string, value float64, tags map[string]string) {
	if obs == nil {
		return
	}
	obs.RecordEvent(MetricsEvent{Name: name, Time: time.Now(), Value: value, Tags: tags})
}
