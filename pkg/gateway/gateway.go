// Package gateway defines the external service contracts the integration
// layer depends on: the completion endpoint, the speech recognizer and
// object storage. Concrete transports live under pkg/providers.
package gateway

import (
	"context"
	"fmt"
	"io"

	"github.com/harunnryd/tutorcore/pkg/llm"
)

// CompletionTransport talks to the chat-completion endpoint.
type CompletionTransport interface {
	Name() string
	// Stream opens a streaming completion. The returned body yields the
	// response incrementally and must be closed by the caller.
	Stream(ctx context.Context, req llm.CompletionRequest) (io.ReadCloser, error)
	// Complete performs a non-streaming completion and returns the full body.
	Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error)
}

// CompletionMode selects how the recognizer delivers its result.
type CompletionMode string

const (
	ModeSync  CompletionMode = "sync"
	ModeAsync CompletionMode = "async"
)

// SpeechRequest references audio that is already in object storage.
type SpeechRequest struct {
	DataKey       string
	Language      string
	Completion    CompletionMode
	ResultToObs   bool
	WordAlignment bool
	FullText      bool
	Diarization   bool
}

// SpeechTransport submits recognition requests and returns the raw response body.
type SpeechTransport interface {
	Name() string
	Recognize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// ObjectEntry is one stored object. List leaves Body empty.
type ObjectEntry struct {
	Key  string
	Body []byte
}

// ObjectStore is the subset of object storage the layer needs.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]ObjectEntry, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// StatusError is a non-2xx response. Body keeps the remote diagnostic text.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, e.Body)
}
