package mock

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/harunnryd/tutorcore/pkg/llm"
)

type CompletionConfig struct {
	// StreamLines are written to the stream body, one per line.
	StreamLines []string
	StreamErr   error
	// ReadErr is returned once the stream lines are exhausted instead of io.EOF.
	ReadErr error
	// Hang blocks reads after the stream lines until the body is closed.
	Hang bool

	ResponseText string
	CompleteBody string
	CompleteErr  error
}

// CompletionTransport is a scripted gateway.CompletionTransport.
type CompletionTransport struct {
	cfg      CompletionConfig
	mu       sync.Mutex
	requests []llm.CompletionRequest
	bodies   []*StreamBody
}

func NewCompletionTransport(cfg CompletionConfig) *CompletionTransport {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &CompletionTransport{cfg: cfg}
}

func (t *CompletionTransport) Name() string { return "mock_completion" }

func (t *CompletionTransport) Stream(ctx context.Context, req llm.CompletionRequest) (io.ReadCloser, error) {
	req.Stream = true
	t.record(req)
	if t.cfg.StreamErr != nil {
		return nil, t.cfg.StreamErr
	}
	lines := t.cfg.StreamLines
	if len(lines) == 0 {
		lines = []string{
			`data: {"message":{"role":"assistant","content":` + quote(t.cfg.ResponseText) + `}}`,
			"data: [DONE]",
		}
	}
	body := NewStreamBody(strings.Join(lines, "\n")+"\n", t.cfg.ReadErr, t.cfg.Hang)
	body.ctx = ctx
	t.mu.Lock()
	t.bodies = append(t.bodies, body)
	t.mu.Unlock()
	return body, nil
}

func (t *CompletionTransport) Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error) {
	t.record(req)
	if t.cfg.CompleteErr != nil {
		return nil, t.cfg.CompleteErr
	}
	if t.cfg.CompleteBody != "" {
		return []byte(t.cfg.CompleteBody), nil
	}
	return json.Marshal(map[string]any{
		"status": map[string]any{"code": "20000", "message": "OK"},
		"result": map[string]any{
			"message": map[string]any{"role": "assistant", "content": t.cfg.ResponseText},
		},
	})
}

// Requests returns every request received so far.
func (t *CompletionTransport) Requests() []llm.CompletionRequest {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]llm.CompletionRequest(nil), t.requests...)
}

// LastBody returns the most recently opened stream body.
func (t *CompletionTransport) LastBody() *StreamBody {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.bodies) == 0 {
		return nil
	}
	return t.bodies[len(t.bodies)-1]
}

func (t *CompletionTransport) record(req llm.CompletionRequest) {
	t.mu.Lock()
	t.requests = append(t.requests, req)
	t.mu.Unlock()
}

// StreamBody is an in-memory response body that can fail or stall at its end.
type StreamBody struct {
	ctx     context.Context
	r       *strings.Reader
	readErr error
	hang    bool
	closed  chan struct{}
	once    sync.Once
}

func NewStreamBody(data string, readErr error, hang bool) *StreamBody {
	return &StreamBody{
		ctx:     context.Background(),
		r:       strings.NewReader(data),
		readErr: readErr,
		hang:    hang,
		closed:  make(chan struct{}),
	}
}

func (b *StreamBody) Read(p []byte) (int, error) {
	if b.Closed() {
		return 0, io.ErrClosedPipe
	}
	n, err := b.r.Read(p)
	if err != io.EOF {
		return n, err
	}
	if b.hang {
		select {
		case <-b.closed:
			return 0, io.ErrClosedPipe
		case <-b.ctx.Done():
			return 0, b.ctx.Err()
		}
	}
	if b.readErr != nil {
		return n, b.readErr
	}
	return n, io.EOF
}

func (b *StreamBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func (b *StreamBody) Closed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
