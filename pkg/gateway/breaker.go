package gateway

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/harunnryd/tutorcore/pkg/errorsx"
	"github.com/harunnryd/tutorcore/pkg/llm"
	"github.com/harunnryd/tutorcore/pkg/metrics"
	"github.com/harunnryd/tutorcore/pkg/resilience"
)

// BreakerTransport wraps a CompletionTransport with rate-limit circuit breaking.
type BreakerTransport struct {
	inner   CompletionTransport
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
	open    bool
	mu      sync.Mutex
}

func NewBreakerTransport(inner CompletionTransport, breaker *resilience.CircuitBreaker) *BreakerTransport {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &BreakerTransport{inner: inner, breaker: breaker}
}

func (b *BreakerTransport) Name() string { return b.inner.Name() }

// SetObserver allows metrics emission for breaker events.
func (b *BreakerTransport) SetObserver(obs metrics.Observer) { b.obs = obs }

func (b *BreakerTransport) Stream(ctx context.Context, req llm.CompletionRequest) (io.ReadCloser, error) {
	if err := b.admit(); err != nil {
		return nil, err
	}
	body, err := b.inner.Stream(ctx, req)
	b.settle(err)
	return body, err
}

func (b *BreakerTransport) Complete(ctx context.Context, req llm.CompletionRequest) ([]byte, error) {
	if err := b.admit(); err != nil {
		return nil, err
	}
	body, err := b.inner.Complete(ctx, req)
	b.settle(err)
	return body, err
}

func (b *BreakerTransport) admit() error {
	if !b.breaker.Allow() {
		b.setOpen(true)
		b.record(metrics.EventBreakerDenied)
		return errorsx.Wrap(resilience.RateLimitError{Provider: b.Name(), Message: "circuit open"}, errorsx.ReasonCircuitOpen)
	}
	b.setOpen(false)
	return nil
}

func (b *BreakerTransport) settle(err error) {
	if err == nil {
		b.breaker.OnSuccess()
		return
	}
	if resilience.IsRateLimit(err) {
		b.record(metrics.EventRateLimit)
	}
	b.breaker.OnError(err)
}

func (b *BreakerTransport) record(name string) {
	metrics.Record(b.obs, name, 0, map[string]string{
		"provider":  b.inner.Name(),
		"component": "completion",
	})
}

func (b *BreakerTransport) setOpen(open bool) {
	b.mu.Lock()
	changed := b.open != open
	b.open = open
	b.mu.Unlock()
	if !changed {
		return
	}
	if open {
		b.record(metrics.EventBreakerOpen)
		return
	}
	b.record(metrics.EventBreakerClose)
}
