package runner

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

func TestLifecycleRunnerRunsHooksAndDrains(t *testing.T) {
	var started, stopped, drained bool
	r := NewLifecycleRunner(DrainerFunc(func() error {
		drained = true
		return nil
	}), Hooks{
		OnStart: func(ctx context.Context) { started = ctx != nil },
		OnStop:  func() { stopped = true },
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}
	if !started || !stopped || !drained {
		t.Fatalf("expected all hooks, started=%v stopped=%v drained=%v", started, stopped, drained)
	}
	if r.State() != StateStopped {
		t.Fatalf("expected stopped, got %s", r.State())
	}
	if err := r.Run(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state on second run, got %v", err)
	}
}

func TestLifecycleRunnerDrainTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	r := NewLifecycleRunner(DrainerFunc(func() error {
		<-block
		return nil
	}), Hooks{}, 20*time.Millisecond)

	if err := r.Stop(); err == nil {
		t.Fatalf("expected drain timeout")
	}
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)
	if !bytes.Contains(buf.Bytes(), []byte("Version: "+Version)) {
		t.Fatalf("unexpected banner %q", buf.String())
	}
}
