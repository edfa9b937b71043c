package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/charcount/transport"
)

func TestShutdownManager(t *testing.T) {
	t.Run("tracks in-flight requests", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.DefaultShutdownConfig())

		release, ok := sm.Track()
		if !ok {
			t.Fatal("expected Track to succeed")
		}
		if sm.InFlightRequests() != 1 {
			t.Errorf("expected 1 in-flight request, got %d", sm.InFlightRequests())
		}

		release()
		release()
		if sm.InFlightRequests() != 0 {
			t.Errorf("expected release to be idempotent, got %d in flight", sm.InFlightRequests())
		}
	})

	t.Run("rejects requests when draining", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.ShutdownConfig{Timeout: 100 * time.Millisecond})
		if err := sm.Shutdown(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, ok := sm.Track(); ok {
			t.Error("expected Track to fail while draining")
		}
		if !sm.IsDraining() {
			t.Error("expected IsDraining to return true")
		}
	})

	t.Run("waits for in-flight requests", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.ShutdownConfig{
			Timeout:      time.Second,
			PollInterval: 5 * time.Millisecond,
		})
		release, _ := sm.Track()

		shutdownDone := make(chan error, 1)
		go func() { shutdownDone <- sm.Shutdown(context.Background()) }()

		select {
		case <-shutdownDone:
			t.Fatal("shutdown completed before request was done")
		case <-time.After(50 * time.Millisecond):
		}

		release()

		select {
		case err := <-shutdownDone:
			if err != nil {
				t.Errorf("unexpected shutdown error: %v", err)
			}
		case <-time.After(500 * time.Millisecond):
			t.Error("shutdown did not complete after request finished")
		}
	})

	t.Run("times out if requests don't complete", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.ShutdownConfig{Timeout: 50 * time.Millisecond})
		_, _ = sm.Track()

		err := sm.Shutdown(context.Background())
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
		if sm.InFlightRequests() != 1 {
			t.Errorf("expected 1 in-flight request, got %d", sm.InFlightRequests())
		}
	})

	t.Run("respects drain delay", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.ShutdownConfig{DrainDelay: 50 * time.Millisecond})

		start := time.Now()
		if err := sm.Shutdown(context.Background()); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("shutdown completed in %v, expected at least the drain delay", elapsed)
		}
	})

	t.Run("calls lifecycle hooks in order", func(t *testing.T) {
		var calls []string
		sm := transport.NewShutdownManager(transport.ShutdownConfig{
			OnShutdownStart: func() { calls = append(calls, "start") },
			OnDrainStart:    func() { calls = append(calls, "drain") },
			OnShutdownComplete: func(err error) {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				calls = append(calls, "complete")
			},
		})

		_ = sm.Shutdown(context.Background())

		want := []string{"start", "drain", "complete"}
		if len(calls) != len(want) {
			t.Fatalf("calls = %v, want %v", calls, want)
		}
		for i := range want {
			if calls[i] != want[i] {
				t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
			}
		}
	})

	t.Run("done channel closes on completion", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.DefaultShutdownConfig())

		select {
		case <-sm.Done():
			t.Fatal("done channel closed before shutdown")
		default:
		}

		go func() { _ = sm.Shutdown(context.Background()) }()

		select {
		case <-sm.Done():
		case <-time.After(200 * time.Millisecond):
			t.Error("done channel not closed after shutdown")
		}
	})

	t.Run("signals draining before waiting", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.ShutdownConfig{Timeout: time.Second, PollInterval: time.Millisecond})
		release, _ := sm.Track()

		done := make(chan error, 1)
		go func() { done <- sm.Shutdown(context.Background()) }()

		select {
		case <-sm.Draining():
		case <-time.After(time.Second):
			t.Fatal("draining was not signalled")
		}
		select {
		case <-done:
			t.Fatal("shutdown returned with a request in flight")
		default:
		}

		release()
		if err := <-done; err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("respects context cancellation during drain delay", func(t *testing.T) {
		sm := transport.NewShutdownManager(transport.ShutdownConfig{DrainDelay: time.Second})

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := sm.Shutdown(ctx)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected context error, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
			t.Errorf("shutdown took %v, should have stopped with the context", elapsed)
		}
	})
}

func TestDefaultShutdownConfig(t *testing.T) {
	config := transport.DefaultShutdownConfig()
	if config.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", config.Timeout)
	}
	if config.DrainDelay != 0 {
		t.Errorf("expected no drain delay, got %v", config.DrainDelay)
	}
}
