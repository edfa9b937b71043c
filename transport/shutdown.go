package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// ShutdownConfig configures graceful shutdown behavior.
type ShutdownConfig struct {
	// Timeout is the maximum time to wait for in-flight requests.
	// Default: 30 seconds
	Timeout time.Duration

	// DrainDelay is the time to keep accepting requests after shutdown
	// starts, so load balancers can take the instance out of rotation.
	DrainDelay time.Duration

	// PollInterval is how often in-flight requests are checked while draining.
	// Default: 50 milliseconds
	PollInterval time.Duration

	// OnShutdownStart is called when shutdown begins.
	OnShutdownStart func()

	// OnDrainStart is called when new requests start being rejected.
	OnDrainStart func()

	// OnShutdownComplete is called when shutdown is complete.
	OnShutdownComplete func(err error)
}

// DefaultShutdownConfig returns sensible defaults for shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		Timeout:      30 * time.Second,
		PollInterval: 50 * time.Millisecond,
	}
}

// ShutdownManager tracks in-flight requests and drains them on shutdown.
type ShutdownManager struct {
	config ShutdownConfig

	draining  atomic.Bool
	inFlight  atomic.Int64
	drainCh   chan struct{}
	drainOnce sync.Once
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewShutdownManager creates a new shutdown manager.
func NewShutdownManager(config ShutdownConfig) *ShutdownManager {
	defaults := DefaultShutdownConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	return &ShutdownManager{
		config:  config,
		drainCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// IsDraining reports whether new requests are being rejected.
func (sm *ShutdownManager) IsDraining() bool {
	return sm.draining.Load()
}

// Draining returns a channel that is closed when new requests start being
// rejected. Long-lived streams use it to end early.
func (sm *ShutdownManager) Draining() <-chan struct{} {
	return sm.drainCh
}

// InFlightRequests returns the number of in-flight requests.
func (sm *ShutdownManager) InFlightRequests() int64 {
	return sm.inFlight.Load()
}

// Track registers a request. It returns false while draining, in which
// case the request must be rejected and release must not be called.
func (sm *ShutdownManager) Track() (release func(), ok bool) {
	if sm.draining.Load() {
		return nil, false
	}
	sm.inFlight.Add(1)
	var once sync.Once
	return func() { once.Do(func() { sm.inFlight.Add(-1) }) }, true
}

// Shutdown starts draining and waits until in-flight requests finish, the
// timeout elapses or ctx is done.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	if sm.config.OnShutdownStart != nil {
		sm.config.OnShutdownStart()
	}

	if sm.config.DrainDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sm.config.DrainDelay):
		}
	}

	sm.draining.Store(true)
	sm.drainOnce.Do(func() {
		close(sm.drainCh)
	})
	if sm.config.OnDrainStart != nil {
		sm.config.OnDrainStart()
	}

	err := sm.wait(ctx)

	sm.closeOnce.Do(func() {
		close(sm.doneCh)
	})
	if sm.config.OnShutdownComplete != nil {
		sm.config.OnShutdownComplete(err)
	}
	return err
}

func (sm *ShutdownManager) wait(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sm.config.Timeout)
	defer cancel()

	ticker := time.NewTicker(sm.config.PollInterval)
	defer ticker.Stop()

	for sm.inFlight.Load() > 0 {
		select {
		case <-ctx.Done():
			if sm.inFlight.Load() > 0 {
				return ctx.Err()
			}
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// Done returns a channel that is closed when shutdown is complete.
func (sm *ShutdownManager) Done() <-chan struct{} {
	return sm.doneCh
}
