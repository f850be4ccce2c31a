package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "congratbot/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
// - Named goroutines (for logging/debug)
// - Panic recovery
// - Optional cancel-on-first-error
// - Graceful stop with timeout-aware waiting
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	// Counters are best-effort operational metrics.
	// - started: total goroutines ever started via this supervisor
	// - active: goroutines currently running under this supervisor
	started uint64
	active  int64

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}
	wg          sync.WaitGroup
}

type SupervisorOption func(*Supervisor)

// SupervisorCounters exposes best-effort goroutine counters.
// These are operational signals only (not a synchronization primitive).
type SupervisorCounters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
}

func WithLogger(log logx.Logger) SupervisorOption {
	return func(s *Supervisor) { s.log = log }
}

// If enabled, the first non-nil error from any goroutine will cancel the supervisor context.
func WithCancelOnError(enabled bool) SupervisorOption {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func NewSupervisor(parent context.Context, opts ...SupervisorOption) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines to exit.
func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	v := s.firstErr.Load()
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return nil
}

// Counters returns best-effort goroutine counters for this supervisor.
func (s *Supervisor) Counters() SupervisorCounters {
	if s == nil {
		return SupervisorCounters{}
	}
	return SupervisorCounters{
		Active:  atomic.LoadInt64(&s.active),
		Started: atomic.LoadUint64(&s.started),
	}
}

func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	s.goCtx(s.ctx, name, fn)
}

func (s *Supervisor) goCtx(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	atomic.AddUint64(&s.started, 1)
	atomic.AddInt64(&s.active, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.active, -1)

		// Panic-safe wrapper
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic in %s: %v", name, r)
				if !s.log.IsZero() {
					s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
				s.setErr(err)
				if s.cancelOnErr {
					s.cancel()
				}
			}
		}()

		if !s.log.IsZero() {
			s.log.Debug("goroutine started", logx.String("name", name))
		}
		err := fn(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.setErr(fmt.Errorf("%s: %w", name, err))
			if s.cancelOnErr {
				s.cancel()
			}
		}
		if !s.log.IsZero() {
			s.log.Debug("goroutine stopped", logx.String("name", name))
		}
	}()
}

func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Handle is a reference to a single goroutine started via Spawn.
// Stop cancels its context and blocks until the goroutine has fully unwound.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the goroutine and waits for it to exit.
// Safe to call more than once.
func (h *Handle) Stop() {
	if h == nil {
		return
	}
	h.cancel()
	<-h.done
}

// Done is closed when the goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Spawn starts a named goroutine with its own cancelable context derived from
// the supervisor context, and returns a Handle for individual cancellation.
// The goroutine still counts toward Wait() and gets the same panic recovery
// as Go().
func (s *Supervisor) Spawn(name string, fn func(ctx context.Context) error) *Handle {
	ctx, cancel := context.WithCancel(s.ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	s.goCtx(ctx, name, func(ctx context.Context) error {
		defer close(h.done)
		defer cancel()
		return fn(ctx)
	})
	return h
}

// GoRestart runs fn and restarts it after backoff whenever it returns a
// non-cancellation error or panics, until the supervisor context is canceled.
// Use it for loops that must keep running for the lifetime of the process.
func (s *Supervisor) GoRestart(name string, backoff time.Duration, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	if backoff <= 0 {
		backoff = time.Second
	}
	s.Go(name, func(ctx context.Context) error {
		for {
			err := s.runProtected(name, ctx, fn)
			if err == nil || errors.Is(err, context.Canceled) {
				return err
			}
			if !s.log.IsZero() {
				s.log.Error("task crashed; restarting", logx.String("name", name), logx.Duration("backoff", backoff), logx.Err(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	})
}

// runProtected converts a panic in fn into an error so a restart loop can
// treat both failure modes the same way.
func (s *Supervisor) runProtected(name string, ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if !s.log.IsZero() {
				s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
			err = fmt.Errorf("panic in %s: %v", name, r)
		}
	}()
	return fn(ctx)
}

// GoEvery runs fn once per interval until the supervisor context is canceled.
// Non-cancellation errors from fn are logged and do not stop the loop; only
// cancellation ends it. The first run happens after one interval, not
// immediately.
func (s *Supervisor) GoEvery(name string, interval time.Duration, fn func(ctx context.Context) error) {
	if fn == nil || interval <= 0 {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			if err := fn(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				if !s.log.IsZero() {
					s.log.Error("periodic task failed", logx.String("name", name), logx.Err(err))
				}
			}
		}
	})
}

func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}

func (s *Supervisor) setErr(err error) {
	if err == nil {
		return
	}
	s.errOnce.Do(func() { s.firstErr.Store(err) })
}
