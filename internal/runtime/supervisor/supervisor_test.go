package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawnStopWaitsForExit(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var exited atomic.Bool
	h := s.Spawn("park", func(ctx context.Context) error {
		<-ctx.Done()
		exited.Store(true)
		return ctx.Err()
	})

	h.Stop()
	if !exited.Load() {
		t.Fatal("Stop returned before goroutine exited")
	}
	// Second Stop must not block or panic.
	h.Stop()
}

func TestSpawnIndependentCancellation(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	h1 := s.Spawn("a", func(ctx context.Context) error { <-ctx.Done(); return nil })
	h2 := s.Spawn("b", func(ctx context.Context) error { <-ctx.Done(); return nil })

	h1.Stop()
	select {
	case <-h2.Done():
		t.Fatal("stopping one handle cancelled a sibling")
	default:
	}
	h2.Stop()
}

func TestStopCancelsSpawned(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())
	h := s.Spawn("park", func(ctx context.Context) error { <-ctx.Done(); return nil })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-h.Done():
	default:
		t.Fatal("supervisor Stop did not cancel spawned goroutine")
	}
}

func TestGoEveryRunsAndStops(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var runs atomic.Int32
	s.GoEvery("tick", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want >= 3", runs.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	if runs.Load() != after {
		t.Fatal("GoEvery kept running after Stop")
	}
}

func TestGoEverySurvivesErrors(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var runs atomic.Int32
	s.GoEvery("flaky", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatal("loop should continue after an error")
	}
	_ = s.Stop(context.Background())
}

func TestGoRestartAfterPanic(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var runs atomic.Int32
	s.GoRestart("crashy", 2*time.Millisecond, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatal("task was not restarted after the panic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestGoRestartErrorTriggersRestart(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())

	var runs atomic.Int32
	s.GoRestart("flaky", 2*time.Millisecond, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("boom")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatal("task was not restarted after the error")
	}
	_ = s.Stop(context.Background())
}

func TestGoPanicIsRecovered(t *testing.T) {
	t.Parallel()
	s := NewSupervisor(context.Background())
	s.Go("panicky", func(context.Context) error { panic("boom") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Stop(ctx)
	if err == nil {
		t.Fatal("expected first error from panic")
	}
}
