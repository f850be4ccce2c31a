package sender

import (
	"context"
	"testing"
	"time"

	"congratbot/internal/runtime/supervisor"
)

func TestCursorPrimingAndWrap(t *testing.T) {
	t.Parallel()
	names := []string{"А", "Б"}
	var cur cursorState

	type tick struct {
		name     string
		dispatch bool
	}
	// One priming tick, the names in order, one wrap tick per pass.
	want := []tick{
		{dispatch: false},            // priming
		{name: "А", dispatch: true},
		{name: "Б", dispatch: true},
		{dispatch: false},            // wrap
		{name: "А", dispatch: true},
		{name: "Б", dispatch: true},
		{dispatch: false},            // wrap
		{name: "А", dispatch: true},
	}
	for i, w := range want {
		name, ok := cur.step(names)
		if ok != w.dispatch || name != w.name {
			t.Fatalf("tick %d = (%q, %v), want (%q, %v)", i, name, ok, w.name, w.dispatch)
		}
	}
}

func TestCursorEmptyNames(t *testing.T) {
	t.Parallel()
	var cur cursorState
	for i := 0; i < 5; i++ {
		if name, ok := cur.step(nil); ok {
			t.Fatalf("tick %d dispatched %q with empty name list", i, name)
		}
	}
}

func TestCursorNamesShrunkMidPass(t *testing.T) {
	t.Parallel()
	var cur cursorState
	cur.step([]string{"А", "Б", "В"}) // prime
	cur.step([]string{"А", "Б", "В"}) // А

	// List replaced with a shorter one: the stale cursor wraps instead of
	// reading out of range.
	if name, ok := cur.step([]string{"Г"}); !ok || name != "Г" {
		t.Fatalf("got (%q, %v), want (Г, true)", name, ok)
	}
	if name, ok := cur.step([]string{"Г"}); ok {
		t.Fatalf("expected wrap tick, dispatched %q", name)
	}
}

// startJob wires a registry straight to the service's runner loop, bypassing
// the command queues, so runner behavior can be exercised with tiny delays.
func startJob(t *testing.T, s *Service, chat ChatID) *Registry {
	t.Helper()
	s.fallback = 10 * time.Millisecond
	sup := supervisor.NewSupervisor(context.Background())
	s.registry.Bind(sup, s.runJob)
	t.Cleanup(func() {
		s.registry.StopAll()
		sup.Cancel()
	})
	if !s.registry.Start(chat) {
		t.Fatal("Start failed")
	}
	return s.registry
}

func TestRunnerRotatesNamesCyclically(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	pr := &fakeProvider{}
	s := newTestService(t, Config{}, ad, pr)

	r := startJob(t, s, 1)
	r.SetNames(context.Background(), 1, `["А","Б"]`)
	r.SetDelay(1, "10ms")

	waitFor(t, 2*time.Second, func() bool { return len(ad.texts()) >= 5 })
	r.Stop(1)

	// Dispatch order must be А, Б, А, Б, ... — priming and wrap ticks send
	// nothing, so the recorded sequence alternates strictly.
	got := ad.texts()
	want := []string{"А", "Б"}
	for i, name := range got {
		if name != want[i%2] {
			t.Fatalf("dispatch %d = %q, want %q (sequence %v)", i, name, want[i%2], got)
		}
	}
}

func TestRunnerEmptyNamesNeverDispatches(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	pr := &fakeProvider{}
	s := newTestService(t, Config{}, ad, pr)

	r := startJob(t, s, 1)
	r.SetNames(context.Background(), 1, `[]`)
	r.SetDelay(1, "5ms")

	time.Sleep(80 * time.Millisecond)
	if n := len(ad.snapshot()); n != 0 {
		t.Fatalf("dispatches with empty name list = %d, want 0", n)
	}
}

func TestRunnerNoDispatchAfterStop(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	pr := &fakeProvider{}
	s := newTestService(t, Config{}, ad, pr)

	r := startJob(t, s, 1)
	r.SetNames(context.Background(), 1, `["А"]`)
	r.SetDelay(1, "10ms")

	waitFor(t, 2*time.Second, func() bool { return len(ad.texts()) >= 2 })
	r.Stop(1)

	before := len(ad.snapshot())
	time.Sleep(60 * time.Millisecond)
	if after := len(ad.snapshot()); after != before {
		t.Fatalf("dispatches after Stop: %d -> %d", before, after)
	}
}

func TestRunnerDispatchErrorKeepsLooping(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	pr := &fakeProvider{}
	s := newTestService(t, Config{}, ad, pr)

	r := startJob(t, s, 1)
	r.SetNames(context.Background(), 1, `["А"]`)
	r.SetDelay(1, "10ms")

	// Fail one window of sends, then recover; the loop must survive it.
	ad.mu.Lock()
	ad.err = context.DeadlineExceeded
	ad.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	ad.mu.Lock()
	ad.err = nil
	ad.mu.Unlock()

	waitFor(t, 2*time.Second, func() bool { return len(ad.texts()) >= 1 })
}

func TestRunnerOrphanedExit(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	pr := &fakeProvider{}
	s := newTestService(t, Config{}, ad, pr)

	r := startJob(t, s, 1)
	r.SetNames(context.Background(), 1, `["А"]`)
	r.SetDelay(1, "10ms")

	// Remove the entry behind the runner's back (not via Stop): the runner
	// must notice on its next wake and exit on its own.
	r.mu.Lock()
	j := r.jobs[1]
	delete(r.jobs, 1)
	r.mu.Unlock()

	select {
	case <-j.handle.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("orphaned runner did not exit")
	}

	before := len(ad.snapshot())
	time.Sleep(40 * time.Millisecond)
	if after := len(ad.snapshot()); after != before {
		t.Fatal("orphaned runner kept dispatching")
	}
}
