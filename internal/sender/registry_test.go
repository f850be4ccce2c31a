package sender

import (
	"context"
	"sync"
	"testing"
	"time"

	"congratbot/internal/runtime/supervisor"
	logx "congratbot/pkg/logx"
)

// blockingRunner parks until cancellation; registry tests don't need a real
// dispatch loop.
func blockingRunner(ctx context.Context, _ ChatID) {
	<-ctx.Done()
}

type notifyRec struct {
	mu    sync.Mutex
	calls []string
}

func (n *notifyRec) notify(_ context.Context, _ ChatID, text string) {
	n.mu.Lock()
	n.calls = append(n.calls, text)
	n.mu.Unlock()
}

func (n *notifyRec) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func newTestRegistry(t *testing.T, notify func(context.Context, ChatID, string)) (*Registry, *supervisor.Supervisor) {
	t.Helper()
	parse := func(raw string) (time.Duration, error) { return time.ParseDuration(raw) }
	r := NewRegistry(logx.Nop(), parse, "15m", notify)
	sup := supervisor.NewSupervisor(context.Background())
	r.Bind(sup, blockingRunner)
	t.Cleanup(func() {
		r.StopAll()
		sup.Cancel()
	})
	return r, sup
}

func TestStartIdempotent(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t, nil)

	if !r.Start(42) {
		t.Fatal("first Start should create a job")
	}
	if r.Start(42) {
		t.Fatal("second Start should be a no-op")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestStopIdempotent(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t, nil)

	if r.Stop(7) {
		t.Fatal("Stop on inactive chat should be a no-op")
	}
	r.Start(7)
	if !r.Stop(7) {
		t.Fatal("Stop on active chat should remove the job")
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d, want 0", r.Len())
	}
	if _, ok := r.Settings(7); ok {
		t.Fatal("settings should be gone after Stop")
	}
}

func TestConfigureInactiveNoop(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t, nil)

	if r.SetNames(context.Background(), 5, `["Аня"]`) {
		t.Fatal("SetNames on inactive chat should not apply")
	}
	if r.SetDelay(5, "1h") {
		t.Fatal("SetDelay on inactive chat should not apply")
	}
	if r.Len() != 0 {
		t.Fatal("Configure must never create a job")
	}
}

func TestSetNamesReplacesList(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t, nil)
	r.Start(1)

	if !r.SetNames(context.Background(), 1, `["Аня","Борис"]`) {
		t.Fatal("valid names rejected")
	}
	set, ok := r.Settings(1)
	if !ok {
		t.Fatal("settings missing")
	}
	if len(set.Names) != 2 || set.Names[0] != "Аня" || set.Names[1] != "Борис" {
		t.Fatalf("Names = %v", set.Names)
	}
}

func TestSetNamesMalformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: "not-json"},
		{name: "object not array", raw: "{}"},
		{name: "array of numbers", raw: "[1,2]"},
		{name: "json null", raw: "null"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := &notifyRec{}
			r, _ := newTestRegistry(t, rec.notify)
			r.Start(1)
			r.SetNames(context.Background(), 1, `["Аня"]`)

			if r.SetNames(context.Background(), 1, tt.raw) {
				t.Fatalf("SetNames(%q) should be rejected", tt.raw)
			}
			if rec.count() != 1 {
				t.Fatalf("notify calls = %d, want 1", rec.count())
			}
			// Prior names unchanged.
			set, _ := r.Settings(1)
			if len(set.Names) != 1 || set.Names[0] != "Аня" {
				t.Fatalf("Names mutated on rejected payload: %v", set.Names)
			}
		})
	}
}

func TestSetDelay(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want time.Duration
	}{
		{name: "empty falls back to default", raw: "", want: 15 * time.Minute},
		{name: "two hours", raw: "2h", want: 2 * time.Hour},
		{name: "thirty seconds", raw: "30s", want: 30 * time.Second},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _ := newTestRegistry(t, nil)
			r.Start(1)
			if !r.SetDelay(1, tt.raw) {
				t.Fatalf("SetDelay(%q) rejected", tt.raw)
			}
			set, _ := r.Settings(1)
			if set.RepeatDelay != tt.want {
				t.Fatalf("RepeatDelay = %v, want %v", set.RepeatDelay, tt.want)
			}
		})
	}
}

func TestSetDelayInvalidKeepsState(t *testing.T) {
	t.Parallel()
	rec := &notifyRec{}
	r, _ := newTestRegistry(t, rec.notify)
	r.Start(1)
	r.SetDelay(1, "1h")

	if r.SetDelay(1, "soon") {
		t.Fatal("invalid delay should be rejected")
	}
	set, _ := r.Settings(1)
	if set.RepeatDelay != time.Hour {
		t.Fatalf("RepeatDelay = %v, want 1h", set.RepeatDelay)
	}
	// Only the names payload is user-visible; delay errors stay log-only.
	if rec.count() != 0 {
		t.Fatalf("notify calls = %d, want 0", rec.count())
	}
}

func TestStopWaitsForRunner(t *testing.T) {
	t.Parallel()
	parse := func(raw string) (time.Duration, error) { return time.ParseDuration(raw) }
	r := NewRegistry(logx.Nop(), parse, "15m", nil)
	sup := supervisor.NewSupervisor(context.Background())

	exited := make(chan struct{})
	r.Bind(sup, func(ctx context.Context, _ ChatID) {
		<-ctx.Done()
		close(exited)
	})

	r.Start(9)
	r.Stop(9)
	select {
	case <-exited:
	default:
		t.Fatal("Stop returned before the runner unwound")
	}
}
