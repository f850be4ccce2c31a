package sender

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	"congratbot/internal/runtime/supervisor"
	logx "congratbot/pkg/logx"
)

// namesParseError is the user-facing message for a malformed names payload.
const namesParseError = "При парсинге имён произошла ошибка"

// Registry owns the per-chat sender jobs: the running task handle and its
// mutable settings. A chat has a handle if and only if it has settings; both
// are added and removed together under one mutex.
type Registry struct {
	log          logx.Logger
	parseDelay   DelayParser
	defaultDelay string
	// notify delivers user-facing error messages (malformed settings).
	notify func(ctx context.Context, chat ChatID, text string)

	mu   sync.Mutex
	sup  *supervisor.Supervisor
	run  func(ctx context.Context, chat ChatID)
	jobs map[ChatID]*job
}

type job struct {
	settings JobSettings
	handle   *supervisor.Handle
}

func NewRegistry(log logx.Logger, parseDelay DelayParser, defaultDelay string, notify func(ctx context.Context, chat ChatID, text string)) *Registry {
	if strings.TrimSpace(defaultDelay) == "" {
		defaultDelay = "15m"
	}
	return &Registry{
		log:          log,
		parseDelay:   parseDelay,
		defaultDelay: defaultDelay,
		notify:       notify,
		jobs:         map[ChatID]*job{},
	}
}

// Bind attaches the supervisor that hosts runner goroutines and the runner
// body itself. Must be called before the first Start.
func (r *Registry) Bind(sup *supervisor.Supervisor, run func(ctx context.Context, chat ChatID)) {
	r.mu.Lock()
	r.sup = sup
	r.run = run
	r.mu.Unlock()
}

// Start creates a job for chat with default settings (empty names, unset
// delay) and spawns its runner. No-op if the chat already has a job.
func (r *Registry) Start(chat ChatID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[chat]; ok {
		return false
	}
	if r.sup == nil || r.run == nil {
		r.log.Error("registry not bound; dropping start", logx.Int64("chat_id", int64(chat)))
		return false
	}

	j := &job{}
	j.handle = r.sup.Spawn(jobName(chat), func(ctx context.Context) error {
		r.run(ctx, chat)
		return nil
	})
	r.jobs[chat] = j
	r.log.Info("sender job started", logx.Int64("chat_id", int64(chat)))
	return true
}

// Stop removes the chat's job and cancels its runner, blocking until the
// runner has fully unwound. After Stop returns no further dispatch happens
// for this chat. No-op if the chat has no job.
func (r *Registry) Stop(chat ChatID) bool {
	r.mu.Lock()
	j, ok := r.jobs[chat]
	if ok {
		delete(r.jobs, chat)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	// Cancel outside the lock: the runner may be mid-Settings().
	j.handle.Stop()
	r.log.Info("sender job stopped", logx.Int64("chat_id", int64(chat)))
	return true
}

// StopAll stops every job. Used on shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	handles := make([]*supervisor.Handle, 0, len(r.jobs))
	for chat, j := range r.jobs {
		handles = append(handles, j.handle)
		delete(r.jobs, chat)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// Settings returns a snapshot of the chat's settings, or ok=false when the
// chat has no job (the runner treats that as its orphaned-exit signal).
func (r *Registry) Settings(chat ChatID) (JobSettings, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[chat]
	if !ok {
		return JobSettings{}, false
	}
	return j.settings, true
}

// SetNames parses raw as a JSON array of strings and, if the chat has an
// active job, replaces its name list. Malformed payloads (invalid JSON or a
// non-array) notify the chat, log, and leave state unchanged.
func (r *Registry) SetNames(ctx context.Context, chat ChatID, raw string) bool {
	var names []string
	err := json.Unmarshal([]byte(raw), &names)
	if err == nil && names == nil {
		// "null" unmarshals into a nil slice without error; it is valid
		// JSON but not an array, so it must not wipe the current list.
		err = errors.New("payload is not an array")
	}
	if err != nil {
		r.log.Warn("names payload rejected",
			logx.Int64("chat_id", int64(chat)),
			logx.String("raw", raw),
			logx.Err(err),
		)
		if r.notify != nil {
			r.notify(ctx, chat, namesParseError)
		}
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[chat]
	if !ok {
		return false
	}
	// Replace wholesale; the runner sees the new slice on its next read.
	j.settings.Names = names
	return true
}

// SetDelay parses raw (empty falls back to the default delay) and, if the
// chat has an active job, replaces its repeat delay. Parse failures are
// logged and leave state unchanged.
func (r *Registry) SetDelay(chat ChatID, raw string) bool {
	if strings.TrimSpace(raw) == "" {
		raw = r.defaultDelay
	}
	d, err := r.parseDelay(raw)
	if err != nil {
		r.log.Warn("delay rejected",
			logx.Int64("chat_id", int64(chat)),
			logx.String("raw", raw),
			logx.Err(err),
		)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[chat]
	if !ok {
		return false
	}
	j.settings.RepeatDelay = d
	return true
}

// Len returns the number of active jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func jobName(chat ChatID) string {
	return "sender." + strconv.FormatInt(int64(chat), 10)
}
