package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled and the bot keeps no
// dispatch history.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite; 0 means default

	// Retention bounds how long dispatch rows are kept. 0 means 30 days.
	Retention time.Duration
}

// DispatchEntry records one delivered congratulation.
// Keep it compact and schema-stable.
type DispatchEntry struct {
	At     time.Time
	ChatID int64
	Name   string
	Kind   string // "both", "picture", "text"
}

// Store is the minimal persistence API used by the sender core.
type Store interface {
	// RecordDispatch appends one history row.
	RecordDispatch(ctx context.Context, chat int64, name string, kind string, at time.Time) error
	// RecentDispatches returns up to limit newest rows for a chat.
	// chat 0 spans every chat.
	RecentDispatches(ctx context.Context, chat int64, limit int) ([]DispatchEntry, error)
	// PruneBefore deletes rows older than cutoff and reports how many went.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}
