package sender

import (
	"time"

	"github.com/google/uuid"
)

// ChatID identifies the chat a job is scoped to.
type ChatID int64

// PollingOp is a polling-queue command kind.
type PollingOp uint8

const (
	OpStart PollingOp = iota + 1
	OpStop
	OpConfigure
)

func (op PollingOp) String() string {
	switch op {
	case OpStart:
		return "start"
	case OpStop:
		return "stop"
	case OpConfigure:
		return "configure"
	default:
		return "unknown"
	}
}

// PollingCommand mutates the job registry: start/stop a chat's sender job or
// reconfigure its name list and repeat delay.
type PollingCommand struct {
	// ID correlates log lines for one command; assigned at enqueue.
	ID   uuid.UUID
	Op   PollingOp
	Chat ChatID

	// NamesRaw is a JSON array of strings, e.g. `["Аня","Борис"]`.
	// Only read for OpConfigure.
	NamesRaw string
	// DelayRaw is a duration string, e.g. "15m". Empty falls back to the
	// configured default. Only read for OpConfigure.
	DelayRaw string
}

// GenerateKind selects what a one-shot generation command sends.
type GenerateKind uint8

const (
	// KindBoth is the default for unrecognized kinds.
	KindBoth GenerateKind = iota
	KindPicture
	KindText
)

func (k GenerateKind) String() string {
	switch k {
	case KindPicture:
		return "picture"
	case KindText:
		return "text"
	default:
		return "both"
	}
}

// GenerateCommand triggers one immediate dispatch outside any recurring job.
type GenerateCommand struct {
	ID   uuid.UUID
	Kind GenerateKind
	Chat ChatID
	Name string
}

// JobSettings holds the mutable per-chat job configuration.
// The registry replaces fields wholesale; readers get a snapshot copy.
type JobSettings struct {
	RepeatDelay time.Duration
	Names       []string
}

// DelayParser converts a human delay expression ("15m", "2h") to a duration.
type DelayParser func(raw string) (time.Duration, error)
