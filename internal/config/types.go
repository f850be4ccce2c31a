package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Sender controls the congratulation sender core (command queues,
	// per-chat jobs, supervisor cycle cadence).
	Sender SenderConfig `json:"sender"`

	// Content controls the postcard content provider.
	Content ContentConfig `json:"content"`

	// Storage is the optional dispatch-history layer.
	// If omitted, history recording is disabled.
	Storage *StorageConfig `json:"storage,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// RatePerSec caps outbound sends across all chats (Telegram global limit).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SenderConfig controls the sender supervisor and its command queues.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "15m").
//
// Defaults (when fields are omitted/zero):
//   - check_interval: "1s"
//   - default_repeat_delay: "15m"
//   - polling_queue_size: 64
//   - generate_queue_size: 64
type SenderConfig struct {
	// CheckInterval is how often the supervisor cycle drains the command queues.
	CheckInterval string `json:"check_interval,omitempty"`

	// DefaultRepeatDelay is used when a configure command omits the delay.
	DefaultRepeatDelay string `json:"default_repeat_delay,omitempty"`

	PollingQueueSize  int `json:"polling_queue_size,omitempty"`
	GenerateQueueSize int `json:"generate_queue_size,omitempty"`
}

// ContentConfig controls the HTTP postcard provider.
type ContentConfig struct {
	// BaseURL is the postcard image endpoint; the name is passed as a query param.
	BaseURL string `json:"base_url"`
	// RequestTimeout is a Go duration string. Default "8s".
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// StorageConfig controls the dispatch-history layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./congratbot.db", "retention_days": 30 }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)

	// RetentionDays bounds how long dispatch history rows are kept.
	// 0 keeps the default (30 days).
	RetentionDays int `json:"retention_days,omitempty"`

	// PruneSchedule is a cron expression for the retention job.
	// Default "0 4 * * *" (daily at 04:00).
	PruneSchedule string `json:"prune_schedule,omitempty"`
}
