package config

import (
	"strings"

	logx "congratbot/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging (never includes secrets like tokens).
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 10)

	// Telegram (never log token)
	if strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.RatePerSec != newCfg.Telegram.RatePerSec {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.rate_per_sec", newCfg.Telegram.RatePerSec),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file.enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Sender
	if oldCfg.Sender != newCfg.Sender {
		changed = append(changed, "sender")
		attrs = append(attrs,
			logx.String("sender.check_interval", newCfg.Sender.CheckInterval),
			logx.String("sender.default_repeat_delay", newCfg.Sender.DefaultRepeatDelay),
		)
	}

	// Content
	if oldCfg.Content != newCfg.Content {
		changed = append(changed, "content")
		attrs = append(attrs,
			logx.String("content.request_timeout", newCfg.Content.RequestTimeout),
		)
	}

	// Storage (pointer section; compare by value with nil as zero)
	oldSt := StorageConfig{}
	if oldCfg.Storage != nil {
		oldSt = *oldCfg.Storage
	}
	newSt := StorageConfig{}
	if newCfg.Storage != nil {
		newSt = *newCfg.Storage
	}
	if oldSt != newSt {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newSt.Driver),
			logx.Int("storage.retention_days", newSt.RetentionDays),
		)
	}

	return changed, attrs
}
