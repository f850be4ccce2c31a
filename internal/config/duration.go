package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration-valued fields (poll_timeout, check_interval, busy_timeout, the
// sender delays) are kept as strings in Config so a hot reload re-validates
// them through the same path as startup.

// ParseDurationField parses one such field. A blank raw value means unset and
// yields 0 without error; field names the config key for error context.
func ParseDurationField(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", field, raw)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is unset.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(field, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
