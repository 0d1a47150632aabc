package config

import (
	"fmt"
	"strings"
	"time"
)

func parseDuration(key, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", key)
	}
	return d, nil
}

// TickDuration returns the tick loop interval, one second when unset.
func (c *Config) TickDuration() (time.Duration, error) {
	d, err := parseDuration("tick.interval", c.Tick.Interval)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return time.Second, nil
	}
	return d, nil
}

// BusyTimeoutDuration returns the sqlite busy timeout, zero when unset.
func (c *StorageConfig) BusyTimeoutDuration() (time.Duration, error) {
	return parseDuration("storage.busy_timeout", c.BusyTimeout)
}
