package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Tick      TickConfig      `json:"tick"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Events    EventsConfig    `json:"events"`
	Storage   *StorageConfig  `json:"storage,omitempty"`
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

// TickConfig controls the cadence of the host tick loop that drives the
// deferred scheduler and the shutdown countdown.
//
// Interval is a Go duration string (e.g. "500ms", "1s"). Default: "1s".
type TickConfig struct {
	Interval string `json:"interval,omitempty"`
}

// ShutdownConfig declares the recurring restart rule.
//
// WeekdayMask is a 7-bit set (bit 0 = Sunday ... bit 6 = Saturday); zero
// means "not weekday-based" and EveryDays drives the recurrence instead.
// Time is local "HH:MM:SS".
type ShutdownConfig struct {
	Enabled     bool              `json:"enabled"`
	WeekdayMask int               `json:"weekday_mask"`
	EveryDays   int               `json:"every_days"`
	Time        string            `json:"time"`
	PreAnnounce PreAnnounceConfig `json:"pre_announce"`

	// StartEvents is a space-delimited list of auxiliary event ids started
	// on every successful initialization.
	StartEvents string `json:"start_events,omitempty"`
}

// PreAnnounceConfig controls the restart announcement. Message must contain
// exactly one %s placeholder, which receives the human-readable lead time.
type PreAnnounceConfig struct {
	Seconds int    `json:"seconds"`
	Message string `json:"message"`
}

type BroadcastConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type EventsConfig struct {
	Timezone string     `json:"timezone,omitempty"` // IANA TZ, e.g. "Europe/Berlin"
	Defs     []EventDef `json:"defs,omitempty"`
}

// EventDef declares an auxiliary recurring event. Schedule is a cron spec or
// "@every <duration>"; empty means the event is one-shot (start only).
type EventDef struct {
	ID          uint32 `json:"id"`
	Description string `json:"description"`
	Schedule    string `json:"schedule,omitempty"`
}

// StorageConfig controls the optional restart-history store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./shutdownd.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

// Normalize fills defaults for omitted fields. Called once per successful
// parse so downstream consumers never re-check defaults.
func (c *Config) Normalize() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Tick.Interval == "" {
		c.Tick.Interval = "1s"
	}
	if c.Shutdown.EveryDays == 0 {
		c.Shutdown.EveryDays = 1
	}
	if c.Shutdown.Time == "" {
		c.Shutdown.Time = "04:00:00"
	}
	if c.Shutdown.PreAnnounce.Seconds == 0 {
		c.Shutdown.PreAnnounce.Seconds = 3600
	}
	if c.Shutdown.PreAnnounce.Message == "" {
		c.Shutdown.PreAnnounce.Message = "[SERVER]: Automated (quick) server restart in %s"
	}
	if c.Broadcast.RatePerSec == 0 {
		c.Broadcast.RatePerSec = 10
	}
}
