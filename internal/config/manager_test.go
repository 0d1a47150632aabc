package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
  console: true
shutdown:
  enabled: true
  weekday_mask: 64
  time: "05:30:00"
  pre_announce:
    seconds: 1800
    message: "restart in %s"
  start_events: "12 7"
`)
	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Shutdown.Enabled || cfg.Shutdown.WeekdayMask != 64 {
		t.Fatalf("shutdown section mismatch: %+v", cfg.Shutdown)
	}
	if cfg.Shutdown.Time != "05:30:00" {
		t.Fatalf("time = %q", cfg.Shutdown.Time)
	}
	if cfg.Shutdown.PreAnnounce.Seconds != 1800 {
		t.Fatalf("pre_announce.seconds = %d", cfg.Shutdown.PreAnnounce.Seconds)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.yaml", `
shutdown:
  enabled: true
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Shutdown.EveryDays != 1 {
		t.Fatalf("every_days default = %d, want 1", cfg.Shutdown.EveryDays)
	}
	if cfg.Shutdown.Time != "04:00:00" {
		t.Fatalf("time default = %q", cfg.Shutdown.Time)
	}
	if cfg.Shutdown.PreAnnounce.Seconds != 3600 {
		t.Fatalf("pre_announce seconds default = %d", cfg.Shutdown.PreAnnounce.Seconds)
	}
	if cfg.Shutdown.PreAnnounce.Message == "" {
		t.Fatal("pre_announce message default missing")
	}
	if cfg.Tick.Interval != "1s" {
		t.Fatalf("tick interval default = %q", cfg.Tick.Interval)
	}
	if cfg.Broadcast.RatePerSec != 10 {
		t.Fatalf("broadcast rate default = %d", cfg.Broadcast.RatePerSec)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"shutdown":{"enabled":true,"tyop":1}}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"shutdown":{"enabled":true}}{"extra":1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "config.json", `{"shutdown":{"enabled":false}}`)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	ch := m.Subscribe(1)
	m.publish(m.Get())
	select {
	case cfg := <-ch:
		if cfg == nil {
			t.Fatal("nil config published")
		}
	default:
		t.Fatal("subscriber did not receive the published config")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}

func TestDurationFields(t *testing.T) {
	t.Parallel()
	c := &Config{Tick: TickConfig{Interval: "1500ms"}}
	if d, err := c.TickDuration(); err != nil || d.Milliseconds() != 1500 {
		t.Fatalf("TickDuration = %v, %v", d, err)
	}
	c.Tick.Interval = ""
	if d, err := c.TickDuration(); err != nil || d != time.Second {
		t.Fatalf("unset interval: got %v, %v, want 1s", d, err)
	}
	c.Tick.Interval = "nope"
	if _, err := c.TickDuration(); err == nil {
		t.Fatal("garbage duration should fail")
	}

	s := &StorageConfig{BusyTimeout: "250ms"}
	if d, err := s.BusyTimeoutDuration(); err != nil || d.Milliseconds() != 250 {
		t.Fatalf("BusyTimeoutDuration = %v, %v", d, err)
	}
	s.BusyTimeout = "-1s"
	if _, err := s.BusyTimeoutDuration(); err == nil {
		t.Fatal("negative duration should fail")
	}
}
