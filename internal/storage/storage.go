// Package storage keeps an append-only history of computed restart
// schedules and executed restarts. The history is an audit record: it is
// never read back to drive scheduling.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"shutdownd/internal/config"
	"shutdownd/pkg/logx"
)

// Kind of a history entry.
const (
	KindSchedule = "schedule"
	KindRestart  = "restart"
)

type Entry struct {
	ID          int64
	Kind        string
	At          time.Time
	NextRestart time.Time // zero for restart entries
	LeadSeconds int64
}

type Store interface {
	RecordSchedule(ctx context.Context, next time.Time, lead time.Duration) error
	RecordRestart(ctx context.Context, at time.Time, grace time.Duration) error
	History(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Open returns a store for the configured driver. A nil or empty config
// yields the no-op store.
func Open(cfg *config.StorageConfig, log logx.Logger) (Store, error) {
	if cfg == nil || strings.TrimSpace(cfg.Driver) == "" {
		return nopStore{}, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "sqlite":
		busy, err := cfg.BusyTimeoutDuration()
		if err != nil {
			return nil, err
		}
		return openSQLite(cfg.Path, busy, log)
	case "none", "off":
		return nopStore{}, nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Driver)
	}
}

type nopStore struct{}

func (nopStore) RecordSchedule(context.Context, time.Time, time.Duration) error { return nil }
func (nopStore) RecordRestart(context.Context, time.Time, time.Duration) error  { return nil }
func (nopStore) History(context.Context, int) ([]Entry, error)                  { return nil, nil }
func (nopStore) Close() error                                                   { return nil }
