package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"shutdownd/internal/config"
	"shutdownd/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(&config.StorageConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "history.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestOpenNopWhenUnconfigured(t *testing.T) {
	t.Parallel()
	st, err := Open(nil, logx.Nop())
	if err != nil {
		t.Fatalf("Open(nil): %v", err)
	}
	if err := st.RecordSchedule(context.Background(), time.Now(), time.Hour); err != nil {
		t.Fatalf("nop RecordSchedule: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(&config.StorageConfig{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestRecordAndHistory(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)
	ctx := context.Background()

	next := time.Now().Add(4 * time.Hour).Truncate(time.Second)
	if err := st.RecordSchedule(ctx, next, time.Hour); err != nil {
		t.Fatalf("RecordSchedule: %v", err)
	}
	if err := st.RecordRestart(ctx, time.Now(), 30*time.Minute); err != nil {
		t.Fatalf("RecordRestart: %v", err)
	}

	entries, err := st.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// newest first
	if entries[0].Kind != KindRestart || entries[1].Kind != KindSchedule {
		t.Fatalf("unexpected order: %s, %s", entries[0].Kind, entries[1].Kind)
	}
	if entries[0].LeadSeconds != 1800 {
		t.Fatalf("restart lead = %d, want 1800", entries[0].LeadSeconds)
	}
	if !entries[1].NextRestart.Equal(next) {
		t.Fatalf("next_restart = %v, want %v", entries[1].NextRestart, next)
	}
}
