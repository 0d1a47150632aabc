package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"shutdownd/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(path string, busyTimeout time.Duration, log logx.Logger) (Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if busyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", busyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordSchedule(ctx context.Context, next time.Time, lead time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO restart_history(kind, at, next_restart, lead_seconds) VALUES(?,?,?,?)`,
		KindSchedule, time.Now().Format(time.RFC3339Nano), next.Format(time.RFC3339Nano), int64(lead/time.Second),
	)
	return err
}

func (s *sqliteStore) RecordRestart(ctx context.Context, at time.Time, grace time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO restart_history(kind, at, next_restart, lead_seconds) VALUES(?,?,NULL,?)`,
		KindRestart, at.Format(time.RFC3339Nano), int64(grace/time.Second),
	)
	return err
}

func (s *sqliteStore) History(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, at, next_restart, lead_seconds
		 FROM restart_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			at   string
			next sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Kind, &at, &next, &e.LeadSeconds); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = t
		}
		if next.Valid {
			if t, perr := time.Parse(time.RFC3339Nano, next.String); perr == nil {
				e.NextRestart = t
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
