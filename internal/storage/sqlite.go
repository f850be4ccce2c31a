package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "congratbot/pkg/logx"
)

const schema = `
CREATE TABLE IF NOT EXISTS dispatches (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      TEXT NOT NULL,
	chat_id INTEGER NOT NULL,
	name    TEXT NOT NULL,
	kind    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dispatches_at ON dispatches(at);
CREATE INDEX IF NOT EXISTS idx_dispatches_chat ON dispatches(chat_id, at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) RecordDispatch(ctx context.Context, chat int64, name string, kind string, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dispatches(at, chat_id, name, kind) VALUES(?,?,?,?)`,
		at.UTC().Format(time.RFC3339Nano), chat, name, kind,
	)
	return err
}

func (s *sqliteStore) RecentDispatches(ctx context.Context, chat int64, limit int) ([]DispatchEntry, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, chat_id, name, kind FROM dispatches WHERE (? = 0 OR chat_id = ?) ORDER BY at DESC LIMIT ?`,
		chat, chat, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DispatchEntry
	for rows.Next() {
		var (
			e  DispatchEntry
			at string
		)
		if err := rows.Scan(&at, &e.ChatID, &e.Name, &e.Kind); err != nil {
			return nil, err
		}
		if t, perr := time.Parse(time.RFC3339Nano, at); perr == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM dispatches WHERE at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}
