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

	logx "hwbot/pkg/logx"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	at         TEXT    NOT NULL,
	chat_id    INTEGER NOT NULL,
	message_id INTEGER,
	outcome    TEXT    NOT NULL,
	text       TEXT    NOT NULL,
	err        TEXT,
	took_ms    INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS deliveries_at ON deliveries(at);
`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
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

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(context.Background(), sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite journal opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) AppendDelivery(ctx context.Context, d Delivery) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	if d.At.IsZero() {
		d.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries(at, chat_id, message_id, outcome, text, err, took_ms) VALUES(?,?,?,?,?,?,?)`,
		d.At.UTC().Format(time.RFC3339Nano), d.ChatID, nullInt(d.MessageID), string(d.Outcome), d.Text, nullStr(d.Error), d.TookMS,
	)
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func nullInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
