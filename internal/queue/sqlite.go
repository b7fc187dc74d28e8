//go:build sqlite
// +build sqlite

package queue

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"cfpbot/internal/dates"
	"cfpbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

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
	// Synchronous persistence is the point of this store.
	_, _ = db.Exec("PRAGMA synchronous = FULL")

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

func (s *sqliteStore) Day(ctx context.Context, day dates.DayKey) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT channel, body, send_at, sent, preview FROM messages WHERE day = ? ORDER BY position`,
		string(day),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var ch string
		var sent, preview int
		if err := rows.Scan(&ch, &m.Body, &m.SendAt, &sent, &preview); err != nil {
			return nil, err
		}
		m.Channel = Channel(ch)
		m.Sent = sent != 0
		m.Preview = preview != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Append(ctx context.Context, day dates.DayKey, msg Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages(day, position, channel, body, send_at, sent, preview)
		 SELECT ?, COALESCE(MAX(position)+1, 0), ?, ?, ?, ?, ?
		 FROM messages WHERE day = ?`,
		string(day), string(msg.Channel), msg.Body, msg.SendAt, boolInt(msg.Sent), boolInt(msg.Preview),
		string(day),
	)
	return err
}

func (s *sqliteStore) MarkSent(ctx context.Context, day dates.DayKey, idx int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET sent = 1 WHERE day = ? AND position = ?`,
		string(day), idx,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("message index out of range")
	}
	return nil
}

func (s *sqliteStore) LastRun(ctx context.Context) (dates.DayKey, bool, error) {
	var day string
	err := s.db.QueryRowContext(ctx, `SELECT day FROM last_run WHERE id = 1`).Scan(&day)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return dates.DayKey(day), true, nil
}

func (s *sqliteStore) SetLastRun(ctx context.Context, day dates.DayKey) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO last_run(id, day) VALUES(1, ?)
		 ON CONFLICT(id) DO UPDATE SET day=excluded.day`,
		string(day),
	)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
