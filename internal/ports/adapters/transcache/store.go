// Package transcache keeps finished cue translations in SQLite so reruns
// over the same media do not pay for them again.
package transcache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Store struct {
	db   *sql.DB
	path string
}

// Key identifies one cached translation. Model is empty for engines
// without a model choice.
type Key struct {
	Engine  string
	Model   string
	Source  string
	Target  string
	Emotion string
	Text    string
}

func (k Key) hash() string {
	h := sha256.New()
	for _, part := range []string{k.Engine, k.Model, k.Source, k.Target, k.Emotion, k.Text} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Open creates the database file and schema when missing.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	const schema = `CREATE TABLE IF NOT EXISTS translations (
		key        TEXT PRIMARY KEY,
		engine     TEXT NOT NULL,
		target     TEXT NOT NULL,
		source     TEXT NOT NULL,
		translated TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string { return s.path }

// Get returns the cached translation and whether it was found.
func (s *Store) Get(ctx context.Context, k Key) (string, bool, error) {
	var out string
	err := s.db.QueryRowContext(ctx, `SELECT translated FROM translations WHERE key = ?`, k.hash()).Scan(&out)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup: %w", err)
	}
	return out, true, nil
}

func (s *Store) Put(ctx context.Context, k Key, translated string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO translations (key, engine, target, source, translated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET translated = excluded.translated, created_at = excluded.created_at`,
		k.hash(), k.Engine, k.Target, k.Text, translated, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// Count returns the number of cached rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count: %w", err)
	}
	return n, nil
}
