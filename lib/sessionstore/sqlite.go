package sessionstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	key        TEXT PRIMARY KEY,
	cookies    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Sqlite persists cookie sets to a sqlite database file so sessions
// survive process restarts. Entries older than ttl are treated as misses.
type Sqlite struct {
	db  *sql.DB
	ttl time.Duration
}

func NewSqlite(path string, ttl time.Duration) (*Sqlite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Sqlite{db: db, ttl: ttl}, nil
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) Get(ctx context.Context, key string) ([]*http.Cookie, error) {
	var blob []byte
	var updatedAt int64
	err := s.db.QueryRowContext(
		ctx,
		"SELECT cookies, updated_at FROM sessions WHERE key = ?",
		key,
	).Scan(&blob, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 && time.Since(time.Unix(updatedAt, 0)) > s.ttl {
		return nil, nil
	}

	var cookies []*http.Cookie
	err = gob.NewDecoder(bytes.NewReader(blob)).Decode(&cookies)
	if err != nil {
		return nil, err
	}
	return cookies, nil
}

func (s *Sqlite) Set(ctx context.Context, key string, cookies []*http.Cookie) error {
	var blob bytes.Buffer
	err := gob.NewEncoder(&blob).Encode(cookies)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (key, cookies, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET cookies = excluded.cookies, updated_at = excluded.updated_at`,
		key, blob.Bytes(), time.Now().Unix(),
	)
	return err
}
