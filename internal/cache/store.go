package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/skypro1111/speech-transcriber/internal/transcription"
)

const schema = `create table if not exists chunk_results (
	key text primary key,
	backend text not null,
	result text not null,
	created_at integer not null
)`

// Store is a SQLite table of chunk results
type Store struct {
	db *sql.DB
}

// Open opens or creates the cache database at path
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// One writer; the driver is sequential anyway
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns the cached result for key. ok is false when nothing is stored.
func (s *Store) Get(ctx context.Context, key string) (result *transcription.Result, ok bool, err error) {
	var data string
	err = s.db.
		QueryRowContext(ctx, "select result from chunk_results where key = $1", key).
		Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get cached result: %w", err)
	}

	result = &transcription.Result{}
	if err := json.Unmarshal([]byte(data), result); err != nil {
		return nil, false, fmt.Errorf("decode cached result: %w", err)
	}
	return result, true, nil
}

// Put stores result under key, replacing any previous entry
func (s *Store) Put(ctx context.Context, key, backend string, result *transcription.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"insert or replace into chunk_results (key, backend, result, created_at) values ($1, $2, $3, $4)",
		key, backend, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("persisting result into sqlite: %w", err)
	}
	return nil
}

// Len returns the number of cached results
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "select count(*) from chunk_results").Scan(&n); err != nil {
		return 0, fmt.Errorf("count cached results: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
