package artifacts

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"veriflow/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected rather than migrated in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages captured artifact persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the artifact database inside the data dir.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "artifacts.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Put stores a payload under the given key, replacing any previous payload.
// Writes are last-write-wins per key.
func (s *Store) Put(ctx context.Context, key Key, contentType string, payload []byte) error {
	if _, ok := ParseKey(string(key)); !ok {
		return fmt.Errorf("unknown artifact key %q", key)
	}
	if len(payload) == 0 {
		return errors.New("empty artifact payload")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	return s.execWithRetry(
		ctx,
		`INSERT INTO artifacts (key, content_type, payload, size, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET
             content_type = excluded.content_type,
             payload = excluded.payload,
             size = excluded.size,
             updated_at = excluded.updated_at`,
		string(key), contentType, payload, int64(len(payload)), now, now,
	)
}

// Get fetches an artifact by key. Returns nil when the key is absent.
func (s *Store) Get(ctx context.Context, key Key) (*Artifact, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT key, content_type, payload, size, created_at, updated_at FROM artifacts WHERE key = ?`,
		string(key),
	)
	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return artifact, nil
}

// Remove deletes an artifact by key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key Key) error {
	return s.execWithRetry(ctx, `DELETE FROM artifacts WHERE key = ?`, string(key))
}

// Clear deletes every stored artifact.
func (s *Store) Clear(ctx context.Context) error {
	return s.execWithRetry(ctx, `DELETE FROM artifacts`)
}

// List returns summaries for every stored artifact without loading payloads.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, content_type, size, updated_at FROM artifacts ORDER BY key`,
	)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var summaries []Summary
	for rows.Next() {
		var (
			key         string
			contentType string
			size        int64
			updatedAt   string
		)
		if err := rows.Scan(&key, &contentType, &size, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan artifact summary: %w", err)
		}
		summaries = append(summaries, Summary{
			Key:         Key(key),
			ContentType: contentType,
			Size:        size,
			UpdatedAt:   parseTimestamp(updatedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return summaries, nil
}

// Presence reports which artifact slots are currently populated.
type Presence struct {
	HasFront    bool
	HasBack     bool
	HasFaceClip bool
}

// HasAll reports whether the mandatory artifact set is present. The back
// image is optional, e.g. for passports.
func (p Presence) HasAll() bool {
	return p.HasFront && p.HasFaceClip
}

// Empty reports whether no artifacts are stored at all.
func (p Presence) Empty() bool {
	return !p.HasFront && !p.HasBack && !p.HasFaceClip
}

// CheckPresence reports which artifact slots are populated.
func (s *Store) CheckPresence(ctx context.Context) (Presence, error) {
	summaries, err := s.List(ctx)
	if err != nil {
		return Presence{}, err
	}
	var presence Presence
	for _, summary := range summaries {
		switch summary.Key {
		case KeyFront:
			presence.HasFront = true
		case KeyBack:
			presence.HasBack = true
		case KeyFaceClip:
			presence.HasFaceClip = true
		}
	}
	return presence, nil
}

// HasRequired reports whether the minimum artifact set for submission is present.
func (s *Store) HasRequired(ctx context.Context) (bool, error) {
	presence, err := s.CheckPresence(ctx)
	if err != nil {
		return false, err
	}
	return presence.HasAll(), nil
}

func scanArtifact(row *sql.Row) (*Artifact, error) {
	var (
		key         string
		contentType string
		payload     []byte
		size        int64
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(&key, &contentType, &payload, &size, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return &Artifact{
		Key:         Key(key),
		ContentType: contentType,
		Payload:     payload,
		Size:        size,
		CreatedAt:   parseTimestamp(createdAt),
		UpdatedAt:   parseTimestamp(updatedAt),
	}, nil
}

func parseTimestamp(value string) time.Time {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed
	}
	return time.Time{}
}
