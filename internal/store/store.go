// Package store keeps translation history as JSON documents in a single
// sqlite collection and serves live, timestamp-ordered views of it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/valpere/translateme/internal"
	"github.com/valpere/translateme/internal/logger"
)

// DefaultPollInterval is how often subscriptions check for writes made by
// other processes.
const DefaultPollInterval = 2 * time.Second

// ErrPersistence wraps every read or write failure of the history store.
var ErrPersistence = errors.New("persistence error")

// MalformedRecordError describes a stored document that could not be turned
// into a TranslationRecord. Such documents are skipped, never fatal.
type MalformedRecordError struct {
	ID  string
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %s: %v", e.ID, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

type Store struct {
	db           *sql.DB
	log          *slog.Logger
	pollInterval time.Duration

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithPollInterval sets how often subscriptions look for external writes.
// Zero disables polling; writes through this Store are always delivered.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.pollInterval = d }
}

// WithLogger sets the logger used for skipped records and subscription errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New opens (creating if needed) the sqlite database at dbPath.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps PRAGMA data_version meaningful: it only
	// changes for commits made by other connections.
	db.SetMaxOpenConns(1)

	s := newStore(db, opts...)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func newStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:           db,
		log:          logger.L,
		pollInterval: DefaultPollInterval,
		subs:         make(map[*subscription]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translations (
		id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		doc TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_translations_ts ON translations(ts DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Insert stores rec under a freshly generated id and returns that id. Any id
// already set on rec is ignored. Records that List would skip as malformed
// are rejected. The new record reaches callers through their subscriptions.
func (s *Store) Insert(ctx context.Context, rec internal.TranslationRecord) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	rec.ID = uuid.NewString()

	doc, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode record: %w", ErrPersistence, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO translations (id, ts, doc) VALUES (?, ?, ?)`,
		rec.ID, rec.Timestamp.UnixNano(), string(doc)); err != nil {
		return "", fmt.Errorf("%w: failed to insert record: %w", ErrPersistence, err)
	}

	s.log.Info("saved translation", "id", rec.ID)
	s.notify()
	return rec.ID, nil
}

// DeleteAll reads every record id and deletes them in one transaction. It
// returns the number of deleted records.
func (s *Store) DeleteAll(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin batch: %w", ErrPersistence, err)
	}
	defer tx.Rollback()

	ids, err := collectIDs(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read records: %w", ErrPersistence, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM translations WHERE id = ?`)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to prepare batch: %w", ErrPersistence, err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return 0, fmt.Errorf("%w: failed to delete %s: %w", ErrPersistence, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit batch: %w", ErrPersistence, err)
	}

	s.log.Info("deleted translations", "count", len(ids))
	s.notify()
	return len(ids), nil
}

func collectIDs(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM translations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns all well-formed records, newest first. Malformed documents are
// logged and skipped.
func (s *Store) List(ctx context.Context) ([]internal.TranslationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc FROM translations ORDER BY ts DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query records: %w", ErrPersistence, err)
	}
	defer rows.Close()

	records := make([]internal.TranslationRecord, 0)
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("%w: failed to scan record: %w", ErrPersistence, err)
		}

		rec, err := decodeRecord(id, doc)
		if err != nil {
			s.log.Warn("skipping record", "id", id, "error", err)
			continue
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read records: %w", ErrPersistence, err)
	}

	return records, nil
}

func decodeRecord(id, doc string) (internal.TranslationRecord, error) {
	var rec internal.TranslationRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return rec, &MalformedRecordError{ID: id, Err: err}
	}
	if err := validateRecord(rec); err != nil {
		return rec, &MalformedRecordError{ID: id, Err: err}
	}
	rec.ID = id
	return rec, nil
}

var (
	errEmptyOriginal    = errors.New("originalText is empty")
	errMissingTimestamp = errors.New("timestamp is missing")
)

func validateRecord(rec internal.TranslationRecord) error {
	if rec.OriginalText == "" {
		return errEmptyOriginal
	}
	if rec.Timestamp.IsZero() {
		return errMissingTimestamp
	}
	return nil
}

// dataVersion reports sqlite's data_version, which changes whenever another
// connection commits to the database file.
func (s *Store) dataVersion(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `PRAGMA data_version`).Scan(&v)
	return v, err
}

// notify asks every open subscription to refresh.
func (s *Store) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sub := range s.subs {
		sub.signal()
	}
}

// Close closes all subscriptions and the database.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	subs := make([]*subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return s.db.Close()
}
