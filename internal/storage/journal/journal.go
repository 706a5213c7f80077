// Package journal records pushed run archives in DuckDB.
//
// The journal is an audit trail only. The storage tree never reads it;
// a lost journal loses history, not data.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/numass/internal/errors"
	"github.com/xtxerr/numass/internal/logging"
	"github.com/xtxerr/numass/internal/tree"
)

var log = logging.Component("journal")

// =============================================================================
// Journal Configuration
// =============================================================================

// Config holds journal options.
type Config struct {
	// DSN is the DuckDB file. Empty keeps the journal in memory.
	DSN string

	// MaxOpenConns is the maximum number of open connections.
	MaxOpenConns int

	// QueryTimeout bounds every statement.
	QueryTimeout time.Duration
}

// DefaultConfig returns an in-memory journal configuration.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns: 4,
		QueryTimeout: 10 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS pushes (
	id           VARCHAR PRIMARY KEY,
	name         VARCHAR NOT NULL,
	shelf        VARCHAR NOT NULL,
	file         VARCHAR NOT NULL,
	size         BIGINT  NOT NULL,
	source       VARCHAR NOT NULL,
	overwritten  BOOLEAN NOT NULL,
	pushed_at_ms BIGINT  NOT NULL
)`

// =============================================================================
// Journal
// =============================================================================

// Entry is one recorded push.
type Entry struct {
	ID          uuid.UUID
	Name        string
	Shelf       string
	File        string
	Size        int64
	Source      string
	Overwritten bool
	PushedAt    time.Time
}

// ShelfSummary aggregates the pushes into one shelf.
type ShelfSummary struct {
	Shelf      string
	Pushes     int64
	Bytes      int64
	LastPushAt time.Time
}

// Journal records data-pushed events.
//
// Journal is safe for concurrent use.
type Journal struct {
	db     *sql.DB
	config Config
	mu     sync.RWMutex
	closed bool
}

var _ tree.Listener = (*Journal)(nil)

// Open opens or creates the journal.
func Open(cfg Config) (*Journal, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = DefaultConfig().MaxOpenConns
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultConfig().QueryTimeout
	}

	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	dsn := cfg.DSN
	if dsn == "" {
		dsn = ":memory:"
	}
	log.Debug("journal opened", "dsn", dsn)
	return &Journal{db: db, config: cfg}, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}

// DataPushed implements tree.Listener.
func (j *Journal) DataPushed(ctx context.Context, ev tree.PushEvent) error {
	return j.Record(ctx, Entry{
		ID:          ev.ID,
		Name:        ev.Name,
		Shelf:       ev.Shelf,
		File:        ev.File,
		Size:        int64(ev.Size),
		Source:      ev.Source,
		Overwritten: ev.Overwritten,
		PushedAt:    ev.Time,
	})
}

// Record inserts e.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return errors.Wrap(errors.ErrClosed, "journal")
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.QueryTimeout)
	defer cancel()

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO pushes (id, name, shelf, file, size, source, overwritten, pushed_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID.String(), e.Name, e.Shelf, e.File, e.Size, e.Source, e.Overwritten, e.PushedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record push %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, errors.Wrap(errors.ErrClosed, "journal")
	}
	if limit <= 0 {
		limit = 20
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.QueryTimeout)
	defer cancel()

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, name, shelf, file, size, source, overwritten, pushed_at_ms
		FROM pushes
		ORDER BY pushed_at_ms DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pushes: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			id   string
			atMs int64
		)
		if err := rows.Scan(&id, &e.Name, &e.Shelf, &e.File, &e.Size, &e.Source, &e.Overwritten, &atMs); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("scan row: id %q: %w", id, err)
		}
		e.PushedAt = time.UnixMilli(atMs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Shelves summarizes the pushes per shelf, ordered by shelf path.
func (j *Journal) Shelves(ctx context.Context) ([]ShelfSummary, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, errors.Wrap(errors.ErrClosed, "journal")
	}

	ctx, cancel := context.WithTimeout(ctx, j.config.QueryTimeout)
	defer cancel()

	rows, err := j.db.QueryContext(ctx, `
		SELECT shelf, count(*), CAST(sum(size) AS BIGINT), max(pushed_at_ms)
		FROM pushes
		GROUP BY shelf
		ORDER BY shelf
	`)
	if err != nil {
		return nil, fmt.Errorf("query shelves: %w", err)
	}
	defer rows.Close()

	var out []ShelfSummary
	for rows.Next() {
		var (
			s     ShelfSummary
			bytes sql.NullInt64
			atMs  int64
		)
		if err := rows.Scan(&s.Shelf, &s.Pushes, &bytes, &atMs); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		s.Bytes = bytes.Int64
		s.LastPushAt = time.UnixMilli(atMs).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
