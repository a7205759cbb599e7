// Package journal records every publish attempt in the local SQLite
// database so an operator can see what the station tried to send and
// whether a session was up at the time.
//
// The journal is a record of outcomes only; failed publishes are not
// redelivered.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/weatherstation/internal/infrastructure/config"
	"github.com/nerrad567/weatherstation/internal/infrastructure/database"
	"github.com/nerrad567/weatherstation/migrations"
)

// Kinds of journal entries.
const (
	KindReading = "reading"
	KindStatus  = "status"
)

const maxRecent = 1000

// ErrInvalidEntry is returned by Record for entries without kind or topic.
var ErrInvalidEntry = errors.New("journal: kind and topic are required")

// Entry is one publish attempt.
type Entry struct {
	ID         int64     `json:"id"`
	Kind       string    `json:"kind"`
	Topic      string    `json:"topic"`
	Payload    []byte    `json:"payload"`
	Published  bool      `json:"published"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Journal stores entries in the publications table.
type Journal struct {
	db  *database.DB
	now func() time.Time
}

// New wraps an open, migrated database.
func New(db *database.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// Open opens the configured database, applies the embedded migrations and
// returns the journal together with the database for closing.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Journal, *database.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, nil, fmt.Errorf("migrating journal: %w", err)
	}
	return New(db), db, nil
}

// Record stores e and returns its id. A zero RecordedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.Kind == "" || e.Topic == "" {
		return 0, ErrInvalidEntry
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = j.now()
	}
	if e.Payload == nil {
		e.Payload = []byte{}
	}

	res, err := j.db.ExecContext(ctx,
		`INSERT INTO publications (kind, topic, payload, published, recorded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Kind, e.Topic, e.Payload, boolToInt(e.Published), e.RecordedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("recording publication: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, topic, payload, published, recorded_at
		 FROM publications ORDER BY recorded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying publications: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			published int
			at        int64
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.Topic, &e.Payload, &published, &at); err != nil {
			return nil, fmt.Errorf("scanning publication: %w", err)
		}
		e.Published = published != 0
		e.RecordedAt = time.UnixMilli(at).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating publications: %w", err)
	}
	return entries, nil
}

// Counts holds totals by outcome.
type Counts struct {
	Total     int64 `json:"total"`
	Published int64 `json:"published"`
	Failed    int64 `json:"failed"`
}

// Count returns totals by outcome.
func (j *Journal) Count(ctx context.Context) (Counts, error) {
	var c Counts
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(published), 0) FROM publications`,
	).Scan(&c.Total, &c.Published)
	if err != nil {
		return Counts{}, fmt.Errorf("counting publications: %w", err)
	}
	c.Failed = c.Total - c.Published
	return c, nil
}

// Prune deletes entries recorded before cutoff and returns how many were
// removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM publications WHERE recorded_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("pruning publications: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Retain prunes entries older than keep now and then every interval until
// ctx is cancelled. Errors go to onErr, which may be nil.
func (j *Journal) Retain(ctx context.Context, keep, interval time.Duration, onErr func(error)) {
	prune := func() {
		if _, err := j.Prune(ctx, j.now().Add(-keep)); err != nil && onErr != nil && ctx.Err() == nil {
			onErr(err)
		}
	}

	prune()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
