package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Read when no recording exists for an id.
var ErrNotFound = errors.New("recording not found")

// Recording describes one stored recording without its payload.
type Recording struct {
	CorrelationID string
	Fingerprint   string
	Mode          string
	Size          int
	WrittenAt     time.Time
}

// Outcome is one stored TEST outcome.
type Outcome struct {
	Seq           int64     `json:"seq"`
	CorrelationID string    `json:"correlation_id"`
	Label         string    `json:"label"`
	Detail        string    `json:"detail"`
	WrittenAt     time.Time `json:"written_at"`
}

// OutcomeFilter narrows ListOutcomes. Zero fields match everything.
type OutcomeFilter struct {
	CorrelationID string
	Label         string
	Limit         int
}

// Read returns the record snapshot stored for id.
// Returns an error wrapping ErrNotFound if there is none.
func (s *Store) Read(ctx context.Context, id string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM recordings WHERE correlation_id = ?
	`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read recording %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read recording %s: %w", id, err)
	}
	return data, nil
}

// ListRecordings returns stored recordings ordered by correlation id.
// A limit of 0 means no limit.
//
// Returns an empty slice (not nil) if the store holds no recordings.
func (s *Store) ListRecordings(ctx context.Context, limit int) ([]Recording, error) {
	query := `
		SELECT correlation_id, fingerprint, mode, length(payload), written_at
		FROM recordings
		ORDER BY correlation_id COLLATE BINARY ASC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recordings: %w", err)
	}
	defer rows.Close()

	recs := []Recording{}
	for rows.Next() {
		var r Recording
		var writtenAt int64
		if err := rows.Scan(&r.CorrelationID, &r.Fingerprint, &r.Mode, &r.Size, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		r.WrittenAt = time.UnixMilli(writtenAt).UTC()
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recordings: %w", err)
	}
	return recs, nil
}

// ListOutcomes returns outcomes matching f in write order (ORDER BY seq ASC).
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListOutcomes(ctx context.Context, f OutcomeFilter) ([]Outcome, error) {
	var (
		where []string
		args  []any
	)
	if f.CorrelationID != "" {
		where = append(where, "correlation_id = ?")
		args = append(args, f.CorrelationID)
	}
	if f.Label != "" {
		where = append(where, "label = ?")
		args = append(args, f.Label)
	}

	query := "SELECT seq, correlation_id, label, detail, written_at FROM outcomes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	outs := []Outcome{}
	for rows.Next() {
		var o Outcome
		var writtenAt int64
		if err := rows.Scan(&o.Seq, &o.CorrelationID, &o.Label, &o.Detail, &writtenAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.WrittenAt = time.UnixMilli(writtenAt).UTC()
		outs = append(outs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return outs, nil
}

// CountOutcomes returns the number of outcomes per label.
func (s *Store) CountOutcomes(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*) FROM outcomes GROUP BY label ORDER BY label
	`)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[label] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}
