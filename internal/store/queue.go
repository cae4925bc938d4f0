package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Queue is a durable append-only queue stored next to the recordings.
//
// Enqueue appends a row; Dequeue atomically marks the oldest pending row
// consumed and returns it; Compact deletes consumed rows. Rows survive
// process restarts until they are dequeued.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

// Enqueue appends a payload for id.
func (q *Queue) Enqueue(ctx context.Context, id string, payload []byte) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO queue (correlation_id, payload, enqueued_at) VALUES (?, ?, ?)
	`, id, payload, q.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", id, err)
	}
	return nil
}

// Dequeue consumes the oldest pending row. ok is false when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (id string, payload []byte, ok bool, err error) {
	row := q.db.QueryRowContext(ctx, `
		UPDATE queue
		SET consumed = 1
		WHERE seq = (
			SELECT seq FROM queue
			WHERE consumed = 0
			ORDER BY seq ASC
			LIMIT 1
		)
		RETURNING correlation_id, payload
	`)
	err = row.Scan(&id, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, false, nil
	}
	if err != nil {
		return "", nil, false, fmt.Errorf("dequeue: %w", err)
	}
	return id, payload, true, nil
}

// IsEmpty reports whether no pending rows remain.
func (q *Queue) IsEmpty(ctx context.Context) (bool, error) {
	n, err := q.Pending(ctx)
	return n == 0, err
}

// Pending returns the number of rows not yet dequeued.
func (q *Queue) Pending(ctx context.Context) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM queue WHERE consumed = 0
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// Compact deletes consumed rows.
func (q *Queue) Compact(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, `DELETE FROM queue WHERE consumed = 1`); err != nil {
		return fmt.Errorf("compact queue: %w", err)
	}
	return nil
}

// Len returns the total number of rows, consumed or not.
func (q *Queue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count queue: %w", err)
	}
	return n, nil
}
