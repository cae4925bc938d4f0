package store

import (
	"context"
	"fmt"

	"github.com/roach88/rewind/internal/ir"
)

// Write stores the record snapshot of a correlation id, replacing any earlier
// one. Rewriting an identical snapshot is a no-op; identity is the snapshot's
// canonical fingerprint.
func (s *Store) Write(ctx context.Context, id string, data []byte) error {
	fp := ir.FingerprintBytes(ir.DomainRecord, data)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (correlation_id, payload, fingerprint, mode, written_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			payload = excluded.payload,
			fingerprint = excluded.fingerprint,
			mode = excluded.mode,
			written_at = excluded.written_at
		WHERE recordings.fingerprint != excluded.fingerprint
	`,
		id,
		data,
		fp,
		snapshotMode(data),
		s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write recording %s: %w", id, err)
	}
	return nil
}

// WriteOutcome appends a TEST outcome. detail must be JSON or empty; it is
// stored in canonical form.
func (s *Store) WriteOutcome(ctx context.Context, id, label string, detail []byte) error {
	detailJSON, err := marshalDetail(detail)
	if err != nil {
		return fmt.Errorf("write outcome %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes (correlation_id, label, detail, written_at)
		VALUES (?, ?, ?, ?)
	`,
		id,
		label,
		detailJSON,
		s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write outcome %s: %w", id, err)
	}
	return nil
}
