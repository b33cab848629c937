package store

import (
	"context"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// SyncQueue is the transactional outbox of recipients waiting to be pushed
// to remote storage. Delivery happens elsewhere; this type only records
// intent, atomically with the change that caused it.
type SyncQueue struct{}

// Enqueue marks a recipient pending. Enqueueing an already-pending recipient
// is a no-op (ON CONFLICT DO NOTHING), so callers need not deduplicate.
func (SyncQueue) Enqueue(ctx context.Context, tx *Tx, recipientUniqueID string) error {
	_, err := tx.exec(ctx, `
		INSERT INTO pending_sync (recipient_unique_id)
		VALUES (?)
		ON CONFLICT(recipient_unique_id) DO NOTHING
	`, recipientUniqueID)
	if err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// Pending returns up to limit pending entries, oldest first.
// A limit <= 0 returns every entry.
func (SyncQueue) Pending(ctx context.Context, tx *Tx, limit int) ([]ir.SyncEntry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := tx.query(ctx, `
		SELECT id, recipient_unique_id FROM pending_sync
		ORDER BY id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync: %w", err)
	}
	defer rows.Close()

	entries := []ir.SyncEntry{}
	for rows.Next() {
		var e ir.SyncEntry
		if err := rows.Scan(&e.ID, &e.RecipientUniqueID); err != nil {
			return nil, fmt.Errorf("pending sync: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending sync: %w", err)
	}
	return entries, nil
}

// Ack removes delivered entries and returns how many were removed.
// Unknown ids are ignored.
func (SyncQueue) Ack(ctx context.Context, tx *Tx, recipientUniqueIDs ...string) (int64, error) {
	var total int64
	for _, uid := range recipientUniqueIDs {
		res, err := tx.exec(ctx, `DELETE FROM pending_sync WHERE recipient_unique_id = ?`, uid)
		if err != nil {
			return total, fmt.Errorf("ack sync %s: %w", uid, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("ack sync %s: rows affected: %w", uid, err)
		}
		total += n
	}
	return total, nil
}
