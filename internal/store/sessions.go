package store

import (
	"context"
	"fmt"
)

// PrimaryDeviceID is the canonical device of every account.
const PrimaryDeviceID uint32 = 1

// Sessions records whether a secure session exists with a recipient's device.
type Sessions struct{}

// HasActiveSession reports whether an active session is recorded for the
// recipient's device.
func (Sessions) HasActiveSession(ctx context.Context, tx *Tx, recipientUniqueID string, deviceID uint32) (bool, error) {
	var count int
	err := tx.queryRow(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE recipient_unique_id = ? AND device_id = ? AND active = 1
	`, recipientUniqueID, deviceID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("has active session: %w", err)
	}
	return count > 0, nil
}

// SetSession records (or updates) the session state for a recipient's device.
func (Sessions) SetSession(ctx context.Context, tx *Tx, recipientUniqueID string, deviceID uint32, active bool) error {
	_, err := tx.exec(ctx, `
		INSERT INTO sessions (recipient_unique_id, device_id, active)
		VALUES (?, ?, ?)
		ON CONFLICT(recipient_unique_id, device_id) DO UPDATE SET active = excluded.active
	`, recipientUniqueID, deviceID, boolInt(active))
	if err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
