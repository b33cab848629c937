package engine

import (
	"context"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// mergeRecipients unifies a record holding only serviceID with a record
// holding only phone. One survives with both identifiers and the other is
// removed. This is the only place a recipient is ever deleted.
//
// The survivor is the phone record only when it has a session on the
// canonical device and the service id record does not. Otherwise the
// service id record wins. This is a preference, not a guarantee: sessions
// can change on other devices at any time.
func (m *Merger) mergeRecipients(
	ctx context.Context,
	tx *store.Tx,
	serviceID ir.ServiceID,
	sidRecipient *ir.Recipient,
	phone ir.E164,
	phoneRecipient *ir.Recipient,
) (*ir.Recipient, error) {
	m.assert(sidRecipient.PhoneNumber == nil || *sidRecipient.PhoneNumber == phone,
		"service id recipient already holds a different phone number", serviceID, phone)
	m.assert(phoneRecipient.ServiceID == nil || *phoneRecipient.ServiceID == serviceID,
		"phone number recipient already holds a different service id", serviceID, phone)

	sidHasSession, err := m.sessions.HasActiveSession(ctx, tx, sidRecipient.UniqueID, canonicalDeviceID)
	if err != nil {
		return nil, newStoreError("session lookup", serviceID, phone, err)
	}
	phoneHasSession, err := m.sessions.HasActiveSession(ctx, tx, phoneRecipient.UniqueID, canonicalDeviceID)
	if err != nil {
		return nil, newStoreError("session lookup", serviceID, phone, err)
	}

	winner, loser := sidRecipient, phoneRecipient
	if !sidHasSession && phoneHasSession {
		winner, loser = phoneRecipient, sidRecipient
		m.logger.Warn("discarding service id recipient in favor of phone number recipient",
			"service_id", serviceID.String(),
			"phone", phone.Redacted(),
			"kept", winner.UniqueID,
			"discarded", loser.UniqueID,
		)
	} else {
		m.logger.Warn("discarding phone number recipient in favor of service id recipient",
			"service_id", serviceID.String(),
			"phone", phone.Redacted(),
			"kept", winner.UniqueID,
			"discarded", loser.UniqueID,
		)
	}

	if !m.assert(winner.ID != loser.ID, "collision winner and loser are the same row", serviceID, phone) {
		// Degrade to the service id anchored record and delete nothing.
		sidRecipient.PhoneNumber = phone.Ptr()
		return sidRecipient, nil
	}

	// The loser goes first so the winner can take both identifiers.
	if err := m.recipients.Remove(ctx, tx, loser); err != nil {
		return nil, newStoreError("remove collision loser", serviceID, phone, err)
	}

	winner.ServiceID = serviceID.Ptr()
	winner.PhoneNumber = phone.Ptr()
	return winner, nil
}

// assert checks an invariant that only a misbehaving collaborator can
// break. In strict mode a violation panics; otherwise it is logged and
// assert returns false so the caller can degrade.
func (m *Merger) assert(ok bool, msg string, serviceID ir.ServiceID, phone ir.E164) bool {
	if ok {
		return true
	}
	if m.strict {
		panic(&MergeError{
			Code:        ErrCodeInvariantViolation,
			Message:     msg,
			ServiceID:   serviceID,
			PhoneNumber: phone,
		})
	}
	m.logger.Error(fmt.Sprintf("assertion failed: %s", msg),
		"service_id", serviceID.String(),
		"phone", phone.Redacted(),
	)
	return false
}
