package engine

import (
	"context"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// mergeAlways makes serviceID and phone belong to one record.
//
// Calling it again with the same arguments right after it succeeds takes
// the fast path: no writes and no notifications.
func (m *Merger) mergeAlways(
	ctx context.Context,
	tx *store.Tx,
	serviceID ir.ServiceID,
	phone ir.E164,
	isLocal bool,
) (*ir.Recipient, error) {
	sidRecipient, err := m.recipients.FetchByServiceID(ctx, tx, serviceID)
	if err != nil {
		return nil, newStoreError("fetch by service id", serviceID, phone, err)
	}

	// Already merged. This is the path taken for nearly every message.
	if sidRecipient != nil && sidRecipient.HasPhoneNumber(phone) {
		return sidRecipient, nil
	}

	var oldPhone *ir.E164
	if sidRecipient != nil && sidRecipient.PhoneNumber != nil {
		oldPhone = sidRecipient.PhoneNumber.Ptr()
	}

	phoneRecipient, err := m.recipients.FetchByPhoneNumber(ctx, tx, phone)
	if err != nil {
		return nil, newStoreError("fetch by phone number", serviceID, phone, err)
	}

	// Observers keyed by the old pairing must hear about it while it is
	// still what the store says.
	if phoneRecipient != nil && phoneRecipient.ServiceID != nil {
		if err := m.notifyWillBreak(ctx, tx, *phoneRecipient.ServiceID, phone); err != nil {
			return nil, err
		}
	}

	merged, err := m.mergeHighTrust(ctx, tx, serviceID, phone, sidRecipient, phoneRecipient)
	if err != nil {
		return nil, err
	}

	if merged != nil {
		if err := m.recipients.Update(ctx, tx, merged); err != nil {
			return nil, newStoreError("update merged recipient", serviceID, phone, err)
		}
	} else {
		merged = &ir.Recipient{
			UniqueID:    m.ids.Generate(),
			ServiceID:   serviceID.Ptr(),
			PhoneNumber: phone.Ptr(),
		}
		if err := m.recipients.Insert(ctx, tx, merged); err != nil {
			return nil, newStoreError("insert merged recipient", serviceID, phone, err)
		}
	}

	if err := m.syncQueue.Enqueue(ctx, tx, merged.UniqueID); err != nil {
		return nil, newStoreError("enqueue storage sync", serviceID, phone, err)
	}

	event := ir.MergedRecipient{
		ServiceID:        serviceID,
		OldPhoneNumber:   oldPhone,
		NewPhoneNumber:   phone,
		IsLocalRecipient: isLocal,
		Recipient:        merged,
	}
	if err := m.notifyDidLearn(ctx, tx, event); err != nil {
		return nil, err
	}
	return merged, nil
}

// mergeHighTrust resolves the record that will hold both identifiers.
// It returns nil when a new record must be created.
//
// Service ids never change from one value to another; only a record
// without one may adopt serviceID. Phone numbers move freely.
func (m *Merger) mergeHighTrust(
	ctx context.Context,
	tx *store.Tx,
	serviceID ir.ServiceID,
	phone ir.E164,
	sidRecipient *ir.Recipient,
	phoneRecipient *ir.Recipient,
) (*ir.Recipient, error) {
	if sidRecipient != nil {
		if phoneRecipient != nil {
			if phoneRecipient.ServiceID == nil && sidRecipient.PhoneNumber == nil {
				// Two incomplete halves of the same account.
				return m.mergeRecipients(ctx, tx, serviceID, sidRecipient, phone, phoneRecipient)
			}

			// Detach before attaching: the old holder gives up the number
			// before sidRecipient takes it.
			m.setPhoneNumber(phoneRecipient, nil)
			if err := m.recipients.Update(ctx, tx, phoneRecipient); err != nil {
				return nil, newStoreError("detach phone number", serviceID, phone, err)
			}
		}

		if err := m.clearPhoneNumberMappings(ctx, tx, serviceID, phone); err != nil {
			return nil, err
		}

		if sidRecipient.PhoneNumber != nil {
			m.logger.Info("learned service id changed phone number",
				"service_id", serviceID.String(),
				"old_phone", sidRecipient.PhoneNumber.Redacted(),
				"new_phone", phone.Redacted(),
			)
		} else {
			m.logger.Info("learned service id is associated with phone number",
				"service_id", serviceID.String(),
				"phone", phone.Redacted(),
			)
		}
		m.setPhoneNumber(sidRecipient, phone.Ptr())
		return sidRecipient, nil
	}

	if phoneRecipient != nil {
		// No record holds serviceID, but other tables might.
		if err := m.clearServiceIDMappings(ctx, tx, serviceID, phone); err != nil {
			return nil, err
		}

		if phoneRecipient.ServiceID != nil {
			m.logger.Info("learned phone number transferred to service id",
				"service_id", serviceID.String(),
				"phone", phone.Redacted(),
				"previous_service_id", phoneRecipient.ServiceID.String(),
			)
			m.setPhoneNumber(phoneRecipient, nil)
			if err := m.recipients.Update(ctx, tx, phoneRecipient); err != nil {
				return nil, newStoreError("detach phone number", serviceID, phone, err)
			}
			return nil, nil
		}

		m.logger.Info("learned service id is associated with phone number",
			"service_id", serviceID.String(),
			"phone", phone.Redacted(),
		)
		phoneRecipient.ServiceID = serviceID.Ptr()
		return phoneRecipient, nil
	}

	return nil, nil
}

// setPhoneNumber changes r's phone number in memory.
//
// A record may never end up with neither identifier. If the number is
// cleared on a record without a service id, the record gets a fresh one.
func (m *Merger) setPhoneNumber(r *ir.Recipient, phone *ir.E164) {
	old := "nil"
	if r.PhoneNumber != nil {
		old = r.PhoneNumber.Redacted()
	}
	r.PhoneNumber = phone

	if phone == nil && r.ServiceID == nil {
		m.logger.Warn("clearing phone number on recipient with no service id",
			"unique_id", r.UniqueID,
			"old_phone", old,
		)
		r.ServiceID = m.orphanIDs().Ptr()
		return
	}

	sid, next := "nil", "nil"
	if r.ServiceID != nil {
		sid = r.ServiceID.String()
	}
	if phone != nil {
		next = phone.Redacted()
	}
	m.logger.Debug("changing phone number on recipient",
		"unique_id", r.UniqueID,
		"service_id", sid,
		"old_phone", old,
		"new_phone", next,
	)
}

func (m *Merger) clearPhoneNumberMappings(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	if m.cleaner == nil {
		return nil
	}
	if err := m.cleaner.ClearPhoneNumberMappings(ctx, tx, phone); err != nil {
		return newStoreError("clear phone number mappings", serviceID, phone, err)
	}
	return nil
}

func (m *Merger) clearServiceIDMappings(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	if m.cleaner == nil {
		return nil
	}
	if err := m.cleaner.ClearServiceIDMappings(ctx, tx, serviceID); err != nil {
		return newStoreError("clear service id mappings", serviceID, phone, err)
	}
	return nil
}
