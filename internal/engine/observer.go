package engine

import (
	"context"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// Observer is notified when the engine changes which service id owns a
// phone number.
//
// Observers run synchronously, in registration order, inside the merge's
// write transaction. An error from any hook aborts the merge and the
// transaction.
type Observer interface {
	// WillBreakAssociation is called before any mutation, with the pairing
	// that is about to stop being true.
	WillBreakAssociation(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error

	// DidLearnAssociation is called exactly once per learned association,
	// after the merged record is persisted.
	DidLearnAssociation(ctx context.Context, tx *store.Tx, merged ir.MergedRecipient) error
}

// NamedObserver is implemented by observers that want a stable name in
// errors and logs.
type NamedObserver interface {
	Name() string
}

func observerName(obs Observer) string {
	if n, ok := obs.(NamedObserver); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", obs)
}

// notifyWillBreak walks observers in order, stopping at the first error.
func (m *Merger) notifyWillBreak(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	digest, err := ir.WillBreakDigest(serviceID, phone)
	if err != nil {
		m.logger.Warn("event digest unavailable", "error", err)
	}
	m.logger.Debug("notifying observers", "event", "will_break", "digest", digest, "observers", len(m.observers))

	for _, obs := range m.observers {
		if err := obs.WillBreakAssociation(ctx, tx, serviceID, phone); err != nil {
			m.logger.Error("observer failed", "observer", observerName(obs), "event", "will_break", "digest", digest, "error", err)
			return newObserverError("will break association", obs, serviceID, phone, err)
		}
	}
	return nil
}

// notifyDidLearn walks observers in order, stopping at the first error.
func (m *Merger) notifyDidLearn(ctx context.Context, tx *store.Tx, merged ir.MergedRecipient) error {
	digest, err := ir.DidLearnDigest(merged)
	if err != nil {
		m.logger.Warn("event digest unavailable", "error", err)
	}
	m.logger.Debug("notifying observers", "event", "did_learn", "digest", digest, "observers", len(m.observers))

	for _, obs := range m.observers {
		if err := obs.DidLearnAssociation(ctx, tx, merged); err != nil {
			m.logger.Error("observer failed", "observer", observerName(obs), "event", "did_learn", "digest", digest, "error", err)
			return newObserverError("did learn association", obs, merged.ServiceID, merged.NewPhoneNumber, err)
		}
	}
	return nil
}
