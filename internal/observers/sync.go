package observers

import (
	"context"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// SyncNotifier marks every recipient an association change touches as
// pending for storage sync. Only the enqueue is transactional.
type SyncNotifier struct {
	recipients store.Recipients
	queue      store.SyncQueue
}

// NewSyncNotifier creates a SyncNotifier.
func NewSyncNotifier() *SyncNotifier {
	return &SyncNotifier{}
}

// Name implements engine.NamedObserver.
func (s *SyncNotifier) Name() string { return "sync_notifier" }

// WillBreakAssociation enqueues the recipient about to lose phone.
func (s *SyncNotifier) WillBreakAssociation(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	r, err := s.recipients.FetchByServiceID(ctx, tx, serviceID)
	if err != nil {
		return fmt.Errorf("sync notifier: %w", err)
	}
	if r == nil {
		return nil
	}
	if err := s.queue.Enqueue(ctx, tx, r.UniqueID); err != nil {
		return fmt.Errorf("sync notifier: %w", err)
	}
	return nil
}

// DidLearnAssociation enqueues the merged recipient.
func (s *SyncNotifier) DidLearnAssociation(ctx context.Context, tx *store.Tx, m ir.MergedRecipient) error {
	if err := s.queue.Enqueue(ctx, tx, m.Recipient.UniqueID); err != nil {
		return fmt.Errorf("sync notifier: %w", err)
	}
	return nil
}
