package observers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// NumberChangedNotices inserts "number changed" notices when a known
// contact moves to a different phone number: one in the contact's thread
// and one in every group where the contact is a full member.
type NumberChangedNotices struct {
	notices store.Notices
	groups  store.Groups
	logger  *slog.Logger
}

// NewNumberChangedNotices creates a NumberChangedNotices observer.
func NewNumberChangedNotices(logger *slog.Logger) *NumberChangedNotices {
	return &NumberChangedNotices{logger: logger}
}

// Name implements engine.NamedObserver.
func (n *NumberChangedNotices) Name() string { return "number_changed_notices" }

// WillBreakAssociation implements engine.Observer.
func (n *NumberChangedNotices) WillBreakAssociation(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	return nil
}

// DidLearnAssociation implements engine.Observer.
func (n *NumberChangedNotices) DidLearnAssociation(ctx context.Context, tx *store.Tx, m ir.MergedRecipient) error {
	if m.IsLocalRecipient || !m.PhoneNumberChanged() {
		return nil
	}

	threads := []string{ir.ContactThread(m.Recipient.UniqueID)}
	groups, err := n.groups.GroupsWithFullMember(ctx, tx, m.ServiceID)
	if err != nil {
		return fmt.Errorf("number changed notices: %w", err)
	}
	for _, g := range groups {
		threads = append(threads, ir.GroupThread(g))
	}

	for _, thread := range threads {
		notice := &ir.Notice{
			Thread:         thread,
			ServiceID:      m.ServiceID,
			OldPhoneNumber: m.OldPhoneNumber,
			NewPhoneNumber: m.NewPhoneNumber,
		}
		if err := n.notices.Insert(ctx, tx, notice); err != nil {
			return fmt.Errorf("number changed notices: %w", err)
		}
	}
	n.logger.Info("inserted number changed notices",
		"service_id", m.ServiceID.String(),
		"threads", len(threads),
	)
	return nil
}
