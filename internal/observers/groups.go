package observers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// GroupMemberMigrator rekeys phone-number group entries to the service id
// that now owns the number. State and role are preserved.
//
// The service id is resolved through the address cache, which must have
// seen the association first.
type GroupMemberMigrator struct {
	cache  *AddressCache
	groups store.Groups
	logger *slog.Logger
}

// NewGroupMemberMigrator creates a GroupMemberMigrator.
func NewGroupMemberMigrator(cache *AddressCache, logger *slog.Logger) *GroupMemberMigrator {
	return &GroupMemberMigrator{cache: cache, logger: logger}
}

// Name implements engine.NamedObserver.
func (g *GroupMemberMigrator) Name() string { return "group_member_migrator" }

// WillBreakAssociation implements engine.Observer. Entries keyed by
// service id do not depend on the phone number.
func (g *GroupMemberMigrator) WillBreakAssociation(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	return nil
}

// DidLearnAssociation implements engine.Observer.
func (g *GroupMemberMigrator) DidLearnAssociation(ctx context.Context, tx *store.Tx, m ir.MergedRecipient) error {
	members, err := g.groups.PhoneKeyedMembers(ctx, tx, m.NewPhoneNumber)
	if err != nil {
		return fmt.Errorf("group member migrator: %w", err)
	}
	if len(members) == 0 {
		return nil
	}

	sid, ok := g.cache.ServiceID(tx, m.NewPhoneNumber)
	if !ok {
		g.logger.Warn("group members not migrated: phone number not in address cache",
			"phone", m.NewPhoneNumber.Redacted(),
			"entries", len(members),
		)
		return nil
	}

	for _, member := range members {
		if err := g.migrate(ctx, tx, member, sid); err != nil {
			return fmt.Errorf("group member migrator: group %s: %w", member.GroupID, err)
		}
	}
	return nil
}

func (g *GroupMemberMigrator) migrate(ctx context.Context, tx *store.Tx, member *ir.GroupMember, sid ir.ServiceID) error {
	existing, err := g.groups.MemberByServiceID(ctx, tx, member.GroupID, sid)
	if err != nil {
		return err
	}

	if existing == nil {
		member.ServiceID = sid.Ptr()
		member.PhoneNumber = nil
		g.logger.Debug("migrated group member", "group_id", member.GroupID, "service_id", sid.String())
		return g.groups.UpdateMember(ctx, tx, member)
	}

	// Both keys are present in the group: keep the service id entry with
	// the stronger of the two memberships.
	if err := g.groups.DeleteMember(ctx, tx, member); err != nil {
		return err
	}
	changed := false
	if member.State.Stronger(existing.State) {
		// The invite or join details belong to the state being adopted.
		existing.State = member.State
		existing.AddedBy = member.AddedBy
		existing.JoinedViaLink = member.JoinedViaLink
		changed = true
	}
	if member.Role > existing.Role {
		existing.Role = member.Role
		changed = true
	}
	g.logger.Debug("folded duplicate group member", "group_id", member.GroupID, "service_id", sid.String())
	if !changed {
		return nil
	}
	return g.groups.UpdateMember(ctx, tx, existing)
}
