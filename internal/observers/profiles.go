package observers

import (
	"context"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// ProfileMerger keeps profile keys in line with recipient associations.
type ProfileMerger struct {
	profiles store.Profiles
}

// NewProfileMerger creates a ProfileMerger.
func NewProfileMerger() *ProfileMerger {
	return &ProfileMerger{}
}

// Name implements engine.NamedObserver.
func (p *ProfileMerger) Name() string { return "profile_merger" }

// WillBreakAssociation drops phone from the profile of serviceID.
func (p *ProfileMerger) WillBreakAssociation(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	profile, err := p.profiles.ByServiceID(ctx, tx, serviceID)
	if err != nil {
		return fmt.Errorf("profile merger: %w", err)
	}
	if profile == nil || profile.PhoneNumber == nil || *profile.PhoneNumber != phone {
		return nil
	}
	profile.PhoneNumber = nil
	if err := p.profiles.UpdateKeys(ctx, tx, profile); err != nil {
		return fmt.Errorf("profile merger: %w", err)
	}
	return nil
}

// DidLearnAssociation gives the service id's profile the new phone number.
//
// A phone-only profile is adopted when the service id has none, and
// discarded in favor of the service id's profile otherwise. A profile of
// some other service id still holding the number loses it.
func (p *ProfileMerger) DidLearnAssociation(ctx context.Context, tx *store.Tx, m ir.MergedRecipient) error {
	phoneProfile, err := p.profiles.ByPhoneNumber(ctx, tx, m.NewPhoneNumber)
	if err != nil {
		return fmt.Errorf("profile merger: %w", err)
	}
	sidProfile, err := p.profiles.ByServiceID(ctx, tx, m.ServiceID)
	if err != nil {
		return fmt.Errorf("profile merger: %w", err)
	}

	if phoneProfile != nil && (sidProfile == nil || phoneProfile.ID != sidProfile.ID) {
		switch {
		case phoneProfile.ServiceID != nil:
			phoneProfile.PhoneNumber = nil
			if err := p.profiles.UpdateKeys(ctx, tx, phoneProfile); err != nil {
				return fmt.Errorf("profile merger: release stale phone: %w", err)
			}
		case sidProfile == nil:
			phoneProfile.ServiceID = m.ServiceID.Ptr()
			if err := p.profiles.UpdateKeys(ctx, tx, phoneProfile); err != nil {
				return fmt.Errorf("profile merger: adopt: %w", err)
			}
			return nil
		default:
			if err := p.profiles.Delete(ctx, tx, phoneProfile); err != nil {
				return fmt.Errorf("profile merger: fold: %w", err)
			}
		}
	}

	if sidProfile == nil || (sidProfile.PhoneNumber != nil && *sidProfile.PhoneNumber == m.NewPhoneNumber) {
		return nil
	}
	sidProfile.PhoneNumber = m.NewPhoneNumber.Ptr()
	if err := p.profiles.UpdateKeys(ctx, tx, sidProfile); err != nil {
		return fmt.Errorf("profile merger: %w", err)
	}
	return nil
}
