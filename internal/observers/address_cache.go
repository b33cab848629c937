package observers

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/rmerge/internal/engine"
	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

var (
	_ engine.Observer       = (*AddressCache)(nil)
	_ engine.MappingCleaner = (*AddressCache)(nil)
)

// AddressCache maps phone numbers to service ids and back.
//
// Changes made inside a write transaction are visible to lookups through
// that transaction at once. They reach every other reader only after the
// transaction commits and are dropped if it rolls back.
//
// Thread-safety: AddressCache is safe for concurrent use.
type AddressCache struct {
	mu         sync.RWMutex
	phoneToSID map[ir.E164]ir.ServiceID
	sidToPhone map[ir.ServiceID]ir.E164
}

// cacheOverlay holds one transaction's pending changes. A nil value marks
// a deleted mapping.
type cacheOverlay struct {
	phoneToSID map[ir.E164]*ir.ServiceID
	sidToPhone map[ir.ServiceID]*ir.E164
}

type overlayKey struct {
	cache *AddressCache
}

// NewAddressCache creates an empty cache.
func NewAddressCache() *AddressCache {
	return &AddressCache{
		phoneToSID: make(map[ir.E164]ir.ServiceID),
		sidToPhone: make(map[ir.ServiceID]ir.E164),
	}
}

// Name implements engine.NamedObserver.
func (c *AddressCache) Name() string { return "address_cache" }

// Warm replaces the committed contents with the recipient table.
func (c *AddressCache) Warm(ctx context.Context, tx *store.Tx) error {
	recipients, err := store.Recipients{}.List(ctx, tx)
	if err != nil {
		return fmt.Errorf("warm address cache: %w", err)
	}

	phoneToSID := make(map[ir.E164]ir.ServiceID, len(recipients))
	sidToPhone := make(map[ir.ServiceID]ir.E164, len(recipients))
	for _, r := range recipients {
		if r.ServiceID != nil && r.PhoneNumber != nil {
			phoneToSID[*r.PhoneNumber] = *r.ServiceID
			sidToPhone[*r.ServiceID] = *r.PhoneNumber
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.phoneToSID = phoneToSID
	c.sidToPhone = sidToPhone
	return nil
}

// ServiceID returns the service id associated with phone as seen by tx.
// A nil tx sees only committed state.
func (c *AddressCache) ServiceID(tx *store.Tx, phone ir.E164) (ir.ServiceID, bool) {
	if ov := c.peekOverlay(tx); ov != nil {
		if sid, ok := ov.phoneToSID[phone]; ok {
			if sid == nil {
				return ir.ServiceID{}, false
			}
			return *sid, true
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	sid, ok := c.phoneToSID[phone]
	return sid, ok
}

// PhoneNumber returns the phone number associated with id as seen by tx.
// A nil tx sees only committed state.
func (c *AddressCache) PhoneNumber(tx *store.Tx, id ir.ServiceID) (ir.E164, bool) {
	if ov := c.peekOverlay(tx); ov != nil {
		if phone, ok := ov.sidToPhone[id]; ok {
			if phone == nil {
				return "", false
			}
			return *phone, true
		}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	phone, ok := c.sidToPhone[id]
	return phone, ok
}

// Len returns the number of committed associations.
func (c *AddressCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.phoneToSID)
}

// ClearPhoneNumberMappings implements engine.MappingCleaner.
func (c *AddressCache) ClearPhoneNumberMappings(ctx context.Context, tx *store.Tx, phone ir.E164) error {
	c.clearPhone(tx, phone)
	return nil
}

// ClearServiceIDMappings implements engine.MappingCleaner.
func (c *AddressCache) ClearServiceIDMappings(ctx context.Context, tx *store.Tx, id ir.ServiceID) error {
	c.clearServiceID(tx, id)
	return nil
}

// WillBreakAssociation implements engine.Observer. The pairing is replaced
// in DidLearnAssociation.
func (c *AddressCache) WillBreakAssociation(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	return nil
}

// DidLearnAssociation implements engine.Observer.
func (c *AddressCache) DidLearnAssociation(ctx context.Context, tx *store.Tx, m ir.MergedRecipient) error {
	if m.OldPhoneNumber != nil {
		c.clearPhone(tx, *m.OldPhoneNumber)
	}
	c.clearPhone(tx, m.NewPhoneNumber)
	c.clearServiceID(tx, m.ServiceID)

	ov := c.overlay(tx)
	ov.phoneToSID[m.NewPhoneNumber] = m.ServiceID.Ptr()
	ov.sidToPhone[m.ServiceID] = m.NewPhoneNumber.Ptr()
	return nil
}

func (c *AddressCache) clearPhone(tx *store.Tx, phone ir.E164) {
	ov := c.overlay(tx)
	if sid, ok := c.ServiceID(tx, phone); ok {
		ov.sidToPhone[sid] = nil
	}
	ov.phoneToSID[phone] = nil
}

func (c *AddressCache) clearServiceID(tx *store.Tx, id ir.ServiceID) {
	ov := c.overlay(tx)
	if phone, ok := c.PhoneNumber(tx, id); ok {
		ov.phoneToSID[phone] = nil
	}
	ov.sidToPhone[id] = nil
}

// overlay returns tx's pending changes, creating them and registering the
// commit hook on first use.
func (c *AddressCache) overlay(tx *store.Tx) *cacheOverlay {
	return tx.Scratch(overlayKey{c}, func() any {
		ov := &cacheOverlay{
			phoneToSID: make(map[ir.E164]*ir.ServiceID),
			sidToPhone: make(map[ir.ServiceID]*ir.E164),
		}
		tx.AfterCommit(func() { c.apply(ov) })
		return ov
	}).(*cacheOverlay)
}

func (c *AddressCache) peekOverlay(tx *store.Tx) *cacheOverlay {
	if tx == nil {
		return nil
	}
	v, ok := tx.Peek(overlayKey{c})
	if !ok {
		return nil
	}
	return v.(*cacheOverlay)
}

func (c *AddressCache) apply(ov *cacheOverlay) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for phone, sid := range ov.phoneToSID {
		if sid == nil {
			delete(c.phoneToSID, phone)
		} else {
			c.phoneToSID[phone] = *sid
		}
	}
	for sid, phone := range ov.sidToPhone {
		if phone == nil {
			delete(c.sidToPhone, sid)
		} else {
			c.sidToPhone[sid] = *phone
		}
	}
}
