package engine

import (
	"context"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// RecipientStore is the persistent recipient table.
// store.Recipients is the production implementation.
//
// Fetch methods return nil, nil when no record matches.
type RecipientStore interface {
	FetchByServiceID(ctx context.Context, tx *store.Tx, id ir.ServiceID) (*ir.Recipient, error)
	FetchByPhoneNumber(ctx context.Context, tx *store.Tx, phone ir.E164) (*ir.Recipient, error)
	Insert(ctx context.Context, tx *store.Tx, r *ir.Recipient) error
	Update(ctx context.Context, tx *store.Tx, r *ir.Recipient) error
	Remove(ctx context.Context, tx *store.Tx, r *ir.Recipient) error
}

// SessionOracle reports whether a secure session exists with a device of
// a recipient. It is consulted only to break collision ties.
type SessionOracle interface {
	HasActiveSession(ctx context.Context, tx *store.Tx, recipientUniqueID string, deviceID uint32) (bool, error)
}

// SyncQueue marks recipients pending for storage sync. Enqueue must be
// idempotent and transactional; delivery happens elsewhere.
type SyncQueue interface {
	Enqueue(ctx context.Context, tx *store.Tx, recipientUniqueID string) error
}

// MappingCleaner drops external mappings keyed by an identifier before the
// engine hands that identifier to a different record.
type MappingCleaner interface {
	ClearPhoneNumberMappings(ctx context.Context, tx *store.Tx, phone ir.E164) error
	ClearServiceIDMappings(ctx context.Context, tx *store.Tx, id ir.ServiceID) error
}

// canonicalDeviceID is the device whose session decides collisions.
const canonicalDeviceID = store.PrimaryDeviceID
