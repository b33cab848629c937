package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// Merger applies identifier merges. Build one per process with NewMerger
// and share it; it holds no per-merge state.
type Merger struct {
	recipients RecipientStore
	sessions   SessionOracle
	syncQueue  SyncQueue
	observers  []Observer // Registration order is notification order
	cleaner    MappingCleaner
	fetcher    *Fetcher
	ids        IDGenerator
	orphanIDs  ServiceIDSource
	logger     *slog.Logger
	strict     bool
}

// MergerOption allows configuration of merger parameters.
type MergerOption func(*Merger)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) MergerOption {
	return func(m *Merger) {
		m.logger = logger
	}
}

// WithStrictAssertions makes a violated internal assertion panic instead
// of being logged and degraded. Enable in tests.
func WithStrictAssertions(strict bool) MergerOption {
	return func(m *Merger) {
		m.strict = strict
	}
}

// WithIDGenerator sets the generator for new recipients' unique ids.
// Default: UUIDv7Generator.
func WithIDGenerator(ids IDGenerator) MergerOption {
	return func(m *Merger) {
		m.ids = ids
	}
}

// WithMappingCleaner registers the cleaner for external mappings.
// Without one, no external mappings are cleared.
func WithMappingCleaner(c MappingCleaner) MergerOption {
	return func(m *Merger) {
		m.cleaner = c
	}
}

// WithOrphanServiceIDs sets the source of service ids given to records
// that would otherwise be left with no identifiers.
// Default: ir.RandomServiceID.
func WithOrphanServiceIDs(src ServiceIDSource) MergerOption {
	return func(m *Merger) {
		m.orphanIDs = src
	}
}

// NewMerger creates a Merger.
//
// The observers slice is copied; its order is the notification order and
// never changes after construction.
func NewMerger(
	recipients RecipientStore,
	sessions SessionOracle,
	syncQueue SyncQueue,
	observers []Observer,
	opts ...MergerOption,
) *Merger {
	var observersCopy []Observer
	if observers != nil {
		observersCopy = make([]Observer, len(observers))
		copy(observersCopy, observers)
	}

	m := &Merger{
		recipients: recipients,
		sessions:   sessions,
		syncQueue:  syncQueue,
		observers:  observersCopy,
		ids:        UUIDv7Generator{},
		orphanIDs:  ir.RandomServiceID,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.fetcher = NewFetcher(recipients, m.ids)
	return m
}

// Fetcher returns the fetcher used for single-identifier lookups.
func (m *Merger) Fetcher() *Fetcher {
	return m.fetcher
}

// ApplyMergeForLocalAccount merges the local account's own identifiers.
// Call it only when registering, linking or changing number: it always
// runs the full merge.
//
// pni is accepted for completeness. Only aci is associated with phone.
func (m *Merger) ApplyMergeForLocalAccount(
	ctx context.Context,
	tx *store.Tx,
	aci ir.ServiceID,
	pni *ir.ServiceID,
	phone ir.E164,
) (*ir.Recipient, error) {
	if pni != nil {
		m.logger.Debug("local account merge ignores pni", "pni", pni.String())
	}
	return m.mergeAlways(ctx, tx, aci, phone, true)
}

// ApplyMergeFromLinkedDevice merges an association reported by another
// device of the local account.
func (m *Merger) ApplyMergeFromLinkedDevice(
	ctx context.Context,
	tx *store.Tx,
	local ir.LocalIdentifiers,
	serviceID ir.ServiceID,
	phone *ir.E164,
) (*ir.Recipient, error) {
	if phone == nil {
		return m.fetcher.FetchOrCreate(ctx, tx, serviceID)
	}
	return m.mergeIfNotLocalIdentifier(ctx, tx, local, serviceID, *phone)
}

// ApplyMergeFromDirectoryDiscovery merges an association returned by a
// directory lookup.
func (m *Merger) ApplyMergeFromDirectoryDiscovery(
	ctx context.Context,
	tx *store.Tx,
	local ir.LocalIdentifiers,
	serviceID ir.ServiceID,
	phone ir.E164,
) (*ir.Recipient, error) {
	return m.mergeIfNotLocalIdentifier(ctx, tx, local, serviceID, phone)
}

// ApplyMergeFromAuthenticatedSender merges an association carried by an
// authenticated message. Senders that hide their phone number only get
// a fetch-or-create.
func (m *Merger) ApplyMergeFromAuthenticatedSender(
	ctx context.Context,
	tx *store.Tx,
	local ir.LocalIdentifiers,
	serviceID ir.ServiceID,
	phone *ir.E164,
) (*ir.Recipient, error) {
	if phone == nil {
		return m.fetcher.FetchOrCreate(ctx, tx, serviceID)
	}
	return m.mergeIfNotLocalIdentifier(ctx, tx, local, serviceID, *phone)
}

// mergeIfNotLocalIdentifier refuses to let anything but the local account
// path re-associate the local account's identifiers. Instead it returns
// whichever record exists for serviceID.
func (m *Merger) mergeIfNotLocalIdentifier(
	ctx context.Context,
	tx *store.Tx,
	local ir.LocalIdentifiers,
	serviceID ir.ServiceID,
	phone ir.E164,
) (*ir.Recipient, error) {
	if local.ContainsServiceID(serviceID) || local.ContainsPhoneNumber(phone) {
		m.logger.Debug("skipping merge of local identifier",
			"service_id", serviceID.String(),
			"phone", phone.Redacted(),
		)
		return m.fetcher.FetchOrCreate(ctx, tx, serviceID)
	}
	return m.mergeAlways(ctx, tx, serviceID, phone, false)
}
