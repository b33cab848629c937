// Package app is the composition root: it builds the merge engine from a
// store, the address cache and the ordered observer chain, and hands the
// result to callers. Nothing else constructs an engine.Merger.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/rmerge/internal/engine"
	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/observers"
	"github.com/roach88/rmerge/internal/store"
)

// Source is the provenance of an observed association.
type Source string

const (
	SourceLocal        Source = "local"
	SourceLinkedDevice Source = "linked-device"
	SourceDirectory    Source = "directory"
	SourceSender       Source = "sender"
)

// ParseSource parses a Source name.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceLocal, SourceLinkedDevice, SourceDirectory, SourceSender:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown source %q (expected local, linked-device, directory or sender)", s)
	}
}

// ErrPhoneRequired is returned when a source that always carries a phone
// number is merged without one.
var ErrPhoneRequired = errors.New("phone number is required for this source")

// App holds the assembled merge engine.
type App struct {
	Store  *store.Store
	Cache  *observers.AddressCache
	Merger *engine.Merger

	logger *slog.Logger
}

type options struct {
	logger    *slog.Logger
	strict    bool
	ids       engine.IDGenerator
	orphanIDs engine.ServiceIDSource
	extra     []engine.Observer
}

// Option configures New.
type Option func(*options)

// WithLogger sets the logger for the app and the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStrictAssertions makes engine assertion failures panic.
func WithStrictAssertions(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithIDGenerator sets the recipient unique id generator.
func WithIDGenerator(ids engine.IDGenerator) Option {
	return func(o *options) { o.ids = ids }
}

// WithOrphanServiceIDs sets the service id source for orphaned records.
func WithOrphanServiceIDs(src engine.ServiceIDSource) Option {
	return func(o *options) { o.orphanIDs = src }
}

// WithExtraObservers appends observers after the canonical chain.
func WithExtraObservers(obs ...engine.Observer) Option {
	return func(o *options) { o.extra = append(o.extra, obs...) }
}

// New assembles the engine over st and warms the address cache.
func New(ctx context.Context, st *store.Store, opts ...Option) (*App, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	cache := observers.NewAddressCache()
	if err := st.WithReadTransaction(ctx, func(tx *store.Tx) error {
		return cache.Warm(ctx, tx)
	}); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	chain := append(observers.Build(cache, o.logger), o.extra...)

	mergerOpts := []engine.MergerOption{
		engine.WithLogger(o.logger),
		engine.WithStrictAssertions(o.strict),
		engine.WithMappingCleaner(cache),
	}
	if o.ids != nil {
		mergerOpts = append(mergerOpts, engine.WithIDGenerator(o.ids))
	}
	if o.orphanIDs != nil {
		mergerOpts = append(mergerOpts, engine.WithOrphanServiceIDs(o.orphanIDs))
	}

	m := engine.NewMerger(store.Recipients{}, store.Sessions{}, store.SyncQueue{}, chain, mergerOpts...)

	o.logger.Debug("merge engine assembled",
		"observers", len(chain),
		"cached_associations", cache.Len(),
	)
	return &App{Store: st, Cache: cache, Merger: m, logger: o.logger}, nil
}

// MergeRequest is one observed association.
type MergeRequest struct {
	Source    Source
	ServiceID ir.ServiceID
	PNI       *ir.ServiceID // SourceLocal only
	Phone     *ir.E164
}

// Merge applies req in its own write transaction and returns the
// canonical record after commit.
//
// A SourceLocal merge also records the identifiers as the local account.
func (a *App) Merge(ctx context.Context, req MergeRequest) (*ir.Recipient, error) {
	var out *ir.Recipient
	err := a.Store.WithWriteTransaction(ctx, func(tx *store.Tx) error {
		r, err := a.MergeInTx(ctx, tx, req)
		out = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// MergeInTx applies req inside tx, dispatching on the request's source.
func (a *App) MergeInTx(ctx context.Context, tx *store.Tx, req MergeRequest) (*ir.Recipient, error) {
	if req.Source == SourceLocal {
		if req.Phone == nil {
			return nil, fmt.Errorf("merge %s: %w", req.Source, ErrPhoneRequired)
		}
		r, err := a.Merger.ApplyMergeForLocalAccount(ctx, tx, req.ServiceID, req.PNI, *req.Phone)
		if err != nil {
			return nil, err
		}
		local := ir.LocalIdentifiers{ACI: req.ServiceID, PNI: req.PNI, PhoneNumber: *req.Phone}
		if err := (store.LocalAccount{}).Set(ctx, tx, local); err != nil {
			return nil, fmt.Errorf("merge %s: %w", req.Source, err)
		}
		return r, nil
	}

	local, err := a.LocalIdentifiers(ctx, tx)
	if err != nil {
		return nil, err
	}

	switch req.Source {
	case SourceLinkedDevice:
		return a.Merger.ApplyMergeFromLinkedDevice(ctx, tx, local, req.ServiceID, req.Phone)
	case SourceDirectory:
		if req.Phone == nil {
			return nil, fmt.Errorf("merge %s: %w", req.Source, ErrPhoneRequired)
		}
		return a.Merger.ApplyMergeFromDirectoryDiscovery(ctx, tx, local, req.ServiceID, *req.Phone)
	case SourceSender:
		return a.Merger.ApplyMergeFromAuthenticatedSender(ctx, tx, local, req.ServiceID, req.Phone)
	default:
		return nil, fmt.Errorf("merge: unknown source %q", req.Source)
	}
}

// LocalIdentifiers returns the stored local account identifiers, or the
// zero value (which matches nothing) if none are stored.
func (a *App) LocalIdentifiers(ctx context.Context, tx *store.Tx) (ir.LocalIdentifiers, error) {
	l, err := store.LocalAccount{}.Get(ctx, tx)
	if err != nil {
		return ir.LocalIdentifiers{}, fmt.Errorf("load local identifiers: %w", err)
	}
	if l == nil {
		return ir.LocalIdentifiers{}, nil
	}
	return *l, nil
}
