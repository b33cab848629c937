package observers

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rmerge/internal/engine"
	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
	"github.com/roach88/rmerge/internal/testutil"
)

var (
	sidX = ir.MustParseServiceID("00000000-0000-4000-8000-00000000000a")
	sidY = ir.MustParseServiceID("00000000-0000-4000-8000-00000000000b")
	sidZ = ir.MustParseServiceID("00000000-0000-4000-8000-00000000000c")

	phoneP = ir.MustParseE164("+15551230001")
	phoneQ = ir.MustParseE164("+15551230002")

	local = ir.LocalIdentifiers{
		ACI:         ir.MustParseServiceID("00000000-0000-4000-8000-0000000000ff"),
		PhoneNumber: ir.MustParseE164("+15550000000"),
	}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type chain struct {
	store  *store.Store
	cache  *AddressCache
	merger *engine.Merger
}

// newChain wires the canonical observers over a fresh store.
func newChain(t *testing.T) *chain {
	t.Helper()
	c := &chain{store: testutil.OpenStore(t), cache: NewAddressCache()}
	c.merger = newMerger(c.cache, Build(c.cache, quietLogger()))
	return c
}

func newMerger(cache *AddressCache, observers []engine.Observer) *engine.Merger {
	return engine.NewMerger(store.Recipients{}, store.Sessions{}, store.SyncQueue{}, observers,
		engine.WithLogger(quietLogger()),
		engine.WithStrictAssertions(true),
		engine.WithIDGenerator(testutil.NewSequentialIDs("new")),
		engine.WithMappingCleaner(cache),
		engine.WithOrphanServiceIDs(testutil.OrphanServiceIDs()),
	)
}

// write runs fn in a write transaction that must succeed.
func (c *chain) write(t *testing.T, fn func(ctx context.Context, tx *store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.store.WithWriteTransaction(ctx, func(tx *store.Tx) error {
		return fn(ctx, tx)
	}))
}

// read runs fn in a read transaction that must succeed.
func (c *chain) read(t *testing.T, fn func(ctx context.Context, tx *store.Tx) error) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.store.WithReadTransaction(ctx, func(tx *store.Tx) error {
		return fn(ctx, tx)
	}))
}

// seed inserts a recipient and warms the cache from the store.
func (c *chain) seed(t *testing.T, uniqueID string, sid *ir.ServiceID, phone *ir.E164) *ir.Recipient {
	t.Helper()
	r := testutil.SeedRecipient(t, c.store, uniqueID, sid, phone)
	c.read(t, func(ctx context.Context, tx *store.Tx) error {
		return c.cache.Warm(ctx, tx)
	})
	return r
}

func (c *chain) directory(t *testing.T, sid ir.ServiceID, phone ir.E164) *ir.Recipient {
	t.Helper()
	var out *ir.Recipient
	c.write(t, func(ctx context.Context, tx *store.Tx) error {
		r, err := c.merger.ApplyMergeFromDirectoryDiscovery(ctx, tx, local, sid, phone)
		out = r
		return err
	})
	return out
}
