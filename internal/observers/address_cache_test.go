package observers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmerge/internal/store"
)

func TestAddressCache_Warm(t *testing.T) {
	c := newChain(t)
	c.seed(t, "a", sidX.Ptr(), phoneP.Ptr())
	c.seed(t, "b", sidY.Ptr(), nil)
	c.seed(t, "c", nil, phoneQ.Ptr())

	sid, ok := c.cache.ServiceID(nil, phoneP)
	require.True(t, ok)
	assert.Equal(t, sidX, sid)

	phone, ok := c.cache.PhoneNumber(nil, sidX)
	require.True(t, ok)
	assert.Equal(t, phoneP, phone)

	_, ok = c.cache.ServiceID(nil, phoneQ)
	assert.False(t, ok, "half-known recipients are not cached")
	assert.Equal(t, 1, c.cache.Len())
}

func TestAddressCache_VisibleInsideTransactionThenCommitted(t *testing.T) {
	c := newChain(t)

	c.write(t, func(ctx context.Context, tx *store.Tx) error {
		_, err := c.merger.ApplyMergeFromDirectoryDiscovery(ctx, tx, local, sidX, phoneP)
		require.NoError(t, err)

		sid, ok := c.cache.ServiceID(tx, phoneP)
		assert.True(t, ok)
		assert.Equal(t, sidX, sid)

		_, ok = c.cache.ServiceID(nil, phoneP)
		assert.False(t, ok, "not visible outside the transaction before commit")
		return nil
	})

	sid, ok := c.cache.ServiceID(nil, phoneP)
	assert.True(t, ok)
	assert.Equal(t, sidX, sid)
}

func TestAddressCache_RollbackDiscardsChanges(t *testing.T) {
	c := newChain(t)
	c.seed(t, "a", sidX.Ptr(), phoneP.Ptr())

	err := c.store.WithWriteTransaction(context.Background(), func(tx *store.Tx) error {
		_, err := c.merger.ApplyMergeFromDirectoryDiscovery(context.Background(), tx, local, sidY, phoneP)
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)

	sid, ok := c.cache.ServiceID(nil, phoneP)
	require.True(t, ok)
	assert.Equal(t, sidX, sid)
	_, ok = c.cache.PhoneNumber(nil, sidY)
	assert.False(t, ok)
}

func TestAddressCache_NumberTransfer(t *testing.T) {
	c := newChain(t)
	c.seed(t, "a", sidX.Ptr(), phoneP.Ptr())
	c.seed(t, "b", sidY.Ptr(), phoneQ.Ptr())

	c.directory(t, sidY, phoneP)

	sid, ok := c.cache.ServiceID(nil, phoneP)
	require.True(t, ok)
	assert.Equal(t, sidY, sid)

	_, ok = c.cache.PhoneNumber(nil, sidX)
	assert.False(t, ok, "old owner lost the number")
	_, ok = c.cache.ServiceID(nil, phoneQ)
	assert.False(t, ok, "new owner's old number is released")
}

func TestAddressCache_MappingCleaner(t *testing.T) {
	c := newChain(t)
	c.seed(t, "a", sidX.Ptr(), phoneP.Ptr())
	c.seed(t, "b", sidY.Ptr(), phoneQ.Ptr())

	c.write(t, func(ctx context.Context, tx *store.Tx) error {
		require.NoError(t, c.cache.ClearPhoneNumberMappings(ctx, tx, phoneP))
		require.NoError(t, c.cache.ClearServiceIDMappings(ctx, tx, sidY))

		_, ok := c.cache.PhoneNumber(tx, sidX)
		assert.False(t, ok)
		_, ok = c.cache.ServiceID(tx, phoneQ)
		assert.False(t, ok)
		return nil
	})

	assert.Equal(t, 0, c.cache.Len())
}

func TestAddressCache_ReadOnlyLookupDoesNotCreateOverlay(t *testing.T) {
	c := newChain(t)
	c.seed(t, "a", sidX.Ptr(), phoneP.Ptr())

	c.read(t, func(ctx context.Context, tx *store.Tx) error {
		sid, ok := c.cache.ServiceID(tx, phoneP)
		assert.True(t, ok)
		assert.Equal(t, sidX, sid)
		_, exists := tx.Peek(overlayKey{c.cache})
		assert.False(t, exists)
		return nil
	})
}
