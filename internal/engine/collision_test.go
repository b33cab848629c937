package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

func TestCollision_KeepsServiceIDRecordByDefault(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a", sidX.Ptr(), nil)
	b := f.seed(t, "b", nil, phoneP.Ptr())

	r := f.directory(t, sidX, phoneP)

	assert.Equal(t, a.ID, r.ID)
	assert.Equal(t, sidX, *r.ServiceID)
	assert.Equal(t, phoneP, *r.PhoneNumber)
	assert.Nil(t, f.byUniqueID(t, b.UniqueID), "loser is removed")
	assert.Len(t, f.all(t), 1)
	assert.Equal(t, []string{"did_learn"}, f.rec.kinds())
}

func TestCollision_KeepsPhoneRecordWithSession(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a", sidX.Ptr(), nil)
	b := f.seed(t, "b", nil, phoneP.Ptr())
	f.setSession(t, b.UniqueID)

	r := f.directory(t, sidX, phoneP)

	assert.Equal(t, b.ID, r.ID)
	assert.Equal(t, sidX, *r.ServiceID)
	assert.Equal(t, phoneP, *r.PhoneNumber)
	assert.Nil(t, f.byUniqueID(t, a.UniqueID), "loser is removed")
	assert.Len(t, f.all(t), 1)
	assert.Equal(t, []string{"b"}, f.pendingSync(t))
}

func TestCollision_BothSessionsKeepServiceIDRecord(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a", sidX.Ptr(), nil)
	b := f.seed(t, "b", nil, phoneP.Ptr())
	f.setSession(t, a.UniqueID)
	f.setSession(t, b.UniqueID)

	r := f.directory(t, sidX, phoneP)

	assert.Equal(t, a.ID, r.ID)
	assert.Len(t, f.all(t), 1)
}

func TestCollision_SessionOnOtherDeviceIgnored(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "a", sidX.Ptr(), nil)
	b := f.seed(t, "b", nil, phoneP.Ptr())
	err := f.store.WithWriteTransaction(context.Background(), func(tx *store.Tx) error {
		return store.Sessions{}.SetSession(context.Background(), tx, b.UniqueID, 2, true)
	})
	require.NoError(t, err)

	r := f.directory(t, sidX, phoneP)

	assert.Equal(t, a.ID, r.ID)
}

// sameRowStore reports one row for both lookups with contradictory
// contents, which no consistent store can do.
type sameRowStore struct {
	updated []*ir.Recipient
	removed []*ir.Recipient
}

func (s *sameRowStore) FetchByServiceID(ctx context.Context, tx *store.Tx, id ir.ServiceID) (*ir.Recipient, error) {
	return &ir.Recipient{ID: 1, UniqueID: "same", ServiceID: id.Ptr()}, nil
}

func (s *sameRowStore) FetchByPhoneNumber(ctx context.Context, tx *store.Tx, phone ir.E164) (*ir.Recipient, error) {
	return &ir.Recipient{ID: 1, UniqueID: "same", PhoneNumber: phone.Ptr()}, nil
}

func (s *sameRowStore) Insert(ctx context.Context, tx *store.Tx, r *ir.Recipient) error {
	return nil
}

func (s *sameRowStore) Update(ctx context.Context, tx *store.Tx, r *ir.Recipient) error {
	s.updated = append(s.updated, r)
	return nil
}

func (s *sameRowStore) Remove(ctx context.Context, tx *store.Tx, r *ir.Recipient) error {
	s.removed = append(s.removed, r)
	return nil
}

type noSessions struct{}

func (noSessions) HasActiveSession(ctx context.Context, tx *store.Tx, uid string, deviceID uint32) (bool, error) {
	return false, nil
}

type discardQueue struct{}

func (discardQueue) Enqueue(ctx context.Context, tx *store.Tx, uid string) error { return nil }

func TestCollision_SameRowPanicsWhenStrict(t *testing.T) {
	m := NewMerger(&sameRowStore{}, noSessions{}, discardQueue{}, nil,
		WithLogger(quietLogger()),
		WithStrictAssertions(true),
	)

	defer func() {
		v := recover()
		require.NotNil(t, v, "expected panic")
		err, ok := v.(*MergeError)
		require.True(t, ok)
		assert.Equal(t, ErrCodeInvariantViolation, err.Code)
	}()
	_, _ = m.ApplyMergeFromDirectoryDiscovery(context.Background(), nil, localIDs, sidX, phoneP)
}

func TestCollision_SameRowDegradesToServiceIDRecord(t *testing.T) {
	rs := &sameRowStore{}
	m := NewMerger(rs, noSessions{}, discardQueue{}, nil, WithLogger(quietLogger()))

	r, err := m.ApplyMergeFromDirectoryDiscovery(context.Background(), nil, localIDs, sidX, phoneP)

	require.NoError(t, err)
	assert.Equal(t, sidX, *r.ServiceID)
	assert.Equal(t, phoneP, *r.PhoneNumber)
	assert.Empty(t, rs.removed, "nothing is deleted")
	require.Len(t, rs.updated, 1)
	assert.Same(t, r, rs.updated[0])
}
