package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rmerge/internal/ir"
)

var (
	sidX = ir.MustParseServiceID("00000000-0000-4000-8000-000000000001")
	sidY = ir.MustParseServiceID("00000000-0000-4000-8000-000000000002")

	phoneP = ir.MustParseE164("+15551230001")
	phoneQ = ir.MustParseE164("+15551230002")
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// write runs fn in a write transaction and fails the test on error.
func write(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx)) {
	t.Helper()
	ctx := context.Background()
	err := s.WithWriteTransaction(ctx, func(tx *Tx) error {
		fn(ctx, tx)
		return nil
	})
	require.NoError(t, err)
}

// read runs fn in a read transaction and fails the test on error.
func read(t *testing.T, s *Store, fn func(ctx context.Context, tx *Tx)) {
	t.Helper()
	ctx := context.Background()
	err := s.WithReadTransaction(ctx, func(tx *Tx) error {
		fn(ctx, tx)
		return nil
	})
	require.NoError(t, err)
}

// insertRecipient inserts a recipient with the given fields.
func insertRecipient(t *testing.T, s *Store, uniqueID string, sid *ir.ServiceID, phone *ir.E164) *ir.Recipient {
	t.Helper()
	r := &ir.Recipient{UniqueID: uniqueID, ServiceID: sid, PhoneNumber: phone}
	write(t, s, func(ctx context.Context, tx *Tx) {
		require.NoError(t, Recipients{}.Insert(ctx, tx, r))
	})
	return r
}
