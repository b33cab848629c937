package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// OpenStore opens a file-backed store in t.TempDir and closes it when the
// test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "rmerge.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedRecipient inserts a recipient in its own write transaction.
func SeedRecipient(t testing.TB, s *store.Store, uniqueID string, sid *ir.ServiceID, phone *ir.E164) *ir.Recipient {
	t.Helper()
	r := &ir.Recipient{UniqueID: uniqueID, ServiceID: sid, PhoneNumber: phone}
	err := s.WithWriteTransaction(context.Background(), func(tx *store.Tx) error {
		return store.Recipients{}.Insert(context.Background(), tx, r)
	})
	if err != nil {
		t.Fatalf("seed recipient %s: %v", uniqueID, err)
	}
	return r
}

// Recipients lists every recipient after the last commit.
func Recipients(t testing.TB, s *store.Store) []*ir.Recipient {
	t.Helper()
	var out []*ir.Recipient
	err := s.WithReadTransaction(context.Background(), func(tx *store.Tx) error {
		var err error
		out, err = store.Recipients{}.List(context.Background(), tx)
		return err
	})
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	return out
}
