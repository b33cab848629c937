package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

var (
	sidX     = ir.MustParseServiceID("00000000-0000-4000-8000-00000000000a")
	sidY     = ir.MustParseServiceID("00000000-0000-4000-8000-00000000000b")
	sidLocal = ir.MustParseServiceID("00000000-0000-4000-8000-0000000000ff")
	sidPNI   = ir.MustParseServiceID("00000000-0000-4000-8000-0000000000fe")
	sidOrph  = ir.MustParseServiceID("00000000-0000-4000-8000-0000000000ee")

	phoneP     = ir.MustParseE164("+15551230001")
	phoneQ     = ir.MustParseE164("+15551230002")
	phoneLocal = ir.MustParseE164("+15550000000")

	localIDs = ir.LocalIdentifiers{ACI: sidLocal, PNI: sidPNI.Ptr(), PhoneNumber: phoneLocal}
)

var errObserver = errors.New("observer refused")

// recordedEvent is one observer callback.
type recordedEvent struct {
	Kind      string
	ServiceID ir.ServiceID
	Phone     ir.E164
	Old       *ir.E164
	Local     bool
	UniqueID  string
}

// recordingObserver records callbacks and optionally fails one hook.
type recordingObserver struct {
	name   string
	order  *[]string
	events []recordedEvent
	failOn string
}

func (o *recordingObserver) Name() string { return o.name }

func (o *recordingObserver) WillBreakAssociation(ctx context.Context, tx *store.Tx, sid ir.ServiceID, phone ir.E164) error {
	if o.order != nil {
		*o.order = append(*o.order, o.name+":will_break")
	}
	if o.failOn == "will_break" {
		return errObserver
	}
	o.events = append(o.events, recordedEvent{Kind: "will_break", ServiceID: sid, Phone: phone})
	return nil
}

func (o *recordingObserver) DidLearnAssociation(ctx context.Context, tx *store.Tx, m ir.MergedRecipient) error {
	if o.order != nil {
		*o.order = append(*o.order, o.name+":did_learn")
	}
	if o.failOn == "did_learn" {
		return errObserver
	}
	o.events = append(o.events, recordedEvent{
		Kind:      "did_learn",
		ServiceID: m.ServiceID,
		Phone:     m.NewPhoneNumber,
		Old:       m.OldPhoneNumber,
		Local:     m.IsLocalRecipient,
		UniqueID:  m.Recipient.UniqueID,
	})
	return nil
}

func (o *recordingObserver) kinds() []string {
	kinds := []string{}
	for _, e := range o.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// recordingCleaner records mapping cleanups.
type recordingCleaner struct {
	calls []string
}

func (c *recordingCleaner) ClearPhoneNumberMappings(ctx context.Context, tx *store.Tx, phone ir.E164) error {
	c.calls = append(c.calls, "phone:"+phone.String())
	return nil
}

func (c *recordingCleaner) ClearServiceIDMappings(ctx context.Context, tx *store.Tx, id ir.ServiceID) error {
	c.calls = append(c.calls, "service_id:"+id.String())
	return nil
}

type fixture struct {
	store   *store.Store
	merger  *Merger
	rec     *recordingObserver
	cleaner *recordingCleaner
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedIDs(n int) *FixedGenerator {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("new-%d", i+1)
	}
	return NewFixedGenerator(ids...)
}

// newFixture builds a merger over a fresh store with one recording
// observer followed by extra.
func newFixture(t *testing.T, extra ...Observer) *fixture {
	t.Helper()
	f := &fixture{
		store:   setupTestStore(t),
		rec:     &recordingObserver{name: "recorder"},
		cleaner: &recordingCleaner{},
	}
	observers := append([]Observer{f.rec}, extra...)
	f.merger = NewMerger(store.Recipients{}, store.Sessions{}, store.SyncQueue{}, observers,
		WithLogger(quietLogger()),
		WithStrictAssertions(true),
		WithIDGenerator(fixedIDs(20)),
		WithMappingCleaner(f.cleaner),
		WithOrphanServiceIDs(func() ir.ServiceID { return sidOrph }),
	)
	return f
}

func (f *fixture) seed(t *testing.T, uniqueID string, sid *ir.ServiceID, phone *ir.E164) *ir.Recipient {
	t.Helper()
	r := &ir.Recipient{UniqueID: uniqueID, ServiceID: sid, PhoneNumber: phone}
	err := f.store.WithWriteTransaction(context.Background(), func(tx *store.Tx) error {
		return store.Recipients{}.Insert(context.Background(), tx, r)
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) setSession(t *testing.T, uniqueID string) {
	t.Helper()
	err := f.store.WithWriteTransaction(context.Background(), func(tx *store.Tx) error {
		return store.Sessions{}.SetSession(context.Background(), tx, uniqueID, store.PrimaryDeviceID, true)
	})
	require.NoError(t, err)
}

// run executes fn in its own write transaction.
func (f *fixture) run(fn func(ctx context.Context, tx *store.Tx) (*ir.Recipient, error)) (*ir.Recipient, error) {
	var out *ir.Recipient
	ctx := context.Background()
	err := f.store.WithWriteTransaction(ctx, func(tx *store.Tx) error {
		r, err := fn(ctx, tx)
		out = r
		return err
	})
	return out, err
}

func (f *fixture) directory(t *testing.T, sid ir.ServiceID, phone ir.E164) *ir.Recipient {
	t.Helper()
	r, err := f.run(func(ctx context.Context, tx *store.Tx) (*ir.Recipient, error) {
		return f.merger.ApplyMergeFromDirectoryDiscovery(ctx, tx, localIDs, sid, phone)
	})
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

func (f *fixture) all(t *testing.T) []*ir.Recipient {
	t.Helper()
	var out []*ir.Recipient
	err := f.store.WithReadTransaction(context.Background(), func(tx *store.Tx) error {
		var err error
		out, err = store.Recipients{}.List(context.Background(), tx)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) byUniqueID(t *testing.T, uniqueID string) *ir.Recipient {
	t.Helper()
	var out *ir.Recipient
	err := f.store.WithReadTransaction(context.Background(), func(tx *store.Tx) error {
		var err error
		out, err = store.Recipients{}.FetchByUniqueID(context.Background(), tx, uniqueID)
		return err
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) pendingSync(t *testing.T) []string {
	t.Helper()
	uids := []string{}
	err := f.store.WithReadTransaction(context.Background(), func(tx *store.Tx) error {
		entries, err := store.SyncQueue{}.Pending(context.Background(), tx, 0)
		for _, e := range entries {
			uids = append(uids, e.RecipientUniqueID)
		}
		return err
	})
	require.NoError(t, err)
	return uids
}

// requireUnique asserts no two records share a service id or phone number.
func requireUnique(t *testing.T, recipients []*ir.Recipient) {
	t.Helper()
	sids := map[ir.ServiceID]string{}
	phones := map[ir.E164]string{}
	for _, r := range recipients {
		require.True(t, r.ServiceID != nil || r.PhoneNumber != nil, "record %s has no identifiers", r.UniqueID)
		if r.ServiceID != nil {
			prev, dup := sids[*r.ServiceID]
			require.False(t, dup, "service id shared by %s and %s", prev, r.UniqueID)
			sids[*r.ServiceID] = r.UniqueID
		}
		if r.PhoneNumber != nil {
			prev, dup := phones[*r.PhoneNumber]
			require.False(t, dup, "phone number shared by %s and %s", prev, r.UniqueID)
			phones[*r.PhoneNumber] = r.UniqueID
		}
	}
}
