package engine

import (
	"context"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// Fetcher gets or creates recipients by service id alone. It never merges.
type Fetcher struct {
	recipients RecipientStore
	ids        IDGenerator
}

// NewFetcher creates a Fetcher. A nil ids uses UUIDv7Generator.
func NewFetcher(recipients RecipientStore, ids IDGenerator) *Fetcher {
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Fetcher{recipients: recipients, ids: ids}
}

// FetchOrCreate returns the record holding id, inserting a record with no
// phone number if there is none.
func (f *Fetcher) FetchOrCreate(ctx context.Context, tx *store.Tx, id ir.ServiceID) (*ir.Recipient, error) {
	r, err := f.recipients.FetchByServiceID(ctx, tx, id)
	if err != nil {
		return nil, newStoreError("fetch or create: fetch", id, "", err)
	}
	if r != nil {
		return r, nil
	}

	r = &ir.Recipient{UniqueID: f.ids.Generate(), ServiceID: id.Ptr()}
	if err := f.recipients.Insert(ctx, tx, r); err != nil {
		return nil, newStoreError("fetch or create: insert", id, "", err)
	}
	return r, nil
}
