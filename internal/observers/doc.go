// Package observers provides the merge observers that keep dependent data
// consistent when the engine moves a phone number between identities.
//
// Build returns them in the only supported order:
//
//  1. AddressCache: phone number <-> service id lookups. Later observers
//     resolve addresses through it, so it runs first.
//  2. ProfileMerger: moves profile keys with the association.
//  3. GroupMemberMigrator: rekeys phone-number group entries to the
//     service id.
//  4. NumberChangedNotices: "number changed" notices for contacts.
//  5. SyncNotifier: marks affected recipients pending for storage sync.
//
// All observers write through the merge's transaction; nothing they do is
// visible if the merge rolls back.
package observers

import (
	"log/slog"

	"github.com/roach88/rmerge/internal/engine"
)

// Build returns the canonical observer chain around cache.
func Build(cache *AddressCache, logger *slog.Logger) []engine.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return []engine.Observer{
		cache,
		NewProfileMerger(),
		NewGroupMemberMigrator(cache, logger),
		NewNumberChangedNotices(logger),
		NewSyncNotifier(),
	}
}
