// Package engine implements the recipient merge engine.
//
// The engine reconciles observations of (service id, phone number) pairs
// into exactly one recipient record per identity. Observations arrive
// through four entry points that differ only in how far the source is
// trusted:
//
//   - ApplyMergeForLocalAccount: registration and number change of the
//     local account. The only path allowed to move the local account's own
//     identifiers.
//   - ApplyMergeFromLinkedDevice: reports from another device of the same
//     account.
//   - ApplyMergeFromDirectoryDiscovery: directory lookups.
//   - ApplyMergeFromAuthenticatedSender: senders of authenticated messages.
//
// ARCHITECTURE:
//
// Single Transaction:
// Every entry point runs inside a write transaction opened by the caller
// (store.Store.WithWriteTransaction). The engine never opens or commits a
// transaction itself and performs no locking; the store's single writer
// serializes merges that touch overlapping identifiers.
//
// Merge Flow:
//  1. Fetch A by service id and B by phone number
//  2. Return A unchanged if it already holds the phone number
//  3. Tell observers the association held by B is about to break
//  4. Resolve the winner (see mergeHighTrust and mergeRecipients)
//  5. Persist the winner and mark it pending for storage sync
//  6. Tell observers, in registration order, what was learned
//
// Any error aborts the merge. The caller returns it from the transaction
// body so nothing the merge wrote is committed.
//
// ORDERING:
//
// The store enforces unique service ids and phone numbers on every
// statement. A phone number is always detached from its old record before
// it is attached to the new one, and a collision loser is removed before
// the winner is persisted.
package engine
