// Package store provides SQLite-backed transactional storage for recipients
// and for every table a merge observer maintains.
//
// The store holds:
//   - Recipients: one row per known account, keyed by row id and unique id,
//     queryable by service id or phone number
//   - Sessions: secure-session presence per (recipient, device)
//   - Profiles, Group Members, Notices: state migrated by merge observers
//   - Pending Sync: recipients waiting to be pushed to remote storage
//   - Local Account: the identifiers of the account running this client
//
// # Invariants
//
// UNIQUE constraints on recipients.service_id and recipients.phone_number
// enforce that no two rows share either identifier at any statement
// boundary, not only at commit. Callers that move a phone number must detach
// it from the old row before attaching it to the new one.
//
// # Transactions
//
// All reads and writes go through WithWriteTransaction or
// WithReadTransaction. The pool holds a single connection, so write
// transactions are serialized: at most one writer exists at a time and a
// transaction never observes another transaction's uncommitted writes.
// Work registered with Tx.AfterCommit runs only after a successful commit.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
