package store

import "errors"

var (
	// ErrNotFound is returned when an update or delete names a row that
	// does not exist.
	ErrNotFound = errors.New("store: row not found")

	// ErrServiceIDImmutable is returned when an update would change a
	// recipient's service id from one non-nil value to another.
	ErrServiceIDImmutable = errors.New("store: service id is immutable once set")

	// ErrReadOnly is returned when a write is attempted through a read
	// transaction.
	ErrReadOnly = errors.New("store: write in read-only transaction")
)
