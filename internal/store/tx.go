package store

import (
	"context"
	"database/sql"
)

// Tx is an open transaction. It is only valid inside the function passed to
// WithWriteTransaction or WithReadTransaction and must not be retained.
//
// Tx is not safe for concurrent use.
type Tx struct {
	sqlTx       *sql.Tx
	readOnly    bool
	afterCommit []func()
	scratch     map[any]any
}

func newTx(sqlTx *sql.Tx, readOnly bool) *Tx {
	return &Tx{sqlTx: sqlTx, readOnly: readOnly}
}

// ReadOnly reports whether tx was opened by WithReadTransaction.
func (t *Tx) ReadOnly() bool {
	return t.readOnly
}

// AfterCommit registers fn to run after the transaction commits.
// Hooks never run for rolled-back or read-only transactions.
func (t *Tx) AfterCommit(fn func()) {
	t.afterCommit = append(t.afterCommit, fn)
}

// Scratch returns per-transaction state stored under key, creating it with
// init on first use. Keys should be unexported pointer or struct values so
// unrelated packages cannot collide.
func (t *Tx) Scratch(key any, init func() any) any {
	if t.scratch == nil {
		t.scratch = make(map[any]any)
	}
	v, ok := t.scratch[key]
	if !ok {
		v = init()
		t.scratch[key] = v
	}
	return v
}

// Peek returns the scratch state stored under key without creating it.
func (t *Tx) Peek(key any) (any, bool) {
	v, ok := t.scratch[key]
	return v, ok
}

func (t *Tx) runAfterCommit() {
	if t.readOnly {
		return
	}
	for _, fn := range t.afterCommit {
		fn()
	}
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if t.readOnly {
		return nil, ErrReadOnly
	}
	return t.sqlTx.ExecContext(ctx, query, args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.sqlTx.QueryContext(ctx, query, args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.sqlTx.QueryRowContext(ctx, query, args...)
}
