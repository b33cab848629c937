package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// Notices stores user-visible "number changed" system messages.
type Notices struct{}

// Insert writes n and sets n.ID.
func (Notices) Insert(ctx context.Context, tx *Tx, n *ir.Notice) error {
	res, err := tx.exec(ctx, `
		INSERT INTO notices (thread, service_id, old_phone_number, new_phone_number)
		VALUES (?, ?, ?, ?)
	`, n.Thread, n.ServiceID.String(), phoneArg(n.OldPhoneNumber), n.NewPhoneNumber.String())
	if err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert notice: last insert id: %w", err)
	}
	n.ID = id
	return nil
}

// List returns the notices of thread in insertion order. An empty thread
// returns every notice.
func (Notices) List(ctx context.Context, tx *Tx, thread string) ([]*ir.Notice, error) {
	rows, err := tx.query(ctx, `
		SELECT id, thread, service_id, old_phone_number, new_phone_number
		FROM notices
		WHERE ? = '' OR thread = ?
		ORDER BY id ASC
	`, thread, thread)
	if err != nil {
		return nil, fmt.Errorf("list notices: %w", err)
	}
	defer rows.Close()

	notices := []*ir.Notice{}
	for rows.Next() {
		var (
			n        ir.Notice
			sid      string
			oldPhone sql.NullString
			newPhone string
		)
		if err := rows.Scan(&n.ID, &n.Thread, &sid, &oldPhone, &newPhone); err != nil {
			return nil, fmt.Errorf("list notices: %w", err)
		}
		id, err := ir.ParseServiceID(sid)
		if err != nil {
			return nil, fmt.Errorf("list notices: %w", err)
		}
		n.ServiceID = id
		n.OldPhoneNumber = scanPhone(oldPhone)
		n.NewPhoneNumber = ir.E164(newPhone)
		notices = append(notices, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notices: %w", err)
	}
	return notices, nil
}
