package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// Recipients is the recipient data store. It is stateless; every method
// operates on the transaction it is given.
type Recipients struct{}

const recipientColumns = `id, unique_id, service_id, phone_number`

// FetchByServiceID returns the recipient holding id, or nil if none does.
func (Recipients) FetchByServiceID(ctx context.Context, tx *Tx, id ir.ServiceID) (*ir.Recipient, error) {
	row := tx.queryRow(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE service_id = ?`, id.String())
	r, err := scanRecipient(row)
	if err != nil {
		return nil, fmt.Errorf("fetch recipient by service id: %w", err)
	}
	return r, nil
}

// FetchByPhoneNumber returns the recipient holding p, or nil if none does.
func (Recipients) FetchByPhoneNumber(ctx context.Context, tx *Tx, p ir.E164) (*ir.Recipient, error) {
	row := tx.queryRow(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE phone_number = ?`, p.String())
	r, err := scanRecipient(row)
	if err != nil {
		return nil, fmt.Errorf("fetch recipient by phone number: %w", err)
	}
	return r, nil
}

// FetchByUniqueID returns the recipient with the given unique id, or nil.
func (Recipients) FetchByUniqueID(ctx context.Context, tx *Tx, uniqueID string) (*ir.Recipient, error) {
	row := tx.queryRow(ctx, `SELECT `+recipientColumns+` FROM recipients WHERE unique_id = ?`, uniqueID)
	r, err := scanRecipient(row)
	if err != nil {
		return nil, fmt.Errorf("fetch recipient by unique id: %w", err)
	}
	return r, nil
}

// Insert writes a new recipient and sets r.ID to the assigned row id.
// r.UniqueID must be set by the caller.
func (Recipients) Insert(ctx context.Context, tx *Tx, r *ir.Recipient) error {
	if r.UniqueID == "" {
		return fmt.Errorf("insert recipient: unique id is required")
	}
	res, err := tx.exec(ctx, `
		INSERT INTO recipients (unique_id, service_id, phone_number)
		VALUES (?, ?, ?)
	`, r.UniqueID, serviceIDArg(r.ServiceID), phoneArg(r.PhoneNumber))
	if err != nil {
		return fmt.Errorf("insert recipient: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert recipient: last insert id: %w", err)
	}
	r.ID = id
	return nil
}

// Update persists r's service id and phone number.
//
// The service id may go from NULL to a value, never from one value to
// another (ErrServiceIDImmutable). Updating a missing row is ErrNotFound.
func (Recipients) Update(ctx context.Context, tx *Tx, r *ir.Recipient) error {
	res, err := tx.exec(ctx, `
		UPDATE recipients
		SET service_id = ?, phone_number = ?
		WHERE id = ? AND (service_id IS NULL OR service_id = ?)
	`, serviceIDArg(r.ServiceID), phoneArg(r.PhoneNumber), r.ID, serviceIDArg(r.ServiceID))
	if err != nil {
		return fmt.Errorf("update recipient %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recipient %d: rows affected: %w", r.ID, err)
	}
	if n > 0 {
		return nil
	}

	// Distinguish a missing row from an attempted service id change.
	var exists int
	err = tx.queryRow(ctx, `SELECT COUNT(*) FROM recipients WHERE id = ?`, r.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("update recipient %d: %w", r.ID, err)
	}
	if exists == 0 {
		return fmt.Errorf("update recipient %d: %w", r.ID, ErrNotFound)
	}
	return fmt.Errorf("update recipient %d: %w", r.ID, ErrServiceIDImmutable)
}

// Remove deletes r. Removing a missing row is ErrNotFound.
func (Recipients) Remove(ctx context.Context, tx *Tx, r *ir.Recipient) error {
	res, err := tx.exec(ctx, `DELETE FROM recipients WHERE id = ?`, r.ID)
	if err != nil {
		return fmt.Errorf("remove recipient %d: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove recipient %d: rows affected: %w", r.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("remove recipient %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

// List returns every recipient ordered by row id.
// Returns an empty slice (not nil) when the table is empty.
func (Recipients) List(ctx context.Context, tx *Tx) ([]*ir.Recipient, error) {
	rows, err := tx.query(ctx, `SELECT `+recipientColumns+` FROM recipients ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	defer rows.Close()

	recipients := []*ir.Recipient{}
	for rows.Next() {
		r, err := scanRecipient(rows)
		if err != nil {
			return nil, fmt.Errorf("list recipients: %w", err)
		}
		recipients = append(recipients, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return recipients, nil
}

// scanRecipient scans one recipient row. Returns nil, nil for sql.ErrNoRows.
func scanRecipient(row rowScanner) (*ir.Recipient, error) {
	var (
		r     ir.Recipient
		sid   sql.NullString
		phone sql.NullString
	)
	if err := row.Scan(&r.ID, &r.UniqueID, &sid, &phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	id, err := scanServiceID(sid)
	if err != nil {
		return nil, err
	}
	r.ServiceID = id
	r.PhoneNumber = scanPhone(phone)
	return &r, nil
}
