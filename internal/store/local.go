package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// LocalAccount persists the identifiers of the account running this client.
type LocalAccount struct{}

// Get returns the stored local identifiers, or nil if none were set.
func (LocalAccount) Get(ctx context.Context, tx *Tx) (*ir.LocalIdentifiers, error) {
	var (
		aci   string
		pni   sql.NullString
		phone string
	)
	err := tx.queryRow(ctx, `SELECT aci, pni, phone_number FROM local_account WHERE id = 1`).Scan(&aci, &pni, &phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get local identifiers: %w", err)
	}

	id, err := ir.ParseServiceID(aci)
	if err != nil {
		return nil, fmt.Errorf("get local identifiers: %w", err)
	}
	pniID, err := scanServiceID(pni)
	if err != nil {
		return nil, fmt.Errorf("get local identifiers: %w", err)
	}
	return &ir.LocalIdentifiers{ACI: id, PNI: pniID, PhoneNumber: ir.E164(phone)}, nil
}

// Set replaces the stored local identifiers.
func (LocalAccount) Set(ctx context.Context, tx *Tx, l ir.LocalIdentifiers) error {
	_, err := tx.exec(ctx, `
		INSERT INTO local_account (id, aci, pni, phone_number)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			aci = excluded.aci,
			pni = excluded.pni,
			phone_number = excluded.phone_number
	`, l.ACI.String(), serviceIDArg(l.PNI), l.PhoneNumber.String())
	if err != nil {
		return fmt.Errorf("set local identifiers: %w", err)
	}
	return nil
}
