package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// Profiles stores user profiles keyed by service id and/or phone number.
type Profiles struct{}

const profileColumns = `id, service_id, phone_number, given_name, family_name`

// ByServiceID returns the profile keyed by id, or nil.
func (Profiles) ByServiceID(ctx context.Context, tx *Tx, id ir.ServiceID) (*ir.Profile, error) {
	row := tx.queryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE service_id = ?`, id.String())
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("profile by service id: %w", err)
	}
	return p, nil
}

// ByPhoneNumber returns the profile keyed by phone, or nil.
func (Profiles) ByPhoneNumber(ctx context.Context, tx *Tx, phone ir.E164) (*ir.Profile, error) {
	row := tx.queryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE phone_number = ?`, phone.String())
	p, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("profile by phone number: %w", err)
	}
	return p, nil
}

// Insert writes p and sets p.ID.
func (Profiles) Insert(ctx context.Context, tx *Tx, p *ir.Profile) error {
	res, err := tx.exec(ctx, `
		INSERT INTO profiles (service_id, phone_number, given_name, family_name)
		VALUES (?, ?, ?, ?)
	`, serviceIDArg(p.ServiceID), phoneArg(p.PhoneNumber), p.GivenName, p.FamilyName)
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert profile: last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// UpdateKeys persists p's service id and phone number.
func (Profiles) UpdateKeys(ctx context.Context, tx *Tx, p *ir.Profile) error {
	res, err := tx.exec(ctx, `
		UPDATE profiles SET service_id = ?, phone_number = ? WHERE id = ?
	`, serviceIDArg(p.ServiceID), phoneArg(p.PhoneNumber), p.ID)
	if err != nil {
		return fmt.Errorf("update profile %d: %w", p.ID, err)
	}
	return requireAffected(res, "update profile", p.ID)
}

// Delete removes p.
func (Profiles) Delete(ctx context.Context, tx *Tx, p *ir.Profile) error {
	res, err := tx.exec(ctx, `DELETE FROM profiles WHERE id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("delete profile %d: %w", p.ID, err)
	}
	return requireAffected(res, "delete profile", p.ID)
}

// List returns every profile ordered by id.
func (Profiles) List(ctx context.Context, tx *Tx) ([]*ir.Profile, error) {
	rows, err := tx.query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	profiles := []*ir.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return profiles, nil
}

func scanProfile(row rowScanner) (*ir.Profile, error) {
	var (
		p     ir.Profile
		sid   sql.NullString
		phone sql.NullString
	)
	if err := row.Scan(&p.ID, &sid, &phone, &p.GivenName, &p.FamilyName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	id, err := scanServiceID(sid)
	if err != nil {
		return nil, err
	}
	p.ServiceID = id
	p.PhoneNumber = scanPhone(phone)
	return &p, nil
}

// requireAffected turns a zero-row update or delete into ErrNotFound.
func requireAffected(res sql.Result, op string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %d: rows affected: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", op, id, ErrNotFound)
	}
	return nil
}
