package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// Groups stores group membership entries.
type Groups struct{}

const memberColumns = `id, group_id, service_id, phone_number, state, role, added_by, joined_via_link`

// InsertMember writes m and sets m.ID.
func (Groups) InsertMember(ctx context.Context, tx *Tx, m *ir.GroupMember) error {
	res, err := tx.exec(ctx, `
		INSERT INTO group_members (group_id, service_id, phone_number, state, role, added_by, joined_via_link)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.GroupID, serviceIDArg(m.ServiceID), phoneArg(m.PhoneNumber),
		int(m.State), int(m.Role), serviceIDArg(m.AddedBy), boolInt(m.JoinedViaLink))
	if err != nil {
		return fmt.Errorf("insert group member: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert group member: last insert id: %w", err)
	}
	m.ID = id
	return nil
}

// UpdateMember persists every mutable column of m.
func (Groups) UpdateMember(ctx context.Context, tx *Tx, m *ir.GroupMember) error {
	res, err := tx.exec(ctx, `
		UPDATE group_members
		SET service_id = ?, phone_number = ?, state = ?, role = ?, added_by = ?, joined_via_link = ?
		WHERE id = ?
	`, serviceIDArg(m.ServiceID), phoneArg(m.PhoneNumber), int(m.State), int(m.Role),
		serviceIDArg(m.AddedBy), boolInt(m.JoinedViaLink), m.ID)
	if err != nil {
		return fmt.Errorf("update group member %d: %w", m.ID, err)
	}
	return requireAffected(res, "update group member", m.ID)
}

// DeleteMember removes m.
func (Groups) DeleteMember(ctx context.Context, tx *Tx, m *ir.GroupMember) error {
	res, err := tx.exec(ctx, `DELETE FROM group_members WHERE id = ?`, m.ID)
	if err != nil {
		return fmt.Errorf("delete group member %d: %w", m.ID, err)
	}
	return requireAffected(res, "delete group member", m.ID)
}

// PhoneKeyedMembers returns every entry keyed by phone, across all groups,
// ordered by id.
func (Groups) PhoneKeyedMembers(ctx context.Context, tx *Tx, phone ir.E164) ([]*ir.GroupMember, error) {
	return queryMembers(ctx, tx, `
		SELECT `+memberColumns+` FROM group_members
		WHERE phone_number = ?
		ORDER BY id ASC
	`, phone.String())
}

// MemberByServiceID returns the entry for id in groupID, or nil.
func (Groups) MemberByServiceID(ctx context.Context, tx *Tx, groupID string, id ir.ServiceID) (*ir.GroupMember, error) {
	row := tx.queryRow(ctx, `
		SELECT `+memberColumns+` FROM group_members
		WHERE group_id = ? AND service_id = ?
	`, groupID, id.String())
	m, err := scanMember(row)
	if err != nil {
		return nil, fmt.Errorf("member by service id: %w", err)
	}
	return m, nil
}

// GroupsWithFullMember returns the ids of groups in which id is a full
// member, in ascending order.
func (Groups) GroupsWithFullMember(ctx context.Context, tx *Tx, id ir.ServiceID) ([]string, error) {
	rows, err := tx.query(ctx, `
		SELECT group_id FROM group_members
		WHERE service_id = ? AND state = ?
		ORDER BY group_id ASC
	`, id.String(), int(ir.MemberFull))
	if err != nil {
		return nil, fmt.Errorf("groups with full member: %w", err)
	}
	defer rows.Close()

	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("groups with full member: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return groups, nil
}

// Members returns all entries of groupID ordered by id.
func (Groups) Members(ctx context.Context, tx *Tx, groupID string) ([]*ir.GroupMember, error) {
	return queryMembers(ctx, tx, `
		SELECT `+memberColumns+` FROM group_members
		WHERE group_id = ?
		ORDER BY id ASC
	`, groupID)
}

func queryMembers(ctx context.Context, tx *Tx, query string, args ...any) ([]*ir.GroupMember, error) {
	rows, err := tx.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	members := []*ir.GroupMember{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("query group members: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group members: %w", err)
	}
	return members, nil
}

func scanMember(row rowScanner) (*ir.GroupMember, error) {
	var (
		m       ir.GroupMember
		sid     sql.NullString
		phone   sql.NullString
		addedBy sql.NullString
		state   int
		role    int
		viaLink int
	)
	if err := row.Scan(&m.ID, &m.GroupID, &sid, &phone, &state, &role, &addedBy, &viaLink); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	id, err := scanServiceID(sid)
	if err != nil {
		return nil, err
	}
	by, err := scanServiceID(addedBy)
	if err != nil {
		return nil, err
	}
	m.ServiceID = id
	m.PhoneNumber = scanPhone(phone)
	m.State = ir.MemberState(state)
	m.Role = ir.MemberRole(role)
	m.AddedBy = by
	m.JoinedViaLink = viaLink != 0
	return &m, nil
}
