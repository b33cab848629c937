package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// serviceIDArg converts an optional ServiceID to a SQL argument (NULL if nil).
func serviceIDArg(id *ir.ServiceID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

// phoneArg converts an optional phone number to a SQL argument (NULL if nil).
func phoneArg(p *ir.E164) any {
	if p == nil {
		return nil
	}
	return p.String()
}

// scanServiceID parses a nullable service_id column.
func scanServiceID(ns sql.NullString) (*ir.ServiceID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := ir.ParseServiceID(ns.String)
	if err != nil {
		return nil, fmt.Errorf("scan service id: %w", err)
	}
	return &id, nil
}

// scanPhone converts a nullable phone_number column. Stored values are
// already normalized, so they are not re-parsed.
func scanPhone(ns sql.NullString) *ir.E164 {
	if !ns.Valid {
		return nil
	}
	p := ir.E164(ns.String)
	return &p
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
