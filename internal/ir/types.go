package ir

import (
	"fmt"

	"github.com/google/uuid"
)

// ServiceID is the stable, immutable identifier of an account.
// The zero value is not a valid ServiceID.
type ServiceID uuid.UUID

// ParseServiceID parses the canonical string form of a ServiceID.
func ParseServiceID(s string) (ServiceID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ServiceID{}, fmt.Errorf("parse service id %q: %w", s, err)
	}
	if u == uuid.Nil {
		return ServiceID{}, fmt.Errorf("parse service id: nil uuid is not a service id")
	}
	return ServiceID(u), nil
}

// MustParseServiceID is like ParseServiceID but panics on error.
// Intended for tests and constants.
func MustParseServiceID(s string) ServiceID {
	id, err := ParseServiceID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// RandomServiceID returns a new random (v4) ServiceID.
func RandomServiceID() ServiceID {
	return ServiceID(uuid.New())
}

// String returns the lowercase hyphenated form, which is also the storage form.
func (s ServiceID) String() string {
	return uuid.UUID(s).String()
}

// IsZero reports whether s is the zero value.
func (s ServiceID) IsZero() bool {
	return uuid.UUID(s) == uuid.Nil
}

// Ptr returns a pointer to a copy of s.
func (s ServiceID) Ptr() *ServiceID {
	return &s
}

// MarshalText implements encoding.TextMarshaler.
func (s ServiceID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *ServiceID) UnmarshalText(b []byte) error {
	id, err := ParseServiceID(string(b))
	if err != nil {
		return err
	}
	*s = id
	return nil
}

// Recipient is one row of the recipient table.
//
// ID is assigned by the store on insert and never changes. UniqueID is the
// account id used to key sessions and sync entries. ServiceID may be set
// from nil exactly once. PhoneNumber may move between recipients.
type Recipient struct {
	ID          int64      `json:"id"`
	UniqueID    string     `json:"unique_id"`
	ServiceID   *ServiceID `json:"service_id,omitempty"`
	PhoneNumber *E164      `json:"phone_number,omitempty"`
}

// HasServiceID reports whether r carries exactly the given ServiceID.
func (r *Recipient) HasServiceID(id ServiceID) bool {
	return r.ServiceID != nil && *r.ServiceID == id
}

// HasPhoneNumber reports whether r carries exactly the given phone number.
func (r *Recipient) HasPhoneNumber(p E164) bool {
	return r.PhoneNumber != nil && *r.PhoneNumber == p
}

// String implements fmt.Stringer with the phone number redacted.
func (r *Recipient) String() string {
	sid := "nil"
	if r.ServiceID != nil {
		sid = r.ServiceID.String()
	}
	phone := "nil"
	if r.PhoneNumber != nil {
		phone = r.PhoneNumber.Redacted()
	}
	return fmt.Sprintf("Recipient{id=%d, unique_id=%s, service_id=%s, phone=%s}", r.ID, r.UniqueID, sid, phone)
}

// LocalIdentifiers are the identifiers of the account running this client.
type LocalIdentifiers struct {
	ACI         ServiceID  `json:"aci"`
	PNI         *ServiceID `json:"pni,omitempty"`
	PhoneNumber E164       `json:"phone_number"`
}

// ContainsServiceID reports whether id is the local ACI or PNI.
func (l LocalIdentifiers) ContainsServiceID(id ServiceID) bool {
	if l.ACI == id {
		return true
	}
	return l.PNI != nil && *l.PNI == id
}

// ContainsPhoneNumber reports whether p is the local phone number.
func (l LocalIdentifiers) ContainsPhoneNumber(p E164) bool {
	return l.PhoneNumber == p
}

// MergedRecipient describes an association that was just learned.
// Observers receive it exactly once per learned association.
type MergedRecipient struct {
	ServiceID        ServiceID  `json:"service_id"`
	OldPhoneNumber   *E164      `json:"old_phone_number,omitempty"`
	NewPhoneNumber   E164       `json:"new_phone_number"`
	IsLocalRecipient bool       `json:"is_local_recipient"`
	Recipient        *Recipient `json:"recipient"`
}

// PhoneNumberChanged reports whether the event moved the identity from one
// known phone number to a different one.
func (m MergedRecipient) PhoneNumberChanged() bool {
	return m.OldPhoneNumber != nil && *m.OldPhoneNumber != m.NewPhoneNumber
}
