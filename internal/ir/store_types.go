package ir

import "fmt"

// NOTE: These are rows of the tables that merge observers maintain. They
// use auto-increment IDs assigned by the store.

// Profile is a user profile keyed by ServiceID, phone number, or both.
type Profile struct {
	ID          int64      `json:"id"`
	ServiceID   *ServiceID `json:"service_id,omitempty"`
	PhoneNumber *E164      `json:"phone_number,omitempty"`
	GivenName   string     `json:"given_name"`
	FamilyName  string     `json:"family_name"`
}

// MemberState is the membership state of a group member.
type MemberState int

const (
	MemberFull MemberState = iota
	MemberInvited
	MemberRequesting
)

// String implements fmt.Stringer.
func (s MemberState) String() string {
	switch s {
	case MemberFull:
		return "full"
	case MemberInvited:
		return "invited"
	case MemberRequesting:
		return "requesting"
	default:
		return fmt.Sprintf("MemberState(%d)", int(s))
	}
}

// ParseMemberState parses the String form of a MemberState.
func ParseMemberState(s string) (MemberState, error) {
	switch s {
	case "full", "":
		return MemberFull, nil
	case "invited":
		return MemberInvited, nil
	case "requesting":
		return MemberRequesting, nil
	default:
		return 0, fmt.Errorf("unknown member state %q", s)
	}
}

// Stronger reports whether s carries more membership than other.
// Full members outrank invites, which outrank requests.
func (s MemberState) Stronger(other MemberState) bool {
	return s < other
}

// MemberRole is the role of a group member.
type MemberRole int

const (
	RoleNormal MemberRole = iota
	RoleAdministrator
)

// String implements fmt.Stringer.
func (r MemberRole) String() string {
	switch r {
	case RoleNormal:
		return "normal"
	case RoleAdministrator:
		return "admin"
	default:
		return fmt.Sprintf("MemberRole(%d)", int(r))
	}
}

// ParseMemberRole parses the String form of a MemberRole.
func ParseMemberRole(s string) (MemberRole, error) {
	switch s {
	case "normal", "":
		return RoleNormal, nil
	case "admin", "administrator":
		return RoleAdministrator, nil
	default:
		return 0, fmt.Errorf("unknown member role %q", s)
	}
}

// GroupMember is one membership entry. Exactly one of ServiceID and
// PhoneNumber is set: legacy entries are keyed by phone number until the
// owning ServiceID is learned.
type GroupMember struct {
	ID            int64       `json:"id"`
	GroupID       string      `json:"group_id"`
	ServiceID     *ServiceID  `json:"service_id,omitempty"`
	PhoneNumber   *E164       `json:"phone_number,omitempty"`
	State         MemberState `json:"state"`
	Role          MemberRole  `json:"role"`
	AddedBy       *ServiceID  `json:"added_by,omitempty"`
	JoinedViaLink bool        `json:"joined_via_link"`
}

// Notice is a user-visible "number changed" system message.
// Thread is "contact:<unique_id>" or "group:<group_id>".
type Notice struct {
	ID             int64     `json:"id"`
	Thread         string    `json:"thread"`
	ServiceID      ServiceID `json:"service_id"`
	OldPhoneNumber *E164     `json:"old_phone_number,omitempty"`
	NewPhoneNumber E164      `json:"new_phone_number"`
}

// ContactThread returns the thread key of a recipient's 1:1 conversation.
func ContactThread(uniqueID string) string {
	return "contact:" + uniqueID
}

// GroupThread returns the thread key of a group conversation.
func GroupThread(groupID string) string {
	return "group:" + groupID
}

// SyncEntry is a recipient waiting to be pushed to remote storage.
type SyncEntry struct {
	ID                int64  `json:"id"`
	RecipientUniqueID string `json:"recipient_unique_id"`
}
