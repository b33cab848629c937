package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rmerge/internal/app"
	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/testutil"
)

// Scenario defines a merge scenario: the store contents before the first
// step, the associations observed in order, and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Local, if set, is stored as the local account before the first step.
	// It is not merged; add a "local" step for that.
	Local *LocalSpec `yaml:"local,omitempty"`

	// Records are inserted as-is, in order.
	Records []RecordSpec `yaml:"records,omitempty"`

	// Groups and Profiles seed the tables observers maintain.
	Groups   []MemberSpec  `yaml:"groups,omitempty"`
	Profiles []ProfileSpec `yaml:"profiles,omitempty"`

	// Steps are applied in order, each in its own write transaction.
	Steps []Step `yaml:"steps"`

	// Expect is checked against the final state and the observer trace.
	Expect Expect `yaml:"expect"`
}

// LocalSpec is the local account.
type LocalSpec struct {
	ACI   string `yaml:"aci"`
	PNI   string `yaml:"pni,omitempty"`
	Phone string `yaml:"phone"`
}

// RecordSpec is a seeded recipient. Unset unique ids default to "seed-N"
// where N is the 1-based position in Records.
type RecordSpec struct {
	UniqueID  string `yaml:"unique_id,omitempty"`
	ServiceID string `yaml:"service_id,omitempty"`
	Phone     string `yaml:"phone,omitempty"`

	// Session records an active session on the primary device.
	Session bool `yaml:"session,omitempty"`
}

// MemberSpec is a group membership entry keyed by exactly one of
// ServiceID and Phone.
type MemberSpec struct {
	GroupID   string `yaml:"group_id"`
	ServiceID string `yaml:"service_id,omitempty"`
	Phone     string `yaml:"phone,omitempty"`
	State     string `yaml:"state,omitempty"`
	Role      string `yaml:"role,omitempty"`
}

// ProfileSpec is a seeded profile.
type ProfileSpec struct {
	ServiceID string `yaml:"service_id,omitempty"`
	Phone     string `yaml:"phone,omitempty"`
	GivenName string `yaml:"given_name,omitempty"`
}

// Step is one observed association.
type Step struct {
	Source    string `yaml:"source"`
	ServiceID string `yaml:"service_id"`
	PNI       string `yaml:"pni,omitempty"`
	Phone     string `yaml:"phone,omitempty"`

	// FailObserver makes the recording observer fail during this step.
	FailObserver bool `yaml:"fail_observer,omitempty"`

	// ExpectError is the expected error code ("" means success).
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Expect describes the expected outcome. Nil fields are not checked;
// an empty list asserts that nothing is there.
type Expect struct {
	// Records is the exact final set of recipients, in any order.
	// Unique ids are compared only where given.
	Records []RecordSpec `yaml:"records"`

	// Events is the exact sequence of observer event kinds.
	Events []string `yaml:"events"`

	// Notices is the total number of "number changed" notices.
	Notices *int `yaml:"notices,omitempty"`

	// PendingSync is the sequence of unique ids waiting for storage sync.
	PendingSync []string `yaml:"pending_sync,omitempty"`

	// Members is the exact final set of group members, in any order.
	Members []MemberSpec `yaml:"members,omitempty"`
}

// Error codes a step can expect besides engine.MergeErrorCode values.
const (
	ErrCodePhoneRequired = "PHONE_REQUIRED"
	ErrCodeOther         = "ERROR"
)

var knownErrorCodes = map[string]bool{
	"STORE_FAILURE":       true,
	"OBSERVER_FAILED":     true,
	"INVARIANT_VIOLATION": true,
	ErrCodePhoneRequired:  true,
	ErrCodeOther:          true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// identifier parses.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Local != nil {
		if _, err := s.Local.identifiers(); err != nil {
			return fmt.Errorf("local: %w", err)
		}
	}

	for i, r := range s.Records {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
	}
	for i, m := range s.Groups {
		if _, err := m.member(); err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
	}
	for i, p := range s.Profiles {
		if _, err := p.profile(); err != nil {
			return fmt.Errorf("profiles[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if _, err := step.request(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.ExpectError != "" && !knownErrorCodes[step.ExpectError] {
			return fmt.Errorf("steps[%d]: unknown expect_error %q", i, step.ExpectError)
		}
	}

	for i, r := range s.Expect.Records {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("expect.records[%d]: %w", i, err)
		}
		if r.Session {
			return fmt.Errorf("expect.records[%d]: session is not checked", i)
		}
	}
	for i, kind := range s.Expect.Events {
		if kind != testutil.KindWillBreak && kind != testutil.KindDidLearn {
			return fmt.Errorf("expect.events[%d]: unknown event kind %q", i, kind)
		}
	}
	if s.Expect.Notices != nil && *s.Expect.Notices < 0 {
		return fmt.Errorf("expect.notices must be non-negative")
	}
	for i, m := range s.Expect.Members {
		if _, err := m.member(); err != nil {
			return fmt.Errorf("expect.members[%d]: %w", i, err)
		}
	}
	return nil
}

func validateRecord(r RecordSpec) error {
	if r.ServiceID == "" && r.Phone == "" {
		return fmt.Errorf("service_id or phone is required")
	}
	if _, err := parseServiceID(r.ServiceID); err != nil {
		return err
	}
	if _, err := parsePhone(r.Phone); err != nil {
		return err
	}
	return nil
}

func (l *LocalSpec) identifiers() (ir.LocalIdentifiers, error) {
	aci, err := ir.ParseServiceID(l.ACI)
	if err != nil {
		return ir.LocalIdentifiers{}, fmt.Errorf("aci: %w", err)
	}
	pni, err := parseServiceID(l.PNI)
	if err != nil {
		return ir.LocalIdentifiers{}, fmt.Errorf("pni: %w", err)
	}
	phone, err := ir.ParseE164(l.Phone)
	if err != nil {
		return ir.LocalIdentifiers{}, fmt.Errorf("phone: %w", err)
	}
	return ir.LocalIdentifiers{ACI: aci, PNI: pni, PhoneNumber: phone}, nil
}

func (r RecordSpec) recipient(index int) (*ir.Recipient, error) {
	sid, err := parseServiceID(r.ServiceID)
	if err != nil {
		return nil, err
	}
	phone, err := parsePhone(r.Phone)
	if err != nil {
		return nil, err
	}
	uid := r.UniqueID
	if uid == "" {
		uid = fmt.Sprintf("seed-%d", index+1)
	}
	return &ir.Recipient{UniqueID: uid, ServiceID: sid, PhoneNumber: phone}, nil
}

func (m MemberSpec) member() (*ir.GroupMember, error) {
	if m.GroupID == "" {
		return nil, fmt.Errorf("group_id is required")
	}
	if (m.ServiceID == "") == (m.Phone == "") {
		return nil, fmt.Errorf("exactly one of service_id and phone is required")
	}
	sid, err := parseServiceID(m.ServiceID)
	if err != nil {
		return nil, err
	}
	phone, err := parsePhone(m.Phone)
	if err != nil {
		return nil, err
	}
	state, err := ir.ParseMemberState(m.State)
	if err != nil {
		return nil, err
	}
	role, err := ir.ParseMemberRole(m.Role)
	if err != nil {
		return nil, err
	}
	return &ir.GroupMember{
		GroupID:     m.GroupID,
		ServiceID:   sid,
		PhoneNumber: phone,
		State:       state,
		Role:        role,
	}, nil
}

func (p ProfileSpec) profile() (*ir.Profile, error) {
	if p.ServiceID == "" && p.Phone == "" {
		return nil, fmt.Errorf("service_id or phone is required")
	}
	sid, err := parseServiceID(p.ServiceID)
	if err != nil {
		return nil, err
	}
	phone, err := parsePhone(p.Phone)
	if err != nil {
		return nil, err
	}
	return &ir.Profile{ServiceID: sid, PhoneNumber: phone, GivenName: p.GivenName}, nil
}

func (s Step) request() (app.MergeRequest, error) {
	source, err := app.ParseSource(s.Source)
	if err != nil {
		return app.MergeRequest{}, err
	}
	sid, err := ir.ParseServiceID(s.ServiceID)
	if err != nil {
		return app.MergeRequest{}, fmt.Errorf("service_id: %w", err)
	}
	pni, err := parseServiceID(s.PNI)
	if err != nil {
		return app.MergeRequest{}, fmt.Errorf("pni: %w", err)
	}
	if pni != nil && source != app.SourceLocal {
		return app.MergeRequest{}, fmt.Errorf("pni is only valid for source %q", app.SourceLocal)
	}
	phone, err := parsePhone(s.Phone)
	if err != nil {
		return app.MergeRequest{}, fmt.Errorf("phone: %w", err)
	}
	return app.MergeRequest{Source: source, ServiceID: sid, PNI: pni, Phone: phone}, nil
}

// parseServiceID returns nil for an empty string.
func parseServiceID(s string) (*ir.ServiceID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := ir.ParseServiceID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parsePhone returns nil for an empty string.
func parsePhone(s string) (*ir.E164, error) {
	if s == "" {
		return nil, nil
	}
	p, err := ir.ParseE164(s)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
