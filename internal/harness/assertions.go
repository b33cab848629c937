package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/testutil"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string                // Expectation that failed
	Expected string                // Human-readable expected outcome
	Actual   string                // Human-readable actual outcome
	Trace    []testutil.TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describeEvent(event))
	}
	return buf.String()
}

// EvaluateAssertions checks every expectation of the scenario against the
// result and returns one message per failure.
func EvaluateAssertions(scenario *Scenario, result *Result) []string {
	var errs []string
	check := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	exp := scenario.Expect
	if exp.Records != nil {
		check(assertRecords(exp.Records, result))
	}
	if exp.Events != nil {
		check(assertEvents(exp.Events, result))
	}
	if exp.Notices != nil {
		check(assertNoticeCount(*exp.Notices, result))
	}
	if exp.PendingSync != nil {
		check(assertPendingSync(exp.PendingSync, result))
	}
	if exp.Members != nil {
		check(assertMembers(exp.Members, result))
	}
	return errs
}

// assertRecords checks that the final recipients are exactly the expected
// set. Each expected record must match a distinct actual record.
func assertRecords(expected []RecordSpec, result *Result) error {
	actual := result.State.Records
	used := make([]bool, len(actual))

	for _, want := range expected {
		found := false
		for i, got := range actual {
			if !used[i] && recordMatches(want, got) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     "records",
				Expected: fmt.Sprintf("record %s", describeSpec(want)),
				Actual:   describeRecords(actual),
				Trace:    result.Trace,
			}
		}
	}

	if len(actual) != len(expected) {
		return &AssertionError{
			Type:     "records",
			Expected: fmt.Sprintf("%d records", len(expected)),
			Actual:   describeRecords(actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

func recordMatches(want RecordSpec, got *ir.Recipient) bool {
	if want.UniqueID != "" && want.UniqueID != got.UniqueID {
		return false
	}
	sid := ""
	if got.ServiceID != nil {
		sid = got.ServiceID.String()
	}
	phone := ""
	if got.PhoneNumber != nil {
		phone = got.PhoneNumber.String()
	}
	wantSID, _ := parseServiceID(want.ServiceID)
	wantPhone, _ := parsePhone(want.Phone)
	return stringOf(wantSID) == sid && stringOf(wantPhone) == phone
}

// assertEvents checks the exact sequence of observer event kinds.
func assertEvents(expected []string, result *Result) error {
	actual := make([]string, len(result.Trace))
	for i, ev := range result.Trace {
		actual[i] = ev.Kind
	}
	if strings.Join(actual, ",") != strings.Join(expected, ",") {
		return &AssertionError{
			Type:     "events",
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertNoticeCount(expected int, result *Result) error {
	if len(result.State.Notices) != expected {
		threads := make([]string, len(result.State.Notices))
		for i, n := range result.State.Notices {
			threads[i] = n.Thread
		}
		return &AssertionError{
			Type:     "notices",
			Expected: fmt.Sprintf("%d notices", expected),
			Actual:   fmt.Sprintf("%d notices %v", len(result.State.Notices), threads),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertPendingSync(expected []string, result *Result) error {
	actual := make([]string, len(result.State.PendingSync))
	for i, e := range result.State.PendingSync {
		actual[i] = e.RecipientUniqueID
	}
	if strings.Join(actual, ",") != strings.Join(expected, ",") {
		return &AssertionError{
			Type:     "pending_sync",
			Expected: fmt.Sprintf("%v", expected),
			Actual:   fmt.Sprintf("%v", actual),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertMembers compares group members as sorted descriptions.
func assertMembers(expected []MemberSpec, result *Result) error {
	want := make([]string, 0, len(expected))
	for _, spec := range expected {
		m, err := spec.member()
		if err != nil {
			return err
		}
		want = append(want, describeMember(m))
	}
	got := make([]string, 0, len(result.State.Members))
	for _, m := range result.State.Members {
		got = append(got, describeMember(m))
	}
	sort.Strings(want)
	sort.Strings(got)

	if strings.Join(want, ";") != strings.Join(got, ";") {
		return &AssertionError{
			Type:     "members",
			Expected: strings.Join(want, "; "),
			Actual:   strings.Join(got, "; "),
			Trace:    result.Trace,
		}
	}
	return nil
}

func describeEvent(ev testutil.TraceEvent) string {
	s := fmt.Sprintf("%s service_id=%s phone=%s", ev.Kind, ev.ServiceID, ev.PhoneNumber)
	if ev.OldPhoneNumber != nil {
		s += " old_phone=" + ev.OldPhoneNumber.String()
	}
	if ev.RecipientUniqueID != "" {
		s += " recipient=" + ev.RecipientUniqueID
	}
	if ev.IsLocalRecipient {
		s += " local"
	}
	return s
}

func describeSpec(r RecordSpec) string {
	return fmt.Sprintf("{unique_id=%q service_id=%q phone=%q}", r.UniqueID, r.ServiceID, r.Phone)
}

func describeRecords(records []*ir.Recipient) string {
	parts := make([]string, len(records))
	for i, r := range records {
		sid, phone := "", ""
		if r.ServiceID != nil {
			sid = r.ServiceID.String()
		}
		if r.PhoneNumber != nil {
			phone = r.PhoneNumber.String()
		}
		parts[i] = fmt.Sprintf("{unique_id=%q service_id=%q phone=%q}", r.UniqueID, sid, phone)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func describeMember(m *ir.GroupMember) string {
	key := ""
	if m.ServiceID != nil {
		key = "service_id=" + m.ServiceID.String()
	}
	if m.PhoneNumber != nil {
		key = "phone=" + m.PhoneNumber.String()
	}
	return fmt.Sprintf("%s/%s/%s/%s", m.GroupID, key, m.State, m.Role)
}

// stringOf renders an optional identifier, or "" for nil.
func stringOf[T fmt.Stringer](v *T) string {
	if v == nil {
		return ""
	}
	return (*v).String()
}
