package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/testutil"
)

func resultWith(records ...*ir.Recipient) *Result {
	r := NewResult()
	r.State.Records = records
	return r
}

func rec(uid, sid, phone string) *ir.Recipient {
	r := &ir.Recipient{UniqueID: uid}
	if sid != "" {
		r.ServiceID = ir.MustParseServiceID(sid).Ptr()
	}
	if phone != "" {
		r.PhoneNumber = ir.MustParseE164(phone).Ptr()
	}
	return r
}

func TestAssertRecords_ExactSetAnyOrder(t *testing.T) {
	result := resultWith(rec("a", sidA, ""), rec("b", sidB, phoneP))

	err := assertRecords([]RecordSpec{
		{ServiceID: sidB, Phone: phoneP},
		{UniqueID: "a", ServiceID: sidA},
	}, result)
	assert.NoError(t, err)
}

func TestAssertRecords_PhoneIsNormalized(t *testing.T) {
	result := resultWith(rec("a", sidA, phoneP))
	assert.NoError(t, assertRecords([]RecordSpec{{ServiceID: sidA, Phone: "+1 555 000 0001"}}, result))
}

func TestAssertRecords_MissingRecord(t *testing.T) {
	result := resultWith(rec("a", sidA, ""))

	err := assertRecords([]RecordSpec{{ServiceID: sidA, Phone: phoneP}}, result)
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "records", ae.Type)
}

func TestAssertRecords_ExtraRecord(t *testing.T) {
	result := resultWith(rec("a", sidA, ""), rec("b", sidB, ""))

	err := assertRecords([]RecordSpec{{ServiceID: sidA}}, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 records")
}

func TestAssertRecords_UniqueIDMismatch(t *testing.T) {
	result := resultWith(rec("a", sidA, ""))
	assert.Error(t, assertRecords([]RecordSpec{{UniqueID: "b", ServiceID: sidA}}, result))
}

func TestAssertRecords_DuplicateExpectationsNeedDistinctRecords(t *testing.T) {
	result := resultWith(rec("a", sidA, ""))
	assert.Error(t, assertRecords([]RecordSpec{{ServiceID: sidA}, {ServiceID: sidA}}, result))
}

func TestAssertEvents(t *testing.T) {
	result := NewResult()
	result.Trace = []testutil.TraceEvent{
		{Kind: testutil.KindWillBreak},
		{Kind: testutil.KindDidLearn},
	}

	assert.NoError(t, assertEvents([]string{"will_break", "did_learn"}, result))
	assert.Error(t, assertEvents([]string{"did_learn", "will_break"}, result), "order matters")
	assert.Error(t, assertEvents([]string{"will_break"}, result), "count matters")
}

func TestAssertNoticeCount(t *testing.T) {
	result := NewResult()
	result.State.Notices = []*ir.Notice{{Thread: "contact:a"}}

	assert.NoError(t, assertNoticeCount(1, result))
	err := assertNoticeCount(0, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contact:a")
}

func TestAssertPendingSync(t *testing.T) {
	result := NewResult()
	result.State.PendingSync = []ir.SyncEntry{{RecipientUniqueID: "a"}, {RecipientUniqueID: "b"}}

	assert.NoError(t, assertPendingSync([]string{"a", "b"}, result))
	assert.Error(t, assertPendingSync([]string{"b", "a"}, result))
}

func TestAssertMembers(t *testing.T) {
	result := NewResult()
	result.State.Members = []*ir.GroupMember{
		{GroupID: "g1", ServiceID: ir.MustParseServiceID(sidA).Ptr(), State: ir.MemberInvited, Role: ir.RoleAdministrator},
		{GroupID: "g2", PhoneNumber: ir.MustParseE164(phoneP).Ptr()},
	}

	assert.NoError(t, assertMembers([]MemberSpec{
		{GroupID: "g2", Phone: phoneP},
		{GroupID: "g1", ServiceID: sidA, State: "invited", Role: "admin"},
	}, result))

	err := assertMembers([]MemberSpec{
		{GroupID: "g1", ServiceID: sidA, State: "full", Role: "admin"},
		{GroupID: "g2", Phone: phoneP},
	}, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "g1/service_id="+sidA+"/invited/admin")
}

func TestEvaluateAssertions_NilExpectationsAreSkipped(t *testing.T) {
	result := resultWith(rec("a", sidA, ""))
	result.Trace = []testutil.TraceEvent{{Kind: testutil.KindDidLearn}}

	errs := EvaluateAssertions(&Scenario{}, result)
	assert.Empty(t, errs)
}

func TestEvaluateAssertions_CollectsEveryFailure(t *testing.T) {
	zero := 0
	result := resultWith(rec("a", sidA, ""))
	result.State.Notices = []*ir.Notice{{Thread: "contact:a"}}

	errs := EvaluateAssertions(&Scenario{Expect: Expect{
		Records: []RecordSpec{},
		Events:  []string{testutil.KindDidLearn},
		Notices: &zero,
	}}, result)
	assert.Len(t, errs, 3)
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	old := ir.MustParseE164("+15550000002")
	err := &AssertionError{
		Type:     "events",
		Expected: "[will_break]",
		Actual:   "[did_learn]",
		Trace: []testutil.TraceEvent{{
			Kind:              testutil.KindDidLearn,
			ServiceID:         ir.MustParseServiceID(sidA),
			PhoneNumber:       ir.MustParseE164(phoneP),
			OldPhoneNumber:    &old,
			RecipientUniqueID: "r-1",
		}},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: events")
	assert.Contains(t, msg, "Expected: [will_break]")
	assert.Contains(t, msg, "Actual: [did_learn]")
	assert.Contains(t, msg, "[1] did_learn service_id="+sidA+" phone=+15550000001 old_phone=+15550000002 recipient=r-1")
}
