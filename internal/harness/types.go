package harness

import (
	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/testutil"
)

// StepOutcome is what one step returned.
type StepOutcome struct {
	Source string `json:"source"`

	// UniqueID is the returned record's unique id on success.
	UniqueID string `json:"unique_id,omitempty"`

	// Error is the error code on failure.
	Error string `json:"error,omitempty"`
}

// FinalState is the store contents after the last step.
type FinalState struct {
	Records     []*ir.Recipient   `json:"records"`
	Members     []*ir.GroupMember `json:"members"`
	Notices     []*ir.Notice      `json:"notices"`
	PendingSync []ir.SyncEntry    `json:"pending_sync"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step returned what it
	// expected and every expectation holds.
	Pass bool `json:"pass"`

	// Steps holds one outcome per scenario step.
	Steps []StepOutcome `json:"steps"`

	// Trace contains every observer notification in order. Notifications
	// of a rolled-back step are not recorded.
	Trace []testutil.TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final store contents.
	State FinalState `json:"state"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Trace:  []testutil.TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
