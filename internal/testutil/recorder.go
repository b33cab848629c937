package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/rmerge/internal/ir"
	"github.com/roach88/rmerge/internal/store"
)

// ErrInjected is returned by a RecordingObserver told to fail.
var ErrInjected = errors.New("injected observer failure")

// Event kinds recorded by RecordingObserver.
const (
	KindWillBreak = "will_break"
	KindDidLearn  = "did_learn"
)

// TraceEvent is one observer callback.
type TraceEvent struct {
	Kind              string       `json:"kind"`
	ServiceID         ir.ServiceID `json:"service_id"`
	PhoneNumber       ir.E164      `json:"phone_number"`
	OldPhoneNumber    *ir.E164     `json:"old_phone_number,omitempty"`
	IsLocalRecipient  bool         `json:"is_local_recipient,omitempty"`
	RecipientUniqueID string       `json:"recipient_unique_id,omitempty"`
}

// RecordingObserver records every merge notification in order.
// Set Fail to make the next callbacks return ErrInjected.
//
// Events are recorded as the callback runs, even if the merge later rolls
// back.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingObserver struct {
	mu     sync.Mutex
	events []TraceEvent
	fail   bool
}

// NewRecordingObserver creates an empty recorder.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

// Name implements engine.NamedObserver.
func (r *RecordingObserver) Name() string { return "recorder" }

// SetFail makes subsequent callbacks fail (or succeed again).
func (r *RecordingObserver) SetFail(fail bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = fail
}

// WillBreakAssociation implements engine.Observer.
func (r *RecordingObserver) WillBreakAssociation(ctx context.Context, tx *store.Tx, serviceID ir.ServiceID, phone ir.E164) error {
	return r.record(TraceEvent{Kind: KindWillBreak, ServiceID: serviceID, PhoneNumber: phone})
}

// DidLearnAssociation implements engine.Observer.
func (r *RecordingObserver) DidLearnAssociation(ctx context.Context, tx *store.Tx, m ir.MergedRecipient) error {
	ev := TraceEvent{
		Kind:             KindDidLearn,
		ServiceID:        m.ServiceID,
		PhoneNumber:      m.NewPhoneNumber,
		OldPhoneNumber:   m.OldPhoneNumber,
		IsLocalRecipient: m.IsLocalRecipient,
	}
	if m.Recipient != nil {
		ev.RecipientUniqueID = m.Recipient.UniqueID
	}
	return r.record(ev)
}

func (r *RecordingObserver) record(ev TraceEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return ErrInjected
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded events.
func (r *RecordingObserver) Events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of the recorded events, in order.
func (r *RecordingObserver) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, len(r.events))
	for i, ev := range r.events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// Reset forgets all recorded events.
func (r *RecordingObserver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
