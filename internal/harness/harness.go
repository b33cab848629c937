package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/rmerge/internal/app"
	"github.com/roach88/rmerge/internal/engine"
	"github.com/roach88/rmerge/internal/store"
	"github.com/roach88/rmerge/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Recipient unique ids come from testutil.SequentialIDs ("r-1", "r-2", ...)
// and orphaned records get testutil.OrphanServiceIDs, so the same scenario
// always produces the same trace.
//
// Execution flow:
//  1. Create fresh in-memory database
//  2. Seed local account, records, sessions, groups and profiles
//  3. Assemble the app with a recording observer at the end of the chain
//  4. Apply each step in its own write transaction
//  5. Collect final state and evaluate expectations
//
// An error is returned only when the scenario could not be executed at
// all. Step failures and unmet expectations are reported in Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := seed(ctx, st, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	recorder := testutil.NewRecordingObserver()
	a, err := app.New(ctx, st,
		app.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in scenarios
		app.WithStrictAssertions(true),
		app.WithIDGenerator(testutil.NewSequentialIDs("r")),
		app.WithOrphanServiceIDs(testutil.OrphanServiceIDs()),
		app.WithExtraObservers(recorder),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble app: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		req, err := step.request()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}

		recorder.SetFail(step.FailObserver)
		r, mergeErr := a.Merge(ctx, req)
		recorder.SetFail(false)

		outcome := StepOutcome{Source: step.Source}
		if mergeErr != nil {
			outcome.Error = ErrorCode(mergeErr)
		} else {
			outcome.UniqueID = r.UniqueID
		}
		result.Steps = append(result.Steps, outcome)

		if outcome.Error != step.ExpectError {
			msg := fmt.Sprintf("steps[%d]: expected error %q, got %q", i, step.ExpectError, outcome.Error)
			if mergeErr != nil {
				msg += ": " + mergeErr.Error()
			}
			result.AddError(msg)
		}
	}
	result.Trace = recorder.Events()

	state, err := collectState(ctx, st, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to collect final state: %w", err)
	}
	result.State = *state

	for _, errMsg := range EvaluateAssertions(scenario, result) {
		result.AddError(errMsg)
	}
	return result, nil
}

// ErrorCode maps a merge error to the code scenarios expect.
func ErrorCode(err error) string {
	var mergeErr *engine.MergeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &mergeErr):
		return string(mergeErr.Code)
	case errors.Is(err, app.ErrPhoneRequired):
		return ErrCodePhoneRequired
	default:
		return ErrCodeOther
	}
}

func seed(ctx context.Context, st *store.Store, scenario *Scenario) error {
	return st.WithWriteTransaction(ctx, func(tx *store.Tx) error {
		if scenario.Local != nil {
			local, err := scenario.Local.identifiers()
			if err != nil {
				return fmt.Errorf("local: %w", err)
			}
			if err := (store.LocalAccount{}).Set(ctx, tx, local); err != nil {
				return err
			}
		}

		for i, spec := range scenario.Records {
			r, err := spec.recipient(i)
			if err != nil {
				return fmt.Errorf("records[%d]: %w", i, err)
			}
			if err := (store.Recipients{}).Insert(ctx, tx, r); err != nil {
				return fmt.Errorf("records[%d]: %w", i, err)
			}
			if spec.Session {
				if err := (store.Sessions{}).SetSession(ctx, tx, r.UniqueID, store.PrimaryDeviceID, true); err != nil {
					return fmt.Errorf("records[%d]: %w", i, err)
				}
			}
		}

		for i, spec := range scenario.Groups {
			m, err := spec.member()
			if err != nil {
				return fmt.Errorf("groups[%d]: %w", i, err)
			}
			if err := (store.Groups{}).InsertMember(ctx, tx, m); err != nil {
				return fmt.Errorf("groups[%d]: %w", i, err)
			}
		}

		for i, spec := range scenario.Profiles {
			p, err := spec.profile()
			if err != nil {
				return fmt.Errorf("profiles[%d]: %w", i, err)
			}
			if err := (store.Profiles{}).Insert(ctx, tx, p); err != nil {
				return fmt.Errorf("profiles[%d]: %w", i, err)
			}
		}
		return nil
	})
}

func collectState(ctx context.Context, st *store.Store, scenario *Scenario) (*FinalState, error) {
	state := &FinalState{}
	err := st.WithReadTransaction(ctx, func(tx *store.Tx) error {
		var err error
		if state.Records, err = (store.Recipients{}).List(ctx, tx); err != nil {
			return err
		}
		if state.Notices, err = (store.Notices{}).List(ctx, tx, ""); err != nil {
			return err
		}
		if state.PendingSync, err = (store.SyncQueue{}).Pending(ctx, tx, 0); err != nil {
			return err
		}

		seen := make(map[string]bool)
		for _, g := range scenario.Groups {
			if seen[g.GroupID] {
				continue
			}
			seen[g.GroupID] = true
			members, err := (store.Groups{}).Members(ctx, tx, g.GroupID)
			if err != nil {
				return err
			}
			state.Members = append(state.Members, members...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}
