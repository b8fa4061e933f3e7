package payroll

import "fmt"

// RunStatus is the lifecycle state of a payroll run. Payslips mirror it.
type RunStatus string

const (
	RunStatusDraft      RunStatus = "draft"
	RunStatusCalculated RunStatus = "calculated"
	RunStatusApproved   RunStatus = "approved"
	RunStatusPaid       RunStatus = "paid"
)

// Lifecycle operations that move a run forward.
const (
	OpProcess  = "process"
	OpApprove  = "approve"
	OpMarkPaid = "mark_paid"
)

type transition struct {
	from RunStatus
	to   RunStatus
}

// runTransitions is the only place legal transitions are defined. There is no way back.
var runTransitions = map[string]transition{
	OpProcess:  {from: RunStatusDraft, to: RunStatusCalculated},
	OpApprove:  {from: RunStatusCalculated, to: RunStatusApproved},
	OpMarkPaid: {from: RunStatusApproved, to: RunStatusPaid},
}

func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusDraft, RunStatusCalculated, RunStatusApproved, RunStatusPaid:
		return true
	}
	return false
}

// IsProcessed reports whether payslips exist for a run in this state.
func (s RunStatus) IsProcessed() bool {
	return s == RunStatusCalculated || s == RunStatusApproved || s == RunStatusPaid
}

// Transition validates op against the current status and returns the target status.
// It fails with a *StateError naming the required predecessor state.
func Transition(op string, runID string, current RunStatus) (RunStatus, error) {
	t, ok := runTransitions[op]
	if !ok {
		return "", fmt.Errorf("unknown payroll run operation %q", op)
	}
	if current != t.from {
		return "", &StateError{Op: op, RunID: runID, Current: current, Required: t.from}
	}
	return t.to, nil
}

// StateError reports an operation attempted against a run in the wrong lifecycle state.
type StateError struct {
	Op       string
	RunID    string
	Current  RunStatus
	Required RunStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s payroll run %s: run is %s, requires %s", e.Op, e.RunID, e.Current, e.Required)
}

func (e *StateError) Is(target error) bool {
	return target == ErrInvalidRunState
}
