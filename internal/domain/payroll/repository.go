package payroll

import (
	"context"
	"time"
)

// PayrollRunRepository defines data access methods for runs and payslips.
// All methods include companyID parameter to prevent cross-company data access.
type PayrollRunRepository interface {
	// Runs
	CreateRun(ctx context.Context, run PayrollRun) (PayrollRun, error)
	GetRunByID(ctx context.Context, id string, companyID string) (PayrollRun, error)
	GetRunByPeriod(ctx context.Context, companyID string, month, year int) (PayrollRun, error)
	ListRuns(ctx context.Context, companyID string, filter RunFilter) ([]PayrollRun, int64, error)

	// SaveCalculation stores the payslips and flips the run from draft to calculated
	// in one transaction. The status flip is conditional on the run still being draft.
	SaveCalculation(ctx context.Context, run PayrollRun, payslips []Payslip) (PayrollRun, error)

	// UpdateRunStatus moves a run (and its payslips) from update.From to update.To.
	// Fails with *StateError when the run is no longer in update.From.
	UpdateRunStatus(ctx context.Context, companyID string, update RunStatusUpdate) (PayrollRun, error)

	// Payslips
	ListPayslipsByRun(ctx context.Context, runID string, companyID string) ([]Payslip, error)
	GetPayslipByID(ctx context.Context, id string, companyID string) (Payslip, error)
}

// RunStatusUpdate describes a conditional lifecycle write.
type RunStatusUpdate struct {
	Op      string
	RunID   string
	From    RunStatus
	To      RunStatus
	ActorID *string
	At      time.Time
}

// CompensationDirectory is the employee directory collaborator.
type CompensationDirectory interface {
	// ListEligibleEmployees returns compensation for employees whose active employment
	// overlaps the pay period.
	ListEligibleEmployees(ctx context.Context, companyID string, periodStart, periodEnd time.Time) ([]CompensationRecord, error)
}

// RemittanceRepository persists statutory remittances derived from processed runs.
type RemittanceRepository interface {
	// UpsertRemittances fails with ErrRemittanceAlreadyPaid instead of overwriting a
	// paid remittance for the same company, type and period.
	UpsertRemittances(ctx context.Context, remittances []StatutoryRemittance) ([]StatutoryRemittance, error)
	ListRemittancesByRun(ctx context.Context, runID string, companyID string) ([]StatutoryRemittance, error)
	// ListPendingRemittances returns pending remittances due in [window.From, window.Before),
	// earliest first. A nil From leaves the window open towards the past.
	ListPendingRemittances(ctx context.Context, companyID string, window DueWindow) ([]StatutoryRemittance, error)
	// MarkRemittancePaid flips a pending remittance to paid.
	MarkRemittancePaid(ctx context.Context, companyID string, payment RemittancePayment) (StatutoryRemittance, error)
}

type DueWindow struct {
	From   *time.Time
	Before time.Time
}

type RemittancePayment struct {
	RemittanceID string
	Reference    string
	ActorID      *string
	At           time.Time
}
