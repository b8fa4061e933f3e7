package payroll

import "context"

// PayrollService drives payroll runs through their lifecycle and exposes the
// side-effect-free calculator.
type PayrollService interface {
	// Runs
	CreateRun(ctx context.Context, req CreateRunRequest) (RunSummaryResponse, error)
	ProcessRun(ctx context.Context, req RunActionRequest) (ProcessRunResponse, error)
	ApproveRun(ctx context.Context, req RunActionRequest) (RunSummaryResponse, error)
	MarkRunPaid(ctx context.Context, req RunActionRequest) (RunSummaryResponse, error)
	GetRun(ctx context.Context, companyID string, runID string) (RunDetailResponse, error)
	ListRuns(ctx context.Context, companyID string, filter RunFilter) (ListRunResponse, error)

	// Payslips
	GetPayslip(ctx context.Context, companyID string, payslipID string) (PayslipResponse, error)

	// Calculator
	CalculateStandalone(ctx context.Context, req CalculateRequest) (CalculationResult, error)
	QuickEstimate(ctx context.Context, req QuickEstimateRequest) (CalculationResult, error)

	// Remittances
	GenerateRemittances(ctx context.Context, req RunActionRequest) ([]RemittanceResponse, error)
	ListRunRemittances(ctx context.Context, companyID string, runID string) ([]RemittanceResponse, error)
	ListDueRemittances(ctx context.Context, req DueRemittancesRequest) ([]RemittanceResponse, error)
	MarkRemittancePaid(ctx context.Context, req MarkRemittancePaidRequest) (RemittanceResponse, error)
}
