package payroll

import "errors"

var (
	ErrInvalidCompensation    = errors.New("invalid compensation")
	ErrIncompleteCompensation = errors.New("incomplete compensation")
	ErrInvalidRunState        = errors.New("payroll run is in the wrong state for this operation")
	ErrDuplicateRun           = errors.New("payroll run already exists for this period")
	ErrRunNotFound            = errors.New("payroll run not found")
	ErrPayslipNotFound        = errors.New("payslip not found")
	ErrNoEligibleEmployees    = errors.New("company has no eligible employees for this period")
	ErrNoPayslipsGenerated    = errors.New("no payslip could be generated for this run")
	ErrRemittanceNotFound     = errors.New("statutory remittance not found")
	ErrRemittanceAlreadyPaid  = errors.New("statutory remittance is already paid")
)

// Error codes attached to per-employee failures in a batch.
const (
	CodeIncompleteCompensation = "INCOMPLETE_COMPENSATION"
	CodeInvalidCompensation    = "INVALID_COMPENSATION"
	CodeBuildFailed            = "BUILD_FAILED"
)

// ErrorCode classifies a build failure for the per-run error list.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrIncompleteCompensation):
		return CodeIncompleteCompensation
	case errors.Is(err, ErrInvalidCompensation):
		return CodeInvalidCompensation
	default:
		return CodeBuildFailed
	}
}
