package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	// Lifecycle violations name the state the run is in and the one required
	var stateErr *payroll.StateError
	if errors.As(err, &stateErr) {
		writeJSON(w, http.StatusConflict, Response{
			Success: false,
			Error: &ErrorDetail{
				Code:    "INVALID_STATE",
				Message: stateErr.Error(),
				Details: map[string]string{
					"current_status":  string(stateErr.Current),
					"required_status": string(stateErr.Required),
				},
			},
		})
		return
	}

	switch {
	// Auth errors
	case errors.Is(err, user.ErrInvalidToken):
		Unauthorized(w, "Invalid token")
	case errors.Is(err, user.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, "Company context is required")
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, "Insufficient permissions")

	// Payroll domain errors
	case errors.Is(err, payroll.ErrInvalidRunState):
		writeJSON(w, http.StatusConflict, Response{
			Success: false,
			Error:   &ErrorDetail{Code: "INVALID_STATE", Message: err.Error()},
		})
	case errors.Is(err, payroll.ErrDuplicateRun):
		Conflict(w, "A payroll run already exists for this period")
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrPayslipNotFound):
		NotFound(w, "Payslip not found")
	case errors.Is(err, payroll.ErrRemittanceNotFound):
		NotFound(w, "Statutory remittance not found")
	case errors.Is(err, payroll.ErrRemittanceAlreadyPaid):
		Conflict(w, "Statutory remittance is already paid")
	case errors.Is(err, payroll.ErrNoEligibleEmployees):
		UnprocessableEntity(w, "NO_ELIGIBLE_EMPLOYEES", "No eligible employees for this pay period", nil)
	case errors.Is(err, payroll.ErrNoPayslipsGenerated):
		UnprocessableEntity(w, "NO_PAYSLIPS_GENERATED", "No payslip could be generated for this run", nil)
	case errors.Is(err, payroll.ErrInvalidCompensation):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrIncompleteCompensation):
		BadRequest(w, err.Error(), nil)

	// Tax table errors
	case errors.Is(err, taxtable.ErrNoTaxTable):
		UnprocessableEntity(w, "NO_TAX_TABLE", "No tax table is in force for the requested date", nil)
	case errors.Is(err, taxtable.ErrInvalidTaxTable):
		UnprocessableEntity(w, "INVALID_TAX_TABLE", err.Error(), nil)
	case errors.Is(err, taxtable.ErrTaxTableVersionExists):
		Conflict(w, "Tax table version already published")
	case errors.Is(err, taxtable.ErrTaxTableNotLater):
		Conflict(w, "Tax table must take effect after the latest published table")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
