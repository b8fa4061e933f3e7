package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Runs
	CreateRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ProcessRun(w http.ResponseWriter, r *http.Request)
	ApproveRun(w http.ResponseWriter, r *http.Request)
	MarkRunPaid(w http.ResponseWriter, r *http.Request)
	GenerateRemittances(w http.ResponseWriter, r *http.Request)
	ListRunRemittances(w http.ResponseWriter, r *http.Request)

	// Remittances
	ListOverdueRemittances(w http.ResponseWriter, r *http.Request)
	ListUpcomingRemittances(w http.ResponseWriter, r *http.Request)
	MarkRemittancePaid(w http.ResponseWriter, r *http.Request)

	// Payslips
	GetPayslip(w http.ResponseWriter, r *http.Request)

	// Calculator
	Calculate(w http.ResponseWriter, r *http.Request)
	QuickEstimate(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
	now            func() time.Time
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService, now: time.Now}
}

// today is the default effective date of calculator requests.
func (h *payrollHandlerImpl) today() string {
	return h.now().Format("2006-01-02")
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) CreateRun(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req payroll.CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.CompanyID = claims.CompanyID
	req.CreatedBy = claims.UserID

	result, err := h.payrollService.CreateRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run created", result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	query := r.URL.Query()
	filter := payroll.RunFilter{
		Page:  validator.ParsePositiveInt(query.Get("page"), 1),
		Limit: validator.ParsePositiveInt(query.Get("limit"), 20),
	}
	if status := query.Get("status"); status != "" {
		if !payroll.RunStatus(status).IsValid() {
			response.BadRequest(w, "Invalid status filter", map[string]string{"status": "must be one of draft, calculated, approved, paid"})
			return
		}
		filter.Status = &status
	}
	if yearStr := query.Get("period_year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			response.BadRequest(w, "Invalid period_year", map[string]string{"period_year": "must be a number"})
			return
		}
		filter.PeriodYear = &year
	}

	result, err := h.payrollService.ListRuns(r.Context(), claims.CompanyID, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	result, err := h.payrollService.GetRun(r.Context(), claims.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ProcessRun(w http.ResponseWriter, r *http.Request) {
	req, ok := runAction(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.ProcessRun(r.Context(), req)
	if err != nil {
		if errors.Is(err, payroll.ErrNoPayslipsGenerated) {
			response.ErrorWithData(w, http.StatusUnprocessableEntity, "NO_PAYSLIPS_GENERATED", "No payslip could be generated for this run", result)
			return
		}
		response.HandleError(w, err)
		return
	}

	message := "Payroll run processed"
	if len(result.Errors) > 0 {
		message = "Payroll run processed with errors"
	}
	response.SuccessWithMessage(w, message, result)
}

func (h *payrollHandlerImpl) ApproveRun(w http.ResponseWriter, r *http.Request) {
	req, ok := runAction(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.ApproveRun(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run approved", result)
}

func (h *payrollHandlerImpl) MarkRunPaid(w http.ResponseWriter, r *http.Request) {
	req, ok := runAction(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.MarkRunPaid(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run marked as paid", result)
}

func (h *payrollHandlerImpl) GenerateRemittances(w http.ResponseWriter, r *http.Request) {
	req, ok := runAction(w, r)
	if !ok {
		return
	}

	result, err := h.payrollService.GenerateRemittances(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Statutory remittances generated", result)
}

func (h *payrollHandlerImpl) ListRunRemittances(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	result, err := h.payrollService.ListRunRemittances(r.Context(), claims.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// runAction builds the request for a lifecycle operation on the run in the URL.
func runAction(w http.ResponseWriter, r *http.Request) (payroll.RunActionRequest, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return payroll.RunActionRequest{}, false
	}

	return payroll.RunActionRequest{
		CompanyID: claims.CompanyID,
		RunID:     chi.URLParam(r, "id"),
		ActorID:   claims.UserID,
	}, true
}

// ========== REMITTANCES ==========

func (h *payrollHandlerImpl) ListOverdueRemittances(w http.ResponseWriter, r *http.Request) {
	h.listDueRemittances(w, r, payroll.RemittanceViewOverdue)
}

func (h *payrollHandlerImpl) ListUpcomingRemittances(w http.ResponseWriter, r *http.Request) {
	h.listDueRemittances(w, r, payroll.RemittanceViewUpcoming)
}

func (h *payrollHandlerImpl) listDueRemittances(w http.ResponseWriter, r *http.Request, view string) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	req := payroll.DueRemittancesRequest{
		CompanyID: claims.CompanyID,
		View:      view,
		AsOf:      h.now(),
	}
	if view == payroll.RemittanceViewUpcoming {
		req.Days = payroll.DefaultUpcomingDays
		if daysStr := r.URL.Query().Get("days"); daysStr != "" {
			days, err := strconv.Atoi(daysStr)
			if err != nil {
				response.BadRequest(w, "Invalid days", map[string]string{"days": "must be a number"})
				return
			}
			req.Days = days
		}
	}

	result, err := h.payrollService.ListDueRemittances(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) MarkRemittancePaid(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req payroll.MarkRemittancePaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.CompanyID = claims.CompanyID
	req.RemittanceID = chi.URLParam(r, "id")
	req.ActorID = claims.UserID

	result, err := h.payrollService.MarkRemittancePaid(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Statutory remittance marked as paid", result)
}

// ========== PAYSLIPS ==========

func (h *payrollHandlerImpl) GetPayslip(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	result, err := h.payrollService.GetPayslip(r.Context(), claims.CompanyID, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== CALCULATOR ==========

func (h *payrollHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	var req payroll.CalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if req.EffectiveDate == "" {
		req.EffectiveDate = h.today()
	}

	result, err := h.payrollService.CalculateStandalone(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) QuickEstimate(w http.ResponseWriter, r *http.Request) {
	var req payroll.QuickEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	if req.EffectiveDate == "" {
		req.EffectiveDate = h.today()
	}

	result, err := h.payrollService.QuickEstimate(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
