package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/handler/http/response"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
)

type TaxTableHandler interface {
	GetTaxTable(w http.ResponseWriter, r *http.Request)
	ListVersions(w http.ResponseWriter, r *http.Request)
	Publish(w http.ResponseWriter, r *http.Request)
}

type taxTableHandlerImpl struct {
	taxTableService taxtable.TaxTableService
	now             func() time.Time
}

func NewTaxTableHandler(taxTableService taxtable.TaxTableService) TaxTableHandler {
	return &taxTableHandlerImpl{taxTableService: taxTableService, now: time.Now}
}

// GetTaxTable returns the table in force on ?effective_date=YYYY-MM-DD, today by default.
func (h *taxTableHandlerImpl) GetTaxTable(w http.ResponseWriter, r *http.Request) {
	effectiveDate := h.now()
	if dateStr := r.URL.Query().Get("effective_date"); dateStr != "" {
		parsed, ok := validator.IsValidDate(dateStr)
		if !ok {
			response.BadRequest(w, "Invalid effective_date", map[string]string{"effective_date": "must be in YYYY-MM-DD format"})
			return
		}
		effectiveDate = parsed
	}

	result, err := h.taxTableService.GetTaxTable(r.Context(), effectiveDate)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *taxTableHandlerImpl) ListVersions(w http.ResponseWriter, r *http.Request) {
	result, err := h.taxTableService.ListVersions(r.Context())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *taxTableHandlerImpl) Publish(w http.ResponseWriter, r *http.Request) {
	var req taxtable.PublishTaxTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.taxTableService.PublishTaxTable(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Tax table published", result)
}
