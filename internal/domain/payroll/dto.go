package payroll

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

// ========== RUN DTOs ==========

type CreateRunRequest struct {
	CompanyID   string `json:"-"`
	CreatedBy   string `json:"-"`
	PeriodMonth int    `json:"period_month"`
	PeriodYear  int    `json:"period_year"`
	PaymentDate string `json:"payment_date"`
}

func (r *CreateRunRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{Field: "company_id", Message: "is required"})
	}
	if !validator.IsValidPayPeriod(r.PeriodMonth, r.PeriodYear) {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "month must be between 1 and 12 and year 2020 or later"})
	}
	if validator.IsEmpty(r.PaymentDate) {
		errs = append(errs, validator.ValidationError{Field: "payment_date", Message: "is required"})
	} else if _, ok := validator.IsValidDate(r.PaymentDate); !ok {
		errs = append(errs, validator.ValidationError{Field: "payment_date", Message: "must be in YYYY-MM-DD format"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RunActionRequest addresses one run on behalf of an actor.
type RunActionRequest struct {
	CompanyID string
	RunID     string
	ActorID   string
}

func (r *RunActionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{Field: "company_id", Message: "is required"})
	}
	if validator.IsEmpty(r.RunID) {
		errs = append(errs, validator.ValidationError{Field: "run_id", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type RunFilter struct {
	PeriodYear *int    `json:"period_year,omitempty"`
	Status     *string `json:"status,omitempty"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

type RunSummaryResponse struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id"`
	PeriodMonth      int             `json:"period_month"`
	PeriodYear       int             `json:"period_year"`
	PaymentDate      string          `json:"payment_date"`
	Status           string          `json:"status"`
	EmployeeCount    int             `json:"employee_count"`
	Totals           RunTotals       `json:"totals"`
	TaxTableVersion  *string         `json:"tax_table_version,omitempty"`
	ProcessingErrors []EmployeeError `json:"processing_errors,omitempty"`
	CalculatedAt     *string         `json:"calculated_at,omitempty"`
	ApprovedAt       *string         `json:"approved_at,omitempty"`
	ApprovedBy       *string         `json:"approved_by,omitempty"`
	PaidAt           *string         `json:"paid_at,omitempty"`
	PaidBy           *string         `json:"paid_by,omitempty"`
	CreatedAt        string          `json:"created_at"`
}

type RunDetailResponse struct {
	RunSummaryResponse
	Payslips []PayslipResponse `json:"payslips"`
}

type ProcessRunResponse struct {
	Run           RunSummaryResponse `json:"run"`
	EmployeeCount int                `json:"employee_count"`
	Totals        RunTotals          `json:"totals"`
	Errors        []EmployeeError    `json:"errors"`
}

type ListRunResponse struct {
	Data       []RunSummaryResponse `json:"data"`
	TotalCount int64                `json:"total_count"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
}

type PayslipResponse struct {
	ID                  string          `json:"id"`
	PayrollRunID        string          `json:"payroll_run_id"`
	EmployeeID          string          `json:"employee_id"`
	EmployeeName        string          `json:"employee_name"`
	EmployeeCode        string          `json:"employee_code"`
	PeriodMonth         int             `json:"period_month"`
	PeriodYear          int             `json:"period_year"`
	Currency            string          `json:"currency"`
	BasicSalary         decimal.Decimal `json:"basic_salary"`
	TotalAllowances     decimal.Decimal `json:"total_allowances"`
	GrossSalary         decimal.Decimal `json:"gross_salary"`
	PAYETax             decimal.Decimal `json:"paye_tax"`
	PensionEmployee     decimal.Decimal `json:"pension_employee"`
	PensionEmployer     decimal.Decimal `json:"pension_employer"`
	HousingFundEmployee decimal.Decimal `json:"housing_fund_employee"`
	NetSalary           decimal.Decimal `json:"net_salary"`
	TaxableIncome       decimal.Decimal `json:"taxable_income"`
	Relief              decimal.Decimal `json:"relief"`
	Breakdown           []BandTax       `json:"breakdown"`
	TaxTableVersion     string          `json:"tax_table_version"`
	Status              string          `json:"status"`
}

// ========== CALCULATOR DTOs ==========

// CalculateRequest is the loosely shaped preview payload. Amounts are expressed per
// Period. GrossSalary overrides the sum of components when present and may not be
// lower than it. EffectiveDate selects the tax table and is required.
type CalculateRequest struct {
	Period             string           `json:"period"`
	GrossSalary        *decimal.Decimal `json:"gross_salary,omitempty"`
	BasicSalary        *decimal.Decimal `json:"basic_salary"`
	HousingAllowance   *decimal.Decimal `json:"housing_allowance,omitempty"`
	TransportAllowance *decimal.Decimal `json:"transport_allowance,omitempty"`
	UtilityAllowance   *decimal.Decimal `json:"utility_allowance,omitempty"`
	MealAllowance      *decimal.Decimal `json:"meal_allowance,omitempty"`
	LeaveAllowance     *decimal.Decimal `json:"leave_allowance,omitempty"`
	OtherAllowances    *decimal.Decimal `json:"other_allowances,omitempty"`
	ThirteenthMonth    bool             `json:"thirteenth_month"`
	PensionEnabled     *bool            `json:"pension_enabled,omitempty"`
	HousingFundEnabled *bool            `json:"housing_fund_enabled,omitempty"`
	EffectiveDate      string           `json:"effective_date"`
}

func (r *CalculateRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.Period != "" && !PayFrequency(r.Period).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be 'monthly' or 'annual'"})
	}
	if r.BasicSalary == nil {
		errs = append(errs, validator.ValidationError{Field: "basic_salary", Message: "is required"})
	}

	negative := false
	for _, c := range []struct {
		field  string
		amount *decimal.Decimal
	}{
		{"gross_salary", r.GrossSalary},
		{"basic_salary", r.BasicSalary},
		{"housing_allowance", r.HousingAllowance},
		{"transport_allowance", r.TransportAllowance},
		{"utility_allowance", r.UtilityAllowance},
		{"meal_allowance", r.MealAllowance},
		{"leave_allowance", r.LeaveAllowance},
		{"other_allowances", r.OtherAllowances},
	} {
		if c.amount != nil && c.amount.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: c.field, Message: "must be non-negative"})
			negative = true
		}
	}
	if !negative && r.GrossSalary != nil && r.BasicSalary != nil {
		if sum := r.ComponentSum(); r.GrossSalary.LessThan(sum) {
			errs = append(errs, validator.ValidationError{
				Field:   "gross_salary",
				Message: "must not be less than the sum of salary components (" + sum.StringFixed(2) + ")",
			})
		}
	}

	if validator.IsEmpty(r.EffectiveDate) {
		errs = append(errs, validator.ValidationError{Field: "effective_date", Message: "is required"})
	} else if _, ok := validator.IsValidDate(r.EffectiveDate); !ok {
		errs = append(errs, validator.ValidationError{Field: "effective_date", Message: "must be in YYYY-MM-DD format"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ComponentSum is the per-period gross implied by the components, with the
// thirteenth month spread evenly over the year.
func (r *CalculateRequest) ComponentSum() decimal.Decimal {
	basic := valueOrZero(r.BasicSalary)
	sum := decimal.Sum(
		basic,
		valueOrZero(r.HousingAllowance),
		valueOrZero(r.TransportAllowance),
		valueOrZero(r.UtilityAllowance),
		valueOrZero(r.MealAllowance),
		valueOrZero(r.LeaveAllowance),
		valueOrZero(r.OtherAllowances),
	)
	if r.ThirteenthMonth {
		sum = sum.Add(basic.Div(MonthsPerYear))
	}
	return sum
}

// PayFrequency defaults to monthly.
func (r *CalculateRequest) PayFrequency() PayFrequency {
	if r.Period == "" {
		return PayFrequencyMonthly
	}
	return PayFrequency(r.Period)
}

// ToCompensationRecord converts a validated request into a typed record.
// Contributions are enabled unless explicitly switched off.
func (r *CalculateRequest) ToCompensationRecord() CompensationRecord {
	return CompensationRecord{
		BasicSalary:        r.BasicSalary,
		HousingAllowance:   valueOrZero(r.HousingAllowance),
		TransportAllowance: valueOrZero(r.TransportAllowance),
		UtilityAllowance:   valueOrZero(r.UtilityAllowance),
		MealAllowance:      valueOrZero(r.MealAllowance),
		LeaveAllowance:     valueOrZero(r.LeaveAllowance),
		OtherAllowances:    valueOrZero(r.OtherAllowances),
		ThirteenthMonth:    r.ThirteenthMonth,
		PensionOptOut:      r.PensionEnabled != nil && !*r.PensionEnabled,
		HousingFundOptOut:  r.HousingFundEnabled != nil && !*r.HousingFundEnabled,
		PayFrequency:       r.PayFrequency(),
	}
}

type QuickEstimateRequest struct {
	GrossSalary   decimal.Decimal `json:"gross_salary"`
	Period        string          `json:"period"`
	EffectiveDate string          `json:"effective_date"`
}

func (r *QuickEstimateRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.GrossSalary.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "gross_salary", Message: "must be non-negative"})
	}
	if r.Period != "" && !PayFrequency(r.Period).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "period", Message: "must be 'monthly' or 'annual'"})
	}
	if validator.IsEmpty(r.EffectiveDate) {
		errs = append(errs, validator.ValidationError{Field: "effective_date", Message: "is required"})
	} else if _, ok := validator.IsValidDate(r.EffectiveDate); !ok {
		errs = append(errs, validator.ValidationError{Field: "effective_date", Message: "must be in YYYY-MM-DD format"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (r *QuickEstimateRequest) PayFrequency() PayFrequency {
	if r.Period == "" {
		return PayFrequencyMonthly
	}
	return PayFrequency(r.Period)
}

// ========== REMITTANCE DTOs ==========

type RemittanceResponse struct {
	ID                   string          `json:"id"`
	PayrollRunID         string          `json:"payroll_run_id"`
	Type                 string          `json:"type"`
	PeriodMonth          int             `json:"period_month"`
	PeriodYear           int             `json:"period_year"`
	Amount               decimal.Decimal `json:"amount"`
	EmployeeContribution decimal.Decimal `json:"employee_contribution"`
	EmployerContribution decimal.Decimal `json:"employer_contribution"`
	Agency               string          `json:"agency"`
	DueDate              string          `json:"due_date"`
	Status               string          `json:"status"`
	DaysOverdue          int             `json:"days_overdue,omitempty"`
	PaymentReference     *string         `json:"payment_reference,omitempty"`
	PaidAt               *string         `json:"paid_at,omitempty"`
	PaidBy               *string         `json:"paid_by,omitempty"`
}

// Remittance due-date views.
const (
	RemittanceViewOverdue  = "overdue"
	RemittanceViewUpcoming = "upcoming"
)

const (
	DefaultUpcomingDays = 30
	MaxUpcomingDays     = 366
)

// DueRemittancesRequest lists a company's pending remittances relative to AsOf.
// Overdue ones fell due before AsOf; upcoming ones fall due within Days of it.
type DueRemittancesRequest struct {
	CompanyID string
	View      string
	AsOf      time.Time
	Days      int
}

func (r *DueRemittancesRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{Field: "company_id", Message: "is required"})
	}
	if r.View != RemittanceViewOverdue && r.View != RemittanceViewUpcoming {
		errs = append(errs, validator.ValidationError{Field: "view", Message: "must be 'overdue' or 'upcoming'"})
	}
	if r.AsOf.IsZero() {
		errs = append(errs, validator.ValidationError{Field: "as_of", Message: "is required"})
	}
	if r.View == RemittanceViewUpcoming && (r.Days < 1 || r.Days > MaxUpcomingDays) {
		errs = append(errs, validator.ValidationError{Field: "days", Message: "must be between 1 and 366"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type MarkRemittancePaidRequest struct {
	CompanyID        string `json:"-"`
	RemittanceID     string `json:"-"`
	ActorID          string `json:"-"`
	PaymentReference string `json:"payment_reference"`
}

func (r *MarkRemittancePaidRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.CompanyID) {
		errs = append(errs, validator.ValidationError{Field: "company_id", Message: "is required"})
	}
	if !validator.IsValidUUID(r.RemittanceID) {
		errs = append(errs, validator.ValidationError{Field: "remittance_id", Message: "must be a valid UUID"})
	}
	if validator.IsEmpty(r.PaymentReference) {
		errs = append(errs, validator.ValidationError{Field: "payment_reference", Message: "is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
