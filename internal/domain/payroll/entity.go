package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// PayFrequency describes how a compensation record's amounts are expressed.
type PayFrequency string

const (
	PayFrequencyMonthly PayFrequency = "monthly"
	PayFrequencyAnnual  PayFrequency = "annual"
)

func (f PayFrequency) IsValid() bool {
	return f == PayFrequencyMonthly || f == PayFrequencyAnnual
}

// periodsPerYear is the number of monthly pay periods in a tax year.
const periodsPerYear = 12

// MonthsPerYear as a decimal, for annual <-> monthly conversion.
var MonthsPerYear = decimal.NewFromInt(periodsPerYear)

// AllowanceBreakdown is the composition of gross compensation. ThirteenthMonth is
// only ever set on annual breakdowns.
type AllowanceBreakdown struct {
	BasicSalary        decimal.Decimal
	HousingAllowance   decimal.Decimal
	TransportAllowance decimal.Decimal
	UtilityAllowance   decimal.Decimal
	MealAllowance      decimal.Decimal
	LeaveAllowance     decimal.Decimal
	OtherAllowances    decimal.Decimal
	ThirteenthMonth    decimal.Decimal
}

// Gross sums every component.
func (a AllowanceBreakdown) Gross() decimal.Decimal {
	return decimal.Sum(
		a.BasicSalary,
		a.HousingAllowance,
		a.TransportAllowance,
		a.UtilityAllowance,
		a.MealAllowance,
		a.LeaveAllowance,
		a.OtherAllowances,
		a.ThirteenthMonth,
	)
}

// Scale multiplies every component by factor.
func (a AllowanceBreakdown) Scale(factor decimal.Decimal) AllowanceBreakdown {
	return AllowanceBreakdown{
		BasicSalary:        a.BasicSalary.Mul(factor),
		HousingAllowance:   a.HousingAllowance.Mul(factor),
		TransportAllowance: a.TransportAllowance.Mul(factor),
		UtilityAllowance:   a.UtilityAllowance.Mul(factor),
		MealAllowance:      a.MealAllowance.Mul(factor),
		LeaveAllowance:     a.LeaveAllowance.Mul(factor),
		OtherAllowances:    a.OtherAllowances.Mul(factor),
		ThirteenthMonth:    a.ThirteenthMonth.Mul(factor),
	}
}

// CompensationRecord is an employee's compensation as owned by the employee profile.
// BasicSalary is nil when the profile has no basic salary configured.
type CompensationRecord struct {
	EmployeeID         string
	EmployeeName       string
	EmployeeCode       string
	BasicSalary        *decimal.Decimal
	HousingAllowance   decimal.Decimal
	TransportAllowance decimal.Decimal
	UtilityAllowance   decimal.Decimal
	MealAllowance      decimal.Decimal
	LeaveAllowance     decimal.Decimal
	OtherAllowances    decimal.Decimal
	// ThirteenthMonth adds one month's basic salary to annual gross.
	ThirteenthMonth bool
	// Opt-outs for employees exempt from the pension scheme or the housing fund.
	PensionOptOut     bool
	HousingFundOptOut bool
	Currency          string
	PayFrequency      PayFrequency
}

// Breakdown returns the record's amounts as stored (not annualized).
func (c CompensationRecord) Breakdown() AllowanceBreakdown {
	basic := decimal.Zero
	if c.BasicSalary != nil {
		basic = *c.BasicSalary
	}
	return AllowanceBreakdown{
		BasicSalary:        basic,
		HousingAllowance:   c.HousingAllowance,
		TransportAllowance: c.TransportAllowance,
		UtilityAllowance:   c.UtilityAllowance,
		MealAllowance:      c.MealAllowance,
		LeaveAllowance:     c.LeaveAllowance,
		OtherAllowances:    c.OtherAllowances,
	}
}

// Annualized returns the breakdown expressed in annual amounts, including the
// thirteenth month when the record carries one.
func (c CompensationRecord) Annualized() AllowanceBreakdown {
	annual := c.Breakdown()
	if c.PayFrequency == PayFrequencyMonthly {
		annual = annual.Scale(MonthsPerYear)
	}
	if c.ThirteenthMonth {
		annual.ThirteenthMonth = annual.BasicSalary.Div(MonthsPerYear)
	}
	return annual
}

// RunTotals aggregates payslip figures for a run.
type RunTotals struct {
	Gross           decimal.Decimal `json:"total_gross"`
	Net             decimal.Decimal `json:"total_net"`
	PAYE            decimal.Decimal `json:"total_paye"`
	PensionEmployee decimal.Decimal `json:"total_pension_employee"`
	PensionEmployer decimal.Decimal `json:"total_pension_employer"`
	HousingFund     decimal.Decimal `json:"total_housing_fund"`
}

// Add accumulates one payslip into the totals.
func (t RunTotals) Add(p Payslip) RunTotals {
	return RunTotals{
		Gross:           t.Gross.Add(p.GrossSalary),
		Net:             t.Net.Add(p.NetSalary),
		PAYE:            t.PAYE.Add(p.PAYETax),
		PensionEmployee: t.PensionEmployee.Add(p.PensionEmployee),
		PensionEmployer: t.PensionEmployer.Add(p.PensionEmployer),
		HousingFund:     t.HousingFund.Add(p.HousingFundEmployee),
	}
}

// EmployeeError records why one employee's payslip could not be built.
type EmployeeError struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name,omitempty"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

// PayrollRun is one batch computation for a company and pay period.
type PayrollRun struct {
	ID               string
	CompanyID        string
	PeriodMonth      int
	PeriodYear       int
	PaymentDate      time.Time
	Status           RunStatus
	EmployeeCount    int
	Totals           RunTotals
	TaxTableVersion  *string
	ProcessingErrors []EmployeeError
	CreatedBy        *string
	CalculatedAt     *time.Time
	ApprovedAt       *time.Time
	ApprovedBy       *string
	PaidAt           *time.Time
	PaidBy           *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PeriodStart is the first day of the run's pay period.
func (r PayrollRun) PeriodStart() time.Time {
	return time.Date(r.PeriodYear, time.Month(r.PeriodMonth), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodEnd is the last day of the run's pay period.
func (r PayrollRun) PeriodEnd() time.Time {
	return r.PeriodStart().AddDate(0, 1, -1)
}

// BandTax is the tax attributed to one band during the band walk.
type BandTax struct {
	Band          int              `json:"band"`
	LowerBound    decimal.Decimal  `json:"lower_bound"`
	UpperBound    *decimal.Decimal `json:"upper_bound"`
	Rate          decimal.Decimal  `json:"rate"`
	TaxableAmount decimal.Decimal  `json:"taxable_amount"`
	Amount        decimal.Decimal  `json:"amount"`
}

// Payslip is the per-employee result of a run. Money figures are per pay period;
// TaxableIncome, Relief and Breakdown are annual.
type Payslip struct {
	ID                  string
	PayrollRunID        string
	CompanyID           string
	EmployeeID          string
	EmployeeName        *string
	EmployeeCode        *string
	PeriodMonth         int
	PeriodYear          int
	Currency            string
	BasicSalary         decimal.Decimal
	TotalAllowances     decimal.Decimal
	GrossSalary         decimal.Decimal
	PAYETax             decimal.Decimal
	PensionEmployee     decimal.Decimal
	PensionEmployer     decimal.Decimal
	HousingFundEmployee decimal.Decimal
	NetSalary           decimal.Decimal
	TaxableIncome       decimal.Decimal
	Relief              decimal.Decimal
	Breakdown           []BandTax
	TaxTableVersion     string
	Status              RunStatus
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RemittanceType identifies the agency a statutory deduction is remitted to.
type RemittanceType string

const (
	RemittanceTypePAYE        RemittanceType = "paye"
	RemittanceTypePension     RemittanceType = "pension"
	RemittanceTypeHousingFund RemittanceType = "housing_fund"
)

// Remittance payment states.
const (
	RemittanceStatusPending = "pending"
	RemittanceStatusPaid    = "paid"
)

// StatutoryRemittance is an amount owed to a statutory agency for one pay period.
// Once paid its amounts no longer change.
type StatutoryRemittance struct {
	ID                   string
	CompanyID            string
	PayrollRunID         string
	Type                 RemittanceType
	PeriodMonth          int
	PeriodYear           int
	Amount               decimal.Decimal
	EmployeeContribution decimal.Decimal
	EmployerContribution decimal.Decimal
	Agency               string
	DueDate              time.Time
	Status               string
	PaymentReference     *string
	PaidAt               *time.Time
	PaidBy               *string
	CreatedBy            *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
