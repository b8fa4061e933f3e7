package payroll

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/google/uuid"
)

// PayslipBuilder turns one employee's compensation into a payslip for a run.
// It has no side effects; the orchestrator persists every payslip of a run in a
// single commit.
type PayslipBuilder struct {
	now   func() time.Time
	newID func() (uuid.UUID, error)
}

func NewPayslipBuilder() *PayslipBuilder {
	return &PayslipBuilder{
		now:   time.Now,
		newID: uuid.NewV7,
	}
}

// Build calculates the monthly payslip for record within run. It fails with
// ErrIncompleteCompensation when basic salary or pay frequency is missing, and
// with ErrInvalidCompensation for negative figures.
func (b *PayslipBuilder) Build(run payroll.PayrollRun, table taxtable.TaxTable, record payroll.CompensationRecord) (payroll.Payslip, error) {
	if record.EmployeeID == "" {
		return payroll.Payslip{}, fmt.Errorf("%w: employee id is missing", payroll.ErrIncompleteCompensation)
	}

	result, err := CalculateRecord(table, record, nil, payroll.PayFrequencyMonthly)
	if err != nil {
		return payroll.Payslip{}, fmt.Errorf("employee %s: %w", record.EmployeeID, err)
	}

	id, err := b.newID()
	if err != nil {
		return payroll.Payslip{}, fmt.Errorf("failed to generate payslip id: %w", err)
	}

	basic := roundMoney(record.Annualized().BasicSalary.Div(payroll.MonthsPerYear))

	currency := record.Currency
	if currency == "" {
		currency = table.Currency
	}

	now := b.now()
	return payroll.Payslip{
		ID:                  id.String(),
		PayrollRunID:        run.ID,
		CompanyID:           run.CompanyID,
		EmployeeID:          record.EmployeeID,
		EmployeeName:        optionalString(record.EmployeeName),
		EmployeeCode:        optionalString(record.EmployeeCode),
		PeriodMonth:         run.PeriodMonth,
		PeriodYear:          run.PeriodYear,
		Currency:            currency,
		BasicSalary:         basic,
		TotalAllowances:     result.Gross.Monthly.Sub(basic),
		GrossSalary:         result.Gross.Monthly,
		PAYETax:             result.Tax.MonthlyPAYE,
		PensionEmployee:     result.Pension.Employee,
		PensionEmployer:     result.Pension.Employer,
		HousingFundEmployee: result.HousingFund,
		NetSalary:           result.Net.Monthly,
		TaxableIncome:       result.TaxableIncome,
		Relief:              result.Relief,
		Breakdown:           result.Tax.Breakdown,
		TaxTableVersion:     result.TaxTableVersion,
		Status:              payroll.RunStatusCalculated,
		CreatedAt:           now,
		UpdatedAt:           now,
	}, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
