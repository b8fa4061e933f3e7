package payroll

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
)

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func toRunSummary(r payroll.PayrollRun) payroll.RunSummaryResponse {
	return payroll.RunSummaryResponse{
		ID:               r.ID,
		CompanyID:        r.CompanyID,
		PeriodMonth:      r.PeriodMonth,
		PeriodYear:       r.PeriodYear,
		PaymentDate:      r.PaymentDate.Format("2006-01-02"),
		Status:           string(r.Status),
		EmployeeCount:    r.EmployeeCount,
		Totals:           r.Totals,
		TaxTableVersion:  r.TaxTableVersion,
		ProcessingErrors: r.ProcessingErrors,
		CalculatedAt:     formatTime(r.CalculatedAt),
		ApprovedAt:       formatTime(r.ApprovedAt),
		ApprovedBy:       r.ApprovedBy,
		PaidAt:           formatTime(r.PaidAt),
		PaidBy:           r.PaidBy,
		CreatedAt:        r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toPayslipResponse(p payroll.Payslip) payroll.PayslipResponse {
	breakdown := p.Breakdown
	if breakdown == nil {
		breakdown = []payroll.BandTax{}
	}
	return payroll.PayslipResponse{
		ID:                  p.ID,
		PayrollRunID:        p.PayrollRunID,
		EmployeeID:          p.EmployeeID,
		EmployeeName:        derefString(p.EmployeeName),
		EmployeeCode:        derefString(p.EmployeeCode),
		PeriodMonth:         p.PeriodMonth,
		PeriodYear:          p.PeriodYear,
		Currency:            p.Currency,
		BasicSalary:         p.BasicSalary,
		TotalAllowances:     p.TotalAllowances,
		GrossSalary:         p.GrossSalary,
		PAYETax:             p.PAYETax,
		PensionEmployee:     p.PensionEmployee,
		PensionEmployer:     p.PensionEmployer,
		HousingFundEmployee: p.HousingFundEmployee,
		NetSalary:           p.NetSalary,
		TaxableIncome:       p.TaxableIncome,
		Relief:              p.Relief,
		Breakdown:           breakdown,
		TaxTableVersion:     p.TaxTableVersion,
		Status:              string(p.Status),
	}
}

func toRemittanceResponse(r payroll.StatutoryRemittance) payroll.RemittanceResponse {
	return payroll.RemittanceResponse{
		ID:                   r.ID,
		PayrollRunID:         r.PayrollRunID,
		Type:                 string(r.Type),
		PeriodMonth:          r.PeriodMonth,
		PeriodYear:           r.PeriodYear,
		Amount:               r.Amount,
		EmployeeContribution: r.EmployeeContribution,
		EmployerContribution: r.EmployerContribution,
		Agency:               r.Agency,
		DueDate:              r.DueDate.Format("2006-01-02"),
		Status:               r.Status,
		PaymentReference:     r.PaymentReference,
		PaidAt:               formatTime(r.PaidAt),
		PaidBy:               r.PaidBy,
	}
}
