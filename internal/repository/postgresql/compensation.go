package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type compensationDirectory struct {
	db *database.DB
}

// NewCompensationDirectory reads compensation from the employee profile tables.
func NewCompensationDirectory(db *database.DB) payroll.CompensationDirectory {
	return &compensationDirectory{db: db}
}

// ListEligibleEmployees returns every employee whose employment overlaps the period.
// Employees without a compensation row are returned with a nil basic salary so the
// run can report them.
func (d *compensationDirectory) ListEligibleEmployees(ctx context.Context, companyID string, periodStart, periodEnd time.Time) ([]payroll.CompensationRecord, error) {
	q := GetQuerier(ctx, d.db)

	query := `
		SELECT e.id, e.full_name, e.employee_code,
			c.basic_salary,
			COALESCE(c.housing_allowance, 0), COALESCE(c.transport_allowance, 0),
			COALESCE(c.utility_allowance, 0), COALESCE(c.meal_allowance, 0),
			COALESCE(c.leave_allowance, 0), COALESCE(c.other_allowances, 0),
			COALESCE(c.thirteenth_month, FALSE),
			COALESCE(c.pension_opt_out, FALSE), COALESCE(c.housing_fund_opt_out, FALSE),
			COALESCE(c.currency, ''), COALESCE(c.pay_frequency, '')
		FROM employees e
		LEFT JOIN employee_compensations c ON c.employee_id = e.id
		WHERE e.company_id = $1
			AND e.deleted_at IS NULL
			AND e.hire_date <= $3
			AND (e.resignation_date IS NULL OR e.resignation_date >= $2)
		ORDER BY e.full_name, e.id
	`

	rows, err := q.Query(ctx, query, companyID, periodStart, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible employees: %w", err)
	}
	defer rows.Close()

	records := make([]payroll.CompensationRecord, 0)
	for rows.Next() {
		var rec payroll.CompensationRecord
		var basic decimal.NullDecimal
		var code *string
		if err := rows.Scan(
			&rec.EmployeeID, &rec.EmployeeName, &code,
			&basic,
			&rec.HousingAllowance, &rec.TransportAllowance,
			&rec.UtilityAllowance, &rec.MealAllowance,
			&rec.LeaveAllowance, &rec.OtherAllowances,
			&rec.ThirteenthMonth,
			&rec.PensionOptOut, &rec.HousingFundOptOut,
			&rec.Currency, &rec.PayFrequency,
		); err != nil {
			return nil, fmt.Errorf("failed to scan compensation: %w", err)
		}
		if basic.Valid {
			rec.BasicSalary = &basic.Decimal
		}
		if code != nil {
			rec.EmployeeCode = *code
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compensation: %w", err)
	}

	return records, nil
}
