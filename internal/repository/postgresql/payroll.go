package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type payrollRunRepository struct {
	db *database.DB
}

func NewPayrollRunRepository(db *database.DB) payroll.PayrollRunRepository {
	return &payrollRunRepository{db: db}
}

const runColumns = `
	id, company_id, period_month, period_year, payment_date, status, employee_count,
	total_gross, total_net, total_paye, total_pension_employee, total_pension_employer, total_housing_fund,
	tax_table_version, processing_errors, created_by,
	calculated_at, approved_at, approved_by, paid_at, paid_by, created_at, updated_at
`

func scanRun(row pgx.Row) (payroll.PayrollRun, error) {
	var r payroll.PayrollRun
	var errorsJSON []byte
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.PeriodMonth, &r.PeriodYear, &r.PaymentDate, &r.Status, &r.EmployeeCount,
		&r.Totals.Gross, &r.Totals.Net, &r.Totals.PAYE, &r.Totals.PensionEmployee, &r.Totals.PensionEmployer, &r.Totals.HousingFund,
		&r.TaxTableVersion, &errorsJSON, &r.CreatedBy,
		&r.CalculatedAt, &r.ApprovedAt, &r.ApprovedBy, &r.PaidAt, &r.PaidBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	r.ProcessingErrors = []payroll.EmployeeError{}
	if len(errorsJSON) > 0 {
		if err := json.Unmarshal(errorsJSON, &r.ProcessingErrors); err != nil {
			return payroll.PayrollRun{}, fmt.Errorf("decode processing errors: %w", err)
		}
	}
	return r, nil
}

// ========== RUNS ==========

func (r *payrollRunRepository) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	errorsJSON, err := json.Marshal(run.ProcessingErrors)
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("encode processing errors: %w", err)
	}

	query := `
		INSERT INTO payroll_runs (
			id, company_id, period_month, period_year, payment_date, status,
			processing_errors, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + runColumns

	created, err := scanRun(q.QueryRow(ctx, query,
		run.ID, run.CompanyID, run.PeriodMonth, run.PeriodYear, run.PaymentDate, run.Status,
		errorsJSON, run.CreatedBy, run.CreatedAt, run.UpdatedAt,
	))
	if err != nil {
		if isUniqueViolation(err, "uk_payroll_run_period") {
			return payroll.PayrollRun{}, payroll.ErrDuplicateRun
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}

	return created, nil
}

func (r *payrollRunRepository) GetRunByID(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE id = $1 AND company_id = $2`

	run, err := scanRun(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}
	return run, nil
}

func (r *payrollRunRepository) GetRunByPeriod(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + runColumns + `
		FROM payroll_runs
		WHERE company_id = $1 AND period_month = $2 AND period_year = $3
	`

	run, err := scanRun(q.QueryRow(ctx, query, companyID, month, year))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.PayrollRun{}, payroll.ErrRunNotFound
		}
		return payroll.PayrollRun{}, fmt.Errorf("failed to get payroll run by period: %w", err)
	}
	return run, nil
}

func (r *payrollRunRepository) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.PayrollRun, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := ` FROM payroll_runs WHERE company_id = $1`
	args := []interface{}{companyID}
	argIdx := 2

	if filter.PeriodYear != nil {
		baseQuery += fmt.Sprintf(" AND period_year = $%d", argIdx)
		args = append(args, *filter.PeriodYear)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}

	// Count query
	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*)"+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payroll runs: %w", err)
	}

	// Pagination
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s %s
		ORDER BY period_year DESC, period_month DESC
		LIMIT $%d OFFSET $%d`, runColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	runs := make([]payroll.PayrollRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}

	return runs, totalCount, nil
}

// SaveCalculation flips the run to calculated and inserts its payslips in one
// transaction. The UPDATE only matches a draft run, so a concurrent or repeated
// process cannot write a second set of payslips.
func (r *payrollRunRepository) SaveCalculation(ctx context.Context, run payroll.PayrollRun, payslips []payroll.Payslip) (payroll.PayrollRun, error) {
	errorsJSON, err := json.Marshal(run.ProcessingErrors)
	if err != nil {
		return payroll.PayrollRun{}, fmt.Errorf("encode processing errors: %w", err)
	}

	var saved payroll.PayrollRun
	err = WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		query := `
			UPDATE payroll_runs
			SET status = $1, employee_count = $2,
				total_gross = $3, total_net = $4, total_paye = $5,
				total_pension_employee = $6, total_pension_employer = $7, total_housing_fund = $8,
				tax_table_version = $9, processing_errors = $10, calculated_at = $11, updated_at = $12
			WHERE id = $13 AND company_id = $14 AND status = $15
			RETURNING ` + runColumns

		var err error
		saved, err = scanRun(tx.QueryRow(ctx, query,
			payroll.RunStatusCalculated, run.EmployeeCount,
			run.Totals.Gross, run.Totals.Net, run.Totals.PAYE,
			run.Totals.PensionEmployee, run.Totals.PensionEmployer, run.Totals.HousingFund,
			run.TaxTableVersion, errorsJSON, run.CalculatedAt, run.UpdatedAt,
			run.ID, run.CompanyID, payroll.RunStatusDraft,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return r.stateError(ctx, payroll.OpProcess, run.ID, run.CompanyID, payroll.RunStatusDraft)
		}
		if err != nil {
			return fmt.Errorf("failed to mark payroll run calculated: %w", err)
		}

		return insertPayslips(ctx, tx, payslips)
	})
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	return saved, nil
}

func insertPayslips(ctx context.Context, tx pgx.Tx, payslips []payroll.Payslip) error {
	query := `
		INSERT INTO payslips (
			id, payroll_run_id, company_id, employee_id, employee_name, employee_code,
			period_month, period_year, currency, basic_salary, total_allowances, gross_salary,
			paye_tax, pension_employee, pension_employer, housing_fund_employee, net_salary,
			taxable_income, relief, breakdown, tax_table_version, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`

	batch := &pgx.Batch{}
	for _, p := range payslips {
		breakdownJSON, err := json.Marshal(p.Breakdown)
		if err != nil {
			return fmt.Errorf("encode tax breakdown for employee %s: %w", p.EmployeeID, err)
		}
		batch.Queue(query,
			p.ID, p.PayrollRunID, p.CompanyID, p.EmployeeID, p.EmployeeName, p.EmployeeCode,
			p.PeriodMonth, p.PeriodYear, p.Currency, p.BasicSalary, p.TotalAllowances, p.GrossSalary,
			p.PAYETax, p.PensionEmployee, p.PensionEmployer, p.HousingFundEmployee, p.NetSalary,
			p.TaxableIncome, p.Relief, breakdownJSON, p.TaxTableVersion, p.Status, p.CreatedAt, p.UpdatedAt,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for _, p := range payslips {
		if _, err := results.Exec(); err != nil {
			results.Close()
			if isUniqueViolation(err, "uk_payslip_run_employee") {
				return fmt.Errorf("payslip for employee %s already exists in run %s: %w", p.EmployeeID, p.PayrollRunID, err)
			}
			return fmt.Errorf("failed to insert payslip for employee %s: %w", p.EmployeeID, err)
		}
	}
	return results.Close()
}

func (r *payrollRunRepository) UpdateRunStatus(ctx context.Context, companyID string, update payroll.RunStatusUpdate) (payroll.PayrollRun, error) {
	actorColumns := map[payroll.RunStatus]string{
		payroll.RunStatusApproved: "approved_at = $3, approved_by = $4",
		payroll.RunStatusPaid:     "paid_at = $3, paid_by = $4",
	}
	set, ok := actorColumns[update.To]
	if !ok {
		return payroll.PayrollRun{}, fmt.Errorf("unsupported payroll run status update to %s", update.To)
	}

	var updated payroll.PayrollRun
	err := WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		query := fmt.Sprintf(`
			UPDATE payroll_runs
			SET status = $1, %s, updated_at = $3
			WHERE id = $2 AND company_id = $5 AND status = $6
			RETURNING %s`, set, runColumns)

		var err error
		updated, err = scanRun(tx.QueryRow(ctx, query,
			update.To, update.RunID, update.At, update.ActorID, companyID, update.From,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return r.stateError(ctx, update.Op, update.RunID, companyID, update.From)
		}
		if err != nil {
			return fmt.Errorf("failed to update payroll run status: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE payslips SET status = $1, updated_at = $2
			WHERE payroll_run_id = $3 AND company_id = $4
		`, update.To, update.At, update.RunID, companyID)
		if err != nil {
			return fmt.Errorf("failed to update payslip status: %w", err)
		}
		return nil
	})
	if err != nil {
		return payroll.PayrollRun{}, err
	}
	return updated, nil
}

// stateError explains why a conditional run update matched no row.
func (r *payrollRunRepository) stateError(ctx context.Context, op, runID, companyID string, required payroll.RunStatus) error {
	var current payroll.RunStatus
	err := GetQuerier(ctx, r.db).QueryRow(ctx,
		`SELECT status FROM payroll_runs WHERE id = $1 AND company_id = $2`, runID, companyID,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return payroll.ErrRunNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read payroll run status: %w", err)
	}
	return &payroll.StateError{Op: op, RunID: runID, Current: current, Required: required}
}

// ========== PAYSLIPS ==========

const payslipColumns = `
	id, payroll_run_id, company_id, employee_id, employee_name, employee_code,
	period_month, period_year, currency, basic_salary, total_allowances, gross_salary,
	paye_tax, pension_employee, pension_employer, housing_fund_employee, net_salary,
	taxable_income, relief, breakdown, tax_table_version, status, created_at, updated_at
`

func scanPayslip(row pgx.Row) (payroll.Payslip, error) {
	var p payroll.Payslip
	var breakdownJSON []byte
	err := row.Scan(
		&p.ID, &p.PayrollRunID, &p.CompanyID, &p.EmployeeID, &p.EmployeeName, &p.EmployeeCode,
		&p.PeriodMonth, &p.PeriodYear, &p.Currency, &p.BasicSalary, &p.TotalAllowances, &p.GrossSalary,
		&p.PAYETax, &p.PensionEmployee, &p.PensionEmployer, &p.HousingFundEmployee, &p.NetSalary,
		&p.TaxableIncome, &p.Relief, &breakdownJSON, &p.TaxTableVersion, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return payroll.Payslip{}, err
	}
	if len(breakdownJSON) > 0 {
		if err := json.Unmarshal(breakdownJSON, &p.Breakdown); err != nil {
			return payroll.Payslip{}, fmt.Errorf("decode tax breakdown: %w", err)
		}
	}
	return p, nil
}

func (r *payrollRunRepository) ListPayslipsByRun(ctx context.Context, runID string, companyID string) ([]payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + payslipColumns + `
		FROM payslips
		WHERE payroll_run_id = $1 AND company_id = $2
		ORDER BY employee_name, employee_id
	`

	rows, err := q.Query(ctx, query, runID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payslips: %w", err)
	}
	defer rows.Close()

	payslips := make([]payroll.Payslip, 0)
	for rows.Next() {
		p, err := scanPayslip(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payslip: %w", err)
		}
		payslips = append(payslips, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payslips: %w", err)
	}
	return payslips, nil
}

func (r *payrollRunRepository) GetPayslipByID(ctx context.Context, id string, companyID string) (payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + payslipColumns + ` FROM payslips WHERE id = $1 AND company_id = $2`

	p, err := scanPayslip(q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Payslip{}, payroll.ErrPayslipNotFound
		}
		return payroll.Payslip{}, fmt.Errorf("failed to get payslip: %w", err)
	}
	return p, nil
}
