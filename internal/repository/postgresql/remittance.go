package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type remittanceRepository struct {
	db *database.DB
}

func NewRemittanceRepository(db *database.DB) payroll.RemittanceRepository {
	return &remittanceRepository{db: db}
}

const remittanceColumns = `
	id, company_id, payroll_run_id, type, period_month, period_year, amount,
	employee_contribution, employer_contribution, agency, due_date, status,
	payment_reference, paid_at, paid_by, created_by, created_at, updated_at
`

func scanRemittance(row pgx.Row) (payroll.StatutoryRemittance, error) {
	var r payroll.StatutoryRemittance
	err := row.Scan(
		&r.ID, &r.CompanyID, &r.PayrollRunID, &r.Type, &r.PeriodMonth, &r.PeriodYear, &r.Amount,
		&r.EmployeeContribution, &r.EmployerContribution, &r.Agency, &r.DueDate, &r.Status,
		&r.PaymentReference, &r.PaidAt, &r.PaidBy, &r.CreatedBy, &r.CreatedAt, &r.UpdatedAt,
	)
	return r, err
}

// UpsertRemittances writes one row per company, type and period. Regenerating keeps
// the original id and creation time and replaces the amounts of pending rows; a paid
// row is left untouched and the whole batch is rolled back.
func (r *remittanceRepository) UpsertRemittances(ctx context.Context, remittances []payroll.StatutoryRemittance) ([]payroll.StatutoryRemittance, error) {
	query := `
		INSERT INTO statutory_remittances (
			id, company_id, payroll_run_id, type, period_month, period_year, amount,
			employee_contribution, employer_contribution, agency, due_date, status,
			created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT ON CONSTRAINT uk_remittance_period DO UPDATE SET
			payroll_run_id = EXCLUDED.payroll_run_id,
			amount = EXCLUDED.amount,
			employee_contribution = EXCLUDED.employee_contribution,
			employer_contribution = EXCLUDED.employer_contribution,
			agency = EXCLUDED.agency,
			due_date = EXCLUDED.due_date,
			updated_at = EXCLUDED.updated_at
		WHERE statutory_remittances.status = 'pending'
		RETURNING ` + remittanceColumns

	saved := make([]payroll.StatutoryRemittance, 0, len(remittances))
	err := WithTransaction(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		for _, rem := range remittances {
			row, err := scanRemittance(tx.QueryRow(ctx, query,
				rem.ID, rem.CompanyID, rem.PayrollRunID, rem.Type, rem.PeriodMonth, rem.PeriodYear, rem.Amount,
				rem.EmployeeContribution, rem.EmployerContribution, rem.Agency, rem.DueDate, rem.Status,
				rem.CreatedBy, rem.CreatedAt, rem.UpdatedAt,
			))
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%w: %s %04d-%02d", payroll.ErrRemittanceAlreadyPaid, rem.Type, rem.PeriodYear, rem.PeriodMonth)
			}
			if err != nil {
				return fmt.Errorf("failed to upsert %s remittance: %w", rem.Type, err)
			}
			saved = append(saved, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (r *remittanceRepository) ListRemittancesByRun(ctx context.Context, runID string, companyID string) ([]payroll.StatutoryRemittance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + remittanceColumns + `
		FROM statutory_remittances
		WHERE payroll_run_id = $1 AND company_id = $2
		ORDER BY type
	`

	rows, err := q.Query(ctx, query, runID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list remittances: %w", err)
	}
	defer rows.Close()

	return collectRemittances(rows)
}

func (r *remittanceRepository) ListPendingRemittances(ctx context.Context, companyID string, window payroll.DueWindow) ([]payroll.StatutoryRemittance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + remittanceColumns + `
		FROM statutory_remittances
		WHERE company_id = $1
			AND status = 'pending'
			AND ($2::date IS NULL OR due_date >= $2::date)
			AND due_date < $3::date
		ORDER BY due_date, type
	`

	rows, err := q.Query(ctx, query, companyID, window.From, window.Before)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending remittances: %w", err)
	}
	defer rows.Close()

	return collectRemittances(rows)
}

// MarkRemittancePaid only touches pending rows. When nothing is updated the row is
// looked up again to tell a missing remittance from one that is already paid.
func (r *remittanceRepository) MarkRemittancePaid(ctx context.Context, companyID string, payment payroll.RemittancePayment) (payroll.StatutoryRemittance, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE statutory_remittances
		SET status = 'paid', payment_reference = $3, paid_at = $4, paid_by = $5, updated_at = $4
		WHERE id = $1 AND company_id = $2 AND status = 'pending'
		RETURNING ` + remittanceColumns

	paid, err := scanRemittance(q.QueryRow(ctx, query,
		payment.RemittanceID, companyID, payment.Reference, payment.At, payment.ActorID,
	))
	if err == nil {
		return paid, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return payroll.StatutoryRemittance{}, fmt.Errorf("failed to mark remittance paid: %w", err)
	}

	var status string
	err = q.QueryRow(ctx,
		`SELECT status FROM statutory_remittances WHERE id = $1 AND company_id = $2`,
		payment.RemittanceID, companyID,
	).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return payroll.StatutoryRemittance{}, payroll.ErrRemittanceNotFound
	}
	if err != nil {
		return payroll.StatutoryRemittance{}, fmt.Errorf("failed to get remittance status: %w", err)
	}
	return payroll.StatutoryRemittance{}, fmt.Errorf("%w: %s", payroll.ErrRemittanceAlreadyPaid, payment.RemittanceID)
}

func collectRemittances(rows pgx.Rows) ([]payroll.StatutoryRemittance, error) {
	remittances := make([]payroll.StatutoryRemittance, 0)
	for rows.Next() {
		rem, err := scanRemittance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan remittance: %w", err)
		}
		remittances = append(remittances, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate remittances: %w", err)
	}
	return remittances, nil
}
