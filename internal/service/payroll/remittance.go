package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/google/uuid"
)

// remittanceDueDay is the day of the month following the pay period on which
// statutory deductions must reach the agency.
const remittanceDueDay = 10

var remittanceAgencies = map[payroll.RemittanceType]string{
	payroll.RemittanceTypePAYE:        "Federal Inland Revenue Service (FIRS)",
	payroll.RemittanceTypePension:     "Pension Fund Administrator (PFA)",
	payroll.RemittanceTypeHousingFund: "Federal Mortgage Bank of Nigeria (FMBN)",
}

// RemittanceDueDate is the 10th of the month after the pay period.
func RemittanceDueDate(month, year int) time.Time {
	return time.Date(year, time.Month(month)+1, remittanceDueDay, 0, 0, 0, 0, time.UTC)
}

// BuildRemittances derives the amounts owed to each statutory agency from a processed
// run's totals. Deductions that total zero produce no remittance.
func BuildRemittances(run payroll.PayrollRun, actorID *string, now time.Time) ([]payroll.StatutoryRemittance, error) {
	dueDate := RemittanceDueDate(run.PeriodMonth, run.PeriodYear)
	totals := run.Totals

	candidates := []payroll.StatutoryRemittance{
		{Type: payroll.RemittanceTypePAYE, Amount: totals.PAYE, EmployeeContribution: totals.PAYE},
		{
			Type:                 payroll.RemittanceTypePension,
			Amount:               totals.PensionEmployee.Add(totals.PensionEmployer),
			EmployeeContribution: totals.PensionEmployee,
			EmployerContribution: totals.PensionEmployer,
		},
		{Type: payroll.RemittanceTypeHousingFund, Amount: totals.HousingFund, EmployeeContribution: totals.HousingFund},
	}

	remittances := make([]payroll.StatutoryRemittance, 0, len(candidates))
	for _, r := range candidates {
		if !r.Amount.IsPositive() {
			continue
		}
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("failed to generate remittance id: %w", err)
		}
		r.ID = id.String()
		r.CompanyID = run.CompanyID
		r.PayrollRunID = run.ID
		r.PeriodMonth = run.PeriodMonth
		r.PeriodYear = run.PeriodYear
		r.Agency = remittanceAgencies[r.Type]
		r.DueDate = dueDate
		r.Status = payroll.RemittanceStatusPending
		r.CreatedBy = actorID
		r.CreatedAt = now
		r.UpdatedAt = now
		remittances = append(remittances, r)
	}
	return remittances, nil
}

// GenerateRemittances records (or refreshes) the statutory remittances of a processed
// run. Regenerating for the same period replaces the amounts of pending remittances
// and fails with ErrRemittanceAlreadyPaid once one of them has been paid.
func (s *PayrollServiceImpl) GenerateRemittances(ctx context.Context, req payroll.RunActionRequest) ([]payroll.RemittanceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, runLockKey(req.RunID))
	if err != nil {
		return nil, fmt.Errorf("failed to acquire payroll run lock: %w", err)
	}
	defer unlock()

	run, err := s.runRepo.GetRunByID(ctx, req.RunID, req.CompanyID)
	if err != nil {
		return nil, err
	}
	if !run.Status.IsProcessed() {
		return nil, &payroll.StateError{
			Op:       "generate_remittances",
			RunID:    run.ID,
			Current:  run.Status,
			Required: payroll.RunStatusCalculated,
		}
	}

	remittances, err := BuildRemittances(run, optionalString(req.ActorID), s.now())
	if err != nil {
		return nil, err
	}
	if len(remittances) == 0 {
		return []payroll.RemittanceResponse{}, nil
	}

	saved, err := s.remittanceRepo.UpsertRemittances(ctx, remittances)
	if err != nil {
		return nil, err
	}

	s.logger.Info("statutory remittances generated",
		"run_id", run.ID,
		"company_id", run.CompanyID,
		"count", len(saved),
	)

	responses := make([]payroll.RemittanceResponse, 0, len(saved))
	for _, r := range saved {
		responses = append(responses, toRemittanceResponse(r))
	}
	return responses, nil
}

// ListRunRemittances returns the remittances generated from one run.
func (s *PayrollServiceImpl) ListRunRemittances(ctx context.Context, companyID string, runID string) ([]payroll.RemittanceResponse, error) {
	if _, err := s.runRepo.GetRunByID(ctx, runID, companyID); err != nil {
		return nil, err
	}

	remittances, err := s.remittanceRepo.ListRemittancesByRun(ctx, runID, companyID)
	if err != nil {
		return nil, err
	}

	responses := make([]payroll.RemittanceResponse, 0, len(remittances))
	for _, r := range remittances {
		responses = append(responses, toRemittanceResponse(r))
	}
	return responses, nil
}

// ListDueRemittances returns the company's pending remittances that are overdue as of
// req.AsOf, or that fall due within req.Days of it.
func (s *PayrollServiceImpl) ListDueRemittances(ctx context.Context, req payroll.DueRemittancesRequest) ([]payroll.RemittanceResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	today := truncateToDay(req.AsOf)
	window := payroll.DueWindow{Before: today}
	if req.View == payroll.RemittanceViewUpcoming {
		window = payroll.DueWindow{From: &today, Before: today.AddDate(0, 0, req.Days+1)}
	}

	remittances, err := s.remittanceRepo.ListPendingRemittances(ctx, req.CompanyID, window)
	if err != nil {
		return nil, err
	}

	responses := make([]payroll.RemittanceResponse, 0, len(remittances))
	for _, r := range remittances {
		resp := toRemittanceResponse(r)
		if req.View == payroll.RemittanceViewOverdue {
			resp.DaysOverdue = int(today.Sub(truncateToDay(r.DueDate)).Hours() / 24)
		}
		responses = append(responses, resp)
	}
	return responses, nil
}

// MarkRemittancePaid records the agency payment of a pending remittance.
func (s *PayrollServiceImpl) MarkRemittancePaid(ctx context.Context, req payroll.MarkRemittancePaidRequest) (payroll.RemittanceResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RemittanceResponse{}, err
	}

	paid, err := s.remittanceRepo.MarkRemittancePaid(ctx, req.CompanyID, payroll.RemittancePayment{
		RemittanceID: req.RemittanceID,
		Reference:    req.PaymentReference,
		ActorID:      optionalString(req.ActorID),
		At:           s.now(),
	})
	if err != nil {
		return payroll.RemittanceResponse{}, err
	}

	s.logger.Info("statutory remittance paid",
		"remittance_id", paid.ID,
		"company_id", paid.CompanyID,
		"type", paid.Type,
		"amount", paid.Amount.String(),
		"actor_id", req.ActorID,
	)
	return toRemittanceResponse(paid), nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
