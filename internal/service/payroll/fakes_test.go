package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
)

// memoryRunRepo mirrors the conditional writes of the Postgres store.
type memoryRunRepo struct {
	mu        sync.Mutex
	runs      map[string]payroll.PayrollRun
	payslips  map[string][]payroll.Payslip
	saveCalls int
	// failSaves makes the next N SaveCalculation calls fail before writing anything
	failSaves int
}

func newMemoryRunRepo() *memoryRunRepo {
	return &memoryRunRepo{
		runs:     make(map[string]payroll.PayrollRun),
		payslips: make(map[string][]payroll.Payslip),
	}
}

func (r *memoryRunRepo) CreateRun(ctx context.Context, run payroll.PayrollRun) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.runs {
		if existing.CompanyID == run.CompanyID && existing.PeriodMonth == run.PeriodMonth && existing.PeriodYear == run.PeriodYear {
			return payroll.PayrollRun{}, payroll.ErrDuplicateRun
		}
	}
	r.runs[run.ID] = run
	return run, nil
}

func (r *memoryRunRepo) GetRunByID(ctx context.Context, id string, companyID string) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok || run.CompanyID != companyID {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	return run, nil
}

func (r *memoryRunRepo) GetRunByPeriod(ctx context.Context, companyID string, month, year int) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.CompanyID == companyID && run.PeriodMonth == month && run.PeriodYear == year {
			return run, nil
		}
	}
	return payroll.PayrollRun{}, payroll.ErrRunNotFound
}

func (r *memoryRunRepo) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) ([]payroll.PayrollRun, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []payroll.PayrollRun
	for _, run := range r.runs {
		if run.CompanyID != companyID {
			continue
		}
		if filter.Status != nil && string(run.Status) != *filter.Status {
			continue
		}
		if filter.PeriodYear != nil && run.PeriodYear != *filter.PeriodYear {
			continue
		}
		matched = append(matched, run)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.PeriodYear != b.PeriodYear {
			return a.PeriodYear > b.PeriodYear
		}
		return a.PeriodMonth > b.PeriodMonth
	})

	total := int64(len(matched))
	start := (filter.Page - 1) * filter.Limit
	if start >= len(matched) {
		return []payroll.PayrollRun{}, total, nil
	}
	end := start + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *memoryRunRepo) SaveCalculation(ctx context.Context, run payroll.PayrollRun, payslips []payroll.Payslip) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++

	if r.failSaves > 0 {
		r.failSaves--
		return payroll.PayrollRun{}, errors.New("connection reset by peer")
	}

	current, ok := r.runs[run.ID]
	if !ok || current.CompanyID != run.CompanyID {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	if current.Status != payroll.RunStatusDraft {
		return payroll.PayrollRun{}, &payroll.StateError{Op: payroll.OpProcess, RunID: run.ID, Current: current.Status, Required: payroll.RunStatusDraft}
	}

	seen := make(map[string]bool)
	for _, p := range payslips {
		if seen[p.EmployeeID] {
			return payroll.PayrollRun{}, fmt.Errorf("duplicate payslip for employee %s", p.EmployeeID)
		}
		seen[p.EmployeeID] = true
	}

	r.runs[run.ID] = run
	r.payslips[run.ID] = append([]payroll.Payslip(nil), payslips...)
	return run, nil
}

func (r *memoryRunRepo) UpdateRunStatus(ctx context.Context, companyID string, update payroll.RunStatusUpdate) (payroll.PayrollRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[update.RunID]
	if !ok || run.CompanyID != companyID {
		return payroll.PayrollRun{}, payroll.ErrRunNotFound
	}
	if run.Status != update.From {
		return payroll.PayrollRun{}, &payroll.StateError{Op: update.Op, RunID: run.ID, Current: run.Status, Required: update.From}
	}

	at := update.At
	run.Status = update.To
	run.UpdatedAt = at
	switch update.To {
	case payroll.RunStatusApproved:
		run.ApprovedAt = &at
		run.ApprovedBy = update.ActorID
	case payroll.RunStatusPaid:
		run.PaidAt = &at
		run.PaidBy = update.ActorID
	}
	r.runs[run.ID] = run

	for i := range r.payslips[run.ID] {
		r.payslips[run.ID][i].Status = update.To
	}
	return run, nil
}

func (r *memoryRunRepo) ListPayslipsByRun(ctx context.Context, runID string, companyID string) ([]payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok || run.CompanyID != companyID {
		return nil, payroll.ErrRunNotFound
	}
	return append([]payroll.Payslip(nil), r.payslips[runID]...), nil
}

func (r *memoryRunRepo) GetPayslipByID(ctx context.Context, id string, companyID string) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, slips := range r.payslips {
		for _, p := range slips {
			if p.ID == id && p.CompanyID == companyID {
				return p, nil
			}
		}
	}
	return payroll.Payslip{}, payroll.ErrPayslipNotFound
}

func (r *memoryRunRepo) payslipCount(runID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payslips[runID])
}

type memoryDirectory struct {
	employees map[string][]payroll.CompensationRecord
	delay     time.Duration
}

func (d *memoryDirectory) ListEligibleEmployees(ctx context.Context, companyID string, periodStart, periodEnd time.Time) ([]payroll.CompensationRecord, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.employees[companyID], nil
}

type staticProvider struct {
	table taxtable.TaxTable
}

func (p staticProvider) GetActiveTable(effectiveDate time.Time) (taxtable.TaxTable, error) {
	if p.table.Version == "" || p.table.EffectiveFrom.After(effectiveDate) {
		return taxtable.TaxTable{}, taxtable.ErrNoTaxTable
	}
	return p.table.Clone(), nil
}

func (p staticProvider) ListTables() []taxtable.TaxTable { return []taxtable.TaxTable{p.table} }

func (p staticProvider) Publish(ctx context.Context, table taxtable.TaxTable) (taxtable.TaxTable, error) {
	return taxtable.TaxTable{}, errors.New("read-only provider")
}

func (p staticProvider) Reload(ctx context.Context) error { return nil }

type memoryRemittanceRepo struct {
	mu   sync.Mutex
	rows map[string]payroll.StatutoryRemittance
}

func newMemoryRemittanceRepo() *memoryRemittanceRepo {
	return &memoryRemittanceRepo{rows: make(map[string]payroll.StatutoryRemittance)}
}

func remittanceKey(r payroll.StatutoryRemittance) string {
	return fmt.Sprintf("%s/%s/%d/%d", r.CompanyID, r.Type, r.PeriodYear, r.PeriodMonth)
}

func (r *memoryRemittanceRepo) UpsertRemittances(ctx context.Context, remittances []payroll.StatutoryRemittance) ([]payroll.StatutoryRemittance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]payroll.StatutoryRemittance, 0, len(remittances))
	for _, rem := range remittances {
		if existing, ok := r.rows[remittanceKey(rem)]; ok && existing.Status == payroll.RemittanceStatusPaid {
			return nil, payroll.ErrRemittanceAlreadyPaid
		}
	}
	for _, rem := range remittances {
		key := remittanceKey(rem)
		if existing, ok := r.rows[key]; ok {
			rem.ID = existing.ID
			rem.CreatedAt = existing.CreatedAt
		}
		r.rows[key] = rem
		out = append(out, rem)
	}
	return out, nil
}

func (r *memoryRemittanceRepo) ListRemittancesByRun(ctx context.Context, runID string, companyID string) ([]payroll.StatutoryRemittance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []payroll.StatutoryRemittance
	for _, rem := range r.rows {
		if rem.PayrollRunID == runID && rem.CompanyID == companyID {
			out = append(out, rem)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (r *memoryRemittanceRepo) ListPendingRemittances(ctx context.Context, companyID string, window payroll.DueWindow) ([]payroll.StatutoryRemittance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []payroll.StatutoryRemittance
	for _, rem := range r.rows {
		if rem.CompanyID != companyID || rem.Status != payroll.RemittanceStatusPending {
			continue
		}
		if window.From != nil && rem.DueDate.Before(*window.From) {
			continue
		}
		if !rem.DueDate.Before(window.Before) {
			continue
		}
		out = append(out, rem)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Type < out[j].Type
	})
	return out, nil
}

func (r *memoryRemittanceRepo) MarkRemittancePaid(ctx context.Context, companyID string, payment payroll.RemittancePayment) (payroll.StatutoryRemittance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, rem := range r.rows {
		if rem.ID != payment.RemittanceID || rem.CompanyID != companyID {
			continue
		}
		if rem.Status != payroll.RemittanceStatusPending {
			return payroll.StatutoryRemittance{}, payroll.ErrRemittanceAlreadyPaid
		}
		at := payment.At
		ref := payment.Reference
		rem.Status = payroll.RemittanceStatusPaid
		rem.PaymentReference = &ref
		rem.PaidAt = &at
		rem.PaidBy = payment.ActorID
		rem.UpdatedAt = at
		r.rows[key] = rem
		return rem, nil
	}
	return payroll.StatutoryRemittance{}, payroll.ErrRemittanceNotFound
}
