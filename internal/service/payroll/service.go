package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/metrics"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/runlock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultParallelism = 8
	defaultPageLimit   = 20
	maxPageLimit       = 100
)

// Run lifecycle events published to the company's subscribers.
const (
	EventRunCalculated = "payroll_run.calculated"
	EventRunApproved   = "payroll_run.approved"
	EventRunPaid       = "payroll_run.paid"
)

var transitionEvents = map[string]string{
	payroll.OpProcess:  EventRunCalculated,
	payroll.OpApprove:  EventRunApproved,
	payroll.OpMarkPaid: EventRunPaid,
}

type PayrollServiceImpl struct {
	runRepo        payroll.PayrollRunRepository
	directory      payroll.CompensationDirectory
	remittanceRepo payroll.RemittanceRepository
	taxTables      taxtable.Provider
	locker         runlock.Locker
	builder        *PayslipBuilder

	events      *sse.Hub
	metrics     *metrics.Payroll
	logger      *slog.Logger
	parallelism int
	now         func() time.Time
}

type Option func(*PayrollServiceImpl)

// WithParallelism bounds how many payslips are built concurrently per run.
func WithParallelism(n int) Option {
	return func(s *PayrollServiceImpl) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

func WithEventHub(hub *sse.Hub) Option {
	return func(s *PayrollServiceImpl) { s.events = hub }
}

func WithMetrics(m *metrics.Payroll) Option {
	return func(s *PayrollServiceImpl) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *PayrollServiceImpl) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *PayrollServiceImpl) { s.now = now }
}

func NewPayrollService(
	runRepo payroll.PayrollRunRepository,
	directory payroll.CompensationDirectory,
	remittanceRepo payroll.RemittanceRepository,
	taxTables taxtable.Provider,
	locker runlock.Locker,
	opts ...Option,
) payroll.PayrollService {
	s := &PayrollServiceImpl{
		runRepo:        runRepo,
		directory:      directory,
		remittanceRepo: remittanceRepo,
		taxTables:      taxTables,
		locker:         locker,
		builder:        NewPayslipBuilder(),
		logger:         slog.Default(),
		parallelism:    defaultParallelism,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = s.logger.With("component", "payroll")
	s.builder.now = s.now
	return s
}

func runLockKey(runID string) string {
	return "payroll-run:" + runID
}

// ========== RUN LIFECYCLE ==========

func (s *PayrollServiceImpl) CreateRun(ctx context.Context, req payroll.CreateRunRequest) (payroll.RunSummaryResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunSummaryResponse{}, err
	}
	paymentDate, _ := time.Parse("2006-01-02", req.PaymentDate)

	_, err := s.runRepo.GetRunByPeriod(ctx, req.CompanyID, req.PeriodMonth, req.PeriodYear)
	if err == nil {
		return payroll.RunSummaryResponse{}, fmt.Errorf("%w: %04d-%02d", payroll.ErrDuplicateRun, req.PeriodYear, req.PeriodMonth)
	}
	if !errors.Is(err, payroll.ErrRunNotFound) {
		return payroll.RunSummaryResponse{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.RunSummaryResponse{}, fmt.Errorf("failed to generate run id: %w", err)
	}

	now := s.now()
	run := payroll.PayrollRun{
		ID:               id.String(),
		CompanyID:        req.CompanyID,
		PeriodMonth:      req.PeriodMonth,
		PeriodYear:       req.PeriodYear,
		PaymentDate:      paymentDate,
		Status:           payroll.RunStatusDraft,
		ProcessingErrors: []payroll.EmployeeError{},
		CreatedBy:        optionalString(req.CreatedBy),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.runRepo.CreateRun(ctx, run)
	if err != nil {
		return payroll.RunSummaryResponse{}, err
	}

	s.logger.Info("payroll run created",
		"run_id", created.ID,
		"company_id", created.CompanyID,
		"period", fmt.Sprintf("%04d-%02d", created.PeriodYear, created.PeriodMonth),
	)
	return toRunSummary(created), nil
}

// ProcessRun builds one payslip per eligible employee and moves the run from draft to
// calculated. Employees whose compensation cannot be calculated are reported in the
// response and do not stop the batch. The payslips and the status change are
// committed together, so a failure at any point leaves the run in draft.
func (s *PayrollServiceImpl) ProcessRun(ctx context.Context, req payroll.RunActionRequest) (payroll.ProcessRunResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.ProcessRunResponse{}, err
	}
	start := time.Now()

	unlock, err := s.locker.Lock(ctx, runLockKey(req.RunID))
	if err != nil {
		return payroll.ProcessRunResponse{}, fmt.Errorf("failed to acquire payroll run lock: %w", err)
	}
	defer unlock()

	run, err := s.runRepo.GetRunByID(ctx, req.RunID, req.CompanyID)
	if err != nil {
		return payroll.ProcessRunResponse{}, err
	}
	if _, err := payroll.Transition(payroll.OpProcess, run.ID, run.Status); err != nil {
		s.metrics.ObserveTransition(payroll.OpProcess, "rejected")
		return payroll.ProcessRunResponse{}, err
	}

	table, err := s.taxTables.GetActiveTable(run.PeriodEnd())
	if err != nil {
		s.metrics.ObserveTransition(payroll.OpProcess, "error")
		return payroll.ProcessRunResponse{}, err
	}

	records, err := s.directory.ListEligibleEmployees(ctx, run.CompanyID, run.PeriodStart(), run.PeriodEnd())
	if err != nil {
		s.metrics.ObserveTransition(payroll.OpProcess, "error")
		return payroll.ProcessRunResponse{}, fmt.Errorf("failed to list eligible employees: %w", err)
	}
	if len(records) == 0 {
		s.metrics.ObserveTransition(payroll.OpProcess, "rejected")
		return payroll.ProcessRunResponse{}, payroll.ErrNoEligibleEmployees
	}

	payslips, failures := s.buildPayslips(run, table, records)
	s.metrics.ObserveBatch(len(payslips), failureCodes(failures))

	if len(payslips) == 0 {
		s.metrics.ObserveTransition(payroll.OpProcess, "rejected")
		s.logger.Warn("payroll run produced no payslips",
			"run_id", run.ID,
			"company_id", run.CompanyID,
			"failures", len(failures),
		)
		return payroll.ProcessRunResponse{
			Run:    toRunSummary(run),
			Totals: payroll.RunTotals{},
			Errors: failures,
		}, payroll.ErrNoPayslipsGenerated
	}

	totals := payroll.RunTotals{}
	for _, p := range payslips {
		totals = totals.Add(p)
	}

	calculatedAt := s.now()
	version := table.Version
	run.Status = payroll.RunStatusCalculated
	run.EmployeeCount = len(payslips)
	run.Totals = totals
	run.TaxTableVersion = &version
	run.ProcessingErrors = failures
	run.CalculatedAt = &calculatedAt
	run.UpdatedAt = calculatedAt

	saved, err := s.runRepo.SaveCalculation(ctx, run, payslips)
	if err != nil {
		s.metrics.ObserveTransition(payroll.OpProcess, "error")
		return payroll.ProcessRunResponse{}, err
	}

	s.metrics.ObserveTransition(payroll.OpProcess, "ok")
	s.metrics.ObserveProcessLatency(time.Since(start))
	s.logger.Info("payroll run calculated",
		"run_id", saved.ID,
		"company_id", saved.CompanyID,
		"tax_table_version", version,
		"employee_count", saved.EmployeeCount,
		"failures", len(failures),
		"total_net", saved.Totals.Net.String(),
		"duration", time.Since(start),
	)

	summary := toRunSummary(saved)
	s.publish(payroll.OpProcess, summary)

	return payroll.ProcessRunResponse{
		Run:           summary,
		EmployeeCount: saved.EmployeeCount,
		Totals:        saved.Totals,
		Errors:        failures,
	}, nil
}

type buildOutcome struct {
	payslip payroll.Payslip
	err     error
}

// buildPayslips maps every record to a payslip concurrently, then partitions the
// outcomes into successes and failures in directory order.
func (s *PayrollServiceImpl) buildPayslips(run payroll.PayrollRun, table taxtable.TaxTable, records []payroll.CompensationRecord) ([]payroll.Payslip, []payroll.EmployeeError) {
	outcomes := make([]buildOutcome, len(records))

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, record := range records {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = buildOutcome{err: fmt.Errorf("payslip build panicked: %v", r)}
				}
			}()
			p, err := s.builder.Build(run, table, record)
			outcomes[i] = buildOutcome{payslip: p, err: err}
			return nil
		})
	}
	_ = g.Wait()

	payslips := make([]payroll.Payslip, 0, len(records))
	failures := make([]payroll.EmployeeError, 0)
	for i, o := range outcomes {
		if o.err != nil {
			failures = append(failures, payroll.EmployeeError{
				EmployeeID:   records[i].EmployeeID,
				EmployeeName: records[i].EmployeeName,
				Code:         payroll.ErrorCode(o.err),
				Message:      o.err.Error(),
			})
			continue
		}
		payslips = append(payslips, o.payslip)
	}
	return payslips, failures
}

func failureCodes(failures []payroll.EmployeeError) []string {
	codes := make([]string, len(failures))
	for i, f := range failures {
		codes[i] = f.Code
	}
	return codes
}

// ApproveRun locks a calculated run's payslips against further change.
func (s *PayrollServiceImpl) ApproveRun(ctx context.Context, req payroll.RunActionRequest) (payroll.RunSummaryResponse, error) {
	return s.advance(ctx, payroll.OpApprove, req)
}

// MarkRunPaid moves an approved run to its terminal state.
func (s *PayrollServiceImpl) MarkRunPaid(ctx context.Context, req payroll.RunActionRequest) (payroll.RunSummaryResponse, error) {
	return s.advance(ctx, payroll.OpMarkPaid, req)
}

func (s *PayrollServiceImpl) advance(ctx context.Context, op string, req payroll.RunActionRequest) (payroll.RunSummaryResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.RunSummaryResponse{}, err
	}

	unlock, err := s.locker.Lock(ctx, runLockKey(req.RunID))
	if err != nil {
		return payroll.RunSummaryResponse{}, fmt.Errorf("failed to acquire payroll run lock: %w", err)
	}
	defer unlock()

	run, err := s.runRepo.GetRunByID(ctx, req.RunID, req.CompanyID)
	if err != nil {
		return payroll.RunSummaryResponse{}, err
	}

	to, err := payroll.Transition(op, run.ID, run.Status)
	if err != nil {
		s.metrics.ObserveTransition(op, "rejected")
		return payroll.RunSummaryResponse{}, err
	}

	updated, err := s.runRepo.UpdateRunStatus(ctx, req.CompanyID, payroll.RunStatusUpdate{
		Op:      op,
		RunID:   run.ID,
		From:    run.Status,
		To:      to,
		ActorID: optionalString(req.ActorID),
		At:      s.now(),
	})
	if err != nil {
		s.metrics.ObserveTransition(op, "error")
		return payroll.RunSummaryResponse{}, err
	}

	s.metrics.ObserveTransition(op, "ok")
	s.logger.Info("payroll run status changed",
		"run_id", updated.ID,
		"company_id", updated.CompanyID,
		"op", op,
		"from", run.Status,
		"to", updated.Status,
		"actor_id", req.ActorID,
	)

	summary := toRunSummary(updated)
	s.publish(op, summary)
	return summary, nil
}

func (s *PayrollServiceImpl) publish(op string, summary payroll.RunSummaryResponse) {
	if s.events == nil {
		return
	}
	s.events.Publish(sse.Event{
		CompanyID: summary.CompanyID,
		Event:     transitionEvents[op],
		Data:      summary,
	})
}

// ========== QUERIES ==========

func (s *PayrollServiceImpl) GetRun(ctx context.Context, companyID string, runID string) (payroll.RunDetailResponse, error) {
	run, err := s.runRepo.GetRunByID(ctx, runID, companyID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	payslips, err := s.runRepo.ListPayslipsByRun(ctx, runID, companyID)
	if err != nil {
		return payroll.RunDetailResponse{}, err
	}

	responses := make([]payroll.PayslipResponse, 0, len(payslips))
	for _, p := range payslips {
		responses = append(responses, toPayslipResponse(p))
	}

	return payroll.RunDetailResponse{
		RunSummaryResponse: toRunSummary(run),
		Payslips:           responses,
	}, nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, companyID string, filter payroll.RunFilter) (payroll.ListRunResponse, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}
	if filter.Status != nil && !payroll.RunStatus(*filter.Status).IsValid() {
		return payroll.ListRunResponse{}, validator.ValidationErrors{
			{Field: "status", Message: "must be one of draft, calculated, approved, paid"},
		}
	}

	runs, total, err := s.runRepo.ListRuns(ctx, companyID, filter)
	if err != nil {
		return payroll.ListRunResponse{}, err
	}

	data := make([]payroll.RunSummaryResponse, 0, len(runs))
	for _, r := range runs {
		data = append(data, toRunSummary(r))
	}

	return payroll.ListRunResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) GetPayslip(ctx context.Context, companyID string, payslipID string) (payroll.PayslipResponse, error) {
	p, err := s.runRepo.GetPayslipByID(ctx, payslipID, companyID)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}
	return toPayslipResponse(p), nil
}

// ========== CALCULATOR ==========

// CalculateStandalone previews a calculation without touching any run. The tax table
// is the one in force on req.EffectiveDate.
func (s *PayrollServiceImpl) CalculateStandalone(ctx context.Context, req payroll.CalculateRequest) (payroll.CalculationResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.CalculationResult{}, err
	}
	effectiveDate, _ := time.Parse("2006-01-02", req.EffectiveDate)

	table, err := s.taxTables.GetActiveTable(effectiveDate)
	if err != nil {
		return payroll.CalculationResult{}, err
	}

	return CalculateRecord(table, req.ToCompensationRecord(), req.GrossSalary, req.PayFrequency())
}

func (s *PayrollServiceImpl) QuickEstimate(ctx context.Context, req payroll.QuickEstimateRequest) (payroll.CalculationResult, error) {
	if err := req.Validate(); err != nil {
		return payroll.CalculationResult{}, err
	}
	effectiveDate, _ := time.Parse("2006-01-02", req.EffectiveDate)

	table, err := s.taxTables.GetActiveTable(effectiveDate)
	if err != nil {
		return payroll.CalculationResult{}, err
	}

	return QuickEstimate(table, req.GrossSalary, req.PayFrequency())
}
