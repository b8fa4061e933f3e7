package payroll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/runlock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testCompanyID = "0192a6f0-0000-7000-8000-000000000001"
	otherCompany  = "0192a6f0-0000-7000-8000-000000000002"
	testActorID   = "0192a6f0-0000-7000-8000-0000000000aa"
)

var fixedNow = time.Date(2025, 2, 3, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	svc         payroll.PayrollService
	runs        *memoryRunRepo
	directory   *memoryDirectory
	remittances *memoryRemittanceRepo
	hub         *sse.Hub
}

func newTestEnv(t *testing.T, records ...payroll.CompensationRecord) *testEnv {
	t.Helper()
	env := &testEnv{
		runs:        newMemoryRunRepo(),
		directory:   &memoryDirectory{employees: map[string][]payroll.CompensationRecord{testCompanyID: records}},
		remittances: newMemoryRemittanceRepo(),
		hub:         sse.NewHub(),
	}
	env.svc = NewPayrollService(
		env.runs,
		env.directory,
		env.remittances,
		staticProvider{table: defaultTable()},
		runlock.NewKeyedLocker(),
		WithParallelism(2),
		WithEventHub(env.hub),
		WithClock(func() time.Time { return fixedNow }),
	)
	return env
}

func staffRecords() []payroll.CompensationRecord {
	ada := monthlyRecord("400000", "200000", "100000", "100000")
	ada.EmployeeID = "emp-ada"

	bola := monthlyRecord("150000", "50000", "30000", "0")
	bola.EmployeeID = "emp-bola"
	bola.EmployeeName = "Bola Ade"

	chidi := monthlyRecord("0", "80000", "20000", "0")
	chidi.EmployeeID = "emp-chidi"
	chidi.EmployeeName = "Chidi Eze"
	chidi.BasicSalary = nil

	return []payroll.CompensationRecord{ada, bola, chidi}
}

func (e *testEnv) createRun(t *testing.T, month, year int) payroll.RunSummaryResponse {
	t.Helper()
	run, err := e.svc.CreateRun(context.Background(), payroll.CreateRunRequest{
		CompanyID:   testCompanyID,
		CreatedBy:   testActorID,
		PeriodMonth: month,
		PeriodYear:  year,
		PaymentDate: "2025-01-28",
	})
	require.NoError(t, err)
	return run
}

func action(runID string) payroll.RunActionRequest {
	return payroll.RunActionRequest{CompanyID: testCompanyID, RunID: runID, ActorID: testActorID}
}

func TestCreateRun(t *testing.T) {
	env := newTestEnv(t)

	run := env.createRun(t, 1, 2025)
	assert.Equal(t, string(payroll.RunStatusDraft), run.Status)
	assert.Equal(t, "2025-01-28", run.PaymentDate)
	assert.True(t, validator.IsValidUUID(run.ID))

	t.Run("duplicate period", func(t *testing.T) {
		_, err := env.svc.CreateRun(context.Background(), payroll.CreateRunRequest{
			CompanyID:   testCompanyID,
			PeriodMonth: 1,
			PeriodYear:  2025,
			PaymentDate: "2025-01-30",
		})
		assert.ErrorIs(t, err, payroll.ErrDuplicateRun)
	})

	t.Run("same period for another company", func(t *testing.T) {
		_, err := env.svc.CreateRun(context.Background(), payroll.CreateRunRequest{
			CompanyID:   otherCompany,
			PeriodMonth: 1,
			PeriodYear:  2025,
			PaymentDate: "2025-01-30",
		})
		assert.NoError(t, err)
	})

	t.Run("invalid period", func(t *testing.T) {
		_, err := env.svc.CreateRun(context.Background(), payroll.CreateRunRequest{
			CompanyID:   testCompanyID,
			PeriodMonth: 13,
			PeriodYear:  2025,
			PaymentDate: "2025-01-30",
		})
		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[:2]...)
	run := env.createRun(t, 1, 2025)

	_, err := env.svc.ApproveRun(ctx, action(run.ID))
	var stateErr *payroll.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, payroll.RunStatusDraft, stateErr.Current)
	assert.Equal(t, payroll.RunStatusCalculated, stateErr.Required)

	_, err = env.svc.MarkRunPaid(ctx, action(run.ID))
	assert.ErrorIs(t, err, payroll.ErrInvalidRunState)

	processed, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.NoError(t, err)
	assert.Equal(t, string(payroll.RunStatusCalculated), processed.Run.Status)
	assert.Equal(t, 2, processed.EmployeeCount)
	assert.Empty(t, processed.Errors)
	require.NotNil(t, processed.Run.TaxTableVersion)
	assert.Equal(t, defaultTable().Version, *processed.Run.TaxTableVersion)

	_, err = env.svc.ProcessRun(ctx, action(run.ID))
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, payroll.RunStatusCalculated, stateErr.Current)
	assert.Equal(t, 2, env.runs.payslipCount(run.ID), "payslips must not be duplicated")

	_, err = env.svc.MarkRunPaid(ctx, action(run.ID))
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, payroll.RunStatusApproved, stateErr.Required)

	approved, err := env.svc.ApproveRun(ctx, action(run.ID))
	require.NoError(t, err)
	assert.Equal(t, string(payroll.RunStatusApproved), approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, testActorID, *approved.ApprovedBy)

	paid, err := env.svc.MarkRunPaid(ctx, action(run.ID))
	require.NoError(t, err)
	assert.Equal(t, string(payroll.RunStatusPaid), paid.Status)
	assert.NotNil(t, paid.PaidAt)

	for _, op := range []func(context.Context, payroll.RunActionRequest) (payroll.RunSummaryResponse, error){
		env.svc.ApproveRun, env.svc.MarkRunPaid,
	} {
		_, err := op(ctx, action(run.ID))
		assert.ErrorIs(t, err, payroll.ErrInvalidRunState)
	}

	detail, err := env.svc.GetRun(ctx, testCompanyID, run.ID)
	require.NoError(t, err)
	require.Len(t, detail.Payslips, 2)
	for _, p := range detail.Payslips {
		assert.Equal(t, string(payroll.RunStatusPaid), p.Status)
	}
}

func TestProcessRun_TotalsMatchPayslips(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[:2]...)
	run := env.createRun(t, 1, 2025)

	processed, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.NoError(t, err)

	detail, err := env.svc.GetRun(ctx, testCompanyID, run.ID)
	require.NoError(t, err)

	var gross, net, paye, pension decimal.Decimal
	for _, p := range detail.Payslips {
		gross = gross.Add(p.GrossSalary)
		net = net.Add(p.NetSalary)
		paye = paye.Add(p.PAYETax)
		pension = pension.Add(p.PensionEmployee)
		assert.Equal(t, run.ID, p.PayrollRunID)
		assert.True(t, p.GrossSalary.Sub(p.PAYETax).Sub(p.PensionEmployee).Sub(p.HousingFundEmployee).Equal(p.NetSalary))
	}
	assert.True(t, processed.Totals.Gross.Equal(gross))
	assert.True(t, processed.Totals.Net.Equal(net))
	assert.True(t, processed.Totals.PAYE.Equal(paye))
	assert.True(t, processed.Totals.PensionEmployee.Equal(pension))
	assert.True(t, processed.Totals.Gross.Equal(d("1030000")))
}

func TestProcessRun_PartialBatch(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()...)
	run := env.createRun(t, 1, 2025)

	processed, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.NoError(t, err)

	assert.Equal(t, 2, processed.EmployeeCount)
	require.Len(t, processed.Errors, 1)
	assert.Equal(t, "emp-chidi", processed.Errors[0].EmployeeID)
	assert.Equal(t, payroll.CodeIncompleteCompensation, processed.Errors[0].Code)

	detail, err := env.svc.GetRun(ctx, testCompanyID, run.ID)
	require.NoError(t, err)
	assert.Len(t, detail.Payslips, 2)
	assert.Len(t, detail.ProcessingErrors, 1)
}

func TestProcessRun_NoPayslipsLeavesDraft(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[2])
	run := env.createRun(t, 1, 2025)

	processed, err := env.svc.ProcessRun(ctx, action(run.ID))
	assert.ErrorIs(t, err, payroll.ErrNoPayslipsGenerated)
	assert.Len(t, processed.Errors, 1)

	detail, err := env.svc.GetRun(ctx, testCompanyID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, string(payroll.RunStatusDraft), detail.Status)
	assert.Empty(t, detail.Payslips)
	assert.Zero(t, env.runs.saveCalls)
}

func TestProcessRun_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("no eligible employees", func(t *testing.T) {
		env := newTestEnv(t)
		run := env.createRun(t, 1, 2025)

		_, err := env.svc.ProcessRun(ctx, action(run.ID))
		assert.ErrorIs(t, err, payroll.ErrNoEligibleEmployees)
	})

	t.Run("no tax table for period", func(t *testing.T) {
		env := newTestEnv(t, staffRecords()[0])
		env.svc = NewPayrollService(env.runs, env.directory, env.remittances,
			staticProvider{}, runlock.NewKeyedLocker())
		run := env.createRun(t, 1, 2025)

		_, err := env.svc.ProcessRun(ctx, action(run.ID))
		assert.ErrorIs(t, err, taxtable.ErrNoTaxTable)

		detail, err := env.svc.GetRun(ctx, testCompanyID, run.ID)
		require.NoError(t, err)
		assert.Equal(t, string(payroll.RunStatusDraft), detail.Status)
	})

	t.Run("unknown run", func(t *testing.T) {
		env := newTestEnv(t, staffRecords()[0])
		_, err := env.svc.ProcessRun(ctx, action("0192a6f0-0000-7000-8000-00000000ffff"))
		assert.ErrorIs(t, err, payroll.ErrRunNotFound)
	})

	t.Run("run of another company", func(t *testing.T) {
		env := newTestEnv(t, staffRecords()[0])
		run := env.createRun(t, 1, 2025)

		_, err := env.svc.ProcessRun(ctx, payroll.RunActionRequest{CompanyID: otherCompany, RunID: run.ID})
		assert.ErrorIs(t, err, payroll.ErrRunNotFound)
		_, err = env.svc.GetRun(ctx, otherCompany, run.ID)
		assert.ErrorIs(t, err, payroll.ErrRunNotFound)
	})
}

func TestProcessRun_FailedCommitCanBeRetried(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[:2]...)
	run := env.createRun(t, 1, 2025)
	env.runs.failSaves = 1

	_, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.Error(t, err)

	detail, err := env.svc.GetRun(ctx, testCompanyID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, string(payroll.RunStatusDraft), detail.Status)
	assert.Empty(t, detail.Payslips)

	processed, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.NoError(t, err)
	assert.Equal(t, 2, processed.EmployeeCount)
	assert.Equal(t, 2, env.runs.payslipCount(run.ID))
}

func TestProcessRun_ConcurrentCallsCommitOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[:2]...)
	env.directory.delay = 5 * time.Millisecond
	run := env.createRun(t, 1, 2025)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.svc.ProcessRun(ctx, action(run.ID))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, payroll.ErrInvalidRunState)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, env.runs.saveCalls)
	assert.Equal(t, 2, env.runs.payslipCount(run.ID))
}

func TestProcessRun_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[0])
	events, unsubscribe := env.hub.Subscribe(testCompanyID)
	defer unsubscribe()

	run := env.createRun(t, 1, 2025)
	_, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.NoError(t, err)
	_, err = env.svc.ApproveRun(ctx, action(run.ID))
	require.NoError(t, err)

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case e := <-events:
			got = append(got, e.Event)
			summary, ok := e.Data.(payroll.RunSummaryResponse)
			require.True(t, ok)
			assert.Equal(t, run.ID, summary.ID)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for run event")
		}
	}
	assert.Equal(t, []string{EventRunCalculated, EventRunApproved}, got)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[0])
	for month := 1; month <= 3; month++ {
		env.createRun(t, month, 2025)
	}

	list, err := env.svc.ListRuns(ctx, testCompanyID, payroll.RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.TotalCount)
	assert.Equal(t, 1, list.Page)
	require.Len(t, list.Data, 2)
	assert.Equal(t, 3, list.Data[0].PeriodMonth)

	status := "paid"
	list, err = env.svc.ListRuns(ctx, testCompanyID, payroll.RunFilter{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, list.Data)

	bad := "cancelled"
	_, err = env.svc.ListRuns(ctx, testCompanyID, payroll.RunFilter{Status: &bad})
	var verrs validator.ValidationErrors
	assert.ErrorAs(t, err, &verrs)
}

func TestGetPayslip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[0])
	run := env.createRun(t, 1, 2025)
	_, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.NoError(t, err)

	detail, err := env.svc.GetRun(ctx, testCompanyID, run.ID)
	require.NoError(t, err)
	require.Len(t, detail.Payslips, 1)

	p, err := env.svc.GetPayslip(ctx, testCompanyID, detail.Payslips[0].ID)
	require.NoError(t, err)
	assert.True(t, p.PAYETax.Equal(d("118826.67")))
	assert.True(t, p.NetSalary.Equal(d("615173.33")))

	_, err = env.svc.GetPayslip(ctx, otherCompany, detail.Payslips[0].ID)
	assert.ErrorIs(t, err, payroll.ErrPayslipNotFound)
}

func TestCalculateStandalone(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	result, err := env.svc.CalculateStandalone(ctx, payroll.CalculateRequest{
		BasicSalary:        dp("400000"),
		HousingAllowance:   dp("200000"),
		TransportAllowance: dp("100000"),
		OtherAllowances:    dp("100000"),
		EffectiveDate:      "2025-01-31",
	})
	require.NoError(t, err)
	assert.True(t, result.Tax.AnnualPAYE.Equal(d("1425920")))
	assert.True(t, result.Net.Monthly.Equal(d("615173.33")))

	t.Run("negative amount", func(t *testing.T) {
		_, err := env.svc.CalculateStandalone(ctx, payroll.CalculateRequest{BasicSalary: dp("-1"), EffectiveDate: "2025-01-31"})
		var verrs validator.ValidationErrors
		assert.ErrorAs(t, err, &verrs)
	})

	t.Run("effective date is required", func(t *testing.T) {
		_, err := env.svc.CalculateStandalone(ctx, payroll.CalculateRequest{BasicSalary: dp("400000")})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.ToMap(), "effective_date")

		_, err = env.svc.QuickEstimate(ctx, payroll.QuickEstimateRequest{GrossSalary: d("1000")})
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.ToMap(), "effective_date")
	})

	t.Run("gross override below the components", func(t *testing.T) {
		_, err := env.svc.CalculateStandalone(ctx, payroll.CalculateRequest{
			GrossSalary:   dp("1000"),
			BasicSalary:   dp("1000000"),
			EffectiveDate: "2025-01-31",
		})
		var verrs validator.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs.ToMap(), "gross_salary")
	})

	t.Run("no table in force", func(t *testing.T) {
		_, err := env.svc.CalculateStandalone(ctx, payroll.CalculateRequest{
			BasicSalary:   dp("400000"),
			EffectiveDate: "2010-06-30",
		})
		assert.ErrorIs(t, err, taxtable.ErrNoTaxTable)
	})

	t.Run("contribution toggles", func(t *testing.T) {
		off := false
		result, err := env.svc.CalculateStandalone(ctx, payroll.CalculateRequest{
			BasicSalary:        dp("400000"),
			PensionEnabled:     &off,
			HousingFundEnabled: &off,
			EffectiveDate:      "2025-01-31",
		})
		require.NoError(t, err)
		assert.True(t, result.Pension.Employee.IsZero())
		assert.True(t, result.HousingFund.IsZero())
		assert.True(t, result.EmployerCost.NSITF.Equal(d("4000")))
	})

	estimate, err := env.svc.QuickEstimate(ctx, payroll.QuickEstimateRequest{GrossSalary: d("0"), EffectiveDate: "2025-01-31"})
	require.NoError(t, err)
	assert.True(t, estimate.Net.Monthly.IsZero())
}

func TestGenerateRemittances(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[:2]...)
	run := env.createRun(t, 12, 2025)

	_, err := env.svc.GenerateRemittances(ctx, action(run.ID))
	assert.ErrorIs(t, err, payroll.ErrInvalidRunState)

	processed, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.NoError(t, err)

	remittances, err := env.svc.GenerateRemittances(ctx, action(run.ID))
	require.NoError(t, err)
	require.Len(t, remittances, 3)

	byType := make(map[string]payroll.RemittanceResponse)
	for _, r := range remittances {
		byType[r.Type] = r
		assert.Equal(t, "2026-01-10", r.DueDate)
		assert.Equal(t, "pending", r.Status)
	}
	assert.True(t, byType["paye"].Amount.Equal(processed.Totals.PAYE))
	assert.True(t, byType["pension"].Amount.Equal(processed.Totals.PensionEmployee.Add(processed.Totals.PensionEmployer)))
	assert.True(t, byType["pension"].EmployerContribution.Equal(processed.Totals.PensionEmployer))
	assert.True(t, byType["housing_fund"].Amount.Equal(processed.Totals.HousingFund))
	assert.Equal(t, "Federal Mortgage Bank of Nigeria (FMBN)", byType["housing_fund"].Agency)

	again, err := env.svc.GenerateRemittances(ctx, action(run.ID))
	require.NoError(t, err)
	assert.Len(t, again, 3)

	stored, err := env.svc.ListRunRemittances(ctx, testCompanyID, run.ID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, byType["paye"].ID, stored[1].ID)
	assert.Equal(t, "paye", stored[1].Type)

	_, err = env.svc.ListRunRemittances(ctx, otherCompany, run.ID)
	assert.ErrorIs(t, err, payroll.ErrRunNotFound)
}

func TestRemittancePayments(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staffRecords()[:2]...)

	// January remittances fall due on 10 February, March ones on 10 April
	january := env.createRun(t, 1, 2025)
	march := env.createRun(t, 3, 2025)
	for _, run := range []payroll.RunSummaryResponse{january, march} {
		_, err := env.svc.ProcessRun(ctx, action(run.ID))
		require.NoError(t, err)
		_, err = env.svc.GenerateRemittances(ctx, action(run.ID))
		require.NoError(t, err)
	}

	asOf := time.Date(2025, 3, 25, 15, 0, 0, 0, time.UTC)
	due := func(view string, days int) []payroll.RemittanceResponse {
		t.Helper()
		list, err := env.svc.ListDueRemittances(ctx, payroll.DueRemittancesRequest{
			CompanyID: testCompanyID, View: view, AsOf: asOf, Days: days,
		})
		require.NoError(t, err)
		return list
	}

	overdue := due(payroll.RemittanceViewOverdue, 0)
	require.Len(t, overdue, 3)
	for _, r := range overdue {
		assert.Equal(t, "2025-02-10", r.DueDate)
		assert.Equal(t, 43, r.DaysOverdue)
	}

	assert.Empty(t, due(payroll.RemittanceViewUpcoming, 15))
	upcoming := due(payroll.RemittanceViewUpcoming, 16)
	require.Len(t, upcoming, 3)
	assert.Equal(t, "2025-04-10", upcoming[0].DueDate)
	assert.Zero(t, upcoming[0].DaysOverdue)

	paid, err := env.svc.MarkRemittancePaid(ctx, payroll.MarkRemittancePaidRequest{
		CompanyID:        testCompanyID,
		RemittanceID:     overdue[0].ID,
		ActorID:          testActorID,
		PaymentReference: "FIRS-2025-0001",
	})
	require.NoError(t, err)
	assert.Equal(t, payroll.RemittanceStatusPaid, paid.Status)
	require.NotNil(t, paid.PaymentReference)
	assert.Equal(t, "FIRS-2025-0001", *paid.PaymentReference)
	require.NotNil(t, paid.PaidAt)
	assert.Len(t, due(payroll.RemittanceViewOverdue, 0), 2)

	t.Run("paying twice", func(t *testing.T) {
		_, err := env.svc.MarkRemittancePaid(ctx, payroll.MarkRemittancePaidRequest{
			CompanyID: testCompanyID, RemittanceID: overdue[0].ID, PaymentReference: "again",
		})
		assert.ErrorIs(t, err, payroll.ErrRemittanceAlreadyPaid)
	})

	t.Run("another company's remittance", func(t *testing.T) {
		_, err := env.svc.MarkRemittancePaid(ctx, payroll.MarkRemittancePaidRequest{
			CompanyID: otherCompany, RemittanceID: overdue[1].ID, PaymentReference: "x",
		})
		assert.ErrorIs(t, err, payroll.ErrRemittanceNotFound)
	})

	t.Run("regenerating a paid period", func(t *testing.T) {
		_, err := env.svc.GenerateRemittances(ctx, action(january.ID))
		assert.ErrorIs(t, err, payroll.ErrRemittanceAlreadyPaid)
	})

	t.Run("invalid requests", func(t *testing.T) {
		var verrs validator.ValidationErrors
		_, err := env.svc.ListDueRemittances(ctx, payroll.DueRemittancesRequest{CompanyID: testCompanyID, View: "later", AsOf: asOf})
		assert.ErrorAs(t, err, &verrs)
		_, err = env.svc.ListDueRemittances(ctx, payroll.DueRemittancesRequest{CompanyID: testCompanyID, View: payroll.RemittanceViewUpcoming, AsOf: asOf})
		assert.ErrorAs(t, err, &verrs)
		_, err = env.svc.MarkRemittancePaid(ctx, payroll.MarkRemittancePaidRequest{CompanyID: testCompanyID, RemittanceID: overdue[1].ID})
		assert.ErrorAs(t, err, &verrs)
	})
}

func TestBuildRemittances_SkipsZeroAmounts(t *testing.T) {
	run := payroll.PayrollRun{
		ID:          "run-1",
		CompanyID:   testCompanyID,
		PeriodMonth: 3,
		PeriodYear:  2025,
		Status:      payroll.RunStatusCalculated,
		Totals: payroll.RunTotals{
			PAYE:            d("1000"),
			PensionEmployee: d("0"),
			PensionEmployer: d("0"),
			HousingFund:     d("0"),
		},
	}

	remittances, err := BuildRemittances(run, nil, fixedNow)
	require.NoError(t, err)
	require.Len(t, remittances, 1)
	assert.Equal(t, payroll.RemittanceTypePAYE, remittances[0].Type)
	assert.Equal(t, time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC), remittances[0].DueDate)
}

type brokenDirectory struct{}

func (brokenDirectory) ListEligibleEmployees(ctx context.Context, companyID string, periodStart, periodEnd time.Time) ([]payroll.CompensationRecord, error) {
	return nil, errors.New("directory unavailable")
}

func TestProcessRun_DirectoryError(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.svc = NewPayrollService(env.runs, brokenDirectory{}, env.remittances,
		staticProvider{table: defaultTable()}, runlock.NewKeyedLocker())
	run := env.createRun(t, 1, 2025)

	_, err := env.svc.ProcessRun(ctx, action(run.ID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory unavailable")
}
