package payroll

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayslipBuilder_Build(t *testing.T) {
	builder := NewPayslipBuilder()
	builder.now = func() time.Time { return fixedNow }
	run := payroll.PayrollRun{ID: "run-1", CompanyID: testCompanyID, PeriodMonth: 1, PeriodYear: 2025}

	t.Run("monthly record", func(t *testing.T) {
		record := monthlyRecord("400000", "200000", "100000", "100000")
		record.EmployeeCode = "EMP-001"

		p, err := builder.Build(run, defaultTable(), record)
		require.NoError(t, err)

		assert.NotEmpty(t, p.ID)
		assert.Equal(t, "run-1", p.PayrollRunID)
		assert.Equal(t, "emp-1", p.EmployeeID)
		require.NotNil(t, p.EmployeeCode)
		assert.Equal(t, "EMP-001", *p.EmployeeCode)
		assert.Equal(t, "NGN", p.Currency)
		assert.Equal(t, payroll.RunStatusCalculated, p.Status)
		assert.Equal(t, fixedNow, p.CreatedAt)

		assert.True(t, p.BasicSalary.Equal(d("400000")))
		assert.True(t, p.TotalAllowances.Equal(d("400000")))
		assert.True(t, p.GrossSalary.Equal(d("800000")))
		assert.True(t, p.PAYETax.Equal(d("118826.67")))
		assert.True(t, p.PensionEmployee.Equal(d("56000")))
		assert.True(t, p.PensionEmployer.Equal(d("70000")))
		assert.True(t, p.HousingFundEmployee.Equal(d("10000")))
		assert.True(t, p.NetSalary.Equal(d("615173.33")))
		assert.True(t, p.TaxableIncome.Equal(d("6808000")))
		assert.Len(t, p.Breakdown, 6)
	})

	t.Run("annual record is reported monthly", func(t *testing.T) {
		record := payroll.CompensationRecord{
			EmployeeID:       "emp-2",
			BasicSalary:      dp("1800000"),
			HousingAllowance: d("600000"),
			PayFrequency:     payroll.PayFrequencyAnnual,
		}

		p, err := builder.Build(run, defaultTable(), record)
		require.NoError(t, err)
		assert.True(t, p.BasicSalary.Equal(d("150000")))
		assert.True(t, p.GrossSalary.Equal(d("200000")))
		assert.True(t, p.TotalAllowances.Equal(d("50000")))
		assert.Nil(t, p.EmployeeName)
	})

	t.Run("incomplete records", func(t *testing.T) {
		missingBasic := monthlyRecord("0", "1000", "0", "0")
		missingBasic.BasicSalary = nil
		_, err := builder.Build(run, defaultTable(), missingBasic)
		assert.ErrorIs(t, err, payroll.ErrIncompleteCompensation)

		missingID := monthlyRecord("1000", "0", "0", "0")
		missingID.EmployeeID = ""
		_, err = builder.Build(run, defaultTable(), missingID)
		assert.ErrorIs(t, err, payroll.ErrIncompleteCompensation)

		noFrequency := monthlyRecord("1000", "0", "0", "0")
		noFrequency.PayFrequency = ""
		_, err = builder.Build(run, defaultTable(), noFrequency)
		assert.ErrorIs(t, err, payroll.ErrIncompleteCompensation)
	})

	t.Run("negative allowance", func(t *testing.T) {
		record := monthlyRecord("1000", "-5", "0", "0")
		_, err := builder.Build(run, defaultTable(), record)
		assert.ErrorIs(t, err, payroll.ErrInvalidCompensation)
	})
}
