package payroll

import (
	"fmt"
	"sort"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/shopspring/decimal"
)

// housingFundTaxDeductible is the jurisdiction rule for whether the employee housing
// fund contribution reduces taxable income. Pension always does.
const housingFundTaxDeductible = false

const (
	moneyPlaces = 2
	ratePlaces  = 4
)

// Quick estimate composition of a gross salary.
var (
	quickBasicShare     = decimal.RequireFromString("0.40")
	quickHousingShare   = decimal.RequireFromString("0.20")
	quickTransportShare = decimal.RequireFromString("0.15")
	quickOtherShare     = decimal.RequireFromString("0.25")
)

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}

// Calculate computes PAYE, pension, housing fund and net pay for one annual gross
// income under the given table. Arithmetic runs at full precision; currency figures
// are rounded half-up to 2 places only when the result is assembled.
func Calculate(table taxtable.TaxTable, input payroll.CalculationInput) (payroll.CalculationResult, error) {
	period := input.Period
	if period == "" {
		period = payroll.PayFrequencyMonthly
	}
	if !period.IsValid() {
		return payroll.CalculationResult{}, fmt.Errorf("%w: unknown period %q", payroll.ErrInvalidCompensation, input.Period)
	}
	if input.GrossAnnualIncome.IsNegative() {
		return payroll.CalculationResult{}, fmt.Errorf("%w: gross annual income must be non-negative", payroll.ErrInvalidCompensation)
	}
	if err := checkNonNegative(input.Allowances); err != nil {
		return payroll.CalculationResult{}, err
	}

	gross := input.GrossAnnualIncome
	if gross.IsZero() {
		return zeroResult(table, period), nil
	}

	a := input.Allowances
	rates := table.Rates

	pensionableBase := decimal.Sum(a.BasicSalary, a.HousingAllowance, a.TransportAllowance)
	pensionEmployee, pensionEmployer := decimal.Zero, decimal.Zero
	if !input.PensionOptOut {
		pensionEmployee = pensionableBase.Mul(rates.PensionEmployee)
		pensionEmployer = pensionableBase.Mul(rates.PensionEmployer)
	}

	housingFund := decimal.Zero
	if !input.HousingFundOptOut && a.BasicSalary.GreaterThanOrEqual(rates.HousingFundMinimumBasic) {
		housingFund = a.BasicSalary.Mul(rates.HousingFundEmployee)
	}

	nsitf := a.BasicSalary.Mul(rates.NSITFEmployer)
	itf := a.BasicSalary.Mul(rates.ITFEmployer)

	relief := table.Relief.Amount(gross)
	taxable := gross.Sub(relief).Sub(pensionEmployee)
	if housingFundTaxDeductible {
		taxable = taxable.Sub(housingFund)
	}
	taxable = decimal.Max(taxable, decimal.Zero)

	annualPAYE, breakdown := walkBands(table.Bands, taxable)

	// Rounded components; net is derived from these so the identity holds to the cent.
	grossAnnual := roundMoney(gross)
	grossMonthly := roundMoney(gross.Div(payroll.MonthsPerYear))
	payeAnnual := roundMoney(annualPAYE)
	payeMonthly := roundMoney(annualPAYE.Div(payroll.MonthsPerYear))
	pensionAnnual := roundMoney(pensionEmployee)
	pensionMonthly := roundMoney(pensionEmployee.Div(payroll.MonthsPerYear))
	housingAnnual := roundMoney(housingFund)
	housingMonthly := roundMoney(housingFund.Div(payroll.MonthsPerYear))

	result := payroll.CalculationResult{
		Period:          period,
		TaxTableVersion: table.Version,
		Gross: payroll.GrossFigures{
			Annual:  grossAnnual,
			Monthly: grossMonthly,
		},
		PensionableBase: roundMoney(perPeriod(pensionableBase, period)),
		Relief:          roundMoney(relief),
		TaxableIncome:   roundMoney(taxable),
		Tax: payroll.TaxFigures{
			AnnualPAYE:  payeAnnual,
			MonthlyPAYE: payeMonthly,
			Breakdown:   roundBreakdown(breakdown, payeAnnual),
		},
		Net: payroll.NetFigures{
			Annual:  grossAnnual.Sub(payeAnnual).Sub(pensionAnnual).Sub(housingAnnual),
			Monthly: grossMonthly.Sub(payeMonthly).Sub(pensionMonthly).Sub(housingMonthly),
		},
		EffectiveTaxRate: annualPAYE.Div(gross).Round(ratePlaces),
	}

	if period == payroll.PayFrequencyMonthly {
		result.Pension = payroll.PensionFigures{Employee: pensionMonthly, Employer: roundMoney(pensionEmployer.Div(payroll.MonthsPerYear))}
		result.HousingFund = housingMonthly
	} else {
		result.Pension = payroll.PensionFigures{Employee: pensionAnnual, Employer: roundMoney(pensionEmployer)}
		result.HousingFund = housingAnnual
	}
	result.EmployerCost = employerCost(result.Pension.Employer,
		roundMoney(perPeriod(nsitf, period)),
		roundMoney(perPeriod(itf, period)))

	return result, nil
}

// CalculateRecord annualizes a compensation record and calculates it for period.
// A non-nil grossOverride, expressed in the record's pay frequency, replaces the sum
// of the record's components as gross income. It may add income not itemized in the
// record but never go below the components.
func CalculateRecord(table taxtable.TaxTable, record payroll.CompensationRecord, grossOverride *decimal.Decimal, period payroll.PayFrequency) (payroll.CalculationResult, error) {
	if record.BasicSalary == nil {
		return payroll.CalculationResult{}, fmt.Errorf("%w: basic salary is missing", payroll.ErrIncompleteCompensation)
	}
	if !record.PayFrequency.IsValid() {
		return payroll.CalculationResult{}, fmt.Errorf("%w: unknown pay frequency %q", payroll.ErrIncompleteCompensation, record.PayFrequency)
	}

	allowances := record.Annualized()
	gross := allowances.Gross()
	if grossOverride != nil {
		override := *grossOverride
		if record.PayFrequency == payroll.PayFrequencyMonthly {
			override = override.Mul(payroll.MonthsPerYear)
		}
		if override.LessThan(gross) {
			return payroll.CalculationResult{}, fmt.Errorf("%w: gross salary is less than the sum of its components", payroll.ErrInvalidCompensation)
		}
		gross = override
	}

	return Calculate(table, payroll.CalculationInput{
		GrossAnnualIncome: gross,
		Allowances:        allowances,
		Period:            period,
		PensionOptOut:     record.PensionOptOut,
		HousingFundOptOut: record.HousingFundOptOut,
	})
}

// QuickEstimate calculates from a gross salary alone, assuming a standard split of
// basic, housing, transport and other allowances. grossSalary is expressed per period.
func QuickEstimate(table taxtable.TaxTable, grossSalary decimal.Decimal, period payroll.PayFrequency) (payroll.CalculationResult, error) {
	if period == "" {
		period = payroll.PayFrequencyMonthly
	}
	if !period.IsValid() {
		return payroll.CalculationResult{}, fmt.Errorf("%w: unknown period %q", payroll.ErrInvalidCompensation, period)
	}

	annual := grossSalary
	if period == payroll.PayFrequencyMonthly {
		annual = grossSalary.Mul(payroll.MonthsPerYear)
	}

	return Calculate(table, payroll.CalculationInput{
		GrossAnnualIncome: annual,
		Allowances: payroll.AllowanceBreakdown{
			BasicSalary:        annual.Mul(quickBasicShare),
			HousingAllowance:   annual.Mul(quickHousingShare),
			TransportAllowance: annual.Mul(quickTransportShare),
			OtherAllowances:    annual.Mul(quickOtherShare),
		},
		Period: period,
	})
}

// walkBands taxes the slice of taxable income falling inside each band. Bounds are
// lower-inclusive and upper-exclusive, so an income equal to a band's upper bound is
// taxed entirely within that band.
func walkBands(bands []taxtable.TaxBand, taxable decimal.Decimal) (decimal.Decimal, []payroll.BandTax) {
	total := decimal.Zero
	breakdown := make([]payroll.BandTax, 0, len(bands))

	for i, band := range bands {
		if band.LowerBound.GreaterThanOrEqual(taxable) {
			break
		}
		top := taxable
		if !band.IsOpenEnded() && band.UpperBound.LessThan(taxable) {
			top = *band.UpperBound
		}
		portion := top.Sub(band.LowerBound)
		amount := portion.Mul(band.Rate)
		total = total.Add(amount)

		breakdown = append(breakdown, payroll.BandTax{
			Band:          i + 1,
			LowerBound:    band.LowerBound,
			UpperBound:    band.UpperBound,
			Rate:          band.Rate,
			TaxableAmount: portion,
			Amount:        amount,
		})
	}

	return total, breakdown
}

// roundBreakdown rounds band amounts so they add up to the rounded annual PAYE.
// Every band is floored to the cent and the missing cents go to the bands with the
// largest remainders (lowest band first on ties), so no band moves by a full cent.
func roundBreakdown(breakdown []payroll.BandTax, annualPAYE decimal.Decimal) []payroll.BandTax {
	rounded := make([]payroll.BandTax, len(breakdown))
	remainders := make([]decimal.Decimal, len(breakdown))
	order := make([]int, len(breakdown))
	sum := decimal.Zero
	for i, b := range breakdown {
		floor := b.Amount.RoundFloor(moneyPlaces)
		remainders[i] = b.Amount.Sub(floor)
		order[i] = i

		b.TaxableAmount = roundMoney(b.TaxableAmount)
		b.Amount = floor
		sum = sum.Add(floor)
		rounded[i] = b
	}

	sort.SliceStable(order, func(i, j int) bool {
		return remainders[order[i]].GreaterThan(remainders[order[j]])
	})
	cent := decimal.New(1, -moneyPlaces)
	for _, i := range order {
		if !sum.LessThan(annualPAYE) {
			break
		}
		rounded[i].Amount = rounded[i].Amount.Add(cent)
		sum = sum.Add(cent)
	}
	return rounded
}

func employerCost(pension, nsitf, itf decimal.Decimal) payroll.EmployerCost {
	return payroll.EmployerCost{
		Pension: pension,
		NSITF:   nsitf,
		ITF:     itf,
		Total:   decimal.Sum(pension, nsitf, itf),
	}
}

func perPeriod(annual decimal.Decimal, period payroll.PayFrequency) decimal.Decimal {
	if period == payroll.PayFrequencyMonthly {
		return annual.Div(payroll.MonthsPerYear)
	}
	return annual
}

func checkNonNegative(a payroll.AllowanceBreakdown) error {
	for name, v := range map[string]decimal.Decimal{
		"basic salary":        a.BasicSalary,
		"housing allowance":   a.HousingAllowance,
		"transport allowance": a.TransportAllowance,
		"utility allowance":   a.UtilityAllowance,
		"meal allowance":      a.MealAllowance,
		"leave allowance":     a.LeaveAllowance,
		"other allowances":    a.OtherAllowances,
		"thirteenth month":    a.ThirteenthMonth,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must be non-negative", payroll.ErrInvalidCompensation, name)
		}
	}
	return nil
}

func zeroResult(table taxtable.TaxTable, period payroll.PayFrequency) payroll.CalculationResult {
	return payroll.CalculationResult{
		Period:          period,
		TaxTableVersion: table.Version,
		Gross:           payroll.GrossFigures{Annual: decimal.Zero, Monthly: decimal.Zero},
		PensionableBase: decimal.Zero,
		Relief:          decimal.Zero,
		TaxableIncome:   decimal.Zero,
		Tax: payroll.TaxFigures{
			AnnualPAYE:  decimal.Zero,
			MonthlyPAYE: decimal.Zero,
			Breakdown:   []payroll.BandTax{},
		},
		Pension:          payroll.PensionFigures{Employee: decimal.Zero, Employer: decimal.Zero},
		HousingFund:      decimal.Zero,
		EmployerCost:     employerCost(decimal.Zero, decimal.Zero, decimal.Zero),
		Net:              payroll.NetFigures{Annual: decimal.Zero, Monthly: decimal.Zero},
		EffectiveTaxRate: decimal.Zero,
	}
}
