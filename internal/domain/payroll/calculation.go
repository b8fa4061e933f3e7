package payroll

import "github.com/shopspring/decimal"

// CalculationInput feeds the statutory calculator. All amounts are annual; Period
// selects how per-period figures are reported.
type CalculationInput struct {
	GrossAnnualIncome decimal.Decimal
	Allowances        AllowanceBreakdown
	Period            PayFrequency
	PensionOptOut     bool
	HousingFundOptOut bool
}

type GrossFigures struct {
	Annual  decimal.Decimal `json:"annual"`
	Monthly decimal.Decimal `json:"monthly"`
}

type TaxFigures struct {
	AnnualPAYE  decimal.Decimal `json:"annual_paye"`
	MonthlyPAYE decimal.Decimal `json:"monthly_paye"`
	Breakdown   []BandTax       `json:"breakdown"`
}

type PensionFigures struct {
	Employee decimal.Decimal `json:"employee"`
	Employer decimal.Decimal `json:"employer"`
}

// EmployerCost is what the employer pays on top of gross salary.
type EmployerCost struct {
	Pension decimal.Decimal `json:"pension"`
	NSITF   decimal.Decimal `json:"nsitf"`
	ITF     decimal.Decimal `json:"itf"`
	Total   decimal.Decimal `json:"total"`
}

type NetFigures struct {
	Annual  decimal.Decimal `json:"annual"`
	Monthly decimal.Decimal `json:"monthly"`
}

// CalculationResult is the rounded output of the statutory calculator. Pension,
// HousingFund and EmployerCost are reported per Period.
type CalculationResult struct {
	Period           PayFrequency    `json:"period"`
	TaxTableVersion  string          `json:"tax_table_version"`
	Gross            GrossFigures    `json:"gross"`
	PensionableBase  decimal.Decimal `json:"pensionable_base"`
	Relief           decimal.Decimal `json:"relief"`
	TaxableIncome    decimal.Decimal `json:"taxable_income"`
	Tax              TaxFigures      `json:"tax"`
	Pension          PensionFigures  `json:"pension"`
	HousingFund      decimal.Decimal `json:"housing_fund"`
	EmployerCost     EmployerCost    `json:"employer_cost"`
	Net              NetFigures      `json:"net"`
	EffectiveTaxRate decimal.Decimal `json:"effective_tax_rate"`
}
