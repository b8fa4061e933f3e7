package fixtures

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/shopspring/decimal"
)

// ==========================================
// DEFAULT JURISDICTION TAX TABLE
// ==========================================

const (
	DefaultTaxTableVersion      = "ng-pita-2011"
	DefaultTaxTableJurisdiction = "NG"
	DefaultTaxTableCurrency     = "NGN"
)

// DefaultTaxTableEffectiveFrom is when the default bands came into force.
var DefaultTaxTableEffectiveFrom = time.Date(2011, time.January, 1, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// DefaultTaxTable returns the six-band progressive PAYE table used when no seed
// file is configured. The relief floor is supplied by configuration.
func DefaultTaxTable(effectiveFrom time.Time, minimumReliefFloor decimal.Decimal) taxtable.TaxTable {
	return taxtable.TaxTable{
		Version:       DefaultTaxTableVersion,
		Jurisdiction:  DefaultTaxTableJurisdiction,
		Currency:      DefaultTaxTableCurrency,
		EffectiveFrom: effectiveFrom,
		Bands: []taxtable.TaxBand{
			{LowerBound: dec("0"), UpperBound: decPtr("300000"), Rate: dec("0.07")},
			{LowerBound: dec("300000"), UpperBound: decPtr("600000"), Rate: dec("0.11")},
			{LowerBound: dec("600000"), UpperBound: decPtr("1100000"), Rate: dec("0.15")},
			{LowerBound: dec("1100000"), UpperBound: decPtr("1600000"), Rate: dec("0.19")},
			{LowerBound: dec("1600000"), UpperBound: decPtr("3200000"), Rate: dec("0.21")},
			{LowerBound: dec("3200000"), UpperBound: nil, Rate: dec("0.24")},
		},
		Relief: taxtable.ReliefRule{
			FlatPercent:  dec("0.01"),
			MinimumFloor: minimumReliefFloor,
			GrossPercent: dec("0.20"),
		},
		Rates: taxtable.StatutoryRates{
			PensionEmployee:         dec("0.08"),
			PensionEmployer:         dec("0.10"),
			HousingFundEmployee:     dec("0.025"),
			HousingFundMinimumBasic: dec("360000"),
			NSITFEmployer:           dec("0.01"),
			ITFEmployer:             dec("0.01"),
		},
	}
}
