package taxtable

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TaxBand is one slice of annual taxable income. A nil UpperBound marks the
// open-ended top band. Bounds are lower-inclusive and upper-exclusive.
type TaxBand struct {
	LowerBound decimal.Decimal
	UpperBound *decimal.Decimal
	Rate       decimal.Decimal
}

// IsOpenEnded reports whether the band has no upper bound.
func (b TaxBand) IsOpenEnded() bool {
	return b.UpperBound == nil
}

// ReliefRule computes the relief allowance deducted from gross income:
// max(FlatPercent * gross, MinimumFloor) + GrossPercent * gross
type ReliefRule struct {
	FlatPercent  decimal.Decimal
	MinimumFloor decimal.Decimal
	GrossPercent decimal.Decimal
}

// Amount evaluates the rule for an annual gross income at full precision.
func (r ReliefRule) Amount(grossAnnual decimal.Decimal) decimal.Decimal {
	higherOf := decimal.Max(grossAnnual.Mul(r.FlatPercent), r.MinimumFloor)
	return higherOf.Add(grossAnnual.Mul(r.GrossPercent))
}

// StatutoryRates holds contribution rates applied on top of PAYE. NSITF and ITF are
// levied on basic salary and paid by the employer only.
type StatutoryRates struct {
	PensionEmployee     decimal.Decimal
	PensionEmployer     decimal.Decimal
	HousingFundEmployee decimal.Decimal
	// Annual basic salary below which no housing fund is withheld. Zero applies the
	// housing fund to every basic salary.
	HousingFundMinimumBasic decimal.Decimal
	NSITFEmployer           decimal.Decimal
	ITFEmployer             decimal.Decimal
}

// TaxTable is an immutable, versioned jurisdiction configuration.
type TaxTable struct {
	Version       string
	Jurisdiction  string
	Currency      string
	EffectiveFrom time.Time
	Bands         []TaxBand
	Relief        ReliefRule
	Rates         StatutoryRates
	PublishedAt   time.Time
}

// Validate checks the band and rate invariants a table must satisfy before publication.
func (t TaxTable) Validate() error {
	if t.Version == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidTaxTable)
	}
	if t.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: effective date is required", ErrInvalidTaxTable)
	}
	if len(t.Bands) == 0 {
		return fmt.Errorf("%w: at least one band is required", ErrInvalidTaxTable)
	}
	if !t.Bands[0].LowerBound.IsZero() {
		return fmt.Errorf("%w: first band must start at 0", ErrInvalidTaxTable)
	}

	one := decimal.NewFromInt(1)
	last := len(t.Bands) - 1
	for i, band := range t.Bands {
		if band.Rate.IsNegative() || band.Rate.GreaterThan(one) {
			return fmt.Errorf("%w: band %d rate must be between 0 and 1", ErrInvalidTaxTable, i+1)
		}
		if i == last {
			if !band.IsOpenEnded() {
				return fmt.Errorf("%w: last band must be open-ended", ErrInvalidTaxTable)
			}
			continue
		}
		if band.IsOpenEnded() {
			return fmt.Errorf("%w: only the last band may be open-ended", ErrInvalidTaxTable)
		}
		if !band.UpperBound.GreaterThan(band.LowerBound) {
			return fmt.Errorf("%w: band %d upper bound must exceed its lower bound", ErrInvalidTaxTable, i+1)
		}
		next := t.Bands[i+1]
		if !next.LowerBound.Equal(*band.UpperBound) {
			return fmt.Errorf("%w: band %d does not start where band %d ends", ErrInvalidTaxTable, i+2, i+1)
		}
		if next.Rate.LessThan(band.Rate) {
			return fmt.Errorf("%w: band rates must be non-decreasing", ErrInvalidTaxTable)
		}
	}

	for name, v := range map[string]decimal.Decimal{
		"relief flat percent":        t.Relief.FlatPercent,
		"relief minimum floor":       t.Relief.MinimumFloor,
		"relief gross percent":       t.Relief.GrossPercent,
		"pension employee rate":      t.Rates.PensionEmployee,
		"pension employer rate":      t.Rates.PensionEmployer,
		"housing fund employee rate": t.Rates.HousingFundEmployee,
		"housing fund minimum basic": t.Rates.HousingFundMinimumBasic,
		"nsitf employer rate":        t.Rates.NSITFEmployer,
		"itf employer rate":          t.Rates.ITFEmployer,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%w: %s must be non-negative", ErrInvalidTaxTable, name)
		}
	}

	return nil
}

// CoversDate reports whether the table is already in force on the given date.
func (t TaxTable) CoversDate(date time.Time) bool {
	return !t.EffectiveFrom.After(date)
}

// Clone returns a deep copy so callers cannot mutate a published table.
func (t TaxTable) Clone() TaxTable {
	bands := make([]TaxBand, len(t.Bands))
	for i, b := range t.Bands {
		if b.UpperBound != nil {
			upper := *b.UpperBound
			b.UpperBound = &upper
		}
		bands[i] = b
	}
	t.Bands = bands
	return t
}
