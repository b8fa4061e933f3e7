package taxtable

import (
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type TaxBandDTO struct {
	LowerBound decimal.Decimal  `json:"lower_bound"`
	UpperBound *decimal.Decimal `json:"upper_bound"`
	Rate       decimal.Decimal  `json:"rate"`
}

type ReliefRuleDTO struct {
	FlatPercent  decimal.Decimal `json:"flat_percent"`
	MinimumFloor decimal.Decimal `json:"minimum_floor"`
	GrossPercent decimal.Decimal `json:"gross_percent"`
}

type StatutoryRatesDTO struct {
	PensionEmployee         decimal.Decimal `json:"pension_employee"`
	PensionEmployer         decimal.Decimal `json:"pension_employer"`
	HousingFundEmployee     decimal.Decimal `json:"housing_fund_employee"`
	HousingFundMinimumBasic decimal.Decimal `json:"housing_fund_minimum_basic"`
	NSITFEmployer           decimal.Decimal `json:"nsitf_employer"`
	ITFEmployer             decimal.Decimal `json:"itf_employer"`
}

type PublishTaxTableRequest struct {
	Version       string            `json:"version"`
	Jurisdiction  string            `json:"jurisdiction"`
	Currency      string            `json:"currency"`
	EffectiveFrom string            `json:"effective_from"`
	Bands         []TaxBandDTO      `json:"bands"`
	Relief        ReliefRuleDTO     `json:"relief"`
	Rates         StatutoryRatesDTO `json:"rates"`
}

func (r *PublishTaxTableRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Version) {
		errs = append(errs, validator.ValidationError{Field: "version", Message: "is required"})
	}
	if !validator.IsValidCurrency(r.Currency) {
		errs = append(errs, validator.ValidationError{Field: "currency", Message: "must be a 3-letter ISO 4217 code"})
	}
	if _, ok := validator.IsValidDate(r.EffectiveFrom); !ok {
		errs = append(errs, validator.ValidationError{Field: "effective_from", Message: "must be in YYYY-MM-DD format"})
	}
	if len(r.Bands) == 0 {
		errs = append(errs, validator.ValidationError{Field: "bands", Message: "at least one band is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ToTaxTable converts a validated request. Band invariants are checked by TaxTable.Validate.
func (r *PublishTaxTableRequest) ToTaxTable() TaxTable {
	effectiveFrom, _ := validator.IsValidDate(r.EffectiveFrom)

	bands := make([]TaxBand, 0, len(r.Bands))
	for _, b := range r.Bands {
		bands = append(bands, TaxBand{LowerBound: b.LowerBound, UpperBound: b.UpperBound, Rate: b.Rate})
	}

	return TaxTable{
		Version:       r.Version,
		Jurisdiction:  r.Jurisdiction,
		Currency:      r.Currency,
		EffectiveFrom: effectiveFrom,
		Bands:         bands,
		Relief: ReliefRule{
			FlatPercent:  r.Relief.FlatPercent,
			MinimumFloor: r.Relief.MinimumFloor,
			GrossPercent: r.Relief.GrossPercent,
		},
		Rates: StatutoryRates{
			PensionEmployee:         r.Rates.PensionEmployee,
			PensionEmployer:         r.Rates.PensionEmployer,
			HousingFundEmployee:     r.Rates.HousingFundEmployee,
			HousingFundMinimumBasic: r.Rates.HousingFundMinimumBasic,
			NSITFEmployer:           r.Rates.NSITFEmployer,
			ITFEmployer:             r.Rates.ITFEmployer,
		},
	}
}

type TaxTableResponse struct {
	Version       string            `json:"version"`
	Jurisdiction  string            `json:"jurisdiction"`
	Currency      string            `json:"currency"`
	EffectiveFrom string            `json:"effective_from"`
	Bands         []TaxBandDTO      `json:"bands"`
	Relief        ReliefRuleDTO     `json:"relief"`
	Rates         StatutoryRatesDTO `json:"rates"`
	PublishedAt   *string           `json:"published_at,omitempty"`
}

// NewTaxTableResponse maps a table for display and audit.
func NewTaxTableResponse(t TaxTable) TaxTableResponse {
	bands := make([]TaxBandDTO, 0, len(t.Bands))
	for _, b := range t.Bands {
		bands = append(bands, TaxBandDTO{LowerBound: b.LowerBound, UpperBound: b.UpperBound, Rate: b.Rate})
	}

	var publishedAt *string
	if !t.PublishedAt.IsZero() {
		str := t.PublishedAt.Format(time.RFC3339)
		publishedAt = &str
	}

	return TaxTableResponse{
		Version:       t.Version,
		Jurisdiction:  t.Jurisdiction,
		Currency:      t.Currency,
		EffectiveFrom: t.EffectiveFrom.Format("2006-01-02"),
		Bands:         bands,
		Relief: ReliefRuleDTO{
			FlatPercent:  t.Relief.FlatPercent,
			MinimumFloor: t.Relief.MinimumFloor,
			GrossPercent: t.Relief.GrossPercent,
		},
		Rates: StatutoryRatesDTO{
			PensionEmployee:         t.Rates.PensionEmployee,
			PensionEmployer:         t.Rates.PensionEmployer,
			HousingFundEmployee:     t.Rates.HousingFundEmployee,
			HousingFundMinimumBasic: t.Rates.HousingFundMinimumBasic,
			NSITFEmployer:           t.Rates.NSITFEmployer,
			ITFEmployer:             t.Rates.ITFEmployer,
		},
		PublishedAt: publishedAt,
	}
}
