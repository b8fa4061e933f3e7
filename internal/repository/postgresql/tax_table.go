package postgresql

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/shopspring/decimal"
)

type taxTableRepository struct {
	db *database.DB
}

func NewTaxTableRepository(db *database.DB) taxtable.TaxTableRepository {
	return &taxTableRepository{db: db}
}

// Stored JSON shapes. Amounts are encoded as decimal strings.
type bandDocument struct {
	LowerBound decimal.Decimal  `json:"lower_bound"`
	UpperBound *decimal.Decimal `json:"upper_bound,omitempty"`
	Rate       decimal.Decimal  `json:"rate"`
}

type reliefDocument struct {
	FlatPercent  decimal.Decimal `json:"flat_percent"`
	MinimumFloor decimal.Decimal `json:"minimum_floor"`
	GrossPercent decimal.Decimal `json:"gross_percent"`
}

type ratesDocument struct {
	PensionEmployee         decimal.Decimal `json:"pension_employee"`
	PensionEmployer         decimal.Decimal `json:"pension_employer"`
	HousingFundEmployee     decimal.Decimal `json:"housing_fund_employee"`
	HousingFundMinimumBasic decimal.Decimal `json:"housing_fund_minimum_basic"`
	NSITFEmployer           decimal.Decimal `json:"nsitf_employer"`
	ITFEmployer             decimal.Decimal `json:"itf_employer"`
}

func (r *taxTableRepository) Create(ctx context.Context, table taxtable.TaxTable) (taxtable.TaxTable, error) {
	q := GetQuerier(ctx, r.db)

	bands := make([]bandDocument, len(table.Bands))
	for i, b := range table.Bands {
		bands[i] = bandDocument{LowerBound: b.LowerBound, UpperBound: b.UpperBound, Rate: b.Rate}
	}
	bandsJSON, err := json.Marshal(bands)
	if err != nil {
		return taxtable.TaxTable{}, fmt.Errorf("encode tax bands: %w", err)
	}
	reliefJSON, err := json.Marshal(reliefDocument(table.Relief))
	if err != nil {
		return taxtable.TaxTable{}, fmt.Errorf("encode relief rule: %w", err)
	}
	ratesJSON, err := json.Marshal(ratesDocument(table.Rates))
	if err != nil {
		return taxtable.TaxTable{}, fmt.Errorf("encode statutory rates: %w", err)
	}

	query := `
		INSERT INTO tax_tables (version, jurisdiction, currency, effective_from, bands, relief, rates, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = q.Exec(ctx, query,
		table.Version, table.Jurisdiction, table.Currency, table.EffectiveFrom,
		bandsJSON, reliefJSON, ratesJSON, table.PublishedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "tax_tables_pkey") {
			return taxtable.TaxTable{}, taxtable.ErrTaxTableVersionExists
		}
		if isUniqueViolation(err, "uk_tax_table_effective_from") {
			return taxtable.TaxTable{}, taxtable.ErrTaxTableNotLater
		}
		return taxtable.TaxTable{}, fmt.Errorf("failed to create tax table: %w", err)
	}

	return table, nil
}

func (r *taxTableRepository) List(ctx context.Context) ([]taxtable.TaxTable, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT version, jurisdiction, currency, effective_from, bands, relief, rates, published_at
		FROM tax_tables
		ORDER BY effective_from
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tax tables: %w", err)
	}
	defer rows.Close()

	tables := make([]taxtable.TaxTable, 0)
	for rows.Next() {
		var t taxtable.TaxTable
		var bandsJSON, reliefJSON, ratesJSON []byte
		var effectiveFrom time.Time
		if err := rows.Scan(
			&t.Version, &t.Jurisdiction, &t.Currency, &effectiveFrom,
			&bandsJSON, &reliefJSON, &ratesJSON, &t.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tax table: %w", err)
		}
		t.EffectiveFrom = time.Date(effectiveFrom.Year(), effectiveFrom.Month(), effectiveFrom.Day(), 0, 0, 0, 0, time.UTC)

		var bands []bandDocument
		if err := json.Unmarshal(bandsJSON, &bands); err != nil {
			return nil, fmt.Errorf("decode bands of tax table %s: %w", t.Version, err)
		}
		t.Bands = make([]taxtable.TaxBand, len(bands))
		for i, b := range bands {
			t.Bands[i] = taxtable.TaxBand{LowerBound: b.LowerBound, UpperBound: b.UpperBound, Rate: b.Rate}
		}

		var relief reliefDocument
		if err := json.Unmarshal(reliefJSON, &relief); err != nil {
			return nil, fmt.Errorf("decode relief of tax table %s: %w", t.Version, err)
		}
		t.Relief = taxtable.ReliefRule(relief)

		var rates ratesDocument
		if err := json.Unmarshal(ratesJSON, &rates); err != nil {
			return nil, fmt.Errorf("decode rates of tax table %s: %w", t.Version, err)
		}
		t.Rates = taxtable.StatutoryRates(rates)

		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tax tables: %w", err)
	}

	return tables, nil
}
