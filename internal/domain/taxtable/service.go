package taxtable

import (
	"context"
	"time"
)

// Provider selects the tax table in force for an explicit effective date.
type Provider interface {
	GetActiveTable(effectiveDate time.Time) (TaxTable, error)
	ListTables() []TaxTable
	Publish(ctx context.Context, table TaxTable) (TaxTable, error)
	Reload(ctx context.Context) error
}

// TaxTableService exposes published tables for display, audit and administration.
type TaxTableService interface {
	GetTaxTable(ctx context.Context, effectiveDate time.Time) (TaxTableResponse, error)
	ListVersions(ctx context.Context) ([]TaxTableResponse, error)
	PublishTaxTable(ctx context.Context, req PublishTaxTableRequest) (TaxTableResponse, error)
}
