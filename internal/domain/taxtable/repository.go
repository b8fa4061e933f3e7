package taxtable

import "context"

// TaxTableRepository persists published tables. Tables are append-only: there is no
// update or delete.
type TaxTableRepository interface {
	Create(ctx context.Context, table TaxTable) (TaxTable, error)
	List(ctx context.Context) ([]TaxTable, error)
}
