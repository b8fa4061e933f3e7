package taxtable

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
)

type TaxTableServiceImpl struct {
	provider taxtable.Provider
}

func NewTaxTableService(provider taxtable.Provider) taxtable.TaxTableService {
	return &TaxTableServiceImpl{provider: provider}
}

func (s *TaxTableServiceImpl) GetTaxTable(ctx context.Context, effectiveDate time.Time) (taxtable.TaxTableResponse, error) {
	table, err := s.provider.GetActiveTable(effectiveDate)
	if err != nil {
		return taxtable.TaxTableResponse{}, err
	}
	return taxtable.NewTaxTableResponse(table), nil
}

func (s *TaxTableServiceImpl) ListVersions(ctx context.Context) ([]taxtable.TaxTableResponse, error) {
	tables := s.provider.ListTables()

	responses := make([]taxtable.TaxTableResponse, 0, len(tables))
	for _, t := range tables {
		responses = append(responses, taxtable.NewTaxTableResponse(t))
	}
	return responses, nil
}

func (s *TaxTableServiceImpl) PublishTaxTable(ctx context.Context, req taxtable.PublishTaxTableRequest) (taxtable.TaxTableResponse, error) {
	if err := req.Validate(); err != nil {
		return taxtable.TaxTableResponse{}, err
	}

	published, err := s.provider.Publish(ctx, req.ToTaxTable())
	if err != nil {
		return taxtable.TaxTableResponse{}, err
	}
	return taxtable.NewTaxTableResponse(published), nil
}
