package taxtable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/metrics"
)

// ProviderImpl keeps every published table in memory, ordered by effective date,
// and persists new versions through the repository.
type ProviderImpl struct {
	repo    taxtable.TaxTableRepository
	metrics *metrics.Payroll
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	tables []taxtable.TaxTable

	// serializes Publish and Reload so version and ordering checks see a stable index
	publishMu sync.Mutex
}

func NewProvider(repo taxtable.TaxTableRepository, m *metrics.Payroll, logger *slog.Logger) *ProviderImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProviderImpl{
		repo:    repo,
		metrics: m,
		logger:  logger.With("component", "tax_table_provider"),
		now:     time.Now,
	}
}

// GetActiveTable returns the most recent table whose effective date is on or before
// effectiveDate.
func (p *ProviderImpl) GetActiveTable(effectiveDate time.Time) (taxtable.TaxTable, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	i := sort.Search(len(p.tables), func(i int) bool {
		return !p.tables[i].CoversDate(effectiveDate)
	})
	if i == 0 {
		return taxtable.TaxTable{}, fmt.Errorf("%w: %s", taxtable.ErrNoTaxTable, effectiveDate.Format("2006-01-02"))
	}
	return p.tables[i-1].Clone(), nil
}

// ListTables returns every published table, oldest first.
func (p *ProviderImpl) ListTables() []taxtable.TaxTable {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]taxtable.TaxTable, len(p.tables))
	for i, t := range p.tables {
		out[i] = t.Clone()
	}
	return out
}

// Publish validates and persists a new table version. A version can be published
// only once and must take effect strictly after the latest published table.
func (p *ProviderImpl) Publish(ctx context.Context, table taxtable.TaxTable) (taxtable.TaxTable, error) {
	if err := table.Validate(); err != nil {
		return taxtable.TaxTable{}, err
	}

	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	p.mu.RLock()
	for _, existing := range p.tables {
		if existing.Version == table.Version {
			p.mu.RUnlock()
			return taxtable.TaxTable{}, fmt.Errorf("%w: %s", taxtable.ErrTaxTableVersionExists, table.Version)
		}
	}
	if n := len(p.tables); n > 0 {
		latest := p.tables[n-1]
		if !table.EffectiveFrom.After(latest.EffectiveFrom) {
			p.mu.RUnlock()
			return taxtable.TaxTable{}, fmt.Errorf("%w: %s is not after %s (%s)", taxtable.ErrTaxTableNotLater,
				table.EffectiveFrom.Format("2006-01-02"), latest.EffectiveFrom.Format("2006-01-02"), latest.Version)
		}
	}
	p.mu.RUnlock()

	table = table.Clone()
	table.PublishedAt = p.now().UTC()

	created, err := p.repo.Create(ctx, table)
	if err != nil {
		return taxtable.TaxTable{}, err
	}

	p.mu.Lock()
	p.tables = append(p.tables, created.Clone())
	sortTables(p.tables)
	count := len(p.tables)
	p.mu.Unlock()

	p.metrics.SetTaxTables(count)
	p.logger.Info("tax table published",
		"version", created.Version,
		"jurisdiction", created.Jurisdiction,
		"effective_from", created.EffectiveFrom.Format("2006-01-02"),
	)

	return created.Clone(), nil
}

// Reload replaces the index with the repository's contents so tables published by
// other instances become visible. Invalid stored tables are skipped.
func (p *ProviderImpl) Reload(ctx context.Context) error {
	p.publishMu.Lock()
	defer p.publishMu.Unlock()

	stored, err := p.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tax tables: %w", err)
	}

	tables := make([]taxtable.TaxTable, 0, len(stored))
	for _, t := range stored {
		if err := t.Validate(); err != nil {
			p.logger.Warn("skipping invalid stored tax table", "version", t.Version, "error", err)
			continue
		}
		tables = append(tables, t.Clone())
	}
	sortTables(tables)

	p.mu.Lock()
	p.tables = tables
	p.mu.Unlock()

	p.metrics.SetTaxTables(len(tables))
	p.logger.Debug("tax tables reloaded", "count", len(tables))
	return nil
}

// Seed publishes every seed table whose version is not stored yet. Seeds older than
// the latest stored table are skipped with a warning.
func (p *ProviderImpl) Seed(ctx context.Context, seeds []taxtable.TaxTable) error {
	if err := p.Reload(ctx); err != nil {
		return err
	}

	ordered := append([]taxtable.TaxTable(nil), seeds...)
	sortTables(ordered)

	for _, seed := range ordered {
		_, err := p.Publish(ctx, seed)
		switch {
		case err == nil:
		case errors.Is(err, taxtable.ErrTaxTableVersionExists):
			p.logger.Debug("seed tax table already published", "version", seed.Version)
		case errors.Is(err, taxtable.ErrTaxTableNotLater):
			p.logger.Warn("seed tax table predates the latest published table", "version", seed.Version)
		default:
			return fmt.Errorf("failed to seed tax table %s: %w", seed.Version, err)
		}
	}
	return nil
}

func sortTables(tables []taxtable.TaxTable) {
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].EffectiveFrom.Before(tables[j].EffectiveFrom)
	})
}
