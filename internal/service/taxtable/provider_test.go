package taxtable

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/fixtures"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu      sync.Mutex
	tables  []taxtable.TaxTable
	listErr error
}

func (r *memoryRepo) Create(ctx context.Context, table taxtable.TaxTable) (taxtable.TaxTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tables {
		if t.Version == table.Version {
			return taxtable.TaxTable{}, taxtable.ErrTaxTableVersionExists
		}
	}
	r.tables = append(r.tables, table.Clone())
	return table, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]taxtable.TaxTable, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	return append([]taxtable.TaxTable(nil), r.tables...), nil
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func tableAt(version, effective string) taxtable.TaxTable {
	t := fixtures.DefaultTaxTable(date(effective), decimal.NewFromInt(200000))
	t.Version = version
	return t
}

func TestProvider_GetActiveTable(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(&memoryRepo{}, nil, nil)

	_, err := p.GetActiveTable(date("2024-01-01"))
	assert.ErrorIs(t, err, taxtable.ErrNoTaxTable)

	_, err = p.Publish(ctx, tableAt("v2011", "2011-01-01"))
	require.NoError(t, err)
	_, err = p.Publish(ctx, tableAt("v2024", "2024-07-01"))
	require.NoError(t, err)

	cases := []struct {
		date    string
		version string
	}{
		{"2011-01-01", "v2011"},
		{"2024-06-30", "v2011"},
		{"2024-07-01", "v2024"},
		{"2030-01-01", "v2024"},
	}
	for _, c := range cases {
		t.Run(c.date, func(t *testing.T) {
			table, err := p.GetActiveTable(date(c.date))
			require.NoError(t, err)
			assert.Equal(t, c.version, table.Version)
			assert.True(t, table.CoversDate(date(c.date)))
		})
	}

	_, err = p.GetActiveTable(date("2010-12-31"))
	assert.ErrorIs(t, err, taxtable.ErrNoTaxTable)
}

func TestProvider_PublishRules(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(&memoryRepo{}, nil, nil)

	_, err := p.Publish(ctx, tableAt("v1", "2020-01-01"))
	require.NoError(t, err)

	t.Run("duplicate version", func(t *testing.T) {
		_, err := p.Publish(ctx, tableAt("v1", "2025-01-01"))
		assert.ErrorIs(t, err, taxtable.ErrTaxTableVersionExists)
	})

	t.Run("effective date not later", func(t *testing.T) {
		_, err := p.Publish(ctx, tableAt("v0", "2020-01-01"))
		assert.ErrorIs(t, err, taxtable.ErrTaxTableNotLater)
	})

	t.Run("invalid bands", func(t *testing.T) {
		bad := tableAt("v-bad", "2026-01-01")
		bad.Bands[2].LowerBound = decimal.NewFromInt(650000)
		_, err := p.Publish(ctx, bad)
		assert.ErrorIs(t, err, taxtable.ErrInvalidTaxTable)
	})

	t.Run("negative employer levy", func(t *testing.T) {
		bad := tableAt("v-levy", "2026-01-01")
		bad.Rates.ITFEmployer = decimal.RequireFromString("-0.01")
		_, err := p.Publish(ctx, bad)
		assert.ErrorIs(t, err, taxtable.ErrInvalidTaxTable)
	})

	assert.Len(t, p.ListTables(), 1)
}

func TestProvider_TablesAreImmutable(t *testing.T) {
	p := NewProvider(&memoryRepo{}, nil, nil)
	_, err := p.Publish(context.Background(), tableAt("v1", "2020-01-01"))
	require.NoError(t, err)

	got, err := p.GetActiveTable(date("2021-01-01"))
	require.NoError(t, err)
	*got.Bands[0].UpperBound = decimal.NewFromInt(1)
	got.Bands[1].Rate = decimal.NewFromInt(1)

	again, err := p.GetActiveTable(date("2021-01-01"))
	require.NoError(t, err)
	assert.True(t, again.Bands[0].UpperBound.Equal(decimal.NewFromInt(300000)))
	assert.True(t, again.Bands[1].Rate.Equal(decimal.RequireFromString("0.11")))
}

func TestProvider_ReloadSeesTablesPublishedElsewhere(t *testing.T) {
	ctx := context.Background()
	repo := &memoryRepo{}
	a := NewProvider(repo, nil, nil)
	b := NewProvider(repo, nil, nil)

	_, err := a.Publish(ctx, tableAt("v1", "2020-01-01"))
	require.NoError(t, err)

	_, err = b.GetActiveTable(date("2021-01-01"))
	assert.ErrorIs(t, err, taxtable.ErrNoTaxTable)

	require.NoError(t, b.Reload(ctx))
	table, err := b.GetActiveTable(date("2021-01-01"))
	require.NoError(t, err)
	assert.Equal(t, "v1", table.Version)

	repo.listErr = errors.New("connection refused")
	assert.Error(t, b.Reload(ctx))
	_, err = b.GetActiveTable(date("2021-01-01"))
	assert.NoError(t, err, "failed reload keeps the previous index")
}

func TestProvider_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := &memoryRepo{}
	seeds := []taxtable.TaxTable{tableAt("v2", "2024-01-01"), tableAt("v1", "2011-01-01")}

	require.NoError(t, NewProvider(repo, nil, nil).Seed(ctx, seeds))
	require.NoError(t, NewProvider(repo, nil, nil).Seed(ctx, seeds))

	stored, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestLoadSeedTables(t *testing.T) {
	floor := decimal.NewFromInt(150000)

	t.Run("missing file falls back to the default table", func(t *testing.T) {
		tables, err := LoadSeedTables(filepath.Join(t.TempDir(), "missing.yaml"), floor)
		require.NoError(t, err)
		require.Len(t, tables, 1)
		assert.Equal(t, fixtures.DefaultTaxTableVersion, tables[0].Version)
		assert.True(t, tables[0].Relief.MinimumFloor.Equal(floor))
	})

	t.Run("bundled seed file", func(t *testing.T) {
		tables, err := LoadSeedTables(filepath.Join("..", "..", "..", "config", "tax_tables.yaml"), floor)
		require.NoError(t, err)
		require.Len(t, tables, 1)

		want := fixtures.DefaultTaxTable(fixtures.DefaultTaxTableEffectiveFrom, decimal.NewFromInt(200000))
		got := tables[0]
		assert.Equal(t, want.Version, got.Version)
		assert.True(t, want.EffectiveFrom.Equal(got.EffectiveFrom))
		require.Len(t, got.Bands, len(want.Bands))
		for i := range want.Bands {
			assert.True(t, want.Bands[i].LowerBound.Equal(got.Bands[i].LowerBound))
			assert.True(t, want.Bands[i].Rate.Equal(got.Bands[i].Rate))
			assert.Equal(t, want.Bands[i].IsOpenEnded(), got.Bands[i].IsOpenEnded())
		}
		assert.True(t, got.Relief.MinimumFloor.Equal(decimal.NewFromInt(200000)))
		assert.True(t, got.Rates.HousingFundMinimumBasic.Equal(decimal.NewFromInt(360000)))
		assert.True(t, got.Rates.NSITFEmployer.Equal(want.Rates.NSITFEmployer))
		assert.True(t, got.Rates.ITFEmployer.Equal(want.Rates.ITFEmployer))
	})

	t.Run("omitted floor uses configuration", func(t *testing.T) {
		data := []byte(`
tables:
  - version: flat
    currency: NGN
    effective_from: "2025-01-01"
    bands:
      - { lower_bound: "0", rate: "0.1" }
    relief:
      flat_percent: "0.01"
`)
		tables, err := ParseSeedTables(data, floor)
		require.NoError(t, err)
		require.Len(t, tables, 1)
		assert.True(t, tables[0].Relief.MinimumFloor.Equal(floor))
	})

	t.Run("invalid amount", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tables:
  - version: bad
    effective_from: "2025-01-01"
    bands:
      - { lower_bound: "zero", rate: "0.1" }
`), 0o600))

		_, err := LoadSeedTables(path, floor)
		assert.ErrorIs(t, err, taxtable.ErrInvalidTaxTable)
	})
}
