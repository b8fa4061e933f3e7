package taxtable

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
	"github.com/cmlabs-hris/hris-payroll-go/internal/fixtures"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Tables []seedTable `yaml:"tables"`
}

type seedTable struct {
	Version       string     `yaml:"version"`
	Jurisdiction  string     `yaml:"jurisdiction"`
	Currency      string     `yaml:"currency"`
	EffectiveFrom string     `yaml:"effective_from"`
	Bands         []seedBand `yaml:"bands"`
	Relief        struct {
		FlatPercent  string `yaml:"flat_percent"`
		MinimumFloor string `yaml:"minimum_floor"`
		GrossPercent string `yaml:"gross_percent"`
	} `yaml:"relief"`
	Rates struct {
		PensionEmployee         string `yaml:"pension_employee"`
		PensionEmployer         string `yaml:"pension_employer"`
		HousingFundEmployee     string `yaml:"housing_fund_employee"`
		HousingFundMinimumBasic string `yaml:"housing_fund_minimum_basic"`
		NSITFEmployer           string `yaml:"nsitf_employer"`
		ITFEmployer             string `yaml:"itf_employer"`
	} `yaml:"rates"`
}

type seedBand struct {
	LowerBound string `yaml:"lower_bound"`
	UpperBound string `yaml:"upper_bound"`
	Rate       string `yaml:"rate"`
}

// LoadSeedTables reads tax tables from a YAML file. When the file does not exist the
// default jurisdiction table is returned instead. A table that omits the relief
// minimum floor uses minimumReliefFloor.
func LoadSeedTables(path string, minimumReliefFloor decimal.Decimal) ([]taxtable.TaxTable, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return []taxtable.TaxTable{
			fixtures.DefaultTaxTable(fixtures.DefaultTaxTableEffectiveFrom, minimumReliefFloor),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tax table seed file: %w", err)
	}
	return ParseSeedTables(data, minimumReliefFloor)
}

// ParseSeedTables decodes the YAML seed format.
func ParseSeedTables(data []byte, minimumReliefFloor decimal.Decimal) ([]taxtable.TaxTable, error) {
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse tax table seed file: %w", err)
	}

	tables := make([]taxtable.TaxTable, 0, len(file.Tables))
	for i, st := range file.Tables {
		table, err := st.toTaxTable(minimumReliefFloor)
		if err != nil {
			return nil, fmt.Errorf("tax table %d (%s): %w", i+1, st.Version, err)
		}
		if err := table.Validate(); err != nil {
			return nil, fmt.Errorf("tax table %d (%s): %w", i+1, st.Version, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func (st seedTable) toTaxTable(minimumReliefFloor decimal.Decimal) (taxtable.TaxTable, error) {
	effectiveFrom, ok := validator.IsValidDate(st.EffectiveFrom)
	if !ok {
		return taxtable.TaxTable{}, fmt.Errorf("%w: effective_from must be in YYYY-MM-DD format", taxtable.ErrInvalidTaxTable)
	}

	p := amountParser{}
	bands := make([]taxtable.TaxBand, 0, len(st.Bands))
	for _, b := range st.Bands {
		band := taxtable.TaxBand{
			LowerBound: p.parse("lower_bound", b.LowerBound),
			Rate:       p.parse("rate", b.Rate),
		}
		if b.UpperBound != "" {
			upper := p.parse("upper_bound", b.UpperBound)
			band.UpperBound = &upper
		}
		bands = append(bands, band)
	}

	floor := minimumReliefFloor
	if st.Relief.MinimumFloor != "" {
		floor = p.parse("relief.minimum_floor", st.Relief.MinimumFloor)
	}

	table := taxtable.TaxTable{
		Version:       st.Version,
		Jurisdiction:  st.Jurisdiction,
		Currency:      st.Currency,
		EffectiveFrom: effectiveFrom,
		Bands:         bands,
		Relief: taxtable.ReliefRule{
			FlatPercent:  p.parse("relief.flat_percent", st.Relief.FlatPercent),
			MinimumFloor: floor,
			GrossPercent: p.parse("relief.gross_percent", st.Relief.GrossPercent),
		},
		Rates: taxtable.StatutoryRates{
			PensionEmployee:         p.parse("rates.pension_employee", st.Rates.PensionEmployee),
			PensionEmployer:         p.parse("rates.pension_employer", st.Rates.PensionEmployer),
			HousingFundEmployee:     p.parse("rates.housing_fund_employee", st.Rates.HousingFundEmployee),
			HousingFundMinimumBasic: p.parse("rates.housing_fund_minimum_basic", st.Rates.HousingFundMinimumBasic),
			NSITFEmployer:           p.parse("rates.nsitf_employer", st.Rates.NSITFEmployer),
			ITFEmployer:             p.parse("rates.itf_employer", st.Rates.ITFEmployer),
		},
	}
	if p.err != nil {
		return taxtable.TaxTable{}, p.err
	}
	return table, nil
}

// amountParser keeps the first parse error so a table can be decoded in one pass.
// Empty values parse as zero.
type amountParser struct {
	err error
}

func (p *amountParser) parse(field, value string) decimal.Decimal {
	if value == "" || p.err != nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		p.err = fmt.Errorf("%w: %s %q is not a number", taxtable.ErrInvalidTaxTable, field, value)
		return decimal.Zero
	}
	return d
}
