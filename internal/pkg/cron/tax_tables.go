package cron

import (
	"context"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/taxtable"
)

// TaxTableJobs keeps the in-memory tax table index in step with the store, so
// tables published through another instance become selectable here.
type TaxTableJobs struct {
	provider taxtable.Provider
	interval time.Duration
}

func NewTaxTableJobs(provider taxtable.Provider, interval time.Duration) *TaxTableJobs {
	return &TaxTableJobs{
		provider: provider,
		interval: interval,
	}
}

// RegisterJobs registers all tax-table-related cron jobs
func (j *TaxTableJobs) RegisterJobs(scheduler *Scheduler) {
	scheduler.AddJob(Job{
		Name:     "reload_tax_tables",
		Interval: j.interval,
		Timeout:  30 * time.Second,
		Fn:       j.ReloadTaxTables,
	})
}

func (j *TaxTableJobs) ReloadTaxTables(ctx context.Context) error {
	return j.provider.Reload(ctx)
}
