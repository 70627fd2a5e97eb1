package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/modules/catalog"
)

// RefreshPricesJob refreshes every catalog price from the quote
// provider. The base context cancels the run on shutdown.
type RefreshPricesJob struct {
	catalog *catalog.Service
	ctx     context.Context
	log     zerolog.Logger
}

// NewRefreshPricesJob creates a new price refresh job
func NewRefreshPricesJob(ctx context.Context, catalogSvc *catalog.Service, log zerolog.Logger) *RefreshPricesJob {
	return &RefreshPricesJob{
		catalog: catalogSvc,
		ctx:     ctx,
		log:     log.With().Str("job", "refresh_prices").Logger(),
	}
}

// Name returns the job name
func (j *RefreshPricesJob) Name() string {
	return "refresh_prices"
}

// Run refreshes all prices once
func (j *RefreshPricesJob) Run() error {
	report, err := j.catalog.RefreshAllPrices(j.ctx)
	if err != nil {
		return err
	}

	j.log.Info().
		Str("report_id", report.ID).
		Int("updated", len(report.Updated)).
		Int("skipped", len(report.Skipped)).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Scheduled price refresh finished")
	return nil
}
