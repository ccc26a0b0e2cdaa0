package worker

import (
	"context"

	pkgerrors "sjsage522/propertyworker/pkg/errors"

	"github.com/robfig/cron/v3"
)

// Schedule runs the worker on a standard five-field cron spec until ctx is
// cancelled. A run still in progress when the next one is due is not overlapped.
func (w *Worker) Schedule(ctx context.Context, spec string) error {
	cronParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	_, err := c.AddFunc(spec, func() {
		if _, err := w.Run(ctx); err != nil {
			w.log.Error().Err(err).Msg("Scheduled crawl failed")
		}
	})
	if err != nil {
		return pkgerrors.NewConfiguration("invalid CRAWL_SCHEDULE "+spec, err)
	}

	c.Start()
	w.log.Info().Str("schedule", spec).Msg("Cron scheduler started")

	<-ctx.Done()

	// Wait for a running crawl to return
	stopCtx := c.Stop()
	<-stopCtx.Done()
	w.log.Info().Msg("Cron scheduler stopped")
	return nil
}
