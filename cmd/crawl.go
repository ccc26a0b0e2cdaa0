package cmd

import (
	"fmt"

	"sjsage522/propertyworker/helpers"
	"sjsage522/propertyworker/internal/crawler"
	"sjsage522/propertyworker/logger"
	"sjsage522/propertyworker/services/worker"

	"github.com/spf13/cobra"
)

func newCrawlCommand(a *app) *cobra.Command {
	var (
		full     bool
		unblock  bool
		schedule string
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the search results and upsert new and changed listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg
			log := logger.Default

			if cmd.Flags().Changed("full") {
				cfg.FullRecrawl = full
			}
			if cmd.Flags().Changed("max-pages") {
				cfg.MaxPages = maxPages
			}
			if schedule == "" {
				schedule = cfg.CrawlSchedule
			}

			sel := crawler.DefaultSelectors()
			if cfg.SelectorsFile != "" {
				loaded, err := crawler.LoadSelectors(cfg.SelectorsFile)
				if err != nil {
					return err
				}
				sel = loaded
			}

			services, err := initializeServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer services.Cleanup()

			if unblock {
				if err := crawler.ClearRateLimit(services.Cache, cfg.SearchURL()); err != nil {
					return err
				}
			}

			fetcher, closeFetcher, err := crawler.CreateFetcher(ctx, cfg, services.Cache)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeFetcher(); err != nil {
					logger.LogError("fetcher", err, "failed to close browser session")
				}
			}()

			w := worker.NewWorker(
				fetcher,
				sel,
				services.Store,
				services.Publisher,
				helpers.NewFailureLog(cfg.FailureLogPath),
				worker.Options{
					RootURL:      cfg.SearchURL(),
					MaxPages:     cfg.MaxPages,
					FullRecrawl:  cfg.FullRecrawl,
					ChangeFields: cfg.ChangeFields,
				},
			)

			log.Info().
				Str("environment", cfg.Environment).
				Str("root", cfg.SearchURL()).
				Str("fetch_mode", cfg.FetchMode).
				Str("store", cfg.StoreBackend).
				Msg("Starting crawl")

			if schedule != "" {
				return w.Schedule(ctx, schedule)
			}

			summary, err := w.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d new, %d updated, %d unchanged, %d failed\n",
				summary.RunID, summary.New, summary.Updated, summary.Unchanged, summary.Failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&full, "full", false, "fetch listings already in the current-state store")
	cmd.Flags().BoolVar(&unblock, "unblock", false, "clear the portal's rate-limit block before crawling")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron spec to crawl on repeatedly (overrides CRAWL_SCHEDULE)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "cap on the number of result pages")
	return cmd
}
