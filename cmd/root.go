// Package cmd implements the command-line interface of the property worker.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/propertyworker/config"
	"sjsage522/propertyworker/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries the configuration loaded before any subcommand runs
type app struct {
	cfg *config.Config
}

// NewRootCommand builds the root command and its subcommands
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "propertyworker",
		Short:         "Incremental property24 crawler",
		Long:          `Crawls property24 search results, records every scraped listing and keeps a current-state table of new and changed listings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load environment variables
			_ = godotenv.Load()

			logger.Init()

			cfg := config.LoadConfig()
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.AddCommand(newCrawlCommand(a))
	root.AddCommand(newReportCommand(a))
	root.AddCommand(newServeCommand(a))
	return root
}

// Execute runs the root command until it returns or a shutdown signal arrives
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCommand().ExecuteContext(ctx)
}
