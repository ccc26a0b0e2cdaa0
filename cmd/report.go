package cmd

import (
	"fmt"

	"sjsage522/propertyworker/internal/insights"
	"sjsage522/propertyworker/services/store"

	"github.com/spf13/cobra"
)

func newReportCommand(a *app) *cobra.Command {
	var (
		listing      string
		ratioLimit   int
		largestLimit int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print plot-size rankings of the stored listings",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.OpenReader(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.LoadCurrent(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if listing != "" {
				e, link, ok := insights.Lookup(entries, listing, a.cfg.PortalBaseURL)
				if !ok {
					fmt.Fprintf(cmd.OutOrStdout(), "No property found for listing number %s\n", listing)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Property URL: %s\n", link)
				insights.RenderEntry(out, e)
				return nil
			}

			insights.RenderSummary(out, entries)
			insights.RenderRatioTable(out, insights.TopByErfRatio(entries, ratioLimit))
			insights.RenderLargestTable(out, insights.LargestPlots(entries, largestLimit))
			return nil
		},
	}

	cmd.Flags().StringVar(&listing, "listing", "", "print one listing by its listing number")
	cmd.Flags().IntVar(&ratioLimit, "top", 10, "rows in the erf-to-floor ranking")
	cmd.Flags().IntVar(&largestLimit, "largest", 5, "rows in the largest-plot ranking")
	return cmd
}
