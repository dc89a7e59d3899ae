package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tidyhome/internal/modules/pricing"
)

type quoteOutput struct {
	pricing.Breakdown
	EmployeesNeeded int `json:"employees_needed"`
}

func newQuoteCmd() *cobra.Command {
	var (
		beds, baths    int
		window         string
		sheets, towels bool
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a cleaning",
		Long:  "Compute the price and crew size for a home of the given size and service options.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if beds < 1 || baths < 1 {
				return fmt.Errorf("--beds and --baths must be at least 1")
			}
			w, err := pricing.ParseTimeWindow(window)
			if err != nil {
				return fmt.Errorf("unknown time window %q", window)
			}
			out := quoteOutput{
				Breakdown:       pricing.Itemize(beds, baths, w, sheets, towels),
				EmployeesNeeded: pricing.EmployeesNeeded(beds, baths),
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), out)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "Rooms\t$%d\n", out.RoomBase)
			fmt.Fprintf(tw, "Time window\t$%d\n", out.WindowSurcharge)
			fmt.Fprintf(tw, "Linens\t$%d\n", out.AddOns)
			fmt.Fprintf(tw, "Total\t$%d\n", out.Total)
			fmt.Fprintf(tw, "Cleaners\t%d\n", out.EmployeesNeeded)
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&beds, "beds", 1, "number of bedrooms")
	cmd.Flags().IntVar(&baths, "baths", 1, "number of bathrooms")
	cmd.Flags().StringVar(&window, "window", string(pricing.WindowAnytime), "time window (anytime|10-3|11-4|12-2)")
	cmd.Flags().BoolVar(&sheets, "sheets", false, "cleaners bring sheets")
	cmd.Flags().BoolVar(&towels, "towels", false, "cleaners bring towels")

	return cmd
}
