package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tidyhome/internal/modules/location"
)

type jobRow struct {
	ID              string   `json:"id"`
	HomeID          string   `json:"home_id"`
	Date            string   `json:"date"`
	Status          string   `json:"status"`
	EmployeesNeeded int      `json:"employees_needed"`
	Assigned        []string `json:"employees_assigned"`
	Price           struct {
		Amount int64 `json:"amount"`
	} `json:"price"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func newJobsCmd() *cobra.Command {
	var (
		lat, lng float64
		sort     string
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Show the ranked job board",
		Long:  "List open appointments from the API, ranked by distance from --lat/--lng or by price.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := location.ParseSortMode(sort)
			if err != nil {
				return fmt.Errorf("unknown sort %q", sort)
			}
			q := url.Values{"sort": {string(mode)}}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng") {
				q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
				q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
			}

			var resp struct {
				Jobs []jobRow `json:"jobs"`
			}
			if err := newAPIClient().do(cmd.Context(), http.MethodGet, "/api/jobs?"+q.Encode(), nil, &resp); err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), resp.Jobs)
			}
			return printJobs(cmd, resp.Jobs)
		},
	}

	cmd.Flags().Float64Var(&lat, "lat", 0, "cleaner latitude")
	cmd.Flags().Float64Var(&lng, "lng", 0, "cleaner longitude")
	cmd.Flags().StringVar(&sort, "sort", string(location.SortDistanceClosest), "distanceClosest|distanceFurthest|priceLow|priceHigh")

	return cmd
}

func printJobs(cmd *cobra.Command, jobs []jobRow) error {
	if len(jobs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No open jobs.")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tPRICE\tCREW\tDISTANCE")
	for _, j := range jobs {
		dist := "-"
		if j.DistanceKm != nil {
			dist = fmt.Sprintf("%.1f km", *j.DistanceKm)
		}
		fmt.Fprintf(tw, "%s\t%s\t$%d\t%d/%d\t%s\n", j.ID, j.Date, j.Price.Amount, len(j.Assigned), j.EmployeesNeeded, dist)
	}
	return tw.Flush()
}
