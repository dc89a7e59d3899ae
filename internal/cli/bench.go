package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

// benchResult counts the outcomes of one approval race.
type benchResult struct {
	Cleaners int           `json:"cleaners"`
	Needed   int           `json:"employees_needed"`
	Approved int           `json:"approved"`
	Rejected int           `json:"rejected"`
	Errors   int           `json:"errors"`
	Assigned int           `json:"assigned_after"`
	Elapsed  time.Duration `json:"elapsed"`
	Pass     bool          `json:"pass"`
}

func newBenchCmd() *cobra.Command {
	var cleaners int

	cmd := &cobra.Command{
		Use:   "bench <appointment-id>",
		Short: "Race approvals against one appointment",
		Long: "Submit a request for each of --cleaners synthetic cleaners, approve them all concurrently " +
			"and check that the appointment never ends up with more cleaners than it needs.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cleaners < 1 {
				return errors.New("--cleaners must be at least 1")
			}
			res, err := runBench(cmd.Context(), newAPIClient(), args[0], cleaners)
			if err != nil {
				return err
			}
			if isJSON() {
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else {
				status := "PASS"
				if !res.Pass {
					status = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-5s approved=%d rejected=%d errors=%d assigned=%d/%d (%s)\n",
					status, res.Approved, res.Rejected, res.Errors, res.Assigned, res.Needed, res.Elapsed)
			}
			if !res.Pass {
				return errors.New("capacity exceeded")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cleaners, "cleaners", 20, "number of concurrent cleaners")

	return cmd
}

type benchAppointment struct {
	EmployeesNeeded int      `json:"employees_needed"`
	Assigned        []string `json:"employees_assigned"`
}

func runBench(ctx context.Context, api *apiClient, appointmentID string, cleaners int) (benchResult, error) {
	res := benchResult{Cleaners: cleaners}
	run := time.Now().UnixNano()

	requestIDs := make([]string, 0, cleaners)
	for i := 0; i < cleaners; i++ {
		var r struct {
			ID string `json:"id"`
		}
		body := map[string]string{"cleaner_id": fmt.Sprintf("bench-%d-%d", run, i)}
		if err := api.do(ctx, http.MethodPost, "/api/appointments/"+appointmentID+"/requests", body, &r); err != nil {
			return res, fmt.Errorf("request job: %w", err)
		}
		requestIDs = append(requestIDs, r.ID)
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	start := time.Now()
	for _, id := range requestIDs {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := api.do(ctx, http.MethodPost, "/api/requests/"+id+"/approve", nil, nil)
			mu.Lock()
			defer mu.Unlock()
			var apiErr *apiError
			switch {
			case err == nil:
				res.Approved++
			case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
				res.Rejected++
			default:
				res.Errors++
			}
		}()
	}
	wg.Wait()
	res.Elapsed = time.Since(start)

	var after benchAppointment
	if err := api.do(ctx, http.MethodGet, "/api/appointments/"+appointmentID, nil, &after); err != nil {
		return res, fmt.Errorf("reload appointment: %w", err)
	}
	res.Needed = after.EmployeesNeeded
	res.Assigned = len(after.Assigned)
	res.Pass = res.Assigned <= res.Needed && res.Approved <= res.Needed
	return res, nil
}
