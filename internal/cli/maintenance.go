package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"tidyhome/internal/app"
	"tidyhome/internal/config"
	"tidyhome/internal/infra"
	"tidyhome/internal/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long:  "Apply embedded schema migrations to the database named by TIDY_DB_DSN.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := infra.NewDB(cmd.Context(), cfg.DB.DSN)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := infra.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one lifecycle sweep",
		Long:  "Record past-due transitions for appointments whose day has passed and report completions awaiting payment.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logging.Setup(cfg.Log.Level, cfg.Log.Format)
			a, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			recorded, err := a.Appointment.RecordPastDue(cmd.Context())
			if err != nil {
				return err
			}
			unpaid, err := a.Appointment.ListAwaitingPayment(cmd.Context())
			if err != nil {
				return err
			}
			if isJSON() {
				return printJSON(cmd.OutOrStdout(), map[string]int{"past_due_recorded": recorded, "awaiting_payment": len(unpaid)})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Past due recorded: %d\nAwaiting payment:  %d\n", recorded, len(unpaid))
			return nil
		},
	}
}
