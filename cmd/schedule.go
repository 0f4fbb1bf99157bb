package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/catalog-ingestor/internal/app"
)

func newScheduleCmd() *cobra.Command {
	var (
		spec       string
		runAtStart bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs ingestion on a cron schedule and serves the ops API",
		Long: `Triggers an ingestion run on every cron tick (schedule.cron by default).
A tick that fires while a run is still active is skipped. The ops API
(/healthz, /readyz, /metrics, /v1/runs/latest) listens on server.port.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if spec == "" {
				spec = rt.cfg.Schedule.Cron
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return rt.app.Schedule(ctx, app.ScheduleOptions{
				Spec:       spec,
				Addr:       fmt.Sprintf(":%d", rt.cfg.Server.Port),
				RunAtStart: runAtStart,
			})
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "cron expression overriding schedule.cron")
	cmd.Flags().BoolVar(&runAtStart, "run-at-start", false, "trigger one run immediately")
	return cmd
}
