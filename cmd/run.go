package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Performs a single ingestion run",
		Long: `Loads the category tree, drains every category and exits. The exit
code is non-zero when the run could not start or the category tree failed.
Individual category failures are reported in the summary only.`,
		RunE: runOnceCommand,
	}
}

func runOnceCommand(cmd *cobra.Command, _ []string) error {
	rt, err := resolveRuntime(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rep, err := rt.app.RunOnce(ctx)
	if err != nil {
		return err
	}
	rt.logger.Info("run command finished",
		zap.String("run_id", rep.RunID),
		zap.String("status", string(rep.Status)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "run %s %s: %d categories, %d products, %d failed categories\n",
		rep.RunID, rep.Status, rep.Categories, rep.ProductsPersisted, len(rep.Errors))
	if rep.ReportURI != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", rep.ReportURI)
	}
	return nil
}
