package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/schedule"
)

// newScheduleCmd creates the 'schedule' subcommand: invocations on a cron schedule.
func newScheduleCmd() *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs invocations on the configured cron schedule",
		Long: `Runs one invocation per firing of schedule.spec (for example "@every 10m"
or "*/10 * * * *"). A firing that arrives while an invocation is still running is
skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.Logger()
			runner := appInstance.Runner()

			var opts []schedule.Option
			if now {
				opts = append(opts, schedule.WithImmediate())
			}
			sched, err := schedule.New(appInstance.Config().Schedule.Spec, func(ctx context.Context) {
				res := runner.Run(ctx)
				logger.Debug("scheduled invocation done",
					zap.String("invocation_id", res.InvocationID),
					zap.Stringer("stage", res.Stage),
				)
			}, logger, opts...)
			if err != nil {
				return err
			}
			return sched.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "run one invocation immediately before waiting for the schedule")
	return cmd
}
