package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shelfaudit/internal/logging"
	"shelfaudit/internal/sweep"
	"shelfaudit/internal/task"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run an incremental quick-mode audit over the whole library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			st, err := ctx.openStores(logger)
			if err != nil {
				return err
			}
			defer st.close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			handle := task.NewHandle("sweep", true)
			go func() {
				<-signalCtx.Done()
				handle.Cancel()
			}()

			sweeper := sweep.New(cfg, st.lib, st.health, st.policy, logger)
			if err := sweeper.Run(signalCtx, handle); err != nil {
				return fmt.Errorf("sweep: %w", err)
			}

			healthy, total, err := st.health.Counts(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, handle.Status().Message)
			fmt.Fprintf(out, "Cache: %d books scanned, %d healthy, %d unhealthy\n", total, healthy, total-healthy)
			return nil
		},
	}
}
