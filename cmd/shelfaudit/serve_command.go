package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"shelfaudit/internal/logging"
	"shelfaudit/internal/server"
	"shelfaudit/internal/task"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit API for the admin UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			// One server per data directory; two would race on the health
			// cache and the library files.
			lock := flock.New(cfg.LockFilePath())
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another shelfaudit instance holds %s", cfg.LockFilePath())
			}
			defer func() { _ = lock.Unlock() }()

			st, err := ctx.openStores(logger)
			if err != nil {
				return err
			}
			defer st.close()

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			runner := task.NewRunner(logger)
			srv := server.New(cfg, logger, st.lib, st.health, st.policy, runner)
			if err := srv.Start(signalCtx); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s (ctrl-c to stop)\n", srv.Addr())
			<-signalCtx.Done()
			logger.Info("shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			srv.Stop()
			return runner.Shutdown(shutdownCtx)
		},
	}
}
