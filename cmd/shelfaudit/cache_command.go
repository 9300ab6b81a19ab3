package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Health cache maintenance",
	}
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Wipe the health cache (required after switching libraries)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStores(nil)
			if err != nil {
				return err
			}
			defer st.close()

			if err := st.health.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Health cache cleared; the next sweep rescans everything")
			return nil
		},
	}
}
