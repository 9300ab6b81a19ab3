package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shelfaudit/internal/library"
	"shelfaudit/internal/logging"
)

func newFixCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "fix [book-id]",
		Short: "Remove extraneous format files from a book or from every unhealthy book",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("pass a book id or --all")
			}
			if len(args) == 1 && all {
				return errors.New("--all cannot be combined with a book id")
			}

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

			var books []*library.BookRecord
			if len(args) == 1 {
				id, err := strconv.ParseInt(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid book id %q", args[0])
				}
				book, err := st.lib.GetBook(cmd.Context(), id)
				if err != nil {
					return err
				}
				if book == nil {
					return fmt.Errorf("book %d not found", id)
				}
				books = append(books, book)
			} else {
				entries, err := st.health.AllUnhealthy(cmd.Context())
				if err != nil {
					return err
				}
				for _, entry := range entries {
					book, err := st.lib.GetBook(cmd.Context(), entry.BookID)
					if err != nil {
						return err
					}
					if book != nil {
						books = append(books, book)
					}
				}
			}

			fixed, err := st.policy.FixAll(cmd.Context(), st.lib, st.health, books, cfg.Paths.LibraryDir)
			if err != nil {
				return fmt.Errorf("fix: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Remediated %d of %d books\n", fixed, len(books))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remediate every book the cache marks unhealthy")
	return cmd
}
