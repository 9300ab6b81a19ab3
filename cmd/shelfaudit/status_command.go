package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show cached library health",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStores(nil)
			if err != nil {
				return err
			}
			defer st.close()

			books, err := st.lib.ListBooks(cmd.Context())
			if err != nil {
				return err
			}
			healthy, scanned, err := st.health.Counts(cmd.Context())
			if err != nil {
				return err
			}
			lastScan, err := st.health.MaxScanTime(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Library: %s\n", st.cfg.Paths.LibraryDir)
			fmt.Fprintf(out, "Books: %d total, %d scanned, %d healthy, %d unhealthy\n",
				len(books), scanned, healthy, scanned-healthy)
			if lastScan.IsZero() {
				fmt.Fprintln(out, "Last scan: never (run `shelfaudit sweep`)")
			} else {
				fmt.Fprintf(out, "Last scan: %s\n", lastScan.UTC().Format(time.RFC3339))
			}

			unhealthy, err := st.health.AllUnhealthy(cmd.Context())
			if err != nil {
				return err
			}
			if len(unhealthy) == 0 {
				return nil
			}

			index := make(map[int64]string, len(books))
			for _, book := range books {
				index[book.ID] = book.Title
			}
			rows := make([]table.Row, 0, len(unhealthy))
			for _, entry := range unhealthy {
				missing := make([]string, 0, 3)
				if !entry.HasOriginal {
					missing = append(missing, "original")
				}
				if !entry.HasTranslation {
					missing = append(missing, "translation")
				}
				if !entry.HasViewable {
					missing = append(missing, "viewable")
				}
				rows = append(rows, table.Row{
					entry.BookID,
					index[entry.BookID],
					strings.Join(missing, ", "),
					strings.Join(entry.ExtraFormats, ", "),
					entry.DescriptionLanguage,
					yesNo(entry.ISBNMissing),
				})
			}
			fmt.Fprintln(out, renderTable(
				table.Row{"ID", "Title", "Missing", "Extraneous", "Desc lang", "No ISBN"},
				rows,
			))
			return nil
		},
	}
}
