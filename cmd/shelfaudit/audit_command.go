package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"shelfaudit/internal/sweep"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var (
		author      string
		series      string
		unhealthyOn bool
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run a full-mode content audit and print per-book results",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStores(nil)
			if err != nil {
				return err
			}
			defer st.close()

			session, err := sweep.NewSession(cmd.Context(), st.cfg, st.lib, st.health, st.policy, st.logger, author, series)
			if err != nil {
				return err
			}

			progress := session.Progress()
			for !progress.Complete {
				if progress, err = session.Advance(cmd.Context()); err != nil {
					return fmt.Errorf("audit: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			if progress.Total == 0 {
				fmt.Fprintln(out, "No books matched the selection")
				return nil
			}

			rows := make([]table.Row, 0, len(progress.Results))
			unhealthy := 0
			for _, result := range progress.Results {
				if !result.Healthy {
					unhealthy++
				}
				if unhealthyOn && result.Healthy {
					continue
				}
				rows = append(rows, table.Row{
					result.BookID,
					result.Title,
					strings.Join(result.Authors, "; "),
					yesNo(result.HasOriginal),
					yesNo(result.HasTranslation),
					yesNo(result.HasViewable),
					strings.Join(result.Extraneous, ", "),
					result.DescriptionLanguage,
					yesNo(result.Healthy),
				})
			}
			fmt.Fprintln(out, renderTable(
				table.Row{"ID", "Title", "Authors", "Orig", "Transl", "View", "Extraneous", "Desc lang", "Healthy"},
				rows,
			))
			fmt.Fprintf(out, "Audited %d books, %d unhealthy\n", progress.Total, unhealthy)
			if len(progress.MissingIndices) > 0 {
				gaps := make([]string, len(progress.MissingIndices))
				for i, index := range progress.MissingIndices {
					gaps[i] = strconv.Itoa(index)
				}
				fmt.Fprintf(out, "Missing series indices: %s\n", strings.Join(gaps, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "Only audit books by this author")
	cmd.Flags().StringVar(&series, "series", "", "Only audit books in this series")
	cmd.Flags().BoolVar(&unhealthyOn, "unhealthy", false, "Only list books that fail the policy")
	return cmd
}
