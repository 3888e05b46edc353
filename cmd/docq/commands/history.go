package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docforge/docq-go/internal/logging"
)

// NewHistoryCmd constructs the `docq history` command, which prints recent
// question/answer exchanges from the local history store.
func NewHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent question/answer exchanges",
		Long: `Print the most recent question/answer exchanges recorded by 'docq ask' and
the HTTP API, oldest first.

History is stored at ~/.docq/history.db (override with DOCQ_HISTORY_DB; set
to "disabled" to turn recording off).

Examples:
  docq history
  docq history -n 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()

			history, closeHistory := openHistory(log)
			defer closeHistory()
			if history == nil {
				return fmt.Errorf("history: store is disabled or unavailable")
			}

			exchanges, err := history.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(exchanges) == 0 {
				fmt.Fprintln(out, "No exchanges recorded yet.")
				return nil
			}

			for _, ex := range exchanges {
				fmt.Fprintf(out, "[%s] Q: %s\n", ex.CreatedAt.Format("2006-01-02 15:04"), ex.Question)
				fmt.Fprintf(out, "A: %s\n", ex.Answer)
				if len(ex.Sources) > 0 {
					fmt.Fprintf(out, "Sources: %s\n", strings.Join(ex.Sources, ", "))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of exchanges to show")

	return cmd
}
