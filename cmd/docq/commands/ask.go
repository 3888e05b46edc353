package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docforge/docq-go/internal/logging"
)

// NewAskCmd constructs the `docq ask` command, which answers a single natural
// language question against the indexed documents and prints the answer with
// its sources.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your indexed documents",
		Long: `Ask a natural language question and get an answer grounded in the documents
you have ingested, with the sources that were used.

Examples:
  docq ask "what does the architecture doc say about caching?"
  docq ask --top-k 10 "summarise the incident postmortem"
  INDEX_BACKEND=qdrant docq ask "which API endpoints require auth?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			vs, _, err := openIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer vs.Close()

			history, closeHistory := openHistory(log)
			defer closeHistory()

			engine, err := buildEngine(ctx, emb, vs, history)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.Join(args, " ")

			answer, err := engine.Ask(ctx, question, topK)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)
			if len(answer.Sources) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Sources:")
				for i, src := range answer.Sources {
					fmt.Fprintf(out, "  [%d] %s (score %.3f)\n", i+1, src.Ref, src.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of chunks to retrieve (default: RETRIEVAL_TOP_K or 5)")

	return cmd
}
