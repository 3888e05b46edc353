package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/docforge/docq-go/internal/ingestion"
	"github.com/docforge/docq-go/internal/logging"
)

// NewIngestCmd constructs the `docq ingest` command, which extracts, chunks,
// embeds, and indexes one or more documents.
func NewIngestCmd() *cobra.Command {
	var chunkSize int
	var chunkOverlap int
	var httpTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "ingest [source...]",
		Short: "Ingest documents into the vector index",
		Long: `Extract, chunk, embed, and index documents so they can be queried with
'docq ask'. Sources may be local file paths (.pdf, .txt, .md) or http(s) URLs.

Re-ingesting the same source replaces its previous chunks — document IDs are
derived deterministically from the source reference.

Required environment variables:
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)
  INDEX_BACKEND        sqlite (default), qdrant, or memory
  DOCQ_INDEX_DB        SQLite index path (default: ~/.docq/index.db)
  QDRANT_*             Qdrant connection settings when INDEX_BACKEND=qdrant

Examples:
  docq ingest ./docs/architecture.md ./docs/runbook.pdf
  docq ingest https://example.com/handbook
  docq ingest --chunk-size 500 --chunk-overlap 50 notes.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flags beat env (which the config loader has already layered
			// over YAML by the time RunE executes). Overlap is tracked as a
			// pointer so an explicit --chunk-overlap 0 or CHUNK_OVERLAP=0
			// disables overlap instead of falling back to the default.
			if chunkSize == 0 {
				chunkSize = getEnvInt("CHUNK_SIZE", 0)
			}
			overlap := getEnvIntPtr("CHUNK_OVERLAP")
			if cmd.Flags().Changed("chunk-overlap") {
				overlap = &chunkOverlap
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			vs, _, err := openIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer vs.Close()

			pipeline, err := ingestion.NewPipeline(emb, vs, &ingestion.Config{
				ChunkSize:    chunkSize,
				ChunkOverlap: overlap,
				HTTPTimeout:  httpTimeout,
			})
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.Int("sources", len(args)))

			result, err := pipeline.Ingest(ctx, args, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.Int("documents", result.Documents),
				slog.Int("chunks", result.Chunks),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d document(s) as %d chunk(s).\n",
				result.Documents, result.Chunks)
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in characters (default: CHUNK_SIZE or 1000)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Overlap between consecutive chunks in characters (default: CHUNK_OVERLAP or 100)")
	cmd.Flags().DurationVar(&httpTimeout, "http-timeout", 0, "Timeout per URL fetch (default: 30s)")

	return cmd
}
