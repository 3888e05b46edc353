package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/docforge/docq-go/internal/extract"
	"github.com/docforge/docq-go/internal/ingestion"
	"github.com/docforge/docq-go/internal/logging"
	"github.com/docforge/docq-go/internal/server"
	"github.com/docforge/docq-go/internal/tracing"
)

// NewServeCmd constructs the `docq serve` command, which starts the HTTP API
// for document ingestion and question answering.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docq HTTP API server",
		Long: `Start the docq HTTP server on localhost.

The server exposes a JSON API:
  POST /api/ask        answer a question against the indexed documents
  POST /api/documents  ingest a document (JSON source/content or file upload)
  GET  /api/health     liveness probe
  GET  /api/ready      readiness probe (index + embedding backend)
  GET  /metrics        Prometheus metrics

Examples:
  docq serve
  docq serve --port 9090
  MODEL_PROVIDER=azure docq serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			emb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			vs, indexPinger, err := openIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer vs.Close()

			history, closeHistory := openHistory(log)
			defer closeHistory()

			engine, err := buildEngine(ctx, emb, vs, history)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pipeline, err := ingestion.NewPipeline(emb, vs, &ingestion.Config{
				ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
				ChunkOverlap: getEnvIntPtr("CHUNK_OVERLAP"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create pipeline: %w", err)
			}

			embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
			pingers := []server.Pinger{server.NewEmbedderPinger(emb, embBackend)}
			if indexPinger != nil {
				pingers = append(pingers, indexPinger)
			}

			srv, err := server.New(engine, pipeline, extract.New(nil), &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DOCQ_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
