package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/docforge/docq-go/internal/composer"
	"github.com/docforge/docq-go/internal/embedder"
	"github.com/docforge/docq-go/internal/index"
	"github.com/docforge/docq-go/internal/provider"
	"github.com/docforge/docq-go/internal/qa"
	"github.com/docforge/docq-go/internal/rag"
	"github.com/docforge/docq-go/internal/server"
	"github.com/docforge/docq-go/internal/store"
)

// buildEmbedder validates the embedding configuration and constructs the
// embedding backend from environment variables.
func buildEmbedder(log *slog.Logger) (rag.Embedder, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	return emb, nil
}

// openIndex opens the vector index selected by INDEX_BACKEND and returns it
// together with a readiness pinger for the backend (nil for the in-memory
// index, which has nothing to probe).
//
// Backends:
//
//	sqlite (default)  local file at DOCQ_INDEX_DB or ~/.docq/index.db
//	qdrant            remote Qdrant at QDRANT_HOST:QDRANT_PORT
//	memory            in-process only, lost on exit
func openIndex(ctx context.Context, log *slog.Logger) (rag.VectorStore, server.Pinger, error) {
	backend := getEnvOrDefault("INDEX_BACKEND", "sqlite")

	switch backend {
	case "sqlite":
		path := os.Getenv("DOCQ_INDEX_DB")
		if path == "" {
			var err error
			path, err = index.DefaultDBPath()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to resolve index path: %w", err)
			}
		}
		ix, err := index.OpenSQLite(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open index at %s: %w", path, err)
		}
		log.Info("index opened",
			slog.String("backend", "sqlite"),
			slog.String("path", path),
			slog.Int("documents", ix.Len()),
		)
		return ix, server.NewIndexPinger(ix), nil

	case "qdrant":
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		collection := getEnvOrDefault("QDRANT_COLLECTION", "docq-docs")
		embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
		vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

		qs, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: collection,
			VectorSize: vectorSize,
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("index opened",
			slog.String("backend", "qdrant"),
			slog.String("host", host),
			slog.Int("port", port),
			slog.String("collection", collection),
		)
		return qs, server.NewQdrantPinger(qs.Client()), nil

	case "memory":
		log.Info("index opened", slog.String("backend", "memory"))
		return index.NewMemoryIndex(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown INDEX_BACKEND %q — valid values: sqlite, qdrant, memory: %w",
			backend, rag.ErrInvalidConfiguration)
	}
}

// buildEngine wires the chat model, prompt composer, and retriever into a
// question answering engine. history may be nil to skip exchange recording.
func buildEngine(ctx context.Context, emb rag.Embedder, vs rag.VectorStore, history store.HistoryStore) (*qa.Engine, error) {
	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	comp, err := composer.New(chatModel, &composer.Config{
		MaxPromptTokens: getEnvInt("PROMPT_MAX_TOKENS", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create composer: %w", err)
	}

	retriever, err := rag.NewRetriever(emb, vs)
	if err != nil {
		return nil, fmt.Errorf("failed to create retriever: %w", err)
	}

	engine, err := qa.New(retriever, comp, history, &qa.Config{
		TopK: getEnvInt("RETRIEVAL_TOP_K", 0),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	return engine, nil
}

// openHistory opens the exchange history store. DOCQ_HISTORY_DB overrides the
// default path (~/.docq/history.db); set to "disabled" to skip recording.
// History failures are never fatal — a nil store and a no-op closer are
// returned instead.
func openHistory(log *slog.Logger) (store.HistoryStore, func()) {
	noop := func() {}

	dbPath := os.Getenv("DOCQ_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via DOCQ_HISTORY_DB=disabled")
		return nil, noop
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil, noop
		}
	}

	hs, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil, noop
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return hs, func() { _ = hs.Close() }
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvIntPtr returns the integer value of the named environment variable,
// or nil when it is unset, empty, or not parseable. Unlike getEnvInt this
// keeps an explicit zero distinguishable from "not set".
func getEnvIntPtr(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &i
}
