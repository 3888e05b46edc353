package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docforge/docq-go/internal/extract"
	"github.com/docforge/docq-go/internal/qa"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout is the per-request budget for POST /api/ask, covering
	// retrieval and generation together. Defaults to 2 minutes if zero.
	AskTimeout time.Duration
	// MaxUploadBytes caps the request body size on POST /api/documents.
	// Defaults to 32 MiB if zero.
	MaxUploadBytes int64
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry is where server metrics are registered. If nil, a fresh
	// private registry is created. Tests inject their own registry to stay
	// hermetic.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Must gather the same registry the
	// metrics were registered into.
	MetricsGatherer prometheus.Gatherer
}

// answerer is the interface handleAsk calls to answer a question.
// *qa.Engine satisfies it; tests inject a fake.
type answerer interface {
	// Ask retrieves context for question and generates a grounded answer.
	Ask(ctx context.Context, question string, topK int) (*qa.Answer, error)
}

// ingestor is the interface handleDocuments calls to index extracted content.
// *ingestion.Pipeline satisfies it; tests inject a fake.
type ingestor interface {
	// IngestExtracted chunks, embeds, and stores one extracted document,
	// returning the number of chunks written.
	IngestExtracted(ctx context.Context, ext *extract.Extracted) (int, error)
}

// Server is the HTTP server that exposes question answering and document
// ingestion over a JSON API.
type Server struct {
	// engine answers questions; set to the qa.Engine in production,
	// overridden by a fake in tests.
	engine answerer
	// ingestor indexes extracted documents.
	ingestor ingestor
	// extractor converts uploads and remote sources into plain text.
	extractor *extract.Extractor
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds all Prometheus metrics owned by this server instance.
	metrics *serverMetrics
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// TopK is the number of chunks to retrieve. Zero means the engine default.
	TopK int `json:"topK,omitempty"`
}

// documentRequest is the JSON body for POST /api/documents.
// Exactly one of Source or Name+Content must be provided: Source makes the
// server fetch and extract a file path or URL itself; Name+Content ingests
// inline text, with Name's extension selecting the extraction format.
type documentRequest struct {
	// Source is a file path or http(s) URL to fetch and ingest.
	Source string `json:"source,omitempty"`
	// Name is the logical filename for inline content (e.g. "notes.md").
	Name string `json:"name,omitempty"`
	// Content is the inline document body.
	Content string `json:"content,omitempty"`
}

// documentResponse is the JSON response for POST /api/documents.
type documentResponse struct {
	// Source is the reference the document was indexed under.
	Source string `json:"source"`
	// DocumentID is the deterministic ID derived from Source. Re-ingesting
	// the same source yields the same ID and replaces the previous chunks.
	DocumentID string `json:"documentId"`
	// Chunks is the number of chunks written to the index.
	Chunks int `json:"chunks"`
}

// errorResponse is the JSON body returned on request failures.
type errorResponse struct {
	// Error is a human-readable description of the failure.
	Error string `json:"error"`
}
