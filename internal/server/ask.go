package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/docforge/docq-go/internal/logging"
	"github.com/docforge/docq-go/internal/rag"
)

// Metric outcome labels for /api/ask.
const (
	outcomeOK       = "ok"
	outcomeInvalid  = "invalid"
	outcomeUpstream = "upstream"
	outcomeTimeout  = "timeout"
	outcomeError    = "error"
)

// handleAsk handles POST /api/ask. It retrieves context for the question,
// generates a grounded answer, and returns it with the cited sources.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	s.metrics.askActiveRequests.Inc()
	defer s.metrics.askActiveRequests.Dec()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.observeAsk(outcomeInvalid, start)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	answer, err := s.engine.Ask(ctx, req.Question, req.TopK)
	if err != nil {
		outcome, status := classifyAskError(err)
		// The generation layer may report a timeout as a backend failure
		// without preserving the deadline cause; the expired request context
		// is authoritative.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome, status = outcomeTimeout, http.StatusGatewayTimeout
		}
		s.observeAsk(outcome, start)
		log.Warn("ask failed",
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		writeError(w, status, err.Error())
		return
	}

	s.observeAsk(outcomeOK, start)
	writeJSON(w, http.StatusOK, answer)
}

// observeAsk records the outcome counter and duration histogram for one
// /api/ask request.
func (s *Server) observeAsk(outcome string, start time.Time) {
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// classifyAskError maps an engine error to a metric outcome and HTTP status.
// Caller mistakes are 400, upstream model/embedding failures are 502, and
// exceeding the ask timeout is 504.
func classifyAskError(err error) (outcome string, status int) {
	switch {
	case errors.Is(err, rag.ErrInvalidArgument):
		return outcomeInvalid, http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return outcomeTimeout, http.StatusGatewayTimeout
	case errors.Is(err, rag.ErrEmbeddingFailed), errors.Is(err, rag.ErrGenerationFailed):
		return outcomeUpstream, http.StatusBadGateway
	default:
		return outcomeError, http.StatusInternalServerError
	}
}
