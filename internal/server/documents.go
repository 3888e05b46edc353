package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/docforge/docq-go/internal/extract"
	"github.com/docforge/docq-go/internal/ingestion"
	"github.com/docforge/docq-go/internal/logging"
	"github.com/docforge/docq-go/internal/rag"
)

// handleDocuments handles POST /api/documents. It accepts either a JSON body
// (a source reference to fetch, or inline name+content) or a multipart file
// upload under the "file" form field, then chunks, embeds, and indexes the
// document.
func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	ext, err := s.extractDocument(r)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error())
		return
	}

	chunks, err := s.ingestor.IngestExtracted(r.Context(), ext)
	if err != nil {
		outcome, status := classifyIngestError(err)
		log.Warn("ingest failed",
			slog.String("source", ext.Source),
			slog.String("outcome", outcome),
			slog.Any("error", err),
		)
		writeError(w, status, err.Error())
		return
	}

	s.metrics.ingestDocumentsTotal.Inc()
	s.metrics.ingestChunksTotal.Add(float64(chunks))

	log.Info("document indexed",
		slog.String("source", ext.Source),
		slog.Int("chunks", chunks),
	)

	writeJSON(w, http.StatusCreated, documentResponse{
		Source:     ext.Source,
		DocumentID: ingestion.DocumentID(ext.Source),
		Chunks:     chunks,
	})
}

// extractDocument parses the request body into extracted plain text,
// dispatching on the request content type.
func (s *Server) extractDocument(r *http.Request) (*extract.Extracted, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return s.extractUpload(r)
	}

	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, err
		}
		return nil, errors.New("invalid request body")
	}
	switch {
	case req.Source != "":
		return s.extractor.Extract(r.Context(), req.Source)
	case req.Name != "" && req.Content != "":
		body := []byte(req.Content)
		return s.extractor.FromReader(bytes.NewReader(body), int64(len(body)), req.Name)
	default:
		return nil, errors.New("either source or name+content is required")
	}
}

// extractUpload reads the "file" form field from a multipart request and
// extracts its content based on the uploaded filename.
func (s *Server) extractUpload(r *http.Request) (*extract.Extracted, error) {
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		return nil, errors.New("invalid multipart body")
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, errors.New("missing file field")
	}
	defer f.Close()

	// PDF extraction needs random access, so buffer the upload in memory.
	// MaxBytesReader has already bounded the size.
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	return s.extractor.FromReader(bytes.NewReader(data), int64(len(data)), hdr.Filename)
}

// classifyIngestError maps a pipeline error to a metric outcome and HTTP
// status. Unreadable or empty documents are the caller's problem (400);
// embedding backend failures are upstream (502).
func classifyIngestError(err error) (outcome string, status int) {
	switch {
	case errors.Is(err, rag.ErrInvalidArgument):
		return outcomeInvalid, http.StatusBadRequest
	case errors.Is(err, rag.ErrEmbeddingFailed):
		return outcomeUpstream, http.StatusBadGateway
	default:
		return outcomeError, http.StatusInternalServerError
	}
}
