package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/docforge/docq-go/internal/extract"
	"github.com/docforge/docq-go/internal/ingestion"
	"github.com/docforge/docq-go/internal/rag"
)

// writeTestFile writes content to path with owner-only permissions.
func writeTestFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

// postDocumentJSON posts a JSON body to handleDocuments and returns the recorder.
func postDocumentJSON(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handleDocuments(w, req)
	return w
}

// TestHandleDocuments_InlineContent verifies that inline name+content is
// extracted, ingested, and answered with the deterministic document ID.
func TestHandleDocuments_InlineContent(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ing := &fakeIngestor{chunks: 4}
	s.ingestor = ing

	w := postDocumentJSON(s, `{"name":"notes.md","content":"# RAG\n\nRetrieval notes."}`)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}

	if ing.last == nil {
		t.Fatal("ingestor was not called")
	}
	if ing.last.Kind != extract.KindMarkdown {
		t.Errorf("kind: expected markdown, got %q", ing.last.Kind)
	}
	if ing.last.Source != "notes.md" {
		t.Errorf("source: expected notes.md, got %q", ing.last.Source)
	}

	var resp documentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Chunks != 4 {
		t.Errorf("chunks: expected 4, got %d", resp.Chunks)
	}
	if resp.DocumentID != ingestion.DocumentID("notes.md") {
		t.Errorf("documentId: expected %q, got %q", ingestion.DocumentID("notes.md"), resp.DocumentID)
	}
}

// TestHandleDocuments_SourcePath verifies that a file path source is read
// from disk and ingested.
func TestHandleDocuments_SourcePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := dir + "/guide.txt"
	if err := writeTestFile(path, "plain text guide"); err != nil {
		t.Fatalf("fixture: %v", err)
	}

	s := newTestServer()
	ing := &fakeIngestor{chunks: 1}
	s.ingestor = ing

	w := postDocumentJSON(s, fmt.Sprintf(`{"source":%q}`, path))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	if ing.last == nil || ing.last.Content != "plain text guide" {
		t.Errorf("ingested content mismatch: %+v", ing.last)
	}
}

// TestHandleDocuments_MultipartUpload verifies that a multipart file upload
// is extracted by filename and ingested.
func TestHandleDocuments_MultipartUpload(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "report.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("quarterly report body")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	s := newTestServer()
	ing := &fakeIngestor{chunks: 2}
	s.ingestor = ing

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.handleDocuments(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}
	if ing.last == nil {
		t.Fatal("ingestor was not called")
	}
	if ing.last.Source != "report.txt" {
		t.Errorf("source: expected report.txt, got %q", ing.last.Source)
	}
	if ing.last.Content != "quarterly report body" {
		t.Errorf("content mismatch: %q", ing.last.Content)
	}
}

// TestHandleDocuments_MissingFields verifies that a body with neither source
// nor inline content is rejected with 400.
func TestHandleDocuments_MissingFields(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := postDocumentJSON(s, `{}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleDocuments_MalformedBody verifies that non-JSON input is rejected.
func TestHandleDocuments_MalformedBody(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := postDocumentJSON(s, "not json at all")

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleDocuments_UnsupportedExtension verifies that an unrecognized file
// extension is rejected with 400 before reaching the ingestor.
func TestHandleDocuments_UnsupportedExtension(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	ing := &fakeIngestor{}
	s.ingestor = ing

	w := postDocumentJSON(s, `{"name":"photo.png","content":"binarystuff"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d — body: %s", w.Code, w.Body.String())
	}
	if ing.last != nil {
		t.Error("ingestor must not be called for unsupported sources")
	}
}

// TestHandleDocuments_EmbeddingFailure verifies that an embedding backend
// failure during ingestion maps to 502 Bad Gateway.
func TestHandleDocuments_EmbeddingFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingestor = &fakeIngestor{err: fmt.Errorf("ingestion: embed batch: %w", rag.ErrEmbeddingFailed)}

	w := postDocumentJSON(s, `{"name":"doc.txt","content":"some text"}`)

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d — body: %s", w.Code, w.Body.String())
	}
}

// TestHandleDocuments_EmptyDocument verifies that an ingest-level invalid
// argument (e.g. whitespace-only content) maps to 400.
func TestHandleDocuments_EmptyDocument(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.ingestor = &fakeIngestor{err: fmt.Errorf("ingestion: document produced no chunks: %w", rag.ErrInvalidArgument)}

	w := postDocumentJSON(s, `{"name":"doc.txt","content":"x"}`)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

// TestHandleDocuments_BodyTooLarge verifies that a body over MaxUploadBytes
// is rejected with 413.
func TestHandleDocuments_BodyTooLarge(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.MaxUploadBytes = 64

	body := fmt.Sprintf(`{"name":"doc.txt","content":%q}`, strings.Repeat("a", 512))
	w := postDocumentJSON(s, body)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d — body: %s", w.Code, w.Body.String())
	}
}
