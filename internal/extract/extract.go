// Package extract converts document sources — local files, raw uploads, and
// HTTP(S) URLs — into plain text ready for chunking and embedding. PDF text
// extraction uses github.com/ledongthuc/pdf; plain text and Markdown are read
// as UTF-8. Unsupported formats are rejected up front so callers fail fast.
package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/docforge/docq-go/internal/rag"
)

// Kind classifies a document source format.
type Kind string

// Supported source kinds.
const (
	KindPDF      Kind = "pdf"
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
	KindURL      Kind = "url"
)

// Extracted is the plain-text result of extracting a document source.
type Extracted struct {
	// Content is the extracted plain text.
	Content string
	// Source is the originating file path or URL.
	Source string
	// Kind is the detected source format.
	Kind Kind
	// Pages is the page count for paginated formats (0 when not applicable).
	Pages int
}

// kindByExtension maps file extensions to source kinds.
var kindByExtension = map[string]Kind{
	".pdf":      KindPDF,
	".txt":      KindText,
	".text":     KindText,
	".log":      KindText,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
}

// DetectKind infers the source kind from a file path or URL. URLs are
// detected by scheme; files by extension. Unsupported extensions return an
// error wrapping rag.ErrInvalidArgument.
func DetectKind(source string) (Kind, error) {
	lower := strings.ToLower(source)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return KindURL, nil
	}
	ext := strings.ToLower(filepath.Ext(source))
	if k, ok := kindByExtension[ext]; ok {
		return k, nil
	}
	return "", fmt.Errorf("extract: unsupported source %q (expected .pdf, .txt, .md, or an http(s) URL): %w", source, rag.ErrInvalidArgument)
}

// Extractor converts document sources into plain text. The zero value is not
// usable; construct with New.
type Extractor struct {
	// client fetches URL sources.
	client *http.Client
	// userAgent is sent with URL fetches.
	userAgent string
}

// Config holds the extractor configuration.
type Config struct {
	// HTTPTimeout bounds each URL fetch. Defaults to 30s if zero.
	HTTPTimeout time.Duration
	// UserAgent is the HTTP User-Agent header for URL fetches.
	UserAgent string
}

// New constructs an Extractor from the given config. A nil config selects
// all defaults.
func New(cfg *Config) *Extractor {
	if cfg == nil {
		cfg = &Config{}
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "docq/1.0 (document ingestion)"
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: ua,
	}
}

// Extract converts the given source — a file path or http(s) URL — into
// plain text. The format is detected with DetectKind.
func (e *Extractor) Extract(ctx context.Context, source string) (*Extracted, error) {
	kind, err := DetectKind(source)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindURL:
		return e.fetchURL(ctx, source)
	case KindPDF:
		return extractPDFFile(source)
	default:
		return extractTextFile(source, kind)
	}
}

// FromReader extracts plain text from an in-memory document, as received by
// an upload endpoint. size is the total byte length of r; name is used for
// format detection and as the recorded source.
func (e *Extractor) FromReader(r io.ReaderAt, size int64, name string) (*Extracted, error) {
	kind, err := DetectKind(name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPDF:
		reader, err := pdf.NewReader(r, size)
		if err != nil {
			return nil, fmt.Errorf("extract: open pdf %s: %w", name, err)
		}
		content, pages := pdfPlainText(reader)
		return &Extracted{Content: content, Source: name, Kind: KindPDF, Pages: pages}, nil

	case KindText, KindMarkdown:
		buf := make([]byte, size)
		if _, err := r.ReadAt(buf, 0); err != nil && err != io.EOF {
			return nil, fmt.Errorf("extract: read %s: %w", name, err)
		}
		text, err := validText(buf, name)
		if err != nil {
			return nil, err
		}
		return &Extracted{Content: text, Source: name, Kind: kind}, nil

	default:
		return nil, fmt.Errorf("extract: source kind %q cannot be read from memory: %w", kind, rag.ErrInvalidArgument)
	}
}

// fetchURL retrieves the body of a URL as plain text.
func (e *Extractor) fetchURL(ctx context.Context, url string) (*Extracted, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("extract: create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/plain, text/html, text/markdown")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extract: unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("extract: read body of %s: %w", url, err)
	}

	return &Extracted{
		Content: strings.TrimSpace(string(body)),
		Source:  url,
		Kind:    KindURL,
	}, nil
}

// extractPDFFile extracts the plain text of a PDF on disk.
func extractPDFFile(path string) (*Extracted, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open pdf %s: %w", path, err)
	}
	defer f.Close()

	content, pages := pdfPlainText(reader)
	return &Extracted{Content: content, Source: path, Kind: KindPDF, Pages: pages}, nil
}

// pdfPlainText walks every page of a PDF and concatenates its text.
// Pages that fail to decode are skipped rather than aborting the document.
func pdfPlainText(reader *pdf.Reader) (string, int) {
	var buf strings.Builder
	numPages := reader.NumPage()

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		buf.WriteString(text)
		buf.WriteString("\n")
	}

	return strings.TrimSpace(buf.String()), numPages
}

// extractTextFile reads a plain text or Markdown file as UTF-8.
func extractTextFile(path string, kind Kind) (*Extracted, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extract: read %s: %w", path, err)
	}
	text, err := validText(data, path)
	if err != nil {
		return nil, err
	}
	return &Extracted{Content: text, Source: path, Kind: kind}, nil
}

// validText trims and validates raw bytes as UTF-8 text.
func validText(data []byte, name string) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("extract: %s is not valid UTF-8 text: %w", name, rag.ErrInvalidArgument)
	}
	return strings.TrimSpace(string(data)), nil
}
