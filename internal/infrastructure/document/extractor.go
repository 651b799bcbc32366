package document

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
)

// DefaultMaxPages caps how many PDF pages are read
const DefaultMaxPages = 50

// Extractor reads text from PDFs (via MuPDF) and plain-text files
type Extractor struct {
	maxPages int
	logger   *zap.Logger
}

// NewExtractor creates an extractor reading at most maxPages PDF pages
func NewExtractor(maxPages int, logger *zap.Logger) *Extractor {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Extractor{maxPages: maxPages, logger: logger}
}

func (e *Extractor) Extract(ctx context.Context, path string) (*port.ExtractedText, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("document not found: %w", err)
	}

	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	switch {
	case mime.Is("application/pdf"):
		return e.extractPDF(ctx, path, mime.String())
	case strings.HasPrefix(mime.String(), "text/"):
		return e.extractPlain(path, mime.String())
	}
	return nil, fmt.Errorf("unsupported document type: %s", mime.String())
}

func (e *Extractor) extractPDF(ctx context.Context, path, mimeType string) (*port.ExtractedText, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	limit := pages
	if limit > e.maxPages {
		limit = e.maxPages
		e.logger.Info("Truncating long PDF", zap.String("path", path), zap.Int("pages", pages), zap.Int("limit", limit))
	}

	var b strings.Builder
	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.Text(i)
		if err != nil {
			e.logger.Warn("Failed to extract page text", zap.String("path", path), zap.Int("page", i), zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	e.logger.Debug("Extracted PDF text", zap.String("path", path), zap.Int("pages", pages), zap.Int("chars", b.Len()))
	return &port.ExtractedText{Text: b.String(), MimeType: mimeType, Pages: pages}, nil
}

func (e *Extractor) extractPlain(path, mimeType string) (*port.ExtractedText, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("document is not valid UTF-8")
	}
	return &port.ExtractedText{Text: strings.TrimSpace(string(raw)), MimeType: mimeType, Pages: 1}, nil
}

var _ port.TextExtractor = (*Extractor)(nil)
