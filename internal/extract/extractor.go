// Package extract provides text extraction from knowledge-base document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/medrag/internal/models"
	"go.uber.org/zap"
)

// ErrUnsupportedFormat is returned for formats that are recognised but disabled.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor extracts plain text from document files.
type Extractor struct {
	pdfEnabled bool
	logger     *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for per-page PDF warnings.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// WithPDF enables or disables PDF extraction. PDF is enabled by default.
func WithPDF(enabled bool) Option {
	return func(e *Extractor) { e.pdfEnabled = enabled }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{pdfEnabled: true, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether files with extension ext can be extracted.
func (e *Extractor) Supports(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf":
		return e.pdfEnabled
	case ".txt", ".md", ".docx", ".odt", ".rtf", ".xlsx":
		return true
	default:
		return false
	}
}

// Extract reads the file at path and returns its text content.
// Any failure is wrapped with models.ErrDocumentRead.
func (e *Extractor) Extract(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrDocumentRead, filepath.Base(path), err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	text, err := e.ExtractBytes(content, ext)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", models.ErrDocumentRead, filepath.Base(path), err)
	}
	return text, nil
}

// ExtractBytes extracts text from content based on the given extension.
// ext should include the leading dot (e.g. ".pdf"). Unknown extensions are read as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		if !e.pdfEnabled {
			return "", fmt.Errorf("%w: PDF support disabled", ErrUnsupportedFormat)
		}
		return extractPDF(content, e.logger)
	case ".docx":
		return extractDOCX(content)
	case ".odt", ".rtf":
		return extractWithCat(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}
