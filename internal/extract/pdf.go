package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// extractPDF renders each non-blank page as "\n--- Page N ---\n<text>", joined by newlines.
// A page that fails to extract is logged and skipped; the document fails only if it cannot be opened.
func extractPDF(content []byte, logger *zap.Logger) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	pages := make([]string, r.NumPage())
	for i := range pages {
		text, err := pageText(r, i+1)
		if err != nil {
			logger.Warn("skipping unreadable PDF page", zap.Int("page", i+1), zap.Error(err))
			continue
		}
		pages[i] = text
	}
	return joinPages(pages), nil
}

// joinPages renders pages[i] under a "--- Page i+1 ---" marker, dropping blank pages.
func joinPages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("\n--- Page %d ---\n%s", i+1, text))
	}
	return strings.Join(parts, "\n")
}

// pageText extracts one page. ledongthuc/pdf panics on some malformed content streams.
func pageText(r *pdf.Reader, n int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page %d: %v", n, rec)
		}
	}()
	page := r.Page(n)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}
