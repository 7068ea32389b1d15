package retriever

import (
	"strings"

	"github.com/hyperjump/medrag/internal/models"
)

// DefaultMaxChunks is the number of passages included in a prompt context block.
const DefaultMaxChunks = 3

const contextHeader = "RELEVANT MEDICAL KNOWLEDGE:\n"

// FormatContext renders the first maxChunks results, in the given order, as:
//
//	RELEVANT MEDICAL KNOWLEDGE:
//
//	[Source: <source> - <section>]
//	<text>
//
// Blocks are separated by a blank line. No results yields "".
func FormatContext(results []models.RetrievalResult, maxChunks int) string {
	if len(results) == 0 {
		return ""
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	if len(results) > maxChunks {
		results = results[:maxChunks]
	}
	parts := make([]string, 0, len(results)+1)
	parts = append(parts, contextHeader)
	for _, res := range results {
		parts = append(parts, "\n[Source: "+res.Source+" - "+res.Section+"]\n"+res.Text+"\n")
	}
	return strings.Join(parts, "\n")
}
