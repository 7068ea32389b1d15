// Package cli renders medrag command output.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/medrag/internal/models"
	"github.com/hyperjump/medrag/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputContext prints only the formatted prompt context.
	OutputContext OutputFormat = "context"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case OutputText, OutputJSON, OutputContext:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, json, or context", s)
	}
}

// Retrieval is the payload printed by the retrieve command.
type Retrieval struct {
	Query   string                   `json:"query"`
	Results []models.RetrievalResult `json:"results"`
	Context string                   `json:"context"`
}

// WriteRetrieval writes retrieval results to w in the given format.
func WriteRetrieval(w io.Writer, r *Retrieval, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case OutputContext:
		_, err := io.WriteString(w, r.Context)
		return err
	default:
		writeRetrievalText(w, r)
		return nil
	}
}

func writeRetrievalText(w io.Writer, r *Retrieval) {
	fmt.Fprintf(w, "\nFound %d relevant passages for %q\n\n", len(r.Results), r.Query)
	for _, res := range r.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Relevance: %.4f\n", res.Rank, res.RelevanceScore)
		fmt.Fprintf(w, "Source: %s - %s\n", res.Source, res.Section)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(res.Text, 200))
	}
}

// WriteStats writes collection statistics to w in the given format.
func WriteStats(w io.Writer, stats models.CollectionStats, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	fmt.Fprintf(w, "collection:        %s\n", stats.Name)
	fmt.Fprintf(w, "total_documents:   %d   # indexed chunks\n", stats.Count)
	fmt.Fprintf(w, "embedding_model:   %s\n", stats.ModelID)
	if stats.Dimensions > 0 {
		fmt.Fprintf(w, "dimensions:        %d\n", stats.Dimensions)
	}
	if stats.Version != "" {
		fmt.Fprintf(w, "version:           %s\n", stats.Version)
	}
	if stats.StorageBytes > 0 {
		fmt.Fprintf(w, "storage_bytes:     %d   # database on disk\n", stats.StorageBytes)
	}
	return nil
}
