package models

// RetrievalResult is a single relevant passage returned for a query.
// It is produced per request and never persisted.
type RetrievalResult struct {
	Text           string  `json:"text"`
	Source         string  `json:"source"`
	Section        string  `json:"section"`
	RelevanceScore float64 `json:"relevance_score"`
	Rank           int     `json:"rank"`
}

// CollectionStats summarizes a collection for administrative callers.
type CollectionStats struct {
	Count      int64  `json:"total_documents"`
	Name       string `json:"collection_name"`
	ModelID    string `json:"embedding_model"`
	Version    string `json:"version,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	// StorageBytes is the on-disk size of the backing database, when known.
	StorageBytes int64 `json:"storage_bytes,omitempty"`
}
