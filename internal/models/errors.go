package models

import "errors"

var (
	// ErrModelUnavailable means the embedding model could not be loaded or invoked.
	ErrModelUnavailable = errors.New("embedding model unavailable")
	// ErrIndexUnavailable means the vector index storage backend could not be reached.
	ErrIndexUnavailable = errors.New("vector index unavailable")
	// ErrDocumentRead means a single knowledge-base file could not be read or extracted.
	ErrDocumentRead = errors.New("document read error")
	// ErrMalformedChunkInput means extracted text held no section the chunker could use.
	ErrMalformedChunkInput = errors.New("malformed chunk input")
)
