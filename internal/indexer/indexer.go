package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/medrag/internal/collection"
	"github.com/hyperjump/medrag/internal/embedding"
	"github.com/hyperjump/medrag/internal/extract"
	"github.com/hyperjump/medrag/internal/models"
	"go.uber.org/zap"
)

// BuildReport summarizes one pass over the knowledge-base directory.
type BuildReport struct {
	Files   int `json:"files"`
	Skipped int `json:"skipped"`
	Chunks  int `json:"chunks"`
}

// Indexer reads knowledge-base files, chunks and embeds them, and upserts the entries.
type Indexer struct {
	dir        string
	extensions []string
	embedder   embedding.Embedder
	chunker    *Chunker
	extractor  *extract.Extractor
	logger     *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for per-file events.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithExtensions restricts indexing to the given extensions (case-insensitive, leading dot optional).
func WithExtensions(exts []string) IndexerOption {
	return func(idx *Indexer) { idx.extensions = exts }
}

// NewIndexer creates an indexer for the knowledge-base directory dir.
// chunker and extractor may be nil; the defaults chunk at 500/50 and skip PDFs.
func NewIndexer(dir string, embedder embedding.Embedder, chunker *Chunker, extractor *extract.Extractor, opts ...IndexerOption) *Indexer {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	if extractor == nil {
		extractor = extract.NewExtractor(extract.WithPDF(false))
	}
	idx := &Indexer{
		dir:        dir,
		extensions: []string{".txt", ".pdf"},
		embedder:   embedder,
		chunker:    chunker,
		extractor:  extractor,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Dir returns the knowledge-base directory.
func (idx *Indexer) Dir() string {
	return idx.dir
}

// Accepts reports whether path is a knowledge-base file this indexer handles.
func (idx *Indexer) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return extensionAllowed(ext, idx.extensions) && idx.extractor.Supports(ext)
}

// SourceName returns the source identity of a file: its name without extension.
func SourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BuildCollection indexes every accepted file directly inside the knowledge-base directory.
// A file that cannot be read is logged and skipped; only storage failures abort the build.
// A missing directory is logged and yields an empty report.
func (idx *Indexer) BuildCollection(ctx context.Context, coll *collection.Collection) (BuildReport, error) {
	var report BuildReport
	files, err := idx.listFiles()
	if err != nil {
		idx.logger.Error("knowledge base not readable", zap.String("dir", idx.dir), zap.Error(err))
		return report, nil
	}
	if len(files) == 0 {
		idx.logger.Warn("no knowledge-base documents found", zap.String("dir", idx.dir))
		return report, nil
	}

	idx.logger.Info("indexing knowledge base", zap.String("dir", idx.dir), zap.Int("files", len(files)))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		n, err := idx.indexPath(ctx, coll, path)
		switch {
		case err == nil:
			report.Files++
			report.Chunks += n
		case isFatal(err):
			return report, err
		case errors.Is(err, models.ErrMalformedChunkInput):
			report.Skipped++
			idx.logger.Warn("no text extracted", zap.String("file", filepath.Base(path)), zap.Error(err))
		default:
			report.Skipped++
			idx.logger.Error("error indexing document", zap.String("file", filepath.Base(path)), zap.Error(err))
		}
	}
	idx.logger.Info("knowledge base indexed",
		zap.Int("files", report.Files),
		zap.Int("skipped", report.Skipped),
		zap.Int("chunks", report.Chunks))
	return report, nil
}

// IndexFile re-indexes the source that path belongs to and returns the number of chunks written.
// Entries are keyed by file stem, so files sharing a stem (flu.txt and flu.pdf) form one source:
// its entries are removed and every accepted file with that stem is indexed again, in name order
// as a full build would. Errors from sibling files are logged; errors from path are returned.
func (idx *Indexer) IndexFile(ctx context.Context, coll *collection.Collection, path string) (int, error) {
	if !idx.Accepts(path) {
		return 0, fmt.Errorf("extension %q not indexed", filepath.Ext(path))
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrDocumentRead, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: not a regular file: %s", models.ErrDocumentRead, path)
	}
	if _, err := coll.DeleteSource(ctx, SourceName(path)); err != nil {
		return 0, err
	}
	return idx.indexSource(ctx, coll, path, true)
}

// RemoveFile deletes every entry of the source path belonged to and re-indexes the files that
// still share its stem. Returns the number of entries deleted.
func (idx *Indexer) RemoveFile(ctx context.Context, coll *collection.Collection, path string) (int64, error) {
	removed, err := coll.DeleteSource(ctx, SourceName(path))
	if err != nil {
		return 0, err
	}
	if _, err := idx.indexSource(ctx, coll, path, false); err != nil {
		return removed, err
	}
	return removed, nil
}

// indexSource indexes every accepted file in path's directory that shares its source name,
// path itself only when includePath is set.
func (idx *Indexer) indexSource(ctx context.Context, coll *collection.Collection, path string, includePath bool) (int, error) {
	files, err := listFilesIn(filepath.Dir(path), idx.Accepts)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrDocumentRead, err)
	}
	source := SourceName(path)
	var (
		total   int
		pathErr error
	)
	for _, f := range files {
		self := filepath.Clean(f) == filepath.Clean(path)
		if SourceName(f) != source || (self && !includePath) {
			continue
		}
		n, err := idx.indexPath(ctx, coll, f)
		switch {
		case err == nil:
			total += n
		case isFatal(err):
			return total, err
		case self:
			pathErr = err
		default:
			idx.logger.Warn("error indexing sibling document", zap.String("file", filepath.Base(f)), zap.Error(err))
		}
	}
	return total, pathErr
}

// isFatal reports whether err should abort a pass instead of skipping one file.
func isFatal(err error) bool {
	return errors.Is(err, models.ErrIndexUnavailable) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (idx *Indexer) indexPath(ctx context.Context, coll *collection.Collection, path string) (int, error) {
	idx.logger.Debug("indexing file", zap.String("path", path))
	text, err := idx.extractor.Extract(path)
	if err != nil {
		return 0, err
	}
	source := SourceName(path)
	chunks := idx.chunker.Split(text, source)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: no section text in %s", models.ErrMalformedChunkInput, filepath.Base(path))
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	entries := make([]*models.IndexEntry, len(chunks))
	for i, ch := range chunks {
		entries[i] = &models.IndexEntry{Chunk: ch, Embedding: embeddings[i]}
	}
	if err := coll.Upsert(ctx, entries); err != nil {
		return 0, err
	}
	idx.logger.Info("indexed document", zap.String("file", filepath.Base(path)), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// listFiles returns accepted regular files directly inside the knowledge-base directory.
func (idx *Indexer) listFiles() ([]string, error) {
	return listFilesIn(idx.dir, idx.Accepts)
}

// listFilesIn returns the regular files directly inside dir that accept admits, sorted by name.
func listFilesIn(dir string, accept func(path string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !accept(path) {
			continue
		}
		// Resolve symlinks so we only index regular files
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}
	sort.Strings(files)
	return files, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// Build adapts BuildCollection to collection.BuildFunc.
func (idx *Indexer) Build(ctx context.Context, coll *collection.Collection) error {
	_, err := idx.BuildCollection(ctx, coll)
	return err
}
