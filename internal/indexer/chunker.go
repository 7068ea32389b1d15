// Package indexer provides document chunking and knowledge-base indexing.
package indexer

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/hyperjump/medrag/internal/models"
)

// SectionDelimiter separates sections inside a knowledge-base document.
const SectionDelimiter = "\n====================\n"

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50
)

// Chunker splits documents into sections and sections into overlapping chunks.
// Size is measured in characters, overlap in words.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size (characters) and overlap (words).
// A non-positive size falls back to DefaultChunkSize.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// ChunkID returns the deterministic id for a chunk position.
func ChunkID(source, section string, index int) string {
	sum := md5.Sum([]byte(source + "_" + section + "_" + strconv.Itoa(index)))
	return hex.EncodeToString(sum[:])
}

// Split partitions content into sections and packs each section into chunks.
// Empty sections and empty bodies produce nothing.
func (c *Chunker) Split(content, source string) []*models.Chunk {
	var chunks []*models.Chunk
	for _, raw := range strings.Split(content, SectionDelimiter) {
		section := strings.TrimSpace(raw)
		if section == "" {
			continue
		}
		title, body := splitTitle(section)
		if body == "" {
			continue
		}
		chunks = append(chunks, c.splitSection(source, title, body)...)
	}
	return chunks
}

func splitTitle(section string) (title, body string) {
	first, rest, found := strings.Cut(section, "\n")
	title = strings.TrimSpace(first)
	if !found {
		return title, section
	}
	return title, strings.TrimSpace(rest)
}

func (c *Chunker) splitSection(source, title, body string) []*models.Chunk {
	if len(body) <= c.chunkSize {
		return []*models.Chunk{newChunk(source, title, 0, body)}
	}

	var (
		chunks  []*models.Chunk
		current []string
		size    int
		index   int
	)
	for _, word := range strings.Fields(body) {
		wordSize := len(word) + 1
		if size+wordSize > c.chunkSize && len(current) > 0 {
			chunks = append(chunks, newChunk(source, title, index, strings.Join(current, " ")))
			carry := c.overlapWords(current)
			current = append(carry, word)
			size = wordsSize(current)
			index++
			continue
		}
		current = append(current, word)
		size += wordSize
	}
	if len(current) > 0 {
		chunks = append(chunks, newChunk(source, title, index, strings.Join(current, " ")))
	}
	return chunks
}

// overlapWords returns the trailing words that seed the next chunk: the last
// chunkOverlap words, or the whole chunk when it is shorter than that.
func (c *Chunker) overlapWords(words []string) []string {
	n := c.chunkOverlap
	if n > len(words) {
		n = len(words)
	}
	out := make([]string, n, n+1)
	copy(out, words[len(words)-n:])
	return out
}

func wordsSize(words []string) int {
	n := 0
	for _, w := range words {
		n += len(w) + 1
	}
	return n
}

func newChunk(source, section string, index int, text string) *models.Chunk {
	return &models.Chunk{
		ID:         ChunkID(source, section, index),
		Text:       text,
		Source:     source,
		Section:    section,
		ChunkIndex: index,
	}
}
