package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Document is a single knowledge-base source: a scraped page or a seed
// file. Documents are immutable once ingested; a re-ingestion replaces
// every chunk derived from them.
type Document struct {
	// ID identifies the document within the knowledge base, typically
	// the file path relative to the kb directory.
	ID string
	// Source is the upstream identifier, usually the URL the page was
	// scraped from. Falls back to ID for hand-written seed files.
	Source string
	Text   string
}

// Chunk is a contiguous span of a document's text, the unit of
// retrieval. Chunk IDs are content-derived so that re-ingesting an
// unchanged document yields an identical collection.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Index      int
	Content    string
}

// NewChunk derives the chunk identity the same way for every ingestion
// run: sha1 over source, position, and a content prefix.
func NewChunk(doc Document, index int, content string) Chunk {
	prefix := content
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}
	sum := sha1.Sum([]byte(fmt.Sprintf("%s%d%s", doc.Source, index, prefix)))
	return Chunk{
		ID:         hex.EncodeToString(sum[:]),
		DocumentID: doc.ID,
		Source:     doc.Source,
		Index:      index,
		Content:    content,
	}
}

// RetrievedChunk pairs a chunk with its similarity to a query.
// Ephemeral; computed per query and never persisted.
type RetrievedChunk struct {
	Chunk Chunk
	Score float32
}
