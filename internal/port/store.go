package port

import "kb/internal/domain"

// Store persists the manifest and the chunk records, and answers
// nearest-neighbor queries over the chunk embeddings.
//
// UpsertDocument and RemoveDocument are atomic per document: a reader or a
// crash never observes a mix of a document's old and new chunks.
type Store interface {
	// UpsertDocument replaces all chunks owned by entry.Path with chunks and
	// writes the manifest entry, as one unit.
	UpsertDocument(entry domain.ManifestEntry, chunks []domain.Chunk) error

	// RemoveDocument deletes the manifest entry and all chunks owned by
	// path. Removing an unknown path is a no-op.
	RemoveDocument(path string) error

	// Manifest returns all manifest entries keyed by path.
	Manifest() (map[string]domain.ManifestEntry, error)

	// ChunksByPath returns the chunks owned by path in sequence order.
	ChunksByPath(path string) ([]domain.Chunk, error)

	// Search returns up to k chunks ranked by descending cosine similarity
	// to the query vector. Ties keep insertion order. k larger than the
	// store returns everything; k <= 0 returns nothing.
	Search(query []float32, k int) ([]domain.ScoredChunk, error)

	// Stats reports document and chunk counts.
	Stats() (domain.Stats, error)

	// Clear removes every manifest entry and chunk.
	Clear() error

	Close() error
}
