package port

import "kb/internal/domain"

// Chunker splits extracted text into ordered, bounded fragments.
// An empty input yields zero chunks, which is a valid state.
type Chunker interface {
	Chunk(path, text string) ([]domain.Chunk, error)
}
