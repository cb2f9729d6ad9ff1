package port

import "context"

// Embedder generates vector embeddings for text.
//
// For a fixed model, embedding is a pure function of the input text; a
// chunk's content hash therefore uniquely determines its vector, which is
// what makes skipping unchanged documents safe.
type Embedder interface {
	// Embed generates embeddings for the given texts, one vector per input
	// and in input order. A provider failure fails the whole batch; partial
	// results are never returned.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}
