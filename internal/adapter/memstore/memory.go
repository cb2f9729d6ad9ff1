// Package memstore provides an in-memory implementation of port.Store for
// tests and for ephemeral knowledge bases that never touch disk.
package memstore

import (
	"math"
	"sort"
	"sync"

	"kb/internal/domain"
)

type MemoryStore struct {
	mu       sync.RWMutex
	manifest map[string]domain.ManifestEntry
	ordered  []domain.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		manifest: make(map[string]domain.ManifestEntry),
	}
}

func (s *MemoryStore) UpsertDocument(entry domain.ManifestEntry, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked(entry.Path)
	s.ordered = append(s.ordered, chunks...)
	entry.Chunks = len(chunks)
	s.manifest[entry.Path] = entry
	return nil
}

func (s *MemoryStore) RemoveDocument(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked(path)
	delete(s.manifest, path)
	return nil
}

func (s *MemoryStore) dropLocked(path string) {
	kept := s.ordered[:0]
	for _, c := range s.ordered {
		if c.Path != path {
			kept = append(kept, c)
		}
	}
	s.ordered = kept
}

func (s *MemoryStore) Manifest() (map[string]domain.ManifestEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.ManifestEntry, len(s.manifest))
	for k, v := range s.manifest {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) ChunksByPath(path string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chunks []domain.Chunk
	for _, c := range s.ordered {
		if c.Path == path {
			chunks = append(chunks, c)
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Seq < chunks[j].Seq })
	return chunks, nil
}

func (s *MemoryStore) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.ordered) == 0 {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(s.ordered))
	for _, chunk := range s.ordered {
		scored = append(scored, domain.ScoredChunk{
			Chunk: chunk,
			Score: cosineSimilarity(query, chunk.Vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (s *MemoryStore) Stats() (domain.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Stats{Documents: len(s.manifest), Chunks: len(s.ordered)}, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manifest = make(map[string]domain.ManifestEntry)
	s.ordered = nil
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
