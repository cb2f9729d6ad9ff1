// Package store persists the manifest and chunk records in BoltDB and
// serves brute-force cosine search from an in-memory copy of the chunks.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"kb/internal/domain"
)

var (
	bucketManifest  = []byte("manifest")
	bucketChunks    = []byte("chunks")
	bucketDocChunks = []byte("doc_chunks")
	bucketMeta      = []byte("meta")
)

// ErrCorrupt marks stored data that cannot be decoded. Unlike a missing
// store, which initializes fresh, this is surfaced to the caller.
var ErrCorrupt = errors.New("corrupt store data")

// BoltStore implements port.Store on a single BoltDB file.
//
// Each document's chunks are replaced inside one bbolt transaction, so a
// reader or a crash never observes a mix of a document's old and new
// chunks. Search runs over an in-memory copy kept in insertion order,
// which makes equal-score ordering reproducible.
type BoltStore struct {
	db *bbolt.DB

	mu    sync.RWMutex
	cache []domain.Chunk

	// Fingerprint of the current session's parameters, recorded by
	// CheckFingerprint and restored whenever Clear wipes the meta bucket.
	fp      Fingerprint
	fpKnown bool
}

type manifestRecord struct {
	Signature domain.Signature `json:"signature"`
	IndexedAt int64            `json:"indexed_at"`
	Chunks    int              `json:"chunks"`
}

type chunkRecord struct {
	Path      string    `json:"path"`
	Seq       int       `json:"seq"`
	StartLine int       `json:"start_line"`
	EndLine   int       `json:"end_line"`
	Hash      string    `json:"hash"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
}

// NewBoltStore opens (or creates) the store at path and loads the chunk
// cache. A missing file initializes an empty store; undecodable contents
// surface as ErrCorrupt.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketManifest, bucketChunks, bucketDocChunks, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	if err := s.loadCache(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// loadCache rebuilds the in-memory chunk list from disk, ordered by path
// and stored sequence so reopening reproduces a stable insertion order.
func (s *BoltStore) loadCache() error {
	var chunks []domain.Chunk

	err := s.db.View(func(tx *bbolt.Tx) error {
		docChunks := tx.Bucket(bucketDocChunks)
		chunkBucket := tx.Bucket(bucketChunks)

		return docChunks.ForEach(func(path, idsData []byte) error {
			var ids []string
			if err := json.Unmarshal(idsData, &ids); err != nil {
				return fmt.Errorf("%w: chunk list for %s: %v", ErrCorrupt, path, err)
			}
			for _, id := range ids {
				data := chunkBucket.Get([]byte(id))
				if data == nil {
					return fmt.Errorf("%w: missing chunk %s for %s", ErrCorrupt, id, path)
				}
				var rec chunkRecord
				if err := json.Unmarshal(data, &rec); err != nil {
					return fmt.Errorf("%w: chunk %s: %v", ErrCorrupt, id, err)
				}
				chunks = append(chunks, recordToChunk(id, rec))
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		if chunks[i].Path != chunks[j].Path {
			return chunks[i].Path < chunks[j].Path
		}
		return chunks[i].Seq < chunks[j].Seq
	})

	s.cache = chunks
	return nil
}

// UpsertDocument replaces all chunks owned by entry.Path with chunks and
// writes the manifest entry, in one transaction.
func (s *BoltStore) UpsertDocument(entry domain.ManifestEntry, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		manifest := tx.Bucket(bucketManifest)
		chunkBucket := tx.Bucket(bucketChunks)
		docChunks := tx.Bucket(bucketDocChunks)

		if err := deleteDocLocked(tx, entry.Path); err != nil {
			return err
		}

		ids := make([]string, 0, len(chunks))
		for _, chunk := range chunks {
			data, err := json.Marshal(chunkToRecord(chunk))
			if err != nil {
				return err
			}
			if err := chunkBucket.Put([]byte(chunk.ID), data); err != nil {
				return err
			}
			ids = append(ids, chunk.ID)
		}

		idsData, err := json.Marshal(ids)
		if err != nil {
			return err
		}
		if err := docChunks.Put([]byte(entry.Path), idsData); err != nil {
			return err
		}

		rec := manifestRecord{
			Signature: entry.Signature,
			IndexedAt: entry.IndexedAt.Unix(),
			Chunks:    len(chunks),
		}
		recData, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return manifest.Put([]byte(entry.Path), recData)
	})
	if err != nil {
		return err
	}

	s.dropFromCache(entry.Path)
	s.cache = append(s.cache, chunks...)
	return nil
}

// RemoveDocument deletes the manifest entry and all chunks owned by path.
// Removing an unknown path is a no-op.
func (s *BoltStore) RemoveDocument(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteDocLocked(tx, path); err != nil {
			return err
		}
		return tx.Bucket(bucketManifest).Delete([]byte(path))
	})
	if err != nil {
		return err
	}

	s.dropFromCache(path)
	return nil
}

// deleteDocLocked removes path's chunk records and chunk list inside tx.
func deleteDocLocked(tx *bbolt.Tx, path string) error {
	docChunks := tx.Bucket(bucketDocChunks)
	chunkBucket := tx.Bucket(bucketChunks)

	data := docChunks.Get([]byte(path))
	if data == nil {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("%w: chunk list for %s: %v", ErrCorrupt, path, err)
	}
	for _, id := range ids {
		if err := chunkBucket.Delete([]byte(id)); err != nil {
			return err
		}
	}
	return docChunks.Delete([]byte(path))
}

func (s *BoltStore) dropFromCache(path string) {
	kept := s.cache[:0]
	for _, c := range s.cache {
		if c.Path != path {
			kept = append(kept, c)
		}
	}
	s.cache = kept
}

// Manifest returns all manifest entries keyed by path.
func (s *BoltStore) Manifest() (map[string]domain.ManifestEntry, error) {
	entries := make(map[string]domain.ManifestEntry)

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketManifest).ForEach(func(k, v []byte) error {
			var rec manifestRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("%w: manifest entry %s: %v", ErrCorrupt, k, err)
			}
			entries[string(k)] = domain.ManifestEntry{
				Path:      string(k),
				Signature: rec.Signature,
				IndexedAt: time.Unix(rec.IndexedAt, 0),
				Chunks:    rec.Chunks,
			}
			return nil
		})
	})
	return entries, err
}

// ChunksByPath returns the chunks owned by path in sequence order.
func (s *BoltStore) ChunksByPath(path string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocChunks).Get([]byte(path))
		if data == nil {
			return nil
		}
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			return fmt.Errorf("%w: chunk list for %s: %v", ErrCorrupt, path, err)
		}
		chunkBucket := tx.Bucket(bucketChunks)
		for _, id := range ids {
			raw := chunkBucket.Get([]byte(id))
			if raw == nil {
				return fmt.Errorf("%w: missing chunk %s for %s", ErrCorrupt, id, path)
			}
			var rec chunkRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return fmt.Errorf("%w: chunk %s: %v", ErrCorrupt, id, err)
			}
			chunks = append(chunks, recordToChunk(id, rec))
		}
		return nil
	})
	return chunks, err
}

// Search returns up to k chunks ranked by descending cosine similarity to
// the query vector. Equal scores keep insertion order. k larger than the
// store returns everything; k <= 0 returns nothing.
func (s *BoltStore) Search(query []float32, k int) ([]domain.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if k <= 0 || len(s.cache) == 0 {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(s.cache))
	for _, chunk := range s.cache {
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

// Stats reports document and chunk counts.
func (s *BoltStore) Stats() (domain.Stats, error) {
	s.mu.RLock()
	chunks := len(s.cache)
	s.mu.RUnlock()

	docs := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		docs = tx.Bucket(bucketManifest).Stats().KeyN
		return nil
	})
	if err != nil {
		return domain.Stats{}, err
	}

	return domain.Stats{Documents: docs, Chunks: chunks}, nil
}

// Clear removes every manifest entry, chunk and meta record. The session's
// fingerprint is written back, so an index rebuilt after a clear is still
// recognized as stale by a later open with different parameters.
func (s *BoltStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketManifest, bucketChunks, bucketDocChunks, bucketMeta} {
			if err := tx.DeleteBucket(b); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(b); err != nil {
				return err
			}
		}
		if s.fpKnown {
			data, err := json.Marshal(s.fp)
			if err != nil {
				return err
			}
			return tx.Bucket(bucketMeta).Put(keyFingerprint, data)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cache = nil
	return nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func chunkToRecord(chunk domain.Chunk) chunkRecord {
	return chunkRecord{
		Path:      chunk.Path,
		Seq:       chunk.Seq,
		StartLine: chunk.StartLine,
		EndLine:   chunk.EndLine,
		Hash:      chunk.Hash,
		Text:      chunk.Text,
		Vector:    chunk.Vector,
	}
}

func recordToChunk(id string, rec chunkRecord) domain.Chunk {
	return domain.Chunk{
		ID:        id,
		Path:      rec.Path,
		Seq:       rec.Seq,
		StartLine: rec.StartLine,
		EndLine:   rec.EndLine,
		Hash:      rec.Hash,
		Text:      rec.Text,
		Vector:    rec.Vector,
	}
}

// cosineSimilarity calculates the cosine similarity between two vectors.
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
