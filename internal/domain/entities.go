package domain

import "time"

// Signature is a cheap proxy for "file content may have changed".
// It is only ever compared for equality; upgrading to a content hash
// touches this type and the walker that produces it, nothing else.
type Signature struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"mod_time"`
}

func (s Signature) Equal(other Signature) bool {
	return s.Size == other.Size && s.ModTime == other.ModTime
}

// ManifestEntry records one indexed source file.
type ManifestEntry struct {
	Path      string    `json:"path"`
	Signature Signature `json:"signature"`
	IndexedAt time.Time `json:"indexed_at"`
	Chunks    int       `json:"chunks"`
}

// Chunk is the unit of embedding and retrieval: a bounded fragment of one
// document's extracted text. Chunks are owned by their document and are
// replaced wholesale whenever the document is re-indexed.
type Chunk struct {
	ID        string
	Path      string
	Seq       int
	StartLine int
	EndLine   int
	Text      string
	Hash      string
	Vector    []float32
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// FileInfo is one entry of a directory scan.
type FileInfo struct {
	Path      string
	Signature Signature
}

// Changes partitions the union of manifest paths and scanned paths.
// Every path lands in exactly one bucket.
type Changes struct {
	Added     []FileInfo
	Modified  []FileInfo
	Removed   []string
	Unchanged []string
}

// FileError is a per-file failure collected during a sync pass.
type FileError struct {
	Path string
	Err  error
}

// SyncReport summarizes one synchronization pass. A pass always runs to
// completion; per-file failures are collected here instead of aborting.
type SyncReport struct {
	Scanned       int
	Added         int
	Updated       int
	Removed       int
	Unchanged     int
	ChunksIndexed int
	Failures      []FileError
	Duration      time.Duration
}

// Stats describes the current knowledge base contents.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}
