package store

import (
	"encoding/json"

	"go.etcd.io/bbolt"
)

// CurrentSchemaVersion is the storage format version. Increment on breaking
// changes to the record layout.
const CurrentSchemaVersion = 1

var keyFingerprint = []byte("fingerprint")

// Fingerprint captures the parameters a stored index depends on. A chunk's
// content hash only determines its vector for a fixed embedding model, so
// changing any of these invalidates every stored embedding.
type Fingerprint struct {
	SchemaVersion  int    `json:"schema_version"`
	EmbeddingModel string `json:"embedding_model"`
	Dimension      int    `json:"dimension"`
	MaxChars       int    `json:"max_chars"`
	OverlapChars   int    `json:"overlap_chars"`
}

// CheckResult reports whether the stored index is usable with the current
// parameters.
type CheckResult struct {
	NeedsRebuild bool
	Reason       string
}

// CheckFingerprint compares the stored fingerprint against fp. A store with
// no fingerprint yet (fresh) adopts fp. fp also becomes the session
// fingerprint that Clear writes back after wiping the meta bucket.
func (s *BoltStore) CheckFingerprint(fp Fingerprint) (CheckResult, error) {
	var stored *Fingerprint

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMeta).Get(keyFingerprint)
		if data == nil {
			return nil
		}
		stored = &Fingerprint{}
		return json.Unmarshal(data, stored)
	})
	if err != nil {
		return CheckResult{}, err
	}

	s.mu.Lock()
	s.fp = fp
	s.fpKnown = true
	s.mu.Unlock()

	if stored == nil {
		return CheckResult{}, s.setFingerprint(fp)
	}

	switch {
	case stored.SchemaVersion != fp.SchemaVersion:
		return CheckResult{NeedsRebuild: true, Reason: "storage format changed"}, nil
	case stored.EmbeddingModel != fp.EmbeddingModel:
		return CheckResult{NeedsRebuild: true, Reason: "embedding model changed from " + stored.EmbeddingModel + " to " + fp.EmbeddingModel}, nil
	case stored.Dimension != fp.Dimension:
		return CheckResult{NeedsRebuild: true, Reason: "embedding dimension changed"}, nil
	case stored.MaxChars != fp.MaxChars || stored.OverlapChars != fp.OverlapChars:
		return CheckResult{NeedsRebuild: true, Reason: "chunking parameters changed"}, nil
	}

	return CheckResult{}, nil
}

func (s *BoltStore) setFingerprint(fp Fingerprint) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(fp)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyFingerprint, data)
	})
}
