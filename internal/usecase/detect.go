package usecase

import (
	"sort"

	"kb/internal/domain"
)

// Classify compares a fresh directory scan against the last-recorded
// manifest and partitions every path into exactly one bucket: a path is
// added if absent from the manifest, modified if present with a different
// signature, removed if in the manifest but not in the scan, unchanged
// otherwise. The union of buckets equals the union of manifest and scanned
// paths; no path appears twice.
func Classify(manifest map[string]domain.ManifestEntry, scan []domain.FileInfo) domain.Changes {
	var changes domain.Changes

	scanned := make(map[string]bool, len(scan))
	for _, file := range scan {
		scanned[file.Path] = true

		entry, known := manifest[file.Path]
		switch {
		case !known:
			changes.Added = append(changes.Added, file)
		case !entry.Signature.Equal(file.Signature):
			changes.Modified = append(changes.Modified, file)
		default:
			changes.Unchanged = append(changes.Unchanged, file.Path)
		}
	}

	for path := range manifest {
		if !scanned[path] {
			changes.Removed = append(changes.Removed, path)
		}
	}
	sort.Strings(changes.Removed)

	return changes
}
