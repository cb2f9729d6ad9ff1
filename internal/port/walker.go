package port

import "kb/internal/domain"

// FileWalker scans a directory tree and returns candidate documents with
// their current signatures. Non-regular files and excluded paths are
// skipped, not errored.
type FileWalker interface {
	Walk(root string) ([]domain.FileInfo, error)
}
