package port

// Extractor turns a source file into plain text.
//
// Every failure crossing this boundary is classified: unsupported format,
// read error, or parse error. Callers rely on errors.Is against the
// sentinels in the extractor adapter package.
type Extractor interface {
	// Extract reads and converts the file at path to plain text.
	Extract(path string) (string, error)

	// Supports reports whether the path's format is registered.
	Supports(path string) bool
}
