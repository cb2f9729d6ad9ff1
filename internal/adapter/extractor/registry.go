// Package extractor converts source files of known formats into plain text.
//
// Formats form a closed registry: a mapping from file extension to an
// ExtractFunc. New formats register new entries. Every failure leaving this
// package is classified as one of the sentinel errors below.
package extractor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat means no extractor is registered for the file's
	// extension.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrRead means the file could not be read from disk.
	ErrRead = errors.New("read failure")

	// ErrParse means the file was read but its content could not be
	// converted to text.
	ErrParse = errors.New("parse failure")
)

// ExtractFunc converts the file at path to plain text.
type ExtractFunc func(path string) (string, error)

// Registry maps lower-cased file extensions (with leading dot) to
// extraction functions.
type Registry struct {
	byExt map[string]ExtractFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]ExtractFunc)}
}

// DefaultRegistry returns a registry with the built-in formats: plain text
// and source code via PlainText, markdown via Markdown.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, ext := range []string{".txt", ".go", ".py", ".js", ".ts", ".java", ".rs", ".c", ".h", ".json", ".yaml", ".yml", ".sh", ".sql", ".toml", ".csv", ".log"} {
		r.Register(ext, PlainText)
	}
	r.Register(".md", Markdown)
	r.Register(".markdown", Markdown)
	return r
}

// Register adds or replaces the extractor for ext.
func (r *Registry) Register(ext string, fn ExtractFunc) {
	r.byExt[strings.ToLower(ext)] = fn
}

// Supports reports whether the path's extension has a registered extractor.
func (r *Registry) Supports(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract converts the file at path to plain text. Errors returned by
// registered functions that are not already classified are reported as
// parse failures.
func (r *Registry) Extract(path string) (string, error) {
	fn, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	text, err := fn(path)
	if err != nil {
		if errors.Is(err, ErrRead) || errors.Is(err, ErrParse) || errors.Is(err, ErrUnsupportedFormat) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrParse, err)
	}
	return text, nil
}
