package extractor

import (
	"fmt"
	"os"
	"unicode/utf8"
)

// PlainText reads the file as-is. Binary content (invalid UTF-8) is a parse
// failure so the registry never feeds garbage to the chunker.
func PlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRead, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrParse, path)
	}
	return string(data), nil
}
