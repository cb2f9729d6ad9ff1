package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"kb/internal/domain"
)

// TextChunker splits extracted text into overlapping fragments bounded by a
// character budget. Lines are the splitting unit, so every line of input
// appears in at least one chunk and chunk order follows document order.
type TextChunker struct {
	maxChars     int
	overlapChars int
}

func NewTextChunker(maxChars, overlapChars int) *TextChunker {
	if maxChars <= 0 {
		maxChars = 1200
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		overlapChars = maxChars / 4
	}
	return &TextChunker{
		maxChars:     maxChars,
		overlapChars: overlapChars,
	}
}

func (c *TextChunker) Chunk(path, text string) ([]domain.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	lines := strings.Split(text, "\n")

	var chunks []domain.Chunk
	startLine := 0
	seq := 0

	for startLine < len(lines) {
		endLine := startLine
		currentChars := 0
		var chunkText strings.Builder

		for endLine < len(lines) {
			lineChars := utf8.RuneCountInString(lines[endLine])

			// The first line is always taken, so a single line over
			// budget still becomes its own chunk.
			if currentChars > 0 && currentChars+lineChars > c.maxChars {
				break
			}

			if chunkText.Len() > 0 {
				chunkText.WriteString("\n")
				currentChars++
			}
			chunkText.WriteString(lines[endLine])
			currentChars += lineChars
			endLine++
		}

		chunkStr := chunkText.String()
		hash := hashText(chunkStr)

		chunks = append(chunks, domain.Chunk{
			ID:        chunkID(path, seq, hash),
			Path:      path,
			Seq:       seq,
			StartLine: startLine + 1,
			EndLine:   endLine,
			Text:      chunkStr,
			Hash:      hash,
		})
		seq++

		if endLine >= len(lines) {
			break
		}

		overlapLines := c.overlapLineCount(lines, startLine, endLine)
		newStart := endLine - overlapLines
		if newStart <= startLine {
			newStart = startLine + 1
		}
		if newStart > endLine {
			newStart = endLine
		}
		startLine = newStart
	}

	return chunks, nil
}

// overlapLineCount walks backwards from the chunk end until the overlap
// character budget is spent.
func (c *TextChunker) overlapLineCount(lines []string, start, end int) int {
	if c.overlapChars == 0 {
		return 0
	}

	overlapLines := 0
	chars := 0

	for i := end - 1; i >= start && chars < c.overlapChars; i-- {
		chars += utf8.RuneCountInString(lines[i])
		overlapLines++
	}

	return overlapLines
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func chunkID(path string, seq int, hash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", path, seq, hash)))
	return hex.EncodeToString(sum[:8])
}
