package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"kb/internal/domain"
	"kb/internal/log"
	"kb/internal/port"
)

const answerSystemPrompt = `You answer questions using only the provided context.
If the context does not contain the answer, say that you cannot answer from the knowledge base.`

// QueryUseCase answers a question by embedding it, retrieving the most
// similar chunks and delegating answer synthesis to the language model.
type QueryUseCase struct {
	store         port.Store
	embedder      port.Embedder
	llm           port.LLM
	topK          int
	contextChars  int
	emptyFallback string
	logger        log.Logger
}

func NewQueryUseCase(
	store port.Store,
	embedder port.Embedder,
	llm port.LLM,
	topK int,
	contextChars int,
	emptyFallback string,
	logger log.Logger,
) *QueryUseCase {
	if topK <= 0 {
		topK = 3
	}
	if contextChars <= 0 {
		contextChars = 8000
	}
	if emptyFallback == "" {
		emptyFallback = "no relevant information found in the knowledge base"
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &QueryUseCase{
		store:         store,
		embedder:      embedder,
		llm:           llm,
		topK:          topK,
		contextChars:  contextChars,
		emptyFallback: emptyFallback,
		logger:        logger,
	}
}

// Retrieve returns the k chunks most similar to the question.
func (u *QueryUseCase) Retrieve(ctx context.Context, question string, k int) ([]domain.ScoredChunk, error) {
	vectors, err := u.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding returned empty result")
	}

	results, err := u.store.Search(vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}

// Query produces a grounded answer. An empty knowledge base (or a question
// matching nothing) returns the configured fallback without calling the
// language model.
func (u *QueryUseCase) Query(ctx context.Context, question string) (string, error) {
	results, err := u.Retrieve(ctx, question, u.topK)
	if err != nil {
		return "", err
	}

	if len(results) == 0 {
		u.logger.Info("query matched no chunks, returning fallback")
		return u.emptyFallback, nil
	}

	prompt := u.buildPrompt(question, results)

	answer, err := u.llm.Generate(ctx, answerSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}

// buildPrompt assembles a bounded-size prompt from retrieved chunks with
// source attribution, then the question. Chunks are added in rank order
// until the character budget runs out; the best chunk always fits, truncated
// if necessary.
func (u *QueryUseCase) buildPrompt(question string, results []domain.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("Context:\n\n")

	used := 0
	for i, r := range results {
		text := r.Chunk.Text
		if used+len(text) > u.contextChars {
			if i == 0 {
				text = truncateAtRune(text, u.contextChars)
			} else {
				break
			}
		}
		fmt.Fprintf(&sb, "[source: %s]\n%s\n\n", r.Chunk.Path, text)
		used += len(text)
	}

	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nAnswer the question using the context above.")

	return sb.String()
}

// truncateAtRune cuts text to at most max bytes without splitting a rune.
func truncateAtRune(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
