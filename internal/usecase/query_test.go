package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"kb/internal/adapter/memstore"
	"kb/internal/domain"
)

// vectorTable maps known texts to fixed vectors so retrieval outcomes are
// fully controlled by the test.
type vectorTable struct {
	vectors map[string][]float32
}

func (e *vectorTable) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := e.vectors[text]
		if !ok {
			return nil, errors.New("unexpected text: " + text)
		}
		out[i] = v
	}
	return out, nil
}

func (e *vectorTable) Dimension() int    { return 2 }
func (e *vectorTable) ModelName() string { return "table" }

type capturingLLM struct {
	system string
	prompt string
	answer string
	err    error
	calls  int
}

func (l *capturingLLM) Generate(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	l.calls++
	l.system = systemPrompt
	l.prompt = userPrompt
	if l.err != nil {
		return "", l.err
	}
	return l.answer, nil
}

func (l *capturingLLM) ModelName() string { return "capturing" }

func seedStore(t *testing.T) *memstore.MemoryStore {
	t.Helper()
	store := memstore.NewMemoryStore()

	sky := domain.Chunk{
		ID: "sky-0", Path: "a.txt", Seq: 0,
		Text: "The sky is blue.", Hash: "h-sky", Vector: []float32{1, 0},
	}
	grass := domain.Chunk{
		ID: "grass-0", Path: "b.txt", Seq: 0,
		Text: "Grass is green.", Hash: "h-grass", Vector: []float32{0, 1},
	}

	for _, doc := range []struct {
		path   string
		chunks []domain.Chunk
	}{
		{"a.txt", []domain.Chunk{sky}},
		{"b.txt", []domain.Chunk{grass}},
	} {
		entry := domain.ManifestEntry{Path: doc.path, IndexedAt: time.Now(), Chunks: len(doc.chunks)}
		if err := store.UpsertDocument(entry, doc.chunks); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func TestQuery_RetrievesMostRelevantChunkFirst(t *testing.T) {
	store := seedStore(t)
	embedder := &vectorTable{vectors: map[string][]float32{
		"What color is the sky?": {0.95, 0.05},
	}}
	llm := &capturingLLM{answer: "The sky is blue."}

	uc := NewQueryUseCase(store, embedder, llm, 2, 8000, "", nil)

	results, err := uc.Retrieve(context.Background(), "What color is the sky?", 2)
	if err != nil {
		t.Fatalf("retrieve failed: %v", err)
	}
	if len(results) == 0 || results[0].Chunk.Path != "a.txt" {
		t.Fatalf("expected the a.txt chunk first, got %+v", results)
	}

	answer, err := uc.Query(context.Background(), "What color is the sky?")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if answer != "The sky is blue." {
		t.Errorf("unexpected answer: %q", answer)
	}

	// The prompt grounds the model: sources and question included.
	if !strings.Contains(llm.prompt, "The sky is blue.") {
		t.Error("prompt missing retrieved chunk text")
	}
	if !strings.Contains(llm.prompt, "[source: a.txt]") {
		t.Error("prompt missing source attribution")
	}
	if !strings.Contains(llm.prompt, "What color is the sky?") {
		t.Error("prompt missing the question")
	}
}

func TestQuery_EmptyKnowledgeBaseReturnsFallback(t *testing.T) {
	store := memstore.NewMemoryStore()
	embedder := &vectorTable{vectors: map[string][]float32{"anything?": {1, 0}}}
	llm := &capturingLLM{answer: "should never be used"}

	uc := NewQueryUseCase(store, embedder, llm, 3, 8000, "nothing here yet", nil)

	answer, err := uc.Query(context.Background(), "anything?")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if answer != "nothing here yet" {
		t.Errorf("expected fallback answer, got %q", answer)
	}
	if llm.calls != 0 {
		t.Errorf("language model must not be invoked on empty retrieval, got %d calls", llm.calls)
	}
}

func TestQuery_EmbedFailureIsSurfaced(t *testing.T) {
	store := seedStore(t)
	embedder := &vectorTable{vectors: map[string][]float32{}} // every embed fails
	llm := &capturingLLM{}

	uc := NewQueryUseCase(store, embedder, llm, 3, 8000, "", nil)

	_, err := uc.Query(context.Background(), "any question")
	if err == nil {
		t.Fatal("expected embed failure to surface")
	}
	if llm.calls != 0 {
		t.Error("language model must not be invoked after embed failure")
	}
}

func TestQuery_LLMFailureIsSurfaced(t *testing.T) {
	store := seedStore(t)
	embedder := &vectorTable{vectors: map[string][]float32{"q": {1, 0}}}
	llm := &capturingLLM{err: errors.New("provider down")}

	uc := NewQueryUseCase(store, embedder, llm, 3, 8000, "", nil)

	_, err := uc.Query(context.Background(), "q")
	if err == nil {
		t.Fatal("expected provider failure to surface, not an empty answer")
	}
}

func TestQuery_PromptBoundedByBudget(t *testing.T) {
	store := memstore.NewMemoryStore()

	big := strings.Repeat("x", 400)
	var chunks []domain.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, domain.Chunk{
			ID: string(rune('a'+i)), Path: "big.txt", Seq: i,
			Text: big, Hash: "h", Vector: []float32{1, 0},
		})
	}
	entry := domain.ManifestEntry{Path: "big.txt", IndexedAt: time.Now(), Chunks: len(chunks)}
	if err := store.UpsertDocument(entry, chunks); err != nil {
		t.Fatal(err)
	}

	embedder := &vectorTable{vectors: map[string][]float32{"q": {1, 0}}}
	llm := &capturingLLM{answer: "ok"}

	// Budget fits two chunks, not five.
	uc := NewQueryUseCase(store, embedder, llm, 5, 900, "", nil)
	if _, err := uc.Query(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	if n := strings.Count(llm.prompt, "[source: big.txt]"); n > 3 {
		t.Errorf("prompt exceeded budget: %d chunks included", n)
	}
	if !strings.Contains(llm.prompt, "Question: q") {
		t.Error("question must survive truncation")
	}
}

func TestQuery_TruncationKeepsRuneBoundaries(t *testing.T) {
	store := memstore.NewMemoryStore()

	// Multi-byte text longer than the budget forces the first chunk to be
	// truncated mid-text.
	text := strings.Repeat("日本語のテキスト", 50)
	chunks := []domain.Chunk{{
		ID: "jp-0", Path: "jp.txt", Seq: 0,
		Text: text, Hash: "h-jp", Vector: []float32{1, 0},
	}}
	entry := domain.ManifestEntry{Path: "jp.txt", IndexedAt: time.Now(), Chunks: 1}
	if err := store.UpsertDocument(entry, chunks); err != nil {
		t.Fatal(err)
	}

	embedder := &vectorTable{vectors: map[string][]float32{"q": {1, 0}}}
	llm := &capturingLLM{answer: "ok"}

	uc := NewQueryUseCase(store, embedder, llm, 1, 500, "", nil)
	if _, err := uc.Query(context.Background(), "q"); err != nil {
		t.Fatal(err)
	}

	if !utf8.ValidString(llm.prompt) {
		t.Error("truncation split a rune mid-sequence")
	}
	if !strings.Contains(llm.prompt, "日本語") {
		t.Error("truncated chunk text missing from prompt")
	}
}
