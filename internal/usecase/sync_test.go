package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"kb/internal/adapter/chunker"
	"kb/internal/adapter/extractor"
	"kb/internal/adapter/fs"
	"kb/internal/adapter/memstore"
)

// countingEmbedder wraps the deterministic stub and counts every embedded
// text, so tests can assert that unchanged documents are not re-embedded.
type countingEmbedder struct {
	mu    sync.Mutex
	count int
}

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.count += len(texts)
	e.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, 8)
		for j, r := range text {
			vec[j%8] += float32(r) / 1000.0
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *countingEmbedder) Dimension() int    { return 8 }
func (e *countingEmbedder) ModelName() string { return "counting" }

func (e *countingEmbedder) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count
}

func newSyncFixture(t *testing.T) (*SyncUseCase, *memstore.MemoryStore, *countingEmbedder, string) {
	t.Helper()
	srcDir := t.TempDir()
	store := memstore.NewMemoryStore()
	embedder := &countingEmbedder{}
	uc := NewSyncUseCase(
		store,
		fs.NewWalker([]string{"**/*.txt", "**/*.md"}, nil),
		extractor.DefaultRegistry(),
		chunker.NewTextChunker(200, 40),
		embedder,
		2,
		nil,
	)
	return uc, store, embedder, srcDir
}

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSync_AddsNewFiles(t *testing.T) {
	uc, store, _, srcDir := newSyncFixture(t)
	write(t, srcDir, "a.txt", "The sky is blue.")
	write(t, srcDir, "b.txt", "Grass is green.")

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if report.Added != 2 {
		t.Errorf("expected 2 added, got %d", report.Added)
	}
	if len(report.Failures) != 0 {
		t.Errorf("unexpected failures: %v", report.Failures)
	}

	stats, _ := store.Stats()
	if stats.Documents != 2 {
		t.Errorf("expected 2 documents, got %d", stats.Documents)
	}
	if stats.Chunks == 0 {
		t.Error("expected chunks to be indexed")
	}
}

func TestSync_AddingOneFileLeavesOthersUntouched(t *testing.T) {
	uc, store, _, srcDir := newSyncFixture(t)
	aPath := write(t, srcDir, "a.txt", "The sky is blue.")

	if _, err := uc.Sync(context.Background(), srcDir, nil); err != nil {
		t.Fatal(err)
	}
	before, _ := store.ChunksByPath(aPath)

	write(t, srcDir, "b.txt", "Grass is green.")
	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 1 {
		t.Errorf("expected 1 added, got %d", report.Added)
	}

	after, _ := store.ChunksByPath(aPath)
	if len(before) != len(after) {
		t.Fatalf("a.txt chunk count changed: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Hash != after[i].Hash {
			t.Errorf("a.txt chunk %d changed by unrelated sync", i)
		}
	}
}

func TestSync_UnchangedFilesAreNotReprocessed(t *testing.T) {
	uc, store, embedder, srcDir := newSyncFixture(t)
	aPath := write(t, srcDir, "a.txt", "The sky is blue.")

	if _, err := uc.Sync(context.Background(), srcDir, nil); err != nil {
		t.Fatal(err)
	}
	firstCalls := embedder.calls()
	before, _ := store.ChunksByPath(aPath)

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Unchanged != 1 {
		t.Errorf("expected 1 unchanged, got %d", report.Unchanged)
	}
	if embedder.calls() != firstCalls {
		t.Errorf("unchanged file was re-embedded: %d -> %d calls", firstCalls, embedder.calls())
	}

	after, _ := store.ChunksByPath(aPath)
	for i := range before {
		if before[i].Hash != after[i].Hash || before[i].Text != after[i].Text {
			t.Errorf("chunk %d not byte-identical after no-op sync", i)
		}
	}
}

func TestSync_ModifiedFileIsReindexed(t *testing.T) {
	uc, store, _, srcDir := newSyncFixture(t)
	aPath := write(t, srcDir, "a.txt", "old content")

	if _, err := uc.Sync(context.Background(), srcDir, nil); err != nil {
		t.Fatal(err)
	}

	// Rewrite with a different size so the signature changes even on
	// filesystems with coarse mtime resolution.
	write(t, srcDir, "a.txt", "entirely new content, longer than before")

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", report.Updated)
	}

	chunks, _ := store.ChunksByPath(aPath)
	for _, c := range chunks {
		if c.Text == "old content" {
			t.Error("old chunk survived re-indexing")
		}
	}
}

func TestSync_RemovedFileIsPurged(t *testing.T) {
	uc, store, _, srcDir := newSyncFixture(t)
	aPath := write(t, srcDir, "a.txt", "The sky is blue.")
	write(t, srcDir, "b.txt", "Grass is green.")

	if _, err := uc.Sync(context.Background(), srcDir, nil); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(aPath); err != nil {
		t.Fatal(err)
	}

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Removed != 1 {
		t.Errorf("expected 1 removed, got %d", report.Removed)
	}

	manifest, _ := store.Manifest()
	if _, ok := manifest[aPath]; ok {
		t.Error("manifest entry for removed file survived")
	}

	results, _ := store.Search([]float32{1, 0, 0, 0, 0, 0, 0, 0}, 10)
	for _, r := range results {
		if r.Chunk.Path == aPath {
			t.Error("search returned chunk of removed file")
		}
	}
}

func TestSync_UnsupportedExtensionsAreIgnored(t *testing.T) {
	srcDir := t.TempDir()
	store := memstore.NewMemoryStore()
	uc := NewSyncUseCase(
		store,
		fs.NewWalker([]string{"**/*"}, nil),
		extractor.DefaultRegistry(),
		chunker.NewTextChunker(200, 40),
		&countingEmbedder{},
		2,
		nil,
	)
	write(t, srcDir, "notes.txt", "The sky is blue.")
	binPath := write(t, srcDir, "image.bin", "\x00\x01\x02")

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 1 {
		t.Errorf("expected 1 added, got %d", report.Added)
	}
	if report.Scanned != 1 {
		t.Errorf("unsupported file should not be counted as scanned, got %d", report.Scanned)
	}
	if len(report.Failures) != 0 {
		t.Errorf("unsupported format must be ignored, not errored: %v", report.Failures)
	}

	manifest, _ := store.Manifest()
	if _, ok := manifest[binPath]; ok {
		t.Error("unsupported file should not enter the manifest")
	}

	// Still ignored on the next pass, never a recurring failure.
	report, err = uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Failures) != 0 {
		t.Errorf("unsupported file reported as failure on a later pass: %v", report.Failures)
	}
}

func TestSync_PerFileFailureDoesNotAbortPass(t *testing.T) {
	uc, store, _, srcDir := newSyncFixture(t)
	write(t, srcDir, "good.txt", "The sky is blue.")
	// Invalid UTF-8 content fails extraction but must not stop the pass.
	badPath := filepath.Join(srcDir, "bad.txt")
	if err := os.WriteFile(badPath, []byte{0xff, 0xfe, 0x01}, 0644); err != nil {
		t.Fatal(err)
	}

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatalf("pass should complete despite per-file failure: %v", err)
	}
	if report.Added != 1 {
		t.Errorf("expected 1 added, got %d", report.Added)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(report.Failures))
	}
	if report.Failures[0].Path != badPath {
		t.Errorf("unexpected failure path: %s", report.Failures[0].Path)
	}
	if !errors.Is(report.Failures[0].Err, extractor.ErrParse) {
		t.Errorf("expected a parse failure, got %v", report.Failures[0].Err)
	}

	// The failed file must not enter the manifest, so it is retried later.
	manifest, _ := store.Manifest()
	if _, ok := manifest[badPath]; ok {
		t.Error("failed file should not get a manifest entry")
	}
}

func TestSync_FailedFileIsRetriedNextPass(t *testing.T) {
	uc, store, _, srcDir := newSyncFixture(t)
	badPath := filepath.Join(srcDir, "flaky.txt")
	if err := os.WriteFile(badPath, []byte{0xff, 0xfe}, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := uc.Sync(context.Background(), srcDir, nil); err != nil {
		t.Fatal(err)
	}

	// The file is fixed in place; the next pass picks it up again.
	write(t, srcDir, "flaky.txt", "now valid text")

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 1 {
		t.Errorf("expected repaired file to be indexed, got added=%d", report.Added)
	}
	manifest, _ := store.Manifest()
	if _, ok := manifest[badPath]; !ok {
		t.Error("repaired file missing from manifest")
	}
}

func TestSync_EmptyDocumentYieldsZeroChunks(t *testing.T) {
	uc, store, _, srcDir := newSyncFixture(t)
	path := write(t, srcDir, "empty.txt", "")

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Added != 1 {
		t.Errorf("expected the empty file to be tracked, got added=%d", report.Added)
	}

	manifest, _ := store.Manifest()
	if entry, ok := manifest[path]; !ok || entry.Chunks != 0 {
		t.Errorf("expected manifest entry with zero chunks, got %+v", entry)
	}
}

func TestSync_Cancellation(t *testing.T) {
	uc, _, _, srcDir := newSyncFixture(t)
	write(t, srcDir, "a.txt", "some content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uc.Sync(ctx, srcDir, nil)
	if err == nil {
		t.Error("expected error from cancelled sync")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestSync_ProgressCallback(t *testing.T) {
	uc, _, _, srcDir := newSyncFixture(t)
	write(t, srcDir, "a.txt", "one")
	write(t, srcDir, "b.txt", "two")

	var mu sync.Mutex
	var calls int
	var lastTotal int
	progress := func(processed, total int, path string) {
		mu.Lock()
		calls++
		lastTotal = total
		mu.Unlock()
	}

	if _, err := uc.Sync(context.Background(), srcDir, progress); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("expected 2 progress calls, got %d", calls)
	}
	if lastTotal != 2 {
		t.Errorf("expected total 2, got %d", lastTotal)
	}
}

func TestSync_ReportDuration(t *testing.T) {
	uc, _, _, srcDir := newSyncFixture(t)
	write(t, srcDir, "a.txt", "content")

	report, err := uc.Sync(context.Background(), srcDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Duration < 0 || report.Duration > time.Minute {
		t.Errorf("implausible duration: %v", report.Duration)
	}
	if report.Scanned != 1 {
		t.Errorf("expected 1 scanned, got %d", report.Scanned)
	}
}
