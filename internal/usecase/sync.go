package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kb/internal/domain"
	"kb/internal/log"
	"kb/internal/port"
)

// ProgressFunc reports per-file progress of a synchronization pass.
type ProgressFunc func(processed, total int, path string)

// SyncUseCase reconciles the store with the current state of a source
// directory: scan, classify, process changed files, remove vanished ones.
type SyncUseCase struct {
	store       port.Store
	walker      port.FileWalker
	extractor   port.Extractor
	chunker     port.Chunker
	embedder    port.Embedder
	concurrency int
	logger      log.Logger
}

func NewSyncUseCase(
	store port.Store,
	walker port.FileWalker,
	extractor port.Extractor,
	chunker port.Chunker,
	embedder port.Embedder,
	concurrency int,
	logger log.Logger,
) *SyncUseCase {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &SyncUseCase{
		store:       store,
		walker:      walker,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Sync runs one synchronization pass over root. Per-file failures are
// collected into the report, never aborting the rest of the pass; a failed
// file keeps its old manifest entry so it is retried next pass. Document
// upserts are atomic, so cancellation leaves only whole documents behind.
func (u *SyncUseCase) Sync(ctx context.Context, root string, progress ProgressFunc) (*domain.SyncReport, error) {
	start := time.Now()
	report := &domain.SyncReport{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	// Files matching the include globs but in no registered format are
	// ignored, not errored.
	supported := files[:0]
	for _, f := range files {
		if u.extractor.Supports(f.Path) {
			supported = append(supported, f)
		} else {
			u.logger.Debug("skipping unsupported file", "path", f.Path)
		}
	}
	files = supported
	report.Scanned = len(files)

	manifest, err := u.store.Manifest()
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}

	changes := Classify(manifest, files)
	report.Unchanged = len(changes.Unchanged)

	u.logger.Info("sync pass classified",
		"added", len(changes.Added),
		"modified", len(changes.Modified),
		"removed", len(changes.Removed),
		"unchanged", len(changes.Unchanged))

	work := make([]domain.FileInfo, 0, len(changes.Added)+len(changes.Modified))
	work = append(work, changes.Added...)
	work = append(work, changes.Modified...)
	modified := make(map[string]bool, len(changes.Modified))
	for _, f := range changes.Modified {
		modified[f.Path] = true
	}

	total := len(work) + len(changes.Removed)
	var mu sync.Mutex
	processed := 0

	step := func(path string) {
		mu.Lock()
		processed++
		done := processed
		mu.Unlock()
		if progress != nil {
			progress(done, total, path)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for _, file := range work {
		file := file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			chunksIndexed, err := u.indexFile(gctx, file)
			step(file.Path)
			if err != nil {
				u.logger.Warn("failed to index file", "path", file.Path, "error", err)
				mu.Lock()
				report.Failures = append(report.Failures, domain.FileError{Path: file.Path, Err: err})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			if modified[file.Path] {
				report.Updated++
			} else {
				report.Added++
			}
			report.ChunksIndexed += chunksIndexed
			mu.Unlock()
			return nil
		})
	}

	waitErr := g.Wait()

	// Removals are cheap store mutations; keep them sequential.
	for _, path := range changes.Removed {
		if err := ctx.Err(); err != nil {
			waitErr = err
			break
		}
		if err := u.store.RemoveDocument(path); err != nil {
			report.Failures = append(report.Failures, domain.FileError{Path: path, Err: err})
		} else {
			report.Removed++
		}
		step(path)
	}

	report.Duration = time.Since(start)

	if waitErr != nil {
		return report, fmt.Errorf("sync pass interrupted: %w", waitErr)
	}
	return report, nil
}

// indexFile extracts, chunks, embeds and stores one file. The store write
// is a single per-document unit: the old chunks disappear and the new ones
// appear together, alongside the refreshed manifest entry.
func (u *SyncUseCase) indexFile(ctx context.Context, file domain.FileInfo) (int, error) {
	text, err := u.extractor.Extract(file.Path)
	if err != nil {
		return 0, fmt.Errorf("extraction: %w", err)
	}

	chunks, err := u.chunker.Chunk(file.Path, text)
	if err != nil {
		return 0, fmt.Errorf("chunking: %w", err)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding: %w", err)
		}
		if len(vectors) != len(chunks) {
			return 0, fmt.Errorf("embedding: expected %d vectors, got %d", len(chunks), len(vectors))
		}
		for i := range chunks {
			chunks[i].Vector = vectors[i]
		}
	}

	entry := domain.ManifestEntry{
		Path:      file.Path,
		Signature: file.Signature,
		IndexedAt: time.Now(),
		Chunks:    len(chunks),
	}
	if err := u.store.UpsertDocument(entry, chunks); err != nil {
		return 0, fmt.Errorf("storing: %w", err)
	}

	return len(chunks), nil
}
