// Package kb maintains a locally persisted knowledge base built from the
// documents in a directory tree, keeps it synchronized with changes on
// disk, and answers natural-language questions by retrieving relevant
// chunks and delegating answer synthesis to a language model.
package kb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kb/config"
	"kb/internal/adapter/chunker"
	"kb/internal/adapter/embedding"
	"kb/internal/adapter/extractor"
	"kb/internal/adapter/fs"
	"kb/internal/adapter/llm"
	"kb/internal/adapter/memstore"
	"kb/internal/adapter/store"
	"kb/internal/log"
	"kb/internal/port"
	"kb/internal/usecase"
)

// KnowledgeBase owns the store, the provider clients and the use cases.
// One synchronization pass runs at a time; queries may run concurrently
// and observe per-document-consistent state.
type KnowledgeBase struct {
	cfg      *config.Config
	logger   log.Logger
	store    port.Store
	embedder port.Embedder

	llmOnce sync.Once
	llmErr  error
	llm     port.LLM

	syncUC *usecase.SyncUseCase

	syncMu sync.Mutex
}

// Option customizes Open, mostly to inject provider clients and stores in
// tests or embedding applications.
type Option func(*openOptions)

type openOptions struct {
	cfg      *config.Config
	logger   log.Logger
	store    port.Store
	embedder port.Embedder
	llm      port.LLM
}

// WithConfig overrides the configuration instead of loading it from the
// storage directory.
func WithConfig(cfg *config.Config) Option {
	return func(o *openOptions) { o.cfg = cfg }
}

// WithLogger overrides the logger.
func WithLogger(logger log.Logger) Option {
	return func(o *openOptions) { o.logger = logger }
}

// WithStore injects a store, e.g. an in-memory one.
func WithStore(s port.Store) Option {
	return func(o *openOptions) { o.store = s }
}

// WithEmbedder injects an embedding client.
func WithEmbedder(e port.Embedder) Option {
	return func(o *openOptions) { o.embedder = e }
}

// WithLLM injects a language-model client.
func WithLLM(l port.LLM) Option {
	return func(o *openOptions) { o.llm = l }
}

// InMemory returns a store option that keeps everything in memory; handy
// for tests and throwaway knowledge bases.
func InMemory() Option {
	return WithStore(memstore.NewMemoryStore())
}

// Open opens (or initializes) the knowledge base persisted under
// storageDir. A stored index built with different embedding or chunking
// parameters is cleared and rebuilt on the next synchronization pass.
func Open(storageDir string, opts ...Option) (*KnowledgeBase, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := o.cfg
	if cfg == nil {
		var err error
		cfg, err = config.LoadFromDir(storageDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	logger := o.logger
	if logger == nil {
		logger = log.New(log.Config{Level: log.ParseLevel(cfg.Logging.Level), JSON: cfg.Logging.JSON})
	}

	embedder := o.embedder
	if embedder == nil {
		built, err := buildEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		// Repeated questions (and re-tried chunks) skip the provider.
		embedder = embedding.NewCachedEmbedder(built, 256, 10*time.Minute)
	}

	st := o.store
	if st == nil {
		if err := config.EnsureStorageDir(storageDir); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		bolt, err := store.NewBoltStore(config.StoreDBPath(storageDir))
		if err != nil {
			return nil, err
		}

		check, err := bolt.CheckFingerprint(store.Fingerprint{
			SchemaVersion:  store.CurrentSchemaVersion,
			EmbeddingModel: embedder.ModelName(),
			Dimension:      embedder.Dimension(),
			MaxChars:       cfg.Chunking.MaxChars,
			OverlapChars:   cfg.Chunking.OverlapChars,
		})
		if err != nil {
			bolt.Close()
			return nil, err
		}
		if check.NeedsRebuild {
			logger.Warn("stored index is stale, clearing", "reason", check.Reason)
			if err := bolt.Clear(); err != nil {
				bolt.Close()
				return nil, fmt.Errorf("failed to clear stale index: %w", err)
			}
		}
		st = bolt
	}

	kb := &KnowledgeBase{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		embedder: embedder,
		llm:      o.llm,
	}

	kb.syncUC = usecase.NewSyncUseCase(
		st,
		fs.NewWalker(cfg.Source.Includes, cfg.Source.Excludes),
		extractor.DefaultRegistry(),
		chunker.NewTextChunker(cfg.Chunking.MaxChars, cfg.Chunking.OverlapChars),
		embedder,
		cfg.Sync.Concurrency,
		logger,
	)

	return kb, nil
}

// AddDocumentsFromDirectory runs one synchronization pass over dir.
func (kb *KnowledgeBase) AddDocumentsFromDirectory(ctx context.Context, dir string) (*SyncReport, error) {
	return kb.Sync(ctx, dir, nil)
}

// Sync is AddDocumentsFromDirectory with a progress callback.
func (kb *KnowledgeBase) Sync(ctx context.Context, dir string, progress func(processed, total int, path string)) (*SyncReport, error) {
	kb.syncMu.Lock()
	defer kb.syncMu.Unlock()

	report, err := kb.syncUC.Sync(ctx, dir, usecase.ProgressFunc(progress))
	if report == nil {
		return nil, err
	}
	return newSyncReport(report), err
}

// Query answers a question grounded in the indexed documents. On an empty
// knowledge base it returns the configured fallback response without
// calling the language model.
func (kb *KnowledgeBase) Query(ctx context.Context, question string) (string, error) {
	queryUC, err := kb.queryUseCase()
	if err != nil {
		return "", err
	}
	return queryUC.Query(ctx, question)
}

// Search returns the k chunks most similar to the question, without
// invoking the language model.
func (kb *KnowledgeBase) Search(ctx context.Context, question string, k int) ([]SearchResult, error) {
	queryUC, err := kb.queryUseCase()
	if err != nil {
		return nil, err
	}

	scored, err := queryUC.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(scored))
	for i, s := range scored {
		results[i] = SearchResult{
			Path:  s.Chunk.Path,
			Seq:   s.Chunk.Seq,
			Score: s.Score,
			Text:  s.Chunk.Text,
		}
	}
	return results, nil
}

// Stats reports document and chunk counts.
func (kb *KnowledgeBase) Stats() (Stats, error) {
	stats, err := kb.store.Stats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{Documents: stats.Documents, Chunks: stats.Chunks}, nil
}

// Clear empties the knowledge base.
func (kb *KnowledgeBase) Clear() error {
	kb.syncMu.Lock()
	defer kb.syncMu.Unlock()
	return kb.store.Clear()
}

// Close releases the underlying store.
func (kb *KnowledgeBase) Close() error {
	return kb.store.Close()
}

// queryUseCase builds the query pipeline on first use, so a knowledge base
// used only for indexing never needs a language-model API key.
func (kb *KnowledgeBase) queryUseCase() (*usecase.QueryUseCase, error) {
	kb.llmOnce.Do(func() {
		if kb.llm == nil {
			kb.llm, kb.llmErr = buildLLM(kb.cfg)
		}
	})
	if kb.llmErr != nil {
		return nil, fmt.Errorf("failed to create language-model client: %w", kb.llmErr)
	}

	return usecase.NewQueryUseCase(
		kb.store,
		kb.embedder,
		kb.llm,
		kb.cfg.Query.TopK,
		kb.cfg.Query.ContextChars,
		kb.cfg.Query.EmptyFallback,
		kb.logger,
	), nil
}

func buildEmbedder(cfg *config.Config) (port.Embedder, error) {
	e := cfg.Embedding
	timeout := time.Duration(e.TimeoutSeconds) * time.Second

	switch e.Provider {
	case "openai":
		return embedding.NewOpenAIEmbedder(e.APIKeyEnv, e.Model, e.Dimension, e.BatchSize, timeout)
	case "ollama":
		return embedding.NewOllamaEmbedder(e.Model, e.BaseURL, e.Dimension, e.BatchSize, timeout)
	case "compatible":
		return embedding.NewOpenAICompatibleEmbedder(e.APIKeyEnv, e.Model, e.BaseURL, e.Dimension, e.BatchSize, timeout)
	case "mock":
		return embedding.NewMockEmbedder(e.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", e.Provider)
	}
}

func buildLLM(cfg *config.Config) (port.LLM, error) {
	l := cfg.LLM
	timeout := time.Duration(l.TimeoutSeconds) * time.Second

	switch l.Provider {
	case "openai":
		return llm.NewOpenAIClient(l.APIKeyEnv, l.Model, l.Temperature, timeout)
	case "openrouter":
		return llm.NewOpenRouterClient(l.APIKeyEnv, l.Model, l.Temperature, timeout)
	case "ollama":
		return llm.NewOllamaClient(l.Model, l.BaseURL, l.Temperature, timeout)
	case "compatible":
		return llm.NewCompatibleClient(l.APIKeyEnv, l.Model, l.BaseURL, l.Temperature, timeout)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", l.Provider)
	}
}
