package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kechemale/TenaAI/cmd/tenaai/internal/config"
	"github.com/kechemale/TenaAI/pkg/embed"
	"github.com/kechemale/TenaAI/pkg/knowledge"
	"github.com/kechemale/TenaAI/pkg/kv"
	"github.com/kechemale/TenaAI/pkg/llm"
	"github.com/kechemale/TenaAI/pkg/rag"
	"github.com/kechemale/TenaAI/pkg/storage"
)

// testCompleter replaces the configured LLM service in tests.
var testCompleter llm.Completer

// runtime holds the components one command invocation needs.
type runtime struct {
	cfg    *config.Engine
	store  *knowledge.Store
	engine *rag.Engine   // nil unless opened withLLM
	cache  *embed.Cached // nil unless cache_dir is set

	closers []func() error
}

// loadEngineConfig resolves engine.yaml from --context or the current
// context. Without any context, defaults and environment apply.
func loadEngineConfig() (*config.Engine, error) {
	var dir string
	cfg, err := GetConfig()
	switch {
	case err != nil && contextName != "":
		return nil, err
	case err == nil && (contextName != "" || cfg.CurrentContext != ""):
		dir, err = cfg.ResolveContext(contextName)
		if err != nil {
			return nil, err
		}
	}

	e, err := config.LoadEngine(dir)
	if err != nil {
		return nil, err
	}
	if persistDir != "" {
		e.PersistDir = persistDir
		e.S3Prefix = persistDir
	}
	return e, nil
}

// openRuntime wires storage, embedder and store. With withLLM it also
// builds the query engine. The store is not loaded.
func openRuntime(ctx context.Context, withLLM bool) (_ *runtime, err error) {
	e, err := loadEngineConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: e}
	defer func() {
		// rt stays set when the result is nil, so partial setup is released.
		if err != nil {
			rt.Close()
		}
	}()

	logger := slog.Default()

	files, err := newFileStore(e)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(e)
	if err != nil {
		return nil, err
	}
	if e.CacheDir != "" {
		db, err := kv.NewBadger(kv.BadgerOptions{Dir: e.CacheDir, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("open embedding cache: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
		rt.cache = embed.NewCached(embedder, db, logger)
		embedder = rt.cache
	}

	store, err := knowledge.New(knowledge.Config{
		Files:    files,
		Embedder: embedder,
		Index:    knowledge.IndexOptions{Kind: e.Index},
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	if withLLM {
		completer, err := newCompleter(ctx, e)
		if err != nil {
			return nil, err
		}
		engine, err := rag.New(rag.Config{
			Retriever:   rt.store,
			Completer:   completer,
			Temperature: e.Temperature,
			TopK:        e.TopK,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		rt.engine = engine
	}
	return rt, nil
}

// load loads the persisted snapshot, pointing at 'tenaai build' when there
// is none.
func (rt *runtime) load(ctx context.Context) error {
	err := rt.store.Load(ctx)
	if errors.Is(err, knowledge.ErrNotFound) {
		return fmt.Errorf("%w; run 'tenaai build --chunks <path>' first", err)
	}
	return err
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func newFileStore(e *config.Engine) (storage.FileStore, error) {
	if e.Storage == config.StorageS3 {
		client := storage.NewS3Client(storage.S3Config{
			Region:          e.S3Region,
			Endpoint:        e.S3Endpoint,
			AccessKeyID:     e.S3AccessKeyID,
			SecretAccessKey: e.S3SecretAccessKey,
		})
		return storage.NewS3(client, e.S3Bucket, e.S3Prefix), nil
	}
	files, err := storage.NewLocal(e.PersistDir)
	if err != nil {
		return nil, fmt.Errorf("open persist dir: %w", err)
	}
	return files, nil
}

func newEmbedder(e *config.Engine) (embed.Embedder, error) {
	if e.EmbeddingProvider == config.ProviderHashing {
		return embed.NewHashing(e.EmbeddingDim), nil
	}
	if e.EmbeddingAPIKey == "" {
		return nil, fmt.Errorf("embedding_api_key is required for the %s embedding provider", e.EmbeddingProvider)
	}

	var opts []embed.Option
	if e.EmbeddingModel != "" {
		opts = append(opts, embed.WithModel(e.EmbeddingModel))
	}
	if e.EmbeddingDim > 0 {
		opts = append(opts, embed.WithDimension(e.EmbeddingDim))
	}
	if e.EmbeddingBaseURL != "" {
		opts = append(opts, embed.WithBaseURL(e.EmbeddingBaseURL))
	}
	if t := e.Timeout(); t > 0 {
		opts = append(opts, embed.WithTimeout(t))
	}

	if e.EmbeddingProvider == config.ProviderDashScope {
		return embed.NewDashScope(e.EmbeddingAPIKey, opts...), nil
	}
	return embed.NewOpenAI(e.EmbeddingAPIKey, opts...), nil
}

func newCompleter(ctx context.Context, e *config.Engine) (llm.Completer, error) {
	if testCompleter != nil {
		return testCompleter, nil
	}
	if e.APIKey == "" {
		return nil, fmt.Errorf("api_key is required for the %s llm provider (set it in engine.yaml or the environment)", e.LLMProvider)
	}

	if e.LLMProvider == config.ProviderGemini {
		g, err := llm.NewGemini(ctx, llm.GeminiConfig{
			APIKey:  e.APIKey,
			Model:   e.LLMModel,
			BaseURL: e.LLMBaseURL,
			Timeout: e.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	}

	var opts []llm.OpenAIOption
	if e.LLMModel != "" {
		opts = append(opts, llm.WithModel(e.LLMModel))
	}
	if e.LLMBaseURL != "" {
		opts = append(opts, llm.WithBaseURL(e.LLMBaseURL))
	}
	if t := e.Timeout(); t > 0 {
		opts = append(opts, llm.WithTimeout(t))
	}
	return llm.NewOpenAI(e.APIKey, opts...), nil
}
