package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/docqa-ai/cli/config"
	"github.com/docqa-ai/cli/internal/db"
	"github.com/docqa-ai/cli/internal/documents"
	"github.com/docqa-ai/cli/internal/embeddings"
	"github.com/docqa-ai/cli/internal/logger"
	"github.com/docqa-ai/cli/internal/ollama"
	"github.com/docqa-ai/cli/internal/qa"
	"github.com/docqa-ai/cli/internal/rag"
	"github.com/docqa-ai/cli/internal/vectorstore"
)

// appContext bundles the services a command needs, built once per invocation.
type appContext struct {
	Config    *config.Config
	Logger    *slog.Logger
	DB        *db.DB
	QA        *qa.Service
	Processor *documents.Processor
}

// newAppContext loads configuration and wires the full service graph.
func newAppContext(ctx context.Context) (*appContext, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.DefaultConfig())

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}

	model, err := ollama.ResolveModel(ctx, cfg.Ollama.BaseURL, cfg.Ollama.DefaultModel)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to resolve ollama model: %w", err)
	}
	generator := ollama.NewClient(cfg.Ollama.BaseURL, model)

	embedder := embeddings.NewTextEmbedder(cfg.Ollama.BaseURL, cfg.Embeddings.TextModel)

	store := vectorstore.New(database, vectorstore.Config{
		Metric:    cfg.Vector.Metric,
		IndexList: cfg.Vector.IndexList,
		Probes:    cfg.Vector.Probes,
	}, log)

	retriever := rag.NewRetriever(store, embedder, cfg.Vector.Overfetch, cfg.Vector.Lambda, log)
	contextMgr := rag.NewContextManager(database, generator, cfg.Context.MaxTokens, cfg.Context.ReservedTokens, log)

	service := qa.NewService(database, contextMgr, retriever, generator, store, cfg.Vector.TopK, log)

	search := documents.NewTavilyClient(cfg.Search.TavilyAPIKey)
	processor := documents.NewProcessor(store, database, embedder, search,
		cfg.Processing.ChunkSize, cfg.Processing.ChunkOverlap, log)

	return &appContext{
		Config:    cfg,
		Logger:    log,
		DB:        database,
		QA:        service,
		Processor: processor,
	}, nil
}

// Close releases the database pool.
func (a *appContext) Close() {
	a.DB.Close()
}

func openDatabase(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	database, err := db.New(ctx, cfg.Database.ConnectionString, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}
