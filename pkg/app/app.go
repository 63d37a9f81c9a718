// Package app wires configuration into the long-lived clients and builds a
// research pipeline per run.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rthallapally/AI-Research-Agent/pkg/clients"
	"github.com/rthallapally/AI-Research-Agent/pkg/config"
	"github.com/rthallapally/AI-Research-Agent/pkg/database"
	"github.com/rthallapally/AI-Research-Agent/pkg/embeddings"
	"github.com/rthallapally/AI-Research-Agent/pkg/graph"
	"github.com/rthallapally/AI-Research-Agent/pkg/research"
	"github.com/rthallapally/AI-Research-Agent/pkg/research/tools"
	"github.com/rthallapally/AI-Research-Agent/pkg/splitter"
	"github.com/rthallapally/AI-Research-Agent/pkg/vectorstore"
)

// Components holds the clients shared by every run.
type Components struct {
	Config   *config.Config
	DB       *database.PostgresDB
	Embedder embeddings.Embedder
	Backend  vectorstore.Backend
	Planner  clients.Completer
	Synth    clients.Completer
	GraphLLM clients.Completer
}

// New connects the configured providers. The database is opened when the
// vector backend needs it or requireDB is set.
func New(ctx context.Context, cfg *config.Config, requireDB bool) (*Components, error) {
	c := &Components{Config: cfg}

	var err error
	if c.Planner, err = newLLM(ctx, cfg, cfg.PlannerModel); err != nil {
		return nil, fmt.Errorf("failed to create planner model: %w", err)
	}
	if c.Synth, err = newLLM(ctx, cfg, cfg.SynthModel); err != nil {
		return nil, fmt.Errorf("failed to create synthesis model: %w", err)
	}
	if c.GraphLLM, err = newLLM(ctx, cfg, cfg.Graph.Model); err != nil {
		return nil, fmt.Errorf("failed to create graph model: %w", err)
	}

	if c.Embedder, err = newEmbedder(ctx, cfg); err != nil {
		return nil, err
	}

	if cfg.Retrieval.Backend == "pgvector" || requireDB {
		if c.DB, err = database.NewPostgresDB(ctx, cfg.DatabaseURL); err != nil {
			return nil, err
		}
	}

	switch cfg.Retrieval.Backend {
	case "pgvector":
		store, err := c.DB.CreateEmbeddingsTable(ctx, cfg.Retrieval.CollectionName, cfg.EmbeddingDim)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to prepare collection %s: %w", cfg.Retrieval.CollectionName, err)
		}
		c.Backend = store
	default:
		c.Backend = vectorstore.NewMemoryStore()
	}

	return c, nil
}

// Close releases the database pool, if one was opened.
func (c *Components) Close() {
	if c.DB != nil {
		c.DB.Close()
	}
}

// RunOptions overrides per-run settings.
type RunOptions struct {
	DocsDir     string
	GraphOutput string
}

// Pipeline builds a pipeline whose components log to logger.
func (c *Components) Pipeline(logger *slog.Logger, opts RunOptions) (*research.Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := c.Config

	split, err := splitter.NewRecursiveCharacterTextSplitter(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	docsDir := cfg.Sources.DocsDir
	if opts.DocsDir != "" {
		docsDir = opts.DocsDir
	}

	web := tools.NewWebSearch(tools.WebOptions{
		Timeout:       cfg.Sources.Timeout(),
		MaxQueryChars: cfg.Sources.MaxQueryChars,
		Denylist:      cfg.Sources.Denylist,
		Logger:        logger,
	})
	academic := tools.NewArxiv(tools.ArxivOptions{
		Timeout:       cfg.Sources.Timeout(),
		MaxQueryChars: cfg.Sources.MaxQueryChars,
		Logger:        logger,
	})

	completion := clients.CompletionOptions{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout(),
	}

	return &research.Pipeline{
		Planner: research.NewPlanner(c.Planner, completion, logger),
		Gatherer: research.NewGatherer(web, academic, research.GathererOptions{
			WebMaxResults:      cfg.Sources.WebMaxResults,
			AcademicMaxResults: cfg.Sources.AcademicMaxResults,
			Concurrency:        cfg.GatherConcurrency,
			Logger:             logger,
		}),
		Synthesizer: research.NewSynthesizer(c.Synth, research.SynthesizerOptions{
			TopK:        cfg.Retrieval.TopK,
			Completion:  completion,
			Concurrency: cfg.SynthConcurrency,
			Logger:      logger,
		}),
		Splitter:    split,
		Index:       research.NewIndex(c.Embedder, c.Backend, cfg.Retrieval.TopK),
		Documents:   tools.NewLocalDocuments(docsDir, logger),
		Graph:       c.Extractor(logger),
		GraphOutput: opts.GraphOutput,
		Logger:      logger,
	}, nil
}

// Extractor builds the knowledge-graph extractor.
func (c *Components) Extractor(logger *slog.Logger) *graph.Extractor {
	g := c.Config.Graph
	return graph.NewExtractor(c.GraphLLM, graph.ExtractorOptions{
		Completion: clients.CompletionOptions{
			MaxTokens:   g.MaxTokens,
			Temperature: g.Temperature,
			Timeout:     g.Timeout(),
		},
		ReportChars: g.ReportChars,
		AddDegree:   true,
		Logger:      logger,
	})
}

// NewGraphExtractor connects only the graph model.
func NewGraphExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*graph.Extractor, error) {
	llm, err := newLLM(ctx, cfg, cfg.Graph.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph model: %w", err)
	}
	return (&Components{Config: cfg, GraphLLM: llm}).Extractor(logger), nil
}

func newLLM(ctx context.Context, cfg *config.Config, model string) (*clients.LLM, error) {
	return clients.New(ctx, clients.Settings{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMApiKey,
		BaseURL:  cfg.LLMBaseURL,
		Model:    model,
	})
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embeddings.Embedder, error) {
	var (
		base embeddings.Embedder
		err  error
	)
	switch cfg.EmbeddingProvider {
	case "google":
		base, err = embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.EmbeddingApiKey, cfg.EmbeddingDim)
	case "openai":
		base, err = embeddings.NewOpenAIEmbedder(cfg.EmbeddingApiKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel, cfg.EmbeddingDim)
	default:
		return nil, fmt.Errorf("invalid embedding provider: %s", cfg.EmbeddingProvider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if cfg.EmbeddingCacheSize <= 0 {
		return base, nil
	}
	return embeddings.NewCachedEmbedder(base, cfg.EmbeddingCacheSize)
}
