package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/rthallapally/AI-Research-Agent/pkg/embeddings"
	"github.com/rthallapally/AI-Research-Agent/pkg/graph"
	"github.com/rthallapally/AI-Research-Agent/pkg/vectorstore"
)

const defaultSearchTopK = 5

// Toolset answers questions about the evidence index and turns reports into
// graphs. It backs the MCP tools.
type Toolset struct {
	Embedder embeddings.Embedder
	Backend  vectorstore.Backend
	Graph    *graph.Extractor
	// GraphOutput, when set, receives every extracted graph.
	GraphOutput string
	Logger      *slog.Logger
}

type SearchEvidenceArgs struct {
	Query  string `json:"query" jsonschema:"the search query"`
	TopK   int    `json:"topK,omitempty" jsonschema:"number of results to return (default 5)"`
	Source string `json:"source,omitempty" jsonschema:"optional source filter"`
}

type SearchEvidenceResp struct {
	Results string `json:"results"`
}

// SearchEvidence embeds the query and returns the closest chunks, one block
// per chunk.
func (t *Toolset) SearchEvidence(ctx context.Context, args SearchEvidenceArgs) (SearchEvidenceResp, error) {
	if strings.TrimSpace(args.Query) == "" {
		return SearchEvidenceResp{}, errors.New("query is required")
	}
	if args.TopK <= 0 {
		args.TopK = defaultSearchTopK
	}
	t.logger().Info("Search evidence", "query", args.Query, "topK", args.TopK, "source", args.Source)

	queryEmbedding, err := t.Embedder.EmbedText(ctx, args.Query)
	if err != nil {
		return SearchEvidenceResp{}, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := t.Backend.SimilaritySearch(ctx, queryEmbedding, args.TopK, args.Source)
	if err != nil {
		return SearchEvidenceResp{}, fmt.Errorf("failed to search: %w", err)
	}

	blocks := make([]string, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, formatDocument(r.Document))
	}
	return SearchEvidenceResp{Results: strings.Join(blocks, "\n\n")}, nil
}

type FindSourceArgs struct {
	Source string `json:"source" jsonschema:"the source URL or file path to find content for"`
}

type FindSourceResp struct {
	Content string `json:"content"`
}

func (t *Toolset) FindContentBySource(ctx context.Context, args FindSourceArgs) (FindSourceResp, error) {
	if strings.TrimSpace(args.Source) == "" {
		return FindSourceResp{}, errors.New("source is required")
	}
	docs, err := t.Backend.GetContentBySource(ctx, args.Source)
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("failed to find content: %w", err)
	}
	return FindSourceResp{Content: joinContent(docs)}, nil
}

type FindMetadataArgs struct {
	Filter map[string]any `json:"filter" jsonschema:"JSON filter object with logical operators ($and, $or, $not)"`
}

type FindMetadataResp struct {
	Content string `json:"content"`
}

func (t *Toolset) FindContentByMetadata(ctx context.Context, args FindMetadataArgs) (FindMetadataResp, error) {
	if len(args.Filter) == 0 {
		return FindMetadataResp{}, errors.New("filter is required")
	}
	docs, err := t.Backend.GetContentByMetadata(ctx, args.Filter)
	if err != nil {
		return FindMetadataResp{}, fmt.Errorf("failed to find content: %w", err)
	}
	return FindMetadataResp{Content: joinContent(docs)}, nil
}

type ExtractGraphArgs struct {
	Report string `json:"report" jsonschema:"the research report to analyze"`
	Topic  string `json:"topic,omitempty" jsonschema:"topic used for the placeholder node"`
}

// ExtractGraph never fails; unusable model output yields the placeholder graph.
// A failed save is logged and the graph is still returned.
func (t *Toolset) ExtractGraph(ctx context.Context, args ExtractGraphArgs) graph.Graph {
	var g graph.Graph
	if t.Graph == nil {
		g = graph.Placeholder(args.Topic)
	} else {
		g = t.Graph.Extract(ctx, args.Report, args.Topic)
	}

	if t.GraphOutput != "" {
		if err := graph.Save(t.GraphOutput, g); err != nil {
			t.logger().Error("Failed to save knowledge graph", "path", t.GraphOutput, "error", err)
		}
	}
	return g
}

func (t *Toolset) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// formatDocument renders the source, the content and any other metadata keys
// in sorted order.
func formatDocument(d vectorstore.Document) string {
	source := d.Source()
	if source == "" {
		source = "unknown"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[Source]: %s\n[Content]: %s", source, d.Content)

	keys := make([]string, 0, len(d.Metadata))
	for k := range d.Metadata {
		if k != "source" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n[%s]: %v", k, d.Metadata[k])
	}
	return sb.String()
}

func joinContent(docs []vectorstore.Document) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}
