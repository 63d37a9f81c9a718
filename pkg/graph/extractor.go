package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rthallapally/AI-Research-Agent/pkg/clients"
)

// DefaultReportChars bounds how much of a report is sent to the model.
const DefaultReportChars = 15000

const extractPrompt = `You are an expert at creating knowledge graphs from research reports.

Create 8-15 nodes and 10-20 edges representing key entities and relationships.

IMPORTANT: Output ONLY valid JSON in this exact format:
{
  "nodes": [
    {"data": {"id": "unique_id", "label": "TYPE", "name": "display_name", "description": "detailed_description"}}
  ],
  "edges": [
    {"data": {"id": "edge_id", "source": "node_id", "target": "node_id", "label": "RELATIONSHIP", "description": "relationship_description"}}
  ]
}

Guidelines:
- Infer node types and relationships from the research content
- Use meaningful labels like PERSON, ORGANIZATION, TECHNOLOGY, CONCEPT, EVENT, LOCATION, etc.
- Use unique IDs for all nodes and edges
- Ensure all source and target IDs in edges correspond to actual node IDs
- ASCII only, no trailing commas, no commentary outside the JSON

Topic: %s

Research Report:
%s

Output ONLY the JSON.`

// ExtractorOptions configures the extraction call.
type ExtractorOptions struct {
	Completion  clients.CompletionOptions
	ReportChars int
	AddDegree   bool
	Logger      *slog.Logger
}

// Extractor asks a model for a knowledge graph and repairs whatever comes back.
type Extractor struct {
	llm         clients.Completer
	opts        clients.CompletionOptions
	reportChars int
	addDegree   bool
	logger      *slog.Logger
}

func NewExtractor(llm clients.Completer, opts ExtractorOptions) *Extractor {
	if opts.ReportChars <= 0 {
		opts.ReportChars = DefaultReportChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Extractor{
		llm:         llm,
		opts:        opts.Completion,
		reportChars: opts.ReportChars,
		addDegree:   opts.AddDegree,
		logger:      opts.Logger,
	}
}

// Extract never fails: a blank report, a failed call, or unparseable output
// all produce the placeholder graph for topic.
func (x *Extractor) Extract(ctx context.Context, report, topic string) Graph {
	if strings.TrimSpace(report) == "" {
		return Placeholder(topic)
	}

	prompt := fmt.Sprintf(extractPrompt, topic, truncate(report, x.reportChars))
	raw, err := x.llm.Complete(ctx, prompt, x.opts)
	if err != nil {
		x.logger.Warn("Graph extraction call failed", "error", err)
		return Placeholder(topic)
	}

	obj, err := RecoverJSON(raw)
	if err != nil {
		x.logger.Warn("Graph output was not JSON", "error", err, "length", len(raw))
		return Placeholder(topic)
	}

	g := Coerce(obj, topic, x.addDegree)
	x.logger.Info("Extracted knowledge graph", "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g
}
