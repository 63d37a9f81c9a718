package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rthallapally/AI-Research-Agent/pkg/graph"
)

// Pipeline runs Planning, Gathering, Synthesizing and Output in that fixed
// order. Each stage takes the previous stage's value and returns a new one.
type Pipeline struct {
	Planner     *Planner
	Gatherer    *Gatherer
	Synthesizer *Synthesizer
	Splitter    Splitter
	Index       Retriever
	Documents   DocumentLoader

	Graph       *graph.Extractor
	GraphOutput string

	Logger  *slog.Logger
	OnStage func(stage Stage, state ResearchState)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) notify(stage Stage, state ResearchState) {
	if p.OnStage != nil {
		p.OnStage(stage, state)
	}
}

// Run executes the four stages. Stage-internal failures are contained by the
// stages; errors returned here mean the run could not produce a report.
func (p *Pipeline) Run(ctx context.Context, query string) (Final, error) {
	p.logger().Info("Starting research pipeline", "query", query)

	planned, err := p.PlanStage(ctx, query)
	if err != nil {
		return Final{}, err
	}
	p.notify(StagePlanning, planned.Snapshot())

	gathered, err := p.GatherStage(ctx, planned)
	if err != nil {
		return Final{}, err
	}
	p.notify(StageGathering, gathered.Snapshot())

	synthesized := p.SynthesizeStage(ctx, gathered)
	p.notify(StageSynthesizing, synthesized.Snapshot())

	final := p.OutputStage(synthesized)
	p.notify(StageOutput, final.Snapshot())

	p.logger().Info("Research pipeline complete", "subquestions", len(final.Subquestions), "sources", len(final.Sources))
	return final, nil
}

// PlanStage validates the query and decomposes it.
func (p *Pipeline) PlanStage(ctx context.Context, query string) (Planned, error) {
	query = strings.TrimSpace(query)
	subqs, err := p.Planner.Plan(ctx, query)
	if err != nil {
		return Planned{}, fmt.Errorf("planning failed: %w", err)
	}
	return Planned{Query: query, Subquestions: cloneStrings(subqs)}, nil
}

// GatherStage loads local documents once, gathers evidence for every
// sub-question and ingests the chunks. Chunks repeated across sub-questions
// (the shared local documents) are ingested once.
func (p *Pipeline) GatherStage(ctx context.Context, in Planned) (Gathered, error) {
	var local []EvidenceRecord
	if p.Documents != nil {
		local = p.Documents.Load(ctx)
	}
	p.logger().Info("Starting gathering phase", "subquestions", len(in.Subquestions), "local_documents", len(local))

	perQuestion := p.Gatherer.GatherAll(ctx, in.Subquestions, local)

	type chunkKey struct{ source, content string }
	seen := make(map[chunkKey]struct{})
	var chunks []Chunk
	evidence := 0
	for i, records := range perQuestion {
		evidence += len(records)
		split, err := ChunkRecords(p.Splitter, records)
		if err != nil {
			return Gathered{}, fmt.Errorf("chunking sub-question %d failed: %w", i+1, err)
		}
		for _, c := range split {
			k := chunkKey{c.SourceID, c.Content}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			chunks = append(chunks, c)
		}
	}

	if len(chunks) > 0 {
		if err := p.Index.Ingest(ctx, chunks); err != nil {
			return Gathered{}, fmt.Errorf("indexing failed: %w", err)
		}
	}
	p.logger().Info("Indexed evidence", "records", evidence, "chunks", len(chunks))

	return Gathered{
		Planned:       Planned{Query: in.Query, Subquestions: cloneStrings(in.Subquestions)},
		Index:         p.Index,
		EvidenceCount: evidence,
		ChunkCount:    len(chunks),
	}, nil
}

// SynthesizeStage answers every sub-question and writes the executive summary.
func (p *Pipeline) SynthesizeStage(ctx context.Context, in Gathered) Synthesized {
	p.logger().Info("Starting synthesis phase", "subquestions", len(in.Subquestions))

	answers, sources := p.Synthesizer.SynthesizeAll(ctx, in.Subquestions, in.Index)
	summary := p.Synthesizer.Summarize(ctx, in.Subquestions, answers)

	out := Synthesized{
		Gathered:         in,
		Answers:          answers,
		Sources:          sources,
		ExecutiveSummary: summary,
	}
	out.Subquestions = cloneStrings(in.Subquestions)
	return out
}

// OutputStage renders the report.
func (p *Pipeline) OutputStage(in Synthesized) Final {
	out := Final{Synthesized: in, Report: AssembleReport(in)}
	out.Subquestions = cloneStrings(in.Subquestions)
	out.Answers = cloneStrings(in.Answers)
	out.Sources = cloneStrings(in.Sources)
	return out
}

// BuildGraph extracts a knowledge graph from the final report and, when an
// output path is configured, persists it.
func (p *Pipeline) BuildGraph(ctx context.Context, f Final) (graph.Graph, error) {
	if p.Graph == nil {
		return graph.Placeholder(f.Query), nil
	}
	g := p.Graph.Extract(ctx, f.Report, f.Query)
	if p.GraphOutput != "" {
		if err := graph.Save(p.GraphOutput, g); err != nil {
			return g, err
		}
		p.logger().Info("Saved knowledge graph", "path", p.GraphOutput)
	}
	return g, nil
}
