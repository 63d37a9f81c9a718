package research

import (
	"context"
	"errors"
	"fmt"
)

// EvidenceRecord is a piece of fetched content plus where it came from.
// SourceID is a URL, a file path or a provider name; never empty once it
// leaves the gatherer.
type EvidenceRecord struct {
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
}

// Chunk is a bounded slice of a record's content. It keeps the record's SourceID.
type Chunk struct {
	Content  string `json:"content"`
	SourceID string `json:"source_id"`
}

// Adapter fetches evidence from one provider. Implementations log and return
// an empty slice on failure instead of an error.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, query string, maxResults int) []EvidenceRecord
}

// DocumentLoader loads the local document corpus.
type DocumentLoader interface {
	Load(ctx context.Context) []EvidenceRecord
}

// Splitter cuts text into overlapping windows.
type Splitter interface {
	SplitText(text string) ([]string, error)
}

// Retriever is the ingest/query contract over a vector index.
type Retriever interface {
	Ingest(ctx context.Context, chunks []Chunk) error
	Query(ctx context.Context, text string, k int) ([]Chunk, error)
}

// ErrValidation marks caller errors such as a blank query.
var ErrValidation = errors.New("validation error")

// ValidationError reports which input was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Stage identifies a step of the pipeline.
type Stage int

const (
	StagePlanning Stage = iota
	StageGathering
	StageSynthesizing
	StageOutput
)

func (s Stage) String() string {
	switch s {
	case StagePlanning:
		return "planning"
	case StageGathering:
		return "gathering"
	case StageSynthesizing:
		return "synthesizing"
	case StageOutput:
		return "output"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Planned is the state after planning.
type Planned struct {
	Query        string
	Subquestions []string
}

// Gathered adds the populated index.
type Gathered struct {
	Planned
	Index         Retriever
	EvidenceCount int
	ChunkCount    int
}

// Synthesized adds one answer per sub-question and the merged provenance.
type Synthesized struct {
	Gathered
	Answers          []string
	Sources          []string
	ExecutiveSummary string
}

// Final is the terminal state of a run.
type Final struct {
	Synthesized
	Report string
}

// ResearchState is a flat, serializable view of whatever a stage has produced.
type ResearchState struct {
	Stage            string   `json:"stage"`
	Query            string   `json:"query"`
	Subquestions     []string `json:"subquestions,omitempty"`
	EvidenceCount    int      `json:"evidence_count"`
	ChunkCount       int      `json:"chunk_count"`
	Answers          []string `json:"answers,omitempty"`
	Sources          []string `json:"sources,omitempty"`
	ExecutiveSummary string   `json:"executive_summary,omitempty"`
	Report           string   `json:"report,omitempty"`
}

func (p Planned) Snapshot() ResearchState {
	return ResearchState{
		Stage:        StagePlanning.String(),
		Query:        p.Query,
		Subquestions: cloneStrings(p.Subquestions),
	}
}

func (g Gathered) Snapshot() ResearchState {
	s := g.Planned.Snapshot()
	s.Stage = StageGathering.String()
	s.EvidenceCount = g.EvidenceCount
	s.ChunkCount = g.ChunkCount
	return s
}

func (s Synthesized) Snapshot() ResearchState {
	st := s.Gathered.Snapshot()
	st.Stage = StageSynthesizing.String()
	st.Answers = cloneStrings(s.Answers)
	st.Sources = cloneStrings(s.Sources)
	st.ExecutiveSummary = s.ExecutiveSummary
	return st
}

func (f Final) Snapshot() ResearchState {
	st := f.Synthesized.Snapshot()
	st.Stage = StageOutput.String()
	st.Report = f.Report
	return st
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
