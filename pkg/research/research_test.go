package research

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rthallapally/AI-Research-Agent/pkg/clients"
	"github.com/rthallapally/AI-Research-Agent/pkg/splitter"
	"github.com/rthallapally/AI-Research-Agent/pkg/vectorstore"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedLLM answers by the first matching prompt fragment.
type scriptedLLM struct {
	mu      sync.Mutex
	replies map[string]string
	fail    map[string]error
	prompts []string
}

func (s *scriptedLLM) Complete(_ context.Context, prompt string, _ clients.CompletionOptions) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	for frag, err := range s.fail {
		if strings.Contains(prompt, frag) {
			return "", err
		}
	}
	for frag, reply := range s.replies {
		if strings.Contains(prompt, frag) {
			return reply, nil
		}
	}
	return "generic answer", nil
}

func (s *scriptedLLM) count(frag string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.prompts {
		if strings.Contains(p, frag) {
			n++
		}
	}
	return n
}

type staticAdapter struct {
	name    string
	records []EvidenceRecord
	mu      sync.Mutex
	queries []string
}

func (a *staticAdapter) Name() string { return a.name }

func (a *staticAdapter) Fetch(_ context.Context, query string, max int) []EvidenceRecord {
	a.mu.Lock()
	a.queries = append(a.queries, query)
	a.mu.Unlock()
	if len(a.records) > max {
		return a.records[:max]
	}
	return a.records
}

type countingLoader struct {
	records []EvidenceRecord
	calls   int
}

func (l *countingLoader) Load(context.Context) []EvidenceRecord {
	l.calls++
	return l.records
}

// hashEmbedder maps words onto a small bag-of-words vector.
type hashEmbedder struct{}

func (hashEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 16)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%16]++
	}
	v[0] += 0.01
	return v, nil
}

func (e hashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedText(ctx, t)
	}
	return out, nil
}

type fixedRetriever struct {
	chunks map[string][]Chunk
	err    error
}

func (r fixedRetriever) Ingest(context.Context, []Chunk) error { return nil }

func (r fixedRetriever) Query(_ context.Context, text string, _ int) ([]Chunk, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.chunks[text], nil
}

func TestParseSubquestions(t *testing.T) {
	text := `Here are the sub-questions:

1. What is X?
2.   How does Y work?
   3. Indented items are not part of the list
3. Why does the U.S. lead?
- not numbered
10. Tenth item

4.`
	assert.Equal(t, []string{
		"What is X?",
		"How does Y work?",
		"Why does the U.S. lead?",
		"Tenth item",
	}, ParseSubquestions(text))
	assert.Equal(t, []string{"First"}, ParseSubquestions("  \n 1. First\n  2. Second"))
	assert.Empty(t, ParseSubquestions("no list at all"))
}

func TestPlanRejectsBlankQuery(t *testing.T) {
	llm := &scriptedLLM{}
	_, err := NewPlanner(llm, clients.CompletionOptions{}, nil).Plan(context.Background(), "  \t ")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)
	assert.Empty(t, llm.prompts, "no model call for invalid input")
}

func TestPlanPropagatesModelFailure(t *testing.T) {
	llm := &scriptedLLM{fail: map[string]error{"Decompose": errors.New("down")}}
	_, err := NewPlanner(llm, clients.CompletionOptions{}, nil).Plan(context.Background(), "q")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestGatherOrderAndNormalization(t *testing.T) {
	web := &staticAdapter{name: "Web", records: []EvidenceRecord{
		{Content: "web one", SourceID: "https://a.example"},
		{Content: "   ", SourceID: "https://empty.example"},
		{Content: "web two"},
	}}
	academic := &staticAdapter{name: "arxiv.org", records: []EvidenceRecord{
		{Content: "paper", SourceID: "http://arxiv.org/abs/1"},
	}}
	preloaded := []EvidenceRecord{{Content: "local page", SourceID: "docs/a.pdf"}}

	g := NewGatherer(web, academic, GathererOptions{WebMaxResults: 5, AcademicMaxResults: 5})
	got := g.Gather(context.Background(), "q", preloaded)

	assert.Equal(t, []EvidenceRecord{
		{Content: "web one", SourceID: "https://a.example"},
		{Content: "web two", SourceID: "Web"},
		{Content: "paper", SourceID: "http://arxiv.org/abs/1"},
		{Content: "local page", SourceID: "docs/a.pdf"},
	}, got)
	assert.Equal(t, "docs/a.pdf", preloaded[0].SourceID, "preloaded records are not modified")
}

func TestGatherToleratesEmptyAdapters(t *testing.T) {
	g := NewGatherer(&staticAdapter{name: "Web"}, nil, GathererOptions{WebMaxResults: 2, AcademicMaxResults: 3})
	assert.Empty(t, g.Gather(context.Background(), "q", nil))
}

func TestGatherAllKeepsSlots(t *testing.T) {
	web := &staticAdapter{name: "Web", records: []EvidenceRecord{{Content: "w", SourceID: "u"}}}
	g := NewGatherer(web, nil, GathererOptions{WebMaxResults: 1, Concurrency: 3})

	got := g.GatherAll(context.Background(), []string{"a", "b", "c"}, nil)
	require.Len(t, got, 3)
	for _, slot := range got {
		assert.Len(t, slot, 1)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, web.queries)
}

// blockingLLM completes the Q1 answer only after the Q2 answer has returned.
type blockingLLM struct {
	q2done chan struct{}
}

func (b *blockingLLM) Complete(ctx context.Context, prompt string, _ clients.CompletionOptions) (string, error) {
	switch {
	case strings.Contains(prompt, "Sub-question: Q1"):
		select {
		case <-b.q2done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		return "answer one", nil
	case strings.Contains(prompt, "Sub-question: Q2"):
		defer close(b.q2done)
		return "answer two", nil
	}
	return "", errors.New("unexpected prompt")
}

func TestSynthesizeAllPreservesOrder(t *testing.T) {
	llm := &blockingLLM{q2done: make(chan struct{})}
	s := NewSynthesizer(llm, SynthesizerOptions{Concurrency: 2})
	retriever := fixedRetriever{chunks: map[string][]Chunk{
		"Q1": {{Content: "c1", SourceID: "s1"}, {Content: "c1b", SourceID: ""}},
		"Q2": {{Content: "c2", SourceID: "s2"}, {Content: "c2b", SourceID: "s1"}},
	}}

	answers, sources := s.SynthesizeAll(context.Background(), []string{"Q1", "Q2"}, retriever)
	assert.Equal(t, []string{"answer one", "answer two"}, answers)
	assert.ElementsMatch(t, []string{"s1", "s2"}, sources)
}

func TestSynthesizeOneContext(t *testing.T) {
	llm := &scriptedLLM{}
	s := NewSynthesizer(llm, SynthesizerOptions{})
	retriever := fixedRetriever{chunks: map[string][]Chunk{
		"q": {{Content: "first", SourceID: "a"}, {Content: "second", SourceID: "a"}},
	}}

	_, sources, err := s.SynthesizeOne(context.Background(), "q", retriever)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, sources)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "first\n\nsecond")
}

func TestSynthesizeAllContainsFailures(t *testing.T) {
	llm := &scriptedLLM{fail: map[string]error{"Sub-question: bad": errors.New("boom")}}
	s := NewSynthesizer(llm, SynthesizerOptions{Concurrency: 2})

	answers, _ := s.SynthesizeAll(context.Background(), []string{"good", "bad"}, fixedRetriever{})
	assert.Equal(t, "generic answer", answers[0])
	assert.Equal(t, failedAnswer, answers[1])
}

func TestSummarizeFallbacks(t *testing.T) {
	llm := &scriptedLLM{fail: map[string]error{"Executive Summary": errors.New("boom")}}
	s := NewSynthesizer(llm, SynthesizerOptions{})

	assert.Equal(t, emptySummary, s.Summarize(context.Background(), nil, nil))
	assert.Empty(t, llm.prompts, "no call without sub-questions")
	assert.Equal(t, failedSummary, s.Summarize(context.Background(), []string{"q"}, []string{"a"}))
}

func TestRenderCitations(t *testing.T) {
	assert.Equal(t, "No references found.", RenderCitations(nil))
	assert.Equal(t, "No references found.", RenderCitations([]string{"", " "}))

	got := RenderCitations([]string{"https://b.example", "docs/a.pdf", "https://b.example", "Web"})
	assert.Equal(t, "## References\n1. Web.\n2. docs/a.pdf.\n3. https://b.example.\n", strings.ReplaceAll(got, "[PDF] ", ""))
	assert.Contains(t, got, "[PDF] docs/a.pdf.")
}

func TestAssembleReport(t *testing.T) {
	s := Synthesized{
		Gathered:         Gathered{Planned: Planned{Query: "q", Subquestions: []string{"A?", "B?"}}},
		Answers:          []string{"alpha", "beta"},
		Sources:          []string{"https://x.example"},
		ExecutiveSummary: "  summary text \n",
	}
	report := AssembleReport(s)

	assert.True(t, strings.HasPrefix(report, "# Final Report\n\n## Executive Summary\nsummary text\n\n## Findings\n"))
	assert.Contains(t, report, "### 1. A?\nalpha\n\n### 2. B?\nbeta\n\n")
	assert.Contains(t, report, "## References\n1. https://x.example.\n")
}

func newTestPipeline(t *testing.T, llm clients.Completer, web, academic Adapter, docs DocumentLoader) (*Pipeline, *vectorstore.MemoryStore) {
	t.Helper()
	ts, err := splitter.NewRecursiveCharacterTextSplitter(200, 20)
	require.NoError(t, err)
	store := vectorstore.NewMemoryStore()
	return &Pipeline{
		Planner:     NewPlanner(llm, clients.CompletionOptions{}, nil),
		Gatherer:    NewGatherer(web, academic, GathererOptions{WebMaxResults: 2, AcademicMaxResults: 3, Concurrency: 2}),
		Synthesizer: NewSynthesizer(llm, SynthesizerOptions{TopK: 4, Concurrency: 2}),
		Splitter:    ts,
		Index:       NewIndex(hashEmbedder{}, store, 4),
		Documents:   docs,
	}, store
}

func TestPipelineEndToEnd(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{
		"Decompose":         "1. How accurate are AI diagnostic tools?\n2. What are the adoption barriers?",
		"Executive Summary": "AI improves diagnostics but adoption lags.",
	}}
	web := &staticAdapter{name: "Web", records: []EvidenceRecord{{Content: "AI tools reach radiologist accuracy.", SourceID: "https://news.example/ai"}}}
	academic := &staticAdapter{name: "arxiv.org", records: []EvidenceRecord{{Content: "A study of diagnostic models.", SourceID: "http://arxiv.org/abs/2401.00001"}}}
	docs := &countingLoader{records: []EvidenceRecord{{Content: "Hospital adoption survey.", SourceID: "docs/survey.pdf"}}}

	p, store := newTestPipeline(t, llm, web, academic, docs)

	var stages []Stage
	p.OnStage = func(stage Stage, state ResearchState) {
		stages = append(stages, stage)
		assert.Equal(t, stage.String(), state.Stage)
	}

	final, err := p.Run(context.Background(), "Impact of AI on healthcare diagnostics")
	require.NoError(t, err)

	assert.Equal(t, []Stage{StagePlanning, StageGathering, StageSynthesizing, StageOutput}, stages)
	require.Len(t, final.Subquestions, 2)
	assert.Len(t, final.Answers, 2)
	assert.Equal(t, 6, final.EvidenceCount)
	assert.Equal(t, 3, final.ChunkCount, "shared chunks are ingested once")
	assert.Equal(t, 3, store.Len())
	assert.Equal(t, 1, docs.calls, "local documents load once per run")

	assert.Contains(t, final.Report, "## Executive Summary\nAI improves diagnostics but adoption lags.")
	assert.Contains(t, final.Report, "### 1. How accurate are AI diagnostic tools?")
	assert.Contains(t, final.Report, "### 2. What are the adoption barriers?")
	assert.Contains(t, final.Report, "[PDF] docs/survey.pdf.")
	assert.ElementsMatch(t, []string{"https://news.example/ai", "http://arxiv.org/abs/2401.00001", "docs/survey.pdf"}, final.Sources)
}

func TestPipelineSurvivesDeadProviders(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{"Decompose": "1. Only question"}}
	p, store := newTestPipeline(t, llm, &staticAdapter{name: "Web"}, &staticAdapter{name: "arxiv.org"}, nil)

	final, err := p.Run(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, 0, final.EvidenceCount)
	assert.Equal(t, 0, store.Len())
	assert.Len(t, final.Answers, 1)
	assert.Contains(t, final.Report, "No references found.")
}

func TestPipelineEmptyPlan(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{"Decompose": "I refuse to number things."}}
	p, _ := newTestPipeline(t, llm, &staticAdapter{name: "Web"}, nil, nil)

	final, err := p.Run(context.Background(), "anything")
	require.NoError(t, err)
	assert.Empty(t, final.Subquestions)
	assert.Empty(t, final.Answers)
	assert.Contains(t, final.Report, "## Findings\n")
	assert.Equal(t, 0, llm.count("Executive Summary"))
}

func TestPipelineBlankQuery(t *testing.T) {
	p, _ := newTestPipeline(t, &scriptedLLM{}, nil, nil, nil)
	_, err := p.Run(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidation)
}

type failingBackend struct{ vectorstore.Backend }

func (failingBackend) AddDocuments(context.Context, []vectorstore.Document) error {
	return errors.New("store unavailable")
}

func TestPipelineIngestFailureIsFatal(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{"Decompose": "1. q"}}
	p, _ := newTestPipeline(t, llm, &staticAdapter{name: "Web", records: []EvidenceRecord{{Content: "x", SourceID: "u"}}}, nil, nil)
	p.Index = NewIndex(hashEmbedder{}, failingBackend{}, 4)

	_, err := p.Run(context.Background(), "q")
	assert.ErrorContains(t, err, "indexing failed")
}

func TestStagesDoNotMutateInputs(t *testing.T) {
	llm := &scriptedLLM{replies: map[string]string{"Decompose": "1. a\n2. b"}}
	p, _ := newTestPipeline(t, llm, &staticAdapter{name: "Web"}, nil, nil)
	ctx := context.Background()

	planned, err := p.PlanStage(ctx, "q")
	require.NoError(t, err)
	gathered, err := p.GatherStage(ctx, planned)
	require.NoError(t, err)

	gathered.Subquestions[0] = "changed"
	assert.Equal(t, "a", planned.Subquestions[0])

	synthesized := p.SynthesizeStage(ctx, gathered)
	final := p.OutputStage(synthesized)
	final.Answers[0] = "changed"
	final.Subquestions[1] = "changed"
	assert.NotEqual(t, "changed", synthesized.Answers[0])
	assert.Equal(t, "b", synthesized.Subquestions[1])
}

func TestIndexRoundTrip(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	ix := NewIndex(hashEmbedder{}, store, 0)
	ctx := context.Background()

	require.NoError(t, ix.Ingest(ctx, nil))
	require.NoError(t, ix.Ingest(ctx, []Chunk{
		{Content: "graph neural networks", SourceID: "a"},
		{Content: "protein folding", SourceID: "b"},
		{Content: "neural networks for folding", SourceID: "c"},
	}))

	got, err := ix.Query(ctx, "protein folding", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Chunk{Content: "protein folding", SourceID: "b"}, got[0])

	got, err = ix.Query(ctx, "protein folding", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestChunkRecordsInheritsSource(t *testing.T) {
	ts, err := splitter.NewRecursiveCharacterTextSplitter(20, 5)
	require.NoError(t, err)

	chunks, err := ChunkRecords(ts, []EvidenceRecord{{Content: strings.Repeat("word ", 30), SourceID: "doc"}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.Equal(t, "doc", c.SourceID)
		assert.LessOrEqual(t, len(c.Content), 20)
	}
}

func TestRenderHTMLSanitizes(t *testing.T) {
	out := string(RenderHTML("# Final Report\n\n## Findings\n### 1. Why?\nBecause [1] <script>alert(1)</script>\n\n## References\n1. https://example.com.\n"))

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "Final Report")
	assert.Contains(t, out, "<ol>")
	assert.NotContains(t, out, "<script")
}
