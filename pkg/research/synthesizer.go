package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rthallapally/AI-Research-Agent/pkg/clients"
)

const answerPrompt = `Sub-question: %s

Context:
%s

Write a clear, concise answer with inline citations as [1], [2], etc., and include confidence scores for each key claim as percentages (e.g., 85%%, 92%%) in parentheses. At the end of the answer, include a References section for the citations used.`

const summaryPrompt = `%s

Based on the following findings, write an Executive Summary that concisely summarizes the key insights, trends, and conclusions. Keep it under 150 words. Do NOT include a heading like 'Executive Summary' - just write the paragraph.`

const (
	failedAnswer  = "No answer could be generated for this sub-question."
	failedSummary = "An executive summary could not be generated for this run."
	emptySummary  = "No sub-questions were produced for this query, so there are no findings to summarize."
)

// SynthesizerOptions configures retrieval depth, model call options and fan-out.
type SynthesizerOptions struct {
	TopK        int
	Completion  clients.CompletionOptions
	Concurrency int
	Logger      *slog.Logger
}

// Synthesizer answers sub-questions from retrieved chunks.
type Synthesizer struct {
	llm         clients.Completer
	topK        int
	opts        clients.CompletionOptions
	concurrency int
	logger      *slog.Logger
}

func NewSynthesizer(llm clients.Completer, opts SynthesizerOptions) *Synthesizer {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Synthesizer{
		llm:         llm,
		topK:        opts.TopK,
		opts:        opts.Completion,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
}

// SynthesizeOne retrieves context for subq and asks for a cited answer. The
// returned sources come from the retrieved chunks, not from the answer text.
func (s *Synthesizer) SynthesizeOne(ctx context.Context, subq string, retriever Retriever) (string, []string, error) {
	chunks, err := retriever.Query(ctx, subq, s.topK)
	if err != nil {
		return "", nil, fmt.Errorf("retrieval failed: %w", err)
	}

	contents := make([]string, len(chunks))
	sources := make([]string, 0, len(chunks))
	for i, c := range chunks {
		contents[i] = c.Content
		sources = append(sources, c.SourceID)
	}

	answer, err := s.llm.Complete(ctx, fmt.Sprintf(answerPrompt, subq, strings.Join(contents, "\n\n")), s.opts)
	if err != nil {
		return "", nil, fmt.Errorf("synthesis call failed: %w", err)
	}
	return answer, mergeSources(sources), nil
}

// SynthesizeAll answers every sub-question. answers[i] always belongs to
// subqs[i]; a failed sub-question gets a placeholder answer.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, subqs []string, retriever Retriever) ([]string, []string) {
	answers := make([]string, len(subqs))
	perQuestion := make([][]string, len(subqs))

	var eg errgroup.Group
	eg.SetLimit(s.concurrency)
	for i, subq := range subqs {
		eg.Go(func() error {
			answer, sources, err := s.SynthesizeOne(ctx, subq, retriever)
			if err != nil {
				s.logger.Warn("Synthesis failed", "subquestion", subq, "error", err)
				answers[i] = failedAnswer
				return nil
			}
			answers[i] = answer
			perQuestion[i] = sources
			return nil
		})
	}
	_ = eg.Wait()

	return answers, mergeSources(perQuestion...)
}

// Summarize writes a heading-free executive summary paragraph.
func (s *Synthesizer) Summarize(ctx context.Context, subqs, answers []string) string {
	if len(subqs) == 0 {
		return emptySummary
	}

	findings := make([]string, 0, len(subqs))
	for i, sq := range subqs {
		ans := ""
		if i < len(answers) {
			ans = answers[i]
		}
		findings = append(findings, fmt.Sprintf("Sub-question: %s\nAnswer:\n%s", sq, ans))
	}

	summary, err := s.llm.Complete(ctx, fmt.Sprintf(summaryPrompt, strings.Join(findings, "\n\n")), s.opts)
	if err != nil {
		s.logger.Warn("Executive summary failed", "error", err)
		return failedSummary
	}
	return strings.TrimSpace(summary)
}
