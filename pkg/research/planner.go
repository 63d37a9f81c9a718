package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rthallapally/AI-Research-Agent/pkg/clients"
)

const planPrompt = `Decompose the following research question into 3 to 5 specific, answerable sub-questions:

%s

Return the list in a numbered format like 1. ..., 2. ..., etc.`

// Planner decomposes a research question into sub-questions.
type Planner struct {
	llm    clients.Completer
	opts   clients.CompletionOptions
	logger *slog.Logger
}

func NewPlanner(llm clients.Completer, opts clients.CompletionOptions, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{llm: llm, opts: opts, logger: logger}
}

// Plan asks the model for a numbered list. The result may be empty when the
// model ignores the format.
func (p *Planner) Plan(ctx context.Context, query string) ([]string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "must not be blank"}
	}

	p.logger.Info("Starting planning phase", "query", query)

	text, err := p.llm.Complete(ctx, fmt.Sprintf(planPrompt, query), p.opts)
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}

	subqs := ParseSubquestions(text)
	if len(subqs) == 0 {
		p.logger.Warn("Planner returned no numbered sub-questions")
	}
	p.logger.Info("Generated sub-questions", "count", len(subqs))
	return subqs, nil
}

// ParseSubquestions keeps lines whose first character is a digit and strips
// the "N." marker. Only the response as a whole is trimmed, so indented lines
// are dropped along with blank and unnumbered ones.
func ParseSubquestions(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		if line == "" {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(line); !unicode.IsDigit(r) {
			continue
		}
		if i := strings.Index(line, "."); i >= 0 {
			line = line[i+1:]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
