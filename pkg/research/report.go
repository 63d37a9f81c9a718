package research

import (
	"fmt"
	"sort"
	"strings"
)

// AssembleReport renders the final markdown report. It makes no model calls.
func AssembleReport(s Synthesized) string {
	var b strings.Builder
	b.WriteString("# Final Report\n\n")

	b.WriteString("## Executive Summary\n")
	b.WriteString(strings.TrimSpace(s.ExecutiveSummary))
	b.WriteString("\n\n")

	b.WriteString("## Findings\n")
	for i, subq := range s.Subquestions {
		answer := ""
		if i < len(s.Answers) {
			answer = s.Answers[i]
		}
		fmt.Fprintf(&b, "### %d. %s\n%s\n\n", i+1, subq, answer)
	}

	b.WriteString(RenderCitations(s.Sources))
	b.WriteString("\n")
	return b.String()
}

// RenderCitations formats sources as a sorted, deduplicated references list.
func RenderCitations(sources []string) string {
	unique := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src = strings.TrimSpace(src); src != "" {
			unique[src] = struct{}{}
		}
	}
	if len(unique) == 0 {
		return "No references found."
	}

	sorted := make([]string, 0, len(unique))
	for src := range unique {
		sorted = append(sorted, src)
	}
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString("## References\n")
	for i, src := range sorted {
		fmt.Fprintf(&b, "%d. %s\n", i+1, formatReference(src))
	}
	return b.String()
}

func formatReference(src string) string {
	if !strings.HasPrefix(src, "http") && strings.HasSuffix(strings.ToLower(src), ".pdf") {
		return "[PDF] " + src + "."
	}
	return src + "."
}

// mergeSources returns the distinct non-empty sources in first-seen order.
func mergeSources(groups ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, g := range groups {
		for _, src := range g {
			if src == "" {
				continue
			}
			if _, ok := seen[src]; ok {
				continue
			}
			seen[src] = struct{}{}
			out = append(out, src)
		}
	}
	return out
}
