// Package tools holds the evidence source adapters: web search, arXiv and
// local PDF documents. Adapters never return errors; failures are logged and
// produce no records.
package tools

import (
	"net/http"
	"strings"
	"time"
)

// DefaultMaxQueryChars is the provider-side query limit used when none is configured.
const DefaultMaxQueryChars = 380

const userAgent = "Mozilla/5.0 (compatible; research-agent/1.0)"

// NormalizeQuery collapses whitespace and clamps q to max runes.
func NormalizeQuery(q string, max int) string {
	q = strings.Join(strings.Fields(q), " ")
	if max <= 0 {
		max = DefaultMaxQueryChars
	}
	if r := []rune(q); len(r) > max {
		q = strings.TrimSpace(string(r[:max]))
	}
	return q
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
