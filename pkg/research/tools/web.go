package tools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/rthallapally/AI-Research-Agent/pkg/research"
)

const (
	webName          = "Web"
	duckDuckGoURL    = "https://html.duckduckgo.com/html/"
	maxPageBytes     = 2 << 20
	maxPageTextRunes = 20000
)

// WebOptions configures the web adapter.
type WebOptions struct {
	SearchURL     string
	Timeout       time.Duration
	MaxQueryChars int
	Denylist      []string
	Logger        *slog.Logger
}

// WebSearch queries the DuckDuckGo HTML endpoint and extracts paragraph text
// from every result page that is not denylisted.
type WebSearch struct {
	client    *http.Client
	searchURL string
	maxChars  int
	denylist  []string
	logger    *slog.Logger
}

func NewWebSearch(opts WebOptions) *WebSearch {
	if opts.SearchURL == "" {
		opts.SearchURL = duckDuckGoURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	deny := make([]string, 0, len(opts.Denylist))
	for _, d := range opts.Denylist {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			deny = append(deny, d)
		}
	}
	return &WebSearch{
		client:    newHTTPClient(opts.Timeout),
		searchURL: opts.SearchURL,
		maxChars:  opts.MaxQueryChars,
		denylist:  deny,
		logger:    opts.Logger,
	}
}

func (w *WebSearch) Name() string { return webName }

// Fetch searches, then downloads up to maxResults allowed pages concurrently.
// Output order follows the search ranking.
func (w *WebSearch) Fetch(ctx context.Context, query string, maxResults int) []research.EvidenceRecord {
	query = NormalizeQuery(query, w.maxChars)
	if query == "" || maxResults <= 0 {
		return nil
	}

	links, err := w.search(ctx, query)
	if err != nil {
		w.logger.Warn("Web search failed", "source", webName, "query", query, "error", err)
		return nil
	}

	var allowed []string
	for _, link := range links {
		if len(allowed) == maxResults {
			break
		}
		if w.Denied(link) {
			w.logger.Info("Skipped denylisted result", "url", link)
			continue
		}
		allowed = append(allowed, link)
	}

	pages := make([]string, len(allowed))
	var eg errgroup.Group
	for i, link := range allowed {
		eg.Go(func() error {
			text, err := w.page(ctx, link)
			if err != nil {
				w.logger.Warn("Page fetch failed", "source", webName, "url", link, "error", err)
				return nil
			}
			pages[i] = text
			return nil
		})
	}
	_ = eg.Wait()

	records := make([]research.EvidenceRecord, 0, len(allowed))
	for i, link := range allowed {
		if strings.TrimSpace(pages[i]) == "" {
			continue
		}
		records = append(records, research.EvidenceRecord{Content: pages[i], SourceID: link})
	}
	return records
}

// Denied reports whether link contains a denylisted domain, ignoring case.
func (w *WebSearch) Denied(link string) bool {
	lower := strings.ToLower(link)
	for _, d := range w.denylist {
		if strings.Contains(lower, d) {
			return true
		}
	}
	return false
}

func (w *WebSearch) search(ctx context.Context, query string) ([]string, error) {
	doc, err := w.get(ctx, w.searchURL+"?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a.result__a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		link := resultURL(href)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links, nil
}

func (w *WebSearch) page(ctx context.Context, link string) (string, error) {
	doc, err := w.get(ctx, link)
	if err != nil {
		return "", err
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	text := strings.Join(paragraphs, "\n")
	if r := []rune(text); len(r) > maxPageTextRunes {
		text = string(r[:maxPageTextRunes])
	}
	return text, nil
}

func (w *WebSearch) get(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// resultURL unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...).
func resultURL(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		target := u.Query().Get("uddg")
		if target == "" {
			return ""
		}
		u, err = url.Parse(target)
		if err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}
