package tools

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rthallapally/AI-Research-Agent/pkg/research"
)

const (
	arxivName    = "arxiv.org"
	arxivBaseURL = "https://export.arxiv.org/api/query"
)

// ArxivEntry struct to hold arXiv entry data
type ArxivEntry struct {
	ID        string      `xml:"id"`
	Title     string      `xml:"title"`
	Summary   string      `xml:"summary"`
	Published string      `xml:"published"`
	Link      []ArxivLink `xml:"link"`
}

// ArxivLink struct to hold arXiv link data
type ArxivLink struct {
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr"`
}

// ArxivFeed struct to hold the entire arXiv feed
type ArxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entry   []ArxivEntry `xml:"entry"`
}

// ArxivOptions configures the academic adapter.
type ArxivOptions struct {
	BaseURL       string
	Timeout       time.Duration
	MaxQueryChars int
	Logger        *slog.Logger
}

// Arxiv searches the arXiv Atom API.
type Arxiv struct {
	client   *http.Client
	baseURL  string
	maxChars int
	logger   *slog.Logger
}

func NewArxiv(opts ArxivOptions) *Arxiv {
	if opts.BaseURL == "" {
		opts.BaseURL = arxivBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Arxiv{
		client:   newHTTPClient(opts.Timeout),
		baseURL:  opts.BaseURL,
		maxChars: opts.MaxQueryChars,
		logger:   opts.Logger,
	}
}

func (a *Arxiv) Name() string { return arxivName }

// Fetch returns one record per paper: title, publication date and abstract.
func (a *Arxiv) Fetch(ctx context.Context, query string, maxResults int) []research.EvidenceRecord {
	query = NormalizeQuery(query, a.maxChars)
	if query == "" || maxResults <= 0 {
		return nil
	}

	feed, err := a.search(ctx, query, maxResults)
	if err != nil {
		a.logger.Warn("Academic search failed", "source", arxivName, "query", query, "error", err)
		return nil
	}

	records := make([]research.EvidenceRecord, 0, len(feed.Entry))
	for _, entry := range feed.Entry {
		if len(records) == maxResults {
			break
		}
		records = append(records, research.EvidenceRecord{
			Content:  entryContent(entry),
			SourceID: entrySource(entry),
		})
	}
	a.logger.Info("Arxiv search successful", "query", query, "count", len(records))
	return records
}

func (a *Arxiv) search(ctx context.Context, query string, maxResults int) (*ArxivFeed, error) {
	params := url.Values{}
	params.Add("search_query", "all:"+query)
	params.Add("max_results", strconv.Itoa(maxResults))
	params.Add("start", "0")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("API returned non-200 status code: %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	var feed ArxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal XML: %w", err)
	}
	return &feed, nil
}

func entryContent(e ArxivEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n", collapse(e.Title))
	if e.Published != "" {
		fmt.Fprintf(&b, "Published: %s\n", strings.TrimSpace(e.Published))
	}
	fmt.Fprintf(&b, "Summary: %s", collapse(e.Summary))
	return b.String()
}

// entrySource prefers the abstract page, then the PDF link.
func entrySource(e ArxivEntry) string {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id
	}
	for _, link := range e.Link {
		if link.Type == "application/pdf" && link.Href != "" {
			return link.Href
		}
	}
	return arxivName
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
