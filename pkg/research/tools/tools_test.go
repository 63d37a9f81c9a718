package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rthallapally/AI-Research-Agent/pkg/research"
)

var (
	_ research.Adapter        = (*WebSearch)(nil)
	_ research.Adapter        = (*Arxiv)(nil)
	_ research.DocumentLoader = (*LocalDocuments)(nil)
)

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"collapses whitespace", "  what   is\n\tAI?  ", 100, "what is AI?"},
		{"clamps", "abcdef", 3, "abc"},
		{"clamps runes", "ééééé", 2, "éé"},
		{"default max", strings.Repeat("a", 500), 0, strings.Repeat("a", DefaultMaxQueryChars)},
		{"blank", "   ", 10, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeQuery(tt.in, tt.max))
		})
	}
}

func TestResultURL(t *testing.T) {
	assert.Equal(t, "https://example.com/a?b=1", resultURL("//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa%3Fb%3D1&rut=abc"))
	assert.Equal(t, "https://direct.example/x", resultURL("https://direct.example/x"))
	assert.Empty(t, resultURL("javascript:void(0)"))
	assert.Empty(t, resultURL("//duckduckgo.com/l/?rut=abc"))
}

// newWebFixture serves a search page linking to the given paths on the same server.
func newWebFixture(t *testing.T, pages map[string]string, order []string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/search" {
			var b strings.Builder
			b.WriteString("<html><body>")
			for _, p := range order {
				target := srv.URL + p
				fmt.Fprintf(&b, `<div class="result"><a class="result__a" href="//duckduckgo.com/l/?uddg=%s&rut=x">t</a></div>`, url.QueryEscape(target))
			}
			b.WriteString("</body></html>")
			_, _ = w.Write([]byte(b.String()))
			return
		}
		body, ok := pages[r.URL.Path]
		if !ok {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSearchFetch(t *testing.T) {
	pages := map[string]string{
		"/one":             "<html><p>First paragraph.</p><div>ignored</div><p>Second.</p></html>",
		"/ZhiHu.com/block": "<p>should not be fetched</p>",
		"/two":             "<p>Another page.</p>",
		"/three":           "<p>Over the cap.</p>",
	}
	srv := newWebFixture(t, pages, []string{"/one", "/ZhiHu.com/block", "/broken", "/two", "/three"})

	web := NewWebSearch(WebOptions{
		SearchURL: srv.URL + "/search",
		Timeout:   2 * time.Second,
		Denylist:  []string{"zhihu.com"},
	})

	got := web.Fetch(context.Background(), "ai  diagnostics", 3)
	require.Len(t, got, 2, "denylisted skipped, broken page dropped, cap of 3 applied before fetching")
	assert.Equal(t, research.EvidenceRecord{Content: "First paragraph.\nSecond.", SourceID: srv.URL + "/one"}, got[0])
	assert.Equal(t, srv.URL+"/two", got[1].SourceID)
}

func TestWebSearchDenylistIsCaseInsensitive(t *testing.T) {
	web := NewWebSearch(WebOptions{Denylist: []string{"ScienceDirect.com"}})
	assert.True(t, web.Denied("https://www.SCIENCEDIRECT.com/article"))
	assert.False(t, web.Denied("https://example.com"))
}

func TestWebSearchProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	web := NewWebSearch(WebOptions{SearchURL: srv.URL})
	assert.Empty(t, web.Fetch(context.Background(), "q", 2))
	assert.Empty(t, web.Fetch(context.Background(), "   ", 2))
}

const arxivFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2401.00001v1</id>
    <title>Deep Learning
      for Diagnostics</title>
    <summary>  We study   models. </summary>
    <published>2024-01-01T00:00:00Z</published>
    <link href="http://arxiv.org/pdf/2401.00001v1" type="application/pdf"/>
  </entry>
  <entry>
    <title>No Id Paper</title>
    <summary>Abstract.</summary>
    <link href="http://arxiv.org/pdf/2401.00002v1" type="application/pdf"/>
  </entry>
  <entry>
    <title>Bare</title>
    <summary>Nothing else.</summary>
  </entry>
</feed>`

func TestArxivFetch(t *testing.T) {
	var gotQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("search_query"))
		assert.Equal(t, "3", r.URL.Query().Get("max_results"))
		_, _ = w.Write([]byte(arxivFeed))
	}))
	defer srv.Close()

	a := NewArxiv(ArxivOptions{BaseURL: srv.URL, MaxQueryChars: 10})
	got := a.Fetch(context.Background(), "machine   learning in medicine", 3)

	require.Len(t, got, 3)
	assert.Equal(t, "all:machine le", gotQuery.Load())
	assert.Equal(t, "http://arxiv.org/abs/2401.00001v1", got[0].SourceID)
	assert.Equal(t, "Title: Deep Learning for Diagnostics\nPublished: 2024-01-01T00:00:00Z\nSummary: We study models.", got[0].Content)
	assert.Equal(t, "http://arxiv.org/pdf/2401.00002v1", got[1].SourceID)
	assert.Equal(t, "arxiv.org", got[2].SourceID)
}

func TestArxivProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	assert.Empty(t, NewArxiv(ArxivOptions{BaseURL: srv.URL}).Fetch(context.Background(), "q", 3))

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<feed><entry>"))
	}))
	defer bad.Close()
	assert.Empty(t, NewArxiv(ArxivOptions{BaseURL: bad.URL}).Fetch(context.Background(), "q", 3))
}

func TestArxivTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	a := NewArxiv(ArxivOptions{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	assert.Empty(t, a.Fetch(context.Background(), "q", 3))
}

func TestLocalDocumentsMissingDirectory(t *testing.T) {
	docs := NewLocalDocuments(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Empty(t, docs.Load(context.Background()))

	records, err := ExtractPDF(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestLocalDocumentsSkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a pdf"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.PDF"), []byte("garbage"), 0o644))

	docs := NewLocalDocuments(dir, nil)
	assert.Empty(t, docs.Load(context.Background()))

	_, err := ExtractPDF(context.Background(), filepath.Join(dir, "broken.PDF"))
	assert.Error(t, err)
}
