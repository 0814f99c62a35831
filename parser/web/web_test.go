package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scipunch/echofeed/fetcher/types"
)

const paragraph = `The city council met on Tuesday evening to debate the new transit plan, which would add
three bus lines, extend the tram network by twelve kilometres, and rebuild the central station over the
next decade. Supporters said the plan was overdue, while critics questioned the cost, the timeline, and
the impact on local businesses during construction.`

func articlePage() string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Transit plan debated</title></head><body>`)
	b.WriteString(`<nav><a href="/">Home</a><a href="/world">World</a></nav><article><h1>Transit plan debated</h1>`)
	for i := 0; i < 6; i++ {
		b.WriteString("<p>" + paragraph + "</p>")
	}
	b.WriteString(`</article><footer>Copyright</footer></body></html>`)
	return b.String()
}

func TestParse_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(articlePage()))
	}))
	defer srv.Close()

	p := New(srv.Client())
	resp, err := p.Parse(context.Background(), types.FeedItem{Title: "Feed title", Link: srv.URL})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	out := resp.String()
	if !strings.Contains(out, "transit plan") {
		t.Errorf("expected article text in output, got %q", out)
	}
	if !strings.HasPrefix(out, "# ") {
		t.Errorf("expected markdown heading, got %q", out[:min(len(out), 40)])
	}
}

func TestParse_UsesItemContent(t *testing.T) {
	p := New(&http.Client{Transport: failingTransport{t}})
	resp, err := p.Parse(context.Background(), types.FeedItem{
		Link:    "https://example.com/never-fetched",
		Content: articlePage(),
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !strings.Contains(resp.String(), "central station") {
		t.Errorf("expected content from item body, got %q", resp.String())
	}
}

func TestParse_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tests := []struct {
		name string
		item types.FeedItem
	}{
		{"not found", types.FeedItem{Link: srv.URL + "/missing"}},
		{"no link and no content", types.FeedItem{Title: "orphan"}},
	}

	p := New(srv.Client())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.Parse(context.Background(), tt.item); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type failingTransport struct{ t *testing.T }

func (f failingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected request to %s", r.URL)
	return nil, http.ErrHandlerTimeout
}
