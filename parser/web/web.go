package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mackee/go-readability"

	"github.com/scipunch/echofeed/fetcher/types"
	"github.com/scipunch/echofeed/parser"
)

// maxBodySize caps downloaded article pages
const maxBodySize = 5 * 1024 * 1024

// Parser extracts the readable part of an article page as markdown
type Parser struct {
	client *http.Client
}

// Response is the extracted article
type Response struct {
	Title    string `json:"title"`
	Byline   string `json:"byline"`
	Markdown string `json:"markdown"`
}

func (r Response) String() string {
	if r.Title == "" {
		return r.Markdown
	}
	return "# " + r.Title + "\n\n" + r.Markdown
}

func New(client *http.Client) Parser {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return Parser{client: client}
}

// Parse uses the full body shipped with the item when there is one,
// otherwise it downloads item.Link
func (p Parser) Parse(ctx context.Context, item types.FeedItem) (parser.Response, error) {
	body := item.Content
	if strings.TrimSpace(body) == "" {
		var err error
		body, err = p.download(ctx, item.Link)
		if err != nil {
			return nil, err
		}
	}

	article, err := readability.Extract(body, readability.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to extract article from %s with %w", item.Link, err)
	}
	if article.Root == nil {
		return nil, fmt.Errorf("no readable content at %s", item.Link)
	}

	resp := Response{
		Title:    article.Title,
		Byline:   article.Byline,
		Markdown: strings.TrimSpace(readability.ToMarkdown(article.Root)),
	}
	if resp.Title == "" {
		resp.Title = item.Title
	}
	return resp, nil
}

func (p Parser) download(ctx context.Context, link string) (string, error) {
	if link == "" {
		return "", fmt.Errorf("item has neither content nor link")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s with %w", link, err)
	}
	req.Header.Set("User-Agent", "echofeed/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s with %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", link, resp.StatusCode)
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read %s with %w", link, err)
	}
	return string(blob), nil
}
