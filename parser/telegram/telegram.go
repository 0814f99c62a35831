package telegram

import (
	"context"
	"regexp"
	"strings"

	"github.com/scipunch/echofeed/fetcher/types"
	"github.com/scipunch/echofeed/parser"
)

var (
	codeBlockRe  = regexp.MustCompile("```([^`]+)```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	boldRe       = regexp.MustCompile(`\*\*([^\*]+)\*\*`)
	italicRe     = regexp.MustCompile(`__([^_]+)__`)
	strikeRe     = regexp.MustCompile(`~~([^~]+)~~`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\(([^\)]+)\)`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Parser turns a Telegram post into plain text for the agents
type Parser struct{}

func New() Parser {
	return Parser{}
}

// Response is the plain text of a post
type Response struct {
	Text string `json:"text"`
}

func (r Response) String() string {
	return r.Text
}

// Parse never touches the network, the post text is already in
// item.Description. Photo captions are appended after the text.
func (p Parser) Parse(ctx context.Context, item types.FeedItem) (parser.Response, error) {
	var b strings.Builder
	if text := PlainText(item.Description); text != "" {
		b.WriteString(text)
	}
	for _, media := range item.Media {
		if media.Type != "photo" || media.Caption == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[photo: ")
		b.WriteString(strings.TrimSpace(media.Caption))
		b.WriteString("]")
	}
	return Response{Text: b.String()}, nil
}

// PlainText strips Telegram markdown. Links keep both text and target.
//   - **bold**, __italic__, ~~strike~~
//   - `code` and ```pre```
//   - [text](url)
func PlainText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = codeBlockRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = strikeRe.ReplaceAllString(text, "$1")
	text = linkRe.ReplaceAllString(text, "$1 ($2)")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
