package fetcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/scipunch/echofeed/fetcher/types"
)

// RSSFetcher fetches RSS and Atom feeds using gofeed
type RSSFetcher struct {
	parser *gofeed.Parser
}

// NewRSSFetcher creates a new RSS fetcher
func NewRSSFetcher() *RSSFetcher {
	return &RSSFetcher{
		parser: gofeed.NewParser(),
	}
}

// Fetch retrieves and parses a feed from the given URL
func (f *RSSFetcher) Fetch(ctx context.Context, url string) (types.Feed, error) {
	var feed types.Feed

	gofeedFeed, err := f.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return feed, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	feed.Title = gofeedFeed.Title
	feed.Description = gofeedFeed.Description
	feed.Items = make([]types.FeedItem, 0, len(gofeedFeed.Items))
	for _, item := range gofeedFeed.Items {
		feed.Items = append(feed.Items, convertItem(item))
	}

	return feed, nil
}

func convertItem(item *gofeed.Item) types.FeedItem {
	feedItem := types.FeedItem{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Content:     item.Content,
		GUID:        item.GUID,
		ImageURL:    itemImage(item),
	}

	if item.PublishedParsed != nil {
		feedItem.Published = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		feedItem.Published = *item.UpdatedParsed
	}

	return feedItem
}

// itemImage looks for an image in the item metadata, in order:
// media:content, media:thumbnail, the item image, then image enclosures.
// HTML bodies are not inspected here.
func itemImage(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, content := range media["content"] {
			if strings.HasPrefix(content.Attrs["type"], "image") || content.Attrs["medium"] == "image" {
				if u := content.Attrs["url"]; u != "" {
					return u
				}
			}
		}
		for _, thumb := range media["thumbnail"] {
			if u := thumb.Attrs["url"]; u != "" {
				return u
			}
		}
		// media:group wraps content elements in some feeds
		for _, group := range media["group"] {
			for _, content := range group.Children["content"] {
				if strings.HasPrefix(content.Attrs["type"], "image") || content.Attrs["medium"] == "image" {
					if u := content.Attrs["url"]; u != "" {
						return u
					}
				}
			}
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	return ""
}
