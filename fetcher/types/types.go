package types

import (
	"context"
	"time"
)

// Feed represents a collection of items from an outlet
type Feed struct {
	Title       string
	Description string
	Items       []FeedItem
}

// FeedItem represents a single item in an outlet feed
type FeedItem struct {
	Title       string
	Link        string
	Description string // HTML summary as published by the outlet
	Content     string // full HTML body when the outlet provides one
	Published   time.Time
	GUID        string // Unique identifier (GUID for RSS, message ID for Telegram)
	ImageURL    string // best image found in the item metadata, may be empty
	Media       []MediaAttachment
}

// MediaAttachment is a file downloaded alongside an item
type MediaAttachment struct {
	Type      string // "photo"
	LocalPath string
	Caption   string
	Width     int
	Height    int
}

// FeedFetcher is an interface for fetching feeds from different outlets
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (Feed, error)
}
