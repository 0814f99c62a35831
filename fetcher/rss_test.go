package fetcher

import (
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

func TestItemImage(t *testing.T) {
	tests := []struct {
		name string
		item *gofeed.Item
		want string
	}{
		{
			name: "media content image",
			item: &gofeed.Item{Extensions: ext.Extensions{"media": {
				"content": {{Attrs: map[string]string{"url": "https://img/a.jpg", "medium": "image"}}},
			}}},
			want: "https://img/a.jpg",
		},
		{
			name: "media content video skipped for thumbnail",
			item: &gofeed.Item{Extensions: ext.Extensions{"media": {
				"content":   {{Attrs: map[string]string{"url": "https://vid/a.mp4", "type": "video/mp4"}}},
				"thumbnail": {{Attrs: map[string]string{"url": "https://img/thumb.jpg"}}},
			}}},
			want: "https://img/thumb.jpg",
		},
		{
			name: "item image",
			item: &gofeed.Item{Image: &gofeed.Image{URL: "https://img/item.png"}},
			want: "https://img/item.png",
		},
		{
			name: "image enclosure",
			item: &gofeed.Item{Enclosures: []*gofeed.Enclosure{
				{URL: "https://audio/a.mp3", Type: "audio/mpeg"},
				{URL: "https://img/enc.jpg", Type: "image/jpeg"},
			}},
			want: "https://img/enc.jpg",
		},
		{
			name: "nothing",
			item: &gofeed.Item{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := itemImage(tt.item); got != tt.want {
				t.Errorf("itemImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConvertItem_PublishedFallsBackToUpdated(t *testing.T) {
	updated := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	item := convertItem(&gofeed.Item{Title: "t", Link: "https://x", UpdatedParsed: &updated})

	if !item.Published.Equal(updated) {
		t.Errorf("expected published %v, got %v", updated, item.Published)
	}
	if item.Title != "t" || item.Link != "https://x" {
		t.Errorf("unexpected item: %+v", item)
	}
}
