package local

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/scipunch/echofeed/fetcher/types"
)

const (
	summaryLimit     = 150
	placeholderImage = "https://picsum.photos/seed/%s/600/400"
)

// summary strips markup from an outlet description and cuts it to summaryLimit runes
func (s *Source) summary(description string) string {
	text := html.UnescapeString(s.sanitizer.Sanitize(description))
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) > summaryLimit {
		text = string([]rune(text)[:summaryLimit])
	}
	return text + "..."
}

func publishedDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC1123Z)
}

// imageURL picks the item image: metadata found by the fetcher, then the first
// absolute <img> in the item HTML, then a placeholder seeded by the title
func imageURL(item types.FeedItem) string {
	if item.ImageURL != "" {
		return item.ImageURL
	}
	for _, body := range []string{item.Description, item.Content} {
		if u := firstImage(body); u != "" {
			return u
		}
	}
	sum := md5.Sum([]byte(item.Title))
	return fmt.Sprintf(placeholderImage, hex.EncodeToString(sum[:]))
}

func firstImage(body string) string {
	if !strings.Contains(body, "<img") && !strings.Contains(body, "<IMG") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var found string
	doc.Find("img[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			found = src
			return false
		}
		return true
	})
	return found
}
