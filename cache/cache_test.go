package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scipunch/echofeed/fetcher/types"
	"github.com/scipunch/echofeed/parser"
	"github.com/scipunch/echofeed/parser/telegram"
	"github.com/scipunch/echofeed/parser/web"
)

func TestNewCache(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	// Verify database file was created
	if _, err := os.Stat(cachePath); os.IsNotExist(err) {
		t.Error("Cache database file was not created")
	}
}

func TestParserCache_SetAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	url := "https://example.com/article"
	parserType := "web"
	output := []byte(`{"parser_type":"web","data":{"HTML":"<html>test</html>"}}`)

	// Test Set
	err = cache.SetParserOutput(url, parserType, output)
	if err != nil {
		t.Fatalf("SetParserOutput failed: %v", err)
	}

	// Test Get
	retrieved, found, err := cache.GetParserOutput(url, parserType)
	if err != nil {
		t.Fatalf("GetParserOutput failed: %v", err)
	}
	if !found {
		t.Error("Expected cache hit, got miss")
	}
	if string(retrieved) != string(output) {
		t.Errorf("Retrieved data mismatch: got %s, want %s", retrieved, output)
	}
}

func TestParserCache_Miss(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	// Try to get non-existent entry
	_, found, err := cache.GetParserOutput("https://nonexistent.com", "web")
	if err != nil {
		t.Fatalf("GetParserOutput failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss, got hit")
	}
}

func TestParserCache_TypeMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	url := "https://t.me/channel/7"
	output := []byte(`{"parser_type":"telegram","data":{}}`)

	// Store with telegram parser type
	err = cache.SetParserOutput(url, "telegram", output)
	if err != nil {
		t.Fatalf("SetParserOutput failed: %v", err)
	}

	// Try to retrieve with different parser type
	_, found, err := cache.GetParserOutput(url, "web")
	if err != nil {
		t.Fatalf("GetParserOutput failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss due to parser type mismatch, got hit")
	}
}

func TestAgentCache_SetAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	url := "https://example.com/article"
	parserType := "web"
	agentPipeline := []string{"summary"}
	output := "This is a summarized article content."

	// Test Set
	err = cache.SetAgentOutput(url, parserType, agentPipeline, output)
	if err != nil {
		t.Fatalf("SetAgentOutput failed: %v", err)
	}

	// Test Get
	retrieved, found, err := cache.GetAgentOutput(url, parserType, agentPipeline)
	if err != nil {
		t.Fatalf("GetAgentOutput failed: %v", err)
	}
	if !found {
		t.Error("Expected cache hit, got miss")
	}
	if retrieved != output {
		t.Errorf("Retrieved data mismatch: got %s, want %s", retrieved, output)
	}
}

func TestAgentCache_PipelineMismatch(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	url := "https://example.com/article"
	parserType := "web"
	pipeline1 := []string{"summary"}
	pipeline2 := []string{"summary", "translate"}
	output := "Cached content"

	// Store with pipeline1
	err = cache.SetAgentOutput(url, parserType, pipeline1, output)
	if err != nil {
		t.Fatalf("SetAgentOutput failed: %v", err)
	}

	// Try to retrieve with pipeline2
	_, found, err := cache.GetAgentOutput(url, parserType, pipeline2)
	if err != nil {
		t.Fatalf("GetAgentOutput failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss due to pipeline mismatch, got hit")
	}
}

func TestAgentCache_PipelineOrdering(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	url := "https://example.com/article"
	parserType := "web"
	pipeline1 := []string{"translate", "summary"}
	pipeline2 := []string{"summary", "translate"}
	output := "Cached content"

	// Store with pipeline1
	err = cache.SetAgentOutput(url, parserType, pipeline1, output)
	if err != nil {
		t.Fatalf("SetAgentOutput failed: %v", err)
	}

	// Try to retrieve with pipeline2 (different order)
	_, found, err := cache.GetAgentOutput(url, parserType, pipeline2)
	if err != nil {
		t.Fatalf("GetAgentOutput failed: %v", err)
	}
	if found {
		t.Error("Expected cache miss due to pipeline order difference, got hit")
	}
}

func TestClear(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	// Add some data
	cache.SetParserOutput("https://example.com/1", "web", []byte("data1"))
	cache.SetParserOutput("https://example.com/2", "telegram", []byte("data2"))
	cache.SetAgentOutput("https://example.com/3", "web", []string{"summary"}, "data3")

	// Verify data exists
	stats, _ := cache.Stats()
	if stats.ParserEntries != 2 {
		t.Errorf("Expected 2 parser entries, got %d", stats.ParserEntries)
	}
	if stats.AgentEntries != 1 {
		t.Errorf("Expected 1 agent entry, got %d", stats.AgentEntries)
	}

	// Clear cache
	err = cache.Clear()
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	// Verify cache is empty
	stats, _ = cache.Stats()
	if stats.ParserEntries != 0 {
		t.Errorf("Expected 0 parser entries after clear, got %d", stats.ParserEntries)
	}
	if stats.AgentEntries != 0 {
		t.Errorf("Expected 0 agent entries after clear, got %d", stats.AgentEntries)
	}
}

func TestStats(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	// Initially empty
	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ParserEntries != 0 || stats.AgentEntries != 0 {
		t.Error("Expected empty cache initially")
	}

	// Add entries
	cache.SetParserOutput("https://example.com/1", "web", []byte("data1"))
	cache.SetParserOutput("https://example.com/2", "web", []byte("data2"))
	cache.SetAgentOutput("https://example.com/1", "web", []string{"summary"}, "output1")

	stats, err = cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.ParserEntries != 2 {
		t.Errorf("Expected 2 parser entries, got %d", stats.ParserEntries)
	}
	if stats.AgentEntries != 1 {
		t.Errorf("Expected 1 agent entry, got %d", stats.AgentEntries)
	}
	if stats.OldestEntry.IsZero() {
		t.Error("Expected OldestEntry to be set")
	}
}

func TestPrune(t *testing.T) {
	cache, err := NewCache(filepath.Join(t.TempDir(), "test_cache.db"))
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	cache.SetFeed("https://example.com/rss", []byte("{}"))
	cache.SetParserOutput("https://example.com/read", "web", []byte("read"))
	cache.SetParserOutput("https://example.com/unread", "web", []byte("unread"))
	cache.SetAgentOutput("https://example.com/read", "web", []string{"summary"}, "teaser")

	// reading an entry keeps it alive
	now = now.Add(20 * 24 * time.Hour)
	if _, found, _ := cache.GetParserOutput("https://example.com/read", "web"); !found {
		t.Fatal("Expected parser entry to be found")
	}
	if _, found, _ := cache.GetAgentOutput("https://example.com/read", "web", []string{"summary"}); !found {
		t.Fatal("Expected agent entry to be found")
	}

	now = now.Add(20 * 24 * time.Hour)
	removed, err := cache.Prune(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 removed entries (feed + unread parser output), got %d", removed)
	}

	stats, _ := cache.Stats()
	if stats.FeedEntries != 0 || stats.ParserEntries != 1 || stats.AgentEntries != 1 {
		t.Errorf("Unexpected stats after prune: %+v", stats)
	}
}

func TestUpdateExistingEntry(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	url := "https://example.com/article"
	parserType := "web"
	output1 := []byte("original data")
	output2 := []byte("updated data")

	// Store initial data
	cache.SetParserOutput(url, parserType, output1)

	// Update with new data
	cache.SetParserOutput(url, parserType, output2)

	// Retrieve and verify we get the updated data
	retrieved, found, _ := cache.GetParserOutput(url, parserType)
	if !found {
		t.Fatal("Expected cache hit")
	}
	if string(retrieved) != string(output2) {
		t.Errorf("Expected updated data, got %s", retrieved)
	}
}

func TestFeedCache_TTL(t *testing.T) {
	tmpDir := t.TempDir()
	cachePath := filepath.Join(tmpDir, "test_cache.db")

	cache, err := NewCache(cachePath)
	if err != nil {
		t.Fatalf("NewCache failed: %v", err)
	}
	defer cache.Close()

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	url := "https://example.com/rss"
	if err := cache.SetFeed(url, []byte(`{"Title":"feed"}`)); err != nil {
		t.Fatalf("SetFeed failed: %v", err)
	}

	now = now.Add(5 * time.Minute)
	data, found, err := cache.GetFeed(url, 10*time.Minute)
	if err != nil {
		t.Fatalf("GetFeed failed: %v", err)
	}
	if !found {
		t.Fatal("Expected fresh entry to be found")
	}
	if string(data) != `{"Title":"feed"}` {
		t.Errorf("Retrieved data mismatch: got %s", data)
	}

	now = now.Add(10 * time.Minute)
	if _, found, _ := cache.GetFeed(url, 10*time.Minute); found {
		t.Error("Expected expired entry to be a miss")
	}
	if _, found, _ := cache.GetFeed(url, 0); !found {
		t.Error("Expected zero max age to ignore expiry")
	}

	stats, err := cache.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.FeedEntries != 1 {
		t.Errorf("Expected 1 feed entry, got %d", stats.FeedEntries)
	}
}

func TestFeedSerialization(t *testing.T) {
	published := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	feed := types.Feed{
		Title: "World",
		Items: []types.FeedItem{
			{Title: "Headline", Link: "https://example.com/a", Published: published, ImageURL: "https://img.example/a.jpg"},
		},
	}

	data, err := SerializeFeed(feed)
	if err != nil {
		t.Fatalf("SerializeFeed failed: %v", err)
	}
	got, err := DeserializeFeed(data)
	if err != nil {
		t.Fatalf("DeserializeFeed failed: %v", err)
	}
	if len(got.Items) != 1 || !got.Items[0].Published.Equal(published) || got.Items[0].ImageURL != feed.Items[0].ImageURL {
		t.Errorf("Unexpected feed after decode: %+v", got)
	}

	if _, err := DeserializeFeed([]byte("not json")); err == nil {
		t.Error("Expected error for corrupt feed data")
	}
}

func TestParserResponseSerialization(t *testing.T) {
	resp := web.Response{Title: "T", Markdown: "body"}

	data, err := SerializeParserResponse(parser.Web, resp)
	if err != nil {
		t.Fatalf("SerializeParserResponse failed: %v", err)
	}
	got, err := DeserializeParserResponse(parser.Web, data)
	if err != nil {
		t.Fatalf("DeserializeParserResponse failed: %v", err)
	}
	if got.String() != resp.String() {
		t.Errorf("got %q, want %q", got.String(), resp.String())
	}

	if _, err := DeserializeParserResponse("pdf", data); err == nil {
		t.Error("Expected parser type mismatch error")
	}
	if _, err := SerializeParserResponse("pdf", resp); err == nil {
		t.Error("Expected unknown parser type error")
	}
	if _, err := SerializeParserResponse(parser.Telegram, resp); err == nil {
		t.Error("Expected response type mismatch error")
	}

	tg := telegram.Response{Text: "post text"}
	data, err = SerializeParserResponse(parser.Telegram, tg)
	if err != nil {
		t.Fatalf("SerializeParserResponse failed: %v", err)
	}
	got, err = DeserializeParserResponse(parser.Telegram, data)
	if err != nil {
		t.Fatalf("DeserializeParserResponse failed: %v", err)
	}
	if got.String() != "post text" {
		t.Errorf("got %q, want %q", got.String(), "post text")
	}
}
