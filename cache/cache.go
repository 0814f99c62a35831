// Package cache keeps outlet documents, extracted article text and agent
// summaries in a local sqlite database so repeated pages stay cheap.
package cache

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// tables with the column that tells when an entry was last useful
var tables = []struct{ name, touched string }{
	{"feed_cache", "created_at"},
	{"parser_cache", "accessed_at"},
	{"agent_cache", "accessed_at"},
}

type Cache struct {
	db  *sql.DB
	now func() time.Time
}

type CacheStats struct {
	FeedEntries   int
	ParserEntries int
	AgentEntries  int
	OldestEntry   time.Time
}

// NewCache opens (and creates when missing) the database at dbPath
func NewCache(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	c, err := NewCacheFromDB(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewCacheFromDB applies the schema to an already opened database
func NewCacheFromDB(db *sql.DB) (*Cache, error) {
	// one writer, outlet fetches share the connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}
	return &Cache{db: db, now: time.Now}, nil
}

// GetFeed returns the outlet document stored for url unless it is older than
// maxAge. A zero maxAge never expires. Read errors count as a miss.
func (c *Cache) GetFeed(url string, maxAge time.Duration) ([]byte, bool, error) {
	var data []byte
	var createdAt int64
	err := c.db.QueryRow(
		"SELECT feed_data, created_at FROM feed_cache WHERE url = ?", url,
	).Scan(&data, &createdAt)
	if !c.found(err, "feed", url) {
		return nil, false, nil
	}

	if maxAge > 0 && c.now().Sub(time.Unix(createdAt, 0)) > maxAge {
		slog.Debug("feed cache entry expired", "url", truncate(url, 50), "age", c.now().Sub(time.Unix(createdAt, 0)))
		return nil, false, nil
	}
	return data, true, nil
}

func (c *Cache) SetFeed(url string, data []byte) error {
	return c.write("feed", url,
		"INSERT OR REPLACE INTO feed_cache (url, feed_data, created_at) VALUES (?, ?, ?)",
		url, data, c.now().Unix())
}

// GetParserOutput returns the serialized parser response for url
func (c *Cache) GetParserOutput(url, parserType string) ([]byte, bool, error) {
	var output []byte
	err := c.db.QueryRow(
		"SELECT output_data FROM parser_cache WHERE url = ? AND parser_type = ?",
		url, parserType,
	).Scan(&output)
	if !c.found(err, "parser", url) {
		return nil, false, nil
	}

	c.touch("UPDATE parser_cache SET accessed_at = ? WHERE url = ? AND parser_type = ?", url, parserType)
	return output, true, nil
}

func (c *Cache) SetParserOutput(url, parserType string, output []byte) error {
	now := c.now().Unix()
	return c.write("parser", url, `
		INSERT OR REPLACE INTO parser_cache
		(url, parser_type, output_data, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?)
	`, url, parserType, output, now, now)
}

// GetAgentOutput returns the summary produced by the ordered agent pipeline
// (e.g. ["summary"]) for url. A different order is a different entry.
func (c *Cache) GetAgentOutput(url, parserType string, agentPipeline []string) (string, bool, error) {
	pipeline := strings.Join(agentPipeline, ",")

	var output string
	err := c.db.QueryRow(
		"SELECT output_data FROM agent_cache WHERE url = ? AND parser_type = ? AND agent_pipeline = ?",
		url, parserType, pipeline,
	).Scan(&output)
	if !c.found(err, "agent", url) {
		return "", false, nil
	}

	c.touch("UPDATE agent_cache SET accessed_at = ? WHERE url = ? AND parser_type = ? AND agent_pipeline = ?",
		url, parserType, pipeline)
	return output, true, nil
}

func (c *Cache) SetAgentOutput(url, parserType string, agentPipeline []string, output string) error {
	now := c.now().Unix()
	return c.write("agent", url, `
		INSERT OR REPLACE INTO agent_cache
		(url, parser_type, agent_pipeline, output_data, created_at, accessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, url, parserType, strings.Join(agentPipeline, ","), output, now, now)
}

// Prune deletes feed documents created, and parser or agent outputs last read,
// more than olderThan ago. It returns the number of removed rows.
func (c *Cache) Prune(olderThan time.Duration) (int64, error) {
	cutoff := c.now().Add(-olderThan).Unix()
	var removed int64
	for _, t := range tables {
		res, err := c.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.name, t.touched), cutoff)
		if err != nil {
			return removed, fmt.Errorf("failed to prune %s with %w", t.name, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	return removed, nil
}

// Clear removes all cache entries
func (c *Cache) Clear() error {
	for _, t := range tables {
		if _, err := c.db.Exec("DELETE FROM " + t.name); err != nil {
			return fmt.Errorf("failed to clear %s: %w", t.name, err)
		}
	}
	return nil
}

func (c *Cache) Stats() (CacheStats, error) {
	var stats CacheStats
	counts := []*int{&stats.FeedEntries, &stats.ParserEntries, &stats.AgentEntries}
	for i, t := range tables {
		if err := c.db.QueryRow("SELECT COUNT(*) FROM " + t.name).Scan(counts[i]); err != nil {
			return stats, err
		}
	}

	var oldestUnix sql.NullInt64
	err := c.db.QueryRow(`
		SELECT MIN(created_at) FROM (
			SELECT created_at FROM feed_cache
			UNION ALL
			SELECT created_at FROM parser_cache
			UNION ALL
			SELECT created_at FROM agent_cache
		)
	`).Scan(&oldestUnix)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return stats, err
	}
	if oldestUnix.Valid && oldestUnix.Int64 > 0 {
		stats.OldestEntry = time.Unix(oldestUnix.Int64, 0)
	}
	return stats, nil
}

func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// found reports whether a row was scanned. Errors other than no rows are
// logged and treated as a miss.
func (c *Cache) found(err error, kind, url string) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		slog.Warn(kind+" cache read error", "error", err, "url", truncate(url, 50))
		return false
	}
	return true
}

func (c *Cache) touch(query string, args ...any) {
	_, _ = c.db.Exec(query, append([]any{c.now().Unix()}, args...)...)
}

func (c *Cache) write(kind, url, query string, args ...any) error {
	if _, err := c.db.Exec(query, args...); err != nil {
		slog.Warn(kind+" cache write error", "error", err, "url", truncate(url, 50))
		return err
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
