package cache

import (
	"encoding/json"
	"fmt"

	"github.com/scipunch/echofeed/fetcher/types"
	"github.com/scipunch/echofeed/parser"
	"github.com/scipunch/echofeed/parser/telegram"
	"github.com/scipunch/echofeed/parser/web"
)

// CachedResponse wraps parser responses for serialization
type CachedResponse struct {
	ParserType string          `json:"parser_type"`
	Data       json.RawMessage `json:"data"`
}

// SerializeParserResponse converts parser.Response to JSON bytes
func SerializeParserResponse(parserType string, resp parser.Response) ([]byte, error) {
	var data []byte
	var err error

	switch parserType {
	case parser.Web:
		webResp, ok := resp.(web.Response)
		if !ok {
			return nil, fmt.Errorf("expected web.Response, got %T", resp)
		}
		data, err = json.Marshal(webResp)

	case parser.Telegram:
		tgResp, ok := resp.(telegram.Response)
		if !ok {
			return nil, fmt.Errorf("expected telegram.Response, got %T", resp)
		}
		data, err = json.Marshal(tgResp)

	default:
		return nil, fmt.Errorf("unknown parser type: %s", parserType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to marshal parser response: %w", err)
	}

	cached := CachedResponse{
		ParserType: parserType,
		Data:       data,
	}

	return json.Marshal(cached)
}

// DeserializeParserResponse converts JSON bytes back to parser.Response
func DeserializeParserResponse(parserType string, data []byte) (parser.Response, error) {
	var cached CachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached response: %w", err)
	}

	if cached.ParserType != parserType {
		return nil, fmt.Errorf("parser type mismatch: cached=%s, expected=%s", cached.ParserType, parserType)
	}

	switch parserType {
	case parser.Web:
		var resp web.Response
		if err := json.Unmarshal(cached.Data, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal web response: %w", err)
		}
		return resp, nil

	case parser.Telegram:
		var resp telegram.Response
		if err := json.Unmarshal(cached.Data, &resp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal telegram response: %w", err)
		}
		return resp, nil

	default:
		return nil, fmt.Errorf("unknown parser type: %s", parserType)
	}
}

// SerializeFeed encodes an outlet document for the feed cache
func SerializeFeed(feed types.Feed) ([]byte, error) {
	data, err := json.Marshal(feed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feed: %w", err)
	}
	return data, nil
}

// DeserializeFeed decodes an outlet document stored by SerializeFeed
func DeserializeFeed(data []byte) (types.Feed, error) {
	var feed types.Feed
	if err := json.Unmarshal(data, &feed); err != nil {
		return feed, fmt.Errorf("failed to unmarshal feed: %w", err)
	}
	return feed, nil
}
