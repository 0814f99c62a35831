package parser

import (
	"context"
	"fmt"

	"github.com/scipunch/echofeed/fetcher/types"
)

type Type = string

var (
	Web      = Type("web")
	Telegram = Type("telegram")
)

type Parser interface {
	Parse(ctx context.Context, item types.FeedItem) (Response, error)
}

type Response interface {
	fmt.Stringer
}
