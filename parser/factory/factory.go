package factory

import (
	"fmt"
	"net/http"

	"github.com/scipunch/echofeed/parser"
	"github.com/scipunch/echofeed/parser/telegram"
	"github.com/scipunch/echofeed/parser/web"
)

// Init creates one parser per requested type
func Init(parserTypes []parser.Type, client *http.Client) (map[parser.Type]parser.Parser, error) {
	parsers := make(map[parser.Type]parser.Parser)
	for _, pt := range parserTypes {
		if parsers[pt] != nil {
			continue
		}
		switch pt {
		case parser.Web:
			parsers[pt] = web.New(client)
		case parser.Telegram:
			parsers[pt] = telegram.New()
		default:
			return nil, fmt.Errorf("unknown parser type: %s", pt)
		}
	}
	return parsers, nil
}
