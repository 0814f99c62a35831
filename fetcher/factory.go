package fetcher

import (
	"fmt"

	"github.com/scipunch/echofeed/config"
	"github.com/scipunch/echofeed/fetcher/telegram"
	"github.com/scipunch/echofeed/fetcher/types"
)

// GetFetchers creates a map of outlet types to their corresponding fetchers.
// Telegram credentials are only requested when a telegram outlet is enabled.
func GetFetchers(outletTypes []config.OutletType, configDir, mediaDir string) (map[config.OutletType]types.FeedFetcher, error) {
	fetchers := make(map[config.OutletType]types.FeedFetcher)

	for _, ot := range outletTypes {
		// Skip if we already have a fetcher for this type
		if fetchers[ot] != nil {
			continue
		}

		switch ot {
		case config.RSS:
			fetchers[ot] = NewRSSFetcher()
		case config.TelegramChannel:
			creds, err := config.LoadOrPromptTelegramCredentials(config.DefaultCredentialsPath())
			if err != nil {
				return nil, fmt.Errorf("failed to load telegram credentials with %w", err)
			}
			fetchers[ot] = telegram.NewTelegramFetcher(configDir, mediaDir, creds.AppID, creds.AppHash, creds.PhoneNumber)
		default:
			return nil, fmt.Errorf("unknown outlet type: %s", ot)
		}
	}

	return fetchers, nil
}
