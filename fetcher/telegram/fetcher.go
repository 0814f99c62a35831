package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tg"

	"github.com/scipunch/echofeed/fetcher/types"
	tgparser "github.com/scipunch/echofeed/parser/telegram"
)

const defaultMessageLimit = 50

// TelegramFetcher reads public broadcast channels as outlets
type TelegramFetcher struct {
	configDir string
	mediaDir  string
	appID     int
	appHash   string
	phone     string
}

// NewTelegramFetcher creates a Telegram fetcher. Photos are downloaded into mediaDir.
func NewTelegramFetcher(configDir, mediaDir string, appID int, appHash, phone string) *TelegramFetcher {
	return &TelegramFetcher{
		configDir: configDir,
		mediaDir:  mediaDir,
		appID:     appID,
		appHash:   appHash,
		phone:     phone,
	}
}

// Fetch retrieves the latest channel posts, newest first
func (f *TelegramFetcher) Fetch(ctx context.Context, url string) (types.Feed, error) {
	var feed types.Feed

	username, err := parseChannelURL(url)
	if err != nil {
		return feed, fmt.Errorf("invalid channel URL: %w", err)
	}

	err = runWithAuth(ctx, f.configDir, f.appID, f.appHash, f.phone, func(ctx context.Context, client *telegram.Client) error {
		api := client.API()

		resolved, err := api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{
			Username: username,
		})
		if err != nil {
			return fmt.Errorf("failed to resolve channel @%s: %w", username, err)
		}

		var channel *tg.Channel
		for _, chat := range resolved.Chats {
			if ch, ok := chat.(*tg.Channel); ok {
				channel = ch
				break
			}
		}
		if channel == nil {
			return fmt.Errorf("channel @%s not found in resolved peers", username)
		}
		if !channel.Broadcast {
			return fmt.Errorf("@%s is a group, not a broadcast channel", username)
		}

		feed.Title = channel.Title
		feed.Description = fmt.Sprintf("Telegram channel @%s", username)

		history, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer: &tg.InputPeerChannel{
				ChannelID:  channel.ID,
				AccessHash: channel.AccessHash,
			},
			Limit: defaultMessageLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to fetch messages from @%s: %w", username, err)
		}

		var messages []tg.MessageClass
		switch m := history.(type) {
		case *tg.MessagesMessages:
			messages = m.Messages
		case *tg.MessagesMessagesSlice:
			messages = m.Messages
		case *tg.MessagesChannelMessages:
			messages = m.Messages
		case *tg.MessagesMessagesNotModified:
			slog.Warn("messages not modified", "channel", username)
			return nil
		default:
			return fmt.Errorf("unexpected messages type: %T", history)
		}

		feed.Items = make([]types.FeedItem, 0, len(messages))
		for _, msgClass := range messages {
			msg, ok := msgClass.(*tg.Message)
			if !ok || msg.Message == "" {
				continue
			}

			guid := strconv.Itoa(msg.ID)
			item := types.FeedItem{
				Title:       truncateText(firstLine(tgparser.PlainText(msg.Message)), 100),
				Link:        fmt.Sprintf("https://t.me/%s/%d", username, msg.ID),
				Description: msg.Message,
				Published:   time.Unix(int64(msg.Date), 0),
				GUID:        guid,
			}

			item.Media = extractMedia(ctx, client, msg, username+"_"+guid, f.mediaDir)
			for _, m := range item.Media {
				if m.LocalPath != "" {
					item.ImageURL = "file://" + m.LocalPath
					break
				}
			}

			feed.Items = append(feed.Items, item)
		}

		// Outlets list their freshest items first
		slices.SortStableFunc(feed.Items, func(a, b types.FeedItem) int {
			return b.Published.Compare(a.Published)
		})

		slog.Info("fetched telegram channel", "channel", username, "messages", len(feed.Items))
		return nil
	})

	return feed, err
}

// parseChannelURL extracts the channel username from the accepted forms:
// https://t.me/name, t.me/name, @name and name
func parseChannelURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	url = strings.TrimPrefix(url, "t.me/")
	url = strings.TrimPrefix(url, "@")
	url = strings.TrimSuffix(url, "/")

	if url == "" {
		return "", fmt.Errorf("empty channel username")
	}
	if strings.Contains(url, "/") {
		return "", fmt.Errorf("invalid channel URL format: %s", url)
	}
	return url, nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return strings.TrimSpace(text)
}

// truncateText cuts text to maxLen bytes, preferring a word boundary
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	truncated := text[:maxLen]
	if idx := strings.LastIndex(truncated, " "); idx > maxLen/2 {
		truncated = truncated[:idx]
	}
	return strings.ToValidUTF8(truncated, "") + "..."
}
