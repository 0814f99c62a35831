package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/scipunch/echofeed/fetcher/types"
)

const maxPhotoSize = 20 * 1024 * 1024

// extractMedia downloads the photo attached to msg, if any. Failures are
// logged and reported as a captioned attachment without a local path.
func extractMedia(ctx context.Context, client *telegram.Client, msg *tg.Message, name, dir string) []types.MediaAttachment {
	if msg.Media == nil || dir == "" {
		return nil
	}

	media, ok := msg.Media.(*tg.MessageMediaPhoto)
	if !ok {
		return nil
	}
	photoClass, ok := media.GetPhoto()
	if !ok {
		return nil
	}
	photo, ok := photoClass.(*tg.Photo)
	if !ok {
		return nil
	}

	attachment, err := downloadPhoto(ctx, client, photo, name, dir)
	if err != nil {
		slog.Warn("failed to download photo", "error", err, "message_id", msg.ID)
		return []types.MediaAttachment{{Type: "photo", Caption: "photo unavailable"}}
	}
	return []types.MediaAttachment{attachment}
}

// downloadPhoto stores the largest size of photo as dir/photo_<name>_<id>.jpg
func downloadPhoto(ctx context.Context, client *telegram.Client, photo *tg.Photo, name, dir string) (types.MediaAttachment, error) {
	attachment := types.MediaAttachment{Type: "photo"}

	var (
		best      string
		maxPixels int
	)
	for _, sizeClass := range photo.Sizes {
		switch size := sizeClass.(type) {
		case *tg.PhotoSize:
			if px := size.W * size.H; px > maxPixels {
				maxPixels, best = px, size.Type
				attachment.Width, attachment.Height = size.W, size.H
			}
		case *tg.PhotoSizeProgressive:
			if px := size.W * size.H; px > maxPixels {
				maxPixels, best = px, size.Type
				attachment.Width, attachment.Height = size.W, size.H
			}
		}
	}
	if best == "" {
		return attachment, fmt.Errorf("no suitable photo size found")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return attachment, fmt.Errorf("failed to create media directory: %w", err)
	}
	localPath := filepath.Join(dir, fmt.Sprintf("photo_%s_%d.jpg", name, photo.ID))

	// Already downloaded on a previous fetch
	if _, err := os.Stat(localPath); err == nil {
		attachment.LocalPath = localPath
		return attachment, nil
	}

	file, err := os.Create(localPath)
	if err != nil {
		return attachment, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	location := &tg.InputPhotoFileLocation{
		ID:            photo.ID,
		AccessHash:    photo.AccessHash,
		FileReference: photo.FileReference,
		ThumbSize:     best,
	}
	if _, err := downloader.NewDownloader().Download(client.API(), location).Stream(ctx, file); err != nil {
		os.Remove(localPath)
		return attachment, fmt.Errorf("failed to download photo: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		os.Remove(localPath)
		return attachment, fmt.Errorf("failed to stat downloaded file: %w", err)
	}
	if info.Size() > maxPhotoSize {
		os.Remove(localPath)
		return attachment, fmt.Errorf("photo size (%d bytes) exceeds limit (%d bytes)", info.Size(), maxPhotoSize)
	}

	attachment.LocalPath = localPath
	return attachment, nil
}
