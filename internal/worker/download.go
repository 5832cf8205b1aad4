package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"

	"nicoarch/internal/models"
	"nicoarch/internal/niconico"
)

var execCommand = exec.CommandContext

// download stages the thumbnail and the media blob for a freshly archived
// video. The first offered rendition is taken as is; there is no bitrate
// negotiation and no retry.
func (h *TaskHandler) download(ctx context.Context, watch *niconico.WatchData, video models.Video) error {
	thumbURL := watch.Video.Thumbnail.OGP
	if thumbURL == "" {
		thumbURL = watch.Video.Thumbnail.URL
	}
	if err := h.nico.DownloadFile(ctx, thumbURL, h.thumbnailPath(video.ContentID)); err != nil {
		return fmt.Errorf("failed to stage thumbnail: %w", err)
	}

	outputs := h.nico.ListOutputs(watch)
	if len(outputs) == 0 {
		return errors.New("no media outputs offered")
	}
	best := outputs[0]

	// yt-dlp command
	args := []string{
		"-f", best.ID,
		"-o", filepath.Join(h.contentsDir, "video", video.ContentID+".%(ext)s"),
	}
	if session := h.nico.UserSession(); session != "" {
		args = append(args, "--add-header", "Cookie:user_session="+session)
	}
	args = append(args, fmt.Sprintf("https://www.nicovideo.jp/watch/%s", video.WatchID))

	cmd := execCommand(ctx, "yt-dlp", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Printf("failed to execute yt-dlp command: %v, output: %s", err, string(output))
		return fmt.Errorf("failed to download video: %w", err)
	}
	return nil
}

func (h *TaskHandler) iconPath(contentID string) string {
	return filepath.Join(h.contentsDir, "image", "icon", contentID+".jpg")
}

func (h *TaskHandler) thumbnailPath(contentID string) string {
	return filepath.Join(h.contentsDir, "image", "thumbnail", contentID+".jpg")
}
