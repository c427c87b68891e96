package tube

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// DefaultChunkSize is the resumable upload chunk size (4 MiB). The API
// requires a multiple of 256 KiB.
const DefaultChunkSize = 4 * 1024 * 1024

// ProgressFunc receives upload progress as (uploaded, total) bytes.
type ProgressFunc func(uploaded, total int64)

// Upload describes one video to insert. Privacy here is the wire value —
// the orchestrator has already translated "scheduled" into private plus a
// PublishAt timestamp.
type Upload struct {
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
	PublishAt   string // RFC3339 UTC, empty when not scheduled
	MadeForKids bool
}

// Client wraps an authenticated YouTube service.
type Client struct {
	svc       *youtube.Service
	logger    *slog.Logger
	chunkSize int
}

// NewClient builds a YouTube API client from an OAuth2 token source.
// chunkSize of 0 selects DefaultChunkSize.
func NewClient(ctx context.Context, ts oauth2.TokenSource, chunkSize int, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, ts)))
	if err != nil {
		return nil, fmt.Errorf("tube: creating YouTube service: %w", err)
	}

	return &Client{svc: svc, logger: logger, chunkSize: chunkSize}, nil
}

// Insert uploads a video file with resumable chunked media, reporting
// progress through the callback. Returns the new video's ID.
//
// The file size is passed so the progress total is correct from the first
// chunk — the API reports total=0 until the library has probed the reader.
func (c *Client) Insert(
	ctx context.Context, up Upload, media *os.File, size int64, progress ProgressFunc,
) (string, error) {
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       up.Title,
			Description: up.Description,
			CategoryId:  up.CategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           up.Privacy,
			SelfDeclaredMadeForKids: up.MadeForKids,
			PublishAt:               up.PublishAt,
			// MadeForKids=false must still reach the API — it is a COPPA
			// declaration, not an omitted field.
			ForceSendFields: []string{"SelfDeclaredMadeForKids"},
		},
	}

	// The API returns 400 Bad Request for an empty tags array.
	if len(up.Tags) > 0 {
		video.Snippet.Tags = up.Tags
	}

	c.logger.Info("starting video insert",
		slog.String("title", up.Title),
		slog.String("privacy", up.Privacy),
		slog.Int64("size", size),
	)

	call := c.svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.Context(ctx)
	call.Media(media, googleapi.ChunkSize(c.chunkSize))

	if progress != nil {
		call.ProgressUpdater(func(current, total int64) {
			if total == 0 {
				total = size
			}

			progress(current, total)
		})
	}

	resp, err := call.Do()
	if err != nil {
		c.logger.Error("video insert failed", slog.String("error", err.Error()))
		return "", classifyErr(err)
	}

	c.logger.Info("video insert complete", slog.String("video_id", resp.Id))

	return resp.Id, nil
}

// Delete removes a video by ID. Used to clean up a partial upload after the
// user cancels mid-transfer.
func (c *Client) Delete(ctx context.Context, videoID string) error {
	c.logger.Info("deleting video", slog.String("video_id", videoID))

	if err := c.svc.Videos.Delete(videoID).Context(ctx).Do(); err != nil {
		return classifyErr(err)
	}

	return nil
}

// Categories fetches the assignable video categories for a region as a
// title -> ID map.
func (c *Client) Categories(ctx context.Context, region string) (map[string]string, error) {
	resp, err := c.svc.VideoCategories.List([]string{"snippet"}).
		RegionCode(region).Context(ctx).Do()
	if err != nil {
		return nil, classifyErr(err)
	}

	cats := make(map[string]string, len(resp.Items))

	for _, item := range resp.Items {
		if item.Snippet != nil && item.Snippet.Assignable {
			cats[item.Snippet.Title] = item.Id
		}
	}

	c.logger.Debug("fetched categories",
		slog.String("region", region),
		slog.Int("count", len(cats)),
	)

	return cats, nil
}

// ChannelInfo returns the authenticated channel's ID and title.
func (c *Client) ChannelInfo(ctx context.Context) (id, title string, err error) {
	resp, err := c.svc.Channels.List([]string{"snippet"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return "", "", classifyErr(err)
	}

	if len(resp.Items) == 0 {
		return "", "", fmt.Errorf("tube: no channel found for this account")
	}

	ch := resp.Items[0]

	return ch.Id, ch.Snippet.Title, nil
}
