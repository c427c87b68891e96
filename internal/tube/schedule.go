package tube

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// recentUploadsPageSize bounds how far back the scheduled-video scan looks.
// Scheduled videos are always among the newest uploads.
const recentUploadsPageSize = 50

// ScheduledVideo is an uploaded video whose publication is still pending.
type ScheduledVideo struct {
	ID        string
	Title     string
	PublishAt time.Time
}

// ScheduledVideos lists the channel's pending scheduled videos, sorted by
// publish time ascending. The API has no direct "scheduled" filter, so this
// walks the uploads playlist and keeps videos with a publishAt status.
func (c *Client) ScheduledVideos(ctx context.Context) ([]ScheduledVideo, error) {
	uploadsID, err := c.uploadsPlaylistID(ctx)
	if err != nil {
		return nil, err
	}

	videoIDs, err := c.recentUploadIDs(ctx, uploadsID)
	if err != nil {
		return nil, err
	}

	if len(videoIDs) == 0 {
		return nil, nil
	}

	resp, err := c.svc.Videos.List([]string{"status", "snippet"}).
		Id(videoIDs...).Context(ctx).Do()
	if err != nil {
		return nil, classifyErr(err)
	}

	var scheduled []ScheduledVideo

	for _, v := range resp.Items {
		if v.Status == nil || v.Status.PublishAt == "" {
			continue
		}

		publishAt, parseErr := time.Parse(time.RFC3339, v.Status.PublishAt)
		if parseErr != nil {
			c.logger.Warn("skipping video with unparseable publishAt",
				slog.String("video_id", v.Id),
				slog.String("publish_at", v.Status.PublishAt),
			)

			continue
		}

		scheduled = append(scheduled, ScheduledVideo{
			ID:        v.Id,
			Title:     v.Snippet.Title,
			PublishAt: publishAt,
		})
	}

	sort.Slice(scheduled, func(i, j int) bool {
		return scheduled[i].PublishAt.Before(scheduled[j].PublishAt)
	})

	c.logger.Debug("scheduled videos found", slog.Int("count", len(scheduled)))

	return scheduled, nil
}

// uploadsPlaylistID resolves the channel's uploads playlist.
func (c *Client) uploadsPlaylistID(ctx context.Context) (string, error) {
	resp, err := c.svc.Channels.List([]string{"contentDetails"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return "", classifyErr(err)
	}

	if len(resp.Items) == 0 {
		return "", fmt.Errorf("tube: no channel found for this account")
	}

	return resp.Items[0].ContentDetails.RelatedPlaylists.Uploads, nil
}

// recentUploadIDs returns the newest video IDs from the uploads playlist.
func (c *Client) recentUploadIDs(ctx context.Context, playlistID string) ([]string, error) {
	resp, err := c.svc.PlaylistItems.List([]string{"contentDetails"}).
		PlaylistId(playlistID).MaxResults(recentUploadsPageSize).Context(ctx).Do()
	if err != nil {
		return nil, classifyErr(err)
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		ids = append(ids, item.ContentDetails.VideoId)
	}

	return ids, nil
}

// NextSlot computes the publish time for the next upload: one day after the
// latest scheduled video, at the same time of day. With nothing scheduled,
// it falls back to the given default (typically tomorrow at the currently
// selected time).
func NextSlot(scheduled []ScheduledVideo, fallback time.Time) time.Time {
	if len(scheduled) == 0 {
		return fallback
	}

	latest := scheduled[0].PublishAt
	for _, v := range scheduled[1:] {
		if v.PublishAt.After(latest) {
			latest = v.PublishAt
		}
	}

	return latest.Add(24 * time.Hour)
}
