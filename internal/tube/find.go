package tube

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// findPageSize bounds the recent-upload search used for cancel cleanup.
const findPageSize = 10

// descMatchPrefixLen is how much of the description must match. Search
// results truncate long descriptions, so only the prefix is comparable.
const descMatchPrefixLen = 100

// FindRecentUpload locates a just-created video on the channel by exact
// title and description prefix. For scheduled uploads, publishAt carries the
// expected publish timestamp and candidates are verified against their
// status before being accepted; pass "" for immediate uploads. Used after a
// canceled upload when the API never returned a video ID: the partial video
// may still have been created server-side and needs deleting. Returns ""
// when no match is found.
func (c *Client) FindRecentUpload(ctx context.Context, title, description, publishAt string) (string, error) {
	resp, err := c.svc.Search.List([]string{"snippet"}).
		ForMine(true).Type("video").Order("date").MaxResults(findPageSize).
		Context(ctx).Do()
	if err != nil {
		return "", classifyErr(err)
	}

	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}

		if !matchesUpload(title, description, item.Snippet.Title, item.Snippet.Description) {
			continue
		}

		if publishAt != "" {
			ok, verifyErr := c.publishTimeMatches(ctx, item.Id.VideoId, publishAt)
			if verifyErr != nil {
				return "", verifyErr
			}

			if !ok {
				c.logger.Info("candidate metadata matched but publish time differs, skipping",
					slog.String("video_id", item.Id.VideoId),
				)

				continue
			}
		}

		c.logger.Info("matched partial upload by metadata",
			slog.String("video_id", item.Id.VideoId),
		)

		return item.Id.VideoId, nil
	}

	return "", nil
}

// publishTimeMatches fetches a candidate's status and compares its publishAt
// with the expected timestamp.
func (c *Client) publishTimeMatches(ctx context.Context, videoID, publishAt string) (bool, error) {
	resp, err := c.svc.Videos.List([]string{"status"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return false, classifyErr(err)
	}

	if len(resp.Items) == 0 || resp.Items[0].Status == nil {
		return false, nil
	}

	return samePublishTime(publishAt, resp.Items[0].Status.PublishAt), nil
}

// samePublishTime compares two RFC3339 timestamps as instants. The upload
// sends millisecond precision while the API may echo a different
// sub-second form, so string equality is only the unparseable fallback.
func samePublishTime(want, got string) bool {
	w, errW := time.Parse(time.RFC3339, want)
	g, errG := time.Parse(time.RFC3339, got)

	if errW != nil || errG != nil {
		return want == got
	}

	return w.Equal(g)
}

// matchesUpload reports whether a search result matches the uploaded
// metadata: the title must match exactly, and when a description was set,
// the result's description must start with its first hundred characters.
func matchesUpload(title, description, gotTitle, gotDescription string) bool {
	if gotTitle != title {
		return false
	}

	if description == "" {
		return true
	}

	prefix := description
	if len(prefix) > descMatchPrefixLen {
		prefix = prefix[:descMatchPrefixLen]
	}

	return strings.HasPrefix(gotDescription, prefix)
}
