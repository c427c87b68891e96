package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ytput/ytput/internal/categories"
	"github.com/ytput/ytput/internal/history"
	"github.com/ytput/ytput/internal/tube"
	"github.com/ytput/ytput/internal/uploader"
	"github.com/ytput/ytput/internal/watch"
)

// Watch command flags.
var (
	flagWatchDir     string
	flagWatchPrivacy string
	flagWatchYes     bool
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and upload new videos",
		Long: `Watch a directory and upload every new video file once it has finished
being written. Files already present when the watch starts are skipped.
Metadata comes from the config defaults; the title is the file name.

Public uploads are refused under watch unless --yes is given, since nobody
is there to confirm them.`,
		Args: cobra.NoArgs,
		RunE: runWatch,
	}

	cmd.Flags().StringVar(&flagWatchDir, "dir", "", "directory to watch (default: config watch.dir)")
	cmd.Flags().StringVar(&flagWatchPrivacy, "privacy", "", "privacy for watched uploads (default: config default_privacy)")
	cmd.Flags().BoolVarP(&flagWatchYes, "yes", "y", false, "allow public uploads without confirmation")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	dir := flagWatchDir
	if dir == "" {
		dir = resolvedCfg.Watch.Dir
	}

	if dir == "" {
		return errors.New("no watch directory: pass --dir or set watch.dir in the config")
	}

	privacy := flagWatchPrivacy
	if privacy == "" {
		privacy = resolvedCfg.DefaultPrivacy
	}

	client, err := apiClient(ctx)
	if err != nil {
		return err
	}

	categoryID, err := watchCategoryID(ctx, client)
	if err != nil {
		return err
	}

	store, err := history.Open(resolvedCfg.HistoryPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// Unattended runs must not block on a prompt: without --yes, a public
	// default means every upload is refused, which surfaces immediately.
	up := uploader.New(client, store, newConfirmer(flagWatchYes), logger)

	settle := time.Duration(resolvedCfg.Watch.SettleSeconds) * time.Second

	w, err := watch.New(dir, settle, store, logger)
	if err != nil {
		return err
	}

	handle := func(ctx context.Context, path string) error {
		req := uploader.Request{
			Path:        path,
			Title:       titleFromPath(path),
			Tags:        resolvedCfg.DefaultTags,
			CategoryID:  categoryID,
			Privacy:     privacy,
			MadeForKids: resolvedCfg.MadeForKids,
		}

		if privacy == uploader.PrivacyScheduled {
			slot, err := nextSlot(ctx, client)
			if err != nil {
				return err
			}

			req.PublishAt = slot
		}

		res, err := up.Upload(ctx, req, nil)
		if err != nil {
			return err
		}

		statusf("Uploaded %s -> %s\n", path, res.WatchURL)

		return nil
	}

	statusf("Watching %s (privacy: %s). Press Ctrl-C to stop.\n", dir, privacy)

	return w.Run(ctx, handle)
}

// watchCategoryID resolves the configured default category once, up front,
// so a bad config fails at startup instead of on the first upload.
func watchCategoryID(ctx context.Context, client *tube.Client) (string, error) {
	cache := categories.NewCache(resolvedCfg.CategoryCache)

	cats := cache.Load(resolvedCfg.Region)
	if id, err := categories.Resolve(cats, resolvedCfg.DefaultCategory); err == nil {
		return id, nil
	}

	fetched, err := client.Categories(ctx, resolvedCfg.Region)
	if err != nil {
		return "", fmt.Errorf("resolving category %q: %w", resolvedCfg.DefaultCategory, err)
	}

	return categories.Resolve(fetched, resolvedCfg.DefaultCategory)
}
