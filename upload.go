package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/text/unicode/norm"

	"github.com/ytput/ytput/internal/categories"
	"github.com/ytput/ytput/internal/history"
	"github.com/ytput/ytput/internal/tube"
	"github.com/ytput/ytput/internal/uploader"
)

// Upload command flags.
var (
	flagTitle       string
	flagDescription string
	flagTags        []string
	flagCategory    string
	flagPrivacy     string
	flagPublishAt   string
	flagKids        bool
	flagYes         bool
)

// publishAtInputFormats are the accepted --publish-at layouts, tried in
// order. Layouts without a zone are interpreted as local time.
var publishAtInputFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <video-file>",
		Short: "Upload a video",
		Long: `Upload a video file to the authorized channel.

The title defaults to the file name. Scheduled uploads without an explicit
--publish-at go to the next free daily slot: one day after the latest
already-scheduled video. Use --publish-at next to ask for that explicitly.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().StringVarP(&flagTitle, "title", "t", "", "video title (default: file name)")
	cmd.Flags().StringVarP(&flagDescription, "description", "d", "", "video description")
	cmd.Flags().StringSliceVar(&flagTags, "tags", nil, "comma-separated tags")
	cmd.Flags().StringVarP(&flagCategory, "category", "c", "", "category name or ID")
	cmd.Flags().StringVarP(&flagPrivacy, "privacy", "p", "", "private, unlisted, public, or scheduled")
	cmd.Flags().StringVar(&flagPublishAt, "publish-at", "", "publish time for scheduled uploads (RFC3339, 'YYYY-MM-DD HH:MM' local, or 'next')")
	cmd.Flags().BoolVar(&flagKids, "kids", false, "declare the video as made for kids")
	cmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "skip confirmation prompts")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	client, err := apiClient(ctx)
	if err != nil {
		return err
	}

	req, err := buildRequest(ctx, client, args[0], logger)
	if err != nil {
		return err
	}

	store, err := history.Open(resolvedCfg.HistoryPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	up := uploader.New(client, store, newConfirmer(flagYes), logger)

	progress, finishProgress := newProgressRenderer(req.Path)
	defer finishProgress()

	res, err := up.Upload(ctx, req, progress)
	if err != nil {
		return err
	}

	finishProgress()
	printResult(req, res)

	return nil
}

// buildRequest assembles the upload request from flags and config defaults.
func buildRequest(ctx context.Context, client *tube.Client, path string, logger *slog.Logger) (uploader.Request, error) {
	req := uploader.Request{
		Path:        path,
		Title:       flagTitle,
		Description: flagDescription,
		Tags:        flagTags,
		Privacy:     flagPrivacy,
		MadeForKids: flagKids || resolvedCfg.MadeForKids,
	}

	if req.Title == "" {
		req.Title = titleFromPath(path)
	}

	if len(req.Tags) == 0 {
		req.Tags = resolvedCfg.DefaultTags
	}

	if req.Privacy == "" {
		req.Privacy = resolvedCfg.DefaultPrivacy
	}

	categoryID, err := resolveCategory(ctx, client, logger)
	if err != nil {
		return uploader.Request{}, err
	}

	req.CategoryID = categoryID

	if req.Privacy == uploader.PrivacyScheduled {
		publishAt, err := resolvePublishAt(ctx, client)
		if err != nil {
			return uploader.Request{}, err
		}

		req.PublishAt = publishAt
	}

	return req, nil
}

// titleFromPath derives a title from the file name: extension stripped,
// NFC-normalized so composed and decomposed unicode file names produce the
// same title.
func titleFromPath(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return norm.NFC.String(stem)
}

// resolveCategory maps the --category flag (or the configured default) to
// an API category ID, refreshing the cached table from the API when the
// name is not found locally.
func resolveCategory(ctx context.Context, client *tube.Client, logger *slog.Logger) (string, error) {
	name := flagCategory
	if name == "" {
		name = resolvedCfg.DefaultCategory
	}

	cache := categories.NewCache(resolvedCfg.CategoryCache)

	cats := cache.Load(resolvedCfg.Region)
	if id, err := categories.Resolve(cats, name); err == nil {
		return id, nil
	}

	// Not in the cached table. The channel's region may expose categories
	// the fallback table lacks, so refresh once before giving up.
	fetched, err := client.Categories(ctx, resolvedCfg.Region)
	if err != nil {
		return "", fmt.Errorf("unknown category %q and refreshing the category list failed: %w", name, err)
	}

	if storeErr := cache.Store(resolvedCfg.Region, fetched); storeErr != nil {
		logger.Warn("caching categories failed", "error", storeErr)
	}

	return categories.Resolve(fetched, name)
}

// resolvePublishAt turns the --publish-at flag into a concrete time. An
// empty flag or the literal "next" picks the next free daily slot.
func resolvePublishAt(ctx context.Context, client *tube.Client) (time.Time, error) {
	if flagPublishAt == "" || flagPublishAt == "next" {
		return nextSlot(ctx, client)
	}

	for _, layout := range publishAtInputFormats {
		if t, err := time.ParseInLocation(layout, flagPublishAt, time.Local); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("cannot parse publish time %q", flagPublishAt)
}

// nextSlot queries the channel's scheduled videos and picks one day after
// the latest, falling back to 24 hours from now.
func nextSlot(ctx context.Context, client *tube.Client) (time.Time, error) {
	scheduled, err := client.ScheduledVideos(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("finding next publish slot: %w", err)
	}

	fallback := time.Now().Add(24 * time.Hour).Truncate(time.Minute)
	slot := tube.NextSlot(scheduled, fallback)

	statusf("Scheduling for %s.\n", slot.Local().Format("Mon Jan 2 15:04"))

	return slot, nil
}

// newProgressRenderer returns the progress callback for the transfer and a
// finisher to call when it ends. Interactive terminals get a progress bar;
// everything else gets occasional status lines.
func newProgressRenderer(path string) (tube.ProgressFunc, func()) {
	if flagQuiet || flagJSON {
		return nil, func() {}
	}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		var bar *pb.ProgressBar

		progress := func(uploaded, total int64) {
			if bar == nil {
				bar = pb.New64(total)
				bar.Set(pb.Bytes, true)
				bar.SetWriter(os.Stderr)
				bar.Start()
			}

			bar.SetCurrent(uploaded)
		}

		finish := func() {
			if bar != nil {
				bar.SetCurrent(bar.Total())
				bar.Finish()
				bar = nil
			}
		}

		return progress, finish
	}

	// Non-interactive: one line per 10% step, with speed and ETA.
	tracker := uploader.NewTracker(nil)
	lastStep := -1

	progress := func(uploaded, total int64) {
		snap := tracker.Update(uploaded, total)

		step := int(snap.Percent) / 10
		if step == lastStep {
			return
		}

		lastStep = step
		statusf("%s: %3.0f%% (%s / %s, %s, ETA %s)\n",
			filepath.Base(path), snap.Percent,
			formatSize(uploaded), formatSize(total),
			formatSpeed(snap.Speed), formatETA(snap.ETA),
		)
	}

	return progress, func() {}
}

// uploadOutput is the JSON schema for `upload --json`.
type uploadOutput struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"title"`
	Privacy   string `json:"privacy"`
	PublishAt string `json:"publish_at,omitempty"`
	Size      int64  `json:"size"`
	Duration  string `json:"duration"`
	WatchURL  string `json:"watch_url"`
	StudioURL string `json:"studio_url"`
}

func printResult(req uploader.Request, res *uploader.Result) {
	if flagJSON {
		out := uploadOutput{
			VideoID:   res.VideoID,
			Title:     req.Title,
			Privacy:   req.Privacy,
			Size:      res.Size,
			Duration:  res.Duration.Round(time.Second).String(),
			WatchURL:  res.WatchURL,
			StudioURL: res.StudioURL,
		}

		if !req.PublishAt.IsZero() {
			out.PublishAt = req.PublishAt.UTC().Format(time.RFC3339)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			exitOnError(err)
		}

		return
	}

	fmt.Printf("Uploaded %q (%s in %s)\n", req.Title, formatSize(res.Size), res.Duration.Round(time.Second))

	if req.Privacy == uploader.PrivacyScheduled {
		fmt.Printf("Goes public: %s\n", req.PublishAt.Local().Format("Mon Jan 2 15:04"))
	}

	fmt.Printf("Watch:  %s\n", res.WatchURL)
	fmt.Printf("Studio: %s\n", res.StudioURL)
}
