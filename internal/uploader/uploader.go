// Package uploader orchestrates a video upload end to end: metadata
// validation, the public-privacy confirmation gate, the API transfer with
// progress reporting, history recording, and cleanup of partial uploads
// after a cancel.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ytput/ytput/internal/history"
	"github.com/ytput/ytput/internal/tube"
)

// publishAtFormat is the timestamp format the API expects for scheduled
// publication, always in UTC with millisecond precision.
const publishAtFormat = "2006-01-02T15:04:05.000Z"

// cleanupTimeout bounds the partial-upload cleanup after a cancel. The
// original context is already dead at that point, so cleanup runs on its
// own deadline.
const cleanupTimeout = 30 * time.Second

// ErrPublicDeclined is returned when the user refuses the public-upload
// confirmation. The upload never starts.
var ErrPublicDeclined = errors.New("uploader: public upload declined")

// Service is the API surface the orchestrator needs. *tube.Client
// implements it.
type Service interface {
	Insert(ctx context.Context, up tube.Upload, media *os.File, size int64, progress tube.ProgressFunc) (string, error)
	Delete(ctx context.Context, videoID string) error
	FindRecentUpload(ctx context.Context, title, description, publishAt string) (string, error)
}

// Recorder persists upload history. *history.Store implements it.
type Recorder interface {
	Begin(e history.Entry) (int64, error)
	Progress(id, uploaded int64) error
	Finish(id int64, status, videoID, errMsg string) error
}

// Confirmer asks the user a yes/no question before an irreversible step.
// A non-interactive run should return false: public uploads must never
// slip through unattended.
type Confirmer func(prompt string) (bool, error)

// Result describes a finished upload.
type Result struct {
	VideoID   string
	WatchURL  string
	StudioURL string
	Size      int64
	Duration  time.Duration
	Warnings  []string
}

// Uploader wires the upload pipeline together.
type Uploader struct {
	svc     Service
	rec     Recorder
	confirm Confirmer
	logger  *slog.Logger
	now     func() time.Time
}

// New builds an Uploader. confirm must not be nil; pass a confirmer that
// always returns false for non-interactive use.
func New(svc Service, rec Recorder, confirm Confirmer, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	return &Uploader{
		svc:     svc,
		rec:     rec,
		confirm: confirm,
		logger:  logger,
		now:     time.Now,
	}
}

// Upload runs the full pipeline for one request. The progress callback may
// be nil. On cancellation it deletes any partially created video before
// returning the context error.
func (u *Uploader) Upload(ctx context.Context, req Request, progress tube.ProgressFunc) (*Result, error) {
	warnings, err := req.Validate(u.now())
	if err != nil {
		return nil, fmt.Errorf("uploader: invalid request: %w", err)
	}

	for _, w := range warnings {
		u.logger.Warn(w, slog.String("path", req.Path))
	}

	if req.Privacy == PrivacyPublic {
		ok, confirmErr := u.confirm(
			fmt.Sprintf("Upload %q as PUBLIC? It will be visible to everyone immediately.", req.Title))
		if confirmErr != nil {
			return nil, fmt.Errorf("uploader: confirmation failed: %w", confirmErr)
		}

		if !ok {
			return nil, ErrPublicDeclined
		}
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return nil, fmt.Errorf("uploader: opening video: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("uploader: stat video: %w", err)
	}

	up := buildUpload(req)

	histID, err := u.rec.Begin(history.Entry{
		Path:        req.Path,
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		CategoryID:  req.CategoryID,
		Privacy:     req.Privacy,
		Size:        info.Size(),
	})
	if err != nil {
		return nil, fmt.Errorf("uploader: recording upload start: %w", err)
	}

	started := u.now()

	videoID, err := u.svc.Insert(ctx, up, f, info.Size(), func(uploaded, total int64) {
		if recErr := u.rec.Progress(histID, uploaded); recErr != nil {
			u.logger.Warn("recording progress failed", slog.String("error", recErr.Error()))
		}

		if progress != nil {
			progress(uploaded, total)
		}
	})
	if err != nil {
		if ctx.Err() != nil {
			u.cleanupCanceled(req, videoID)
			u.finish(histID, history.StatusCanceled, "", ctx.Err().Error())

			return nil, fmt.Errorf("uploader: canceled: %w", ctx.Err())
		}

		u.finish(histID, history.StatusFailed, "", err.Error())

		return nil, fmt.Errorf("uploader: upload failed: %w", err)
	}

	u.finish(histID, history.StatusCompleted, videoID, "")

	res := &Result{
		VideoID:   videoID,
		WatchURL:  "https://www.youtube.com/watch?v=" + videoID,
		StudioURL: "https://studio.youtube.com/video/" + videoID + "/edit",
		Size:      info.Size(),
		Duration:  u.now().Sub(started),
		Warnings:  warnings,
	}

	u.logger.Info("upload complete",
		slog.String("video_id", videoID),
		slog.String("title", req.Title),
		slog.Duration("duration", res.Duration),
	)

	return res, nil
}

// buildUpload translates a request into the wire form: scheduled becomes
// private plus a publishAt timestamp.
func buildUpload(req Request) tube.Upload {
	up := tube.Upload{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
		CategoryID:  req.CategoryID,
		Privacy:     req.Privacy,
		MadeForKids: req.MadeForKids,
	}

	if req.Privacy == PrivacyScheduled {
		up.Privacy = PrivacyPrivate
		up.PublishAt = req.PublishAt.UTC().Format(publishAtFormat)
	}

	return up
}

// cleanupCanceled deletes the partial video a canceled upload may have
// created server-side. When the insert never returned an ID, the channel's
// recent uploads are searched by metadata. Runs on a fresh context since
// the upload's own context is already canceled.
func (u *Uploader) cleanupCanceled(req Request, videoID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	if videoID == "" {
		// For a scheduled upload, the publish time disambiguates the partial
		// video from earlier uploads with the same title and description.
		var publishAt string
		if req.Privacy == PrivacyScheduled {
			publishAt = req.PublishAt.UTC().Format(publishAtFormat)
		}

		found, err := u.svc.FindRecentUpload(ctx, req.Title, req.Description, publishAt)
		if err != nil {
			u.logger.Warn("searching for partial upload failed", slog.String("error", err.Error()))
			return
		}

		if found == "" {
			u.logger.Info("no partial upload found on channel, nothing to clean up")
			return
		}

		videoID = found
	}

	if err := u.svc.Delete(ctx, videoID); err != nil {
		u.logger.Warn("deleting partial upload failed",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()),
		)

		return
	}

	u.logger.Info("partial upload deleted", slog.String("video_id", videoID))
}

// finish records the terminal history state, logging rather than failing
// when the write itself errors.
func (u *Uploader) finish(id int64, status, videoID, errMsg string) {
	if err := u.rec.Finish(id, status, videoID, errMsg); err != nil {
		u.logger.Warn("recording upload outcome failed",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}
