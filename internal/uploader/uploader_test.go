package uploader

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytput/ytput/internal/history"
	"github.com/ytput/ytput/internal/tube"
)

type fakeService struct {
	insertID    string
	insertErr   error
	insertCalls int

	deletedIDs []string
	deleteErr  error

	foundID       string
	findErr       error
	findPublishAt string
}

func (f *fakeService) Insert(
	_ context.Context, _ tube.Upload, _ *os.File, size int64, progress tube.ProgressFunc,
) (string, error) {
	f.insertCalls++

	if progress != nil {
		progress(size/2, size)
		progress(size, size)
	}

	return f.insertID, f.insertErr
}

func (f *fakeService) Delete(_ context.Context, videoID string) error {
	f.deletedIDs = append(f.deletedIDs, videoID)
	return f.deleteErr
}

func (f *fakeService) FindRecentUpload(_ context.Context, _, _, publishAt string) (string, error) {
	f.findPublishAt = publishAt
	return f.foundID, f.findErr
}

type finishRecord struct {
	status  string
	videoID string
	errMsg  string
}

type fakeRecorder struct {
	beginCalls  int
	lastBegin   history.Entry
	progressMax int64
	finishes    []finishRecord
}

func (f *fakeRecorder) Begin(e history.Entry) (int64, error) {
	f.beginCalls++
	f.lastBegin = e

	return 42, nil
}

func (f *fakeRecorder) Progress(_, uploaded int64) error {
	if uploaded > f.progressMax {
		f.progressMax = uploaded
	}

	return nil
}

func (f *fakeRecorder) Finish(_ int64, status, videoID, errMsg string) error {
	f.finishes = append(f.finishes, finishRecord{status, videoID, errMsg})
	return nil
}

func alwaysYes(string) (bool, error) { return true, nil }
func alwaysNo(string) (bool, error)  { return false, nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tempVideo(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0o644))

	return path
}

func validRequest(path string) Request {
	return Request{
		Path:       path,
		Title:      "Test Clip",
		CategoryID: "24",
		Privacy:    PrivacyPrivate,
	}
}

func TestRequestValidate(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	path := tempVideo(t)

	tests := []struct {
		name    string
		mutate  func(r *Request)
		wantErr string
	}{
		{"valid", func(r *Request) {}, ""},
		{"missing path", func(r *Request) { r.Path = "" }, "no video file given"},
		{"nonexistent file", func(r *Request) { r.Path = "/nope/missing.mp4" }, "video file"},
		{"missing title", func(r *Request) { r.Title = "" }, "title is required"},
		{"whitespace title", func(r *Request) { r.Title = "   " }, "title is required"},
		{"missing category", func(r *Request) { r.CategoryID = "" }, "category is required"},
		{"invalid privacy", func(r *Request) { r.Privacy = "secret" }, "invalid privacy"},
		{"scheduled without time", func(r *Request) { r.Privacy = PrivacyScheduled }, "needs a publish time"},
		{
			"scheduled in the past",
			func(r *Request) {
				r.Privacy = PrivacyScheduled
				r.PublishAt = now.Add(-time.Hour)
			},
			"in the past",
		},
		{
			"publish time without scheduled",
			func(r *Request) { r.PublishAt = now.Add(time.Hour) },
			"only applies to scheduled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(path)
			tt.mutate(&req)

			_, err := req.Validate(now)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestRequestValidate_DirectoryIsNotAVideo(t *testing.T) {
	req := validRequest(t.TempDir())

	_, err := req.Validate(time.Now())
	assert.ErrorContains(t, err, "not a regular file")
}

func TestRequestValidate_TitleLength(t *testing.T) {
	now := time.Now()

	req := validRequest(tempVideo(t))

	req.Title = ""
	for range 101 {
		req.Title += "ä" // multibyte, counted as one character
	}

	_, err := req.Validate(now)
	assert.ErrorContains(t, err, "101 characters")

	req.Title = req.Title[:len("ä")*100]
	_, err = req.Validate(now)
	assert.NoError(t, err)
}

func TestRequestValidate_ExtensionWarning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.xyz")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	req := validRequest(path)

	warnings, err := req.Validate(time.Now())
	assert.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], ".xyz")
}

func TestUploadSuccess(t *testing.T) {
	svc := &fakeService{insertID: "vid123"}
	rec := &fakeRecorder{}
	u := New(svc, rec, alwaysNo, testLogger())

	var lastUploaded, lastTotal int64

	res, err := u.Upload(context.Background(), validRequest(tempVideo(t)), func(uploaded, total int64) {
		lastUploaded, lastTotal = uploaded, total
	})
	require.NoError(t, err)

	assert.Equal(t, "vid123", res.VideoID)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid123", res.WatchURL)
	assert.Equal(t, "https://studio.youtube.com/video/vid123/edit", res.StudioURL)

	assert.Equal(t, lastTotal, lastUploaded)
	assert.Equal(t, lastUploaded, rec.progressMax)

	assert.Equal(t, 1, rec.beginCalls)
	assert.Equal(t, "Test Clip", rec.lastBegin.Title)
	assert.Equal(t, PrivacyPrivate, rec.lastBegin.Privacy)
	require.Len(t, rec.finishes, 1)
	assert.Equal(t, finishRecord{"completed", "vid123", ""}, rec.finishes[0])
}

func TestUploadPublicDeclined(t *testing.T) {
	svc := &fakeService{insertID: "vid123"}
	rec := &fakeRecorder{}
	u := New(svc, rec, alwaysNo, testLogger())

	req := validRequest(tempVideo(t))
	req.Privacy = PrivacyPublic

	_, err := u.Upload(context.Background(), req, nil)
	assert.ErrorIs(t, err, ErrPublicDeclined)
	assert.Zero(t, svc.insertCalls)
	assert.Zero(t, rec.beginCalls)
}

func TestUploadPublicConfirmed(t *testing.T) {
	svc := &fakeService{insertID: "vid123"}
	u := New(svc, &fakeRecorder{}, alwaysYes, testLogger())

	req := validRequest(tempVideo(t))
	req.Privacy = PrivacyPublic

	res, err := u.Upload(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, "vid123", res.VideoID)
}

func TestUploadPrivateSkipsConfirmation(t *testing.T) {
	confirmCalled := false
	confirm := func(string) (bool, error) {
		confirmCalled = true
		return false, nil
	}

	svc := &fakeService{insertID: "vid123"}
	u := New(svc, &fakeRecorder{}, confirm, testLogger())

	_, err := u.Upload(context.Background(), validRequest(tempVideo(t)), nil)
	require.NoError(t, err)
	assert.False(t, confirmCalled)
}

func TestUploadFailure(t *testing.T) {
	svc := &fakeService{insertErr: errors.New("boom")}
	rec := &fakeRecorder{}
	u := New(svc, rec, alwaysNo, testLogger())

	_, err := u.Upload(context.Background(), validRequest(tempVideo(t)), nil)
	assert.ErrorContains(t, err, "boom")

	require.Len(t, rec.finishes, 1)
	assert.Equal(t, "failed", rec.finishes[0].status)
	assert.Equal(t, "boom", rec.finishes[0].errMsg)
	assert.Empty(t, svc.deletedIDs)
}

func TestUploadCanceledCleansUpViaSearch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &fakeService{insertErr: context.Canceled, foundID: "partial9"}
	rec := &fakeRecorder{}
	u := New(svc, rec, alwaysNo, testLogger())

	_, err := u.Upload(ctx, validRequest(tempVideo(t)), nil)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, []string{"partial9"}, svc.deletedIDs)
	assert.Empty(t, svc.findPublishAt)
	require.Len(t, rec.finishes, 1)
	assert.Equal(t, "canceled", rec.finishes[0].status)
}

func TestUploadCanceledScheduledSearchesByPublishTime(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &fakeService{insertErr: context.Canceled, foundID: "partial9"}
	u := New(svc, &fakeRecorder{}, alwaysNo, testLogger())
	u.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	loc := time.FixedZone("CEST", 2*3600)
	req := validRequest(tempVideo(t))
	req.Privacy = PrivacyScheduled
	req.PublishAt = time.Date(2026, 7, 1, 19, 30, 0, 0, loc)

	_, err := u.Upload(ctx, req, nil)
	assert.ErrorIs(t, err, context.Canceled)

	// The search carries the exact timestamp the upload was submitted with.
	assert.Equal(t, "2026-07-01T17:30:00.000Z", svc.findPublishAt)
	assert.Equal(t, []string{"partial9"}, svc.deletedIDs)
}

func TestUploadCanceledNothingToCleanUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &fakeService{insertErr: context.Canceled}
	u := New(svc, &fakeRecorder{}, alwaysNo, testLogger())

	_, err := u.Upload(ctx, validRequest(tempVideo(t)), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, svc.deletedIDs)
}

func TestBuildUploadScheduled(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)
	req := Request{
		Title:      "Later",
		CategoryID: "24",
		Privacy:    PrivacyScheduled,
		PublishAt:  time.Date(2026, 7, 1, 19, 30, 0, 0, loc),
	}

	up := buildUpload(req)
	assert.Equal(t, PrivacyPrivate, up.Privacy)
	assert.Equal(t, "2026-07-01T17:30:00.000Z", up.PublishAt)
}

func TestBuildUploadImmediate(t *testing.T) {
	up := buildUpload(Request{Title: "Now", Privacy: PrivacyUnlisted})
	assert.Equal(t, PrivacyUnlisted, up.Privacy)
	assert.Empty(t, up.PublishAt)
}

func TestTracker(t *testing.T) {
	clock := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(func() time.Time { return clock })

	snap := tr.Update(0, 1000)
	assert.Zero(t, snap.Percent)
	assert.Zero(t, snap.Speed)

	clock = clock.Add(10 * time.Second)

	snap = tr.Update(500, 1000)
	assert.InDelta(t, 50.0, snap.Percent, 0.01)
	assert.InDelta(t, 50.0, snap.Speed, 0.01)
	assert.Equal(t, 10*time.Second, snap.ETA)

	clock = clock.Add(10 * time.Second)

	snap = tr.Update(1000, 1000)
	assert.InDelta(t, 100.0, snap.Percent, 0.01)
	assert.Zero(t, snap.ETA)
}
