package uploader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// Privacy values accepted on a request. Scheduled is a pseudo-privacy:
// the API has no such status, so it is sent as private plus a publishAt
// timestamp and YouTube flips it to public at that time.
const (
	PrivacyPrivate   = "private"
	PrivacyUnlisted  = "unlisted"
	PrivacyPublic    = "public"
	PrivacyScheduled = "scheduled"
)

// maxTitleLen is YouTube's title limit in characters.
const maxTitleLen = 100

// videoExtensions are the common container formats. An unknown extension is
// a warning, not an error: YouTube accepts more formats than this list and
// rejects bad files server-side anyway.
var videoExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true,
	".webm": true, ".flv": true, ".wmv": true, ".m4v": true,
	".mpg": true, ".mpeg": true, ".3gp": true,
}

// IsVideoFile reports whether a path has a recognized video extension.
func IsVideoFile(path string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(path))]
}

// Request is one video upload with its metadata.
type Request struct {
	Path        string
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string
	PublishAt   time.Time // required when Privacy is scheduled
	MadeForKids bool
}

// Validate checks the request before any network traffic. It returns
// non-fatal warnings alongside a fatal error, so callers can surface
// warnings even when the request is otherwise fine.
func (r *Request) Validate(now time.Time) (warnings []string, err error) {
	var errs []error

	switch {
	case r.Path == "":
		errs = append(errs, errors.New("no video file given"))
	default:
		if info, statErr := os.Stat(r.Path); statErr != nil {
			errs = append(errs, fmt.Errorf("video file: %w", statErr))
		} else if !info.Mode().IsRegular() {
			errs = append(errs, fmt.Errorf("%s is not a regular file", r.Path))
		}

		if ext := strings.ToLower(filepath.Ext(r.Path)); !videoExtensions[ext] {
			warnings = append(warnings,
				fmt.Sprintf("%q is not a recognized video extension, uploading anyway", ext))
		}
	}

	switch {
	case strings.TrimSpace(r.Title) == "":
		errs = append(errs, errors.New("title is required"))
	case utf8.RuneCountInString(r.Title) > maxTitleLen:
		errs = append(errs, fmt.Errorf("title is %d characters, the limit is %d",
			utf8.RuneCountInString(r.Title), maxTitleLen))
	}

	switch r.Privacy {
	case PrivacyPrivate, PrivacyUnlisted, PrivacyPublic:
		if !r.PublishAt.IsZero() {
			errs = append(errs, fmt.Errorf("publish time only applies to scheduled uploads, privacy is %q", r.Privacy))
		}
	case PrivacyScheduled:
		if r.PublishAt.IsZero() {
			errs = append(errs, errors.New("scheduled upload needs a publish time"))
		} else if !r.PublishAt.After(now) {
			errs = append(errs, fmt.Errorf("publish time %s is in the past",
				r.PublishAt.Format(time.RFC3339)))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid privacy %q (private, unlisted, public, scheduled)", r.Privacy))
	}

	if r.CategoryID == "" {
		errs = append(errs, errors.New("category is required"))
	}

	return warnings, errors.Join(errs...)
}
