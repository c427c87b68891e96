package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * sizeMB, "5.0 MB"},
		{int64(2.5 * float64(sizeGB)), "2.5 GB"},
		{3 * sizeTB, "3.0 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.bytes))
	}
}

func TestFormatSpeed(t *testing.T) {
	assert.Equal(t, "2.0 MB/s", formatSpeed(2*sizeMB))
	assert.Equal(t, "100 B/s", formatSpeed(100))
}

func TestFormatETA(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-time.Second, "0s"},
		{45 * time.Second, "45s"},
		{3*time.Minute + 20*time.Second, "3m20s"},
		{time.Hour + 5*time.Minute, "1h05m"},
		{2*time.Hour + 59*time.Minute + 59*time.Second, "2h59m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatETA(tt.d))
	}
}

func TestFormatTimeSameYear(t *testing.T) {
	ts := time.Date(time.Now().Year(), 3, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5 14:30", formatTime(ts))
}

func TestFormatTimeOtherYear(t *testing.T) {
	ts := time.Date(2019, 3, 5, 14, 30, 0, 0, time.Local)
	assert.Equal(t, "Mar  5  2019", formatTime(ts))
}

func TestPrintTable(t *testing.T) {
	var sb strings.Builder

	printTable(&sb, []string{"ID", "TITLE"}, [][]string{
		{"1", "Short"},
		{"42", "A longer title"},
	})

	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	assert.Len(t, lines, 3)

	// Columns align on the widest cell.
	assert.Equal(t, "ID  TITLE", lines[0])
	assert.Equal(t, "1   Short", lines[1])
	assert.Equal(t, "42  A longer title", lines[2])
}

func TestTitleFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/videos/My Vacation.mp4", "My Vacation"},
		{"clip.MOV", "clip"},
		{"/a/b/no_extension", "no_extension"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, titleFromPath(tt.path))
	}
}

func TestTitleFromPathNormalizesUnicode(t *testing.T) {
	// Decomposed "e" + combining acute normalizes to the composed form.
	assert.Equal(t, "caf\u00e9", titleFromPath("cafe\u0301.mp4"))
}
