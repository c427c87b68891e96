package uploader

import "time"

// Snapshot is a point-in-time view of upload progress for rendering.
type Snapshot struct {
	Uploaded int64
	Total    int64
	Percent  float64
	Speed    float64 // bytes per second, averaged over the whole transfer
	ETA      time.Duration
}

// Tracker turns raw (uploaded, total) callbacks into percent, speed and
// ETA. It averages over the full transfer rather than a sliding window:
// chunked uploads report in large bursts, which makes instantaneous rates
// useless.
type Tracker struct {
	now   func() time.Time
	start time.Time
}

// NewTracker builds a tracker. now may be nil, defaulting to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}

	return &Tracker{now: now}
}

// Update records a progress callback and returns the derived snapshot.
func (t *Tracker) Update(uploaded, total int64) Snapshot {
	if t.start.IsZero() {
		t.start = t.now()
	}

	snap := Snapshot{Uploaded: uploaded, Total: total}

	if total > 0 {
		snap.Percent = float64(uploaded) / float64(total) * 100
	}

	elapsed := t.now().Sub(t.start)
	if elapsed > 0 && uploaded > 0 {
		snap.Speed = float64(uploaded) / elapsed.Seconds()

		if remaining := total - uploaded; remaining > 0 && snap.Speed > 0 {
			snap.ETA = time.Duration(float64(remaining)/snap.Speed) * time.Second
		}
	}

	return snap
}
