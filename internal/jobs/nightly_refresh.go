package jobs

import (
	"context"
	"log"
	"time"

	"councildigest/internal/council"
)

// NightlyRefreshJob re-scrapes the council agenda index overnight and
// prewarms cache entries for any newly discovered meetings.
type NightlyRefreshJob struct {
	digest *council.DigestService
}

// NewNightlyRefreshJob creates a new nightly refresh job
func NewNightlyRefreshJob(digest *council.DigestService) *NightlyRefreshJob {
	return &NightlyRefreshJob{digest: digest}
}

// Run refreshes the meeting index and prewarms uncached meetings
func (j *NightlyRefreshJob) Run(ctx context.Context) error {
	log.Println("[REFRESH] Starting nightly index refresh...")
	startTime := time.Now()

	resp, err := j.digest.RefreshIndex(ctx)
	if err != nil {
		log.Printf("[REFRESH] Index refresh failed: %v", err)
		return err
	}
	log.Printf("[REFRESH] Index refreshed: %d meetings known", resp.MeetingsCount)

	prewarm, err := j.digest.PrewarmAll(ctx)
	if err != nil {
		log.Printf("[REFRESH] Prewarm failed: %v", err)
		return err
	}
	for code, reason := range prewarm.Failures {
		log.Printf("[REFRESH] Prewarm failure for %s: %s", code, reason)
	}

	duration := time.Since(startTime)
	log.Printf("[REFRESH] Nightly refresh complete: %d prewarmed, %d skipped in %v",
		prewarm.Prewarmed, prewarm.Skipped, duration)

	return nil
}

// GetNextRunTime returns when the job should run next (daily at 3 AM UTC)
func (j *NightlyRefreshJob) GetNextRunTime() time.Time {
	now := time.Now().UTC()

	// Schedule for 3 AM UTC, after the council site's own overnight updates
	nextRun := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, time.UTC)

	// If we've passed 3 AM today, schedule for tomorrow
	if now.After(nextRun) {
		nextRun = nextRun.Add(24 * time.Hour)
	}

	return nextRun
}
