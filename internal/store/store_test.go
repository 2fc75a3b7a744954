package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"councildigest/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(meetingCode string, motions []models.Motion) *models.CacheEntry {
	return &models.CacheEntry{
		MeetingCode: meetingCode,
		Detail: models.MeetingDetail{
			MeetingCode: meetingCode,
			Title:       "City Council " + meetingCode,
			Date:        "2024-02-14",
			Motions:     motions,
		},
		BuiltAt: time.Now().UTC().Truncate(time.Second),
	}
}

// TestGetCacheEntryMissing verifies an unknown meeting reads as nil,
// not as an error.
func TestGetCacheEntryMissing(t *testing.T) {
	s := setupTestStore(t)

	entry, err := s.GetCacheEntry(context.Background(), "2024.CC15")
	if err != nil {
		t.Fatalf("Missing entry should not error: %v", err)
	}
	if entry != nil {
		t.Errorf("Expected nil entry, got %+v", entry)
	}
}

// TestPutAndGetCacheEntry tests the round trip of a cache entry.
func TestPutAndGetCacheEntry(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	motions := []models.Motion{{
		ID: 1, Title: "Housing Pilot", Summary: "Approved.",
		Status: models.StatusPassed, Category: models.CategoryHousing,
		ImpactTags: []string{"housing"},
	}}
	if err := s.PutCacheEntry(ctx, testEntry("2024.CC15", motions)); err != nil {
		t.Fatalf("PutCacheEntry failed: %v", err)
	}

	entry, err := s.GetCacheEntry(ctx, "2024.CC15")
	if err != nil {
		t.Fatalf("GetCacheEntry failed: %v", err)
	}
	if entry == nil {
		t.Fatal("Expected stored entry, got nil")
	}
	if len(entry.Detail.Motions) != 1 || entry.Detail.Motions[0].Title != "Housing Pilot" {
		t.Errorf("Unexpected detail: %+v", entry.Detail)
	}
}

// TestPutCacheEntryEmptyMotions verifies a zero-motion entry persists
// as a real row, distinguishable from no row at all.
func TestPutCacheEntryEmptyMotions(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutCacheEntry(ctx, testEntry("2024.CC16", []models.Motion{})); err != nil {
		t.Fatalf("PutCacheEntry failed: %v", err)
	}

	entry, err := s.GetCacheEntry(ctx, "2024.CC16")
	if err != nil {
		t.Fatalf("GetCacheEntry failed: %v", err)
	}
	if entry == nil {
		t.Fatal("Empty-motion entry must still exist as a row")
	}
	if len(entry.Detail.Motions) != 0 {
		t.Errorf("Expected 0 motions, got %d", len(entry.Detail.Motions))
	}
}

// TestPutCacheEntryReplaces verifies a rewrite replaces the whole detail.
func TestPutCacheEntryReplaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if err := s.PutCacheEntry(ctx, testEntry("2024.CC15", []models.Motion{{ID: 1, Title: "Old"}})); err != nil {
		t.Fatalf("First put failed: %v", err)
	}
	if err := s.PutCacheEntry(ctx, testEntry("2024.CC15", []models.Motion{{ID: 1, Title: "New"}, {ID: 2, Title: "Second"}})); err != nil {
		t.Fatalf("Second put failed: %v", err)
	}

	entry, err := s.GetCacheEntry(ctx, "2024.CC15")
	if err != nil {
		t.Fatalf("GetCacheEntry failed: %v", err)
	}
	if len(entry.Detail.Motions) != 2 || entry.Detail.Motions[0].Title != "New" {
		t.Errorf("Expected replaced detail, got %+v", entry.Detail.Motions)
	}
}

// TestListCacheEntries verifies listing returns every row.
func TestListCacheEntries(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, code := range []string{"2024.CC15", "2024.CC16", "2024.CC17"} {
		if err := s.PutCacheEntry(ctx, testEntry(code, []models.Motion{})); err != nil {
			t.Fatalf("PutCacheEntry %s failed: %v", code, err)
		}
	}

	entries, err := s.ListCacheEntries(ctx)
	if err != nil {
		t.Fatalf("ListCacheEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(entries))
	}
}

// TestAppendReportAndSummary tests report persistence and aggregation.
func TestAppendReportAndSummary(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	reports := []models.Report{
		{ID: "r1", MeetingCode: "2024.CC15", MotionID: 1, Reason: models.ReasonIncorrectInformation, CreatedAt: time.Now().UTC()},
		{ID: "r2", MeetingCode: "2024.CC15", MotionID: 1, Reason: models.ReasonIncorrectInformation, Comment: "wrong amount", CreatedAt: time.Now().UTC()},
		{ID: "r3", MeetingCode: "2024.CC15", MotionID: 2, Reason: models.ReasonInappropriate, CreatedAt: time.Now().UTC()},
		{ID: "r4", MeetingCode: "2024.CC16", MotionID: 1, Reason: models.ReasonIncorrectInformation, CreatedAt: time.Now().UTC()},
	}
	for _, r := range reports {
		if err := s.AppendReport(ctx, r); err != nil {
			t.Fatalf("AppendReport %s failed: %v", r.ID, err)
		}
	}

	// Scoped to one meeting: only incorrect_information counts.
	summary, err := s.ReportSummary(ctx, "2024.CC15")
	if err != nil {
		t.Fatalf("ReportSummary failed: %v", err)
	}
	if len(summary) != 1 {
		t.Fatalf("Expected 1 summarized motion, got %d", len(summary))
	}
	if summary[0].MotionID != 1 || summary[0].IncorrectReports != 2 {
		t.Errorf("Unexpected summary: %+v", summary[0])
	}

	// Unscoped: both meetings appear.
	all, err := s.ReportSummary(ctx, "")
	if err != nil {
		t.Fatalf("Unscoped ReportSummary failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 summarized motions across meetings, got %d", len(all))
	}
}

// TestReportSummaryEmpty verifies the summary of no reports is an empty
// slice, not nil.
func TestReportSummaryEmpty(t *testing.T) {
	s := setupTestStore(t)

	summary, err := s.ReportSummary(context.Background(), "2024.CC15")
	if err != nil {
		t.Fatalf("ReportSummary failed: %v", err)
	}
	if summary == nil || len(summary) != 0 {
		t.Errorf("Expected empty non-nil summary, got %v", summary)
	}
}
