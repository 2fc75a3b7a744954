// Package council owns the meeting cache: the mapping from meeting
// code to extracted motions, and the guarantee that each meeting's
// expensive extraction runs at most once no matter how many requests
// race for it.
package council

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"councildigest/internal/logging"
	"councildigest/internal/models"
	"councildigest/internal/scraper"
)

// Extractor turns raw meeting text into structured motions. The call
// may take tens of seconds; implementations must honor ctx.
type Extractor interface {
	ExtractMotions(ctx context.Context, decisionsText, minutesText string) ([]models.Motion, error)
}

// Scraper produces fresh scraper output on disk and returns the parsed
// index.
type Scraper interface {
	Scrape(ctx context.Context) ([]scraper.ScrapedMeeting, error)
}

// Store is the persistence boundary for cache entries and reports.
type Store interface {
	GetCacheEntry(ctx context.Context, meetingCode string) (*models.CacheEntry, error)
	PutCacheEntry(ctx context.Context, entry *models.CacheEntry) error
	ListCacheEntries(ctx context.Context) ([]models.CacheEntry, error)
	AppendReport(ctx context.Context, report models.Report) error
	ReportSummary(ctx context.Context, meetingCode string) ([]models.MotionReportSummary, error)
}

// DigestService is the meeting cache core. It serves list and detail
// requests, builds missing cache entries on demand, and gates the
// expensive live-scrape operations.
type DigestService struct {
	store           Store
	extractor       Extractor
	scraperSvc      Scraper
	outputDir       string
	allowLiveScrape bool

	// flights deduplicates concurrent builds per meeting code; memCache
	// fronts the SQLite store for already-built details, which never
	// change without an explicit refresh.
	flights  singleflight.Group
	memCache *gocache.Cache
}

// NewDigestService creates the digest service.
func NewDigestService(st Store, ex Extractor, sc Scraper, outputDir string, allowLiveScrape bool) *DigestService {
	return &DigestService{
		store:           st,
		extractor:       ex,
		scraperSvc:      sc,
		outputDir:       outputDir,
		allowLiveScrape: allowLiveScrape,
		memCache:        gocache.New(gocache.NoExpiration, 0),
	}
}

// loadIndex reads the scraper-produced index from disk. A nil result
// means no scraper output exists yet.
func (s *DigestService) loadIndex() []scraper.ScrapedMeeting {
	meetings, _ := scraper.LoadIndex(s.outputDir)
	return meetings
}

// findScraped locates the index entry for a meeting code.
func findScraped(index []scraper.ScrapedMeeting, meetingCode string) *scraper.ScrapedMeeting {
	for i := range index {
		if scraper.DeriveMeetingCode(index[i].MeetingText, i+1) == meetingCode {
			return &index[i]
		}
	}
	return nil
}

// GetMeetingDetail returns the cached detail for a meeting, building
// and persisting it on first access.
//
// For a given code all callers observe a linear history: uncached, then
// exactly one in-flight extraction, then cached with a stable result.
// Concurrent callers for the same code share the single flight;
// different codes never block each other.
func (s *DigestService) GetMeetingDetail(ctx context.Context, meetingCode string) (models.MeetingDetail, error) {
	// Fast path: the detail is immutable once built, so a memory hit
	// needs no revalidation.
	if cached, found := s.memCache.Get(meetingCode); found {
		return cached.(models.MeetingDetail), nil
	}

	if entry, err := s.store.GetCacheEntry(ctx, meetingCode); err != nil {
		return models.MeetingDetail{}, err
	} else if entry != nil {
		s.memCache.Set(meetingCode, entry.Detail, gocache.DefaultExpiration)
		return entry.Detail, nil
	}

	result, err, _ := s.flights.Do(meetingCode, func() (interface{}, error) {
		return s.buildDetail(ctx, meetingCode)
	})
	if err != nil {
		return models.MeetingDetail{}, err
	}
	return result.(models.MeetingDetail), nil
}

// buildDetail is the single-flight critical section for one meeting:
// locate raw text, run extraction once, persist the result.
func (s *DigestService) buildDetail(ctx context.Context, meetingCode string) (models.MeetingDetail, error) {
	// A racing caller may have finished the build between our store
	// check and winning the flight.
	if entry, err := s.store.GetCacheEntry(ctx, meetingCode); err != nil {
		return models.MeetingDetail{}, err
	} else if entry != nil {
		s.memCache.Set(meetingCode, entry.Detail, gocache.DefaultExpiration)
		return entry.Detail, nil
	}

	index := s.loadIndex()
	if index == nil {
		return models.MeetingDetail{}, fmt.Errorf("%w: run the scraper or POST /api/refresh with ALLOW_LIVE_SCRAPE=true; meeting details are built on first open and then cached", ErrSourceUnavailable)
	}

	raw := findScraped(index, meetingCode)
	if raw == nil {
		return models.MeetingDetail{}, fmt.Errorf("%w: %q", ErrMeetingNotFound, meetingCode)
	}

	decisionsText := scraper.ReadDocumentText(raw.DecisionsPath)
	minutesText := scraper.ReadDocumentText(raw.MinutesPath)
	if decisionsText == "" && minutesText == "" {
		return models.MeetingDetail{}, fmt.Errorf("%w: no document text on disk for %q", ErrSourceUnavailable, meetingCode)
	}

	log.Printf("🤖 [DIGEST] Building detail for %s (decisions: %d bytes, minutes: %d bytes)",
		meetingCode, len(decisionsText), len(minutesText))
	startTime := time.Now()

	motions, err := s.extractor.ExtractMotions(ctx, decisionsText, minutesText)
	if err != nil {
		// Nothing is cached on failure so a later request retries
		// instead of serving a poisoned empty result.
		logging.WithMeeting(meetingCode).Error("extraction failed", "error", err)
		return models.MeetingDetail{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	sourceURL := raw.MinutesURL
	if sourceURL == "" {
		sourceURL = raw.MeetingURL
	}

	detail := models.MeetingDetail{
		MeetingCode: meetingCode,
		Title:       raw.MeetingText,
		Date:        scraper.DeriveDate(raw.MeetingText),
		SourceURL:   sourceURL,
		Motions:     motions,
	}

	entry := &models.CacheEntry{
		MeetingCode: meetingCode,
		Detail:      detail,
		BuiltAt:     time.Now().UTC(),
	}
	if err := s.store.PutCacheEntry(ctx, entry); err != nil {
		return models.MeetingDetail{}, err
	}
	s.memCache.Set(meetingCode, detail, gocache.DefaultExpiration)

	log.Printf("✅ [DIGEST] Cached %s: %d motions in %v", meetingCode, len(motions), time.Since(startTime))
	return detail, nil
}

// ListMeetings returns every meeting in the index merged with cache
// metadata. It never blocks on or triggers extraction; a missing index
// yields an empty list.
func (s *DigestService) ListMeetings(ctx context.Context) ([]models.MeetingOverview, error) {
	index := s.loadIndex()
	if index == nil {
		log.Printf("⚠️  [DIGEST] No scraper output on disk; returning empty meeting list. POST /api/refresh (with ALLOW_LIVE_SCRAPE=true) to populate it.")
		return []models.MeetingOverview{}, nil
	}

	entries, err := s.store.ListCacheEntries(ctx)
	if err != nil {
		return nil, err
	}
	cachedByCode := make(map[string]models.CacheEntry, len(entries))
	for _, entry := range entries {
		cachedByCode[entry.MeetingCode] = entry
	}

	overviews := make([]models.MeetingOverview, 0, len(index))
	for i, raw := range index {
		code := scraper.DeriveMeetingCode(raw.MeetingText, i+1)
		overview := models.MeetingOverview{
			MeetingCode: code,
			Title:       raw.MeetingText,
			Date:        scraper.DeriveDate(raw.MeetingText),
			Region:      scraper.DeriveRegion(raw.MeetingText),
			SourceURL:   raw.MeetingURL,
			Topics:      []string{},
		}
		if entry, ok := cachedByCode[code]; ok {
			overview.DetailCached = true
			overview.MotionCount = len(entry.Detail.Motions)
			overview.Topics = distinctCategories(entry.Detail.Motions)
		}
		overviews = append(overviews, overview)
	}

	// Newest meetings first. ISO dates order lexically; "Unknown date"
	// rows sink below them as a side effect, which is fine.
	sort.SliceStable(overviews, func(i, j int) bool {
		return overviews[i].Date > overviews[j].Date
	})
	return overviews, nil
}

// PrewarmAll builds the cache entry for every uncached meeting in the
// index. Each meeting is its own critical section: one failure is
// recorded and the batch moves on.
func (s *DigestService) PrewarmAll(ctx context.Context) (models.PrewarmResponse, error) {
	index := s.loadIndex()
	if index == nil {
		return models.PrewarmResponse{}, fmt.Errorf("%w: run the scraper or refresh from council first", ErrSourceUnavailable)
	}

	resp := models.PrewarmResponse{Failures: map[string]string{}}
	for i, raw := range index {
		code := scraper.DeriveMeetingCode(raw.MeetingText, i+1)

		entry, err := s.store.GetCacheEntry(ctx, code)
		if err != nil {
			resp.Failures[code] = err.Error()
			continue
		}
		if entry != nil {
			resp.Skipped++
			continue
		}

		if _, err := s.GetMeetingDetail(ctx, code); err != nil {
			log.Printf("⚠️  [DIGEST] Prewarm failed for %s: %v", code, err)
			resp.Failures[code] = err.Error()
			continue
		}
		resp.Prewarmed++
	}

	if len(resp.Failures) == 0 {
		resp.Failures = nil
	}
	log.Printf("✅ [DIGEST] Prewarm complete: %d built, %d already cached, %d failed",
		resp.Prewarmed, resp.Skipped, len(resp.Failures))
	return resp, nil
}

// RefreshIndex re-runs the browser scrape to regenerate the on-disk
// index and document blobs. Existing cache entries are never pruned:
// caches are additive, and meetings that disappear upstream keep
// serving their cached detail.
func (s *DigestService) RefreshIndex(ctx context.Context) (models.RefreshResponse, error) {
	if !s.allowLiveScrape {
		return models.RefreshResponse{}, fmt.Errorf("%w: set ALLOW_LIVE_SCRAPE=true to enable", ErrLiveScrapeDisabled)
	}

	meetings, err := s.scraperSvc.Scrape(ctx)
	if err != nil {
		return models.RefreshResponse{}, fmt.Errorf("refresh failed: %w", err)
	}

	log.Printf("✅ [DIGEST] Index refreshed: %d meetings", len(meetings))
	return models.RefreshResponse{MeetingsCount: len(meetings)}, nil
}

// SubmitReport validates and appends one content report.
func (s *DigestService) SubmitReport(ctx context.Context, req models.SubmitReportRequest) error {
	if !models.ValidReportReasons[req.Reason] {
		return fmt.Errorf("%w: reason must be one of: incorrect_information, inappropriate, other", ErrInvalidReport)
	}
	if req.MeetingCode == "" {
		return fmt.Errorf("%w: meeting_code is required", ErrInvalidReport)
	}

	report := models.Report{
		ID:          uuid.NewString(),
		MeetingCode: req.MeetingCode,
		MotionID:    req.MotionID,
		Reason:      req.Reason,
		Comment:     req.Comment,
		CreatedAt:   time.Now().UTC(),
	}
	return s.store.AppendReport(ctx, report)
}

// ReportSummary aggregates incorrect-information report counts per
// motion, optionally restricted to one meeting.
func (s *DigestService) ReportSummary(ctx context.Context, meetingCode string) (models.ReportsSummaryResponse, error) {
	byMotion, err := s.store.ReportSummary(ctx, meetingCode)
	if err != nil {
		return models.ReportsSummaryResponse{}, err
	}
	return models.ReportsSummaryResponse{ByMotion: byMotion}, nil
}

// Stats aggregates decision statistics across every cached meeting.
// Uncached meetings contribute nothing; stats never trigger extraction.
func (s *DigestService) Stats(ctx context.Context) (models.StatsResponse, error) {
	entries, err := s.store.ListCacheEntries(ctx)
	if err != nil {
		return models.StatsResponse{}, err
	}

	// Region and date come from the index row, not the cache entry, so
	// they stay in sync with the current scrape.
	regionByCode := map[string]string{}
	dateByCode := map[string]string{}
	for i, raw := range s.loadIndex() {
		code := scraper.DeriveMeetingCode(raw.MeetingText, i+1)
		regionByCode[code] = scraper.DeriveRegion(raw.MeetingText)
		dateByCode[code] = scraper.DeriveDate(raw.MeetingText)
	}

	byCategory := map[string]int{}
	byRegion := map[string]int{}
	byStatus := map[string]int{}
	byMeeting := map[string]int{}

	for _, entry := range entries {
		if len(entry.Detail.Motions) == 0 {
			continue
		}

		region := regionByCode[entry.MeetingCode]
		if region == "" {
			region = "Unknown"
		}

		byMeeting[entry.MeetingCode] += len(entry.Detail.Motions)
		for _, motion := range entry.Detail.Motions {
			category := motion.Category
			if category == "" {
				category = models.CategoryOther
			}
			status := motion.Status
			if status == "" {
				status = models.StatusOther
			}
			byCategory[category]++
			byRegion[region]++
			byStatus[status]++
		}
	}

	resp := models.StatsResponse{
		ByCategory: []models.CategoryStats{},
		ByRegion:   []models.RegionStats{},
		ByStatus:   []models.StatusStats{},
		ByMeeting:  []models.MeetingStats{},
	}
	for category, count := range byCategory {
		resp.ByCategory = append(resp.ByCategory, models.CategoryStats{Category: category, Decisions: count})
	}
	for region, count := range byRegion {
		resp.ByRegion = append(resp.ByRegion, models.RegionStats{Region: region, Decisions: count})
	}
	for status, count := range byStatus {
		resp.ByStatus = append(resp.ByStatus, models.StatusStats{Status: status, Decisions: count})
	}
	sort.Slice(resp.ByCategory, func(i, j int) bool { return resp.ByCategory[i].Decisions > resp.ByCategory[j].Decisions })
	sort.Slice(resp.ByRegion, func(i, j int) bool { return resp.ByRegion[i].Decisions > resp.ByRegion[j].Decisions })
	sort.Slice(resp.ByStatus, func(i, j int) bool { return resp.ByStatus[i].Decisions > resp.ByStatus[j].Decisions })

	for code, total := range byMeeting {
		date := dateByCode[code]
		if date == "" {
			date = "Unknown date"
		}
		resp.ByMeeting = append(resp.ByMeeting, models.MeetingStats{MeetingCode: code, Date: date, TotalDecisions: total})
	}
	sort.Slice(resp.ByMeeting, func(i, j int) bool { return resp.ByMeeting[i].Date < resp.ByMeeting[j].Date })

	return resp, nil
}

// MeetingCodes lists the currently known codes for debugging listing or
// detail mismatches.
func (s *DigestService) MeetingCodes(ctx context.Context) (string, []string) {
	index := s.loadIndex()
	if index == nil {
		return "none", []string{}
	}
	codes := make([]string, 0, len(index))
	for i, raw := range index {
		codes = append(codes, scraper.DeriveMeetingCode(raw.MeetingText, i+1))
	}
	return "index", codes
}

func distinctCategories(motions []models.Motion) []string {
	seen := map[string]bool{}
	for _, motion := range motions {
		if motion.Category != "" {
			seen[motion.Category] = true
		}
	}
	topics := make([]string, 0, len(seen))
	for category := range seen {
		topics = append(topics, category)
	}
	sort.Strings(topics)
	return topics
}
