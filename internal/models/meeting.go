package models

import "time"

// Motion statuses produced by the extractor. Anything else is normalized
// to StatusOther rather than invented.
const (
	StatusPassed   = "PASSED"
	StatusFailed   = "FAILED"
	StatusDeferred = "DEFERRED"
	StatusAmended  = "AMENDED"
	StatusReceived = "RECEIVED"
	StatusOther    = "OTHER"
)

// Motion categories the extractor is allowed to emit.
const (
	CategoryHousing        = "housing"
	CategoryTransportation = "transportation"
	CategoryBudget         = "budget"
	CategoryEnvironment    = "environment"
	CategoryServices       = "services"
	CategoryGovernance     = "governance"
	CategoryOther          = "other"
)

// ValidStatuses is the closed set of motion statuses.
var ValidStatuses = map[string]bool{
	StatusPassed:   true,
	StatusFailed:   true,
	StatusDeferred: true,
	StatusAmended:  true,
	StatusReceived: true,
	StatusOther:    true,
}

// ValidCategories is the closed set of motion categories.
var ValidCategories = map[string]bool{
	CategoryHousing:        true,
	CategoryTransportation: true,
	CategoryBudget:         true,
	CategoryEnvironment:    true,
	CategoryServices:       true,
	CategoryGovernance:     true,
	CategoryOther:          true,
}

// Motion is a single decision item extracted from one meeting.
// IDs are sequential within a meeting, assigned in appearance order.
type Motion struct {
	ID         int      `json:"id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Status     string   `json:"status"`
	Category   string   `json:"category"`
	ImpactTags []string `json:"impact_tags"`
	FullText   string   `json:"full_text,omitempty"`
}

// MeetingOverview is one row of the meeting listing. Topics and
// MotionCount stay zero until the meeting's detail has been built.
type MeetingOverview struct {
	MeetingCode  string   `json:"meeting_code"`
	Title        string   `json:"title"`
	Date         string   `json:"date"`
	Region       string   `json:"region,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	Topics       []string `json:"topics"`
	MotionCount  int      `json:"motion_count"`
	DetailCached bool     `json:"detail_cached"`
}

// MeetingDetail is the full cached result of extraction for one meeting.
type MeetingDetail struct {
	MeetingCode string   `json:"meeting_code"`
	Title       string   `json:"title"`
	Date        string   `json:"date"`
	SourceURL   string   `json:"source_url,omitempty"`
	Motions     []Motion `json:"motions"`
}

// CacheEntry is the persisted per-meeting extraction result. The row's
// existence is the cached flag: an entry with zero motions means
// extraction ran and found nothing, which is distinct from no entry.
type CacheEntry struct {
	MeetingCode string        `json:"meeting_code"`
	Detail      MeetingDetail `json:"detail"`
	BuiltAt     time.Time     `json:"built_at"`
}

// RefreshResponse reports a completed index refresh.
type RefreshResponse struct {
	MeetingsCount int `json:"meetings_count"`
}

// PrewarmResponse reports a completed prewarm batch. Failures carry one
// message per meeting that could not be built; the batch itself succeeds.
type PrewarmResponse struct {
	Prewarmed int               `json:"prewarmed"`
	Skipped   int               `json:"skipped"`
	Failures  map[string]string `json:"failures,omitempty"`
}

// CategoryStats counts cached decisions per category.
type CategoryStats struct {
	Category  string `json:"category"`
	Decisions int    `json:"decisions"`
}

// RegionStats counts cached decisions per region.
type RegionStats struct {
	Region    string `json:"region"`
	Decisions int    `json:"decisions"`
}

// StatusStats counts cached decisions per status.
type StatusStats struct {
	Status    string `json:"status"`
	Decisions int    `json:"decisions"`
}

// MeetingStats counts cached decisions for one meeting.
type MeetingStats struct {
	MeetingCode    string `json:"meeting_code"`
	Date           string `json:"date"`
	TotalDecisions int    `json:"total_decisions"`
}

// StatsResponse aggregates decision statistics across cached meetings.
type StatsResponse struct {
	ByCategory []CategoryStats `json:"by_category"`
	ByRegion   []RegionStats   `json:"by_region"`
	ByStatus   []StatusStats   `json:"by_status"`
	ByMeeting  []MeetingStats  `json:"by_meeting"`
}
