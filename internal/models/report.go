package models

import "time"

// Report reasons accepted from clients.
const (
	ReasonIncorrectInformation = "incorrect_information"
	ReasonInappropriate        = "inappropriate"
	ReasonOther                = "other"
)

// ValidReportReasons is the closed set of accepted report reasons.
var ValidReportReasons = map[string]bool{
	ReasonIncorrectInformation: true,
	ReasonInappropriate:        true,
	ReasonOther:                true,
}

// Report is a user flag against one motion. Reports are append-only and
// never deduplicated; repeated flags on the same motion accumulate.
type Report struct {
	ID          string    `json:"id"`
	MeetingCode string    `json:"meeting_code"`
	MotionID    int       `json:"motion_id"`
	Reason      string    `json:"reason"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SubmitReportRequest is the POST /api/reports body.
type SubmitReportRequest struct {
	MeetingCode string `json:"meeting_code"`
	MotionID    int    `json:"motion_id"`
	Reason      string `json:"reason"`
	Comment     string `json:"comment,omitempty"`
}

// MotionReportSummary counts incorrect-information reports for one motion.
type MotionReportSummary struct {
	MeetingCode      string `json:"meeting_code"`
	MotionID         int    `json:"motion_id"`
	IncorrectReports int    `json:"incorrect_reports"`
}

// ReportsSummaryResponse is the GET /api/reports/summary payload.
type ReportsSummaryResponse struct {
	ByMotion []MotionReportSummary `json:"by_motion"`
}
