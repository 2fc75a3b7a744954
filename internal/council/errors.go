package council

import "errors"

// Sentinel errors returned by DigestService. Handlers map these to
// HTTP status codes with errors.Is; wrapped causes stay attached for
// the response message.
var (
	// ErrMeetingNotFound: the meeting code is not in the current index
	// and has no cache entry.
	ErrMeetingNotFound = errors.New("meeting not found")

	// ErrSourceUnavailable: no scraper output exists on disk and the
	// service is not allowed to run the browser to produce it.
	ErrSourceUnavailable = errors.New("no scraper output found")

	// ErrExtraction: the model call failed, timed out, or returned
	// unparseable output. Nothing is cached; the request is retryable.
	ErrExtraction = errors.New("extraction failed")

	// ErrLiveScrapeDisabled: an administrative operation needs a live
	// browser run but ALLOW_LIVE_SCRAPE is off.
	ErrLiveScrapeDisabled = errors.New("live scraping is disabled")

	// ErrInvalidReport: a report submission failed validation.
	ErrInvalidReport = errors.New("invalid report")
)
