package scraper

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ScrapedFiles names the per-document text blobs inside the output
// directory, relative to it.
type ScrapedFiles struct {
	Decisions string `json:"decisions,omitempty"`
	Minutes   string `json:"minutes,omitempty"`
}

// ScrapedMeeting is one entry of the scraper's index.json: the raw text
// of the meeting row on the council site plus references to the
// downloaded Decisions and Minutes documents.
type ScrapedMeeting struct {
	MeetingText  string       `json:"meetingText"`
	MeetingURL   string       `json:"meetingUrl"`
	DecisionsURL string       `json:"decisionsUrl,omitempty"`
	MinutesURL   string       `json:"minutesUrl,omitempty"`
	Files        ScrapedFiles `json:"files"`

	// Resolved absolute paths; empty when the referenced file is missing.
	DecisionsPath string `json:"-"`
	MinutesPath   string `json:"-"`
}

const indexFileName = "index.json"

// LoadIndex parses index.json from the scraper output directory.
// Returns (nil, nil) when the index is missing or unreadable so callers
// can treat "no scraper output yet" as an empty meeting list.
func LoadIndex(outputDir string) ([]ScrapedMeeting, error) {
	indexPath := filepath.Join(outputDir, indexFileName)
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		log.Printf("⚠️  [SCRAPER] Failed to read %s: %v", indexPath, err)
		return nil, nil
	}

	var meetings []ScrapedMeeting
	if err := json.Unmarshal(data, &meetings); err != nil {
		log.Printf("⚠️  [SCRAPER] Invalid index.json at %s: %v", indexPath, err)
		return nil, nil
	}

	for i := range meetings {
		meetings[i].DecisionsPath = resolveBlobPath(outputDir, meetings[i].Files.Decisions)
		meetings[i].MinutesPath = resolveBlobPath(outputDir, meetings[i].Files.Minutes)
	}
	return meetings, nil
}

// SaveIndex writes index.json atomically so a crashed scrape never
// leaves a half-written index behind.
func SaveIndex(outputDir string, meetings []ScrapedMeeting) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scraper output dir: %w", err)
	}

	data, err := json.MarshalIndent(meetings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	indexPath := filepath.Join(outputDir, indexFileName)
	tmpPath := indexPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return os.Rename(tmpPath, indexPath)
}

func resolveBlobPath(outputDir, name string) string {
	if name == "" {
		return ""
	}
	p := filepath.Join(outputDir, name)
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

// ReadDocumentText reads a resolved document blob, tolerating a missing
// file by returning an empty string.
func ReadDocumentText(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

var (
	meetingCodeRe = regexp.MustCompile(`\b(20[2-4]\d\.CC\d+)\b`)
	isoDateRe     = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})\b`)
	monthDateRe   = regexp.MustCompile(`\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+20\d{2}\b`)
)

// DeriveMeetingCode extracts the council's meeting reference (e.g.
// "2026.CC04") from the meeting row text, falling back to a slug plus
// the 1-based index so codes stay stable across identical scrapes.
func DeriveMeetingCode(meetingText string, fallbackIndex int) string {
	if m := meetingCodeRe.FindStringSubmatch(meetingText); m != nil {
		return m[1]
	}

	slug := slugify(meetingText)
	if len(slug) > 40 {
		slug = slug[:40]
	}
	if slug == "" {
		slug = "meeting"
	}
	return fmt.Sprintf("%s_%02d", slug, fallbackIndex)
}

// DeriveDate pulls a display date out of the meeting row text: an ISO
// date prefix when present, otherwise the first month-name date.
func DeriveDate(meetingText string) string {
	text := strings.TrimSpace(meetingText)
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := monthDateRe.FindString(text); m != "" {
		return m
	}
	return "Unknown date"
}

// DeriveRegion maps the committee name in the meeting title to a region
// label. Anything unrecognized is city-wide business.
func DeriveRegion(title string) string {
	switch {
	case strings.Contains(title, "North York Community Council"):
		return "North York"
	case strings.Contains(title, "Etobicoke York Community Council"):
		return "Etobicoke York"
	case strings.Contains(title, "Toronto and East York Community Council"):
		return "Toronto & East York"
	case strings.Contains(title, "Scarborough Community Council"):
		return "Scarborough"
	default:
		return "City-wide"
	}
}

func slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "—", "-")
	s = strings.ReplaceAll(s, "–", "-")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
