package scraper

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDeriveMeetingCode verifies the council reference wins and the
// slug fallback stays stable per index position.
func TestDeriveMeetingCode(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		index    int
		expected string
	}{
		{"council reference", "2024-02-14 City Council 2024.CC15", 3, "2024.CC15"},
		{"reference mid-text", "Agenda 2026.CC04 special session", 1, "2026.CC04"},
		{"slug fallback", "2024-01-10 Executive Committee", 2, "2024-01-10_executive_committee_02"},
		{"empty text", "   ", 7, "meeting_07"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveMeetingCode(tt.text, tt.index); got != tt.expected {
				t.Errorf("DeriveMeetingCode(%q, %d) = %q, want %q", tt.text, tt.index, got, tt.expected)
			}
		})
	}
}

// TestDeriveMeetingCodeTruncatesSlug verifies long titles are capped
// before the index suffix.
func TestDeriveMeetingCodeTruncatesSlug(t *testing.T) {
	text := "Planning and Housing Committee Special Joint Session on Development Charges"
	code := DeriveMeetingCode(text, 5)
	// 40 slug characters plus "_05".
	if len(code) != 43 {
		t.Errorf("Expected 43-character code, got %d (%q)", len(code), code)
	}
}

// TestDeriveDate verifies ISO prefixes and month-name dates.
func TestDeriveDate(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"2024-02-14 City Council", "2024-02-14"},
		{"  2024-01-10 Executive Committee", "2024-01-10"},
		{"City Council meeting of February 14, 2024", "February 14, 2024"},
		{"City Council agenda", "Unknown date"},
	}
	for _, tt := range tests {
		if got := DeriveDate(tt.text); got != tt.expected {
			t.Errorf("DeriveDate(%q) = %q, want %q", tt.text, got, tt.expected)
		}
	}
}

// TestDeriveRegion verifies committee-to-region mapping.
func TestDeriveRegion(t *testing.T) {
	tests := []struct {
		title    string
		expected string
	}{
		{"North York Community Council 2024.NY09", "North York"},
		{"Etobicoke York Community Council", "Etobicoke York"},
		{"Toronto and East York Community Council", "Toronto & East York"},
		{"Scarborough Community Council", "Scarborough"},
		{"City Council 2024.CC15", "City-wide"},
		{"Executive Committee", "City-wide"},
	}
	for _, tt := range tests {
		if got := DeriveRegion(tt.title); got != tt.expected {
			t.Errorf("DeriveRegion(%q) = %q, want %q", tt.title, got, tt.expected)
		}
	}
}

// TestLoadIndexMissing verifies a missing index reads as nil, nil.
func TestLoadIndexMissing(t *testing.T) {
	meetings, err := LoadIndex(t.TempDir())
	if err != nil {
		t.Fatalf("Missing index should not error: %v", err)
	}
	if meetings != nil {
		t.Errorf("Expected nil meetings, got %v", meetings)
	}
}

// TestLoadIndexInvalid verifies a corrupt index is tolerated.
func TestLoadIndexInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupt index: %v", err)
	}

	meetings, err := LoadIndex(dir)
	if err != nil {
		t.Fatalf("Corrupt index should not error: %v", err)
	}
	if meetings != nil {
		t.Errorf("Expected nil meetings for corrupt index, got %v", meetings)
	}
}

// TestSaveAndLoadIndex tests the round trip including blob resolution.
func TestSaveAndLoadIndex(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "meeting-01-decisions.txt"), []byte("RD1.1 - Item\n"), 0o644); err != nil {
		t.Fatalf("Failed to write blob: %v", err)
	}

	meetings := []ScrapedMeeting{
		{
			MeetingText: "2024-02-14 City Council 2024.CC15",
			MeetingURL:  "https://example.com/cc15",
			Files: ScrapedFiles{
				Decisions: "meeting-01-decisions.txt",
				Minutes:   "meeting-01-minutes.txt", // never downloaded
			},
		},
	}
	if err := SaveIndex(dir, meetings); err != nil {
		t.Fatalf("SaveIndex failed: %v", err)
	}

	loaded, err := LoadIndex(dir)
	if err != nil {
		t.Fatalf("LoadIndex failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("Expected 1 meeting, got %d", len(loaded))
	}
	if loaded[0].MeetingText != meetings[0].MeetingText {
		t.Errorf("Meeting text mismatch: %q", loaded[0].MeetingText)
	}
	if loaded[0].DecisionsPath == "" {
		t.Error("Existing decisions blob should resolve to a path")
	}
	if loaded[0].MinutesPath != "" {
		t.Errorf("Missing minutes blob should resolve empty, got %q", loaded[0].MinutesPath)
	}
}

// TestReadDocumentText verifies tolerant blob reads.
func TestReadDocumentText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("Failed to write blob: %v", err)
	}

	if got := ReadDocumentText(path); got != "hello" {
		t.Errorf("Expected file content, got %q", got)
	}
	if got := ReadDocumentText(""); got != "" {
		t.Errorf("Empty path should read empty, got %q", got)
	}
	if got := ReadDocumentText(filepath.Join(dir, "missing.txt")); got != "" {
		t.Errorf("Missing file should read empty, got %q", got)
	}
}
