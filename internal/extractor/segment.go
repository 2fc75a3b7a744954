package extractor

import (
	"regexp"
	"strings"
)

// ItemChunk is a single agenda/decision item in a meeting document.
type ItemChunk struct {
	ItemID  string
	Heading string
	Body    string
}

// Item boundaries look like "RD1.2 - 2025 Performance Appraisal - Chief
// Executive Officer": a short committee prefix, item number, dash, title.
var itemStartRe = regexp.MustCompile(`^([A-Z]{1,4}\d+\.\d+)\s*-\s*(.+)$`)

// SegmentDecisionsText splits a Decisions document into item-sized
// chunks. The splitter is heuristic but deterministic: identical input
// always yields identical chunks, which keeps extraction idempotent.
func SegmentDecisionsText(text string) []ItemChunk {
	var chunks []ItemChunk
	var currentID, currentHeading string
	var bodyLines []string

	flush := func() {
		if currentID == "" {
			return
		}
		chunks = append(chunks, ItemChunk{
			ItemID:  currentID,
			Heading: currentHeading,
			Body:    strings.TrimSpace(strings.Join(bodyLines, "\n")),
		})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := itemStartRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			currentID = m[1]
			currentHeading = trimmed
			bodyLines = nil
			continue
		}
		if currentID != "" {
			bodyLines = append(bodyLines, line)
		}
	}
	flush()

	// No item headings at all: treat the whole document as one chunk so
	// short or oddly formatted meetings still get extracted.
	if len(chunks) == 0 && strings.TrimSpace(text) != "" {
		chunks = append(chunks, ItemChunk{
			ItemID:  "item_01",
			Heading: "Meeting Decisions",
			Body:    strings.TrimSpace(text),
		})
	}

	return chunks
}
