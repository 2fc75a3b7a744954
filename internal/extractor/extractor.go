package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"councildigest/internal/models"
)

// Client extracts structured motions from raw meeting text by calling
// an OpenAI-compatible chat completions endpoint once per agenda item.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates an extraction client. timeout bounds each
// per-chunk model call, not the whole meeting.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

const motionSystemPrompt = `You are helping summarize ONE Toronto council or committee decision item.

Task:
- Decide whether this text contains a substantive decision that affects residents
  (e.g., funding approvals, bylaw changes, policies, programs).
- Ignore purely procedural items (approving agenda, adopting minutes, adjournment,
  declarations of interest, going in/out of closed session, receiving information only).

If there is NO substantive decision, return {"motions": []}.

If there IS a substantive decision, return {"motions": [ ... ]} with exactly ONE object:
- "title": short, human-readable headline (plain language).
- "summary": 2-4 sentences in plain language explaining what was decided.
- "status": one of ["PASSED", "FAILED", "DEFERRED", "AMENDED", "RECEIVED"].
- "category": one of ["housing", "transportation", "budget", "environment",
  "services", "governance", "other"].
- "impact_tags": 2-5 short tags describing who/what is affected (e.g.,
  ["affordable housing", "downtown", "city funding"]).
- "full_text": the key part of the decision text copied verbatim or nearly
  verbatim from the source.`

// motionSchema constrains the model's structured output to the motion
// record shape.
var motionSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"motions": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"title":   map[string]interface{}{"type": "string"},
					"summary": map[string]interface{}{"type": "string"},
					"status": map[string]interface{}{
						"type": "string",
						"enum": []string{"PASSED", "FAILED", "DEFERRED", "AMENDED", "RECEIVED"},
					},
					"category": map[string]interface{}{
						"type": "string",
						"enum": []string{"housing", "transportation", "budget", "environment", "services", "governance", "other"},
					},
					"impact_tags": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
					"full_text": map[string]interface{}{"type": "string"},
				},
				"required":             []string{"title", "summary", "status", "category", "impact_tags", "full_text"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"motions"},
	"additionalProperties": false,
}

// rawMotion is the wire shape of one extracted record. Pointer fields
// distinguish a missing key from an empty value so validation can
// reject incomplete records instead of defaulting them.
type rawMotion struct {
	Title      *string  `json:"title"`
	Summary    *string  `json:"summary"`
	Status     *string  `json:"status"`
	Category   *string  `json:"category"`
	ImpactTags []string `json:"impact_tags"`
	FullText   string   `json:"full_text"`
}

// ExtractMotions extracts all motions for one meeting. The Decisions
// text drives segmentation; Minutes text is the fallback document when
// no Decisions document was scraped. Any chunk failure fails the whole
// meeting so a partial result is never mistaken for a complete one.
func (c *Client) ExtractMotions(ctx context.Context, decisionsText, minutesText string) ([]models.Motion, error) {
	text := decisionsText
	if strings.TrimSpace(text) == "" {
		text = minutesText
	}
	if strings.TrimSpace(text) == "" {
		return []models.Motion{}, nil
	}

	chunks := SegmentDecisionsText(text)
	var all []models.Motion

	for _, chunk := range chunks {
		motions, err := c.extractChunk(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", chunk.ItemID, err)
		}
		all = append(all, motions...)
	}

	// Motion ids are sequential across the meeting in appearance order.
	for i := range all {
		all[i].ID = i + 1
	}

	if all == nil {
		all = []models.Motion{}
	}
	return all, nil
}

// extractChunk runs one model call for a single agenda item and returns
// zero or more validated motions.
func (c *Client) extractChunk(ctx context.Context, chunk ItemChunk) ([]models.Motion, error) {
	userPrompt := fmt.Sprintf("Item ID: %s\nHeading: %s\n\nText:\n%s", chunk.ItemID, chunk.Heading, chunk.Body)

	requestBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": motionSystemPrompt},
			{"role": "user", "content": userPrompt},
		},
		"stream":      false,
		"temperature": 0.1,
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   "motion_extraction",
				"strict": true,
				"schema": motionSchema,
			},
		},
	}

	reqBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️ [EXTRACTOR] API error for item %s: %s", chunk.ItemID, string(body))
		return nil, fmt.Errorf("API error (status %d)", resp.StatusCode)
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}
	if len(apiResponse.Choices) == 0 {
		return nil, fmt.Errorf("no response from extraction model")
	}

	var parsed struct {
		Motions []rawMotion `json:"motions"`
	}
	content := apiResponse.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		log.Printf("⚠️ [EXTRACTOR] Unparseable model output for item %s (%d bytes)", chunk.ItemID, len(content))
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}

	motions := make([]models.Motion, 0, len(parsed.Motions))
	for i, raw := range parsed.Motions {
		motion, err := validateMotion(raw, chunk)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		motions = append(motions, motion)
	}
	return motions, nil
}

// validateMotion rejects records missing required fields and normalizes
// the status/category enums. Unknown enum values collapse to the OTHER
// buckets; absent fields are an extraction failure, not a default.
func validateMotion(raw rawMotion, chunk ItemChunk) (models.Motion, error) {
	if raw.Title == nil || strings.TrimSpace(*raw.Title) == "" {
		return models.Motion{}, fmt.Errorf("missing title")
	}
	if raw.Summary == nil || strings.TrimSpace(*raw.Summary) == "" {
		return models.Motion{}, fmt.Errorf("missing summary")
	}
	if raw.Status == nil {
		return models.Motion{}, fmt.Errorf("missing status")
	}
	if raw.Category == nil {
		return models.Motion{}, fmt.Errorf("missing category")
	}

	status := strings.ToUpper(strings.TrimSpace(*raw.Status))
	if !models.ValidStatuses[status] {
		status = models.StatusOther
	}
	category := strings.ToLower(strings.TrimSpace(*raw.Category))
	if !models.ValidCategories[category] {
		category = models.CategoryOther
	}

	fullText := raw.FullText
	if fullText == "" {
		fullText = chunk.Body
	}
	tags := raw.ImpactTags
	if tags == nil {
		tags = []string{}
	}

	return models.Motion{
		Title:      strings.TrimSpace(*raw.Title),
		Summary:    strings.TrimSpace(*raw.Summary),
		Status:     status,
		Category:   category,
		ImpactTags: tags,
		FullText:   fullText,
	}, nil
}
