package extractor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"councildigest/internal/models"
)

// chatResponse builds an OpenAI-style chat completion whose content is
// the given motions payload.
func chatResponse(t *testing.T, motions []map[string]interface{}) []byte {
	t.Helper()
	content, err := json.Marshal(map[string]interface{}{"motions": motions})
	if err != nil {
		t.Fatalf("Failed to marshal content: %v", err)
	}
	body, err := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]interface{}{"content": string(content)}},
		},
	})
	if err != nil {
		t.Fatalf("Failed to marshal response: %v", err)
	}
	return body
}

func validRawMotion() map[string]interface{} {
	return map[string]interface{}{
		"title":       "Affordable Housing Pilot",
		"summary":     "Council approved a pilot program for 200 units.",
		"status":      "PASSED",
		"category":    "housing",
		"impact_tags": []string{"affordable housing", "city funding"},
		"full_text":   "City Council adopted the item.",
	}
}

// TestExtractMotions verifies the happy path: one call per item chunk,
// sequential ids across the meeting.
func TestExtractMotions(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected auth header: %s", auth)
		}
		w.Write(chatResponse(t, []map[string]interface{}{validRawMotion()}))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 10*time.Second)
	text := "RD1.1 - Housing Pilot\nAdopted.\n\nNY2.3 - Speed Bumps\nApproved.\n"

	motions, err := client.ExtractMotions(context.Background(), text, "")
	if err != nil {
		t.Fatalf("ExtractMotions failed: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 model calls, got %d", calls)
	}
	if len(motions) != 2 {
		t.Fatalf("Expected 2 motions, got %d", len(motions))
	}
	if motions[0].ID != 1 || motions[1].ID != 2 {
		t.Errorf("Expected sequential ids 1,2, got %d,%d", motions[0].ID, motions[1].ID)
	}
	if motions[0].Status != models.StatusPassed || motions[0].Category != models.CategoryHousing {
		t.Errorf("Unexpected status/category: %s/%s", motions[0].Status, motions[0].Category)
	}
}

// TestExtractMotionsMinutesFallback verifies minutes text is used when
// no decisions document exists.
func TestExtractMotionsMinutesFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, []map[string]interface{}{validRawMotion()}))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 10*time.Second)
	motions, err := client.ExtractMotions(context.Background(), "", "CC1.1 - Item\nAdopted.\n")
	if err != nil {
		t.Fatalf("ExtractMotions failed: %v", err)
	}
	if len(motions) != 1 {
		t.Errorf("Expected 1 motion from minutes, got %d", len(motions))
	}
}

// TestExtractMotionsNoText verifies empty documents yield an empty
// motion list without any model call.
func TestExtractMotionsNoText(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", "test-key", "test-model", time.Second)
	motions, err := client.ExtractMotions(context.Background(), "", "   ")
	if err != nil {
		t.Fatalf("ExtractMotions failed: %v", err)
	}
	if motions == nil || len(motions) != 0 {
		t.Errorf("Expected empty non-nil motion list, got %v", motions)
	}
}

// TestExtractMotionsProceduralItem verifies an empty motions payload is
// a valid zero-motion result.
func TestExtractMotionsProceduralItem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, []map[string]interface{}{}))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 10*time.Second)
	motions, err := client.ExtractMotions(context.Background(), "CC1.1 - Adoption of Minutes\nReceived.\n", "")
	if err != nil {
		t.Fatalf("ExtractMotions failed: %v", err)
	}
	if len(motions) != 0 {
		t.Errorf("Expected 0 motions for procedural item, got %d", len(motions))
	}
}

// TestExtractMotionsMissingField verifies a record without a required
// field fails the extraction instead of being defaulted.
func TestExtractMotionsMissingField(t *testing.T) {
	raw := validRawMotion()
	delete(raw, "summary")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, []map[string]interface{}{raw}))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 10*time.Second)
	if _, err := client.ExtractMotions(context.Background(), "CC1.1 - Item\nAdopted.\n", ""); err == nil {
		t.Fatal("Expected error for record missing summary")
	}
}

// TestExtractMotionsNormalizesEnums verifies unknown status and
// category values collapse to the OTHER buckets.
func TestExtractMotionsNormalizesEnums(t *testing.T) {
	raw := validRawMotion()
	raw["status"] = "carried"
	raw["category"] = "Parks"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(chatResponse(t, []map[string]interface{}{raw}))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 10*time.Second)
	motions, err := client.ExtractMotions(context.Background(), "CC1.1 - Item\nAdopted.\n", "")
	if err != nil {
		t.Fatalf("ExtractMotions failed: %v", err)
	}
	if motions[0].Status != models.StatusOther {
		t.Errorf("Expected OTHER status, got %s", motions[0].Status)
	}
	if motions[0].Category != models.CategoryOther {
		t.Errorf("Expected other category, got %s", motions[0].Category)
	}
}

// TestExtractMotionsAPIError verifies an upstream error fails the whole
// meeting.
func TestExtractMotionsAPIError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			w.Write(chatResponse(t, []map[string]interface{}{validRawMotion()}))
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 10*time.Second)
	text := "RD1.1 - Housing Pilot\nAdopted.\n\nNY2.3 - Speed Bumps\nApproved.\n"
	if _, err := client.ExtractMotions(context.Background(), text, ""); err == nil {
		t.Fatal("Expected error when one chunk fails")
	}
}

// TestExtractMotionsUnparseableOutput verifies garbage model output is
// an error, not an empty result.
func TestExtractMotionsUnparseableOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "Sure! Here are the motions:"}},
			},
		})
		w.Write(body)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key", "test-model", 10*time.Second)
	if _, err := client.ExtractMotions(context.Background(), "CC1.1 - Item\nAdopted.\n", ""); err == nil {
		t.Fatal("Expected error for unparseable model output")
	}
}
