// Package preview provides unit tests for payload excerpts.
package preview

import (
	"encoding/json"
	"strings"
	"testing"
)

// TestExcerptStripsMarkdown tests that markdown structure is removed.
func TestExcerptStripsMarkdown(t *testing.T) {
	payload := json.RawMessage(`{"text":"# Reminder\n\nBuy **milk** and _eggs_"}`)

	got := Excerpt(payload, DefaultLimit)
	if strings.ContainsAny(got, "#*_") {
		t.Errorf("Expected markdown stripped, got %q", got)
	}
	for _, want := range []string{"Reminder", "milk", "eggs"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in excerpt %q", want, got)
		}
	}
}

// TestExcerptTruncates tests the rune limit.
func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("word ", 100)
	payload := json.RawMessage(`{"text":"` + strings.TrimSpace(long) + `"}`)

	got := Excerpt(payload, 20)
	if runes := []rune(got); len(runes) > 20 {
		t.Errorf("Expected at most 20 runes, got %d: %q", len(runes), got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("Expected ellipsis on truncation, got %q", got)
	}
}

// TestExcerptNonChatPayload tests the fallback for opaque payloads.
func TestExcerptNonChatPayload(t *testing.T) {
	payload := json.RawMessage(`{"kind":"sticker","ref":42}`)

	got := Excerpt(payload, DefaultLimit)
	if got == "" {
		t.Error("Expected a non-empty preview for opaque payloads")
	}
}
