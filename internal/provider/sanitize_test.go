package provider_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/northlink/link-importer/internal/provider"
)

func TestSanitizeValidPayloadUnchanged(t *testing.T) {
	raw := `{"links": [{"id": "nl.ink/a", "long_url": "https://example.com/?q=\"x\"", "title": "ok"}]}`

	if got := provider.Sanitize(raw); got != raw {
		t.Errorf("valid payload must come back byte-for-byte unchanged\ngot:  %q\nwant: %q", got, raw)
	}
}

func TestSanitizeRepairsCorruptedDestinationURL(t *testing.T) {
	// Raw newline and unescaped quote inside the destination URL, the two
	// corruptions the upstream export is known to produce.
	raw := `{"links": [{"id": "nl.ink/a", "long_url": "https://example.com/a` +
		"\n" + `b"c", "title": "t"}]}`

	got := provider.Sanitize(raw)

	if !json.Valid([]byte(got)) {
		t.Fatalf("sanitized payload still invalid: %q", got)
	}

	var parsed struct {
		Links []struct {
			LongURL string `json:"long_url"`
		} `json:"links"`
	}
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("unmarshal sanitized payload: %v", err)
	}
	if len(parsed.Links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(parsed.Links))
	}

	// The embedded newline and quote survive after decoding.
	if !strings.Contains(parsed.Links[0].LongURL, "\n") {
		t.Errorf("newline inside URL should survive sanitization, got %q", parsed.Links[0].LongURL)
	}
	if !strings.Contains(parsed.Links[0].LongURL, `"`) {
		t.Errorf("quote inside URL should survive sanitization, got %q", parsed.Links[0].LongURL)
	}
}

func TestSanitizeEscapesControlCharsOutsideURLs(t *testing.T) {
	raw := "{\"title\": \"line1\nline2\ttabbed\"}"

	got := provider.Sanitize(raw)

	if !json.Valid([]byte(got)) {
		t.Fatalf("sanitized payload still invalid: %q", got)
	}
	if !strings.Contains(got, `\n`) || !strings.Contains(got, `\t`) {
		t.Errorf("control chars should become canonical escapes, got %q", got)
	}
}

func TestSanitizeDropsUnescapableControlChars(t *testing.T) {
	raw := "{\"title\": \"a\x00b\x01c\"}"

	got := provider.Sanitize(raw)

	if !json.Valid([]byte(got)) {
		t.Fatalf("sanitized payload still invalid: %q", got)
	}
	if strings.ContainsAny(got, "\x00\x01") {
		t.Errorf("unescapable control chars should be deleted, got %q", got)
	}
}
