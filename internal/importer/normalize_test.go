package importer_test

import (
	"testing"
	"time"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/importer"
)

func testJob() *domain.ImportJob {
	return &domain.ImportJob{
		WorkspaceID:     "ws-1",
		UserID:          "user-1",
		Provider:        "bitly",
		EligibleDomains: []string{"nl.ink", "go.nl.ink"},
		TagsByName:      map[string]string{"marketing": "tag-1", "eng": "tag-2"},
	}
}

func TestNormalize(t *testing.T) {
	createdAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	testCases := []struct {
		name    string
		records []domain.SourceRecord
		want    []domain.NormalizedLink
	}{
		{
			name: "eligible record maps to destination shape",
			records: []domain.SourceRecord{{
				ID:        "nl.ink/promo",
				URL:       "https://example.com/promo",
				Title:     "Promo",
				Archived:  true,
				CreatedAt: createdAt,
				Tags:      []string{"marketing"},
			}},
			want: []domain.NormalizedLink{{
				WorkspaceID: "ws-1",
				UserID:      "user-1",
				Domain:      "nl.ink",
				Key:         "promo",
				URL:         "https://example.com/promo",
				Title:       "Promo",
				Archived:    true,
				TagID:       "tag-1",
				CreatedAt:   createdAt,
			}},
		},
		{
			name: "ineligible domain is dropped silently",
			records: []domain.SourceRecord{{
				ID:  "bit.ly/3xYz",
				URL: "https://example.com/x",
			}},
			want: []domain.NormalizedLink{},
		},
		{
			name: "aliases are evaluated independently of the primary",
			records: []domain.SourceRecord{{
				ID:      "bit.ly/3xYz",
				URL:     "https://example.com/x",
				Aliases: []string{"https://nl.ink/custom", "other.example/nope"},
			}},
			want: []domain.NormalizedLink{{
				WorkspaceID: "ws-1",
				UserID:      "user-1",
				Domain:      "nl.ink",
				Key:         "custom",
				URL:         "https://example.com/x",
			}},
		},
		{
			name: "primary and alias both eligible yield two links",
			records: []domain.SourceRecord{{
				ID:      "nl.ink/a",
				URL:     "https://example.com/a",
				Aliases: []string{"go.nl.ink/a"},
			}},
			want: []domain.NormalizedLink{
				{WorkspaceID: "ws-1", UserID: "user-1", Domain: "nl.ink", Key: "a", URL: "https://example.com/a"},
				{WorkspaceID: "ws-1", UserID: "user-1", Domain: "go.nl.ink", Key: "a", URL: "https://example.com/a"},
			},
		},
		{
			name: "bare domain maps to the root key",
			records: []domain.SourceRecord{{
				ID:  "https://nl.ink/",
				URL: "https://example.com/root",
			}},
			want: []domain.NormalizedLink{{
				WorkspaceID: "ws-1", UserID: "user-1", Domain: "nl.ink", Key: "_root", URL: "https://example.com/root",
			}},
		},
		{
			name: "domain is lowercased, key case preserved",
			records: []domain.SourceRecord{{
				ID:  "NL.ink/MixedCase",
				URL: "https://example.com/m",
			}},
			want: []domain.NormalizedLink{{
				WorkspaceID: "ws-1", UserID: "user-1", Domain: "nl.ink", Key: "MixedCase", URL: "https://example.com/m",
			}},
		},
		{
			name: "multi-tag record collapses to its first tag",
			records: []domain.SourceRecord{{
				ID:   "nl.ink/t",
				URL:  "https://example.com/t",
				Tags: []string{"eng", "marketing"},
			}},
			want: []domain.NormalizedLink{{
				WorkspaceID: "ws-1", UserID: "user-1", Domain: "nl.ink", Key: "t",
				URL: "https://example.com/t", TagID: "tag-2",
			}},
		},
		{
			name: "unknown tag name maps to no tag",
			records: []domain.SourceRecord{{
				ID:   "nl.ink/u",
				URL:  "https://example.com/u",
				Tags: []string{"does-not-exist"},
			}},
			want: []domain.NormalizedLink{{
				WorkspaceID: "ws-1", UserID: "user-1", Domain: "nl.ink", Key: "u", URL: "https://example.com/u",
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := importer.Normalize(testJob(), tc.records)

			if len(got) != len(tc.want) {
				t.Fatalf("Normalize() returned %d links, want %d: %+v", len(got), len(tc.want), got)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("link %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestNormalizePreservesRecordOrder(t *testing.T) {
	records := []domain.SourceRecord{
		{ID: "nl.ink/first", URL: "https://example.com/1"},
		{ID: "nl.ink/second", URL: "https://example.com/2"},
		{ID: "nl.ink/third", URL: "https://example.com/3"},
	}

	got := importer.Normalize(testJob(), records)

	keys := make([]string, 0, len(got))
	for _, l := range got {
		keys = append(keys, l.Key)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("order not preserved: %v", keys)
		}
	}
}
