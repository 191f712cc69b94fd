// Package importer implements the bulk link-import pipeline: normalizing
// provider records, writing them idempotently, importing tags, and scheduling
// each invocation's successor on the durable queue.
package importer

import (
	"strings"

	"github.com/northlink/link-importer/internal/domain"
)

// rootKey is the key assigned to a short link on the bare domain.
const rootKey = "_root"

// Normalize maps one page of source records into the destination link shape.
// Records under domains the workspace does not own are dropped silently;
// each alias is evaluated against the eligible set independently of the
// primary identifier's fate. Record order is preserved.
func Normalize(job *domain.ImportJob, records []domain.SourceRecord) []domain.NormalizedLink {
	links := make([]domain.NormalizedLink, 0, len(records))

	for _, rec := range records {
		tagID := tagFor(job, rec)

		if d, key, ok := parseShortLink(rec.ID); ok && job.DomainEligible(d) {
			links = append(links, newLink(job, rec, d, key, tagID))
		}

		for _, alias := range rec.Aliases {
			if d, key, ok := parseShortLink(alias); ok && job.DomainEligible(d) {
				links = append(links, newLink(job, rec, d, key, tagID))
			}
		}
	}

	return links
}

// tagFor picks the destination tag id for a record. Multi-tag source records
// collapse to their first tag name only.
func tagFor(job *domain.ImportJob, rec domain.SourceRecord) string {
	if len(rec.Tags) == 0 || job.TagsByName == nil {
		return ""
	}
	return job.TagsByName[rec.Tags[0]]
}

func newLink(job *domain.ImportJob, rec domain.SourceRecord, linkDomain, key, tagID string) domain.NormalizedLink {
	return domain.NormalizedLink{
		WorkspaceID: job.WorkspaceID,
		UserID:      job.UserID,
		Domain:      linkDomain,
		Key:         key,
		URL:         rec.URL,
		Title:       rec.Title,
		Archived:    rec.Archived,
		TagID:       tagID,
		CreatedAt:   rec.CreatedAt,
	}
}

// parseShortLink splits a provider identifier ("domain/key", optionally with
// a scheme) into its domain and key. A bare domain maps to the root key.
func parseShortLink(id string) (string, string, bool) {
	s := strings.TrimSpace(id)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.Trim(s, "/")
	if s == "" {
		return "", "", false
	}

	linkDomain, key, found := strings.Cut(s, "/")
	if linkDomain == "" {
		return "", "", false
	}
	if !found || key == "" {
		key = rootKey
	}

	return strings.ToLower(linkDomain), key, true
}
