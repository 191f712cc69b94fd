// Package domain contains the core domain models for the link importer.
package domain

import "time"

// JobMessage is the durable queue message body that carries an import job
// between invocations. A job has no database row; the chain of messages is
// the only record of its state.
type JobMessage struct {
	WorkspaceID       string   `json:"workspaceId"`
	Provider          string   `json:"provider"`
	ProviderAccountID string   `json:"providerAccountId"`
	EligibleDomains   []string `json:"eligibleDomains"`
	ImportTags        bool     `json:"importTags"`
	Cursor            *string  `json:"cursor,omitempty"`
	Count             int64    `json:"count,omitempty"`
}

// ImportCursor decodes the message cursor field into the explicit tri-state.
// An absent field means the job has not started; an empty string is a valid
// in-progress token from providers that paginate that way.
func (m JobMessage) ImportCursor() Cursor {
	if m.Cursor == nil {
		return StartCursor()
	}
	return ResumeCursor(*m.Cursor)
}

// Continue returns a copy of the message advanced to the given cursor and
// running count, ready to be enqueued for the next invocation.
func (m JobMessage) Continue(next Cursor, count int64) JobMessage {
	token := next.Token()
	m.Cursor = &token
	m.Count = count
	return m
}

// ImportJob is the transient per-invocation state, reconstructed from a
// JobMessage plus workspace and credential lookups.
type ImportJob struct {
	WorkspaceID       string
	UserID            string
	Provider          string
	ProviderAccountID string
	EligibleDomains   []string
	TagsByName        map[string]string
	Cursor            Cursor
	Count             int64

	domainSet map[string]struct{}
}

// DomainEligible reports whether the workspace owns the given domain.
func (j *ImportJob) DomainEligible(domain string) bool {
	if j.domainSet == nil {
		j.domainSet = make(map[string]struct{}, len(j.EligibleDomains))
		for _, d := range j.EligibleDomains {
			j.domainSet[d] = struct{}{}
		}
	}
	_, ok := j.domainSet[domain]
	return ok
}

// SourceRecord is one link as represented by the source platform.
type SourceRecord struct {
	// ID is the provider identifier in "domain/key" form, optionally with a
	// scheme prefix.
	ID        string
	URL       string
	Title     string
	Archived  bool
	CreatedAt time.Time
	// Aliases are additional short-link identifiers pointing at the same
	// destination.
	Aliases []string
	// Tags are the provider tag names attached to the record.
	Tags []string
}

// NormalizedLink is a link in the destination's shape, ready for the sink.
type NormalizedLink struct {
	WorkspaceID string    `db:"workspace_id"`
	UserID      string    `db:"user_id"`
	Domain      string    `db:"domain"`
	Key         string    `db:"key"`
	URL         string    `db:"url"`
	Title       string    `db:"title"`
	Archived    bool      `db:"archived"`
	TagID       string    `db:"tag_id"`
	CreatedAt   time.Time `db:"created_at"`
}

// Workspace is the destination workspace an import targets.
type Workspace struct {
	ID         string `db:"id"`
	Slug       string `db:"slug"`
	OwnerID    string `db:"owner_id"`
	OwnerEmail string `db:"owner_email"`
}

// LinkSummary is the short form of an imported link used in the completion
// notification.
type LinkSummary struct {
	Domain string `db:"domain"`
	Key    string `db:"key"`
	URL    string `db:"url"`
}

// ShortURL renders the summary as domain/key.
func (s LinkSummary) ShortURL() string {
	return s.Domain + "/" + s.Key
}
