// Package provider contains the source platform adapters the import pipeline
// fetches pages from. Each adapter implements the Provider interface once for
// its pagination dialect; there is no plugin system.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/northlink/link-importer/internal/domain"
)

// PaginationStyle distinguishes the pagination dialects adapters speak.
type PaginationStyle int

const (
	// PaginationCursor pages with an opaque provider-supplied token.
	PaginationCursor PaginationStyle = iota
	// PaginationOffset pages with a numeric offset encoded as the token.
	PaginationOffset
)

// ErrUnknownProvider is returned when a job message names a provider no
// adapter is registered for.
var ErrUnknownProvider = errors.New("unknown provider")

// Credentials are the workspace's stored provider credentials, looked up from
// the key-value store at the start of each invocation.
type Credentials struct {
	Token string `json:"token"`
	// HighVolume marks accounts imported with the batch fetch strategy.
	HighVolume bool `json:"highVolume,omitempty"`
}

// ParseCredentials decodes a stored credential value. Older dashboard
// versions stored the bare API token, so plain strings are accepted too.
func ParseCredentials(raw string) Credentials {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var creds Credentials
		if err := json.Unmarshal([]byte(trimmed), &creds); err == nil && creds.Token != "" {
			return creds
		}
	}
	return Credentials{Token: trimmed}
}

// Page is the result of one fetch invocation: the records collected, the
// cursor to resume from, and whether the invocation was rate limited before
// making any progress.
type Page struct {
	Records []domain.SourceRecord
	Next    domain.Cursor
	// RateLimited is true only when the first request was rejected; the
	// caller must retry the same cursor later.
	RateLimited bool
	// BatchCount is the number of provider pages consumed this invocation.
	BatchCount int
}

// TagPage is one page of the provider's tag taxonomy.
type TagPage struct {
	Tags []string
	Next domain.Cursor
}

// Provider is a source platform adapter.
type Provider interface {
	// Name is the provider id job messages select adapters by.
	Name() string
	// PaginationStyle reports the dialect the adapter paginates with.
	PaginationStyle() PaginationStyle
	// FetchPage returns one page (or one batch run) of link records.
	FetchPage(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*Page, error)
	// FetchTagPage returns one page of the provider's tag list in
	// reverse-name order.
	FetchTagPage(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*TagPage, error)
}

// Registry resolves provider ids to adapters.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Lookup returns the adapter registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}
