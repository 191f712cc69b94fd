package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/northlink/link-importer/internal/config"
	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/httpx"
	"github.com/northlink/link-importer/internal/logger"
)

const (
	// bitlyPageSize is the fixed page size for bulk listing requests.
	bitlyPageSize = 100
	// bitlyBatchCeiling caps consecutive requests per invocation for
	// high-volume accounts.
	bitlyBatchCeiling = 10
	// bitlyTagPageSize is the page size for tag list requests.
	bitlyTagPageSize = 100

	// payloadSnippetLen bounds how much offending text an unparseable page
	// error carries into the operator log.
	payloadSnippetLen = 256
)

// ErrUnparseablePage is returned when a payload still fails to parse after
// sanitization. Fatal for the page: the job must not auto-advance past it.
var ErrUnparseablePage = errors.New("provider payload unparseable after sanitization")

// Bitly is the adapter for Bitly-style APIs: opaque search_after cursors and
// a group-scoped bulk listing endpoint.
type Bitly struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewBitly creates the Bitly adapter.
func NewBitly(cfg config.ProviderConfig, log logger.Logger) *Bitly {
	return &Bitly{
		baseURL: cfg.BaseURL,
		client:  httpx.NewClient(&httpx.ClientConfig{Timeout: cfg.Timeout}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		logger:  log,
	}
}

// Name returns the provider id.
func (b *Bitly) Name() string {
	return "bitly"
}

// PaginationStyle returns the cursor dialect.
func (b *Bitly) PaginationStyle() PaginationStyle {
	return PaginationCursor
}

// FetchPage fetches one page for standard accounts, or a bounded run of
// pages for accounts flagged as high volume.
func (b *Bitly) FetchPage(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*Page, error) {
	if creds.HighVolume {
		return b.fetchBatch(ctx, creds, accountID, cursor)
	}
	return b.fetchStandard(ctx, creds, accountID, cursor)
}

// fetchStandard issues exactly one listing request.
func (b *Bitly) fetchStandard(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*Page, error) {
	rp, err := b.fetchOne(ctx, creds, accountID, cursor)
	if err != nil {
		return nil, err
	}
	if rp.rateLimited {
		// Progress must not be lost: hand back the cursor unchanged.
		return &Page{Next: cursor, RateLimited: true}, nil
	}
	return &Page{Records: rp.records, Next: rp.next, BatchCount: 1}, nil
}

// fetchBatch issues up to bitlyBatchCeiling consecutive requests, advancing
// the cursor after each. It stops early on a short page (exhaustion signal)
// and truncates on any failure beyond the first request, returning whatever
// was accumulated.
func (b *Bitly) fetchBatch(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*Page, error) {
	var records []domain.SourceRecord
	current := cursor
	count := 0

	for i := 0; i < bitlyBatchCeiling; i++ {
		rp, err := b.fetchOne(ctx, creds, accountID, current)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			b.logger.Warn("Truncating batch after mid-batch failure",
				logger.Int("pages_collected", count),
				logger.Error(err),
			)
			break
		}

		if rp.rateLimited {
			if i == 0 {
				return &Page{Next: cursor, RateLimited: true}, nil
			}
			b.logger.Debug("Rate limited mid-batch, returning partial results",
				logger.Int("pages_collected", count),
			)
			break
		}

		count++
		records = append(records, rp.records...)
		current = rp.next

		if current.Done() || len(rp.records) < bitlyPageSize {
			break
		}
	}

	return &Page{Records: records, Next: current, BatchCount: count}, nil
}

// bitlyListResponse is the bulk listing response shape. Pointer fields so a
// response missing them reads as end-of-data rather than an error.
type bitlyListResponse struct {
	Links      []bitlyLink      `json:"links"`
	Pagination *bitlyPagination `json:"pagination"`
}

type bitlyPagination struct {
	SearchAfter string `json:"search_after"`
}

type bitlyLink struct {
	ID             string   `json:"id"`
	LongURL        string   `json:"long_url"`
	Title          string   `json:"title"`
	Archived       bool     `json:"archived"`
	CreatedAt      string   `json:"created_at"`
	CustomBitlinks []string `json:"custom_bitlinks"`
	Tags           []string `json:"tags"`
}

type rawPage struct {
	records     []domain.SourceRecord
	next        domain.Cursor
	rateLimited bool
}

// fetchOne performs a single rate-limited listing request.
func (b *Bitly) fetchOne(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*rawPage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v4/groups/%s/bitlinks", b.baseURL, url.PathEscape(accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("size", fmt.Sprintf("%d", bitlyPageSize))
	if cursor.Started() {
		q.Set("search_after", cursor.Token())
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bitlinks page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &rawPage{next: cursor, rateLimited: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bitly returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read bitlinks page: %w", err)
	}

	sanitized := Sanitize(string(body))

	var listResp bitlyListResponse
	if err := json.Unmarshal([]byte(sanitized), &listResp); err != nil {
		return nil, fmt.Errorf("%w: %v: %q", ErrUnparseablePage, err, snippet(sanitized))
	}

	// Response drift: missing top-level fields mean "no more records".
	if listResp.Links == nil || listResp.Pagination == nil {
		return &rawPage{next: domain.DoneCursor()}, nil
	}

	records := make([]domain.SourceRecord, 0, len(listResp.Links))
	for _, link := range listResp.Links {
		records = append(records, mapBitlyLink(link))
	}

	return &rawPage{
		records: records,
		next:    domain.NextCursor(listResp.Pagination.SearchAfter),
	}, nil
}

// FetchTagPage fetches one page of the group's tag list, newest names first.
func (b *Bitly) FetchTagPage(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*TagPage, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v4/groups/%s/tags", b.baseURL, url.PathEscape(accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	q.Set("size", fmt.Sprintf("%d", bitlyTagPageSize))
	q.Set("sort", "-name")
	if cursor.Started() {
		q.Set("search_after", cursor.Token())
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch tags page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bitly returned status %d", resp.StatusCode)
	}

	var tagsResp struct {
		Tags       []string         `json:"tags"`
		Pagination *bitlyPagination `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tagsResp); err != nil {
		return nil, fmt.Errorf("decode tags page: %w", err)
	}

	page := &TagPage{Tags: tagsResp.Tags, Next: domain.DoneCursor()}
	if tagsResp.Pagination != nil {
		page.Next = domain.NextCursor(tagsResp.Pagination.SearchAfter)
	}
	return page, nil
}

// mapBitlyLink maps a provider link into the source record shape.
func mapBitlyLink(link bitlyLink) domain.SourceRecord {
	return domain.SourceRecord{
		ID:        link.ID,
		URL:       link.LongURL,
		Title:     link.Title,
		Archived:  link.Archived,
		CreatedAt: parseBitlyTime(link.CreatedAt),
		Aliases:   link.CustomBitlinks,
		Tags:      link.Tags,
	}
}

// parseBitlyTime handles both RFC 3339 and the provider's zone format
// without a colon ("+0000"). Unparseable timestamps fall back to now so the
// record still imports.
func parseBitlyTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05-0700", value); err == nil {
		return t
	}
	return time.Now().UTC()
}

// snippet truncates offending payload text for error messages.
func snippet(s string) string {
	if len(s) > payloadSnippetLen {
		return s[:payloadSnippetLen] + "..."
	}
	return s
}
