package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/northlink/link-importer/internal/config"
	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/httpx"
	"github.com/northlink/link-importer/internal/logger"
)

const (
	rebrandlyPageSize    = 25
	rebrandlyTagPageSize = 25
)

// Rebrandly is the adapter for Rebrandly-style APIs: numeric offset
// pagination and top-level JSON arrays instead of envelopes. The offset is
// carried as the cursor token so the pipeline shape stays identical.
type Rebrandly struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  logger.Logger
}

// NewRebrandly creates the Rebrandly adapter.
func NewRebrandly(cfg config.ProviderConfig, log logger.Logger) *Rebrandly {
	return &Rebrandly{
		baseURL: cfg.BaseURL,
		client:  httpx.NewClient(&httpx.ClientConfig{Timeout: cfg.Timeout}),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		logger:  log,
	}
}

// Name returns the provider id.
func (r *Rebrandly) Name() string {
	return "rebrandly"
}

// PaginationStyle returns the offset dialect.
func (r *Rebrandly) PaginationStyle() PaginationStyle {
	return PaginationOffset
}

type rebrandlyLink struct {
	ID          string `json:"id"`
	SlashTag    string `json:"slashtag"`
	Destination string `json:"destination"`
	Title       string `json:"title"`
	CreatedAt   string `json:"createdAt"`
	DomainName  string `json:"domainName"`
	Favourite   bool   `json:"favourite"`
	Tags        []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// FetchPage fetches one page of links. Rebrandly accounts are never flagged
// high volume, so the batch strategy does not apply here.
func (r *Rebrandly) FetchPage(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*Page, error) {
	offset := offsetFromCursor(cursor)

	body, rateLimited, err := r.get(ctx, creds, "/v1/links", map[string]string{
		"limit":    strconv.Itoa(rebrandlyPageSize),
		"offset":   strconv.Itoa(offset),
		"orderBy":  "createdAt",
		"orderDir": "desc",
	})
	if err != nil {
		return nil, err
	}
	if rateLimited {
		return &Page{Next: cursor, RateLimited: true}, nil
	}

	var links []rebrandlyLink
	if err := json.Unmarshal(body, &links); err != nil {
		// Response drift reads as end-of-data, not an error.
		r.logger.Warn("Unexpected links response shape, treating as end of data",
			logger.Int("offset", offset),
		)
		return &Page{Next: domain.DoneCursor(), BatchCount: 1}, nil
	}

	records := make([]domain.SourceRecord, 0, len(links))
	for _, link := range links {
		records = append(records, mapRebrandlyLink(link))
	}

	next := domain.DoneCursor()
	if len(links) == rebrandlyPageSize {
		next = domain.ResumeCursor(strconv.Itoa(offset + len(links)))
	}

	return &Page{Records: records, Next: next, BatchCount: 1}, nil
}

// FetchTagPage fetches one page of the account's tags in reverse-name order.
func (r *Rebrandly) FetchTagPage(ctx context.Context, creds Credentials, accountID string, cursor domain.Cursor) (*TagPage, error) {
	offset := offsetFromCursor(cursor)

	body, rateLimited, err := r.get(ctx, creds, "/v1/tags", map[string]string{
		"limit":    strconv.Itoa(rebrandlyTagPageSize),
		"offset":   strconv.Itoa(offset),
		"orderBy":  "name",
		"orderDir": "desc",
	})
	if err != nil {
		return nil, err
	}
	if rateLimited {
		return nil, fmt.Errorf("rebrandly rate limited fetching tags")
	}

	var tags []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return &TagPage{Next: domain.DoneCursor()}, nil
	}

	page := &TagPage{Next: domain.DoneCursor()}
	for _, t := range tags {
		page.Tags = append(page.Tags, t.Name)
	}
	if len(tags) == rebrandlyTagPageSize {
		page.Next = domain.ResumeCursor(strconv.Itoa(offset + len(tags)))
	}
	return page, nil
}

// get performs one rate-limited GET and reports 429 as a flag, not an error.
func (r *Rebrandly) get(ctx context.Context, creds Credentials, path string, params map[string]string) ([]byte, bool, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limiter wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+path, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("apikey", creds.Token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("rebrandly returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return body, false, nil
}

func mapRebrandlyLink(link rebrandlyLink) domain.SourceRecord {
	tags := make([]string, 0, len(link.Tags))
	for _, t := range link.Tags {
		tags = append(tags, t.Name)
	}

	createdAt, err := time.Parse(time.RFC3339, link.CreatedAt)
	if err != nil {
		createdAt = time.Now().UTC()
	}

	return domain.SourceRecord{
		ID:        link.DomainName + "/" + link.SlashTag,
		URL:       link.Destination,
		Title:     link.Title,
		CreatedAt: createdAt,
		Tags:      tags,
	}
}

// offsetFromCursor decodes the numeric offset token; anything unparseable
// restarts from the beginning, which the sink's dedup makes harmless.
func offsetFromCursor(cursor domain.Cursor) int {
	if !cursor.Started() {
		return 0
	}
	offset, err := strconv.Atoi(cursor.Token())
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}
