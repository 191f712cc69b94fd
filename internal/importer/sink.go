package importer

import (
	"context"
	"net/url"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/kv"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/storage"
)

// Sink writes normalized links exactly once. Two independent writes are
// always attempted: a key-value claim per link, and one bulk relational
// insert with skip-duplicate semantics. Replaying a page inserts nothing on
// the second pass.
type Sink struct {
	kv     *kv.Store
	repo   *storage.Repository
	logger logger.Logger
}

// NewSink creates a Sink.
func NewSink(store *kv.Store, repo *storage.Repository, log logger.Logger) *Sink {
	return &Sink{kv: store, repo: repo, logger: log}
}

// Persist claims every link's slot in the key-value store and bulk-inserts
// the batch. The relational write proceeds even when claims fail; the claim
// is an audit trail, not the dedup authority. Returns the number of rows
// actually inserted.
func (s *Sink) Persist(ctx context.Context, links []domain.NormalizedLink) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}

	for _, link := range links {
		key := kv.ClaimKey(link.Domain, link.Key)
		if _, err := s.kv.Claim(ctx, key, url.QueryEscape(link.URL)); err != nil {
			s.logger.Warn("Dedup claim failed, continuing with relational insert",
				logger.String("key", key),
				logger.Error(err),
			)
		}
	}

	inserted, err := s.repo.BulkInsertLinks(ctx, links)
	if err != nil {
		return inserted, err
	}

	if skipped := int64(len(links)) - inserted; skipped > 0 {
		s.logger.Debug("Skipped duplicate links",
			logger.Int64("skipped", skipped),
			logger.Int64("inserted", inserted),
		)
	}

	return inserted, nil
}
