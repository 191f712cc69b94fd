package importer

import (
	"context"
	"time"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/kv"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/mail"
	"github.com/northlink/link-importer/internal/metrics"
	"github.com/northlink/link-importer/internal/storage"
)

const (
	// continuationDelay keeps successive invocations under the provider's
	// rate limit.
	continuationDelay = 500 * time.Millisecond
	// rateLimitRetryDelay is how long to back off before retrying the same
	// cursor after the provider rejected the first request.
	rateLimitRetryDelay = 5 * time.Second
	// sampleLinkCount is how many links the completion email shows.
	sampleLinkCount = 5
)

// Enqueuer publishes a job message to the durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msg domain.JobMessage, delay time.Duration) error
}

// CompletionSender delivers the completion notification.
type CompletionSender interface {
	SendImportComplete(ctx context.Context, n mail.CompletionNotification) error
}

// Scheduler decides whether an invocation's work continues as a new queue
// message or finalizes the job with cleanup and notification.
type Scheduler struct {
	queue   Enqueuer
	kv      *kv.Store
	repo    *storage.Repository
	mailer  CompletionSender
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	queue Enqueuer,
	store *kv.Store,
	repo *storage.Repository,
	mailer CompletionSender,
	log logger.Logger,
	m *metrics.Metrics,
) *Scheduler {
	return &Scheduler{
		queue:   queue,
		kv:      store,
		repo:    repo,
		mailer:  mailer,
		logger:  log,
		metrics: m,
	}
}

// Continue enqueues the next invocation carrying the advanced cursor and the
// accumulated count. Only called after this invocation's writes committed,
// so page order stays monotonic.
func (s *Scheduler) Continue(ctx context.Context, msg domain.JobMessage, next domain.Cursor, count int64) error {
	s.logger.Info("Scheduling next import page",
		logger.String("workspace_id", msg.WorkspaceID),
		logger.String("provider", msg.Provider),
		logger.Int64("count", count),
	)
	return s.queue.Enqueue(ctx, msg.Continue(next, count), continuationDelay)
}

// RetryAfterRateLimit re-enqueues the message unchanged so the same cursor
// is retried after a backoff. No progress is lost.
func (s *Scheduler) RetryAfterRateLimit(ctx context.Context, msg domain.JobMessage) error {
	s.logger.Warn("Provider rate limited, retrying same cursor",
		logger.String("workspace_id", msg.WorkspaceID),
		logger.String("provider", msg.Provider),
	)
	return s.queue.Enqueue(ctx, msg, rateLimitRetryDelay)
}

// Finalize runs the terminal step of an import: credential and marker
// cleanup, removal of tags that never got a link, and the single completion
// notification. A notification failure does not fail the import; the links
// are already durably persisted.
func (s *Scheduler) Finalize(ctx context.Context, job *domain.ImportJob, ws *domain.Workspace) error {
	// The import secret must not outlive the job.
	keys := []string{
		kv.CredentialsKey(job.Provider, job.WorkspaceID),
		kv.TagsImportedKey(job.Provider, job.WorkspaceID),
	}
	if err := s.kv.Delete(ctx, keys...); err != nil {
		return err
	}

	removed, err := s.repo.DeleteUnusedTags(ctx, job.WorkspaceID)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logger.Info("Removed unused imported tags",
			logger.String("workspace_id", job.WorkspaceID),
			logger.Int64("removed", removed),
		)
	}

	sample, err := s.repo.RecentLinks(ctx, job.WorkspaceID, job.EligibleDomains, sampleLinkCount)
	if err != nil {
		s.logger.Warn("Failed to load sample links for notification",
			logger.String("workspace_id", job.WorkspaceID),
			logger.Error(err),
		)
		sample = nil
	}

	notification := mail.CompletionNotification{
		To:        ws.OwnerEmail,
		Workspace: ws.Slug,
		Provider:  job.Provider,
		Total:     job.Count,
		Domains:   job.EligibleDomains,
		Links:     sample,
	}

	if err := s.mailer.SendImportComplete(ctx, notification); err != nil {
		s.logger.Error("Completion notification failed, import still complete",
			logger.String("workspace_id", job.WorkspaceID),
			logger.Error(err),
		)
	}

	s.metrics.JobsFinalized.Inc()
	s.logger.Info("Import finalized",
		logger.String("workspace_id", job.WorkspaceID),
		logger.String("provider", job.Provider),
		logger.Int64("total", job.Count),
	)

	return nil
}
