package importer

import (
	"context"
	"fmt"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/kv"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/metrics"
	"github.com/northlink/link-importer/internal/provider"
	"github.com/northlink/link-importer/internal/storage"
)

// Pipeline runs one import invocation end to end: bounded work for one queue
// message, then a hand-off. It never loops over the whole import inline;
// continuation happens by enqueueing the next message.
type Pipeline struct {
	registry  *provider.Registry
	kv        *kv.Store
	repo      *storage.Repository
	sink      *Sink
	tags      *TagImporter
	scheduler *Scheduler
	logger    logger.Logger
	metrics   *metrics.Metrics
}

// NewPipeline wires the pipeline stages together.
func NewPipeline(
	registry *provider.Registry,
	store *kv.Store,
	repo *storage.Repository,
	sink *Sink,
	tags *TagImporter,
	scheduler *Scheduler,
	log logger.Logger,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		registry:  registry,
		kv:        store,
		repo:      repo,
		sink:      sink,
		tags:      tags,
		scheduler: scheduler,
		logger:    log,
		metrics:   m,
	}
}

// Run processes one job message: fetch a page (or batch run), normalize,
// persist, and either schedule the next page or finalize the job.
func (p *Pipeline) Run(ctx context.Context, msg domain.JobMessage) error {
	prov, err := p.registry.Lookup(msg.Provider)
	if err != nil {
		return err
	}

	// A deleted credential is how an operator cancels an import: the lookup
	// fails and the chain stops advancing.
	rawCreds, err := p.kv.Get(ctx, kv.CredentialsKey(msg.Provider, msg.WorkspaceID))
	if err != nil {
		return fmt.Errorf("lookup provider credentials: %w", err)
	}
	creds := provider.ParseCredentials(rawCreds)

	ws, err := p.repo.Workspace(ctx, msg.WorkspaceID)
	if err != nil {
		return err
	}

	job := &domain.ImportJob{
		WorkspaceID:       msg.WorkspaceID,
		UserID:            ws.OwnerID,
		Provider:          msg.Provider,
		ProviderAccountID: msg.ProviderAccountID,
		EligibleDomains:   msg.EligibleDomains,
		Cursor:            msg.ImportCursor(),
		Count:             msg.Count,
	}

	if msg.ImportTags {
		job.TagsByName, err = p.tags.EnsureTags(ctx, job, prov, creds)
		if err != nil {
			return err
		}
	}

	page, err := prov.FetchPage(ctx, creds, msg.ProviderAccountID, job.Cursor)
	if err != nil {
		return err
	}
	p.metrics.PagesFetched.Add(float64(page.BatchCount))

	if page.RateLimited {
		p.metrics.RateLimitHits.Inc()
		return p.scheduler.RetryAfterRateLimit(ctx, msg)
	}

	links := Normalize(job, page.Records)

	inserted, err := p.sink.Persist(ctx, links)
	if err != nil {
		return err
	}
	job.Count += inserted
	p.metrics.LinksImported.Add(float64(inserted))

	p.logger.Info("Imported page",
		logger.String("workspace_id", job.WorkspaceID),
		logger.String("provider", job.Provider),
		logger.Int("records", len(page.Records)),
		logger.Int("eligible", len(links)),
		logger.Int64("inserted", inserted),
		logger.Int("batch_pages", page.BatchCount),
	)

	if page.Next.Done() {
		return p.scheduler.Finalize(ctx, job, ws)
	}
	return p.scheduler.Continue(ctx, msg, page.Next, job.Count)
}
