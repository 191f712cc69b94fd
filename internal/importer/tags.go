package importer

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/kv"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/provider"
	"github.com/northlink/link-importer/internal/storage"
)

// tagPalette is the fixed set of colors new tags are assigned from.
var tagPalette = []string{"red", "yellow", "green", "blue", "purple", "pink", "brown"}

// TagImporter performs the one-time import of a provider's tag taxonomy into
// the workspace. A key-value marker guards it so later link-import pages
// reuse the mapping instead of re-fetching.
type TagImporter struct {
	repo   *storage.Repository
	kv     *kv.Store
	logger logger.Logger
}

// NewTagImporter creates a TagImporter.
func NewTagImporter(repo *storage.Repository, store *kv.Store, log logger.Logger) *TagImporter {
	return &TagImporter{repo: repo, kv: store, logger: log}
}

// EnsureTags imports the provider's tags for the workspace unless the marker
// says that already happened, then returns the name to id mapping.
func (t *TagImporter) EnsureTags(ctx context.Context, job *domain.ImportJob, p provider.Provider, creds provider.Credentials) (map[string]string, error) {
	marker := kv.TagsImportedKey(job.Provider, job.WorkspaceID)

	imported, err := t.kv.Exists(ctx, marker)
	if err != nil {
		return nil, fmt.Errorf("check tag import marker: %w", err)
	}

	if !imported {
		if err := t.importAll(ctx, job, p, creds); err != nil {
			return nil, err
		}
		if err := t.kv.Set(ctx, marker, "1"); err != nil {
			return nil, fmt.Errorf("set tag import marker: %w", err)
		}
	}

	return t.repo.TagMapping(ctx, job.WorkspaceID)
}

// importAll pages through the provider's tag list until a page comes back
// empty, bulk-creating tags with skip-duplicate semantics as it goes.
func (t *TagImporter) importAll(ctx context.Context, job *domain.ImportJob, p provider.Provider, creds provider.Credentials) error {
	cursor := domain.StartCursor()
	total := 0

	for {
		page, err := p.FetchTagPage(ctx, creds, job.ProviderAccountID, cursor)
		if err != nil {
			return fmt.Errorf("fetch tag page: %w", err)
		}

		if len(page.Tags) == 0 {
			break
		}

		tags := make([]storage.Tag, 0, len(page.Tags))
		for _, name := range page.Tags {
			tags = append(tags, storage.Tag{
				ID:          uuid.NewString(),
				WorkspaceID: job.WorkspaceID,
				Name:        name,
				Color:       tagPalette[rand.IntN(len(tagPalette))],
			})
		}

		if err := t.repo.BulkCreateTags(ctx, tags); err != nil {
			return err
		}

		total += len(tags)
		if page.Next.Done() {
			break
		}
		cursor = page.Next
	}

	t.logger.Info("Imported provider tags",
		logger.String("workspace_id", job.WorkspaceID),
		logger.String("provider", job.Provider),
		logger.Int("count", total),
	)

	return nil
}
