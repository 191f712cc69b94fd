// Package storage provides PostgreSQL access for the link importer. The
// links table's (domain, key) uniqueness constraint is the durable dedup
// authority; every bulk write here skips conflicting rows instead of failing.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/logger"
)

// insertBatchSize is the maximum number of rows per INSERT statement.
const insertBatchSize = 50

// linkColumnsPerRow is the number of columns inserted per link row.
const linkColumnsPerRow = 10

// ErrWorkspaceNotFound is returned when a workspace id resolves to nothing.
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Repository provides database operations for links, tags, and workspaces.
type Repository struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewRepository creates a new repository.
func NewRepository(db *sqlx.DB, log logger.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Ping verifies database connectivity.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// BulkInsertLinks inserts normalized links, silently skipping rows that
// would violate the (domain, key) uniqueness constraint. It returns the
// number of rows actually inserted, which is what accumulates into the
// job's running total.
func (r *Repository) BulkInsertLinks(ctx context.Context, links []domain.NormalizedLink) (int64, error) {
	var inserted int64

	for start := 0; start < len(links); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(links) {
			end = len(links)
		}

		n, err := r.insertLinkBatch(ctx, links[start:end])
		if err != nil {
			return inserted, err
		}
		inserted += n
	}

	return inserted, nil
}

// insertLinkBatch builds and executes a single multi-row INSERT.
func (r *Repository) insertLinkBatch(ctx context.Context, links []domain.NormalizedLink) (int64, error) {
	if len(links) == 0 {
		return 0, nil
	}

	args := make([]any, 0, len(links)*linkColumnsPerRow)
	var sb strings.Builder

	sb.WriteString("INSERT INTO links (id, workspace_id, user_id, domain, key, " +
		"url, title, archived, tag_id, created_at) VALUES ")

	for i, link := range links {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeLinkTuple(&sb, i)

		var tagID any
		if link.TagID != "" {
			tagID = link.TagID
		}

		args = append(args,
			uuid.NewString(), link.WorkspaceID, link.UserID, link.Domain, link.Key,
			link.URL, nullableString(link.Title), link.Archived, tagID, link.CreatedAt,
		)
	}

	sb.WriteString(" ON CONFLICT (domain, key) DO NOTHING")

	res, err := r.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("exec bulk link insert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk link insert rows affected: %w", err)
	}
	return n, nil
}

// writeLinkTuple writes one ($1, ..., $10) placeholder tuple offset by the
// row index.
func writeLinkTuple(sb *strings.Builder, rowIndex int) {
	base := rowIndex * linkColumnsPerRow
	sb.WriteString("(")
	for col := 1; col <= linkColumnsPerRow; col++ {
		if col > 1 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "$%d", base+col)
	}
	sb.WriteString(")")
}

// Tag is one destination tag row.
type Tag struct {
	ID          string `db:"id"`
	WorkspaceID string `db:"workspace_id"`
	Name        string `db:"name"`
	Color       string `db:"color"`
}

// BulkCreateTags inserts tags, silently skipping names that already exist in
// the workspace. Safe to call repeatedly with overlapping pages.
func (r *Repository) BulkCreateTags(ctx context.Context, tags []Tag) error {
	if len(tags) == 0 {
		return nil
	}

	const columnsPerRow = 4
	args := make([]any, 0, len(tags)*columnsPerRow)
	var sb strings.Builder

	sb.WriteString("INSERT INTO tags (id, workspace_id, name, color) VALUES ")

	for i, tag := range tags {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * columnsPerRow
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		args = append(args, tag.ID, tag.WorkspaceID, tag.Name, tag.Color)
	}

	sb.WriteString(" ON CONFLICT (workspace_id, name) DO NOTHING")

	if _, err := r.db.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("exec bulk tag insert: %w", err)
	}
	return nil
}

// TagMapping returns the workspace's tag name to id lookup.
func (r *Repository) TagMapping(ctx context.Context, workspaceID string) (map[string]string, error) {
	var tags []Tag
	query := `SELECT id, name FROM tags WHERE workspace_id = $1`

	if err := r.db.SelectContext(ctx, &tags, query, workspaceID); err != nil {
		return nil, fmt.Errorf("select workspace tags: %w", err)
	}

	mapping := make(map[string]string, len(tags))
	for _, tag := range tags {
		mapping[tag.Name] = tag.ID
	}
	return mapping, nil
}

// DeleteUnusedTags removes workspace tags that ended up with zero links
// attached, cleaning up tags created speculatively during the import.
func (r *Repository) DeleteUnusedTags(ctx context.Context, workspaceID string) (int64, error) {
	query := `
		DELETE FROM tags t
		WHERE t.workspace_id = $1
		  AND NOT EXISTS (SELECT 1 FROM links l WHERE l.tag_id = t.id)
	`

	res, err := r.db.ExecContext(ctx, query, workspaceID)
	if err != nil {
		return 0, fmt.Errorf("delete unused tags: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete unused tags rows affected: %w", err)
	}
	return n, nil
}

// Workspace returns the workspace with its owner's contact details.
func (r *Repository) Workspace(ctx context.Context, workspaceID string) (*domain.Workspace, error) {
	var ws domain.Workspace
	query := `
		SELECT w.id, w.slug, w.owner_id, u.email AS owner_email
		FROM workspaces w
		JOIN users u ON u.id = w.owner_id
		WHERE w.id = $1
	`

	err := r.db.GetContext(ctx, &ws, query, workspaceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, workspaceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get workspace: %w", err)
	}
	return &ws, nil
}

// RecentLinks returns the workspace's most recently created links under the
// given domains, used as the sample in the completion notification.
func (r *Repository) RecentLinks(ctx context.Context, workspaceID string, domains []string, limit int) ([]domain.LinkSummary, error) {
	var links []domain.LinkSummary
	query := `
		SELECT domain, key, url
		FROM links
		WHERE workspace_id = $1 AND domain = ANY($2)
		ORDER BY created_at DESC
		LIMIT $3
	`

	if err := r.db.SelectContext(ctx, &links, query, workspaceID, pq.Array(domains), limit); err != nil {
		return nil, fmt.Errorf("select recent links: %w", err)
	}
	return links, nil
}

// nullableString maps the empty string to NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
