package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/storage"
)

func newRepo(t *testing.T) (*storage.Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return storage.NewRepository(sqlxDB, logger.NewNop()), mock
}

func testLinks(n int) []domain.NormalizedLink {
	links := make([]domain.NormalizedLink, 0, n)
	for i := 0; i < n; i++ {
		links = append(links, domain.NormalizedLink{
			WorkspaceID: "ws-1",
			UserID:      "user-1",
			Domain:      "nl.ink",
			Key:         fmt.Sprintf("k%d", i),
			URL:         fmt.Sprintf("https://example.com/%d", i),
		})
	}
	return links
}

func TestBulkInsertLinksChunksAndSums(t *testing.T) {
	repo, mock := newRepo(t)
	ctx := context.Background()

	// 120 links insert as chunks of 50, 50, and 20; the middle chunk hits
	// five duplicates.
	mock.ExpectExec("INSERT INTO links").WillReturnResult(sqlmock.NewResult(0, 50))
	mock.ExpectExec("INSERT INTO links").WillReturnResult(sqlmock.NewResult(0, 45))
	mock.ExpectExec("INSERT INTO links").WillReturnResult(sqlmock.NewResult(0, 20))

	inserted, err := repo.BulkInsertLinks(ctx, testLinks(120))
	if err != nil {
		t.Fatalf("BulkInsertLinks() error = %v", err)
	}
	if inserted != 115 {
		t.Errorf("inserted = %d, want 115", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestBulkInsertLinksEmpty(t *testing.T) {
	repo, mock := newRepo(t)

	inserted, err := repo.BulkInsertLinks(context.Background(), nil)
	if err != nil {
		t.Fatalf("BulkInsertLinks() error = %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no statements expected: %v", err)
	}
}

func TestBulkCreateTags(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("INSERT INTO tags").
		WithArgs("t1", "ws-1", "marketing", "blue", "t2", "ws-1", "eng", "red").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.BulkCreateTags(context.Background(), []storage.Tag{
		{ID: "t1", WorkspaceID: "ws-1", Name: "marketing", Color: "blue"},
		{ID: "t2", WorkspaceID: "ws-1", Name: "eng", Color: "red"},
	})
	if err != nil {
		t.Fatalf("BulkCreateTags() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTagMapping(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT id, name FROM tags").
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow("t1", "marketing").
			AddRow("t2", "eng"))

	mapping, err := repo.TagMapping(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("TagMapping() error = %v", err)
	}
	if mapping["marketing"] != "t1" || mapping["eng"] != "t2" {
		t.Errorf("mapping = %v", mapping)
	}
}

func TestDeleteUnusedTags(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectExec("DELETE FROM tags").
		WithArgs("ws-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	removed, err := repo.DeleteUnusedTags(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("DeleteUnusedTags() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
}

func TestWorkspace(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT w.id, w.slug, w.owner_id").
		WithArgs("ws-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "slug", "owner_id", "owner_email"}).
			AddRow("ws-1", "acme", "user-1", "owner@acme.test"))

	ws, err := repo.Workspace(context.Background(), "ws-1")
	if err != nil {
		t.Fatalf("Workspace() error = %v", err)
	}
	if ws.Slug != "acme" || ws.OwnerEmail != "owner@acme.test" {
		t.Errorf("workspace = %+v", ws)
	}
}

func TestWorkspaceNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT w.id, w.slug, w.owner_id").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Workspace(context.Background(), "nope")
	if !errors.Is(err, storage.ErrWorkspaceNotFound) {
		t.Errorf("error = %v, want ErrWorkspaceNotFound", err)
	}
}

func TestRecentLinks(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT domain, key, url").
		WillReturnRows(sqlmock.NewRows([]string{"domain", "key", "url"}).
			AddRow("nl.ink", "a", "https://example.com/a").
			AddRow("nl.ink", "b", "https://example.com/b"))

	links, err := repo.RecentLinks(context.Background(), "ws-1", []string{"nl.ink"}, 5)
	if err != nil {
		t.Fatalf("RecentLinks() error = %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	if links[0].ShortURL() != "nl.ink/a" {
		t.Errorf("ShortURL() = %q", links[0].ShortURL())
	}
}
