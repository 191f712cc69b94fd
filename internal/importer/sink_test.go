package importer_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/northlink/link-importer/internal/domain"
	"github.com/northlink/link-importer/internal/importer"
	"github.com/northlink/link-importer/internal/kv"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/storage"
)

func newTestStore(t *testing.T) (*kv.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return kv.NewStore(client, logger.NewNop()), mr
}

func newTestRepo(t *testing.T) (*storage.Repository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	return storage.NewRepository(sqlxDB, logger.NewNop()), mock
}

func TestSinkPersist(t *testing.T) {
	store, mr := newTestStore(t)
	repo, mock := newTestRepo(t)
	sink := importer.NewSink(store, repo, logger.NewNop())
	ctx := context.Background()

	links := []domain.NormalizedLink{
		{Domain: "nl.ink", Key: "a", URL: "https://example.com/a?x=1&y=2"},
		{Domain: "nl.ink", Key: "b", URL: "https://example.com/b"},
	}

	mock.ExpectExec("INSERT INTO links").
		WillReturnResult(sqlmock.NewResult(0, 2))

	inserted, err := sink.Persist(ctx, links)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	// Each link's slot is claimed with its query-escaped destination.
	val, err := mr.Get("nl.ink:a")
	if err != nil {
		t.Fatalf("claim key missing: %v", err)
	}
	if val != "https%3A%2F%2Fexample.com%2Fa%3Fx%3D1%26y%3D2" {
		t.Errorf("claim value = %q, want query-escaped URL", val)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSinkPersistReplayInsertsNothing(t *testing.T) {
	store, mr := newTestStore(t)
	repo, mock := newTestRepo(t)
	sink := importer.NewSink(store, repo, logger.NewNop())
	ctx := context.Background()

	links := []domain.NormalizedLink{
		{Domain: "nl.ink", Key: "a", URL: "https://example.com/a"},
	}

	mock.ExpectExec("INSERT INTO links").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The replay conflicts on (domain, key) and affects zero rows.
	mock.ExpectExec("INSERT INTO links").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := sink.Persist(ctx, links)
	if err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}
	second, err := sink.Persist(ctx, links)
	if err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}

	if first != 1 || second != 0 {
		t.Errorf("inserted = %d then %d, want 1 then 0", first, second)
	}

	// The original claim survives the replay untouched.
	if val, _ := mr.Get("nl.ink:a"); val != "https%3A%2F%2Fexample.com%2Fa" {
		t.Errorf("claim value changed on replay: %q", val)
	}
}

func TestSinkPersistEmptyBatch(t *testing.T) {
	store, _ := newTestStore(t)
	repo, _ := newTestRepo(t)
	sink := importer.NewSink(store, repo, logger.NewNop())

	inserted, err := sink.Persist(context.Background(), nil)
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d, want 0", inserted)
	}
}
