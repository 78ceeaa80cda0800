package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/friendsincode/grimnir_scanner/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.CatalogEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db, zerolog.Nop())
}

func TestPutInsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.CatalogEntry{
		ID:        "AMB/CLIP",
		MediaPath: "/media/AMB/CLIP.mp4",
		MediaSize: 1000,
		MediaTime: 42,
		CINF:      "\"AMB/CLIP\" MOVIE 1000 19700101000000 50 1/25\r\n",
	}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if entry.Revision != 1 {
		t.Fatalf("revision after insert = %d, want 1", entry.Revision)
	}

	got, err := store.Get(ctx, "AMB/CLIP")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MediaPath != entry.MediaPath || got.CINF != entry.CINF || got.Revision != 1 {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestGetMissingEntry(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "NOPE")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPutInsertConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := &models.CatalogEntry{ID: "CLIP", MediaPath: "/media/CLIP.mp4"}
	if err := store.Put(ctx, first); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// A second zero-revision write for the same id must lose, not clobber.
	second := &models.CatalogEntry{ID: "CLIP", MediaPath: "/media/other/CLIP.mp4"}
	if err := store.Put(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if second.Revision != 0 {
		t.Fatalf("loser revision mutated to %d", second.Revision)
	}

	got, _ := store.Get(ctx, "CLIP")
	if got.MediaPath != "/media/CLIP.mp4" {
		t.Fatalf("winner clobbered: %q", got.MediaPath)
	}
}

func TestPutUpdateBumpsRevision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.CatalogEntry{ID: "CLIP", MediaSize: 100}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatal(err)
	}

	entry.MediaSize = 200
	if err := store.Put(ctx, entry); err != nil {
		t.Fatalf("update: %v", err)
	}
	if entry.Revision != 2 {
		t.Fatalf("revision after update = %d, want 2", entry.Revision)
	}

	got, _ := store.Get(ctx, "CLIP")
	if got.MediaSize != 200 || got.Revision != 2 {
		t.Fatalf("update not persisted: %+v", got)
	}
}

func TestPutStaleRevisionConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.CatalogEntry{ID: "CLIP", MediaSize: 100}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatal(err)
	}

	stale := *entry
	entry.MediaSize = 200
	if err := store.Put(ctx, entry); err != nil {
		t.Fatal(err)
	}

	stale.MediaSize = 999
	if err := store.Put(ctx, &stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	got, _ := store.Get(ctx, "CLIP")
	if got.MediaSize != 200 {
		t.Fatalf("stale write landed: %+v", got)
	}
}

func TestRemoveGuardedByRevision(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.CatalogEntry{ID: "CLIP"}
	if err := store.Put(ctx, entry); err != nil {
		t.Fatal(err)
	}

	if err := store.Remove(ctx, "CLIP", entry.Revision+1); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale remove: err = %v, want ErrConflict", err)
	}
	if _, err := store.Get(ctx, "CLIP"); err != nil {
		t.Fatalf("entry gone after guarded miss: %v", err)
	}

	if err := store.Remove(ctx, "CLIP", entry.Revision); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.Get(ctx, "CLIP"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("entry survived removal: %v", err)
	}
}

func TestListPagePagination(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ids := []string{"A", "B", "C", "D", "E"}
	for _, id := range ids {
		if err := store.Put(ctx, &models.CatalogEntry{ID: id}); err != nil {
			t.Fatal(err)
		}
	}

	page, hasMore, err := store.ListPage(ctx, "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "A" || page[1].ID != "B" || !hasMore {
		t.Fatalf("first page = %v hasMore=%v", page, hasMore)
	}

	page, hasMore, err = store.ListPage(ctx, "B", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != "C" || !hasMore {
		t.Fatalf("second page = %v hasMore=%v", page, hasMore)
	}

	page, hasMore, err = store.ListPage(ctx, "D", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].ID != "E" || hasMore {
		t.Fatalf("last page = %v hasMore=%v", page, hasMore)
	}
}

func TestBulkDeleteAndCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B", "C"} {
		if err := store.Put(ctx, &models.CatalogEntry{ID: id}); err != nil {
			t.Fatal(err)
		}
	}

	if err := store.BulkDelete(ctx, []string{"A", "C", "MISSING"}); err != nil {
		t.Fatalf("bulk delete: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
	if _, err := store.Get(ctx, "B"); err != nil {
		t.Fatalf("survivor missing: %v", err)
	}

	if err := store.BulkDelete(ctx, nil); err != nil {
		t.Fatalf("empty bulk delete: %v", err)
	}
}
