package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scanner/internal/events"
	"github.com/friendsincode/grimnir_scanner/internal/models"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestSweepDeletesMissingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "KEEP.mp4"))

	store := newFakeStore()
	store.listPages = [][]models.CatalogEntry{{
		{ID: "GONE", MediaPath: filepath.Join(root, "GONE.mp4")},
		{ID: "KEEP", MediaPath: filepath.Join(root, "KEEP.mp4")},
	}}
	store.listPageMore = []bool{false}

	bus := events.NewBus()
	removed := bus.Subscribe(events.EventMediaRemoved)
	done := bus.Subscribe(events.EventSweepDone)

	sweep := NewSweep(store, []string{root}, 256, bus, zerolog.Nop())
	result, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if result.Checked != 2 || result.Deleted != 1 || result.Skipped != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(store.deletedIDs) != 1 || store.deletedIDs[0] != "GONE" {
		t.Fatalf("deleted ids = %v", store.deletedIDs)
	}

	select {
	case payload := <-removed:
		if payload["id"] != "GONE" {
			t.Fatalf("removed payload = %v", payload)
		}
	default:
		t.Fatal("media.removed not published")
	}
	select {
	case <-done:
	default:
		t.Fatal("sweep.done not published")
	}
}

func TestSweepSkipsEntriesOutsideRoots(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()

	store := newFakeStore()
	store.listPages = [][]models.CatalogEntry{{
		{ID: "FOREIGN", MediaPath: filepath.Join(other, "FOREIGN.mp4")},
	}}
	store.listPageMore = []bool{false}

	sweep := NewSweep(store, []string{root}, 256, events.NewBus(), zerolog.Nop())
	result, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if result.Skipped != 1 || result.Deleted != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(store.deletedIDs) != 0 {
		t.Fatalf("out-of-root entry deleted: %v", store.deletedIDs)
	}
}

func TestSweepDirectoryEntryIsDeleted(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "SUBDIR")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	store := newFakeStore()
	store.listPages = [][]models.CatalogEntry{{
		{ID: "SUBDIR", MediaPath: sub},
	}}
	store.listPageMore = []bool{false}

	sweep := NewSweep(store, []string{root}, 256, events.NewBus(), zerolog.Nop())
	result, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if result.Deleted != 1 {
		t.Fatalf("directory-backed entry survived: %+v", result)
	}
}

func TestSweepWalksAllPages(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "A.mp4"))

	store := newFakeStore()
	store.listPages = [][]models.CatalogEntry{
		{{ID: "A", MediaPath: filepath.Join(root, "A.mp4")}},
		{{ID: "B", MediaPath: filepath.Join(root, "B.mp4")}},
	}
	store.listPageMore = []bool{true, false}

	sweep := NewSweep(store, []string{root}, 1, events.NewBus(), zerolog.Nop())
	result, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if result.Checked != 2 {
		t.Fatalf("checked = %d, want 2", result.Checked)
	}
	if result.Deleted != 1 || store.deletedIDs[0] != "B" {
		t.Fatalf("result = %+v deleted=%v", result, store.deletedIDs)
	}
}
