package sweep

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func storePaths(t *testing.T) (string, string) {
	t.Helper()
	tmp := t.TempDir()
	localDir := filepath.Join(tmp, "local")
	sharedDir := filepath.Join(tmp, "shared")
	for _, dir := range []string{localDir, sharedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return filepath.Join(localDir, "sweep.db"), filepath.Join(sharedDir, "sweep.db")
}

func TestInitTrackingStore_CreatesEmptyStore(t *testing.T) {
	local, shared := storePaths(t)

	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if _, err := os.Stat(local); err != nil {
		t.Fatalf("expected local store file: %v", err)
	}
	var count int64
	if err := store.db.Model(&ProcessedFile{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("expected empty store, got %d processed files", count)
	}
}

func TestInitTrackingStore_RefusesExistingStore(t *testing.T) {
	local, shared := storePaths(t)

	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	store.Close()

	if _, err := InitTrackingStore(nil, local, shared); !errors.Is(err, ErrStoreExists) {
		t.Fatalf("expected ErrStoreExists for existing local copy, got %v", err)
	}

	// A shared copy alone must also block init: another operator may depend
	// on it.
	if err := os.Remove(local); err != nil {
		t.Fatal(err)
	}
	otherLocal := filepath.Join(t.TempDir(), "sweep.db")
	first, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Sync(); err != nil {
		t.Fatal(err)
	}
	first.Close()
	if _, err := InitTrackingStore(nil, otherLocal, shared); !errors.Is(err, ErrStoreExists) {
		t.Fatalf("expected ErrStoreExists for existing shared copy, got %v", err)
	}
}

func TestOpenTrackingStore_UnavailableWithoutAnyCopy(t *testing.T) {
	local, shared := storePaths(t)
	if _, err := OpenTrackingStore(nil, local, shared); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestOpenTrackingStore_PullsSharedWhenLocalMissing(t *testing.T) {
	local, shared := storePaths(t)

	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RecordKept(41, "kept all 2 instances"); err != nil {
		t.Fatal(err)
	}
	if err := store.Sync(); err != nil {
		t.Fatal(err)
	}
	store.Close()
	if err := os.Remove(local); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	done, err := reopened.IsProcessed(41)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatalf("expected decision pulled down from shared copy")
	}
}

func TestOpenTrackingStore_PullsNewerShared(t *testing.T) {
	local, shared := storePaths(t)

	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.RecordKept(1, "kept all 2 instances"); err != nil {
		t.Fatal(err)
	}
	if err := store.Sync(); err != nil {
		t.Fatal(err)
	}
	// A local-only decision the shared copy never saw.
	if err := store.RecordKept(2, "kept all 2 instances"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	// Backdate local so the shared copy wins the staleness check.
	old := time.Now().Add(-1 * time.Hour)
	if err := os.Chtimes(local, old, old); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	done1, err := reopened.IsProcessed(1)
	if err != nil {
		t.Fatal(err)
	}
	done2, err := reopened.IsProcessed(2)
	if err != nil {
		t.Fatal(err)
	}
	if !done1 {
		t.Fatalf("expected shared decision present after pull")
	}
	if done2 {
		t.Fatalf("expected stale local decision replaced by shared copy")
	}
}

func TestOpenTrackingStore_KeepsNewerLocal(t *testing.T) {
	local, shared := storePaths(t)

	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordKept(7, "kept all 3 instances"); err != nil {
		t.Fatal(err)
	}
	store.Close()

	// Backdate the shared copy; the local one has the newest decisions.
	old := time.Now().Add(-1 * time.Hour)
	if err := os.Chtimes(shared, old, old); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	done, err := reopened.IsProcessed(7)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatalf("expected local decision preserved when local copy is newer")
	}
}

func TestRecordDeleted_CommitsAuditAndDecisionTogether(t *testing.T) {
	local, shared := storePaths(t)
	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	deletions := []Deletion{
		{Path: `N:\PPDO\Records\42xx\plan.pdf`, SizeBytes: 2048, GatewayRef: "ref-1"},
		{Path: `N:\PPDO\Records\49xx\plan.pdf`, SizeBytes: 2048, GatewayRef: "ref-2"},
	}
	if err := store.RecordDeleted(99, "deleted 2 of 3 instances", deletions); err != nil {
		t.Fatal(err)
	}

	var audits []DeletedFile
	if err := store.db.Order("id asc").Find(&audits).Error; err != nil {
		t.Fatal(err)
	}
	if len(audits) != 2 {
		t.Fatalf("expected 2 deleted_files rows, got %d", len(audits))
	}
	for i, a := range audits {
		if a.FileID != 99 {
			t.Fatalf("expected file_id=99 on audit row %d, got %d", i, a.FileID)
		}
		if a.GatewayRef == "" {
			t.Fatalf("expected gateway ref on audit row %d", i)
		}
	}

	var pf ProcessedFile
	if err := store.db.Where("file_id = ?", 99).First(&pf).Error; err != nil {
		t.Fatal(err)
	}
	if pf.Decision != DecisionDeleted {
		t.Fatalf("expected decision=%q, got %q", DecisionDeleted, pf.Decision)
	}
	if pf.Note != "deleted 2 of 3 instances" {
		t.Fatalf("unexpected note %q", pf.Note)
	}

	done, err := store.IsProcessed(99)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatalf("expected file 99 reviewed after deleted decision")
	}
}

func TestRecordDeleted_RequiresASuccessfulDeletion(t *testing.T) {
	local, shared := storePaths(t)
	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.RecordDeleted(5, "deleted 0 of 2 instances", nil); !errors.Is(err, ErrNoDeletions) {
		t.Fatalf("expected ErrNoDeletions, got %v", err)
	}
	done, err := store.IsProcessed(5)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatalf("expected no decision recorded without deletions")
	}
}

func TestRecordKept_RejectsSecondDecision(t *testing.T) {
	local, shared := storePaths(t)
	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.RecordKept(12, "kept all 2 instances"); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordKept(12, "kept all 2 instances"); err == nil {
		t.Fatalf("expected unique index to reject a second decision for the same file")
	}
}

func TestSync_PublishesSnapshotOnDemand(t *testing.T) {
	local, shared := storePaths(t)
	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.RecordKept(1, "kept all 2 instances"); err != nil {
		t.Fatal(err)
	}
	if err := store.Sync(); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordKept(2, "kept all 2 instances"); err != nil {
		t.Fatal(err)
	}

	// A fresh reader of the shared copy sees the synced decision but not the
	// one recorded after the sync.
	otherLocal := filepath.Join(t.TempDir(), "sweep.db")
	reader, err := OpenTrackingStore(nil, otherLocal, shared)
	if err != nil {
		t.Fatal(err)
	}
	done1, err := reader.IsProcessed(1)
	if err != nil {
		t.Fatal(err)
	}
	done2, err := reader.IsProcessed(2)
	if err != nil {
		t.Fatal(err)
	}
	reader.Close()
	if !done1 {
		t.Fatalf("expected synced decision visible in shared copy")
	}
	if done2 {
		t.Fatalf("expected unsynced decision absent from shared copy")
	}

	if err := store.Sync(); err != nil {
		t.Fatal(err)
	}
	otherLocal2 := filepath.Join(t.TempDir(), "sweep.db")
	reader2, err := OpenTrackingStore(nil, otherLocal2, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer reader2.Close()
	done2, err = reader2.IsProcessed(2)
	if err != nil {
		t.Fatal(err)
	}
	if !done2 {
		t.Fatalf("expected second sync to publish the later decision")
	}
}

func TestSync_FailureLeavesLocalStoreUsable(t *testing.T) {
	tmp := t.TempDir()
	local := filepath.Join(tmp, "sweep.db")
	shared := filepath.Join(tmp, "no-such-dir", "deeper", "sweep.db")

	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.Sync(); !errors.Is(err, ErrSyncFailed) {
		t.Fatalf("expected ErrSyncFailed, got %v", err)
	}

	// The failed publish must not poison local writes.
	if err := store.RecordKept(3, "kept all 2 instances"); err != nil {
		t.Fatal(err)
	}
	done, err := store.IsProcessed(3)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatalf("expected local store usable after sync failure")
	}
}

func TestRecordError_AcceptsNilFileID(t *testing.T) {
	local, shared := storePaths(t)
	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	fileID := int64(77)
	store.RecordError("sync", nil, "share unreachable", "periodic")
	store.RecordError("delete", &fileID, "app returned 502", `N:\PPDO\Records\42xx\plan.pdf`)

	var records []ErrorRecord
	if err := store.db.Order("id asc").Find(&records).Error; err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 error records, got %d", len(records))
	}
	if records[0].FileID != nil {
		t.Fatalf("expected nil file_id on sync error")
	}
	if records[1].FileID == nil || *records[1].FileID != 77 {
		t.Fatalf("expected file_id=77 on delete error")
	}
}

func TestRecordLocationComplete_WritesOneRow(t *testing.T) {
	local, shared := storePaths(t)
	store, err := InitTrackingStore(nil, local, shared)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if err := store.RecordLocationComplete("42xx Projects/4200", 17); err != nil {
		t.Fatal(err)
	}
	var locs []ProcessedLocation
	if err := store.db.Find(&locs).Error; err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 {
		t.Fatalf("expected 1 processed_locations row, got %d", len(locs))
	}
	if locs[0].Path != "42xx Projects/4200" || locs[0].GroupCount != 17 {
		t.Fatalf("unexpected row %+v", locs[0])
	}
	if locs[0].CompletedAt.IsZero() {
		t.Fatalf("expected completion timestamp")
	}
}
