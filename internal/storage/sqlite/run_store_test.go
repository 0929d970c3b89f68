package sqlite

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRun() *Run {
	return &Run{
		FieldName:   "density",
		Association: "points",
		Measurement: "mean",
		NumPoints:   1000,
		NumTrees:    8,
		NumNodes:    72,
		MaskedNodes: 12,
		Digest:      "4f2a9c1d8e3b7a60",
		ElapsedNs:   1_500_000,
		ParamsJSON:  json.RawMessage(`{"branch_factor":2,"max_depth":3}`),
	}
}

func TestRunStore_InsertAndGet(t *testing.T) {
	store := NewRunStore(setupTestDB(t))

	run := sampleRun()
	if err := store.Insert(run); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if run.RunID == "" {
		t.Fatalf("insert should assign a run ID")
	}

	got, err := store.Get(run.RunID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Insert backfills RunID and CreatedAt, so the round trip is exact.
	if diff := cmp.Diff(run, got); diff != "" {
		t.Fatalf("run round trip mismatch (-want +got):\n%s", diff)
	}
	if got.CreatedAt == 0 {
		t.Fatalf("created_at should be set")
	}
}

func TestRunStore_GetMissing(t *testing.T) {
	store := NewRunStore(setupTestDB(t))
	if _, err := store.Get("no-such-run"); err == nil {
		t.Fatalf("expected error for missing run")
	}
}

func TestRunStore_ListByField(t *testing.T) {
	store := NewRunStore(setupTestDB(t))

	for i := 0; i < 3; i++ {
		run := sampleRun()
		run.CreatedAt = int64(i + 1)
		if err := store.Insert(run); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	other := sampleRun()
	other.FieldName = "pressure"
	if err := store.Insert(other); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	runs, err := store.ListByField("density")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 density runs, got %d", len(runs))
	}
	// Newest first.
	if runs[0].CreatedAt != 3 || runs[2].CreatedAt != 1 {
		t.Fatalf("unexpected order: %d %d %d",
			runs[0].CreatedAt, runs[1].CreatedAt, runs[2].CreatedAt)
	}
}

func TestRunStore_Delete(t *testing.T) {
	store := NewRunStore(setupTestDB(t))

	run := sampleRun()
	if err := store.Insert(run); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.Delete(run.RunID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(run.RunID); err == nil {
		t.Fatalf("expected error deleting a missing run")
	}
}
