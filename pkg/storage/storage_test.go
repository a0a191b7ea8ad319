package storage

import (
	"context"
	"testing"
	"time"

	"github.com/vjranagit/gaitmetrics/pkg/series"
	"github.com/vjranagit/gaitmetrics/pkg/types"
)

func newTestRepository(t *testing.T) Repository {
	t.Helper()

	cfg := &Config{
		Path:             t.TempDir(),
		CompressionLevel: 3,
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testRecord(id string, cadence any) types.MetricRecord {
	return types.MetricRecord{
		ID:        id,
		Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		SourceRef: id + ".mp4",
		Metrics:   map[string]any{"步频": cadence},
	}
}

func TestRepositoryAppendAndLoad(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	ids := []string{"c", "a", "b"}
	for i, id := range ids {
		if err := repo.Append(ctx, "alice", testRecord(id, float64(100+i))); err != nil {
			t.Fatalf("Failed to append %s: %v", id, err)
		}
	}

	records, err := repo.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(records) != len(ids) {
		t.Fatalf("Expected %d records, got %d", len(ids), len(records))
	}

	// Insertion order, not id order
	for i, rec := range records {
		if rec.ID != ids[i] {
			t.Errorf("Expected record %d to be %s, got %s", i, ids[i], rec.ID)
		}
		if rec.Metrics["步频"] != float64(100+i) {
			t.Errorf("Expected cadence %d, got %v", 100+i, rec.Metrics["步频"])
		}
	}
}

func TestRepositoryNullValueSurvives(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Append(ctx, "alice", testRecord("r1", nil)); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	records, err := repo.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	v, ok := records[0].Metrics["步频"]
	if !ok {
		t.Fatal("Expected metric key to be kept")
	}
	if v != nil {
		t.Errorf("Expected nil value, got %v", v)
	}
}

func TestRepositorySubjectsAreIsolated(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Append(ctx, "alice", testRecord("r1", 100.0)); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	if err := repo.Append(ctx, "bob", testRecord("r1", 90.0)); err != nil {
		t.Fatalf("Same id under another subject should be accepted: %v", err)
	}

	alice, _ := repo.Load(ctx, "alice")
	bob, _ := repo.Load(ctx, "bob")
	if len(alice) != 1 || len(bob) != 1 {
		t.Fatalf("Expected one record each, got %d and %d", len(alice), len(bob))
	}

	subjects, err := repo.Subjects(ctx)
	if err != nil {
		t.Fatalf("Subjects failed: %v", err)
	}
	if len(subjects) != 2 || subjects[0] != "alice" || subjects[1] != "bob" {
		t.Errorf("Expected [alice bob], got %v", subjects)
	}
}

func TestRepositoryDuplicateID(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Append(ctx, "alice", testRecord("r1", 100.0)); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	err := repo.Append(ctx, "alice", testRecord("r1", 101.0))
	if !series.IsValidation(err) {
		t.Errorf("Expected validation error, got %v", err)
	}
}

func TestRepositoryDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, id := range []string{"r1", "r2", "r3"} {
		if err := repo.Append(ctx, "alice", testRecord(id, 100.0)); err != nil {
			t.Fatalf("Failed to append %s: %v", id, err)
		}
	}

	if err := repo.Delete(ctx, "alice", "r2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	records, _ := repo.Load(ctx, "alice")
	if len(records) != 2 || records[0].ID != "r1" || records[1].ID != "r3" {
		t.Errorf("Expected [r1 r3] after delete, got %v", records)
	}

	if err := repo.Delete(ctx, "alice", "r2"); !series.IsNotFound(err) {
		t.Errorf("Expected not found on second delete, got %v", err)
	}

	// A deleted id can be reused
	if err := repo.Append(ctx, "alice", testRecord("r2", 100.0)); err != nil {
		t.Errorf("Expected re-append after delete to succeed: %v", err)
	}
}

func TestRepositoryInvalidSubject(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, subject := range []string{"", "a/b"} {
		if err := repo.Append(ctx, subject, testRecord("r1", 100.0)); !series.IsValidation(err) {
			t.Errorf("Expected validation error for subject %q, got %v", subject, err)
		}
	}
}

func TestRepositoryReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	repo, err := NewRepository(&Config{Path: dir, CompressionLevel: 2})
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	for _, id := range []string{"r1", "r2"} {
		if err := repo.Append(ctx, "alice", testRecord(id, 100.0)); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	repo, err = NewRepository(&Config{Path: dir, CompressionLevel: 2})
	if err != nil {
		t.Fatalf("Failed to reopen repository: %v", err)
	}
	defer repo.Close()

	if err := repo.Append(ctx, "alice", testRecord("r3", 100.0)); err != nil {
		t.Fatalf("Failed to append after reopen: %v", err)
	}

	records, err := repo.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(records) != 3 || records[2].ID != "r3" {
		t.Errorf("Expected r3 to sort after existing records, got %v", records)
	}
}

func TestRepositoryInMemory(t *testing.T) {
	repo, err := NewRepository(&Config{InMemory: true, CompressionLevel: 1})
	if err != nil {
		t.Fatalf("Failed to create in-memory repository: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.Append(ctx, "alice", testRecord("r1", 100.0)); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	records, err := repo.Load(ctx, "alice")
	if err != nil || len(records) != 1 {
		t.Errorf("Expected one record, got %d (err=%v)", len(records), err)
	}
}
