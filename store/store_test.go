package store

import (
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "state.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndScan(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertStatus("rust-lang/rust", 1, "pending"); err != nil {
		t.Fatalf("UpsertStatus() error: %v", err)
	}
	if err := s.UpdateMergeSHA("rust-lang/rust", 1, "deadbeef"); err != nil {
		t.Fatalf("UpdateMergeSHA() error: %v", err)
	}

	rows, err := s.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll() error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Status != "pending" || rows[0].MergeSHA != "deadbeef" {
		t.Errorf("row = %+v", rows[0])
	}
}

func TestUpsertStatusPreservesMergeSHA(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertStatus("o/r", 1, "pending"); err != nil {
		t.Fatalf("UpsertStatus() error: %v", err)
	}
	if err := s.UpdateMergeSHA("o/r", 1, "abc123"); err != nil {
		t.Fatalf("UpdateMergeSHA() error: %v", err)
	}
	if err := s.UpsertStatus("o/r", 1, "success"); err != nil {
		t.Fatalf("UpsertStatus() error: %v", err)
	}

	row, ok, err := s.Get("o/r", 1)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v, %v", row, ok, err)
	}
	if row.Status != "success" || row.MergeSHA != "abc123" {
		t.Errorf("row = %+v, want status=success merge_sha=abc123", row)
	}
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)

	if err := s.UpsertStatus("o/r", 1, ""); err != nil {
		t.Fatalf("UpsertStatus() error: %v", err)
	}
	if err := s.Delete("o/r", 1); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	_, ok, err := s.Get("o/r", 1)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Errorf("row still present after Delete")
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("o/r", 404)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if ok {
		t.Errorf("Get() ok = true for a row that was never inserted")
	}
}
