package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

func sampleRecords() []domain.RunRecord {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []domain.RunRecord{
		{Timestamp: base, Document: "/docs/a.md", Context: "default", Program: "ProgramA", Status: domain.ProgramSucceeded, DurationMS: 12},
		{Timestamp: base.Add(time.Minute), Document: "/docs/b.md", Context: "chart", Program: "ProgramB", Status: domain.ProgramFailed, MessageCount: 2},
		{Timestamp: base.Add(2 * time.Minute), Document: "/docs/b.md", Context: "default", Program: "ProgramC", Status: domain.ProgramSucceeded, FromCache: true},
	}
}

func exerciseStore(t *testing.T, store ports.RunHistoryRepository) {
	t.Helper()
	for _, rec := range sampleRecords() {
		if err := store.Save(rec); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	all, err := store.Records(0, "")
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(all) != 3 || all[0].Program != "ProgramC" || !all[0].FromCache {
		t.Fatalf("Records() = %+v, want newest first", all)
	}
	if !all[2].Timestamp.Equal(sampleRecords()[0].Timestamp) || all[1].Status != domain.ProgramFailed {
		t.Fatalf("fields not round-tripped: %+v", all)
	}

	limited, err := store.Records(1, "b.md")
	if err != nil {
		t.Fatalf("Records(search) error = %v", err)
	}
	if len(limited) != 1 || limited[0].Program != "ProgramC" {
		t.Fatalf("Records(1, b.md) = %+v", limited)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if rest, _ := store.Records(0, ""); len(rest) != 0 {
		t.Fatalf("records after Clear() = %+v", rest)
	}
}

func TestFileStore(t *testing.T) {
	exerciseStore(t, NewFileStore(filepath.Join(t.TempDir(), "history.jsonl")))
}

func TestSQLiteStore(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "history.db"))
	defer store.Close()
	if store.db == nil {
		t.Skip("sqlite unavailable")
	}
	exerciseStore(t, store)
}

func TestSQLiteStoreFallsBackToFile(t *testing.T) {
	store := &SQLiteStore{path: "unused.db", fallback: NewFileStore(filepath.Join(t.TempDir(), "history.jsonl"))}
	exerciseStore(t, store)
	if filepath.Ext(store.Path()) != ".jsonl" {
		t.Fatalf("Path() = %s, want the fallback file", store.Path())
	}
}
