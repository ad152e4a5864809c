package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/litvis-go/internal/domain"
)

func TestLoadMissingResultIsMiss(t *testing.T) {
	store := NewFileResultStore()
	_, ok, err := store.Load(filepath.Join(t.TempDir(), "Program.result.json"))
	if err != nil || ok {
		t.Fatalf("Load() = ok %v, err %v; want miss", ok, err)
	}
}

func TestSaveThenLoad(t *testing.T) {
	store := NewFileResultStore()
	path := filepath.Join(t.TempDir(), "programs", "Program.result.json")
	want := domain.CachedProgramResult{
		Status:                domain.ProgramSucceeded,
		Errors:                []domain.RawCompilerError{},
		ExpressionValueByText: map[string]string{"x": "1", "y": "\"a\""},
	}
	if err := store.Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, ok, err := store.Load(path)
	if err != nil || !ok {
		t.Fatalf("Load() = ok %v, err %v", ok, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestSaveIsDeterministic(t *testing.T) {
	store := NewFileResultStore()
	dir := t.TempDir()
	result := domain.CachedProgramResult{
		Status:                domain.ProgramSucceeded,
		ExpressionValueByText: map[string]string{"b": "2", "a": "1", "c": "3"},
	}
	first, second := filepath.Join(dir, "a.result.json"), filepath.Join(dir, "b.result.json")
	if err := store.Save(first, result); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(second, result); err != nil {
		t.Fatal(err)
	}
	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if string(a) != string(b) {
		t.Fatalf("result files differ:\n%s\n%s", a, b)
	}
}

func TestLoadMalformedResult(t *testing.T) {
	store := NewFileResultStore()
	path := filepath.Join(t.TempDir(), "Program.result.json")
	for _, content := range []string{"{not json", `{"status":"maybe"}`} {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := store.Load(path); !errors.Is(err, domain.ErrMalformedCache) {
			t.Fatalf("Load(%q) error = %v, want ErrMalformedCache", content, err)
		}
	}
}
