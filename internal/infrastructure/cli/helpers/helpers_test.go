package helpers

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTopEntries(t *testing.T) {
	got := TopEntries(map[string]int{"b.md": 2, "a.md": 2, "c.md": 5, "d.md": 1}, 3)
	want := []EntryStatistic{{"c.md", 5}, {"a.md", 2}, {"b.md", 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("TopEntries() mismatch (-want +got):\n%s", diff)
	}
	if all := TopEntries(map[string]int{"x": 1}, 0); len(all) != 1 {
		t.Fatalf("TopEntries(limit 0) = %v", all)
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(1, 4); got != 25 {
		t.Fatalf("Percentage(1, 4) = %v", got)
	}
	if got := Percentage(3, 0); got != 0 {
		t.Fatalf("Percentage(3, 0) = %v", got)
	}
}
