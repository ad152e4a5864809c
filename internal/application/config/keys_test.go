package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/litvis-go/internal/domain"
)

func TestSetRejectsUnknownKeys(t *testing.T) {
	for _, key := range []string{"cache.dri", "cache", "environment.dependencies.", "gc.interval.extra"} {
		_, err := Set(validConfig(), key, "x")
		var unknown *UnknownKeyError
		if !errors.As(err, &unknown) {
			t.Fatalf("Set(%q) error = %v, want UnknownKeyError", key, err)
		}
	}
}

func TestSetParsesByKind(t *testing.T) {
	cfg := validConfig()
	steps := []struct{ key, raw string }{
		{"gc.interval", "10m"},
		{"gc.max_program_count", "250"},
		{"history.enabled", "false"},
		{"environment.source_directories", "lib, ~/shared ,"},
		{"environment.dependencies.elm/json", "1.1.3"},
		{"environment.dependencies.elm/random", "false"},
	}
	for _, s := range steps {
		var err error
		if cfg, err = Set(cfg, s.key, s.raw); err != nil {
			t.Fatalf("Set(%q, %q) error = %v", s.key, s.raw, err)
		}
	}
	if cfg.GC.Interval != "10m" || cfg.GC.MaxProgramCount != 250 || cfg.History.Enabled {
		t.Fatalf("scalars not applied: %+v", cfg)
	}
	if diff := cmp.Diff([]string{"lib", "~/shared"}, cfg.Environment.SourceDirectories); diff != "" {
		t.Fatalf("source directories mismatch (-want +got):\n%s", diff)
	}
	wantDeps := map[string]domain.DependencyVersion{
		"elm/json":   domain.Version("1.1.3"),
		"elm/random": domain.Disabled(),
	}
	if diff := cmp.Diff(wantDeps, cfg.Environment.Dependencies); diff != "" {
		t.Fatalf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestSetReportsInvalidValuesByField(t *testing.T) {
	tests := []struct{ key, raw, want string }{
		{"compiler.compile_timeout", "soon", "compiler.compile_timeout invalid"},
		{"cache.program_timeout", "-5s", "cache.program_timeout must be > 0"},
		{"execution.concurrency", "many", "execution.concurrency must be an integer"},
		{"execution.concurrency", "-1", "execution.concurrency must be >= 0"},
		{"history.enabled", "sometimes", "history.enabled must be true or false"},
		{"environment.dependencies.random", "1.0.0", "author/package"},
	}
	for _, tt := range tests {
		_, err := Set(validConfig(), tt.key, tt.raw)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("Set(%q, %q) error = %v, want %q", tt.key, tt.raw, err, tt.want)
		}
	}
}

func TestSetDoesNotMutateInput(t *testing.T) {
	cfg := validConfig()
	if _, err := Set(cfg, "environment.dependencies.elm/json", "latest"); err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Environment.Dependencies["elm/json"]; ok {
		t.Fatal("Set() wrote through to the caller's dependency map")
	}
}

func TestGetAndUnset(t *testing.T) {
	cfg := validConfig()
	if v, err := Get(cfg, "cache.dir"); err != nil || v != "/tmp/cache" {
		t.Fatalf("Get(cache.dir) = %v, %v", v, err)
	}
	if v, err := Get(cfg, "environment.dependencies.elm/random"); err != nil || v != domain.Version(domain.Latest) {
		t.Fatalf("Get(dependency) = %v, %v", v, err)
	}

	cleared, err := Unset(cfg, "environment.dependencies.elm/random")
	if err != nil {
		t.Fatalf("Unset(dependency) error = %v", err)
	}
	if len(cleared.Environment.Dependencies) != 0 {
		t.Fatalf("dependencies = %v, want empty", cleared.Environment.Dependencies)
	}
	if _, err := Unset(cleared, "environment.dependencies.elm/random"); err == nil {
		t.Fatal("Unset(missing dependency) error = nil")
	}
	cleared, err = Unset(cfg, "gc.interval")
	if err != nil || cleared.GC.Interval != "" {
		t.Fatalf("Unset(gc.interval) = %q, %v", cleared.GC.Interval, err)
	}
}

func TestDiff(t *testing.T) {
	base := validConfig()
	cfg, err := Set(base, "gc.interval", "1h")
	if err != nil {
		t.Fatal(err)
	}
	if cfg, err = Set(cfg, "environment.dependencies.elm/json", "1.1.3"); err != nil {
		t.Fatal(err)
	}
	if cfg, err = Unset(cfg, "environment.dependencies.elm/random"); err != nil {
		t.Fatal(err)
	}

	want := []Change{
		{Path: "gc.interval", From: "5m", To: "1h"},
		{Path: "environment.dependencies.elm/json", To: domain.Version("1.1.3")},
		{Path: "environment.dependencies.elm/random", From: domain.Version(domain.Latest)},
	}
	if diff := cmp.Diff(want, Diff(base, cfg)); diff != "" {
		t.Fatalf("Diff() mismatch (-want +got):\n%s", diff)
	}
	if changes := Diff(base, base); len(changes) != 0 {
		t.Fatalf("Diff(base, base) = %v, want none", changes)
	}
}

func TestKeysAreSortedAndResolvable(t *testing.T) {
	all := Keys()
	for i, k := range all {
		if i > 0 && all[i-1].Path >= k.Path {
			t.Fatalf("keys not sorted at %s", k.Path)
		}
		if _, err := Get(validConfig(), k.Path); err != nil {
			t.Fatalf("Get(%s) error = %v", k.Path, err)
		}
	}
}
