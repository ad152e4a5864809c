package envcache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/infrastructure/lockfile"
	"github.com/doeshing/litvis-go/internal/pkg/logger"
)

type stubCompiler struct {
	provisions int32
	delay      time.Duration
	err        error
}

func (s *stubCompiler) Provision(ctx context.Context, dir string, spec domain.EnvironmentSpec) error {
	atomic.AddInt32(&s.provisions, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return s.err
	}
	return os.WriteFile(filepath.Join(dir, "elm.json"), []byte("{}"), 0o644)
}

func (s *stubCompiler) ScratchEntries() []string { return []string{"elm.json", "elm-stuff"} }

func (s *stubCompiler) Compile(context.Context, domain.CompileRequest) (domain.ExecutionResult, error) {
	return domain.ExecutionResult{}, nil
}

func (s *stubCompiler) ModuleExtension() string { return "elm" }

func (s *stubCompiler) count() int { return int(atomic.LoadInt32(&s.provisions)) }

type stubGC struct{ calls int32 }

func (g *stubGC) CollectIfNeeded(context.Context) (domain.GCReport, error) {
	atomic.AddInt32(&g.calls, 1)
	return domain.GCReport{Skipped: true}, nil
}

func (g *stubGC) Collect(context.Context) (domain.GCReport, error) { return domain.GCReport{}, nil }

func testSpec() domain.EnvironmentSpec {
	return domain.EnvironmentSpec{
		Dependencies: map[string]domain.DependencyVersion{
			"elm/core": domain.Version("1.0.5"),
			"elm/json": domain.Version(domain.Latest),
		},
	}
}

func newTestCache(t *testing.T, compiler *stubCompiler, timeout time.Duration) *Cache {
	t.Helper()
	locks := lockfile.NewWithInterval(logger.Nop(), 5*time.Millisecond)
	return New(t.TempDir(), locks, compiler, nil, timeout, logger.Nop())
}

func TestEnsureEnvironmentProvisionsOnceAndHitsCache(t *testing.T) {
	compiler := &stubCompiler{}
	cache := newTestCache(t, compiler, time.Second)

	first := cache.EnsureEnvironment(context.Background(), testSpec())
	if first.Metadata.Status != domain.EnvironmentReady {
		t.Fatalf("status = %s (%s), want ready", first.Metadata.Status, first.Metadata.ErrorMessage)
	}
	second := cache.EnsureEnvironment(context.Background(), testSpec())
	if second.Metadata.Status != domain.EnvironmentReady {
		t.Fatalf("second status = %s, want ready", second.Metadata.Status)
	}
	if compiler.count() != 1 {
		t.Fatalf("provision count = %d, want 1", compiler.count())
	}
	if first.WorkingDirectory != second.WorkingDirectory {
		t.Fatalf("working directories differ: %s vs %s", first.WorkingDirectory, second.WorkingDirectory)
	}
	if filepath.Base(filepath.Dir(first.WorkingDirectory)) != domain.CacheShapeVersion {
		t.Fatalf("working directory %s is not under the shape version", first.WorkingDirectory)
	}
	if cache.locks.IsLocked(first.WorkingDirectory) {
		t.Fatal("workspace lock left behind")
	}
}

func TestEnsureEnvironmentConcurrentCallersShareOneProvisioning(t *testing.T) {
	compiler := &stubCompiler{delay: 50 * time.Millisecond}
	cache := newTestCache(t, compiler, 5*time.Second)

	const callers = 8
	var wg sync.WaitGroup
	statuses := make([]domain.EnvironmentStatus, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i] = cache.EnsureEnvironment(context.Background(), testSpec()).Metadata.Status
		}(i)
	}
	wg.Wait()

	if compiler.count() != 1 {
		t.Fatalf("provision count = %d, want 1", compiler.count())
	}
	for i, status := range statuses {
		if status != domain.EnvironmentReady {
			t.Fatalf("caller %d status = %s, want ready", i, status)
		}
	}
}

func TestEnsureEnvironmentReinitializesStuckChangingState(t *testing.T) {
	compiler := &stubCompiler{}
	cache := newTestCache(t, compiler, 200*time.Millisecond)
	dir := cache.DirectoryFor(testSpec())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := cache.writeMetadata(dir, domain.EnvironmentMetadata{Status: domain.EnvironmentChanging, CreatedAt: old, UsedAt: old}); err != nil {
		t.Fatal(err)
	}

	env := cache.EnsureEnvironment(context.Background(), testSpec())
	if env.Metadata.Status != domain.EnvironmentReady {
		t.Fatalf("status = %s, want ready", env.Metadata.Status)
	}
	if compiler.count() != 1 {
		t.Fatalf("provision count = %d, want 1", compiler.count())
	}
}

func TestEnsureEnvironmentReinitializeKeepsUserFiles(t *testing.T) {
	compiler := &stubCompiler{}
	cache := newTestCache(t, compiler, 200*time.Millisecond)
	dir := cache.DirectoryFor(testSpec())
	files := []struct {
		name string
		user bool
	}{
		{"notes.md", true},
		{filepath.Join("src", "Main.elm"), true},
		{filepath.Join("elm-stuff", "i.dat"), false},
		{filepath.Join(domain.ProgramsDirName, "Program1"+domain.ResultFileSuffix), false},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-time.Hour)
	if err := cache.writeMetadata(dir, domain.EnvironmentMetadata{Status: domain.EnvironmentChanging, CreatedAt: old, UsedAt: old}); err != nil {
		t.Fatal(err)
	}

	if env := cache.EnsureEnvironment(context.Background(), testSpec()); env.Metadata.Status != domain.EnvironmentReady {
		t.Fatalf("status = %s, want ready", env.Metadata.Status)
	}
	for _, f := range files {
		_, err := os.Stat(filepath.Join(dir, f.name))
		if f.user && err != nil {
			t.Fatalf("user file %s removed: %v", f.name, err)
		}
		if !f.user && !os.IsNotExist(err) {
			t.Fatalf("scratch entry %s survived, stat error = %v", f.name, err)
		}
	}
}

func TestEnsureEnvironmentRecoversFromStaleLockFile(t *testing.T) {
	compiler := &stubCompiler{}
	cache := newTestCache(t, compiler, 50*time.Millisecond)
	dir := cache.DirectoryFor(testSpec())
	if err := cache.locks.Lock(dir, "crashed process"); err != nil {
		t.Fatal(err)
	}

	env := cache.EnsureEnvironment(context.Background(), testSpec())
	if env.Metadata.Status != domain.EnvironmentReady {
		t.Fatalf("status = %s (%s), want ready", env.Metadata.Status, env.Metadata.ErrorMessage)
	}
	if cache.locks.IsLocked(dir) {
		t.Fatal("stale lock not released")
	}
}

func TestEnsureEnvironmentWaitsForConcurrentInitializer(t *testing.T) {
	compiler := &stubCompiler{}
	cache := newTestCache(t, compiler, 5*time.Second)
	dir := cache.DirectoryFor(testSpec())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := cache.writeMetadata(dir, domain.EnvironmentMetadata{Status: domain.EnvironmentChanging, CreatedAt: now, UsedAt: now}); err != nil {
		t.Fatal(err)
	}
	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = cache.writeMetadata(dir, domain.EnvironmentMetadata{Status: domain.EnvironmentReady, CreatedAt: now, UsedAt: time.Now()})
	}()

	env := cache.EnsureEnvironment(context.Background(), testSpec())
	if env.Metadata.Status != domain.EnvironmentReady {
		t.Fatalf("status = %s, want ready", env.Metadata.Status)
	}
	if compiler.count() != 0 {
		t.Fatalf("provision count = %d, want 0", compiler.count())
	}
}

func TestEnsureEnvironmentRecordsProvisioningError(t *testing.T) {
	compiler := &stubCompiler{err: errors.New("elm install failed")}
	cache := newTestCache(t, compiler, time.Second)

	env := cache.EnsureEnvironment(context.Background(), testSpec())
	if env.Metadata.Status != domain.EnvironmentError {
		t.Fatalf("status = %s, want error", env.Metadata.Status)
	}
	if env.Metadata.ErrorMessage == "" {
		t.Fatal("expected error message")
	}

	again := cache.EnsureEnvironment(context.Background(), testSpec())
	if again.Metadata.Status != domain.EnvironmentError {
		t.Fatalf("second status = %s, want error", again.Metadata.Status)
	}
	if compiler.count() != 1 {
		t.Fatalf("provision count = %d, want 1", compiler.count())
	}
}

func TestEnsureEnvironmentReportsUncreatableDirectory(t *testing.T) {
	root := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(root, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	compiler := &stubCompiler{}
	cache := New(root, lockfile.NewWithInterval(logger.Nop(), 5*time.Millisecond), compiler, nil, time.Second, logger.Nop())

	env := cache.EnsureEnvironment(context.Background(), testSpec())
	if env.Metadata.Status != domain.EnvironmentError {
		t.Fatalf("status = %s, want error", env.Metadata.Status)
	}
	if compiler.count() != 0 {
		t.Fatal("provisioning must not run without a directory")
	}
}

func TestEnsureEnvironmentRefreshesUsedAt(t *testing.T) {
	compiler := &stubCompiler{}
	cache := newTestCache(t, compiler, time.Second)
	dir := cache.DirectoryFor(testSpec())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Hour)
	if err := cache.writeMetadata(dir, domain.EnvironmentMetadata{Status: domain.EnvironmentReady, CreatedAt: old, UsedAt: old}); err != nil {
		t.Fatal(err)
	}

	cache.EnsureEnvironment(context.Background(), testSpec())

	raw, err := os.ReadFile(filepath.Join(dir, domain.MetadataFileName))
	if err != nil {
		t.Fatal(err)
	}
	var meta domain.EnvironmentMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		t.Fatal(err)
	}
	if !meta.UsedAt.After(old.Add(time.Minute)) {
		t.Fatalf("usedAt = %v, want refreshed", meta.UsedAt)
	}
	if !meta.CreatedAt.Equal(old) {
		t.Fatalf("createdAt changed to %v", meta.CreatedAt)
	}
}

func TestEnsureEnvironmentRunsHousekeeping(t *testing.T) {
	gc := &stubGC{}
	locks := lockfile.NewWithInterval(logger.Nop(), 5*time.Millisecond)
	root := t.TempDir()
	cache := New(root, locks, &stubCompiler{}, gc, time.Second, logger.Nop())
	if err := locks.Lock(root, "stuck"); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(lockfile.LockPath(root), past, past); err != nil {
		t.Fatal(err)
	}

	env := cache.EnsureEnvironment(context.Background(), testSpec())
	if env.Metadata.Status != domain.EnvironmentReady {
		t.Fatalf("status = %s, want ready", env.Metadata.Status)
	}
	if locks.IsLocked(root) {
		t.Fatal("stuck root lock not cleared")
	}
	if atomic.LoadInt32(&gc.calls) != 1 {
		t.Fatalf("gc calls = %d, want 1", gc.calls)
	}
}

func TestListAndClear(t *testing.T) {
	cache := newTestCache(t, &stubCompiler{}, time.Second)
	cache.EnsureEnvironment(context.Background(), testSpec())

	summaries, err := cache.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(summaries) != 1 || summaries[0].Hash != testSpec().Hash() {
		t.Fatalf("List() = %+v", summaries)
	}
	if err := cache.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	summaries, _ = cache.List()
	if len(summaries) != 0 {
		t.Fatalf("expected empty cache, got %+v", summaries)
	}
}
