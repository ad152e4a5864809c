// Package envcache maps environment specs to provisioned, reusable compiler
// workspaces under a shared cache root.
//
// Each workspace lives at <root>/<shape>/<hash(spec)> and is guarded by the
// lock file <root>/<shape>/<hash(spec)>.lockfile. Its metadata carries a
// status; "changing" is time-boxed, so a crashed initializer is recovered
// either by lock timeout or by metadata age.
package envcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/pkg/filesystem"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Cache implements ports.EnvironmentProvider.
type Cache struct {
	root     string
	locks    ports.LockCoordinator
	compiler ports.Compiler
	gc       ports.GarbageCollector
	timeout  time.Duration
	logger   ports.Logger
	now      func() time.Time
}

// New builds a Cache rooted at root. gc may be nil to disable housekeeping.
func New(root string, locks ports.LockCoordinator, compiler ports.Compiler, gc ports.GarbageCollector, timeout time.Duration, logger ports.Logger) *Cache {
	if timeout <= 0 {
		timeout = domain.DefaultEnvironmentTimeout
	}
	return &Cache{
		root:     root,
		locks:    locks,
		compiler: compiler,
		gc:       gc,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Root exposes the cache root.
func (c *Cache) Root() string {
	return c.root
}

// TreeDir is the directory holding every workspace of the current layout.
func (c *Cache) TreeDir() string {
	return filepath.Join(c.root, domain.CacheShapeVersion)
}

// DirectoryFor returns the workspace directory of spec.
func (c *Cache) DirectoryFor(spec domain.EnvironmentSpec) string {
	return filepath.Join(c.TreeDir(), spec.Hash())
}

// EnsureEnvironment returns the workspace for spec, provisioning it when no
// usable one exists. It never fails; problems are reported through
// Metadata.Status == domain.EnvironmentError.
func (c *Cache) EnsureEnvironment(ctx context.Context, spec domain.EnvironmentSpec) domain.Environment {
	dir := c.DirectoryFor(spec)
	env := domain.Environment{Spec: spec, WorkingDirectory: dir}

	c.housekeeping(ctx)

	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		env.Metadata = c.errorMetadata(&domain.EnvironmentProvisionError{Stage: domain.StageDirectory, Err: err})
		return env
	}

	for {
		if err := c.lock(ctx, dir); err != nil {
			env.Metadata = c.errorMetadata(&domain.EnvironmentProvisionError{Stage: domain.StageLock, Err: err})
			return env
		}

		meta, found := c.readMetadata(dir)
		now := c.now()
		if found {
			switch meta.Status {
			case domain.EnvironmentChanging:
				if now.Sub(meta.CreatedAt) < c.timeout {
					_ = c.locks.Unlock(dir)
					if err := sleep(ctx, domain.LockPollInterval); err != nil {
						env.Metadata = c.errorMetadata(&domain.EnvironmentProvisionError{Stage: domain.StageLock, Err: err})
						return env
					}
					continue
				}
				c.logger.Warn("environment stuck in changing state, reinitializing", map[string]interface{}{
					"dir":        dir,
					"created_at": meta.CreatedAt.Format(domain.TimestampFormat),
				})
			case domain.EnvironmentReady, domain.EnvironmentError:
				env.Metadata = c.markUsed(dir, meta, now)
				_ = c.locks.Unlock(dir)
				c.logger.Debug("environment cache hit", map[string]interface{}{"dir": dir, "status": string(meta.Status)})
				return env
			default:
				c.logger.Warn("unknown environment status, reinitializing", map[string]interface{}{"dir": dir, "status": string(meta.Status)})
			}
		}

		env.Metadata = c.initialize(ctx, dir, spec)
		_ = c.locks.Unlock(dir)
		return env
	}
}

// lock takes the workspace lock, taking over a lock that outlived the timeout.
func (c *Cache) lock(ctx context.Context, dir string) error {
	err := c.locks.Acquire(ctx, dir, c.timeout)
	if err == nil {
		return nil
	}
	var timeout *domain.LockTimeoutError
	if !errors.As(err, &timeout) {
		return err
	}
	c.logger.Warn("assuming stale environment lock", map[string]interface{}{"dir": dir, "timeout": c.timeout.String()})
	return c.locks.Lock(dir, "")
}

func (c *Cache) initialize(ctx context.Context, dir string, spec domain.EnvironmentSpec) domain.EnvironmentMetadata {
	if err := c.locks.EnsureUnlocked(ctx, c.root, c.timeout); err != nil {
		c.logger.Warn("cache root still locked, initializing anyway", map[string]interface{}{"root": c.root, "error": err.Error()})
	}

	now := c.now()
	meta := domain.EnvironmentMetadata{Status: domain.EnvironmentChanging, CreatedAt: now, UsedAt: now}
	if err := c.writeMetadata(dir, meta); err != nil {
		return c.errorMetadata(&domain.EnvironmentProvisionError{Stage: domain.StageDirectory, Err: err})
	}
	c.removeScratch(dir)

	c.logger.Info("provisioning environment", map[string]interface{}{
		"dir":          dir,
		"dependencies": strings.Join(spec.EnabledDependencies(), ","),
	})
	if err := c.compiler.Provision(ctx, dir, spec); err != nil {
		perr := &domain.EnvironmentProvisionError{Stage: domain.StageInstall, Err: err}
		meta.Status = domain.EnvironmentError
		meta.ErrorMessage = perr.Error()
		if werr := c.writeMetadata(dir, meta); werr != nil {
			c.logger.Warn("could not persist environment error", map[string]interface{}{"dir": dir, "error": werr.Error()})
		}
		c.logger.Error("environment provisioning failed", err, map[string]interface{}{"dir": dir})
		return meta
	}

	meta.Status = domain.EnvironmentReady
	meta.UsedAt = c.now()
	if err := c.writeMetadata(dir, meta); err != nil {
		c.logger.Warn("could not persist environment status", map[string]interface{}{"dir": dir, "error": err.Error()})
	}
	return meta
}

// markUsed refreshes usedAt, persisting it at most once per threshold.
func (c *Cache) markUsed(dir string, meta domain.EnvironmentMetadata, now time.Time) domain.EnvironmentMetadata {
	if now.Sub(meta.UsedAt) <= domain.UsedAtPersistThreshold {
		return meta
	}
	meta.UsedAt = now
	if err := c.writeMetadata(dir, meta); err != nil {
		c.logger.Warn("could not refresh environment usage", map[string]interface{}{"dir": dir, "error": err.Error()})
	}
	return meta
}

func (c *Cache) housekeeping(ctx context.Context) {
	if since, locked := c.locks.LockedSince(c.root); locked && c.now().Sub(since) > domain.StaleRootLockAge {
		c.logger.Warn("force-unlocking stuck cache root", map[string]interface{}{"root": c.root, "locked_since": since.Format(domain.TimestampFormat)})
		_ = c.locks.Unlock(c.root)
	}
	if c.gc == nil {
		return
	}
	if _, err := c.gc.CollectIfNeeded(ctx); err != nil {
		c.logger.Warn("garbage collection failed", map[string]interface{}{"root": c.root, "error": err.Error()})
	}
}

func (c *Cache) removeScratch(dir string) {
	entries := append([]string{domain.ProgramsDirName}, c.compiler.ScratchEntries()...)
	for _, name := range entries {
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			c.logger.Warn("could not remove scratch entry", map[string]interface{}{"path": filepath.Join(dir, name), "error": err.Error()})
		}
	}
}

func (c *Cache) errorMetadata(err error) domain.EnvironmentMetadata {
	now := c.now()
	c.logger.Error("environment unavailable", err, nil)
	return domain.EnvironmentMetadata{
		Status:       domain.EnvironmentError,
		CreatedAt:    now,
		UsedAt:       now,
		ErrorMessage: err.Error(),
	}
}

// List describes every workspace in the cache tree, most recently used first.
func (c *Cache) List() ([]domain.EnvironmentSummary, error) {
	entries, err := os.ReadDir(c.TreeDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []domain.EnvironmentSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(c.TreeDir(), e.Name())
		meta, _ := c.readMetadata(dir)
		size, _ := filesystem.DirSize(dir)
		out = append(out, domain.EnvironmentSummary{
			Hash:         e.Name(),
			Directory:    dir,
			Metadata:     meta,
			ProgramCount: countPrograms(filepath.Join(dir, domain.ProgramsDirName)),
			SizeBytes:    size,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.UsedAt.After(out[j].Metadata.UsedAt) })
	return out, nil
}

// Clear removes the whole cache tree while holding the cache root lock.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.locks.Acquire(ctx, c.root, c.timeout); err != nil {
		return fmt.Errorf("lock cache root: %w", err)
	}
	defer func() { _ = c.locks.Unlock(c.root) }()
	return os.RemoveAll(c.TreeDir())
}

func (c *Cache) metadataPath(dir string) string {
	return filepath.Join(dir, domain.MetadataFileName)
}

func (c *Cache) readMetadata(dir string) (domain.EnvironmentMetadata, bool) {
	raw, err := os.ReadFile(c.metadataPath(dir))
	if err != nil {
		return domain.EnvironmentMetadata{}, false
	}
	var meta domain.EnvironmentMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		c.logger.Warn("unreadable environment metadata", map[string]interface{}{"dir": dir, "error": err.Error()})
		return domain.EnvironmentMetadata{}, false
	}
	return meta, true
}

// writeMetadata replaces the metadata file atomically so concurrent readers
// never observe a partial document.
func (c *Cache) writeMetadata(dir string, meta domain.EnvironmentMetadata) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, domain.MetadataFileName+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.metadataPath(dir))
}

func countPrograms(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), domain.ResultFileSuffix) {
			n++
		}
	}
	return n
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ ports.EnvironmentProvider = (*Cache)(nil)
