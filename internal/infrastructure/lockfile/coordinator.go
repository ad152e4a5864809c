// Package lockfile implements advisory, cross-process locking on a shared
// filesystem. Every operation is addressed by a path prefix P: the lock is
// the file P.lockfile and liveness is the modification time of P.touchfile.
//
// The protocol is cooperative. Callers pair EnsureUnlocked or Acquire with
// Unlock in a deferred call; a crashed holder leaves a stale lock that
// higher layers recover from with their own staleness policy.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

const (
	lockSuffix  = ".lockfile"
	touchSuffix = ".touchfile"
)

// Coordinator implements ports.LockCoordinator with lock and touch files.
type Coordinator struct {
	pollInterval time.Duration
	owner        string
	logger       ports.Logger
}

// New returns a Coordinator polling every domain.LockPollInterval.
func New(logger ports.Logger) *Coordinator {
	return NewWithInterval(logger, domain.LockPollInterval)
}

// NewWithInterval returns a Coordinator with a custom poll interval.
func NewWithInterval(logger ports.Logger, interval time.Duration) *Coordinator {
	if interval <= 0 {
		interval = domain.LockPollInterval
	}
	return &Coordinator{
		pollInterval: interval,
		owner:        fmt.Sprintf("%s pid=%d", uuid.NewString(), os.Getpid()),
		logger:       logger,
	}
}

// Owner is the identifier written into lock files taken by this coordinator.
func (c *Coordinator) Owner() string {
	return c.owner
}

// LockPath returns the lock file for prefix p.
func LockPath(p string) string { return p + lockSuffix }

// TouchPath returns the touch file for prefix p.
func TouchPath(p string) string { return p + touchSuffix }

// Touch records liveness for p. It never excludes anyone.
func (c *Coordinator) Touch(p string) error {
	path := TouchPath(p)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return err
	}
	now := time.Now()
	if err := os.WriteFile(path, []byte(strconv.FormatInt(now.UnixMilli(), 10)), domain.FilePermissions); err != nil {
		return err
	}
	return os.Chtimes(path, now, now)
}

// LastTouchedAt returns the mtime of p's touch file, or the zero time when
// it was never touched or cannot be read.
func (c *Coordinator) LastTouchedAt(p string) time.Time {
	info, err := os.Stat(TouchPath(p))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// IsLocked reports whether p's lock file exists.
func (c *Coordinator) IsLocked(p string) bool {
	_, err := os.Stat(LockPath(p))
	return err == nil
}

// IsHeld implements ports.Locker.
func (c *Coordinator) IsHeld(p string) bool {
	return c.IsLocked(p)
}

// LockedSince returns the mtime of p's lock file.
func (c *Coordinator) LockedSince(p string) (time.Time, bool) {
	info, err := os.Stat(LockPath(p))
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Lock writes p's lock file unconditionally. Use it only after
// EnsureUnlocked, or to take over a lock judged stale.
func (c *Coordinator) Lock(p, identifier string) error {
	path := LockPath(p)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(c.identifier(identifier)), domain.FilePermissions)
}

// TryAcquire creates p's lock file exclusively and fails with
// domain.ErrLockHeld when it already exists.
func (c *Coordinator) TryAcquire(p, identifier string) error {
	path := LockPath(p)
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, domain.FilePermissions)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return domain.ErrLockHeld
		}
		return err
	}
	_, werr := f.WriteString(c.identifier(identifier))
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// Unlock removes p's lock file. Removing an absent lock is not an error.
func (c *Coordinator) Unlock(p string) error {
	if err := os.Remove(LockPath(p)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Release implements ports.Locker.
func (c *Coordinator) Release(p string) error {
	return c.Unlock(p)
}

// EnsureUnlocked polls until p is unlocked, failing with
// *domain.LockTimeoutError once timeout elapses.
func (c *Coordinator) EnsureUnlocked(ctx context.Context, p string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if !c.IsLocked(p) {
			return nil
		}
		if !time.Now().Before(deadline) {
			c.debug("lock wait timed out", p, timeout)
			return &domain.LockTimeoutError{Path: p, Timeout: timeout}
		}
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

// Acquire polls TryAcquire until it succeeds or timeout elapses.
func (c *Coordinator) Acquire(ctx context.Context, p string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := c.TryAcquire(p, "")
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return err
		}
		if !time.Now().Before(deadline) {
			c.debug("lock wait timed out", p, timeout)
			return &domain.LockTimeoutError{Path: p, Timeout: timeout}
		}
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

func (c *Coordinator) sleep(ctx context.Context) error {
	t := time.NewTimer(c.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Coordinator) debug(msg, p string, timeout time.Duration) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, map[string]interface{}{"path": p, "timeout": timeout.String()})
}

func (c *Coordinator) identifier(id string) string {
	if id == "" {
		return c.owner
	}
	return id
}

var _ ports.LockCoordinator = (*Coordinator)(nil)
