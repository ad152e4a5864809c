// Package gc bounds the growth of the environment cache tree by evicting
// program artifacts beyond a count or an age threshold.
package gc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/infrastructure/lockfile"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Policy holds the eviction thresholds.
type Policy struct {
	Interval           time.Duration
	MaxProgramCount    int
	MaxProgramLifetime time.Duration
}

// DefaultPolicy returns the built-in thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Interval:           domain.DefaultGCInterval,
		MaxProgramCount:    domain.DefaultMaxProgramCount,
		MaxProgramLifetime: domain.DefaultMaxProgramLifetime,
	}
}

// Collector implements ports.GarbageCollector.
type Collector struct {
	root   string
	locks  ports.LockCoordinator
	policy Policy
	logger ports.Logger
	now    func() time.Time
}

// New builds a Collector for the cache rooted at root.
func New(root string, locks ports.LockCoordinator, policy Policy, logger ports.Logger) *Collector {
	def := DefaultPolicy()
	if policy.Interval <= 0 {
		policy.Interval = def.Interval
	}
	if policy.MaxProgramCount <= 0 {
		policy.MaxProgramCount = def.MaxProgramCount
	}
	if policy.MaxProgramLifetime <= 0 {
		policy.MaxProgramLifetime = def.MaxProgramLifetime
	}
	return &Collector{root: root, locks: locks, policy: policy, logger: logger, now: time.Now}
}

// artifactGroup is every file sharing one <specHash>/<subdir>/<programName> base.
type artifactGroup struct {
	specDir string
	subDir  string
	base    string
	files   []string
	touched time.Time
}

func (c *Collector) sentinel() string {
	return filepath.Join(c.root, domain.GCSentinelName)
}

// CollectIfNeeded sweeps unless the last sweep happened within the interval.
func (c *Collector) CollectIfNeeded(ctx context.Context) (domain.GCReport, error) {
	last := c.locks.LastTouchedAt(c.sentinel())
	if !last.IsZero() && c.now().Sub(last) < c.policy.Interval {
		return domain.GCReport{Skipped: true, SkipReason: domain.SkipIntervalNotElapsed}, nil
	}
	return c.Collect(ctx)
}

// Collect sweeps now, unless another sweep or initializer holds the cache root.
func (c *Collector) Collect(ctx context.Context) (domain.GCReport, error) {
	if c.locks.IsLocked(c.root) {
		return domain.GCReport{Skipped: true, SkipReason: domain.SkipRootLocked}, nil
	}
	if err := c.locks.TryAcquire(c.root, ""); err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return domain.GCReport{Skipped: true, SkipReason: domain.SkipRootLocked}, nil
		}
		return domain.GCReport{}, err
	}
	defer func() { _ = c.locks.Unlock(c.root) }()

	report, err := c.sweep(ctx)
	if terr := c.locks.Touch(c.sentinel()); terr != nil {
		c.logger.Warn("could not touch gc sentinel", map[string]interface{}{"path": c.sentinel(), "error": terr.Error()})
	}
	return report, err
}

func (c *Collector) sweep(ctx context.Context) (domain.GCReport, error) {
	groups, err := c.enumerate()
	if err != nil {
		return domain.GCReport{}, err
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].touched.After(groups[j].touched) })

	now := c.now()
	retainedBySpec := map[string]int{}
	retainedBySub := map[string]int{}
	var removed []artifactGroup
	for i, g := range groups {
		if i >= c.policy.MaxProgramCount || now.Sub(g.touched) > c.policy.MaxProgramLifetime {
			removed = append(removed, g)
			continue
		}
		retainedBySpec[g.specDir]++
		retainedBySub[g.subDir]++
	}

	report := domain.GCReport{
		ProgramsRetained: len(groups) - len(removed),
		ProgramsRemoved:  len(removed),
	}
	deleted := map[string]bool{}
	for _, g := range removed {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		switch {
		case deleted[g.specDir] || deleted[g.subDir]:
			continue
		case retainedBySpec[g.specDir] == 0 && !c.locks.IsLocked(g.specDir):
			c.removeAll(g.specDir)
			deleted[g.specDir] = true
			report.RemovedDirectories = append(report.RemovedDirectories, g.specDir)
		case retainedBySub[g.subDir] == 0:
			c.removeAll(g.subDir)
			deleted[g.subDir] = true
			report.RemovedDirectories = append(report.RemovedDirectories, g.subDir)
		default:
			for _, f := range g.files {
				if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
					c.logger.Warn("could not remove program artifact", map[string]interface{}{"path": f, "error": err.Error()})
				}
			}
		}
	}

	c.logger.Info("garbage collection finished", map[string]interface{}{
		"root":     c.root,
		"retained": report.ProgramsRetained,
		"removed":  report.ProgramsRemoved,
	})
	return report, nil
}

// enumerate groups files three levels below the cache tree by base name.
// Only groups carrying a touch file are program artifacts.
func (c *Collector) enumerate() ([]artifactGroup, error) {
	tree := filepath.Join(c.root, domain.CacheShapeVersion)
	specs, err := os.ReadDir(tree)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var groups []artifactGroup
	for _, spec := range specs {
		if !spec.IsDir() {
			continue
		}
		specDir := filepath.Join(tree, spec.Name())
		subs, err := os.ReadDir(specDir)
		if err != nil {
			continue
		}
		for _, sub := range subs {
			if !sub.IsDir() {
				continue
			}
			subDir := filepath.Join(specDir, sub.Name())
			groups = append(groups, c.groupsIn(specDir, subDir)...)
		}
	}
	return groups, nil
}

func (c *Collector) groupsIn(specDir, subDir string) []artifactGroup {
	files, err := os.ReadDir(subDir)
	if err != nil {
		return nil
	}
	byBase := map[string]*artifactGroup{}
	var order []string
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		name := f.Name()
		baseName := name
		if i := strings.IndexByte(name, '.'); i > 0 {
			baseName = name[:i]
		}
		base := filepath.Join(subDir, baseName)
		g, ok := byBase[base]
		if !ok {
			g = &artifactGroup{specDir: specDir, subDir: subDir, base: base}
			byBase[base] = g
			order = append(order, base)
		}
		g.files = append(g.files, filepath.Join(subDir, name))
	}
	touchSuffix := lockfile.TouchPath("")
	var out []artifactGroup
	for _, base := range order {
		g := byBase[base]
		prefix := ""
		for _, f := range g.files {
			if strings.HasSuffix(f, touchSuffix) {
				prefix = strings.TrimSuffix(f, touchSuffix)
				break
			}
		}
		if prefix == "" {
			continue
		}
		g.touched = c.locks.LastTouchedAt(prefix)
		out = append(out, *g)
	}
	return out
}

func (c *Collector) removeAll(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		c.logger.Warn("could not remove cache directory", map[string]interface{}{"path": dir, "error": err.Error()})
	}
}

var _ ports.GarbageCollector = (*Collector)(nil)
