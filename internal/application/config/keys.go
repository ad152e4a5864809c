package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/litvis-go/internal/domain"
)

// KeyKind is how a raw command-line value is parsed for a key.
type KeyKind string

// Supported key kinds.
const (
	KindString   KeyKind = "string"
	KindPath     KeyKind = "path"
	KindDuration KeyKind = "duration"
	KindInt      KeyKind = "int"
	KindBool     KeyKind = "bool"
	KindList     KeyKind = "list"
)

// DependencyKeyPrefix addresses one entry of environment.dependencies,
// e.g. environment.dependencies.elm/json.
const DependencyKeyPrefix = "environment.dependencies."

// Key is one settable leaf of domain.Config.
type Key struct {
	Path  string
	Kind  KeyKind
	Usage string
	field func(*domain.Config) interface{}
}

var keys = []Key{
	{Path: "cache.dir", Kind: KindPath, Usage: "root of the environment cache", field: func(c *domain.Config) interface{} { return &c.Cache.Dir }},
	{Path: "cache.environment_timeout", Kind: KindDuration, Usage: "wait for an environment lock or a changing environment", field: func(c *domain.Config) interface{} { return &c.Cache.EnvironmentTimeout }},
	{Path: "cache.program_timeout", Kind: KindDuration, Usage: "wait for a program lock", field: func(c *domain.Config) interface{} { return &c.Cache.ProgramTimeout }},
	{Path: "gc.interval", Kind: KindDuration, Usage: "minimum time between sweeps", field: func(c *domain.Config) interface{} { return &c.GC.Interval }},
	{Path: "gc.max_program_count", Kind: KindInt, Usage: "programs kept across all environments", field: func(c *domain.Config) interface{} { return &c.GC.MaxProgramCount }},
	{Path: "gc.max_program_lifetime", Kind: KindDuration, Usage: "age after which a program is swept", field: func(c *domain.Config) interface{} { return &c.GC.MaxProgramLifetime }},
	{Path: "compiler.elm", Kind: KindString, Usage: "elm binary used for provisioning", field: func(c *domain.Config) interface{} { return &c.Compiler.Elm }},
	{Path: "compiler.run_elm", Kind: KindString, Usage: "run-elm binary used for compiling", field: func(c *domain.Config) interface{} { return &c.Compiler.RunElm }},
	{Path: "compiler.elm_version", Kind: KindString, Usage: "elm-version written to elm.json", field: func(c *domain.Config) interface{} { return &c.Compiler.ElmVersion }},
	{Path: "compiler.compile_timeout", Kind: KindDuration, Usage: "bound on one compiler run", field: func(c *domain.Config) interface{} { return &c.Compiler.CompileTimeout }},
	{Path: "environment.source_directories", Kind: KindList, Usage: "comma separated source directories added to every environment", field: func(c *domain.Config) interface{} { return &c.Environment.SourceDirectories }},
	{Path: "execution.concurrency", Kind: KindInt, Usage: "programs compiled at once", field: func(c *domain.Config) interface{} { return &c.Execution.Concurrency }},
	{Path: "history.enabled", Kind: KindBool, Usage: "record program runs", field: func(c *domain.Config) interface{} { return &c.History.Enabled }},
	{Path: "history.path", Kind: KindPath, Usage: "history database file", field: func(c *domain.Config) interface{} { return &c.History.Path }},
	{Path: "parser.cache_size", Kind: KindInt, Usage: "parsed values kept in memory", field: func(c *domain.Config) interface{} { return &c.Parser.CacheSize }},
}

// Keys lists every settable key sorted by path. Dependencies are addressed
// through DependencyKeyPrefix and are not listed.
func Keys() []Key {
	out := append([]Key(nil), keys...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// LookupKey finds a key by path.
func LookupKey(path string) (Key, bool) {
	for _, k := range keys {
		if k.Path == path {
			return k, true
		}
	}
	return Key{}, false
}

// UnknownKeyError reports a path that does not name a setting.
type UnknownKeyError struct {
	Path string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown configuration key %q", e.Path)
}

// Get returns the value stored under path.
func Get(cfg domain.Config, path string) (interface{}, error) {
	if pkg, ok := dependencyName(path); ok {
		v, found := cfg.Environment.Dependencies[pkg]
		if !found {
			return nil, fmt.Errorf("dependency %s is not configured", pkg)
		}
		return v, nil
	}
	k, ok := LookupKey(path)
	if !ok {
		return nil, &UnknownKeyError{Path: path}
	}
	switch p := k.field(&cfg).(type) {
	case *string:
		return *p, nil
	case *int:
		return *p, nil
	case *bool:
		return *p, nil
	case *[]string:
		return append([]string(nil), (*p)...), nil
	}
	return nil, fmt.Errorf("%s: unsupported field", path)
}

// Set parses raw according to the kind of path and returns the updated
// config. The result is validated as a whole.
func Set(cfg domain.Config, path, raw string) (domain.Config, error) {
	cfg = clone(cfg)
	raw = strings.TrimSpace(raw)
	if pkg, ok := dependencyName(path); ok {
		var v domain.DependencyVersion
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return domain.Config{}, fmt.Errorf("%s: %w", path, err)
		}
		if !v.Disabled && v.Version == "" {
			v = domain.Version(domain.Latest)
		}
		if cfg.Environment.Dependencies == nil {
			cfg.Environment.Dependencies = map[string]domain.DependencyVersion{}
		}
		cfg.Environment.Dependencies[pkg] = v
		return cfg, Validate(cfg)
	}

	k, ok := LookupKey(path)
	if !ok {
		return domain.Config{}, &UnknownKeyError{Path: path}
	}
	switch p := k.field(&cfg).(type) {
	case *string:
		if k.Kind == KindDuration {
			if _, err := domain.ParseDuration(path, raw); err != nil {
				return domain.Config{}, err
			}
		}
		*p = raw
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Config{}, fmt.Errorf("%s must be an integer, got %q", path, raw)
		}
		*p = n
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return domain.Config{}, fmt.Errorf("%s must be true or false, got %q", path, raw)
		}
		*p = b
	case *[]string:
		*p = splitList(raw)
	}
	return cfg, Validate(cfg)
}

// Unset clears path. Cleared strings and numbers are hydrated with their
// defaults on the next load, booleans become false and a cleared
// dependency is removed.
func Unset(cfg domain.Config, path string) (domain.Config, error) {
	cfg = clone(cfg)
	if pkg, ok := dependencyName(path); ok {
		if _, found := cfg.Environment.Dependencies[pkg]; !found {
			return domain.Config{}, fmt.Errorf("dependency %s is not configured", pkg)
		}
		delete(cfg.Environment.Dependencies, pkg)
		return cfg, nil
	}
	k, ok := LookupKey(path)
	if !ok {
		return domain.Config{}, &UnknownKeyError{Path: path}
	}
	switch p := k.field(&cfg).(type) {
	case *string:
		*p = ""
	case *int:
		*p = 0
	case *bool:
		*p = false
	case *[]string:
		*p = nil
	}
	return cfg, nil
}

// Change is one key whose value differs between two configs.
type Change struct {
	Path string
	From interface{}
	To   interface{}
}

// Diff lists the keys that differ from base to cfg, dependencies included.
func Diff(base, cfg domain.Config) []Change {
	var out []Change
	for _, k := range Keys() {
		from, _ := Get(base, k.Path)
		to, _ := Get(cfg, k.Path)
		if !cmp.Equal(from, to) {
			out = append(out, Change{Path: k.Path, From: from, To: to})
		}
	}
	names := map[string]bool{}
	for name := range base.Environment.Dependencies {
		names[name] = true
	}
	for name := range cfg.Environment.Dependencies {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)
	for _, name := range sorted {
		from, inBase := base.Environment.Dependencies[name]
		to, inCfg := cfg.Environment.Dependencies[name]
		if inBase && inCfg && cmp.Equal(from, to) {
			continue
		}
		c := Change{Path: DependencyKeyPrefix + name}
		if inBase {
			c.From = from
		}
		if inCfg {
			c.To = to
		}
		out = append(out, c)
	}
	return out
}

func dependencyName(path string) (string, bool) {
	if !strings.HasPrefix(path, DependencyKeyPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(path, DependencyKeyPrefix)
	return name, name != ""
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func clone(cfg domain.Config) domain.Config {
	deps := make(map[string]domain.DependencyVersion, len(cfg.Environment.Dependencies))
	for name, v := range cfg.Environment.Dependencies {
		deps[name] = v
	}
	cfg.Environment.Dependencies = deps
	cfg.Environment.SourceDirectories = append([]string(nil), cfg.Environment.SourceDirectories...)
	return cfg
}
