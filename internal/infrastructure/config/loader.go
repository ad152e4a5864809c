package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/litvis-go/assets"
	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/pkg/filesystem"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Environment variables consulted while loading.
const (
	EnvConfigPath = "LITVIS_CONFIG"
	EnvCacheDir   = "LITVIS_CACHE_DIR"
)

// FileLoader loads YAML configuration from ~/.litvis/config.yaml (overridable via LITVIS_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	cfg, err := l.LoadFile()
	if err != nil {
		return domain.Config{}, err
	}
	return applyEnv(cfg), nil
}

// LoadFile reads the config file with defaults hydrated but without
// environment overrides, writing the defaults when the file is missing.
func (l *FileLoader) LoadFile() (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return cfg, nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, err
	}

	cfg = hydrateDefaults(cfg)
	cfg.Environment.SourceDirectories = resolveSourceDirectories(filepath.Dir(path), cfg.Environment.SourceDirectories)
	return cfg, nil
}

// resolveSourceDirectories expands "~" and anchors relative entries at base.
// Blank entries are kept for the validator to report.
func resolveSourceDirectories(base string, dirs []string) []string {
	if len(dirs) == 0 {
		return dirs
	}
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		expanded := filesystem.ExpandPath(strings.TrimSpace(dir))
		if expanded != "" && !filepath.IsAbs(expanded) {
			expanded = filepath.Join(base, expanded)
		}
		if abs, err := filepath.Abs(expanded); err == nil && expanded != "" {
			expanded = abs
		}
		out = append(out, expanded)
	}
	return out
}

// Path is the file Load reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.StateDir(), "config.yaml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

// DefaultConfig is written when no config file exists.
func DefaultConfig() domain.Config {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		cfg = builtinConfig()
	}
	return hydrateDefaults(cfg)
}

// Save writes the given config back to disk.
func (l *FileLoader) Save(cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := ensureConfigDir(l.Path()); err != nil {
		return err
	}
	return os.WriteFile(l.Path(), raw, domain.SecureFilePermissions)
}

// Reset overwrites the config with defaults and returns the default snapshot.
func (l *FileLoader) Reset() (domain.Config, error) {
	cfg := DefaultConfig()
	if err := l.Save(cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Backup copies the current config file to a timestamped backup.
func (l *FileLoader) Backup() (string, error) {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	backup := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102T150405"))
	if err := os.WriteFile(backup, data, domain.SecureFilePermissions); err != nil {
		return "", err
	}
	return backup, nil
}

func builtinConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Cache: domain.CacheSettings{
			EnvironmentTimeout: domain.DefaultEnvironmentTimeout.String(),
			ProgramTimeout:     domain.DefaultProgramTimeout.String(),
		},
		GC: domain.GCSettings{
			Interval:           domain.DefaultGCInterval.String(),
			MaxProgramLifetime: domain.DefaultMaxProgramLifetime.String(),
		},
		Compiler: domain.CompilerSettings{CompileTimeout: domain.DefaultCompileTimeout.String()},
		History:  domain.HistorySettings{Enabled: true},
	}
}

func builtinPaths() (cacheDir, historyPath string) {
	state := filesystem.StateDir()
	return filepath.Join(state, "cache"), filepath.Join(state, "history", "history.db")
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	cacheDir, historyPath := builtinPaths()
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = cacheDir
	}
	if cfg.Compiler.Elm == "" {
		cfg.Compiler.Elm = "elm"
	}
	if cfg.Compiler.RunElm == "" {
		cfg.Compiler.RunElm = "run-elm"
	}
	if cfg.Compiler.ElmVersion == "" {
		cfg.Compiler.ElmVersion = domain.DefaultElmVersion
	}
	if cfg.GC.MaxProgramCount == 0 {
		cfg.GC.MaxProgramCount = domain.DefaultMaxProgramCount
	}
	if cfg.Execution.Concurrency == 0 {
		cfg.Execution.Concurrency = domain.DefaultConcurrency
	}
	if cfg.Parser.CacheSize == 0 {
		cfg.Parser.CacheSize = domain.DefaultParserCacheSize
	}
	if cfg.History.Path == "" {
		cfg.History.Path = historyPath
	}
	cfg.Cache.Dir = filesystem.ExpandPath(cfg.Cache.Dir)
	cfg.History.Path = filesystem.ExpandPath(cfg.History.Path)
	return cfg
}

func applyEnv(cfg domain.Config) domain.Config {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		cfg.Cache.Dir = filesystem.ExpandPath(dir)
	}
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
