package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/doeshing/litvis-go/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if cfg.Cache.Dir == "" {
		return errors.New("cache.dir must be set")
	}
	if err := validateDurations(cfg); err != nil {
		return err
	}
	if err := validateCompiler(cfg.Compiler); err != nil {
		return err
	}
	if err := validateEnvironment(cfg.Environment); err != nil {
		return err
	}
	if cfg.GC.MaxProgramCount < 0 {
		return fmt.Errorf("gc.max_program_count must be >= 0")
	}
	if cfg.Execution.Concurrency < 0 {
		return fmt.Errorf("execution.concurrency must be >= 0")
	}
	if cfg.Parser.CacheSize < 0 {
		return fmt.Errorf("parser.cache_size must be >= 0")
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return fmt.Errorf("history.path must be set when history is enabled")
	}
	return nil
}

func validateDurations(cfg domain.Config) error {
	fields := []struct {
		name string
		raw  string
	}{
		{"cache.environment_timeout", cfg.Cache.EnvironmentTimeout},
		{"cache.program_timeout", cfg.Cache.ProgramTimeout},
		{"gc.interval", cfg.GC.Interval},
		{"gc.max_program_lifetime", cfg.GC.MaxProgramLifetime},
		{"compiler.compile_timeout", cfg.Compiler.CompileTimeout},
	}
	for _, f := range fields {
		if _, err := domain.ParseDuration(f.name, f.raw); err != nil {
			return err
		}
	}
	return nil
}

func validateCompiler(c domain.CompilerSettings) error {
	if strings.TrimSpace(c.Elm) == "" {
		return fmt.Errorf("compiler.elm must be set")
	}
	if strings.TrimSpace(c.RunElm) == "" {
		return fmt.Errorf("compiler.run_elm must be set")
	}
	return nil
}

func validateEnvironment(env domain.EnvironmentSettings) error {
	for name := range env.Dependencies {
		if !strings.Contains(name, "/") {
			return fmt.Errorf("environment.dependencies: %q is not an author/package name", name)
		}
	}
	for _, dir := range env.SourceDirectories {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("environment.source_directories must not contain empty entries")
		}
	}
	return nil
}
