package domain

import (
	"fmt"
	"time"
)

// EnvironmentTimeout returns the parsed environment timeout or the default.
func (c Config) EnvironmentTimeout() time.Duration {
	return durationOr(c.Cache.EnvironmentTimeout, DefaultEnvironmentTimeout)
}

// ProgramTimeout returns the parsed program lock timeout or the default.
func (c Config) ProgramTimeout() time.Duration {
	return durationOr(c.Cache.ProgramTimeout, DefaultProgramTimeout)
}

// CompileTimeout returns the parsed compiler timeout or the default.
func (c Config) CompileTimeout() time.Duration {
	return durationOr(c.Compiler.CompileTimeout, DefaultCompileTimeout)
}

// GCInterval returns the parsed sweep interval or the default.
func (c Config) GCInterval() time.Duration {
	return durationOr(c.GC.Interval, DefaultGCInterval)
}

// MaxProgramLifetime returns the parsed program lifetime or the default.
func (c Config) MaxProgramLifetime() time.Duration {
	return durationOr(c.GC.MaxProgramLifetime, DefaultMaxProgramLifetime)
}

// MaxProgramCount returns the configured count cap or the default.
func (c Config) MaxProgramCount() int {
	if c.GC.MaxProgramCount <= 0 {
		return DefaultMaxProgramCount
	}
	return c.GC.MaxProgramCount
}

// Concurrency returns how many programs may run at once.
func (c Config) Concurrency() int {
	if c.Execution.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return c.Execution.Concurrency
}

// DefaultEnvironmentSpec builds the spec documents are layered over.
func (c Config) DefaultEnvironmentSpec() EnvironmentSpec {
	deps := make(map[string]DependencyVersion, len(c.Environment.Dependencies))
	for name, version := range c.Environment.Dependencies {
		deps[name] = version
	}
	dirs := append([]string(nil), c.Environment.SourceDirectories...)
	return EnvironmentSpec{Dependencies: deps, SourceDirectories: dirs}
}

// ParseDuration validates a duration field, naming it in the error.
func ParseDuration(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s invalid: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be > 0", field)
	}
	return d, nil
}

func durationOr(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	return fallback
}
