// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the literate-program engine
// and external adapters (infrastructure). The application core depends on
// these abstractions only; the filesystem cache, the Elm toolchain, the
// document front-end and the history database are all plugged in from the
// infrastructure layer.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Compiler, EnvironmentProvider)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.litvis/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Locker is the advisory cross-process lock behind every cache entry.
// Implementations are backed by lock files so that other processes sharing
// the cache tree observe the same state.
type Locker interface {
	TryAcquire(path, identifier string) error
	Release(path string) error
	IsHeld(path string) bool
}

// LockCoordinator extends Locker with liveness tracking and polling waits.
type LockCoordinator interface {
	Locker
	Touch(path string) error
	LastTouchedAt(path string) time.Time
	IsLocked(path string) bool
	LockedSince(path string) (time.Time, bool)
	Lock(path, identifier string) error
	Unlock(path string) error
	EnsureUnlocked(ctx context.Context, path string, timeout time.Duration) error
	Acquire(ctx context.Context, path string, timeout time.Duration) error
}

// CommandExecutor runs external processes.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd domain.Command) (domain.ExecutionResult, error)
}

// Compiler is the external compiler integration: provisioning of a
// workspace and compilation of one module.
type Compiler interface {
	// Provision installs dependencies and registers source directories
	// inside workingDirectory.
	Provision(ctx context.Context, workingDirectory string, spec domain.EnvironmentSpec) error
	// ScratchEntries lists compiler-generated files inside a workspace that
	// may be deleted before re-provisioning.
	ScratchEntries() []string
	// Compile runs one module and returns the raw process outcome.
	Compile(ctx context.Context, req domain.CompileRequest) (domain.ExecutionResult, error)
	// ModuleExtension is the file extension of generated modules, without the dot.
	ModuleExtension() string
}

// EnvironmentProvider maps a spec to a provisioned workspace. Failures are
// reported through Environment.Metadata.Status, not through an error.
type EnvironmentProvider interface {
	EnsureEnvironment(ctx context.Context, spec domain.EnvironmentSpec) domain.Environment
}

// ProgramRunner compiles one program, consulting the result cache first.
type ProgramRunner interface {
	RunProgram(ctx context.Context, program domain.Program) (domain.ProgramResult, error)
}

// ResultStore persists CachedProgramResults keyed by their result path.
type ResultStore interface {
	Load(path string) (domain.CachedProgramResult, bool, error)
	Save(path string, result domain.CachedProgramResult) error
}

// ValueParser turns a serialized expression value into a structured value.
type ValueParser interface {
	Parse(text string) (domain.Value, error)
}

// DocumentLoader reads a narrative and every document it follows.
type DocumentLoader interface {
	LoadChain(ctx context.Context, path string) (domain.DocumentChain, error)
}

// GarbageCollector bounds the size of the cache tree.
type GarbageCollector interface {
	CollectIfNeeded(ctx context.Context) (domain.GCReport, error)
	Collect(ctx context.Context) (domain.GCReport, error)
}

// RunHistoryRepository stores program run records.
type RunHistoryRepository interface {
	Save(record domain.RunRecord) error
	Records(limit int, search string) ([]domain.RunRecord, error)
	Clear() error
	Path() string
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
