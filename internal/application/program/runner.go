package program

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Runner compiles programs through the on-disk result cache.
type Runner struct {
	locks      ports.LockCoordinator
	compiler   ports.Compiler
	store      ports.ResultStore
	parser     ports.ValueParser
	timeout    time.Duration
	staleAfter time.Duration // lock age past which the holder is presumed dead
	logger     ports.Logger
}

// NewRunner wires a Runner. timeout bounds every wait on a program lock.
func NewRunner(locks ports.LockCoordinator, compiler ports.Compiler, store ports.ResultStore, parser ports.ValueParser, timeout time.Duration, logger ports.Logger) *Runner {
	if timeout <= 0 {
		timeout = domain.DefaultProgramTimeout
	}
	return &Runner{
		locks:      locks,
		compiler:   compiler,
		store:      store,
		parser:     parser,
		timeout:    timeout,
		staleAfter: timeout + domain.DefaultCompileTimeout,
		logger:     logger,
	}
}

// WithStaleLockAge sets the lock age past which a program lock is taken
// over. A live holder never keeps the lock longer than one lock wait plus
// one compile.
func (r *Runner) WithStaleLockAge(d time.Duration) *Runner {
	if d > 0 {
		r.staleAfter = d
	}
	return r
}

// ResultPath is where the cached result of assembly lives inside env.
func ResultPath(env domain.Environment, assembly domain.ProgramAssembly) string {
	return filepath.Join(env.ProgramsDirectory(), assembly.Name+domain.ResultFileSuffix)
}

// RunProgram returns the result of p, compiling it only on a cache miss.
// Compile failures are reported as a failed result. The error return is
// reserved for lock timeouts and unreadable cache files.
func (r *Runner) RunProgram(ctx context.Context, p domain.Program) (domain.ProgramResult, error) {
	started := time.Now()
	assembly := Assemble(p)
	result := domain.ProgramResult{ContextName: p.ContextName, AssemblyName: assembly.Name}

	if status := p.Environment.Metadata.Status; status != domain.EnvironmentReady {
		result.Status = domain.ProgramFailed
		text := fmt.Sprintf("environment is %s", status)
		if p.Environment.Metadata.ErrorMessage != "" {
			text = "environment unavailable: " + p.Environment.Metadata.ErrorMessage
		}
		result.Messages = []domain.Message{{
			Text:          text,
			Severity:      domain.SeverityError,
			DocumentIndex: assembly.Fallback.DocumentIndex,
			Position:      assembly.Fallback.Position,
		}}
		result.Duration = time.Since(started)
		return result, nil
	}

	path := ResultPath(p.Environment, assembly)
	if err := r.locks.Touch(path); err != nil {
		r.logger.Warn("could not touch program", map[string]interface{}{"path": path, "error": err.Error()})
	}

	cached, fromCache, err := r.cachedResult(ctx, path)
	if err != nil {
		return domain.ProgramResult{}, err
	}
	if !fromCache {
		cached, fromCache, err = r.compileLocked(ctx, p.Environment, assembly, path)
		if err != nil {
			return domain.ProgramResult{}, err
		}
	}

	result.Status = cached.Status
	result.FromCache = fromCache
	result.DebugLog = cached.DebugLog
	result.Messages = MapErrors(assembly, cached.Errors)
	if cached.Status == domain.ProgramSucceeded {
		result.Expressions = r.evaluate(p.OutputExpressions, cached.ExpressionValueByText)
	}
	result.Duration = time.Since(started)

	r.logger.Debug("program finished", map[string]interface{}{
		"context":    p.ContextName,
		"program":    assembly.Name,
		"status":     string(result.Status),
		"from_cache": fromCache,
	})
	return result, nil
}

// cachedResult is the fast path: wait for a concurrent writer, then read.
func (r *Runner) cachedResult(ctx context.Context, path string) (domain.CachedProgramResult, bool, error) {
	if err := r.locks.EnsureUnlocked(ctx, path, r.timeout); err != nil && !r.stale(err, path) {
		return domain.CachedProgramResult{}, false, fmt.Errorf("wait for program: %w", err)
	}
	return r.store.Load(path)
}

// lock takes the program lock, taking over one left by a dead holder.
func (r *Runner) lock(ctx context.Context, path string) error {
	err := r.locks.Acquire(ctx, path, r.timeout)
	if err == nil || !r.stale(err, path) {
		return err
	}
	r.logger.Warn("taking over stale program lock", map[string]interface{}{"path": path, "stale_after": r.staleAfter.String()})
	return r.locks.Lock(path, "")
}

// stale reports whether err is a lock timeout on a lock older than staleAfter.
func (r *Runner) stale(err error, path string) bool {
	var timeout *domain.LockTimeoutError
	if !errors.As(err, &timeout) {
		return false
	}
	since, ok := r.locks.LockedSince(path)
	return ok && time.Since(since) > r.staleAfter
}

func (r *Runner) compileLocked(ctx context.Context, env domain.Environment, assembly domain.ProgramAssembly, path string) (domain.CachedProgramResult, bool, error) {
	if err := r.lock(ctx, path); err != nil {
		return domain.CachedProgramResult{}, false, fmt.Errorf("lock program: %w", err)
	}
	defer func() {
		if err := r.locks.Unlock(path); err != nil {
			r.logger.Warn("could not unlock program", map[string]interface{}{"path": path, "error": err.Error()})
		}
	}()

	// Another process may have compiled it while this one waited.
	if cached, ok, err := r.store.Load(path); err != nil || ok {
		return cached, ok, err
	}

	cached, persist := r.compile(ctx, env, assembly)
	if persist {
		if err := r.store.Save(path, cached); err != nil {
			r.logger.Warn("could not persist program result", map[string]interface{}{"path": path, "error": err.Error()})
		}
	}
	return cached, false, nil
}

// compile runs the compiler once. persist is false for outcomes that say
// nothing about the program itself, such as a missing compiler or a timeout.
func (r *Runner) compile(ctx context.Context, env domain.Environment, assembly domain.ProgramAssembly) (domain.CachedProgramResult, bool) {
	modulePath := filepath.Join(env.ProgramsDirectory(), assembly.Name+"."+r.compiler.ModuleExtension())
	if err := os.MkdirAll(filepath.Dir(modulePath), domain.DirectoryPermissions); err != nil {
		return failure("could not prepare program directory", err.Error()), false
	}
	if err := os.WriteFile(modulePath, []byte(assembly.Source()), domain.FilePermissions); err != nil {
		return failure("could not write program module", err.Error()), false
	}
	defer func() {
		if err := os.Remove(modulePath); err != nil && !os.IsNotExist(err) {
			r.logger.Warn("could not remove program module", map[string]interface{}{"path": modulePath, "error": err.Error()})
		}
	}()

	r.logger.Info("compiling program", map[string]interface{}{"program": assembly.Name, "dir": env.WorkingDirectory})
	exec, err := r.compiler.Compile(ctx, domain.CompileRequest{
		ModulePath:       modulePath,
		OutputSymbolName: domain.OutputSymbolName,
		ProjectDirectory: env.WorkingDirectory,
	})
	switch {
	case err != nil:
		return failure("compiler unavailable", err.Error()), false
	case exec.TimedOut:
		return failure("compiler timed out", fmt.Sprintf("no result after %s", time.Duration(exec.DurationMS)*time.Millisecond)), false
	case !exec.Ran:
		details := "the compiler could not be started"
		if exec.Err != nil {
			details = exec.Err.Error()
		}
		return failure("compiler unavailable", details), false
	case exec.ExitCode != 0:
		return domain.CachedProgramResult{
			Status: domain.ProgramFailed,
			Errors: parseFailure(exec.Stdout, exec.Stderr),
		}, true
	}

	values, debugLog, err := parseSuccess(exec.Stdout)
	if err != nil {
		return domain.CachedProgramResult{
			Status:   domain.ProgramFailed,
			Errors:   []domain.RawCompilerError{{Overview: "unexpected compiler output", Details: err.Error()}},
			DebugLog: debugLog,
		}, true
	}
	return domain.CachedProgramResult{
		Status:                domain.ProgramSucceeded,
		Errors:                []domain.RawCompilerError{},
		ExpressionValueByText: values,
		DebugLog:              debugLog,
	}, true
}

func (r *Runner) evaluate(requests []domain.ExpressionRequest, values map[string]string) []domain.EvaluatedExpression {
	out := make([]domain.EvaluatedExpression, 0, len(requests))
	for _, req := range requests {
		ev := domain.EvaluatedExpression{Request: req, Status: domain.ExpressionError}
		raw, ok := values[strings.TrimSpace(req.Text)]
		if !ok {
			out = append(out, ev)
			continue
		}
		ev.RawValue = raw
		value, err := r.parser.Parse(raw)
		if err != nil {
			r.logger.Debug("unparseable expression value", map[string]interface{}{"expression": req.Text, "error": err.Error()})
			out = append(out, ev)
			continue
		}
		ev.Status = domain.ExpressionOK
		ev.Value = value
		out = append(out, ev)
	}
	return out
}

func failure(overview, details string) domain.CachedProgramResult {
	return domain.CachedProgramResult{
		Status: domain.ProgramFailed,
		Errors: []domain.RawCompilerError{{Overview: overview, Details: details}},
	}
}

var _ ports.ProgramRunner = (*Runner)(nil)
