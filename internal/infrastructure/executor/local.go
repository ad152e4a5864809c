// Package executor runs external processes for the compiler integration.
package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

// LocalExecutor runs commands directly on the host, without a shell.
type LocalExecutor struct {
	logger ports.Logger
}

// NewLocalExecutor builds a new executor.
func NewLocalExecutor(logger ports.Logger) *LocalExecutor {
	return &LocalExecutor{logger: logger}
}

// Execute implements ports.CommandExecutor. A non-zero exit status or a
// timeout is reported in the result; the error is reserved for commands
// that could not be started.
func (e *LocalExecutor) Execute(ctx context.Context, cmd domain.Command) (domain.ExecutionResult, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	start := time.Now()
	err := c.Run()
	duration := time.Since(start).Milliseconds()

	result := domain.ExecutionResult{
		Ran:        true,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMS: duration,
	}
	e.logger.Debug("command finished", map[string]interface{}{
		"command":     cmd.Name,
		"args":        strings.Join(cmd.Args, " "),
		"dir":         cmd.Dir,
		"duration_ms": duration,
	})

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(ctxErr, context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = -1
		result.Err = ctxErr
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		result.Err = err
		return result, nil
	}
	if err != nil {
		result.Ran = false
		result.Err = err
		return result, err
	}
	return result, nil
}

var _ ports.CommandExecutor = (*LocalExecutor)(nil)
