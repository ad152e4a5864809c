package executor

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/pkg/logger"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecuteCapturesOutputAndStdin(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	res, err := NewLocalExecutor(logger.Nop()).Execute(context.Background(), domain.Command{
		Name:  "sh",
		Args:  []string{"-c", "read answer; echo \"$answer\"; pwd; echo oops >&2"},
		Dir:   dir,
		Stdin: "y\n",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Ran || res.ExitCode != 0 {
		t.Fatalf("result = %+v", res)
	}
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	if lines[0] != "y" || !strings.HasSuffix(lines[1], filepath.Base(dir)) {
		t.Fatalf("stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "oops" {
		t.Fatalf("stderr = %q", res.Stderr)
	}
}

func TestExecuteReportsExitCode(t *testing.T) {
	requireShell(t)
	res, err := NewLocalExecutor(logger.Nop()).Execute(context.Background(), domain.Command{Name: "sh", Args: []string{"-c", "exit 3"}})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.Ran || res.ExitCode != 3 {
		t.Fatalf("result = %+v, want exit code 3", res)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	requireShell(t)
	res, err := NewLocalExecutor(logger.Nop()).Execute(context.Background(), domain.Command{
		Name:    "sh",
		Args:    []string{"-c", "sleep 5"},
		Timeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !res.TimedOut {
		t.Fatalf("result = %+v, want timeout", res)
	}
}

func TestExecuteMissingBinary(t *testing.T) {
	res, err := NewLocalExecutor(logger.Nop()).Execute(context.Background(), domain.Command{Name: "litvis-no-such-binary"})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if res.Ran {
		t.Fatal("missing binary must not count as ran")
	}
}
