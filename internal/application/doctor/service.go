package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

// BinaryLister names the external programs the compiler adapter runs.
type BinaryLister interface {
	Binaries() []string
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Compiler       BinaryLister
	History        ports.RunHistoryRepository
	// LookPath resolves binaries; exec.LookPath when nil.
	LookPath func(string) (string, error)
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("format %s", cfg.ConfigFormatVersion)))
	checks = append(checks, cacheCheck(cfg.Cache.Dir))

	if s.Compiler != nil {
		checks = append(checks, s.binaryChecks(s.Compiler.Binaries())...)
	} else {
		checks = append(checks, warn("Compiler", "compiler not initialized"))
	}

	checks = append(checks, s.historyCheck(cfg.History))

	return domain.HealthReport{Checks: checks}, nil
}

func cacheCheck(dir string) domain.HealthCheck {
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return fail("Cache directory", err.Error())
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return fail("Cache directory", fmt.Sprintf("%s not writable: %v", dir, err))
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return ok("Cache directory", dir)
}

func (s *Service) binaryChecks(binaries []string) []domain.HealthCheck {
	lookPath := s.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	var checks []domain.HealthCheck
	for _, bin := range binaries {
		name := "Binary " + bin
		if path, err := lookPath(bin); err == nil {
			checks = append(checks, ok(name, path))
		} else {
			checks = append(checks, fail(name, "not found on PATH"))
		}
	}
	return checks
}

func (s *Service) historyCheck(settings domain.HistorySettings) domain.HealthCheck {
	if !settings.Enabled {
		return warn("History", "disabled")
	}
	if s.History == nil {
		return warn("History", "history store not initialized")
	}
	if _, err := s.History.Records(1, ""); err != nil {
		return fail("History", err.Error())
	}
	path := s.History.Path()
	if strings.HasSuffix(path, ".jsonl") {
		return warn("History", "using jsonl fallback at "+path)
	}
	return ok("History", path)
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
