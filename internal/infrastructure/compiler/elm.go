// Package compiler integrates the Elm toolchain: workspace provisioning with
// elm and program evaluation with run-elm.
package compiler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

const (
	manifestName   = "elm.json"
	scratchDirName = "elm-stuff"
	// installAnswers confirms the plan prompts of elm install.
	installAnswers = "y\ny\ny\n"
)

// baseDependencies are required by every assembled program.
var baseDependencies = map[string]string{
	"elm/core": "1.0.5",
	"elm/json": "1.1.3",
}

// Settings configures the toolchain binaries.
type Settings struct {
	Elm            string
	RunElm         string
	ElmVersion     string
	CompileTimeout time.Duration
	InstallTimeout time.Duration
}

type dependencyBlock struct {
	Direct   map[string]string `json:"direct"`
	Indirect map[string]string `json:"indirect"`
}

type manifest struct {
	Type              string          `json:"type"`
	SourceDirectories []string        `json:"source-directories"`
	ElmVersion        string          `json:"elm-version"`
	Dependencies      dependencyBlock `json:"dependencies"`
	TestDependencies  dependencyBlock `json:"test-dependencies"`
}

// Elm implements ports.Compiler on top of a CommandExecutor.
type Elm struct {
	settings Settings
	executor ports.CommandExecutor
	logger   ports.Logger
}

// New returns an Elm compiler. Empty settings fall back to binaries on PATH.
func New(settings Settings, executor ports.CommandExecutor, logger ports.Logger) *Elm {
	if settings.Elm == "" {
		settings.Elm = "elm"
	}
	if settings.RunElm == "" {
		settings.RunElm = "run-elm"
	}
	if settings.ElmVersion == "" {
		settings.ElmVersion = domain.DefaultElmVersion
	}
	if settings.CompileTimeout <= 0 {
		settings.CompileTimeout = domain.DefaultCompileTimeout
	}
	if settings.InstallTimeout <= 0 {
		settings.InstallTimeout = domain.DefaultEnvironmentTimeout
	}
	return &Elm{settings: settings, executor: executor, logger: logger}
}

// Binaries lists the executables this compiler shells out to.
func (e *Elm) Binaries() []string {
	return []string{e.settings.Elm, e.settings.RunElm}
}

// ScratchEntries implements ports.Compiler.
func (e *Elm) ScratchEntries() []string {
	return []string{manifestName, scratchDirName}
}

// ModuleExtension implements ports.Compiler.
func (e *Elm) ModuleExtension() string {
	return "elm"
}

// Provision writes the project manifest, installs every enabled dependency
// and pins explicitly versioned ones.
func (e *Elm) Provision(ctx context.Context, dir string, spec domain.EnvironmentSpec) error {
	m := manifest{
		Type:              "application",
		SourceDirectories: append([]string{domain.ProgramsDirName}, spec.SourceDirectories...),
		ElmVersion:        e.settings.ElmVersion,
		Dependencies:      dependencyBlock{Direct: map[string]string{}, Indirect: map[string]string{}},
		TestDependencies:  dependencyBlock{Direct: map[string]string{}, Indirect: map[string]string{}},
	}
	for name, version := range baseDependencies {
		m.Dependencies.Direct[name] = version
	}
	if err := os.MkdirAll(filepath.Join(dir, domain.ProgramsDirName), domain.DirectoryPermissions); err != nil {
		return err
	}
	if err := writeManifest(dir, m); err != nil {
		return err
	}

	for _, name := range spec.EnabledDependencies() {
		if _, base := baseDependencies[name]; base && !spec.Dependencies[name].Pinned() {
			continue
		}
		e.logger.Debug("installing elm package", map[string]interface{}{"package": name, "dir": dir})
		res, err := e.executor.Execute(ctx, domain.Command{
			Name:    e.settings.Elm,
			Args:    []string{"install", name},
			Dir:     dir,
			Stdin:   installAnswers,
			Timeout: e.settings.InstallTimeout,
		})
		if err != nil {
			return fmt.Errorf("elm install %s: %w", name, err)
		}
		if res.TimedOut {
			return fmt.Errorf("elm install %s: timed out after %s", name, e.settings.InstallTimeout)
		}
		if res.ExitCode != 0 {
			return fmt.Errorf("elm install %s: %s", name, firstNonEmpty(res.Stderr, res.Stdout, fmt.Sprintf("exit status %d", res.ExitCode)))
		}
	}
	return e.pinVersions(dir, spec)
}

func (e *Elm) pinVersions(dir string, spec domain.EnvironmentSpec) error {
	var pinned []string
	for _, name := range spec.EnabledDependencies() {
		if spec.Dependencies[name].Pinned() {
			pinned = append(pinned, name)
		}
	}
	if len(pinned) == 0 {
		return nil
	}
	m, err := readManifest(dir)
	if err != nil {
		return err
	}
	for _, name := range pinned {
		delete(m.Dependencies.Indirect, name)
		m.Dependencies.Direct[name] = spec.Dependencies[name].Version
	}
	return writeManifest(dir, m)
}

// Compile evaluates the output symbol of one module with run-elm.
func (e *Elm) Compile(ctx context.Context, req domain.CompileRequest) (domain.ExecutionResult, error) {
	return e.executor.Execute(ctx, domain.Command{
		Name: e.settings.RunElm,
		Args: []string{
			"--report", "json",
			"--output-name", req.OutputSymbolName,
			"--project-dir", req.ProjectDirectory,
			req.ModulePath,
		},
		Dir:     req.ProjectDirectory,
		Timeout: e.settings.CompileTimeout,
	})
}

func readManifest(dir string) (manifest, error) {
	var m manifest
	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("decode %s: %w", manifestName, err)
	}
	if m.Dependencies.Direct == nil {
		m.Dependencies.Direct = map[string]string{}
	}
	return m, nil
}

func writeManifest(dir string, m manifest) error {
	raw, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, manifestName), append(raw, '\n'), domain.FilePermissions)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			return t
		}
	}
	return ""
}

var _ ports.Compiler = (*Elm)(nil)
