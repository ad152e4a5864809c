package narrative

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/pkg/logger"
)

type stubLoader struct {
	chain domain.DocumentChain
	err   error
}

func (s stubLoader) LoadChain(context.Context, string) (domain.DocumentChain, error) {
	return s.chain, s.err
}

type stubEnvironments struct {
	mu    sync.Mutex
	calls int
}

func (s *stubEnvironments) EnsureEnvironment(_ context.Context, spec domain.EnvironmentSpec) domain.Environment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return domain.Environment{Spec: spec, WorkingDirectory: "/cache/v1/" + spec.Hash(), Metadata: domain.EnvironmentMetadata{Status: domain.EnvironmentReady}}
}

type stubRunner struct {
	mu       sync.Mutex
	programs map[string]domain.Program
	failOn   string
}

func (s *stubRunner) RunProgram(_ context.Context, p domain.Program) (domain.ProgramResult, error) {
	s.mu.Lock()
	s.programs[p.ContextName] = p
	s.mu.Unlock()
	if p.ContextName == s.failOn {
		return domain.ProgramResult{}, errors.New("lock timed out")
	}
	return domain.ProgramResult{ContextName: p.ContextName, AssemblyName: "Program" + p.ContextName, Status: domain.ProgramSucceeded}, nil
}

type memoryHistory struct {
	records []domain.RunRecord
}

func (m *memoryHistory) Save(r domain.RunRecord) error {
	m.records = append(m.records, r)
	return nil
}
func (m *memoryHistory) Records(int, string) ([]domain.RunRecord, error) { return m.records, nil }
func (m *memoryHistory) Clear() error {
	m.records = nil
	return nil
}
func (m *memoryHistory) Path() string { return "memory" }

func region(line int) domain.Region {
	return domain.Region{Start: domain.Point{Line: line, Column: 1}, End: domain.Point{Line: line, Column: 10}}
}

func sampleChain() domain.DocumentChain {
	warning := domain.Message{Text: "unterminated quote", Severity: domain.SeverityWarning, DocumentIndex: 1}
	return domain.DocumentChain{
		Documents: []domain.Document{
			{
				Path: "/docs/root.md",
				Fragments: []domain.AnnotatedFragment{
					{Fragment: domain.CodeFragment{Text: "x = 1", DocumentIndex: 0, Position: region(3)}, ContextName: "main"},
				},
			},
			{
				Path: "/docs/leaf.md",
				Fragments: []domain.AnnotatedFragment{
					{Fragment: domain.CodeFragment{Text: "y = x", DocumentIndex: 1, Position: region(5)}, ContextName: "main"},
					{Fragment: domain.CodeFragment{Text: "z = 2", DocumentIndex: 1, Position: region(9)}, ContextName: "other"},
				},
				Expressions: []domain.ContextExpression{
					{Request: domain.ExpressionRequest{Text: "y", DocumentIndex: 1, Position: region(7)}, ContextName: "main"},
				},
				EndPosition: region(12),
				Messages:    []domain.Message{warning},
			},
		},
		Environment: domain.EnvironmentSpec{Dependencies: map[string]domain.DependencyVersion{"elm/core": domain.Version(domain.Latest)}},
	}
}

func TestRunBuildsOneProgramPerContext(t *testing.T) {
	envs := &stubEnvironments{}
	runner := &stubRunner{programs: map[string]domain.Program{}}
	history := &memoryHistory{}
	svc := &Service{
		Loader:       stubLoader{chain: sampleChain()},
		Environments: envs,
		Runner:       runner,
		History:      history,
		Concurrency:  2,
		Logger:       logger.Nop(),
	}

	result, err := svc.Run(context.Background(), "/docs/leaf.md")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if envs.calls != 1 {
		t.Fatalf("EnsureEnvironment calls = %d, want 1", envs.calls)
	}
	var names []string
	for _, p := range result.Programs {
		names = append(names, p.ContextName)
	}
	if diff := cmp.Diff([]string{"main", "other"}, names); diff != "" {
		t.Fatalf("program order mismatch (-want +got):\n%s", diff)
	}

	mainProgram := runner.programs["main"]
	if len(mainProgram.CodeFragments) != 2 || mainProgram.CodeFragments[0].Text != "x = 1" {
		t.Fatalf("main fragments = %+v", mainProgram.CodeFragments)
	}
	if len(mainProgram.OutputExpressions) != 1 || mainProgram.OutputExpressions[0].Text != "y" {
		t.Fatalf("main expressions = %+v", mainProgram.OutputExpressions)
	}
	wantFallback := domain.Origin{DocumentIndex: 1, Position: region(12)}
	if diff := cmp.Diff(wantFallback, mainProgram.FallbackPosition); diff != "" {
		t.Fatalf("fallback mismatch (-want +got):\n%s", diff)
	}

	if len(result.Messages) != 1 || result.Messages[0].Severity != domain.SeverityWarning {
		t.Fatalf("document messages = %+v", result.Messages)
	}
	if len(history.records) != 2 || history.records[0].Document != "/docs/leaf.md" {
		t.Fatalf("history = %+v", history.records)
	}
}

func TestRunReportsRunnerErrorsAsMessages(t *testing.T) {
	runner := &stubRunner{programs: map[string]domain.Program{}, failOn: "other"}
	svc := &Service{
		Loader:       stubLoader{chain: sampleChain()},
		Environments: &stubEnvironments{},
		Runner:       runner,
		Logger:       logger.Nop(),
	}

	result, err := svc.Run(context.Background(), "/docs/leaf.md")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	failed := result.Programs[1]
	if failed.Status != domain.ProgramFailed || len(failed.Messages) != 1 {
		t.Fatalf("failed program = %+v", failed)
	}
	if failed.Messages[0].Position != region(12) || failed.Messages[0].DocumentIndex != 1 {
		t.Fatalf("message not at fallback: %+v", failed.Messages[0])
	}
	if !result.HasErrors() {
		t.Fatal("HasErrors() = false")
	}
}

func TestRunTurnsChainErrorsIntoMessages(t *testing.T) {
	chainErr := &domain.DocumentChainError{Reason: domain.ChainCycle, Path: "/docs/a.md", Target: "/docs/b.md"}
	runner := &stubRunner{programs: map[string]domain.Program{}}
	svc := &Service{
		Loader:       stubLoader{err: chainErr},
		Environments: &stubEnvironments{},
		Runner:       runner,
		Logger:       logger.Nop(),
	}

	result, err := svc.Run(context.Background(), "/docs/a.md")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Messages) != 1 || result.Messages[0].Text != chainErr.Error() {
		t.Fatalf("messages = %+v", result.Messages)
	}
	if len(runner.programs) != 0 {
		t.Fatalf("runner called for a broken chain: %v", runner.programs)
	}
}

func TestRunRequiresDependencies(t *testing.T) {
	if _, err := (&Service{}).Run(context.Background(), "x.md"); err == nil {
		t.Fatal("Run() error = nil, want dependency error")
	}
}
