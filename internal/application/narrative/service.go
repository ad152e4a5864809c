// Package narrative runs every context of a document chain.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/litvis-go/internal/application/contexts"
	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Service orchestrates a narrative run end-to-end.
type Service struct {
	Loader       ports.DocumentLoader
	Environments ports.EnvironmentProvider
	Runner       ports.ProgramRunner
	// History is optional; nil disables run records.
	History     ports.RunHistoryRepository
	Concurrency int
	Logger      ports.Logger
}

// Run loads the chain ending in path and runs each of its contexts. A
// broken chain is reported as a message on the result, not as an error.
func (s *Service) Run(ctx context.Context, path string) (domain.NarrativeResult, error) {
	if s.Loader == nil || s.Environments == nil || s.Runner == nil || s.Logger == nil {
		return domain.NarrativeResult{}, errors.New("narrative.Service dependencies not satisfied")
	}

	chain, err := s.Loader.LoadChain(ctx, path)
	if err != nil {
		var chainErr *domain.DocumentChainError
		if errors.As(err, &chainErr) {
			s.Logger.Warn("document chain rejected", map[string]interface{}{
				"path":   chainErr.Path,
				"reason": string(chainErr.Reason),
			})
			return domain.NarrativeResult{Messages: []domain.Message{{
				Text:     chainErr.Error(),
				Severity: domain.SeverityError,
				Position: domain.Region{Start: domain.Point{Line: 1, Column: 1}, End: domain.Point{Line: 1, Column: 1}},
			}}}, nil
		}
		return domain.NarrativeResult{}, fmt.Errorf("load chain: %w", err)
	}

	result := domain.NarrativeResult{Chain: chain}
	for _, doc := range chain.Documents {
		result.Messages = append(result.Messages, doc.Messages...)
	}
	last, ok := chain.Last()
	if !ok {
		return result, nil
	}

	resolved := contexts.Resolve(chain)
	if len(resolved) == 0 {
		return result, nil
	}

	env := s.Environments.EnsureEnvironment(ctx, chain.Environment)
	fallback := domain.Origin{DocumentIndex: len(chain.Documents) - 1, Position: last.EndPosition}

	programs := make([]domain.ProgramResult, len(resolved))
	var g errgroup.Group
	g.SetLimit(s.limit())
	for i, c := range resolved {
		i, c := i, c
		g.Go(func() error {
			programs[i] = s.runOne(ctx, domain.Program{
				ContextName:       c.Name,
				Environment:       env,
				CodeFragments:     c.CodeFragments,
				OutputExpressions: c.OutputExpressions,
				FallbackPosition:  fallback,
			})
			return nil
		})
	}
	_ = g.Wait()

	result.Programs = programs
	s.record(last.Path, programs)
	return result, nil
}

func (s *Service) limit() int {
	if s.Concurrency <= 0 {
		return domain.DefaultConcurrency
	}
	return s.Concurrency
}

// runOne turns runner errors into a failed program carrying one message.
func (s *Service) runOne(ctx context.Context, p domain.Program) domain.ProgramResult {
	started := time.Now()
	res, err := s.Runner.RunProgram(ctx, p)
	if err == nil {
		return res
	}
	s.Logger.Error("program run failed", err, map[string]interface{}{"context": p.ContextName})
	return domain.ProgramResult{
		ContextName: p.ContextName,
		Status:      domain.ProgramFailed,
		Messages: []domain.Message{{
			Text:          err.Error(),
			Severity:      domain.SeverityError,
			DocumentIndex: p.FallbackPosition.DocumentIndex,
			Position:      p.FallbackPosition.Position,
		}},
		Duration: time.Since(started),
	}
}

func (s *Service) record(document string, programs []domain.ProgramResult) {
	if s.History == nil {
		return
	}
	now := time.Now()
	for _, p := range programs {
		rec := domain.RunRecord{
			Timestamp:    now,
			Document:     document,
			Context:      p.ContextName,
			Program:      p.AssemblyName,
			Status:       p.Status,
			FromCache:    p.FromCache,
			DurationMS:   p.Duration.Milliseconds(),
			MessageCount: len(p.Messages),
		}
		if err := s.History.Save(rec); err != nil {
			s.Logger.Warn("could not record run", map[string]interface{}{"error": err.Error()})
			return
		}
	}
}
