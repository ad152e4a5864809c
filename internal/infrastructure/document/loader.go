package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/doeshing/litvis-go/internal/domain"
	"github.com/doeshing/litvis-go/internal/ports"
)

// Loader reads a narrative and the documents it follows from disk.
type Loader struct {
	defaults domain.EnvironmentSpec
	maxChain int
	logger   ports.Logger
}

// NewLoader returns a Loader that layers document environments over defaults.
func NewLoader(defaults domain.EnvironmentSpec, logger ports.Logger) *Loader {
	return &Loader{defaults: defaults, maxChain: domain.MaxDocumentChainLength, logger: logger}
}

// LoadChain returns the chain ending at path, root document first. Chain
// problems are reported as *domain.DocumentChainError before any document
// content is interpreted further.
func (l *Loader) LoadChain(ctx context.Context, path string) (domain.DocumentChain, error) {
	current, err := filepath.Abs(path)
	if err != nil {
		return domain.DocumentChain{}, &domain.DocumentChainError{Reason: domain.ChainUnreadable, Path: path, Err: err}
	}

	var leafFirst []domain.Document
	visited := map[string]bool{}
	for {
		if err := ctx.Err(); err != nil {
			return domain.DocumentChain{}, err
		}
		if len(leafFirst) >= l.maxChain {
			return domain.DocumentChain{}, &domain.DocumentChainError{Reason: domain.ChainTooLong, Path: path}
		}
		content, err := os.ReadFile(current)
		if err != nil {
			return domain.DocumentChain{}, &domain.DocumentChainError{Reason: domain.ChainUnreadable, Path: current, Err: err}
		}
		doc, err := Parse(current, content)
		if err != nil {
			return domain.DocumentChain{}, &domain.DocumentChainError{Reason: domain.ChainUnreadable, Path: current, Err: err}
		}
		leafFirst = append(leafFirst, doc)
		visited[current] = true

		if doc.Follows == "" {
			break
		}
		target, err := resolveTarget(current, doc.Follows)
		if err != nil {
			return domain.DocumentChain{}, &domain.DocumentChainError{Reason: domain.ChainMissingTarget, Path: current, Target: doc.Follows, Err: err}
		}
		switch {
		case target == current:
			return domain.DocumentChain{}, &domain.DocumentChainError{Reason: domain.ChainSelfFollow, Path: current, Target: doc.Follows}
		case visited[target]:
			return domain.DocumentChain{}, &domain.DocumentChainError{Reason: domain.ChainCycle, Path: current, Target: doc.Follows}
		}
		l.logger.Debug("following document", map[string]interface{}{"from": current, "to": target})
		current = target
	}

	chain := domain.DocumentChain{Environment: l.defaults}
	for i := len(leafFirst) - 1; i >= 0; i-- {
		doc := withIndex(leafFirst[i], len(leafFirst)-1-i)
		chain.Documents = append(chain.Documents, doc)
		chain.Environment = chain.Environment.Merge(doc.Environment)
	}
	return chain, nil
}

// resolveTarget finds the file named by a follows reference, relative to
// the referring document. A reference without extension may omit ".md".
func resolveTarget(from, follows string) (string, error) {
	target := follows
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(from), target)
	}
	target = filepath.Clean(target)
	candidates := []string{target}
	if filepath.Ext(target) == "" {
		candidates = append(candidates, target+".md")
	}
	for _, c := range candidates {
		info, err := os.Stat(c)
		if err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", errors.New("no such document")
}

func withIndex(doc domain.Document, index int) domain.Document {
	fragments := make([]domain.AnnotatedFragment, len(doc.Fragments))
	for i, f := range doc.Fragments {
		f.Fragment.DocumentIndex = index
		fragments[i] = f
	}
	doc.Fragments = fragments
	expressions := make([]domain.ContextExpression, len(doc.Expressions))
	for i, e := range doc.Expressions {
		e.Request.DocumentIndex = index
		expressions[i] = e
	}
	doc.Expressions = expressions
	messages := make([]domain.Message, len(doc.Messages))
	for i, m := range doc.Messages {
		m.DocumentIndex = index
		messages[i] = m
	}
	doc.Messages = messages
	return doc
}

var _ ports.DocumentLoader = (*Loader)(nil)
