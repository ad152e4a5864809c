// Package contexts groups the code fragments of a document chain into named
// contexts, the unit of compilation.
package contexts

import (
	"sort"

	"github.com/doeshing/litvis-go/internal/domain"
)

// Trace maps context names to ordered fragment indices. fragments is the
// flattened chain, root document first; fragments[lastStart:] belong to the
// document being resolved. Only contexts whose most recent fragment lives
// there are traced. order lists the names by that fragment's position.
func Trace(fragments []domain.AnnotatedFragment, lastStart int) (map[string][]int, []string) {
	traced := map[string][]int{}
	terminal := map[string]int{}
	for i := len(fragments) - 1; i >= lastStart && i >= 0; i-- {
		name := fragments[i].ContextName
		if _, done := traced[name]; done {
			continue
		}
		traced[name] = traceFrom(fragments, i)
		terminal[name] = i
	}
	order := make([]string, 0, len(traced))
	for name := range traced {
		order = append(order, name)
	}
	sort.Slice(order, func(a, b int) bool { return terminal[order[a]] < terminal[order[b]] })
	return traced, order
}

// traceFrom walks backward from start, following explicit follows targets
// or, without one, the nearest earlier fragment of the same context. A
// target that cannot be found ends the trace.
func traceFrom(fragments []domain.AnnotatedFragment, start int) []int {
	indices := []int{start}
	head := start
	for {
		prev := predecessor(fragments, head)
		if prev < 0 {
			break
		}
		indices = append(indices, prev)
		head = prev
	}
	for l, r := 0, len(indices)-1; l < r; l, r = l+1, r-1 {
		indices[l], indices[r] = indices[r], indices[l]
	}
	return indices
}

func predecessor(fragments []domain.AnnotatedFragment, head int) int {
	h := fragments[head]
	for j := head - 1; j >= 0; j-- {
		f := fragments[j]
		if h.Follows != "" {
			if f.ID == h.Follows || f.ContextName == h.Follows {
				return j
			}
			continue
		}
		if f.ContextName == h.ContextName {
			return j
		}
	}
	return -1
}

// Resolve returns the contexts of the last document of chain: traced
// contexts first, then contexts only reached through output expressions.
// An expression reading a context defined upstream is traced from that
// context's most recent fragment; one reading an unknown context yields an
// expression-only context.
func Resolve(chain domain.DocumentChain) []domain.Context {
	last, ok := chain.Last()
	if !ok {
		return nil
	}

	var flat []domain.AnnotatedFragment
	for _, doc := range chain.Documents[:len(chain.Documents)-1] {
		flat = append(flat, doc.Fragments...)
	}
	lastStart := len(flat)
	flat = append(flat, last.Fragments...)

	traced, order := Trace(flat, lastStart)
	byName := make(map[string]*domain.Context, len(order))
	contexts := make([]*domain.Context, 0, len(order))
	for _, name := range order {
		c := &domain.Context{Name: name, CodeFragments: fragmentsAt(flat, traced[name])}
		byName[name] = c
		contexts = append(contexts, c)
	}

	for _, expr := range last.Expressions {
		name := expr.ContextName
		if name == "" {
			name = domain.DefaultContextName
		}
		c, ok := byName[name]
		if !ok {
			c = &domain.Context{Name: name}
			if i := lastFragmentOf(flat, name); i >= 0 {
				c.CodeFragments = fragmentsAt(flat, traceFrom(flat, i))
			}
			byName[name] = c
			contexts = append(contexts, c)
		}
		c.OutputExpressions = append(c.OutputExpressions, expr.Request)
	}

	out := make([]domain.Context, 0, len(contexts))
	for _, c := range contexts {
		out = append(out, *c)
	}
	return out
}

func lastFragmentOf(fragments []domain.AnnotatedFragment, name string) int {
	for i := len(fragments) - 1; i >= 0; i-- {
		if fragments[i].ContextName == name {
			return i
		}
	}
	return -1
}

func fragmentsAt(fragments []domain.AnnotatedFragment, indices []int) []domain.CodeFragment {
	out := make([]domain.CodeFragment, 0, len(indices))
	for _, i := range indices {
		out = append(out, fragments[i].Fragment)
	}
	return out
}
