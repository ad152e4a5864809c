package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/doeshing/litvis-go/internal/domain"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiGreen  = "\x1b[32m"
	ansiDim    = "\x1b[2m"
)

// Renderer prints narrative results, coloured when writing to a terminal.
type Renderer struct {
	out   io.Writer
	color bool
}

// NewRenderer builds a Renderer for out. Colour is enabled only for
// terminals and never when NO_COLOR is set.
func NewRenderer(out io.Writer) *Renderer {
	color := false
	if f, ok := out.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{out: out, color: color}
}

func (r *Renderer) paint(code, text string) string {
	if !r.color {
		return text
	}
	return code + text + ansiReset
}

// Narrative prints messages grouped per document, then the value of each
// requested expression.
func (r *Renderer) Narrative(result domain.NarrativeResult) {
	byDoc := map[int][]domain.Message{}
	for _, m := range result.AllMessages() {
		byDoc[m.DocumentIndex] = append(byDoc[m.DocumentIndex], m)
	}
	docs := make([]int, 0, len(byDoc))
	for idx := range byDoc {
		docs = append(docs, idx)
	}
	sort.Ints(docs)
	for _, idx := range docs {
		fmt.Fprintln(r.out, documentPath(result.Chain, idx))
		msgs := byDoc[idx]
		sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Position.Start.Line < msgs[j].Position.Start.Line })
		for _, m := range msgs {
			fmt.Fprintf(r.out, "  %d:%d %s %s\n",
				m.Position.Start.Line, m.Position.Start.Column,
				r.severity(m.Severity), indentContinuation(m.Text, "    "))
		}
	}

	for _, p := range result.Programs {
		status := r.paint(ansiGreen, string(p.Status))
		if p.Status == domain.ProgramFailed {
			status = r.paint(ansiRed, string(p.Status))
		}
		cached := ""
		if p.FromCache {
			cached = r.paint(ansiDim, " (cached)")
		}
		fmt.Fprintf(r.out, "context %s: %s%s\n", p.ContextName, status, cached)
		for _, ev := range p.Expressions {
			pos := ev.Request.Position.Start
			if ev.Status != domain.ExpressionOK {
				fmt.Fprintf(r.out, "  %d:%d %s = %s\n", pos.Line, pos.Column, strings.TrimSpace(ev.Request.Text), r.paint(ansiRed, "<unavailable>"))
				continue
			}
			fmt.Fprintf(r.out, "  %d:%d %s = %s\n", pos.Line, pos.Column, strings.TrimSpace(ev.Request.Text), ev.Value.String())
		}
		for _, line := range p.DebugLog {
			fmt.Fprintf(r.out, "  %s\n", r.paint(ansiDim, line))
		}
	}
}

func (r *Renderer) severity(s domain.Severity) string {
	switch s {
	case domain.SeverityError:
		return r.paint(ansiRed, "error")
	case domain.SeverityWarning:
		return r.paint(ansiYellow, "warning")
	default:
		return string(s)
	}
}

type jsonMessage struct {
	Document string `json:"document"`
	domain.Message
}

type jsonExpression struct {
	Text     string        `json:"text"`
	Position domain.Region `json:"position"`
	Document string        `json:"document"`
	Status   string        `json:"status"`
	Raw      string        `json:"raw,omitempty"`
	Value    *domain.Value `json:"value,omitempty"`
}

type jsonProgram struct {
	Context     string           `json:"context"`
	Program     string           `json:"program"`
	Status      string           `json:"status"`
	FromCache   bool             `json:"fromCache"`
	DurationMS  int64            `json:"durationMs"`
	Expressions []jsonExpression `json:"expressions"`
	DebugLog    []string         `json:"debugLog,omitempty"`
}

type jsonNarrative struct {
	Documents []string      `json:"documents"`
	Messages  []jsonMessage `json:"messages"`
	Programs  []jsonProgram `json:"programs"`
}

// JSON writes result as one indented JSON document.
func (r *Renderer) JSON(result domain.NarrativeResult) error {
	view := jsonNarrative{Messages: []jsonMessage{}, Programs: []jsonProgram{}}
	for _, d := range result.Chain.Documents {
		view.Documents = append(view.Documents, d.Path)
	}
	for _, m := range result.AllMessages() {
		view.Messages = append(view.Messages, jsonMessage{Document: documentPath(result.Chain, m.DocumentIndex), Message: m})
	}
	for _, p := range result.Programs {
		jp := jsonProgram{
			Context:     p.ContextName,
			Program:     p.AssemblyName,
			Status:      string(p.Status),
			FromCache:   p.FromCache,
			DurationMS:  p.Duration.Milliseconds(),
			Expressions: []jsonExpression{},
			DebugLog:    p.DebugLog,
		}
		for _, ev := range p.Expressions {
			je := jsonExpression{
				Text:     strings.TrimSpace(ev.Request.Text),
				Position: ev.Request.Position,
				Document: documentPath(result.Chain, ev.Request.DocumentIndex),
				Status:   string(ev.Status),
				Raw:      ev.RawValue,
			}
			if ev.Status == domain.ExpressionOK {
				v := ev.Value
				je.Value = &v
			}
			jp.Expressions = append(jp.Expressions, je)
		}
		view.Programs = append(view.Programs, jp)
	}
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func documentPath(chain domain.DocumentChain, idx int) string {
	if idx >= 0 && idx < len(chain.Documents) {
		return chain.Documents[idx].Path
	}
	return "<document>"
}

func indentContinuation(text, prefix string) string {
	return strings.ReplaceAll(text, "\n", "\n"+prefix)
}
