package program

import (
	"strings"

	"github.com/doeshing/litvis-go/internal/domain"
)

// MapError translates a diagnostic in assembly coordinates into a message
// on the document that contributed the offending source.
func MapError(a domain.ProgramAssembly, raw domain.RawCompilerError) domain.Message {
	msg := domain.Message{
		Text:          messageText(raw),
		Severity:      domain.SeverityError,
		DocumentIndex: a.Fallback.DocumentIndex,
		Position:      a.Fallback.Position,
	}

	chunk, ok := chunkAt(a, raw.Region.Start.Line)
	if !ok || chunk.Origin == nil {
		return msg
	}
	start := translate(chunk, raw.Region.Start)
	end := start
	if raw.Region.End.Line >= raw.Region.Start.Line && raw.Region.End.Line > 0 {
		end = translate(chunk, raw.Region.End)
	}
	msg.DocumentIndex = chunk.Origin.DocumentIndex
	msg.Position = domain.Region{Start: start, End: end}
	return msg
}

// MapErrors maps every diagnostic and drops messages that land on the same
// position with the same text.
func MapErrors(a domain.ProgramAssembly, raws []domain.RawCompilerError) []domain.Message {
	type key struct {
		doc  int
		pos  domain.Region
		text string
	}
	seen := make(map[key]bool, len(raws))
	var out []domain.Message
	for _, raw := range raws {
		m := MapError(a, raw)
		k := key{doc: m.DocumentIndex, pos: m.Position, text: m.Text}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, m)
	}
	return out
}

// chunkAt returns the last chunk starting at or before line.
func chunkAt(a domain.ProgramAssembly, line int) (domain.Chunk, bool) {
	if line <= 0 {
		return domain.Chunk{}, false
	}
	found := -1
	for i, c := range a.Chunks {
		if c.CumulativeLineOffset > line {
			break
		}
		found = i
	}
	if found < 0 {
		return domain.Chunk{}, false
	}
	c := a.Chunks[found]
	if line >= c.CumulativeLineOffset+c.LineCount() && found == len(a.Chunks)-1 {
		return domain.Chunk{}, false
	}
	return c, true
}

func translate(c domain.Chunk, p domain.Point) domain.Point {
	origin := c.Origin.Position.Start
	line := origin.Line
	col := p.Column - c.ColumnShift
	switch {
	case p.Line < c.BodyLine:
		col = origin.Column
	case p.Line == c.BodyLine:
		if origin.Column > 1 {
			col += origin.Column - 1
		}
	default:
		line += p.Line - c.BodyLine
	}
	if col < 1 {
		col = 1
	}
	return domain.Point{Line: line, Column: col}
}

func messageText(raw domain.RawCompilerError) string {
	overview := strings.TrimSpace(raw.Overview)
	details := strings.TrimSpace(raw.Details)
	switch {
	case overview == "":
		return details
	case details == "":
		return overview
	default:
		return overview + "\n" + details
	}
}
