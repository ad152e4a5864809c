package program

import (
	"strings"
	"testing"

	"github.com/doeshing/litvis-go/internal/domain"
)

func fragment(text string, doc, line int) domain.CodeFragment {
	return domain.CodeFragment{
		Text:          text,
		DocumentIndex: doc,
		Position:      domain.Region{Start: domain.Point{Line: line, Column: 1}, End: domain.Point{Line: line + strings.Count(text, "\n"), Column: 1}},
	}
}

func expression(text string, doc, line, col int) domain.ExpressionRequest {
	return domain.ExpressionRequest{
		Text:          text,
		DocumentIndex: doc,
		Position:      domain.Region{Start: domain.Point{Line: line, Column: col}, End: domain.Point{Line: line, Column: col + len(text)}},
	}
}

func TestAssembleNameDependsOnTextOnly(t *testing.T) {
	a := Assemble(domain.Program{
		CodeFragments:     []domain.CodeFragment{fragment("x = 1", 0, 3), fragment("y = x + 1", 0, 9)},
		OutputExpressions: []domain.ExpressionRequest{expression("y", 0, 12, 5)},
	})
	b := Assemble(domain.Program{
		CodeFragments:     []domain.CodeFragment{fragment("x = 1", 2, 40), fragment("y = x + 1", 3, 7)},
		OutputExpressions: []domain.ExpressionRequest{expression("y", 3, 1, 1)},
	})
	if a.Name != b.Name {
		t.Fatalf("names differ: %s vs %s", a.Name, b.Name)
	}
	if a.Source() != b.Source() {
		t.Fatal("identical fragment texts produced different sources")
	}

	c := Assemble(domain.Program{CodeFragments: []domain.CodeFragment{fragment("x = 2", 0, 3)}})
	if c.Name == a.Name {
		t.Fatal("different source must change the name")
	}
	if !strings.HasPrefix(a.Source(), "module "+a.Name+" exposing (..)\n") {
		t.Fatalf("source does not start with the module header:\n%s", a.Source())
	}
}

func TestAssembleLineOffsetsAreContiguous(t *testing.T) {
	a := Assemble(domain.Program{
		CodeFragments:     []domain.CodeFragment{fragment("x =\n    1", 0, 3), fragment("y = 2\n", 0, 9)},
		OutputExpressions: []domain.ExpressionRequest{expression("x", 0, 12, 1), expression("y", 0, 13, 1)},
	})
	if a.Chunks[0].CumulativeLineOffset != 1 {
		t.Fatalf("first chunk offset = %d, want 1", a.Chunks[0].CumulativeLineOffset)
	}
	for i := 1; i < len(a.Chunks); i++ {
		prev := a.Chunks[i-1]
		if got, want := a.Chunks[i].CumulativeLineOffset, prev.CumulativeLineOffset+prev.LineCount(); got != want {
			t.Fatalf("chunk %d offset = %d, want %d", i, got, want)
		}
	}
	lines := strings.Split(a.Source(), "\n")
	for _, c := range a.Chunks {
		if c.Kind != domain.ChunkCodeFragment {
			continue
		}
		if !strings.HasPrefix(lines[c.BodyLine-2], "-- chunk") {
			t.Fatalf("line before body %d is %q, want chunk marker", c.BodyLine, lines[c.BodyLine-2])
		}
	}
}

func TestAssembleImportsSerializerOnce(t *testing.T) {
	without := Assemble(domain.Program{CodeFragments: []domain.CodeFragment{fragment("x = 1", 0, 1)}})
	if strings.Count(without.Source(), "import Json.Encode") != 1 {
		t.Fatalf("expected one synthesized import:\n%s", without.Source())
	}
	with := Assemble(domain.Program{CodeFragments: []domain.CodeFragment{fragment("import Json.Encode as E\n\nx = 1", 0, 1)}})
	if strings.Count(with.Source(), "import Json.Encode") != 1 {
		t.Fatalf("user import must suppress the synthesized one:\n%s", with.Source())
	}
}

func TestAssembleGroupsExpressionsByText(t *testing.T) {
	a := Assemble(domain.Program{
		CodeFragments: []domain.CodeFragment{fragment("a = 1\nb = 2", 0, 1)},
		OutputExpressions: []domain.ExpressionRequest{
			expression("b", 0, 5, 1),
			expression("a", 0, 6, 1),
			expression(" b ", 0, 7, 1),
		},
	})
	var groups []domain.Chunk
	for _, c := range a.Chunks {
		if c.Kind == domain.ChunkExpressionGroup {
			groups = append(groups, c)
		}
	}
	if len(groups) != 2 {
		t.Fatalf("expression groups = %d, want 2", len(groups))
	}
	if !strings.Contains(groups[0].Text, `( "a"`) || !strings.Contains(groups[1].Text, `( "b"`) {
		t.Fatalf("groups not sorted by text:\n%s%s", groups[0].Text, groups[1].Text)
	}
	if groups[1].Origin.Position.Start.Line != 5 {
		t.Fatalf("group origin line = %d, want first request", groups[1].Origin.Position.Start.Line)
	}
	if !strings.Contains(a.Source(), domain.OutputSymbolName+" =") {
		t.Fatal("output symbol not defined")
	}
}

func TestElmStringEscapes(t *testing.T) {
	if got, want := elmString("say \"hi\"\n\\"), `"say \"hi\"\n\\"`; got != want {
		t.Fatalf("elmString() = %s, want %s", got, want)
	}
}
