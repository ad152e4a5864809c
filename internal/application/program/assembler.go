// Package program turns a resolved context into a compilable module, runs
// it through the result cache and maps compiler diagnostics back onto the
// documents that contributed the source.
package program

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/doeshing/litvis-go/internal/domain"
)

const (
	moduleNamePrefix   = "Program"
	outputBindingName  = "litvisOutput"
	expressionIndent   = "        "
	serializerModule   = "Json.Encode"
	nameHashByteLength = 12
)

var serializerImport = regexp.MustCompile(`(?m)^import\s+Json\.Encode(\s|$)`)

// Assemble builds the assembly for p. Chunks are emitted in order: module
// header, optional auxiliary import, one chunk per code fragment, one chunk
// per distinct output expression and the output symbol definition.
func Assemble(p domain.Program) domain.ProgramAssembly {
	var body []domain.Chunk

	needsImport := true
	for _, f := range p.CodeFragments {
		if serializerImport.MatchString(f.Text) {
			needsImport = false
			break
		}
	}
	if needsImport {
		body = append(body, domain.Chunk{Text: "import " + serializerModule + "\n\n", Kind: domain.ChunkAuxiliary})
	}

	for i, f := range p.CodeFragments {
		origin := domain.Origin{DocumentIndex: f.DocumentIndex, Position: f.Position}
		body = append(body, domain.Chunk{
			Text:   fmt.Sprintf("-- chunk %d\n%s\n", i, terminated(f.Text)),
			Kind:   domain.ChunkCodeFragment,
			Origin: &origin,
		})
	}

	texts, firstRequest := distinctExpressions(p.OutputExpressions)
	bindings := make([]string, 0, len(texts))
	for i, text := range texts {
		req := firstRequest[text]
		origin := domain.Origin{DocumentIndex: req.DocumentIndex, Position: req.Position}
		binding := fmt.Sprintf("%s%d", outputBindingName, i)
		bindings = append(bindings, binding)
		body = append(body, domain.Chunk{
			Text:        expressionChunk(binding, text),
			Kind:        domain.ChunkExpressionGroup,
			Origin:      &origin,
			ColumnShift: len(expressionIndent),
		})
	}
	body = append(body, domain.Chunk{Text: outputChunk(bindings), Kind: domain.ChunkAuxiliary})

	name := assemblyName(body)
	chunks := append([]domain.Chunk{{
		Text: fmt.Sprintf("module %s exposing (..)\n\n", name),
		Kind: domain.ChunkAuxiliary,
	}}, body...)

	line := 1
	for i := range chunks {
		chunks[i].CumulativeLineOffset = line
		chunks[i].BodyLine = line + bodyLead(chunks[i].Kind)
		line += chunks[i].LineCount()
	}

	return domain.ProgramAssembly{Name: name, Chunks: chunks, Fallback: p.FallbackPosition}
}

// bodyLead is the number of synthesized lines in front of the original text.
func bodyLead(kind domain.ChunkKind) int {
	switch kind {
	case domain.ChunkCodeFragment:
		return 1
	case domain.ChunkExpressionGroup:
		return 2
	default:
		return 0
	}
}

// assemblyName hashes every chunk below the module header. The header
// carries the name itself and cannot take part in it.
func assemblyName(body []domain.Chunk) string {
	h := sha256.New()
	for _, c := range body {
		h.Write([]byte(c.Text))
	}
	return moduleNamePrefix + hex.EncodeToString(h.Sum(nil)[:nameHashByteLength])
}

func distinctExpressions(requests []domain.ExpressionRequest) ([]string, map[string]domain.ExpressionRequest) {
	first := make(map[string]domain.ExpressionRequest, len(requests))
	var texts []string
	for _, r := range requests {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if _, seen := first[text]; seen {
			continue
		}
		first[text] = r
		texts = append(texts, text)
	}
	sort.Strings(texts)
	return texts, first
}

func expressionChunk(binding, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s =\n", binding)
	fmt.Fprintf(&b, "    ( %s, %s.string (Debug.toString (\n", elmString(text), serializerModule)
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(expressionIndent)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("      ))\n    )\n\n")
	return b.String()
}

func outputChunk(bindings []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s : String\n", domain.OutputSymbolName)
	fmt.Fprintf(&b, "%s =\n", domain.OutputSymbolName)
	fmt.Fprintf(&b, "    %s.encode 0 (%s.object [ %s ])\n", serializerModule, serializerModule, strings.Join(bindings, ", "))
	return b.String()
}

func terminated(text string) string {
	if strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}

// elmString quotes text as an Elm string literal.
func elmString(text string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range text {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
