// Package document reads literate Markdown narratives: YAML front matter,
// fenced elm blocks carrying attributes and inline output triggers.
package document

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/litvis-go/internal/domain"
)

var (
	fenceLine     = regexp.MustCompile("^ {0,3}(`{3,}|~{3,})\\s*(.*)$")
	elmInfo       = regexp.MustCompile(`^elm\s*(\{.*\})?\s*$`)
	inlineTrigger = regexp.MustCompile("`(?:elm\\s*(\\{[^}`]*\\})|([rjv]):)([^`]+)`")

	outputKeys = []string{"r", "j", "v"}
)

type frontMatter struct {
	Follows string `yaml:"follows"`
	Elm     struct {
		Dependencies      map[string]domain.DependencyVersion `yaml:"dependencies"`
		SourceDirectories []string                            `yaml:"source-directories"`
	} `yaml:"elm"`
}

// Parse reads one narrative. Problems inside individual blocks become
// document messages; only malformed front matter is an error. Document
// indices are left at zero for the chain loader to assign.
func Parse(path string, content []byte) (domain.Document, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	doc := domain.Document{Path: path}

	body, err := parseFrontMatter(&doc, lines)
	if err != nil {
		return doc, err
	}

	p := &parser{doc: &doc, lines: lines}
	p.scan(body)

	end := domain.Point{Line: len(lines), Column: 1}
	doc.EndPosition = domain.Region{Start: end, End: end}
	return doc, nil
}

func parseFrontMatter(doc *domain.Document, lines []string) (int, error) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return 0, nil
	}
	for i := 1; i < len(lines); i++ {
		marker := strings.TrimSpace(lines[i])
		if marker != "---" && marker != "..." {
			continue
		}
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(strings.Join(lines[1:i], "\n")), &fm); err != nil {
			return 0, fmt.Errorf("front matter: %w", err)
		}
		doc.Follows = strings.TrimSpace(fm.Follows)
		doc.Environment.Dependencies = fm.Elm.Dependencies
		base := filepath.Dir(doc.Path)
		for _, dir := range fm.Elm.SourceDirectories {
			if !filepath.IsAbs(dir) {
				dir = filepath.Join(base, dir)
			}
			doc.Environment.SourceDirectories = append(doc.Environment.SourceDirectories, filepath.Clean(dir))
		}
		return i + 1, nil
	}
	return 0, nil
}

type parser struct {
	doc   *domain.Document
	lines []string
}

func (p *parser) scan(from int) {
	for i := from; i < len(p.lines); i++ {
		m := fenceLine.FindStringSubmatch(p.lines[i])
		if m == nil {
			p.inline(i)
			continue
		}
		fence, info := m[1], m[2]
		end := p.closingFence(i+1, fence)
		if im := elmInfo.FindStringSubmatch(strings.TrimSpace(info)); im != nil && im[1] != "" {
			p.block(i, im[1], p.lines[i+1:end])
		}
		i = end
	}
}

// closingFence returns the index of the line closing a fence opened with
// fence, or len(lines) when the block runs to the end of the file.
func (p *parser) closingFence(from int, fence string) int {
	for j := from; j < len(p.lines); j++ {
		trimmed := strings.TrimSpace(p.lines[j])
		if strings.HasPrefix(trimmed, fence) && strings.Trim(trimmed, fence[:1]) == "" {
			return j
		}
	}
	return len(p.lines)
}

func (p *parser) block(fenceIndex int, rawAttrs string, body []string) {
	fenceLineNo := fenceIndex + 1
	attrs, err := ParseAttributes(rawAttrs)
	if err != nil {
		p.warn(fenceLineNo, 1, fmt.Sprintf("ignoring elm block: %v", err))
		return
	}
	contextName := domain.DefaultContextName
	if v, ok := attrs.Value("context"); ok && v != "" {
		contextName = v
	}

	_, hiddenLiterate := attrs.Value("l")
	literate := attrs.Has("l") || hiddenLiterate
	if literate && len(body) > 0 {
		last := body[len(body)-1]
		fragment := domain.AnnotatedFragment{
			Fragment: domain.CodeFragment{
				Text: strings.Join(body, "\n"),
				Position: domain.Region{
					Start: domain.Point{Line: fenceLineNo + 1, Column: 1},
					End:   domain.Point{Line: fenceLineNo + len(body), Column: len(last) + 1},
				},
			},
			ContextName: contextName,
		}
		fragment.ID, _ = attrs.Value("id")
		fragment.Follows, _ = attrs.Value("follows")
		p.doc.Fragments = append(p.doc.Fragments, fragment)
	}

	for _, key := range outputKeys {
		for _, expr := range attrs.Values(key) {
			p.expression(contextName, expr, fenceLineNo, 1)
		}
		if literate || !attrs.Has(key) {
			continue
		}
		for j, line := range body {
			if strings.TrimSpace(line) == "" {
				continue
			}
			indent := len(line) - len(strings.TrimLeft(line, " \t"))
			p.expression(contextName, line, fenceLineNo+1+j, indent+1)
		}
	}
}

func (p *parser) inline(index int) {
	line := p.lines[index]
	for _, m := range inlineTrigger.FindAllStringSubmatchIndex(line, -1) {
		contextName := domain.DefaultContextName
		if m[2] >= 0 {
			attrs, err := ParseAttributes(line[m[2]:m[3]])
			if err != nil {
				p.warn(index+1, m[0]+1, fmt.Sprintf("ignoring inline trigger: %v", err))
				continue
			}
			if !attrs.Has("r") && !attrs.Has("j") && !attrs.Has("v") {
				continue
			}
			if v, ok := attrs.Value("context"); ok && v != "" {
				contextName = v
			}
		}
		raw := line[m[6]:m[7]]
		lead := len(raw) - len(strings.TrimLeft(raw, " "))
		p.expression(contextName, raw, index+1, m[6]+lead+1)
	}
}

func (p *parser) expression(contextName, text string, line, column int) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	p.doc.Expressions = append(p.doc.Expressions, domain.ContextExpression{
		ContextName: contextName,
		Request: domain.ExpressionRequest{
			Text: text,
			Position: domain.Region{
				Start: domain.Point{Line: line, Column: column},
				End:   domain.Point{Line: line, Column: column + len(text)},
			},
		},
	})
}

func (p *parser) warn(line, column int, text string) {
	pos := domain.Point{Line: line, Column: column}
	p.doc.Messages = append(p.doc.Messages, domain.Message{
		Text:     text,
		Severity: domain.SeverityWarning,
		Position: domain.Region{Start: pos, End: pos},
	})
}
