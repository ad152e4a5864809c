package program

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/doeshing/litvis-go/internal/domain"
)

var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*[A-Za-z]")

// messageParts accepts either a plain string or the Elm 0.19 styled form,
// a list of strings and {"string": ...} objects.
type messageParts string

func (m *messageParts) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*m = messageParts(s)
		return nil
	}
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return err
	}
	var b strings.Builder
	for _, part := range parts {
		var text string
		if err := json.Unmarshal(part, &text); err == nil {
			b.WriteString(text)
			continue
		}
		var styled struct {
			String string `json:"string"`
		}
		if err := json.Unmarshal(part, &styled); err != nil {
			return err
		}
		b.WriteString(styled.String)
	}
	*m = messageParts(b.String())
	return nil
}

type diagnostic struct {
	Overview string         `json:"overview"`
	Title    string         `json:"title"`
	Tag      string         `json:"tag"`
	Details  messageParts   `json:"details"`
	Message  messageParts   `json:"message"`
	Region   *domain.Region `json:"region"`
}

func (d diagnostic) raw() domain.RawCompilerError {
	overview := d.Overview
	if overview == "" {
		overview = d.Title
	}
	if overview == "" {
		overview = d.Tag
	}
	details := string(d.Details)
	if details == "" {
		details = string(d.Message)
	}
	out := domain.RawCompilerError{Overview: overview, Details: details}
	if d.Region != nil {
		out.Region = *d.Region
	}
	return out
}

type report struct {
	Type    string       `json:"type"`
	Title   string       `json:"title"`
	Message messageParts `json:"message"`
	Errors  []struct {
		Path     string       `json:"path"`
		Problems []diagnostic `json:"problems"`
	} `json:"errors"`
}

// parseDiagnosticLine decodes one line of compiler output as structured
// diagnostics. ok is false when the line is not a diagnostic document.
func parseDiagnosticLine(line string) ([]domain.RawCompilerError, bool) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "["):
		var list []diagnostic
		if err := json.Unmarshal([]byte(line), &list); err != nil || len(list) == 0 {
			return nil, false
		}
		out := make([]domain.RawCompilerError, 0, len(list))
		for _, d := range list {
			out = append(out, d.raw())
		}
		return out, true
	case strings.HasPrefix(line, "{"):
		var r report
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, false
		}
		switch {
		case r.Type == "compile-errors":
			var out []domain.RawCompilerError
			for _, e := range r.Errors {
				for _, p := range e.Problems {
					out = append(out, p.raw())
				}
			}
			return out, len(out) > 0
		case r.Type == "error" || r.Title != "":
			return []domain.RawCompilerError{{Overview: r.Title, Details: string(r.Message)}}, true
		}
		var single diagnostic
		if err := json.Unmarshal([]byte(line), &single); err != nil {
			return nil, false
		}
		if single.Overview == "" && single.Tag == "" {
			return nil, false
		}
		return []domain.RawCompilerError{single.raw()}, true
	default:
		return nil, false
	}
}

// parseFailure extracts diagnostics from a failed run: the last line of
// stdout or stderr that decodes as diagnostics wins, plain text otherwise.
func parseFailure(stdout, stderr string) []domain.RawCompilerError {
	lines := append(splitLines(stdout), splitLines(stderr)...)
	for i := len(lines) - 1; i >= 0; i-- {
		if errs, ok := parseDiagnosticLine(lines[i]); ok {
			return errs
		}
	}
	return []domain.RawCompilerError{plainTextError(stderr, stdout)}
}

// plainTextError builds one diagnostic from unstructured output, taking the
// title of an Elm "-- TITLE ---- file" banner as the overview when present.
func plainTextError(outputs ...string) domain.RawCompilerError {
	var text string
	for _, o := range outputs {
		if t := strings.TrimSpace(ansiEscape.ReplaceAllString(o, "")); t != "" {
			text = t
			break
		}
	}
	if text == "" {
		return domain.RawCompilerError{Overview: "compilation failed", Details: "the compiler produced no output"}
	}
	first, rest, _ := strings.Cut(text, "\n")
	if strings.HasPrefix(first, "-- ") {
		title := strings.TrimSpace(strings.Trim(strings.TrimPrefix(first, "-- "), "- "))
		if i := strings.Index(title, " --"); i > 0 {
			title = strings.TrimSpace(title[:i])
		}
		return domain.RawCompilerError{Overview: title, Details: strings.TrimSpace(rest)}
	}
	return domain.RawCompilerError{Overview: "compilation failed", Details: text}
}

// parseSuccess reads the output symbol from the last stdout line; every
// earlier line is debug output of the program.
func parseSuccess(stdout string) (map[string]string, []string, error) {
	lines := splitLines(stdout)
	if len(lines) == 0 {
		return nil, nil, fmt.Errorf("compiler produced no output")
	}
	last := lines[len(lines)-1]
	values := map[string]string{}
	if err := json.Unmarshal([]byte(last), &values); err != nil {
		return nil, lines, fmt.Errorf("decode %s: %w", domain.OutputSymbolName, err)
	}
	return values, lines[:len(lines)-1], nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
