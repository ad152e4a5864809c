package domain

// Point is a 1-based line/column location.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Region spans two points in a document or assembly.
type Region struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// IsZero reports whether the region carries no location.
func (r Region) IsZero() bool {
	return r.Start.Line == 0 && r.End.Line == 0
}

// CodeFragment is one code block contributed by a document.
type CodeFragment struct {
	Text          string `json:"text"`
	DocumentIndex int    `json:"documentIndex"`
	Position      Region `json:"position"`
}

// ExpressionRequest asks for a value to be evaluated after a context's fragments.
type ExpressionRequest struct {
	Text          string `json:"text"`
	DocumentIndex int    `json:"documentIndex"`
	Position      Region `json:"position"`
}

// AnnotatedFragment is a code fragment plus the chaining attributes the
// document parser derived for it.
type AnnotatedFragment struct {
	Fragment    CodeFragment
	ContextName string
	ID          string
	Follows     string
}

// ContextExpression is an output-expression request tagged with the context it reads from.
type ContextExpression struct {
	Request     ExpressionRequest
	ContextName string
}

// Document is one parsed narrative file.
type Document struct {
	Path        string
	Follows     string
	Environment EnvironmentSpec
	Fragments   []AnnotatedFragment
	Expressions []ContextExpression
	// EndPosition is the last position of the document, used for messages
	// that cannot be attributed to any fragment.
	EndPosition Region
	// Messages are problems found while parsing, such as malformed attributes.
	Messages []Message
}

// DocumentChain is an ordered list of documents, root first. The last
// document is the one being resolved.
type DocumentChain struct {
	Documents   []Document
	Environment EnvironmentSpec
}

// Last returns the document being resolved.
func (c DocumentChain) Last() (Document, bool) {
	if len(c.Documents) == 0 {
		return Document{}, false
	}
	return c.Documents[len(c.Documents)-1], true
}

// Context is a named accumulation of fragments and the expressions requested from it.
type Context struct {
	Name              string
	CodeFragments     []CodeFragment
	OutputExpressions []ExpressionRequest
}
