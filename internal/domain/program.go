package domain

import "time"

// Program is one context bound to the environment it runs in.
type Program struct {
	ContextName       string
	Environment       Environment
	CodeFragments     []CodeFragment
	OutputExpressions []ExpressionRequest
	// FallbackPosition receives messages that cannot be attributed to a fragment.
	FallbackPosition Origin
}

// ChunkKind tags where an assembly chunk came from.
type ChunkKind string

const (
	ChunkAuxiliary       ChunkKind = "auxiliary"
	ChunkCodeFragment    ChunkKind = "codeFragment"
	ChunkExpressionGroup ChunkKind = "expressionGroup"
)

// Origin is a position in a specific document of the chain.
type Origin struct {
	DocumentIndex int
	Position      Region
}

// Chunk is one emitted piece of an assembly.
type Chunk struct {
	Text string
	Kind ChunkKind
	// Origin is set for code fragments and expression groups.
	Origin *Origin
	// CumulativeLineOffset is the 1-based assembly line of the chunk's
	// first line.
	CumulativeLineOffset int
	// BodyLine is the 1-based assembly line where the original source text begins.
	BodyLine int
	// ColumnShift is the indentation added in front of the original source text.
	ColumnShift int
}

// LineCount is the number of newline-terminated lines in the chunk.
func (c Chunk) LineCount() int {
	n := 0
	for i := 0; i < len(c.Text); i++ {
		if c.Text[i] == '\n' {
			n++
		}
	}
	return n
}

// ProgramAssembly is the compilable unit for one program. Never persisted.
type ProgramAssembly struct {
	Name   string
	Chunks []Chunk
	// Fallback receives messages that fall outside known source.
	Fallback Origin
}

// Source concatenates the chunk texts.
func (a ProgramAssembly) Source() string {
	size := 0
	for _, c := range a.Chunks {
		size += len(c.Text)
	}
	buf := make([]byte, 0, size)
	for _, c := range a.Chunks {
		buf = append(buf, c.Text...)
	}
	return string(buf)
}

// ProgramStatus is the outcome of a compiler run.
type ProgramStatus string

const (
	ProgramSucceeded ProgramStatus = "succeeded"
	ProgramFailed    ProgramStatus = "failed"
)

// RawCompilerError is a diagnostic as the compiler reported it, in assembly coordinates.
type RawCompilerError struct {
	Overview string `json:"overview"`
	Details  string `json:"details"`
	Region   Region `json:"region"`
}

// CachedProgramResult is persisted per assembly name and immutable once written.
type CachedProgramResult struct {
	Status                ProgramStatus      `json:"status"`
	Errors                []RawCompilerError `json:"errors"`
	ExpressionValueByText map[string]string  `json:"expressionValueByText,omitempty"`
	DebugLog              []string           `json:"debugLog,omitempty"`
}

// ExpressionStatus flags whether an expression value could be parsed.
type ExpressionStatus string

const (
	ExpressionOK    ExpressionStatus = "ok"
	ExpressionError ExpressionStatus = "error"
)

// EvaluatedExpression is a requested expression with its resolved value.
type EvaluatedExpression struct {
	Request  ExpressionRequest
	Status   ExpressionStatus
	RawValue string
	Value    Value
}

// ProgramResult is what the runner hands back to the resolver's caller.
type ProgramResult struct {
	ContextName  string
	AssemblyName string
	Status       ProgramStatus
	Messages     []Message
	Expressions  []EvaluatedExpression
	DebugLog     []string
	FromCache    bool
	Duration     time.Duration
}

// CompileRequest is the external compiler contract.
type CompileRequest struct {
	ModulePath       string
	OutputSymbolName string
	ProjectDirectory string
}
