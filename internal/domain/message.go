package domain

// Severity grades a message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Message is attached to a document position; the engine's only output besides values.
type Message struct {
	Text          string   `json:"text"`
	Position      Region   `json:"position"`
	Severity      Severity `json:"severity"`
	DocumentIndex int      `json:"documentIndex"`
}

// NarrativeResult aggregates the run of every context in a document chain.
type NarrativeResult struct {
	Chain    DocumentChain
	Programs []ProgramResult
	// Messages holds document-level messages not owned by a program.
	Messages []Message
}

// AllMessages returns document-level and program messages in order.
func (r NarrativeResult) AllMessages() []Message {
	out := append([]Message(nil), r.Messages...)
	for _, p := range r.Programs {
		out = append(out, p.Messages...)
	}
	return out
}

// HasErrors reports whether any message is an error.
func (r NarrativeResult) HasErrors() bool {
	for _, m := range r.AllMessages() {
		if m.Severity == SeverityError {
			return true
		}
	}
	return false
}
