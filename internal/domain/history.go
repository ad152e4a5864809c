package domain

import "time"

// RunRecord captures one program run.
type RunRecord struct {
	Timestamp    time.Time     `json:"timestamp"`
	Document     string        `json:"document"`
	Context      string        `json:"context"`
	Program      string        `json:"program"`
	Status       ProgramStatus `json:"status"`
	FromCache    bool          `json:"from_cache"`
	DurationMS   int64         `json:"duration_ms"`
	MessageCount int           `json:"message_count"`
}
