package domain

import "time"

// Command describes one external process invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Stdin   string
	Timeout time.Duration
}

// ExecutionResult wraps details from the command executor.
type ExecutionResult struct {
	Ran        bool
	Stdout     string
	Stderr     string
	ExitCode   int
	DurationMS int64
	TimedOut   bool
	Err        error
}

// Reasons a sweep was skipped.
const (
	SkipIntervalNotElapsed = "interval not elapsed"
	SkipRootLocked         = "cache root locked"
)

// GCReport summarizes one garbage-collection sweep.
type GCReport struct {
	Skipped            bool
	SkipReason         string
	ProgramsRetained   int
	ProgramsRemoved    int
	RemovedDirectories []string
}
