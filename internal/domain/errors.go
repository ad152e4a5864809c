package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLockHeld is returned when an exclusive lock file already exists.
	ErrLockHeld = errors.New("lock is held")
	// ErrMalformedCache marks a cache artifact that cannot be decoded.
	ErrMalformedCache = errors.New("malformed cache artifact")
)

// LockTimeoutError is returned when a lock stays held past its deadline.
type LockTimeoutError struct {
	Path    string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("lock %s still held after %s", e.Path, e.Timeout)
}

// ChainReason is the reason code of a DocumentChainError.
type ChainReason string

const (
	ChainSelfFollow    ChainReason = "self-follow"
	ChainCycle         ChainReason = "cycle"
	ChainMissingTarget ChainReason = "missing-target"
	ChainTooLong       ChainReason = "too-long"
	ChainUnreadable    ChainReason = "unreadable"
)

// DocumentChainError halts the resolution of one narrative.
type DocumentChainError struct {
	Reason ChainReason
	Path   string
	Target string
	Err    error
}

func (e *DocumentChainError) Error() string {
	switch e.Reason {
	case ChainSelfFollow:
		return fmt.Sprintf("%s follows itself", e.Path)
	case ChainCycle:
		return fmt.Sprintf("%s follows %s, which closes a cycle", e.Path, e.Target)
	case ChainMissingTarget:
		return fmt.Sprintf("%s follows %s, which does not exist", e.Path, e.Target)
	case ChainTooLong:
		return fmt.Sprintf("%s: document chain longer than %d", e.Path, MaxDocumentChainLength)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Path, e.Err)
		}
		return fmt.Sprintf("%s: unreadable document", e.Path)
	}
}

func (e *DocumentChainError) Unwrap() error { return e.Err }

// ProvisionStage names the step of environment setup that failed.
type ProvisionStage string

const (
	StageDirectory ProvisionStage = "directory"
	StageLock      ProvisionStage = "lock"
	StageInstall   ProvisionStage = "install"
	StageStuck     ProvisionStage = "stuck"
)

// EnvironmentProvisionError is recorded in metadata, never returned to the resolver.
type EnvironmentProvisionError struct {
	Stage ProvisionStage
	Err   error
}

func (e *EnvironmentProvisionError) Error() string {
	return fmt.Sprintf("environment %s: %v", e.Stage, e.Err)
}

func (e *EnvironmentProvisionError) Unwrap() error { return e.Err }
