package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// FilePermissions is the default permission for cache artifacts (rw-r--r--)
	FilePermissions = 0o644
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Cache layout constants
const (
	// CacheShapeVersion namespaces the on-disk layout so incompatible
	// layouts never share a tree.
	CacheShapeVersion = "v1"
	// ProgramsDirName is the per-environment subdirectory holding program artifacts.
	ProgramsDirName = "programs"
	// MetadataFileName holds the serialized EnvironmentMetadata.
	MetadataFileName = "litvis-environment.json"
	// GCSentinelName is the touch prefix used to throttle sweeps.
	GCSentinelName = "gc"
	// ResultFileSuffix is appended to a program name to form its result path.
	ResultFileSuffix = ".result.json"
	// OutputSymbolName is the top-level value the compiler prints.
	OutputSymbolName = "litvisOutputJson"
)

// Timeout and duration constants
const (
	// DefaultEnvironmentTimeout bounds lock waits and "changing" states for environments.
	DefaultEnvironmentTimeout = 30 * time.Second
	// DefaultProgramTimeout bounds lock waits on a program result.
	DefaultProgramTimeout = 20 * time.Second
	// DefaultCompileTimeout bounds a single compiler invocation.
	DefaultCompileTimeout = 60 * time.Second
	// LockPollInterval is the tick between lock/metadata polls.
	LockPollInterval = 100 * time.Millisecond
	// UsedAtPersistThreshold limits usedAt writes to one per interval.
	UsedAtPersistThreshold = time.Second
	// StaleRootLockAge marks a cache-root lock as stuck.
	StaleRootLockAge = 5 * time.Minute
)

// Garbage collection constants
const (
	// DefaultGCInterval throttles sweeps independent of call frequency.
	DefaultGCInterval = 5 * time.Minute
	// DefaultMaxProgramCount caps retained program artifact groups.
	DefaultMaxProgramCount = 1000
	// DefaultMaxProgramLifetime caps the age of retained program artifact groups.
	DefaultMaxProgramLifetime = 7 * 24 * time.Hour
)

// Limit constants
const (
	// MaxDocumentChainLength guards runaway follows chains.
	MaxDocumentChainLength = 20
	// DefaultConcurrency is the number of programs run at once.
	DefaultConcurrency = 4
	// DefaultParserCacheSize is the number of parsed values kept in memory.
	DefaultParserCacheSize = 1024
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultContextName is used for fragments without an explicit context.
	DefaultContextName = "default"
	// DefaultElmVersion is written to generated elm.json files.
	DefaultElmVersion = "0.19.1"
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
