package commands

import "github.com/doeshing/litvis-go/internal/domain"

// CLI-specific constants
const (
	// DefaultEditorCommand is the default editor command
	DefaultEditorCommand = "vi"
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = domain.DefaultHistoryLimit
	// MaxHistoryAnalysisRecords bounds the records read by 'history stats'
	MaxHistoryAnalysisRecords = 1000
	// TopDocumentsShown is how many documents 'history stats' lists
	TopDocumentsShown = 5
	// TimestampFormat is used for absolute timestamps in listings
	TimestampFormat = domain.TimestampFormat
)

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history store unavailable (history.enabled is false)"
	ErrCacheUnavailable         = "environment cache unavailable"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoHistoryRecorded        = "No history recorded yet."
	MsgNoEnvironments           = "No cached environments."
)
