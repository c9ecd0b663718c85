package models

import "time"

// ScraperStatus is the run-state of a scraper process as tracked by
// its control row.
type ScraperStatus string

const (
	StatusIdle     ScraperStatus = "idle"
	StatusStarting ScraperStatus = "starting"
	StatusRunning  ScraperStatus = "running"
	StatusStopping ScraperStatus = "stopping"
	StatusStopped  ScraperStatus = "stopped"
	StatusError    ScraperStatus = "error"
)

// ControlRow is the single source of truth for a scraper's
// enable/disable, heartbeat, and last-error state. Exactly one row
// exists per scraper name.
type ControlRow struct {
	Name          string
	Enabled       bool
	Status        ScraperStatus
	LastHeartbeat *time.Time
	LastError     string
	PID           int
	Config        map[string]any
	UpdatedBy     string
	UpdatedAt     time.Time
}

// LogLevel enumerates the severities a LogEntry may carry.
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
	LevelSuccess LogLevel = "success"
)

// LogEntry is one row persisted by the structured logger's DB sink.
type LogEntry struct {
	Timestamp  time.Time
	Source     string
	ScriptName string
	Level      LogLevel
	Message    string // truncated to 500 chars
	Context    map[string]any
	Action     string
	DurationMS int64
}

// TruncateMessage enforces the 500-character cap on log messages.
func TruncateMessage(s string) string {
	const maxLen = 500
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// Proxy is a rotation-pool entry with running health counters.
type Proxy struct {
	ID           string
	Endpoint     string // host:port with embedded auth
	DisplayName  string
	Enabled      bool
	SuccessCount int64
	FailureCount int64
	LastOKAt     *time.Time

	// consecutiveFailures is pool-internal bookkeeping, not persisted
	// verbatim; see internal/proxy.Pool.
}
