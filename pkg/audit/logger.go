// Package audit provides a structured JSON audit trail of analysis runs.
//
// Every run of the analyzer writes the milestones that matter for later
// review: what was ingested, what matched, how severities landed, what
// reports were produced, and which enrichments failed. Events are
// buffered and flushed in the background; Stop drains the buffer.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Run lifecycle events
	EventRunStarted   EventType = "run_started"
	EventRunCompleted EventType = "run_completed"
	EventRunFailed    EventType = "run_failed"

	// Analysis events
	EventAnalyzeCompleted EventType = "analyze_completed"
	EventClassifySummary  EventType = "classify_summary"

	// Report events
	EventReportGenerated EventType = "report_generated"
	EventReportFailed    EventType = "report_failed"

	// Enrichment events
	EventEnrichFailed EventType = "enrich_failed"

	// Server events
	EventServerStarted EventType = "server_started"
	EventServerStopped EventType = "server_stopped"
)

// Severity represents log severity level.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARN"
	SeverityError   Severity = "ERROR"
)

// Event represents one audit record.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Severity  Severity       `json:"severity"`
	RunID     string         `json:"run_id,omitempty"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Duration  time.Duration  `json:"duration_ms,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// LoggerConfig configures the audit logger.
type LoggerConfig struct {
	// RunID is included in every event unless the event sets its own.
	RunID string

	// LogFile is the audit log path. Default: ~/.waflens/audit.log
	LogFile string

	// BufferSize is the number of events buffered before a flush.
	// Default: 100
	BufferSize int

	// FlushInterval is how often buffered events hit disk.
	// Default: 5 seconds
	FlushInterval time.Duration

	// Verbose also prints events to stdout.
	Verbose bool
}

// DefaultLoggerConfig returns sensible defaults.
func DefaultLoggerConfig() *LoggerConfig {
	home, _ := os.UserHomeDir()
	if home == "" {
		home = "/tmp"
	}
	return &LoggerConfig{
		LogFile:       filepath.Join(home, ".waflens", "audit.log"),
		BufferSize:    100,
		FlushInterval: 5 * time.Second,
	}
}

// Logger is the audit logger.
type Logger struct {
	config *LoggerConfig
	file   *os.File
	mu     sync.Mutex

	buffer   []Event
	bufferMu sync.Mutex

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewLogger creates an audit logger appending to the configured file.
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.LogFile == "" {
		config.LogFile = DefaultLoggerConfig().LogFile
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 100
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = 5 * time.Second
	}

	dir := filepath.Dir(config.LogFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Logger{
		config: config,
		file:   file,
		buffer: make([]Event, 0, config.BufferSize),
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins background flushing.
func (l *Logger) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	l.mu.Unlock()

	l.wg.Add(1)
	go l.flushLoop()
}

// Stop stops the logger, flushes remaining events and closes the file.
func (l *Logger) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		l.Flush()
		return l.file.Close()
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()
	l.Flush()
	return l.file.Close()
}

func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Flush()
		case <-l.stopCh:
			return
		}
	}
}

// Flush writes all buffered events to disk.
func (l *Logger) Flush() {
	l.bufferMu.Lock()
	if len(l.buffer) == 0 {
		l.bufferMu.Unlock()
		return
	}
	events := l.buffer
	l.buffer = make([]Event, 0, l.config.BufferSize)
	l.bufferMu.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, event := range events {
		line, err := json.Marshal(event)
		if err != nil {
			continue
		}
		l.file.Write(append(line, '\n'))
	}
	l.file.Sync()
}

// Log records an audit event.
func (l *Logger) Log(event Event) {
	event.Timestamp = time.Now()
	if event.RunID == "" {
		event.RunID = l.config.RunID
	}

	l.bufferMu.Lock()
	l.buffer = append(l.buffer, event)
	shouldFlush := len(l.buffer) >= l.config.BufferSize
	l.bufferMu.Unlock()

	if l.config.Verbose {
		fmt.Printf("[audit] %s %s: %s\n", event.Severity, event.Type, event.Message)
	}

	if shouldFlush {
		go l.Flush()
	}
}

// Convenience methods for common events

// RunStarted logs the beginning of an analysis run.
func (l *Logger) RunStarted(logSpec string) {
	l.Log(Event{
		Type:     EventRunStarted,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Analysis run started over %s", logSpec),
		Details:  map[string]any{"log_spec": logSpec},
	})
}

// RunCompleted logs a successful run.
func (l *Logger) RunCompleted(duration time.Duration) {
	l.Log(Event{
		Type:     EventRunCompleted,
		Severity: SeverityInfo,
		Message:  "Analysis run completed",
		Duration: duration,
	})
}

// RunFailed logs a failed run.
func (l *Logger) RunFailed(err error) {
	event := Event{
		Type:     EventRunFailed,
		Severity: SeverityError,
		Message:  "Analysis run failed",
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// AnalyzeCompleted logs the aggregation outcome of a capture.
func (l *Logger) AnalyzeCompleted(entries, matches, techniques int, duration time.Duration) {
	l.Log(Event{
		Type:     EventAnalyzeCompleted,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Analyzed %d entries: %d matches across %d techniques", entries, matches, techniques),
		Duration: duration,
		Details: map[string]any{
			"entries":    entries,
			"matches":    matches,
			"techniques": techniques,
		},
	})
}

// ClassifySummary logs the severity distribution of a run.
func (l *Logger) ClassifySummary(distribution map[string]int) {
	details := make(map[string]any, len(distribution))
	for level, n := range distribution {
		details[level] = n
	}
	l.Log(Event{
		Type:     EventClassifySummary,
		Severity: SeverityInfo,
		Message:  "Severity classification summary",
		Details:  details,
	})
}

// ReportGenerated logs a produced report artifact.
func (l *Logger) ReportGenerated(format, path string) {
	l.Log(Event{
		Type:     EventReportGenerated,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("Report generated: %s", format),
		Details: map[string]any{
			"format": format,
			"path":   path,
		},
	})
}

// EnrichFailed logs a failed enrichment lookup.
func (l *Logger) EnrichFailed(enricher string, err error) {
	event := Event{
		Type:     EventEnrichFailed,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("Enrichment via %s failed", enricher),
		Details:  map[string]any{"enricher": enricher},
	}
	if err != nil {
		event.Error = err.Error()
	}
	l.Log(event)
}

// ServerStarted logs the API server coming up.
func (l *Logger) ServerStarted(addr string) {
	l.Log(Event{
		Type:     EventServerStarted,
		Severity: SeverityInfo,
		Message:  fmt.Sprintf("API server listening on %s", addr),
		Details:  map[string]any{"addr": addr},
	})
}

// ServerStopped logs a server shutdown.
func (l *Logger) ServerStopped() {
	l.Log(Event{
		Type:     EventServerStopped,
		Severity: SeverityInfo,
		Message:  "API server stopped",
	})
}
