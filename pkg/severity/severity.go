// Package severity provides the ordinal severity scale used by the waflens
// classification engine and reports.
//
// The scale is strictly ordered INFO < LOW < MEDIUM < HIGH < CRITICAL.
// All comparisons go through Priority; never compare labels lexically.
package severity

import "strings"

// Level represents a severity level for classified attack traffic.
type Level string

const (
	// Critical - Immediate action required. Actively exploited or trivially exploitable.
	Critical Level = "CRITICAL"

	// High - Serious attack activity that should be addressed urgently.
	High Level = "HIGH"

	// Medium - Moderate risk, should be addressed in normal operational cycle.
	Medium Level = "MEDIUM"

	// Low - Minor activity, review when convenient.
	Low Level = "LOW"

	// Info - Informational, no direct security impact.
	Info Level = "INFO"

	// Unknown - Severity could not be resolved from any mapping.
	// The classifier never emits Unknown; it only appears as a lookup miss.
	Unknown Level = ""
)

// AllLevels returns all emitted severity levels in order of priority (highest first).
func AllLevels() []Level {
	return []Level{Critical, High, Medium, Low, Info}
}

// String returns the string representation of the severity level.
func (l Level) String() string {
	if l == Unknown {
		return "UNKNOWN"
	}
	return string(l)
}

// Priority returns the numeric priority of the severity level.
// Higher numbers = higher priority.
func (l Level) Priority() int {
	switch l {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// IsHigherThan returns true if this severity is higher than the other.
func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// IsAtLeast returns true if this severity is at least as high as the other.
func (l Level) IsAtLeast(other Level) bool {
	return l.Priority() >= other.Priority()
}

// FromString normalizes a severity string to a Level. Matching is
// case-insensitive; anything outside the five-label scale resolves to
// Unknown so that loaders can discard malformed mapping values.
func FromString(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return Critical
	case "HIGH":
		return High
	case "MEDIUM":
		return Medium
	case "LOW":
		return Low
	case "INFO":
		return Info
	default:
		return Unknown
	}
}

// FromRiskScore converts a 0-100 risk score to a severity level.
// Buckets:
//   - >= 90: Critical
//   - >= 70: High
//   - >= 40: Medium
//   - >  0:  Low
//   - else:  Info
func FromRiskScore(score float64) Level {
	switch {
	case score >= 90.0:
		return Critical
	case score >= 70.0:
		return High
	case score >= 40.0:
		return Medium
	case score > 0:
		return Low
	default:
		return Info
	}
}

// Compare returns:
//
//	-1 if a < b (a is lower severity)
//	 0 if a == b
//	+1 if a > b (a is higher severity)
func Compare(a, b Level) int {
	pa, pb := a.Priority(), b.Priority()
	switch {
	case pa < pb:
		return -1
	case pa > pb:
		return 1
	default:
		return 0
	}
}

// Max returns the higher severity of two levels.
func Max(a, b Level) Level {
	if b.IsHigherThan(a) {
		return b
	}
	return a
}

// Min returns the lower severity of two levels.
func Min(a, b Level) Level {
	if a.IsHigherThan(b) {
		return b
	}
	return a
}

// Distribution counts classified traffic by severity level.
type Distribution struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Add increases the count for the given severity by n.
// Severity distributions are weighted by event count, so a technique
// matched 40 times contributes 40 to its severity bucket.
func (d *Distribution) Add(level Level, n int) {
	if n <= 0 {
		return
	}
	d.Total += n
	switch level {
	case Critical:
		d.Critical += n
	case High:
		d.High += n
	case Medium:
		d.Medium += n
	case Low:
		d.Low += n
	default:
		d.Info += n
	}
}

// Increment increases the count for the given severity by one.
func (d *Distribution) Increment(level Level) {
	d.Add(level, 1)
}

// Get returns the count for the given severity level.
func (d *Distribution) Get(level Level) int {
	switch level {
	case Critical:
		return d.Critical
	case High:
		return d.High
	case Medium:
		return d.Medium
	case Low:
		return d.Low
	case Info:
		return d.Info
	default:
		return 0
	}
}

// Highest returns the highest severity level that has a non-zero count.
func (d *Distribution) Highest() Level {
	if d.Critical > 0 {
		return Critical
	}
	if d.High > 0 {
		return High
	}
	if d.Medium > 0 {
		return Medium
	}
	if d.Low > 0 {
		return Low
	}
	if d.Info > 0 {
		return Info
	}
	return Unknown
}
