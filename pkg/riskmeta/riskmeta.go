// Package riskmeta loads optional per-technique risk metadata: an impact
// score (0-40) and a CVSS-like vulnerability score (0-10), typically
// exported from ATT&CK tooling alongside the mapping catalog.
//
// Absence is the normal case. A missing file yields an empty store, and a
// technique or field that is not present simply means "not provided"; the
// classifier falls back to its severity-derived heuristics.
package riskmeta

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/exploopio/waflens/pkg/core"
)

// Score bounds. Values outside these ranges are discarded on read.
const (
	MaxImpact = 40.0
	MaxCVSS   = 10.0
)

// Entry holds the optional risk metadata for one technique.
// Nil fields mean the value was not provided (or was out of range).
type Entry struct {
	Impact *float64
	CVSS   *float64
}

// Store is a read-only technique -> Entry lookup.
type Store struct {
	entries map[string]Entry
}

// Empty returns a store with no metadata.
func Empty() *Store {
	return &Store{entries: map[string]Entry{}}
}

// entryDoc mirrors the on-disk shape: {"T1190": {"impact": 40, "cvss": 9.8}}.
// Fields are decoded as raw JSON so that non-numeric values can be dropped
// per field instead of failing the whole document.
type entryDoc struct {
	Impact json.RawMessage `json:"impact"`
	CVSS   json.RawMessage `json:"cvss"`
}

// Load reads the risk metadata file at path. A missing file returns an
// empty store silently; a malformed document returns an empty store with
// a warning. Out-of-range and non-numeric fields are discarded.
func Load(path string, log core.Logger) *Store {
	if log == nil {
		log = &core.NopLogger{}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("riskmeta: cannot read %s: %v (using empty metadata)", path, err)
		}
		return Empty()
	}

	var docs map[string]entryDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		log.Warn("riskmeta: malformed document %s: %v (using empty metadata)", path, err)
		return Empty()
	}

	s := Empty()
	for id, doc := range docs {
		var e Entry
		if v, ok := parseScore(doc.Impact, 0, MaxImpact); ok {
			e.Impact = &v
		}
		if v, ok := parseScore(doc.CVSS, 0, MaxCVSS); ok {
			e.CVSS = &v
		}
		if e.Impact != nil || e.CVSS != nil {
			s.entries[id] = e
		}
	}
	return s
}

// parseScore decodes a raw JSON number and validates its range. JSON null
// unmarshals into a float64 as a no-op, so it is rejected explicitly;
// a null field means "not provided", same as an absent one.
func parseScore(raw json.RawMessage, min, max float64) (float64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	if v < min || v > max {
		return 0, false
	}
	return v, true
}

// Lookup returns the metadata entry for a technique.
func (s *Store) Lookup(techniqueID string) (Entry, bool) {
	e, ok := s.entries[techniqueID]
	return e, ok
}

// Impact returns the explicit impact score for a technique, if provided.
func (s *Store) Impact(techniqueID string) (float64, bool) {
	e, ok := s.entries[techniqueID]
	if !ok || e.Impact == nil {
		return 0, false
	}
	return *e.Impact, true
}

// CVSS returns the explicit CVSS score for a technique, if provided.
func (s *Store) CVSS(techniqueID string) (float64, bool) {
	e, ok := s.entries[techniqueID]
	if !ok || e.CVSS == nil {
		return 0, false
	}
	return *e.CVSS, true
}

// Len returns the number of techniques with at least one score.
func (s *Store) Len() int {
	return len(s.entries)
}
