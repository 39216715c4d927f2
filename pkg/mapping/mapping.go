// Package mapping loads and indexes the static severity-mapping catalog.
//
// The catalog is a JSON object whose top-level keys are profile names
// (e.g. "scanner", "cvss"), each holding override tables, category tables,
// escalation thresholds, CVSS tier floors and critical-asset keywords.
// A document without profile sections is accepted as a single flat profile
// for backward compatibility.
//
// Loading never fails: a missing or malformed file degrades to an empty
// store and a warning, and every lookup returns a zero value on miss.
// The classifier depends on this so it can stay total.
package mapping

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/exploopio/waflens/pkg/core"
	"github.com/exploopio/waflens/pkg/severity"
)

// Escalation holds volume thresholds above which severity is bumped.
type Escalation struct {
	CountHigh        int `json:"count_high"`
	CountCritical    int `json:"count_critical"`
	RequestsHigh     int `json:"requests_high"`
	RequestsCritical int `json:"requests_critical"`
}

// DefaultEscalation returns the documented default thresholds.
func DefaultEscalation() Escalation {
	return Escalation{
		CountHigh:        20,
		CountCritical:    200,
		RequestsHigh:     1000,
		RequestsCritical: 10000,
	}
}

// CVSSThresholds are the per-tier minimum CVSS scores used as floors for
// the heuristic vulnerability score when no explicit metadata exists.
type CVSSThresholds struct {
	CriticalMin float64 `json:"critical_min"`
	HighMin     float64 `json:"high_min"`
	MediumMin   float64 `json:"medium_min"`
	LowMin      float64 `json:"low_min"`
}

// DefaultCVSSThresholds returns the CVSS v3 rating boundaries.
func DefaultCVSSThresholds() CVSSThresholds {
	return CVSSThresholds{
		CriticalMin: 9.0,
		HighMin:     7.0,
		MediumMin:   4.0,
		LowMin:      0.1,
	}
}

// Profile is one named section of the severity-mapping catalog.
// A Profile is immutable after load and safe for concurrent reads.
type Profile struct {
	name             string
	overrides        map[string]severity.Level
	categories       map[string]string
	categorySeverity map[string]severity.Level
	escalation       Escalation
	escalationSet    bool
	cvssThresholds   CVSSThresholds
	keywords         map[string]struct{}
}

// EmptyProfile returns a profile with no data. Lookups on it miss and the
// engine falls back to defaults.
func EmptyProfile(name string) *Profile {
	return &Profile{
		name:             name,
		overrides:        map[string]severity.Level{},
		categories:       map[string]string{},
		categorySeverity: map[string]severity.Level{},
		escalation:       DefaultEscalation(),
		cvssThresholds:   DefaultCVSSThresholds(),
		keywords:         map[string]struct{}{},
	}
}

// Name returns the profile name.
func (p *Profile) Name() string { return p.name }

// OverrideFor returns the curated severity override for a technique, if any.
func (p *Profile) OverrideFor(techniqueID string) (severity.Level, bool) {
	lvl, ok := p.overrides[techniqueID]
	return lvl, ok
}

// CategoryFor returns the category a technique maps to, if any.
func (p *Profile) CategoryFor(techniqueID string) (string, bool) {
	cat, ok := p.categories[techniqueID]
	return cat, ok
}

// SeverityForCategory returns the severity assigned to a category, if any.
func (p *Profile) SeverityForCategory(category string) (severity.Level, bool) {
	lvl, ok := p.categorySeverity[category]
	return lvl, ok
}

// Escalation returns the volume escalation thresholds.
func (p *Profile) Escalation() Escalation { return p.escalation }

// EscalationConfigured reports whether the profile explicitly configured
// escalation thresholds (as opposed to carrying the defaults).
func (p *Profile) EscalationConfigured() bool { return p.escalationSet }

// CVSSThresholds returns the per-tier CVSS floors.
func (p *Profile) CVSSThresholds() CVSSThresholds { return p.cvssThresholds }

// Keywords returns the lowercase critical-asset keywords.
func (p *Profile) Keywords() []string {
	out := make([]string, 0, len(p.keywords))
	for k := range p.keywords {
		out = append(out, k)
	}
	return out
}

// IsEmpty reports whether the profile carries no mapping data at all.
func (p *Profile) IsEmpty() bool {
	return len(p.overrides) == 0 && len(p.categories) == 0 &&
		len(p.categorySeverity) == 0 && len(p.keywords) == 0
}

// =============================================================================
// Store
// =============================================================================

// Store holds the parsed mapping document and hands out profiles by name.
type Store struct {
	sections map[string]json.RawMessage
	flat     *profileDoc // set when the document itself is a single profile
	log      core.Logger
}

// profileDoc mirrors the on-disk profile section shape.
type profileDoc struct {
	MitreOverrides        map[string]string `json:"mitre_overrides"`
	MitreToCategory       map[string]string `json:"mitre_to_category"`
	CategoryToSeverity    map[string]string `json:"category_to_severity"`
	Escalation            *Escalation       `json:"escalation"`
	CVSSThresholds        *CVSSThresholds   `json:"cvss_thresholds"`
	CriticalAssetKeywords []string          `json:"critical_asset_keywords"`
}

// isProfileShaped reports whether the document looks like a flat single
// profile rather than a map of profile sections.
func (d *profileDoc) isProfileShaped() bool {
	return len(d.MitreOverrides) > 0 || len(d.MitreToCategory) > 0 ||
		len(d.CategoryToSeverity) > 0 || d.Escalation != nil ||
		len(d.CriticalAssetKeywords) > 0
}

// Load reads the mapping file at path. Missing or malformed files yield an
// empty store; the condition is logged, never returned.
func Load(path string, log core.Logger) *Store {
	if log == nil {
		log = &core.NopLogger{}
	}
	s := &Store{sections: map[string]json.RawMessage{}, log: log}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("mapping: cannot read %s: %v (using empty mappings)", path, err)
		return s
	}

	var sections map[string]json.RawMessage
	if err := json.Unmarshal(data, &sections); err != nil {
		log.Warn("mapping: malformed document %s: %v (using empty mappings)", path, err)
		return s
	}
	s.sections = sections

	// Backward-compatible flat shape: the whole document is one profile.
	var flat profileDoc
	if err := json.Unmarshal(data, &flat); err == nil && flat.isProfileShaped() {
		s.flat = &flat
	}
	return s
}

// Profile returns the named profile. When the section is absent but the
// document is a flat single profile, that flat profile is returned under
// the requested name. Otherwise an empty profile is returned.
func (s *Store) Profile(name string) *Profile {
	if raw, ok := s.sections[name]; ok {
		var doc profileDoc
		if err := json.Unmarshal(raw, &doc); err != nil {
			s.log.Warn("mapping: malformed profile %q: %v (using empty profile)", name, err)
			return EmptyProfile(name)
		}
		return s.build(name, &doc)
	}
	if s.flat != nil {
		return s.build(name, s.flat)
	}
	return EmptyProfile(name)
}

// ProfileNames returns the section names present in the document.
func (s *Store) ProfileNames() []string {
	names := make([]string, 0, len(s.sections))
	for name := range s.sections {
		names = append(names, name)
	}
	return names
}

// build validates a raw profile document into an immutable Profile.
// Severity labels outside the five-level scale are dropped per entry.
func (s *Store) build(name string, doc *profileDoc) *Profile {
	p := EmptyProfile(name)

	for id, sev := range doc.MitreOverrides {
		lvl := severity.FromString(sev)
		if lvl == severity.Unknown {
			s.log.Warn("mapping: profile %q: dropping override %s with invalid severity %q", name, id, sev)
			continue
		}
		p.overrides[id] = lvl
	}

	for id, cat := range doc.MitreToCategory {
		if cat == "" {
			continue
		}
		p.categories[id] = cat
	}

	for cat, sev := range doc.CategoryToSeverity {
		lvl := severity.FromString(sev)
		if lvl == severity.Unknown {
			s.log.Warn("mapping: profile %q: dropping category %q with invalid severity %q", name, cat, sev)
			continue
		}
		p.categorySeverity[cat] = lvl
	}

	if doc.Escalation != nil {
		esc := *doc.Escalation
		// Zero or negative thresholds fall back to defaults field by field.
		def := DefaultEscalation()
		if esc.CountHigh <= 0 {
			esc.CountHigh = def.CountHigh
		}
		if esc.CountCritical <= 0 {
			esc.CountCritical = def.CountCritical
		}
		if esc.RequestsHigh <= 0 {
			esc.RequestsHigh = def.RequestsHigh
		}
		if esc.RequestsCritical <= 0 {
			esc.RequestsCritical = def.RequestsCritical
		}
		p.escalation = esc
		p.escalationSet = true
	}

	if doc.CVSSThresholds != nil {
		th := *doc.CVSSThresholds
		def := DefaultCVSSThresholds()
		if th.CriticalMin <= 0 {
			th.CriticalMin = def.CriticalMin
		}
		if th.HighMin <= 0 {
			th.HighMin = def.HighMin
		}
		if th.MediumMin <= 0 {
			th.MediumMin = def.MediumMin
		}
		if th.LowMin <= 0 {
			th.LowMin = def.LowMin
		}
		p.cvssThresholds = th
	}

	for _, kw := range doc.CriticalAssetKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		p.keywords[kw] = struct{}{}
	}

	return p
}
