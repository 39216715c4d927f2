// Package classify implements the layered severity engine. It blends a
// static base severity (curated overrides and category mappings from two
// profiles), a vulnerability score, a technique impact score, volume
// escalation and asset-criticality weighting into one ordinal verdict.
//
// The engine is total: any technique id, any count and any hostname or
// identity text produce a valid severity. Lookup misses resolve to
// documented defaults, never to errors. A Classifier is immutable after
// construction and safe for concurrent use.
package classify

import (
	"strings"

	"github.com/exploopio/waflens/pkg/mapping"
	"github.com/exploopio/waflens/pkg/metrics"
	"github.com/exploopio/waflens/pkg/riskmeta"
	"github.com/exploopio/waflens/pkg/severity"
)

// Volume sub-score contributions, keyed off the active escalation thresholds.
const (
	volumeCritical = 30.0
	volumeHigh     = 15.0
	volumeMinor    = 5.0
)

// cvssWeight scales the 0-10 vulnerability score into the 0-100 risk space.
const cvssWeight = 6.0

// Input carries the per-call runtime signals for one classification.
// Hostname, Identity and CategoryHint are optional; empty means absent.
type Input struct {
	TechniqueID  string
	Count        int
	Hostname     string
	Identity     string
	CategoryHint string
}

// Classifier computes severity verdicts from loaded mapping tables, risk
// metadata and optional enrichment lookups.
type Classifier struct {
	primary   *mapping.Profile
	secondary *mapping.Profile
	risk      *riskmeta.Store
	assets    *Criticality

	chain      []resolverStep
	escalation mapping.Escalation
	thresholds mapping.CVSSThresholds
	keywords   []string

	cvssLookup   *LookupCache
	impactLookup *LookupCache

	collector metrics.Collector
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithRiskMetadata sets the per-technique risk metadata store.
func WithRiskMetadata(s *riskmeta.Store) Option {
	return func(c *Classifier) {
		if s != nil {
			c.risk = s
		}
	}
}

// WithAssetCriticality sets the hostname criticality table.
func WithAssetCriticality(a *Criticality) Option {
	return func(c *Classifier) {
		if a != nil {
			c.assets = a
		}
	}
}

// WithCVSSLookup installs an external vulnerability-score lookup. The
// lookup is memoized per technique for the process lifetime.
func WithCVSSLookup(fn ScoreFunc) Option {
	return func(c *Classifier) {
		if fn != nil {
			c.cvssLookup = NewLookupCache(fn)
		}
	}
}

// WithImpactLookup installs an external impact-score lookup, memoized the
// same way as the CVSS lookup.
func WithImpactLookup(fn ScoreFunc) Option {
	return func(c *Classifier) {
		if fn != nil {
			c.impactLookup = NewLookupCache(fn)
		}
	}
}

// WithMetrics sets the metrics collector. Classification outcomes are
// counted by severity; metrics never influence the verdict.
func WithMetrics(collector metrics.Collector) Option {
	return func(c *Classifier) {
		if collector != nil {
			c.collector = collector
		}
	}
}

// New builds a Classifier over a primary and a secondary mapping profile.
// Nil profiles are replaced with empty ones, so New(nil, nil) yields a
// working engine that classifies everything from defaults.
func New(primary, secondary *mapping.Profile, opts ...Option) *Classifier {
	if primary == nil {
		primary = mapping.EmptyProfile("primary")
	}
	if secondary == nil {
		secondary = mapping.EmptyProfile("secondary")
	}

	c := &Classifier{
		primary:   primary,
		secondary: secondary,
		risk:      riskmeta.Empty(),
		assets:    NewCriticality(nil),
		collector: &metrics.NopCollector{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.chain = buildResolverChain(primary, secondary)

	// Escalation thresholds: primary wins when configured, then secondary,
	// then documented defaults.
	switch {
	case primary.EscalationConfigured():
		c.escalation = primary.Escalation()
	case secondary.EscalationConfigured():
		c.escalation = secondary.Escalation()
	default:
		c.escalation = mapping.DefaultEscalation()
	}

	// CVSS tier floors come from the secondary (vulnerability-derived) profile.
	c.thresholds = secondary.CVSSThresholds()

	// Critical-asset keywords are merged across both profiles.
	seen := map[string]struct{}{}
	for _, p := range []*mapping.Profile{primary, secondary} {
		for _, kw := range p.Keywords() {
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			c.keywords = append(c.keywords, kw)
		}
	}

	return c
}

// Classify computes the final severity for a technique and its runtime
// signals. It never fails: unknown techniques, negative counts and empty
// strings all resolve through defaults.
func (c *Classifier) Classify(in Input) severity.Level {
	id := strings.TrimSpace(in.TechniqueID)
	count := in.Count
	if count < 0 {
		count = 0
	}

	base := resolveBase(c.chain, id, strings.TrimSpace(in.CategoryHint))

	risk := c.riskScore(id, base, count, in.Hostname, in.Identity)
	riskSev := severity.FromRiskScore(risk)

	final := severity.Max(base, riskSev)
	c.collector.CounterInc(metrics.ClassificationsTotal.Name, "severity", final.String())
	return final
}

// RiskScore exposes the 0-100 numeric risk for reporting. The verdict from
// Classify is always at least the bucket this score falls into.
func (c *Classifier) RiskScore(in Input) float64 {
	id := strings.TrimSpace(in.TechniqueID)
	count := in.Count
	if count < 0 {
		count = 0
	}
	base := resolveBase(c.chain, id, strings.TrimSpace(in.CategoryHint))
	return c.riskScore(id, base, count, in.Hostname, in.Identity)
}

// riskScore builds the numeric risk:
//
//	risk = (cvss*6 + impact + volume) * assetFactor [+ keywordBonus], clamped to [0,100]
func (c *Classifier) riskScore(id string, base severity.Level, count int, hostname, identity string) float64 {
	raw := c.vulnerabilityScore(id, base)*cvssWeight +
		c.impactScore(id, base) +
		c.volumeScore(count)

	factor, keywordHit := c.assetFactor(hostname, identity)
	risk := raw * factor
	if keywordHit {
		risk += keywordBonus
	}

	if risk < 0 {
		risk = 0
	}
	if risk > 100 {
		risk = 100
	}
	return risk
}

// vulnerabilityScore returns the 0-10 CVSS-like score for a technique.
// Priority: explicit risk metadata, then the external lookup, then a
// heuristic derived from the base severity floored by the configured tier
// minimums.
func (c *Classifier) vulnerabilityScore(id string, base severity.Level) float64 {
	if v, ok := c.risk.CVSS(id); ok {
		return v
	}
	if c.cvssLookup != nil {
		if v, ok := c.cvssLookup.Score(id); ok && v >= 0 && v <= riskmeta.MaxCVSS {
			return v
		}
	}

	th := c.thresholds
	switch base {
	case severity.Critical:
		return maxFloat(9.5, th.CriticalMin)
	case severity.High:
		return maxFloat(7.5, th.HighMin)
	case severity.Medium:
		return maxFloat(5.5, th.MediumMin)
	case severity.Low:
		return maxFloat(3.0, th.LowMin)
	default:
		return 1.0
	}
}

// impactScore returns the 0-40 technique impact. Priority: explicit risk
// metadata, then the external lookup (clamped), then a heuristic derived
// from the base severity.
func (c *Classifier) impactScore(id string, base severity.Level) float64 {
	if v, ok := c.risk.Impact(id); ok {
		return v
	}
	if c.impactLookup != nil {
		if v, ok := c.impactLookup.Score(id); ok && v >= 0 {
			return minFloat(v, riskmeta.MaxImpact)
		}
	}

	switch base {
	case severity.Critical:
		return 40.0
	case severity.High:
		return 30.0
	case severity.Medium:
		return 20.0
	case severity.Low:
		return 10.0
	default:
		return 5.0
	}
}

// volumeScore maps the match count onto the spike scale using the active
// escalation thresholds.
func (c *Classifier) volumeScore(count int) float64 {
	switch {
	case count >= c.escalation.CountCritical:
		return volumeCritical
	case count >= c.escalation.CountHigh:
		return volumeHigh
	case count > 0:
		return volumeMinor
	default:
		return 0
	}
}

// assetFactor returns the multiplicative asset weight and whether a
// critical-asset keyword matched the hostname+identity text.
func (c *Classifier) assetFactor(hostname, identity string) (float64, bool) {
	host := strings.ToLower(strings.TrimSpace(hostname))
	ident := strings.ToLower(strings.TrimSpace(identity))

	keywordHit := c.hasKeyword(host + " " + ident)

	if w, ok := c.assets.Factor(host); ok {
		return w, keywordHit
	}
	if keywordHit {
		return keywordFactor, true
	}
	return 1.0, false
}

// hasKeyword reports whether any critical-asset keyword occurs in text.
func (c *Classifier) hasKeyword(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, kw := range c.keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Escalation returns the thresholds the engine escalates on.
func (c *Classifier) Escalation() mapping.Escalation { return c.escalation }

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
