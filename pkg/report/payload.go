// Package report turns an analyzed capture into the dashboard payload and
// renders it as console text, JSON, HTML, or PDF.
//
// The payload shape is the contract with the dashboard front-end: a
// primary tenant, total attack count, OWASP and severity distributions,
// an hourly timeline, per-tenant event counts, and one row per detected
// technique.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/exploopio/waflens/pkg/classify"
	"github.com/exploopio/waflens/pkg/severity"
	"github.com/exploopio/waflens/pkg/traffic"
)

// timelineLayout buckets events by hour.
const timelineLayout = "2006-01-02 15:00"

// Distribution is a label/value pair list for the dashboard charts.
type Distribution struct {
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

// Tenant summarizes one monitored hostname.
type Tenant struct {
	Hostname string `json:"hostname"`
	Identity string `json:"identity"`
	Events   int    `json:"events"`
}

// TechniqueRow is one detected technique with its verdict.
type TechniqueRow struct {
	TechniqueID string  `json:"mitre_id"`
	Category    string  `json:"category"`
	OWASP       string  `json:"owasp"`
	Severity    string  `json:"severity"`
	Count       int     `json:"count"`
	RiskScore   float64 `json:"risk_score"`
}

// Payload is the full dashboard document.
type Payload struct {
	RunID        string         `json:"run_id"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Hostname     string         `json:"hostname"`
	Identity     string         `json:"identity"`
	TotalAttacks int            `json:"total_attacks"`
	OWASP        Distribution   `json:"owasp"`
	Severity     Distribution   `json:"severity"`
	Timeline     Distribution   `json:"timeline"`
	Tenants      []Tenant       `json:"tenants"`
	Techniques   []TechniqueRow `json:"mitre"`
}

// Builder assembles payloads from raw log entries.
type Builder struct {
	analyzer   *traffic.Analyzer
	classifier *classify.Classifier
	identities *traffic.IdentityMap
	whitelist  map[string]struct{}
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithIdentities sets the hostname to identity map.
func WithIdentities(m *traffic.IdentityMap) BuilderOption {
	return func(b *Builder) {
		if m != nil {
			b.identities = m
		}
	}
}

// WithTenantWhitelist restricts the payload to the given hostnames.
// Without a whitelist every observed hostname counts.
func WithTenantWhitelist(hosts []string) BuilderOption {
	return func(b *Builder) {
		b.whitelist = make(map[string]struct{}, len(hosts))
		for _, h := range hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" {
				b.whitelist[h] = struct{}{}
			}
		}
	}
}

// NewBuilder creates a payload builder.
func NewBuilder(analyzer *traffic.Analyzer, classifier *classify.Classifier, opts ...BuilderOption) *Builder {
	b := &Builder{
		analyzer:   analyzer,
		classifier: classifier,
		identities: traffic.NewIdentityMap(nil),
	}
	if b.analyzer == nil {
		b.analyzer = traffic.NewAnalyzer(nil)
	}
	if b.classifier == nil {
		b.classifier = classify.New(nil, nil)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// allowed reports whether a hostname passes the tenant whitelist.
func (b *Builder) allowed(hostname string) bool {
	if len(b.whitelist) == 0 {
		return hostname != ""
	}
	_, ok := b.whitelist[hostname]
	return ok
}

// Build assembles the dashboard payload for a capture. An empty or fully
// filtered capture yields an empty payload, never an error.
func (b *Builder) Build(entries []traffic.Entry) *Payload {
	payload := &Payload{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Hostname:    "-",
		Identity:    "-",
		Tenants:     []Tenant{},
		Techniques:  []TechniqueRow{},
	}

	filtered := make([]traffic.Entry, 0, len(entries))
	for _, e := range entries {
		if b.allowed(e.Hostname()) {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) == 0 {
		return payload
	}

	summary := b.analyzer.Analyze(filtered)
	payload.TotalAttacks = summary.TotalMatches

	payload.Hostname = b.primaryTenant(filtered)
	payload.Identity = b.identities.Lookup(payload.Hostname)

	b.buildTechniques(payload, summary)
	b.buildTenants(payload, filtered)
	b.buildTimeline(payload, filtered)

	return payload
}

// primaryTenant elects the most frequent allowed hostname.
func (b *Builder) primaryTenant(entries []traffic.Entry) string {
	counts := map[string]int{}
	for _, e := range entries {
		if h := e.Hostname(); h != "" {
			counts[h]++
		}
	}
	best, bestCount := "-", 0
	for h, n := range counts {
		if n > bestCount || (n == bestCount && h < best) {
			best, bestCount = h, n
		}
	}
	return best
}

// buildTechniques classifies each detected technique and fills the rows
// plus the severity and OWASP distributions.
func (b *Builder) buildTechniques(payload *Payload, summary *traffic.Summary) {
	catalog := b.analyzer.Catalog()
	dist := severity.Distribution{}
	owaspCounts := map[string]int{}

	for id, stats := range summary.Techniques {
		in := classify.Input{
			TechniqueID: id,
			Count:       stats.Count,
			Hostname:    payload.Hostname,
			Identity:    payload.Identity,
		}
		verdict := b.classifier.Classify(in)
		dist.Add(verdict, stats.Count)

		owasp := catalog.OWASP(id)
		if owasp != "-" {
			owaspCounts[owasp] += stats.Count
		}

		payload.Techniques = append(payload.Techniques, TechniqueRow{
			TechniqueID: id,
			Category:    catalog.Label(id),
			OWASP:       owasp,
			Severity:    verdict.String(),
			Count:       stats.Count,
			RiskScore:   b.classifier.RiskScore(in),
		})
	}

	// Rows ordered by volume, then id for stable output.
	sort.Slice(payload.Techniques, func(i, j int) bool {
		if payload.Techniques[i].Count != payload.Techniques[j].Count {
			return payload.Techniques[i].Count > payload.Techniques[j].Count
		}
		return payload.Techniques[i].TechniqueID < payload.Techniques[j].TechniqueID
	})

	for _, lvl := range []severity.Level{
		severity.Critical, severity.High, severity.Medium, severity.Low, severity.Info,
	} {
		if n := dist.Get(lvl); n > 0 {
			payload.Severity.Labels = append(payload.Severity.Labels, lvl.String())
			payload.Severity.Values = append(payload.Severity.Values, n)
		}
	}

	payload.OWASP = sortedDistribution(owaspCounts)
}

// buildTenants fills per-tenant event counts. With a whitelist every
// whitelisted tenant appears, zero-event ones included, matching the
// dashboard's fixed tenant panel.
func (b *Builder) buildTenants(payload *Payload, entries []traffic.Entry) {
	counts := map[string]int{}
	for _, e := range entries {
		if h := e.Hostname(); h != "" {
			counts[h]++
		}
	}

	hosts := make([]string, 0, len(counts))
	if len(b.whitelist) > 0 {
		for h := range b.whitelist {
			hosts = append(hosts, h)
		}
	} else {
		for h := range counts {
			hosts = append(hosts, h)
		}
	}

	for _, h := range hosts {
		payload.Tenants = append(payload.Tenants, Tenant{
			Hostname: h,
			Identity: b.identities.Lookup(h),
			Events:   counts[h],
		})
	}
	sort.Slice(payload.Tenants, func(i, j int) bool {
		if payload.Tenants[i].Events != payload.Tenants[j].Events {
			return payload.Tenants[i].Events > payload.Tenants[j].Events
		}
		return payload.Tenants[i].Hostname < payload.Tenants[j].Hostname
	})
}

// buildTimeline buckets events by hour in chronological order. Entries
// without a usable timestamp are left out.
func (b *Builder) buildTimeline(payload *Payload, entries []traffic.Entry) {
	buckets := map[string]int{}
	for _, e := range entries {
		ts, ok := e.Timestamp()
		if !ok {
			continue
		}
		buckets[ts.Format(timelineLayout)]++
	}

	labels := make([]string, 0, len(buckets))
	for label := range buckets {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		payload.Timeline.Labels = append(payload.Timeline.Labels, label)
		payload.Timeline.Values = append(payload.Timeline.Values, buckets[label])
	}
}

// sortedDistribution orders a counter by value descending, label ascending.
func sortedDistribution(counts map[string]int) Distribution {
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	var d Distribution
	for _, label := range labels {
		d.Labels = append(d.Labels, label)
		d.Values = append(d.Values, counts[label])
	}
	return d
}
