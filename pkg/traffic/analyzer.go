package traffic

import (
	"github.com/exploopio/waflens/pkg/metrics"
)

// maxSampleURIs bounds the deduplicated URI samples kept per technique so
// a large capture cannot grow a row without bound.
const maxSampleURIs = 50

// TechniqueStats aggregates all matches of one technique across a capture.
// Requests is the total request volume of the capture, carried on every
// row so escalation judgments have the traffic context next to the match
// count.
type TechniqueStats struct {
	TechniqueID string   `json:"technique_id"`
	Count       int      `json:"count"`
	Requests    int      `json:"requests"`
	SampleURIs  []string `json:"sample_uris"`

	// sampleSeen tracks dedup state during aggregation.
	sampleSeen map[string]struct{}
}

func (s *TechniqueStats) addSample(uri string) {
	if _, dup := s.sampleSeen[uri]; dup {
		return
	}
	s.sampleSeen[uri] = struct{}{}
	if len(s.SampleURIs) < maxSampleURIs {
		s.SampleURIs = append(s.SampleURIs, uri)
	}
}

// Summary is the outcome of analyzing one capture. A single request can
// match several techniques and is counted under each.
type Summary struct {
	Techniques   map[string]*TechniqueStats `json:"techniques"`
	TotalEntries int                        `json:"total_entries"`
	TotalMatches int                        `json:"total_matches"`
}

// Analyzer matches log entries against a compiled catalog.
type Analyzer struct {
	catalog   *Catalog
	collector metrics.Collector
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithMetrics sets the metrics collector for match and duration metrics.
func WithMetrics(collector metrics.Collector) AnalyzerOption {
	return func(a *Analyzer) {
		if collector != nil {
			a.collector = collector
		}
	}
}

// NewAnalyzer creates an analyzer over a catalog. A nil catalog gets the
// built-in signatures.
func NewAnalyzer(catalog *Catalog, opts ...AnalyzerOption) *Analyzer {
	if catalog == nil {
		catalog = DefaultCatalog(nil)
	}
	a := &Analyzer{
		catalog:   catalog,
		collector: &metrics.NopCollector{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Catalog returns the analyzer's signature catalog.
func (a *Analyzer) Catalog() *Catalog { return a.catalog }

// Analyze scans entries and aggregates matches per technique. Entries
// without a usable URI are skipped.
func (a *Analyzer) Analyze(entries []Entry) *Summary {
	timer := metrics.NewTimer(a.collector, metrics.AnalyzeDuration.Name)
	defer timer.ObserveDuration()

	summary := &Summary{
		Techniques:   make(map[string]*TechniqueStats),
		TotalEntries: len(entries),
	}

	for _, entry := range entries {
		uri := entry.URI()
		if uri == "" {
			continue
		}

		for _, sig := range a.catalog.signatures {
			if !sig.re.MatchString(uri) {
				continue
			}
			stats, ok := summary.Techniques[sig.TechniqueID]
			if !ok {
				stats = &TechniqueStats{
					TechniqueID: sig.TechniqueID,
					sampleSeen:  make(map[string]struct{}),
				}
				summary.Techniques[sig.TechniqueID] = stats
			}
			stats.Count++
			stats.addSample(uri)
			summary.TotalMatches++
			a.collector.CounterInc(metrics.MatchesTotal.Name, "technique", sig.TechniqueID)
		}
	}

	for _, stats := range summary.Techniques {
		stats.Requests = summary.TotalEntries
	}

	return summary
}
