package classify

import "strings"

// keywordFactor is the multiplicative weight applied when no exact
// hostname mapping exists but a critical-asset keyword matches the
// combined hostname+identity text.
const keywordFactor = 1.4

// keywordBonus is the flat risk bonus added once when any critical-asset
// keyword matches, regardless of how many keywords hit.
const keywordBonus = 10.0

// Criticality maps hostnames to multiplicative asset weights. Hostnames
// are matched exactly (lowercased); unmapped hosts weigh 1.0.
type Criticality struct {
	weights map[string]float64
}

// NewCriticality builds a criticality table. Weights below 1.0 are raised
// to 1.0: asset criticality can only escalate, never discount.
func NewCriticality(weights map[string]float64) *Criticality {
	c := &Criticality{weights: make(map[string]float64, len(weights))}
	for host, w := range weights {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		if w < 1.0 {
			w = 1.0
		}
		c.weights[host] = w
	}
	return c
}

// Factor returns the exact-match weight for a hostname.
func (c *Criticality) Factor(hostname string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	w, ok := c.weights[strings.ToLower(strings.TrimSpace(hostname))]
	return w, ok
}

// Len returns the number of mapped hostnames.
func (c *Criticality) Len() int {
	if c == nil {
		return 0
	}
	return len(c.weights)
}
