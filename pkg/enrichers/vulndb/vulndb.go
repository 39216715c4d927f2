// Package vulndb enriches techniques with CVSS-style vulnerability scores
// from a vulnerability score service. Like all enrichment, it is
// best-effort; the classifier works fine without it.
package vulndb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/exploopio/waflens/pkg/classify"
	"github.com/exploopio/waflens/pkg/core"
	"github.com/exploopio/waflens/pkg/errors"
	"github.com/exploopio/waflens/pkg/metrics"
	"github.com/exploopio/waflens/pkg/retry"
)

const (
	// MaxScore is the top of the CVSS scale; larger upstream values are
	// treated as garbage and dropped.
	MaxScore = 10.0

	// DefaultCacheTTL is the in-memory cache TTL.
	DefaultCacheTTL = 24 * time.Hour

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 10 * time.Second

	// DefaultRateLimit caps outbound requests per second.
	DefaultRateLimit = 5
)

// Config configures the enricher. An empty Endpoint disables it.
type Config struct {
	Endpoint  string
	Timeout   time.Duration
	CacheTTL  time.Duration
	RateLimit float64
	Retry     retry.Config
	Logger    core.Logger
	Collector metrics.Collector

	// OnError is invoked once per lookup that fails after all retry
	// attempts, with the enricher name and the final error.
	OnError func(enricher string, err error)
}

type cached struct {
	score float64
	ok    bool
	at    time.Time
}

// Enricher looks up per-technique CVSS scores over HTTP with an
// in-memory TTL cache and client-side rate limiting.
type Enricher struct {
	mu sync.RWMutex

	endpoint string
	timeout  time.Duration
	cacheTTL time.Duration
	retry    retry.Config

	client    *http.Client
	limiter   *rate.Limiter
	log       core.Logger
	collector metrics.Collector
	onError   func(enricher string, err error)

	cache map[string]cached
}

// NewEnricher creates a vulnerability score enricher.
func NewEnricher(cfg Config) *Enricher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = &core.NopLogger{}
	}
	if cfg.Collector == nil {
		cfg.Collector = &metrics.NopCollector{}
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 2
	}

	return &Enricher{
		endpoint:  cfg.Endpoint,
		timeout:   cfg.Timeout,
		cacheTTL:  cfg.CacheTTL,
		retry:     cfg.Retry,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		log:       cfg.Logger,
		collector: cfg.Collector,
		onError:   cfg.OnError,
		cache:     make(map[string]cached),
	}
}

// Name returns the enricher name.
func (e *Enricher) Name() string {
	return "vulndb"
}

// Enabled reports whether the enricher has an endpoint to talk to.
func (e *Enricher) Enabled() bool {
	return e.endpoint != ""
}

// Score returns the CVSS-style score for a technique. ok=false means no
// data. Definitive answers (scores and upstream 404s) are cached;
// transport errors are not.
func (e *Enricher) Score(ctx context.Context, techniqueID string) (float64, bool) {
	if !e.Enabled() || techniqueID == "" {
		return 0, false
	}

	if score, ok, found := e.fromCache(techniqueID); found {
		e.collector.CounterInc(metrics.EnricherCacheHits.Name, "enricher", e.Name())
		return score, ok
	}
	e.collector.CounterInc(metrics.EnricherCacheMisses.Name, "enricher", e.Name())

	var score float64
	var ok bool
	err := retry.Do(ctx, e.retry, func(ctx context.Context) (bool, error) {
		var ferr error
		score, ferr = e.fetch(ctx, techniqueID)
		if ferr == nil {
			ok = true
			return false, nil
		}
		if errors.IsNotFoundError(ferr) {
			// An explicit miss is a definitive answer worth caching.
			ok = false
			return false, nil
		}
		return errors.IsRetryable(ferr), ferr
	})
	if err != nil {
		// Failed lookups are not cached so a recovering upstream gets
		// asked again.
		e.log.Warn("vulndb: lookup %s failed: %v", techniqueID, err)
		if e.onError != nil {
			e.onError(e.Name(), err)
		}
		return 0, false
	}

	e.mu.Lock()
	e.cache[techniqueID] = cached{score: score, ok: ok, at: time.Now()}
	e.mu.Unlock()
	return score, ok
}

// ScoreFunc adapts the enricher to the classifier's lookup capability.
func (e *Enricher) ScoreFunc() classify.ScoreFunc {
	return func(techniqueID string) (float64, bool) {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		return e.Score(ctx, techniqueID)
	}
}

func (e *Enricher) fromCache(techniqueID string) (score float64, ok, found bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, exists := e.cache[techniqueID]
	if !exists || time.Since(c.at) >= e.cacheTTL {
		return 0, false, false
	}
	return c.score, c.ok, true
}

// fetch asks the upstream for one technique. Misses come back as a 404
// APIError; the caller decides retriability from the error kind.
func (e *Enricher) fetch(ctx context.Context, techniqueID string) (float64, error) {
	const op = "vulndb.fetch"

	if err := e.limiter.Wait(ctx); err != nil {
		return 0, errors.E(errors.KindTimeout, op, "waiting for rate limiter", err)
	}

	reqURL := fmt.Sprintf("%s/scores?technique=%s", e.endpoint, url.QueryEscape(techniqueID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, errors.E(errors.KindInvalidInput, op, "building request for "+techniqueID, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.collector.CounterInc(metrics.EnrichmentsTotal.Name, "enricher", e.Name(), "status", "error")
		return 0, errors.E(errors.KindNetwork, op, "lookup "+techniqueID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		status := "error"
		if resp.StatusCode == http.StatusNotFound {
			status = "miss"
		}
		e.collector.CounterInc(metrics.EnrichmentsTotal.Name, "enricher", e.Name(), "status", status)
		return 0, &errors.APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   e.endpoint,
			Message:    "lookup " + techniqueID,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, errors.E(errors.KindNetwork, op, "reading response for "+techniqueID, err)
	}

	var doc struct {
		Technique string  `json:"technique"`
		CVSS      float64 `json:"cvss"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		e.collector.CounterInc(metrics.EnrichmentsTotal.Name, "enricher", e.Name(), "status", "error")
		return 0, errors.E(errors.KindInvalidInput, op, "malformed response for "+techniqueID, err)
	}
	if doc.CVSS < 0 || doc.CVSS > MaxScore {
		return 0, errors.E(errors.KindInvalidInput, op,
			fmt.Sprintf("score %.2f for %s outside the CVSS scale", doc.CVSS, techniqueID))
	}

	e.collector.CounterInc(metrics.EnrichmentsTotal.Name, "enricher", e.Name(), "status", "ok")
	return doc.CVSS, nil
}
