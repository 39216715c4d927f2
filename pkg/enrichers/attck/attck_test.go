package attck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/exploopio/waflens/pkg/errors"
	"github.com/exploopio/waflens/pkg/metrics"
	"github.com/exploopio/waflens/pkg/retry"
)

func TestScoreFetchesAndCaches(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if !strings.HasSuffix(r.URL.Path, "/techniques/T1190") {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"technique_id": "T1190", "impact_score": 35}`))
	}))
	defer srv.Close()

	collector := metrics.NewInMemoryCollector()
	e := NewEnricher(Config{Endpoint: srv.URL, RateLimit: 1000, Collector: collector})

	for i := 0; i < 3; i++ {
		score, ok := e.Score(context.Background(), "T1190")
		if !ok || score != 35 {
			t.Fatalf("Score = %v, %v", score, ok)
		}
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Errorf("upstream saw %d requests, want 1", n)
	}
	if hits := collector.GetCounter(metrics.EnricherCacheHits.Name, "enricher", "attck"); hits != 2 {
		t.Errorf("cache hits = %v, want 2", hits)
	}
}

func TestScoreCacheExpiry(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`{"technique_id": "T1059", "impact_score": 20}`))
	}))
	defer srv.Close()

	e := NewEnricher(Config{Endpoint: srv.URL, RateLimit: 1000, CacheTTL: time.Millisecond})

	e.Score(context.Background(), "T1059")
	time.Sleep(5 * time.Millisecond)
	e.Score(context.Background(), "T1059")

	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Errorf("upstream saw %d requests, want 2 after TTL expiry", n)
	}
}

func TestScoreMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	e := NewEnricher(Config{Endpoint: srv.URL, RateLimit: 1000})
	if _, ok := e.Score(context.Background(), "T1"); ok {
		t.Error("malformed response reported as available")
	}
}

func TestScoreFailureNotifiesOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var (
		calls    int32
		gotName  string
		gotError error
	)
	e := NewEnricher(Config{
		Endpoint:  srv.URL,
		RateLimit: 1000,
		Retry:     retry.Config{MaxAttempts: 2, BaseInterval: time.Millisecond},
		OnError: func(name string, err error) {
			atomic.AddInt32(&calls, 1)
			gotName, gotError = name, err
		},
	})

	if _, ok := e.Score(context.Background(), "T1059"); ok {
		t.Fatal("failed lookup reported as available")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("OnError called %d times, want 1 (once per lookup, not per attempt)", n)
	}
	if gotName != "attck" {
		t.Errorf("OnError enricher = %q, want attck", gotName)
	}
	apiErr, ok := errors.IsAPIError(gotError)
	if !ok || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("OnError err = %v, want APIError with status 503", gotError)
	}
}

func TestScoreEmptyTechnique(t *testing.T) {
	e := NewEnricher(Config{Endpoint: "http://localhost:1"})
	if _, ok := e.Score(context.Background(), ""); ok {
		t.Error("empty technique id returned data")
	}
}
