package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "scores.db"), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)

	if _, _, found := s.Get("vulndb", "T1190"); found {
		t.Error("Get on empty store reported found")
	}

	if err := s.Put("vulndb", "T1190", 9.8, true); err != nil {
		t.Fatalf("Put: %v", err)
	}
	score, available, found := s.Get("vulndb", "T1190")
	if !found || !available || score != 9.8 {
		t.Errorf("Get = %v, %v, %v", score, available, found)
	}

	// Same technique under another source is a separate row.
	if _, _, found := s.Get("attck", "T1190"); found {
		t.Error("source namespaces collided")
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("vulndb", "T1190", 5.0, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("vulndb", "T1190", 9.8, true); err != nil {
		t.Fatal(err)
	}

	score, _, _ := s.Get("vulndb", "T1190")
	if score != 9.8 {
		t.Errorf("score after replace = %v, want 9.8", score)
	}
	if n, _ := s.Len(); n != 1 {
		t.Errorf("Len = %d, want 1", n)
	}
}

func TestUnavailabilityCached(t *testing.T) {
	s := openTestStore(t)

	if err := s.Put("attck", "T9999", 0, false); err != nil {
		t.Fatal(err)
	}
	_, available, found := s.Get("attck", "T9999")
	if !found {
		t.Fatal("unavailability row not found")
	}
	if available {
		t.Error("unavailable score reported available")
	}
}

func TestTTLExpiry(t *testing.T) {
	s := openTestStore(t, WithTTL(time.Nanosecond))

	if err := s.Put("vulndb", "T1190", 9.8, true); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Second + 100*time.Millisecond)

	if _, _, found := s.Get("vulndb", "T1190"); found {
		t.Error("stale row reported fresh")
	}

	removed, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune removed %d rows, want 1", removed)
	}
}

func TestWrapCallsUpstreamOnce(t *testing.T) {
	s := openTestStore(t)

	calls := 0
	lookup := s.Wrap("vulndb", func(id string) (float64, bool) {
		calls++
		if id == "T1190" {
			return 9.8, true
		}
		return 0, false
	})

	for i := 0; i < 3; i++ {
		if v, ok := lookup("T1190"); !ok || v != 9.8 {
			t.Errorf("lookup(T1190) = %v, %v", v, ok)
		}
		if _, ok := lookup("T9999"); ok {
			t.Error("lookup(T9999) reported available")
		}
	}

	if calls != 2 {
		t.Errorf("upstream called %d times, want 2 (one per technique)", calls)
	}
}

func TestWrapSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	lookup := s1.Wrap("vulndb", func(string) (float64, bool) {
		calls++
		return 7.5, true
	})
	lookup("T1110")
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	lookup2 := s2.Wrap("vulndb", func(string) (float64, bool) {
		calls++
		return 0, false
	})
	if v, ok := lookup2("T1110"); !ok || v != 7.5 {
		t.Errorf("lookup after reopen = %v, %v, want cached 7.5", v, ok)
	}
	if calls != 1 {
		t.Errorf("upstream called %d times across restarts, want 1", calls)
	}
}
