package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&LoggerConfig{
		RunID:         "run-1",
		LogFile:       path,
		BufferSize:    100,
		FlushInterval: time.Hour, // flush manually in tests
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return l, path
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("malformed audit line %q: %v", scanner.Text(), err)
		}
		events = append(events, e)
	}
	return events
}

func TestLogAndFlush(t *testing.T) {
	l, path := newTestLogger(t)
	defer l.Stop()

	l.RunStarted("logs/*.json")
	l.AnalyzeCompleted(100, 12, 3, 50*time.Millisecond)
	l.Flush()

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventRunStarted {
		t.Errorf("first event = %s", events[0].Type)
	}
	if events[0].RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1", events[0].RunID)
	}
	if events[1].Details["matches"] != float64(12) {
		t.Errorf("matches detail = %v", events[1].Details["matches"])
	}
}

func TestStopFlushesBuffer(t *testing.T) {
	l, path := newTestLogger(t)

	l.ClassifySummary(map[string]int{"HIGH": 3, "LOW": 10})
	l.ReportGenerated("pdf", "/tmp/report.pdf")
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events after Stop, want 2", len(events))
	}
}

func TestBufferSizeTriggersFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&LoggerConfig{
		LogFile:       path,
		BufferSize:    2,
		FlushInterval: time.Hour,
	})
	if err != nil {
		t.Fatal(err)
	}

	l.RunStarted("a")
	l.RunStarted("b")

	// The flush triggered by the second event runs in a goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(readEvents(t, path)) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := len(readEvents(t, path)); got != 2 {
		t.Errorf("got %d events, want 2 flushed by buffer pressure", got)
	}
	l.Stop()
}

func TestErrorEventsCarryError(t *testing.T) {
	l, path := newTestLogger(t)
	defer l.Stop()

	l.EnrichFailed("vulndb", os.ErrDeadlineExceeded)
	l.RunFailed(os.ErrNotExist)
	l.Flush()

	events := readEvents(t, path)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Severity != SeverityWarning || events[0].Error == "" {
		t.Errorf("enrich event = %+v", events[0])
	}
	if events[1].Severity != SeverityError || events[1].Error == "" {
		t.Errorf("run failed event = %+v", events[1])
	}
}
