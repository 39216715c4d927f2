package traffic

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/exploopio/waflens/pkg/compress"
	"github.com/exploopio/waflens/pkg/errors"
	"github.com/exploopio/waflens/pkg/metrics"
)

func TestNewCatalogSkipsInvalidPatterns(t *testing.T) {
	catalog := NewCatalog([]Signature{
		{TechniqueID: "T1", Pattern: `/admin`},
		{TechniqueID: "T2", Pattern: `([unclosed`},
		{TechniqueID: "", Pattern: `/x`},
	}, nil)

	if catalog.Len() != 1 {
		t.Errorf("Len = %d, want 1 (invalid and unnamed signatures skipped)", catalog.Len())
	}
}

func TestDefaultCatalogCompiles(t *testing.T) {
	catalog := DefaultCatalog(nil)
	if catalog.Len() != len(DefaultSignatures()) {
		t.Errorf("compiled %d of %d built-in signatures", catalog.Len(), len(DefaultSignatures()))
	}
}

func TestCatalogMetadata(t *testing.T) {
	catalog := DefaultCatalog(nil)

	if got := catalog.Label("T1190"); got != "Exploit Public-Facing Application (SQLi / RFI / LFI)" {
		t.Errorf("Label(T1190) = %q", got)
	}
	if got := catalog.OWASP("T1110.001"); got != "A07 Authentication Failure (Bruteforce)" {
		t.Errorf("OWASP(T1110.001) = %q", got)
	}
	if got := catalog.Label("T0000"); got != "-" {
		t.Errorf("Label(unknown) = %q, want -", got)
	}
	// T1595.003 carries no OWASP category.
	if got := catalog.OWASP("T1595.003"); got != "-" {
		t.Errorf("OWASP(T1595.003) = %q, want -", got)
	}
}

func TestEntryURI(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  string
	}{
		{"URI field", Entry{"URI": "/etc/passwd"}, "/etc/passwd"},
		{"lowercase uri", Entry{"uri": "/a"}, "/a"},
		{"URI wins over request", Entry{"URI": "/a", "request": "GET /b HTTP/1.1"}, "/a"},
		{"request line", Entry{"request": "GET /admin HTTP/1.1"}, "/admin"},
		{"Request line", Entry{"Request": "POST /login HTTP/1.1"}, "/login"},
		{"short request line", Entry{"request": "GET"}, ""},
		{"no uri at all", Entry{"status": "403"}, ""},
		{"non-string URI", Entry{"URI": 42}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.URI(); got != tt.want {
				t.Errorf("URI() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEntryHostname(t *testing.T) {
	tests := []struct {
		entry Entry
		want  string
	}{
		{Entry{"Host Name (Server)": " API.Example.COM "}, "api.example.com"},
		{Entry{"hostname": "a.example"}, "a.example"},
		{Entry{"host": "b.example"}, "b.example"},
		{Entry{"server": "c.example"}, "c.example"},
		{Entry{"Host": "d.example"}, "d.example"},
		{Entry{"Host Name (Server)": "first", "host": "second"}, "first"},
		{Entry{}, ""},
	}
	for _, tt := range tests {
		if got := tt.entry.Hostname(); got != tt.want {
			t.Errorf("Hostname(%v) = %q, want %q", tt.entry, got, tt.want)
		}
	}
}

func TestEntryTimestamp(t *testing.T) {
	epoch := Entry{"timestamp": float64(1700000000)}
	if ts, ok := epoch.Timestamp(); !ok || ts.Unix() != 1700000000 {
		t.Errorf("numeric timestamp = %v, %v", ts, ok)
	}

	str := Entry{"timestamp": "1700000000"}
	if ts, ok := str.Timestamp(); !ok || ts.Unix() != 1700000000 {
		t.Errorf("string timestamp = %v, %v", ts, ok)
	}

	oci := Entry{"Time": "Aug 26, 2025 10:15:30.123456 AM"}
	ts, ok := oci.Timestamp()
	if !ok {
		t.Fatal("console time not parsed")
	}
	if ts.Year() != 2025 || ts.Month() != time.August || ts.Hour() != 10 || ts.Minute() != 15 {
		t.Errorf("console time = %v", ts)
	}

	noFraction := Entry{"Time": "Aug 26, 2025 1:15:30 PM"}
	if ts, ok := noFraction.Timestamp(); !ok || ts.Hour() != 13 {
		t.Errorf("no-fraction console time = %v, %v", ts, ok)
	}

	for _, e := range []Entry{
		{},
		{"timestamp": "soon"},
		{"timestamp": float64(-1)},
		{"Time": "yesterday"},
	} {
		if _, ok := e.Timestamp(); ok {
			t.Errorf("Timestamp(%v) unexpectedly parsed", e)
		}
	}
}

func TestAnalyzeAggregates(t *testing.T) {
	collector := metrics.NewInMemoryCollector()
	analyzer := NewAnalyzer(nil, WithMetrics(collector))

	entries := []Entry{
		{"URI": "/index.php?id=1 UNION SELECT password FROM users"},
		{"URI": "/index.php?id=1 UNION SELECT password FROM users"}, // duplicate URI
		{"URI": "/catalog?q=1 union select token from sessions"},    // case-insensitive
		{"URI": "/healthz"},
		{"status": "200"}, // no URI, skipped
	}

	summary := analyzer.Analyze(entries)

	stats, ok := summary.Techniques["T1190"]
	if !ok {
		t.Fatal("T1190 not detected")
	}
	if stats.Count != 3 {
		t.Errorf("T1190 count = %d, want 3", stats.Count)
	}
	if len(stats.SampleURIs) != 2 {
		t.Errorf("sample URIs = %v, want 2 deduplicated", stats.SampleURIs)
	}
	if summary.TotalEntries != 5 {
		t.Errorf("TotalEntries = %d, want 5", summary.TotalEntries)
	}
	if stats.Requests != 5 {
		t.Errorf("Requests = %d, want total capture volume", stats.Requests)
	}
	if got := collector.GetCounter(metrics.MatchesTotal.Name, "technique", "T1190"); got != 3 {
		t.Errorf("matches counter = %v, want 3", got)
	}
}

func TestAnalyzeMultipleTechniquesPerRequest(t *testing.T) {
	analyzer := NewAnalyzer(nil)

	// /login matches both the bruteforce and the login discovery signatures.
	summary := analyzer.Analyze([]Entry{{"URI": "/login"}})

	if _, ok := summary.Techniques["T1110.001"]; !ok {
		t.Error("T1110.001 not detected")
	}
	if _, ok := summary.Techniques["T1595.002"]; !ok {
		t.Error("T1595.002 not detected")
	}
	if summary.TotalMatches < 2 {
		t.Errorf("TotalMatches = %d, want >= 2", summary.TotalMatches)
	}
}

func TestAnalyzeSampleCap(t *testing.T) {
	analyzer := NewAnalyzer(nil)

	entries := make([]Entry, 0, maxSampleURIs+20)
	for i := 0; i < maxSampleURIs+20; i++ {
		entries = append(entries, Entry{"URI": "/admin/page-" + string(rune('a'+i%26)) + string(rune('0'+i%10))})
	}
	summary := analyzer.Analyze(entries)

	stats := summary.Techniques["T1595.001"]
	if stats == nil {
		t.Fatal("T1595.001 not detected")
	}
	if len(stats.SampleURIs) > maxSampleURIs {
		t.Errorf("samples = %d, want <= %d", len(stats.SampleURIs), maxSampleURIs)
	}
}

// =============================================================================
// Loader
// =============================================================================

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	if err := compress.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestResolveFiles(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "b.json"), `[]`)
	writeLog(t, filepath.Join(dir, "a.json"), `[]`)
	writeLog(t, filepath.Join(dir, "c.json.gz"), `[]`)
	writeLog(t, filepath.Join(dir, "notes.txt"), `x`)

	single := ResolveFiles(filepath.Join(dir, "a.json"))
	if len(single) != 1 {
		t.Errorf("single file: %v", single)
	}

	fromDir := ResolveFiles(dir)
	if len(fromDir) != 3 {
		t.Errorf("directory resolved %v, want 3 json files", fromDir)
	}
	if len(fromDir) == 3 && filepath.Base(fromDir[0]) != "a.json" {
		t.Errorf("directory listing not sorted: %v", fromDir)
	}

	globbed := ResolveFiles(filepath.Join(dir, "*.json"))
	if len(globbed) != 2 {
		t.Errorf("glob resolved %v, want 2", globbed)
	}

	if got := ResolveFiles(filepath.Join(dir, "missing.json")); got != nil {
		t.Errorf("missing spec resolved %v", got)
	}
	if got := ResolveFiles(""); got != nil {
		t.Errorf("empty spec resolved %v", got)
	}
}

func TestLoadEntries(t *testing.T) {
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "a.json"), `[{"URI": "/a"}, {"URI": "/b"}]`)
	writeLog(t, filepath.Join(dir, "b.json"), `{"items": [{"URI": "/c"}]}`)
	writeLog(t, filepath.Join(dir, "c.json.gz"), `[{"URI": "/d"}]`)
	writeLog(t, filepath.Join(dir, "broken.json"), `{nope`)

	collector := metrics.NewInMemoryCollector()
	loader := NewLoader(WithLoaderMetrics(collector))

	entries, err := loader.LoadEntries(dir)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 4 {
		t.Errorf("loaded %d entries, want 4", len(entries))
	}
	if got := collector.GetCounter(metrics.FilesSkippedTotal.Name); got != 1 {
		t.Errorf("skipped counter = %v, want 1", got)
	}
}

func TestLoadEntriesNoFiles(t *testing.T) {
	loader := NewLoader()
	_, err := loader.LoadEntries(filepath.Join(t.TempDir(), "*.json"))
	if err == nil {
		t.Fatal("expected error for empty file set")
	}
	if !errors.IsNotFoundError(err) {
		t.Errorf("error kind = %v, want not_found", errors.GetKind(err))
	}
}

func TestLoadEntriesUnreadableFileSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not apply to root")
	}
	dir := t.TempDir()
	writeLog(t, filepath.Join(dir, "ok.json"), `[{"URI": "/a"}]`)
	bad := filepath.Join(dir, "bad.json")
	writeLog(t, bad, `[]`)
	if err := os.Chmod(bad, 0o000); err != nil {
		t.Skip("chmod not effective on this platform")
	}

	loader := NewLoader()
	entries, err := loader.LoadEntries(dir)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("loaded %d entries, want 1", len(entries))
	}
}

// =============================================================================
// Identity map
// =============================================================================

func TestIdentityMap(t *testing.T) {
	m := NewIdentityMap(map[string]string{
		"TOS.Example.com": "Terminal Operating System",
		"":                "dropped",
	})

	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if got := m.Lookup("tos.example.com"); got != "Terminal Operating System" {
		t.Errorf("Lookup = %q", got)
	}
	if got := m.Lookup("other.example.com"); got != "-" {
		t.Errorf("Lookup(unknown) = %q, want -", got)
	}

	var nilMap *IdentityMap
	if got := nilMap.Lookup("x"); got != "-" {
		t.Errorf("nil map Lookup = %q, want -", got)
	}
}
