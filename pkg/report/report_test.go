package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/exploopio/waflens/pkg/classify"
	"github.com/exploopio/waflens/pkg/compress"
	"github.com/exploopio/waflens/pkg/traffic"
)

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	return NewBuilder(
		traffic.NewAnalyzer(nil),
		classify.New(nil, nil),
		WithIdentities(traffic.NewIdentityMap(map[string]string{
			"tos.example.com": "Terminal Operating System",
		})),
		WithTenantWhitelist([]string{"tos.example.com", "vms.example.com"}),
	)
}

func testEntries() []traffic.Entry {
	return []traffic.Entry{
		{"URI": "/etc/passwd", "Host Name (Server)": "tos.example.com", "timestamp": float64(1700000000)},
		{"URI": "/etc/passwd", "Host Name (Server)": "tos.example.com", "timestamp": float64(1700000100)},
		{"URI": "/admin", "Host Name (Server)": "tos.example.com", "timestamp": float64(1700010000)},
		{"URI": "/login", "Host Name (Server)": "vms.example.com"},
		{"URI": "/etc/passwd", "Host Name (Server)": "other.example.com"}, // not whitelisted
	}
}

func TestBuildPayload(t *testing.T) {
	p := testBuilder(t).Build(testEntries())

	if p.Hostname != "tos.example.com" {
		t.Errorf("primary tenant = %q", p.Hostname)
	}
	if p.Identity != "Terminal Operating System" {
		t.Errorf("identity = %q", p.Identity)
	}

	// /etc/passwd x2 -> T1203; /admin -> T1595.001; /login -> T1110.001 and T1595.002.
	if p.TotalAttacks != 5 {
		t.Errorf("TotalAttacks = %d, want 5", p.TotalAttacks)
	}
	if len(p.Techniques) != 4 {
		t.Fatalf("techniques = %d, want 4: %+v", len(p.Techniques), p.Techniques)
	}
	if p.Techniques[0].TechniqueID != "T1203" || p.Techniques[0].Count != 2 {
		t.Errorf("rows not sorted by count: %+v", p.Techniques[0])
	}
	for _, row := range p.Techniques {
		if row.Severity == "" || row.Severity == "UNKNOWN" {
			t.Errorf("row %s has no verdict", row.TechniqueID)
		}
		if row.RiskScore <= 0 || row.RiskScore > 100 {
			t.Errorf("row %s risk = %v", row.TechniqueID, row.RiskScore)
		}
	}

	// Whitelisted tenants always listed, filtered host never.
	if len(p.Tenants) != 2 {
		t.Fatalf("tenants = %+v", p.Tenants)
	}
	if p.Tenants[0].Hostname != "tos.example.com" || p.Tenants[0].Events != 3 {
		t.Errorf("tenant[0] = %+v", p.Tenants[0])
	}
	for _, tenant := range p.Tenants {
		if tenant.Hostname == "other.example.com" {
			t.Error("non-whitelisted host leaked into tenants")
		}
	}

	// Two distinct hours carry timestamps.
	if len(p.Timeline.Labels) != 2 {
		t.Errorf("timeline = %+v", p.Timeline)
	}
	if len(p.Timeline.Labels) == 2 && p.Timeline.Labels[0] > p.Timeline.Labels[1] {
		t.Error("timeline not chronological")
	}

	if len(p.Severity.Labels) == 0 || len(p.OWASP.Labels) == 0 {
		t.Error("distributions empty")
	}
	if p.RunID == "" {
		t.Error("missing run id")
	}
}

func TestBuildEmptyCapture(t *testing.T) {
	p := testBuilder(t).Build(nil)

	if p.Hostname != "-" || p.Identity != "-" {
		t.Errorf("empty payload tenant = %q (%q)", p.Hostname, p.Identity)
	}
	if p.TotalAttacks != 0 || len(p.Techniques) != 0 || len(p.Tenants) != 0 {
		t.Errorf("empty payload not empty: %+v", p)
	}
}

func TestBuildAllEntriesFiltered(t *testing.T) {
	p := testBuilder(t).Build([]traffic.Entry{
		{"URI": "/etc/passwd", "host": "rogue.example.com"},
	})
	if p.TotalAttacks != 0 {
		t.Errorf("filtered capture produced %d attacks", p.TotalAttacks)
	}
}

func TestBuildWithoutWhitelistCountsAllHosts(t *testing.T) {
	b := NewBuilder(nil, nil)
	p := b.Build([]traffic.Entry{
		{"URI": "/admin", "host": "a.example"},
		{"URI": "/admin", "host": "b.example"},
		{"URI": "/admin", "host": "b.example"},
	})

	if p.Hostname != "b.example" {
		t.Errorf("primary tenant = %q, want most frequent host", p.Hostname)
	}
	if len(p.Tenants) != 2 {
		t.Errorf("tenants = %+v", p.Tenants)
	}
}

func TestWriteConsole(t *testing.T) {
	p := testBuilder(t).Build(testEntries())

	var buf bytes.Buffer
	if err := WriteConsole(&buf, p); err != nil {
		t.Fatalf("WriteConsole: %v", err)
	}
	out := buf.String()

	for _, want := range []string{"tos.example.com", "T1203", "Severity distribution", "Tenants"} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q", want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	p := testBuilder(t).Build(testEntries())
	w := NewWriter(nil)

	for _, name := range []string{"report.json", "report.json.gz"} {
		path := filepath.Join(t.TempDir(), name)
		if err := w.WriteJSON(path, p); err != nil {
			t.Fatalf("WriteJSON(%s): %v", name, err)
		}

		data, err := compress.ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
		var decoded Payload
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if decoded.Hostname != p.Hostname || decoded.TotalAttacks != p.TotalAttacks {
			t.Errorf("%s round trip mismatch", name)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	p := testBuilder(t).Build(testEntries())
	path := filepath.Join(t.TempDir(), "report.html")

	if err := NewWriter(nil).WriteHTML(path, p); err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"<!DOCTYPE html>", "T1203", "tos.example.com", "Severity Distribution"} {
		if !strings.Contains(out, want) {
			t.Errorf("html output missing %q", want)
		}
	}
}

func TestWriteHTMLEscapes(t *testing.T) {
	p := testBuilder(t).Build(nil)
	p.Hostname = `<script>alert(1)</script>`

	data, err := renderHTML(p)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "<script>alert(1)</script>") {
		t.Error("hostname not escaped in html output")
	}
}

func TestWritePDF(t *testing.T) {
	p := testBuilder(t).Build(testEntries())
	path := filepath.Join(t.TempDir(), "report.pdf")

	if err := NewWriter(nil).WritePDF(path, p); err != nil {
		t.Fatalf("WritePDF: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Error("output is not a PDF document")
	}
	if len(data) < 1000 {
		t.Errorf("pdf suspiciously small: %d bytes", len(data))
	}
}
