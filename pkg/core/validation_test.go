package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidatorRequired(t *testing.T) {
	if err := NewValidator().Required("name", "waflens").Validate(); err != nil {
		t.Errorf("non-empty value rejected: %v", err)
	}
	if err := NewValidator().Required("name", "  ").Validate(); err == nil {
		t.Error("blank value accepted")
	}
}

func TestValidatorURL(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"", true}, // optional
		{"https://scores.example.com/api", true},
		{"http://127.0.0.1:9200", true},
		{"not a url", false},
		{"/just/a/path", false},
	}
	for _, tt := range tests {
		err := NewValidator().URL("endpoint", tt.value).Validate()
		if (err == nil) != tt.ok {
			t.Errorf("URL(%q) error = %v, want ok=%v", tt.value, err, tt.ok)
		}
	}
}

func TestValidatorTechniqueID(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"", true}, // optional
		{"T1110", true},
		{"T1110.001", true},
		{"T999", false},
		{"1110", false},
		{"T1110.1", false},
	}
	for _, tt := range tests {
		err := NewValidator().TechniqueID("technique", tt.value).Validate()
		if (err == nil) != tt.ok {
			t.Errorf("TechniqueID(%q) error = %v, want ok=%v", tt.value, err, tt.ok)
		}
	}
}

func TestValidatorOneOf(t *testing.T) {
	allowed := []string{"console", "json", "html", "pdf"}
	if err := NewValidator().OneOf("format", "json", allowed).Validate(); err != nil {
		t.Errorf("allowed value rejected: %v", err)
	}
	if err := NewValidator().OneOf("format", "xml", allowed).Validate(); err == nil {
		t.Error("disallowed value accepted")
	}
}

func TestValidatorFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := NewValidator().FileExists("path", path).Validate(); err != nil {
		t.Errorf("existing file rejected: %v", err)
	}
	if err := NewValidator().FileExists("path", filepath.Join(dir, "missing.json")).Validate(); err == nil {
		t.Error("missing file accepted")
	}
	if err := NewValidator().FileExists("path", dir).Validate(); err == nil {
		t.Error("directory accepted as file")
	}
}

func TestValidatorBounds(t *testing.T) {
	err := NewValidator().
		MinDuration("timeout", time.Second, time.Millisecond).
		MaxDuration("timeout", time.Second, time.Minute).
		MinFloat("weight", 1.4, 1.0).
		Validate()
	if err != nil {
		t.Errorf("in-bounds values rejected: %v", err)
	}

	err = NewValidator().
		MinDuration("timeout", time.Millisecond, time.Second).
		MinFloat("weight", 0.5, 1.0).
		Validate()
	if err == nil {
		t.Fatal("out-of-bounds values accepted")
	}
	msg := err.Error()
	if !strings.Contains(msg, "timeout") || !strings.Contains(msg, "weight") {
		t.Errorf("error does not name both fields: %s", msg)
	}
}

func TestValidatorCollectsAllErrors(t *testing.T) {
	v := NewValidator().
		Required("logs.spec", "").
		OneOf("format", "xml", []string{"json"}).
		Custom("whitelist", func() bool { return false }, "must not be empty")

	if got := len(v.Errors()); got != 3 {
		t.Errorf("errors = %d, want 3", got)
	}
}
