// Package traffic ingests WAF JSON access logs and aggregates request
// matches against a catalog of attack-technique signatures.
//
// The catalog maps ATT&CK technique ids to case-insensitive regular
// expressions over the request target, plus display labels and OWASP
// Top 10 categories for reporting. Signatures with patterns that fail to
// compile are skipped at catalog build with a warning; a bad signature
// must never take the analyzer down.
package traffic

import (
	"regexp"

	"github.com/exploopio/waflens/pkg/core"
)

// Signature describes one detectable attack technique.
type Signature struct {
	TechniqueID string
	Label       string
	OWASP       string
	Pattern     string
}

// DefaultSignatures returns the built-in signature catalog, tuned for
// requests that slipped past WAF rule sets (false-negative and bypass
// style URIs).
func DefaultSignatures() []Signature {
	return []Signature{
		// RCE / exploit
		{
			TechniqueID: "T1059.004",
			Label:       "Shellshock Bash RCE",
			OWASP:       "A03 Injection (RCE / Shellshock)",
			Pattern:     `shellshock|;\s*echo\s+shellshock|/cgi-bin/|User-Agent:.*\(\)\s*\{`,
		},
		{
			TechniqueID: "T1505.003",
			Label:       "PHPUnit RCE",
			OWASP:       "A03 Injection (PHPUnit RCE)",
			Pattern:     `phpunit|eval-stdin\.php`,
		},
		{
			TechniqueID: "T1059.001",
			Label:       "Command Injection",
			OWASP:       "A03 Injection (Command Injection)",
			Pattern:     `(cmd|command|exec|system|passthru|shell_exec)\s*=`,
		},
		{
			TechniqueID: "T1190",
			Label:       "Exploit Public-Facing Application (SQLi / RFI / LFI)",
			OWASP:       "A03 Injection (SQLi / Exploit App)",
			Pattern:     `(\bUNION\b|\bSELECT\b|\bUPDATE\b|\bDELETE\b|\bINSERT\b).*(\bFROM\b|\bWHERE\b)|(\bOR\b\s+1=1)`,
		},

		// File disclosure / traversal / LFI / RFI
		{
			TechniqueID: "T1203",
			Label:       "Directory Traversal / File Disclosure",
			OWASP:       "A01 Broken Access Control (Directory Traversal)",
			Pattern:     `(\.\./|\.\.\\|%2e%2e%2f|%2e%2e\\|/etc/passwd|boot\.ini|/windows/win\.ini)`,
		},
		{
			TechniqueID: "T1592.004",
			Label:       "Sensitive File Enumeration (.env / .git / config)",
			OWASP:       "A01 Broken Access Control (Sensitive Files)",
			Pattern:     `\.env\b|/\.git\b|/config(\.php|\.json|\.ini)?\b|/backup\b|/dump\b|/db\b|phpinfo\.php`,
		},

		// Web shell / debugging
		{
			TechniqueID: "T1505",
			Label:       "Web Shell / Malicious Web Component",
			OWASP:       "A05 Security Misconfiguration (Web Shell / Web Component)",
			Pattern:     `(wso\.php|r57\.php|c99\.php|webshell)`,
		},
		{
			TechniqueID: "T1595.003",
			Label:       "Debug Interface Scanning (Xdebug / PhpStorm)",
			OWASP:       "",
			Pattern:     `XDEBUG_SESSION_START=phpstorm`,
		},

		// XSS
		{
			TechniqueID: "T1055",
			Label:       "Cross-Site Scripting (XSS)",
			OWASP:       "A03 Injection (XSS)",
			Pattern:     `(<script|%3Cscript%3E|onerror=|onload=|javascript:)`,
		},

		// Brute force / auth
		{
			TechniqueID: "T1110.001",
			Label:       "Bruteforce / Credential Stuffing",
			OWASP:       "A07 Authentication Failure (Bruteforce)",
			Pattern:     `/login|/signin|/mtos/login/login\.mtos|/wp-login\.php|/xmlrpc\.php`,
		},

		// Recon / scanning
		{
			TechniqueID: "T1595.001",
			Label:       "Web Directory Brute Force / Recon",
			OWASP:       "A01 Broken Access Control (Recon / Admin Pages)",
			Pattern:     `/admin\b|/panel\b|/dashboard\b|/config\b|/test\b|/dev\b|/setup\b`,
		},
		{
			TechniqueID: "T1595.002",
			Label:       "Login Page Discovery",
			OWASP:       "A07 Authentication Failure (Login Page Discovery)",
			Pattern:     `/login\b|/signin\b|/auth\b`,
		},

		// Sensitive file listing / misconfig
		{
			TechniqueID: "T1083",
			Label:       "File & Directory Discovery",
			OWASP:       "A01 Broken Access Control (Directory Listing)",
			Pattern:     `index\.of/|dirlisting|directory listing`,
		},
	}
}

// compiledSignature pairs a signature with its compiled matcher.
type compiledSignature struct {
	Signature
	re *regexp.Regexp
}

// Catalog is an immutable, compiled signature set plus the display
// metadata the report layer needs. Safe for concurrent use.
type Catalog struct {
	signatures []compiledSignature
	labels     map[string]string
	owasp      map[string]string
}

// NewCatalog compiles a signature set. All patterns match
// case-insensitively. Signatures that fail to compile are logged and
// skipped.
func NewCatalog(signatures []Signature, log core.Logger) *Catalog {
	if log == nil {
		log = &core.NopLogger{}
	}

	c := &Catalog{
		labels: make(map[string]string, len(signatures)),
		owasp:  make(map[string]string, len(signatures)),
	}
	for _, sig := range signatures {
		if sig.TechniqueID == "" {
			log.Warn("traffic: skipping signature with empty technique id")
			continue
		}
		re, err := regexp.Compile(`(?i)` + sig.Pattern)
		if err != nil {
			log.Warn("traffic: skipping signature %s: invalid pattern: %v", sig.TechniqueID, err)
			continue
		}
		c.signatures = append(c.signatures, compiledSignature{Signature: sig, re: re})
		c.labels[sig.TechniqueID] = sig.Label
		if sig.OWASP != "" {
			c.owasp[sig.TechniqueID] = sig.OWASP
		}
	}
	return c
}

// DefaultCatalog compiles the built-in signature set.
func DefaultCatalog(log core.Logger) *Catalog {
	return NewCatalog(DefaultSignatures(), log)
}

// Len returns the number of usable signatures.
func (c *Catalog) Len() int { return len(c.signatures) }

// Label returns the display label for a technique, or "-" when unknown.
func (c *Catalog) Label(techniqueID string) string {
	if l, ok := c.labels[techniqueID]; ok && l != "" {
		return l
	}
	return "-"
}

// OWASP returns the OWASP Top 10 category for a technique, or "-" when
// the technique has no category.
func (c *Catalog) OWASP(techniqueID string) string {
	if o, ok := c.owasp[techniqueID]; ok {
		return o
	}
	return "-"
}

// TechniqueIDs returns the ids of all usable signatures, in catalog order.
func (c *Catalog) TechniqueIDs() []string {
	ids := make([]string, 0, len(c.signatures))
	for _, sig := range c.signatures {
		ids = append(ids, sig.TechniqueID)
	}
	return ids
}
