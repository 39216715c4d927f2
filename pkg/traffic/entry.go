package traffic

import (
	"strconv"
	"strings"
	"time"
)

// Entry is one decoded WAF log record. Field names vary across export
// tools, so access goes through the extraction helpers below instead of
// direct key lookups.
type Entry map[string]any

// ociTimeLayouts are the human-readable timestamp formats the WAF console
// exports ("Aug 26, 2025 10:15:30.123456 AM").
var ociTimeLayouts = []string{
	"Jan 2, 2006 3:04:05.000000 PM",
	"Jan 2, 2006 3:04:05.000 PM",
	"Jan 2, 2006 3:04:05 PM",
}

// stringField returns the first non-empty string value among keys.
func (e Entry) stringField(keys ...string) string {
	for _, key := range keys {
		if v, ok := e[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// URI extracts the request target. It checks the dedicated URI fields
// first and falls back to the path segment of a "METHOD path PROTO"
// request line.
func (e Entry) URI() string {
	if uri := e.stringField("URI", "uri"); uri != "" {
		return uri
	}
	if req := e.stringField("request", "Request"); req != "" {
		parts := strings.Fields(req)
		if len(parts) >= 2 {
			return parts[1]
		}
	}
	return ""
}

// Hostname extracts the server hostname, trimmed and lowercased. Empty
// means the record carries no hostname.
func (e Entry) Hostname() string {
	h := e.stringField("Host Name (Server)", "hostname", "host", "server", "Host")
	return strings.ToLower(strings.TrimSpace(h))
}

// Timestamp extracts the event time. Numeric "timestamp" fields are
// epoch seconds; the "Time" field uses the console's display format.
func (e Entry) Timestamp() (time.Time, bool) {
	if v, ok := e["timestamp"]; ok {
		if ts, ok := epochSeconds(v); ok {
			return ts, true
		}
	}
	if raw := e.stringField("Time"); raw != "" {
		for _, layout := range ociTimeLayouts {
			if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// epochSeconds coerces the JSON value shapes a timestamp field shows up
// as (number, numeric string) into a time.
func epochSeconds(v any) (time.Time, bool) {
	switch n := v.(type) {
	case float64:
		if n <= 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(n), 0), true
	case int64:
		if n <= 0 {
			return time.Time{}, false
		}
		return time.Unix(n, 0), true
	case string:
		sec, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil || sec <= 0 {
			return time.Time{}, false
		}
		return time.Unix(sec, 0), true
	default:
		return time.Time{}, false
	}
}

// IdentityMap resolves hostnames to the business-facing system identity
// shown on reports. Unknown hostnames resolve to "-".
type IdentityMap struct {
	identities map[string]string
}

// NewIdentityMap builds an identity map; hostnames are lowercased.
func NewIdentityMap(identities map[string]string) *IdentityMap {
	m := &IdentityMap{identities: make(map[string]string, len(identities))}
	for host, id := range identities {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" || id == "" {
			continue
		}
		m.identities[host] = id
	}
	return m
}

// Lookup returns the identity for a hostname, or "-" when unmapped.
func (m *IdentityMap) Lookup(hostname string) string {
	if m == nil {
		return "-"
	}
	if id, ok := m.identities[strings.ToLower(strings.TrimSpace(hostname))]; ok {
		return id
	}
	return "-"
}

// Len returns the number of mapped hostnames.
func (m *IdentityMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.identities)
}
