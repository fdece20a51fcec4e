package http

import (
	"net/url"
)

const (
	corsAllowHeaders = "Origin, X-Requested-With, Content-Type, Accept, Authorization"
	corsAllowMethods = "GET,POST,OPTIONS"
)

// OriginPolicy validates browser origins against the configured allow-list
// and produces the CORS response headers. An empty allow-list allows all
// origins.
type OriginPolicy struct {
	allowed  []string
	fallback string
}

// NewOriginPolicy builds a policy from configured origins plus the widget
// base URL used as the last-resort allow-origin value.
func NewOriginPolicy(allowedOrigins []string, fallback string) *OriginPolicy {
	return &OriginPolicy{allowed: allowedOrigins, fallback: fallback}
}

// NormalizeOrigin reduces a raw Origin header to scheme://host[:port],
// discarding path and query. ok is false when the value cannot be parsed.
func NormalizeOrigin(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return parsed.Scheme + "://" + parsed.Host, true
}

// Allowed reports whether a request with the given raw Origin header may
// proceed. A missing Origin header is allowed: it means a same-origin or
// non-browser caller.
func (p *OriginPolicy) Allowed(raw string) bool {
	if raw == "" {
		return true
	}
	normalized, ok := NormalizeOrigin(raw)
	if !ok {
		return false
	}
	if len(p.allowed) == 0 {
		return true
	}
	return p.contains(normalized)
}

// Headers returns the CORS headers for a response to the given raw Origin.
// Every response carries them, denials included, so the browser can read
// the failure rather than seeing an opaque network error.
func (p *OriginPolicy) Headers(raw string) map[string]string {
	normalized, _ := NormalizeOrigin(raw)

	var allowOrigin string
	switch {
	case len(p.allowed) == 0 && normalized != "":
		allowOrigin = normalized
	case len(p.allowed) == 0:
		allowOrigin = "*"
	case normalized != "" && p.contains(normalized):
		allowOrigin = normalized
	default:
		allowOrigin = p.allowed[0]
	}
	if allowOrigin == "" {
		allowOrigin = p.fallback
	}

	return map[string]string{
		"Access-Control-Allow-Origin":      allowOrigin,
		"Access-Control-Allow-Credentials": "true",
		"Access-Control-Allow-Headers":     corsAllowHeaders,
		"Access-Control-Allow-Methods":     corsAllowMethods,
	}
}

func (p *OriginPolicy) contains(normalized string) bool {
	for _, origin := range p.allowed {
		if origin == normalized {
			return true
		}
	}
	return false
}
