// Package origin decides which browser origins may call the cross-origin
// endpoints.
package origin

import "strings"

const (
	HeaderAllowOrigin  = "Access-Control-Allow-Origin"
	HeaderAllowMethods = "Access-Control-Allow-Methods"
	HeaderAllowHeaders = "Access-Control-Allow-Headers"
	HeaderMaxAge       = "Access-Control-Max-Age"

	wildcard = "*"
)

// Policy is an immutable origin allow-list. An empty list admits every origin.
type Policy struct {
	allowed map[string]struct{}
}

// ParseAllowList splits a comma-separated configuration value, trimming
// whitespace and discarding empty entries.
func ParseAllowList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func NewPolicy(origins []string) *Policy {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &Policy{allowed: allowed}
}

// Open reports whether the policy admits all origins.
func (p *Policy) Open() bool {
	return p == nil || len(p.allowed) == 0
}

// Allows reports whether a request declaring origin may proceed. Matching is
// exact: no case folding, no wildcard entries.
func (p *Policy) Allows(origin string) bool {
	if p.Open() {
		return true
	}
	_, ok := p.allowed[origin]
	return ok
}

// AllowOrigin returns the Access-Control-Allow-Origin value for an admitted
// request.
func AllowOrigin(origin string) string {
	if origin == "" {
		return wildcard
	}
	return origin
}

// PreflightHeaders returns the headers granted to an admitted preflight.
func PreflightHeaders(origin string) map[string]string {
	return map[string]string{
		HeaderAllowOrigin:  AllowOrigin(origin),
		HeaderAllowMethods: "POST, OPTIONS",
		HeaderAllowHeaders: "Content-Type, Authorization",
		HeaderMaxAge:       "86400",
	}
}
