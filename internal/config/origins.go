package config

import "strings"

// OriginMatcher decides whether a browser origin may call the API or open a
// real-time connection. Patterns are exact origins, "*" for any origin, or
// a single wildcard such as "https://*.vercel.app".
type OriginMatcher struct {
	any      bool
	exact    map[string]struct{}
	wildcard [][2]string
}

// NewOriginMatcher compiles patterns.
func NewOriginMatcher(patterns []string) *OriginMatcher {
	m := &OriginMatcher{exact: make(map[string]struct{}, len(patterns))}
	for _, p := range patterns {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		switch {
		case p == "":
		case p == "*":
			m.any = true
		case strings.Contains(p, "*"):
			prefix, suffix, _ := strings.Cut(p, "*")
			m.wildcard = append(m.wildcard, [2]string{strings.ToLower(prefix), strings.ToLower(suffix)})
		default:
			m.exact[strings.ToLower(p)] = struct{}{}
		}
	}
	return m
}

// Allowed reports whether origin matches any pattern. Requests without an
// Origin header are not cross-origin and are always allowed.
func (m *OriginMatcher) Allowed(origin string) bool {
	if origin == "" || m.any {
		return true
	}
	origin = strings.ToLower(origin)
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, w := range m.wildcard {
		prefix, suffix := w[0], w[1]
		if len(origin) > len(prefix)+len(suffix) &&
			strings.HasPrefix(origin, prefix) &&
			strings.HasSuffix(origin, suffix) {
			return true
		}
	}
	return false
}
