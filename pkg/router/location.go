package router

import (
	"strings"

	"github.com/bastion-web/bastion/pkg/config"
)

// Route is the resolved handling policy for one request: the owning server,
// the matched location (nil when no location matched), and the effective
// settings after location overrides are applied.
type Route struct {
	Server   *config.Server
	Location *config.Location

	// Root is the effective document root.
	Root string

	// AutoIndex is the effective directory-listing policy.
	AutoIndex bool

	// DirIndex is the effective index file name.
	DirIndex string

	// Redirect is non-nil when the matched location blocks with a redirect.
	Redirect *config.Redirect
}

// Route resolves a request path within the chosen server. Locations are
// evaluated in descending specificity; the first match wins. With no
// matching location the server's own settings apply.
func (r *Router) Route(srv *config.Server, path string) Route {
	route := Route{
		Server:    srv,
		Root:      srv.Root,
		AutoIndex: srv.AutoIndex,
		DirIndex:  srv.DirIndex,
	}

	loc := MatchLocation(srv.Locations, path)
	if loc == nil {
		return route
	}

	route.Location = loc
	if loc.Root != "" {
		route.Root = loc.Root
	}
	if loc.AutoIndex != nil {
		route.AutoIndex = *loc.AutoIndex
	}
	if loc.DirIndex != "" {
		route.DirIndex = loc.DirIndex
	}
	route.Redirect = loc.Redirect
	return route
}

// MatchLocation returns the most specific location matching path, or nil.
// Specificity is the length of the pattern's literal prefix; a fully literal
// pattern outranks a glob pattern with the same prefix length.
func MatchLocation(locations []*config.Location, path string) *config.Location {
	var best *config.Location
	bestPrefix := -1
	bestLiteral := false

	for _, loc := range locations {
		if !MatchPath(loc.Pattern, path) {
			continue
		}
		prefix := len(literalPrefix(loc.Pattern))
		literal := !strings.Contains(loc.Pattern, "*")
		if prefix > bestPrefix || (prefix == bestPrefix && literal && !bestLiteral) {
			best = loc
			bestPrefix = prefix
			bestLiteral = literal
		}
	}
	return best
}

// MatchPath reports whether a location pattern matches a request path.
// A '*' in the pattern matches any sequence of characters, including '/'.
// A literal pattern matches exactly, or as a prefix at a path boundary, so
// "/pub" covers both "/pub" and "/pub/archive.tar".
func MatchPath(pattern, path string) bool {
	if !strings.Contains(pattern, "*") {
		if path == pattern {
			return true
		}
		return strings.HasPrefix(path, strings.TrimSuffix(pattern, "/")+"/")
	}
	return matchGlob(pattern, path)
}

// matchGlob matches with '*' spanning any characters. Patterns here are
// short, so the quadratic worst case is irrelevant.
func matchGlob(pattern, s string) bool {
	if pattern == "" {
		return s == ""
	}
	if pattern[0] == '*' {
		for i := len(s); i >= 0; i-- {
			if matchGlob(pattern[1:], s[i:]) {
				return true
			}
		}
		return false
	}
	if s == "" || s[0] != pattern[0] {
		return false
	}
	return matchGlob(pattern[1:], s[1:])
}

func literalPrefix(pattern string) string {
	if i := strings.IndexByte(pattern, '*'); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
