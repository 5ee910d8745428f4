// Package access implements the repository allow-list: configured
// repository identifiers are parsed into canonical "owner/repo" form
// and access checks are answered against the resulting set. An empty
// set means unrestricted access.
package access

import (
	"log"
	"regexp"
	"sort"
	"strings"
)

var (
	// https://github.com/owner/repo[.git][/]
	httpsPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://[^/]+/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	// git@github.com:owner/repo[.git]
	sshPattern = regexp.MustCompile(`^[^@]+@[^:]+:([^/]+)/([^/]+?)(?:\.git)?$`)
	// owner/repo
	shorthandPattern = regexp.MustCompile(`^[^/]+/[^/]+$`)
)

// Normalize converts a repository identifier into canonical
// "owner/repo" form. Accepted inputs are HTTPS URLs, SSH URLs, and the
// shorthand itself. Returns ok=false for anything unparseable.
func Normalize(identifier string) (string, bool) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return "", false
	}

	if m := httpsPattern.FindStringSubmatch(trimmed); m != nil {
		return m[1] + "/" + m[2], true
	}
	if m := sshPattern.FindStringSubmatch(trimmed); m != nil {
		return m[1] + "/" + m[2], true
	}
	if shorthandPattern.MatchString(trimmed) {
		return trimmed, true
	}

	return "", false
}

// AllowList is the canonical set of repositories a session may touch.
// Immutable after construction; safe for concurrent reads.
type AllowList struct {
	repos map[string]struct{}
}

// NewAllowList normalizes every raw entry, skipping (and logging)
// unparseable ones, and deduplicates the rest. Dedup is case-sensitive
// exact match on the canonical form.
func NewAllowList(raw []string) *AllowList {
	repos := make(map[string]struct{})
	for _, entry := range raw {
		canonical, ok := Normalize(entry)
		if !ok {
			log.Printf("[Access] Skipping unparseable repository identifier: %q", entry)
			continue
		}
		repos[canonical] = struct{}{}
	}
	return &AllowList{repos: repos}
}

// Restricted reports whether the allow-list constrains access at all.
// A list whose every entry was unparseable behaves like no list.
func (l *AllowList) Restricted() bool {
	return len(l.repos) > 0
}

// Allowed reports whether the given repository identifier (any
// accepted format) may be accessed. Unrestricted lists allow
// everything; with a non-empty list an unparseable identifier is
// denied.
func (l *AllowList) Allowed(identifier string) bool {
	if !l.Restricted() {
		return true
	}
	canonical, ok := Normalize(identifier)
	if !ok {
		return false
	}
	_, member := l.repos[canonical]
	return member
}

// Repositories returns the canonical entries in sorted order.
func (l *AllowList) Repositories() []string {
	out := make([]string, 0, len(l.repos))
	for repo := range l.repos {
		out = append(out, repo)
	}
	sort.Strings(out)
	return out
}
