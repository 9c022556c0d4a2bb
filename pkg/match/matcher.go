// Package match resolves free-text external names to catalog tools.
package match

import (
	"regexp"
	"strings"
	"unicode"
)

// Entry is one tool's matchable identity, cached for a run.
type Entry struct {
	ToolID  int64
	Name    string
	Slug    string
	Aliases []string
}

// Matcher resolves external names against a precomputed tool cache.
// A miss is the expected outcome for items outside the catalog; callers
// count it as skipped, never as an error.
type Matcher struct {
	entries []candidate
}

type candidate struct {
	toolID     int64
	exact      []string // lowercased name, slug, aliases
	normalized []string
}

// trailing version suffixes like " v2", " 2.0", "-4o", " 3.5-turbo"
var versionSuffix = regexp.MustCompile(`[\s\-]v?\d+(\.\d+)*[a-z\-]*$`)

// New builds a matcher from the cached tool entries.
func New(entries []Entry) *Matcher {
	m := &Matcher{}
	for _, e := range entries {
		c := candidate{toolID: e.ToolID}
		for _, s := range append([]string{e.Name, e.Slug}, e.Aliases...) {
			if s == "" {
				continue
			}
			c.exact = append(c.exact, strings.ToLower(s))
			if n := normalize(s); n != "" {
				c.normalized = append(c.normalized, n)
			}
		}
		m.entries = append(m.entries, c)
	}
	return m
}

// Match resolves name to a tool id. The stages run in order and the first
// hit wins: exact case-insensitive, normalized, then containment.
func (m *Matcher) Match(name string) (int64, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return 0, false
	}

	for _, c := range m.entries {
		for _, s := range c.exact {
			if s == lower {
				return c.toolID, true
			}
		}
	}

	norm := normalize(name)
	if norm != "" {
		for _, c := range m.entries {
			for _, s := range c.normalized {
				if s == norm {
					return c.toolID, true
				}
			}
		}

		// Containment in either direction, on normalized forms. Short forms
		// are excluded to keep e.g. "ai" from matching half the catalog.
		for _, c := range m.entries {
			for _, s := range c.normalized {
				if len(s) < 4 || len(norm) < 4 {
					continue
				}
				if strings.Contains(norm, s) || strings.Contains(s, norm) {
					return c.toolID, true
				}
			}
		}
	}

	return 0, false
}

// normalize lowercases, strips punctuation, collapses whitespace and drops a
// trailing version suffix, so "GPT-4o" and "gpt 4o" meet in the middle.
func normalize(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	lower = versionSuffix.ReplaceAllString(lower, "")

	var b strings.Builder
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '/':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
