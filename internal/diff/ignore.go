package diff

import (
	"fmt"
	"regexp"
)

// IgnoreRules suppresses entries whose rendered path matches a pattern
// registered for the entry's kind. Patterns are case-insensitive and must
// match the whole path. A nil *IgnoreRules ignores nothing.
type IgnoreRules struct {
	patterns map[Kind][]*regexp.Regexp
}

// CompileIgnoreRules compiles a kind name → patterns map once.
// Kind names are case-insensitive ("modify", "MODIFY").
//
// Example:
//
//	rules, err := CompileIgnoreRules(map[string][]string{
//	    "modify": {`/meta/.*`, `/items/\*/updated_at`},
//	})
func CompileIgnoreRules(cfg map[string][]string) (*IgnoreRules, error) {
	r := &IgnoreRules{patterns: make(map[Kind][]*regexp.Regexp, len(cfg))}
	for name, patterns := range cfg {
		kind, err := ParseKind(name)
		if err != nil {
			return nil, err
		}
		for _, p := range patterns {
			re, err := regexp.Compile("(?i)^(?:" + p + ")$")
			if err != nil {
				return nil, fmt.Errorf("ignore rule %s %q: %w", kind, p, err)
			}
			r.patterns[kind] = append(r.patterns[kind], re)
		}
	}
	return r, nil
}

// MustCompileIgnoreRules is like CompileIgnoreRules but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCompileIgnoreRules(cfg map[string][]string) *IgnoreRules {
	r, err := CompileIgnoreRules(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// Ignored reports whether e is suppressed.
func (r *IgnoreRules) Ignored(e Entry) bool {
	if r == nil {
		return false
	}
	patterns := r.patterns[e.Kind]
	if len(patterns) == 0 {
		return false
	}
	path := e.Path.String()
	for _, re := range patterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Len returns the number of compiled patterns across all kinds.
func (r *IgnoreRules) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, p := range r.patterns {
		n += len(p)
	}
	return n
}
