package contig

import (
	"fmt"
)

// routeTable is the ordered routing rule set. First match wins across rules;
// within a rule, patterns are tried left to right and trying stops at the
// first match.
type routeTable struct {
	rules []routeRule
}

// resolve maps a (device, kind) pair to the region-name list of the first
// matching rule. The device name must be non-empty; a nil-equivalent kind is
// the empty string. Patterns are evaluated in textual order and a pattern
// with no device part reuses the device match outcome of the pattern
// evaluated just before it, even across rule boundaries.
func (t *routeTable) resolve(dev, kind string) ([]string, error) {
	if dev == "" {
		return nil, fmt.Errorf("%w: empty device name", ErrInvalidArgument)
	}

	devMatched := false
	for _, rule := range t.rules {
		for _, pat := range rule.patterns {
			if pat.hasDev {
				devMatched = matchField(pat.dev, dev)
			}
			if !devMatched {
				continue
			}
			if !pat.hasKind {
				if kind != "" {
					continue
				}
			} else if !matchField(pat.kind, kind) {
				continue
			}
			return rule.regions, nil
		}
	}
	return nil, fmt.Errorf("%w: no route for %s/%s", ErrNotFound, dev, kind)
}

// matchField matches one glob pattern against one field. '?' matches exactly
// one character; '*' matches the rest of the field unconditionally and
// anything after it in the pattern fails the match. All other characters
// match literally.
func matchField(pattern, field string) bool {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '*':
			return i == len(pattern)-1
		case '?':
			if field == "" {
				return false
			}
			field = field[1:]
		default:
			if field == "" || field[0] != pattern[i] {
				return false
			}
			field = field[1:]
		}
	}
	return field == ""
}
