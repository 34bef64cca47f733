package blocklist

import (
	"fmt"
	"regexp"
	"strings"
)

// DomainPrefix marks a pattern as a domain substring rule.
const DomainPrefix = "domain:"

// Kind is the rule variant encoded in a pattern string.
type Kind int

const (
	// KindExact matches a URL byte for byte.
	KindExact Kind = iota
	// KindDomain matches when its needle is a substring of the URL. The
	// needle may hit the path as well as the host.
	KindDomain
	// KindWildcard is a "*" glob anchored at the start of the URL.
	KindWildcard
)

func (k Kind) String() string {
	switch k {
	case KindDomain:
		return "domain"
	case KindWildcard:
		return "wildcard"
	default:
		return "exact"
	}
}

// Rule is a pattern parsed once at load or add time.
type Rule struct {
	Kind    Kind
	Pattern string
	needle  string
	re      *regexp.Regexp
}

// ParseRule classifies pattern. A "domain:" prefix wins over "*"; any other
// pattern containing "*" is a wildcard whose dots are literal and whose
// stars match any run of characters.
func ParseRule(pattern string) (Rule, error) {
	switch {
	case strings.HasPrefix(pattern, DomainPrefix):
		return Rule{Kind: KindDomain, Pattern: pattern, needle: pattern[len(DomainPrefix):]}, nil
	case strings.Contains(pattern, "*"):
		expr := "^" + strings.ReplaceAll(strings.ReplaceAll(pattern, ".", `\.`), "*", ".*")
		re, err := regexp.Compile(expr)
		if err != nil {
			return Rule{}, fmt.Errorf("compile wildcard %q: %w", pattern, err)
		}
		return Rule{Kind: KindWildcard, Pattern: pattern, re: re}, nil
	default:
		return Rule{Kind: KindExact, Pattern: pattern}, nil
	}
}

// Match reports whether url is covered by the rule. Every kind also
// matches its own literal pattern.
func (r Rule) Match(url string) bool {
	if url == r.Pattern {
		return true
	}
	switch r.Kind {
	case KindDomain:
		return strings.Contains(url, r.needle)
	case KindWildcard:
		return r.re.MatchString(url)
	default:
		return false
	}
}
