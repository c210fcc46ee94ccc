package matcher

import (
	"regexp"
	"strings"
)

// Match is one occurrence of a pattern inside a haystack. Start and End
// are byte offsets of the matched span itself, excluding the boundary
// characters that anchored it.
type Match struct {
	Pattern  string
	Start    int
	End      int
	IsPhrase bool
}

type compiledPattern struct {
	pattern  string
	isPhrase bool
	re       *regexp.Regexp
}

type PatternSet struct {
	patterns []compiledPattern
}

// Word boundaries are the string edge or any non-alphanumeric rune. This
// deliberately treats hyphen, underscore and period as boundaries so that
// "dxa" matches inside "dxa_scan.pdf" while "us" never matches inside
// "suspicious".
const (
	boundaryBefore = `(?:^|[^a-zA-Z0-9])`
	boundaryAfter  = `(?:[^a-zA-Z0-9]|$)`
	phraseJoiner   = `[\s._-]+`
)

// Compile normalizes and compiles a set of keyword-or-phrase patterns.
// Patterns with two or more words are treated as ordered phrases whose
// words may be separated by any run of space, hyphen, underscore or
// period characters. Matching is case-insensitive throughout.
func Compile(patterns []string) (*PatternSet, error) {
	set := &PatternSet{}
	seen := make(map[string]struct{})
	for _, raw := range patterns {
		pattern := strings.ToLower(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		if _, dup := seen[pattern]; dup {
			continue
		}
		seen[pattern] = struct{}{}

		words := strings.Fields(pattern)
		isPhrase := len(words) > 1

		var body string
		if isPhrase {
			quoted := make([]string, len(words))
			for i, w := range words {
				quoted[i] = regexp.QuoteMeta(w)
			}
			body = strings.Join(quoted, phraseJoiner)
		} else {
			body = regexp.QuoteMeta(pattern)
		}

		re, err := regexp.Compile(`(?i)` + boundaryBefore + `(` + body + `)` + boundaryAfter)
		if err != nil {
			return nil, err
		}

		set.patterns = append(set.patterns, compiledPattern{
			pattern:  pattern,
			isPhrase: isPhrase,
			re:       re,
		})
	}
	return set, nil
}

// FindMatches returns every occurrence of every pattern in the haystack.
// A pattern never matches as a substring of a longer alphanumeric token.
// Confidence is not assigned here; that is the caller's concern.
func (s *PatternSet) FindMatches(haystack string) []Match {
	if s == nil || haystack == "" {
		return nil
	}

	var matches []Match
	for _, p := range s.patterns {
		for _, idx := range p.re.FindAllStringSubmatchIndex(haystack, -1) {
			// idx[2], idx[3] delimit the capture group holding the
			// pattern span without its boundary characters.
			if len(idx) < 4 || idx[2] < 0 {
				continue
			}
			matches = append(matches, Match{
				Pattern:  p.pattern,
				Start:    idx[2],
				End:      idx[3],
				IsPhrase: p.isPhrase,
			})
		}
	}
	return matches
}

func (s *PatternSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// FindMatches is a convenience wrapper for one-off pattern sets.
func FindMatches(haystack string, patterns []string) ([]Match, error) {
	set, err := Compile(patterns)
	if err != nil {
		return nil, err
	}
	return set.FindMatches(haystack), nil
}
