package anomaly

import (
	"fmt"
	"regexp"
	"strings"
)

// KeywordMatcher matches configured keywords and phrases on word
// boundaries: "interest" does not match "interesting", and a phrase
// like "write off" matches its words in order across whitespace or
// punctuation.
type KeywordMatcher struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewKeywordMatcher compiles the keyword list. Blank entries are
// skipped; multi-word entries become phrase patterns.
func NewKeywordMatcher(keywords []string, caseSensitive bool) (*KeywordMatcher, error) {
	m := &KeywordMatcher{}
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		words := strings.Fields(kw)
		escaped := make([]string, len(words))
		for i, w := range words {
			escaped[i] = regexp.QuoteMeta(w)
		}
		expr := `\b` + strings.Join(escaped, `[\s[:punct:]]+`) + `\b`
		if !caseSensitive {
			expr = `(?i)` + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile keyword %q: %w", kw, err)
		}
		m.keywords = append(m.keywords, kw)
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match returns the configured keywords found in text, in
// configuration order, each at most once.
func (m *KeywordMatcher) Match(text string) []string {
	if text == "" {
		return nil
	}
	var hits []string
	for i, re := range m.patterns {
		if re.MatchString(text) {
			hits = append(hits, m.keywords[i])
		}
	}
	return hits
}

// Empty reports whether no keywords were configured.
func (m *KeywordMatcher) Empty() bool {
	return len(m.patterns) == 0
}
