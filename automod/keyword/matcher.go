package keyword

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Matcher checks free-form text against a guild's banned words and phrases, plus optional regular expressions.
//
// A Matcher is immutable after construction and safe for concurrent use.
type Matcher struct {
	words    map[string]bool
	phrases  [][]string
	patterns []*regexp.Regexp
}

// NewMatcher compiles a word list and pattern list. Malformed patterns are skipped and returned as errors; the matcher is always usable.
func NewMatcher(words, patterns []string) (*Matcher, []error) {
	m := &Matcher{
		words: make(map[string]bool, len(words)),
	}
	for _, w := range words {
		toks := TokenizeText(w)
		switch len(toks) {
		case 0:
			continue
		case 1:
			m.words[toks[0]] = true
		default:
			m.phrases = append(m.phrases, toks)
		}
	}
	var errs []error
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid word pattern %q: %w", p, err))
			continue
		}
		m.patterns = append(m.patterns, re)
	}
	return m, errs
}

func (m *Matcher) Empty() bool {
	return len(m.words) == 0 && len(m.phrases) == 0 && len(m.patterns) == 0
}

func (m *Matcher) tokenMatch(tok string) bool {
	if m.words[tok] {
		return true
	}
	// naive english de-pluralization
	if len(tok) > 3 && strings.HasSuffix(tok, "s") && m.words[strings.TrimSuffix(tok, "s")] {
		return true
	}
	return false
}

// Match returns the first list entry found in text. Tokens are also tried with digits read as letters.
func (m *Matcher) Match(text string) (string, bool) {
	toks := TokenizeText(text)
	folded := make([]string, len(toks))
	for i, tok := range toks {
		folded[i] = FoldLeet(tok)
	}
	for i, tok := range toks {
		if m.tokenMatch(tok) {
			return tok, true
		}
		if folded[i] != tok && m.tokenMatch(folded[i]) {
			return folded[i], true
		}
	}
	for _, phrase := range m.phrases {
		if containsSequence(toks, phrase) || containsSequence(folded, phrase) {
			return strings.Join(phrase, " "), true
		}
	}
	for _, re := range m.patterns {
		if loc := re.FindString(text); loc != "" {
			return loc, true
		}
	}
	return "", false
}

// MatchIdentifier checks a display name or handle, which may have words run together or separated by punctuation.
func (m *Matcher) MatchIdentifier(ident string) (string, bool) {
	toks := TokenizeIdentifier(ident)
	for _, tok := range toks {
		if m.tokenMatch(tok) {
			return tok, true
		}
	}
	slug := Slugify(ident)
	if slug != "" && m.words[slug] {
		return slug, true
	}
	for _, phrase := range m.phrases {
		if containsSequence(toks, phrase) || (slug != "" && slug == strings.Join(phrase, "")) {
			return strings.Join(phrase, " "), true
		}
	}
	for _, re := range m.patterns {
		if loc := re.FindString(ident); loc != "" {
			return loc, true
		}
	}
	return "", false
}

func containsSequence(toks, seq []string) bool {
	if len(seq) == 0 || len(seq) > len(toks) {
		return false
	}
	for i := 0; i+len(seq) <= len(toks); i++ {
		if slices.Equal(toks[i:i+len(seq)], seq) {
			return true
		}
	}
	return false
}
