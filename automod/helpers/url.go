package helpers

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// NormalizeURL cleans up a URL found in free text (adding a scheme if missing) for matching against domain lists.
func NormalizeURL(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	clean, err := purell.NormalizeURLString(raw, purell.FlagsUsuallySafeGreedy|purell.FlagRemoveFragment|purell.FlagRemoveDuplicateSlashes|purell.FlagRemoveWWW)
	if err != nil {
		return raw
	}
	return clean
}

// URLDomain returns the normalized, lower-case host of a URL found in text, or empty string if it can't be parsed.
func URLDomain(raw string) string {
	u, err := url.Parse(NormalizeURL(raw))
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}

// DomainMatches is true if domain is the pattern itself or a subdomain of it.
func DomainMatches(domain, pattern string) bool {
	pattern = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(pattern)), "www.")
	if pattern == "" || domain == "" {
		return false
	}
	return domain == pattern || strings.HasSuffix(domain, "."+pattern)
}

// Returns the first pattern matched by domain, if any.
func MatchDomain(domain string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if DomainMatches(domain, p) {
			return p, true
		}
	}
	return "", false
}

// LooksLikeDomain filters out things the loose URL regex matches in prose, like version numbers ("1.2.3") or "done.Next": the final label must be at least two lower-case letters. Pass a normalized host, as from URLDomain.
func LooksLikeDomain(domain string) bool {
	i := strings.LastIndex(domain, ".")
	if i < 0 {
		return false
	}
	return isLowerLabel(domain[i+1:])
}
