package helpers

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/rivo/uniseg"
	"github.com/spaolacci/murmur3"
)

func DedupeStrings(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range in {
		if !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

// returns a fast, compact hash of a string
//
// current implementation uses murmur3, default seed, and hex encoding
func HashOfString(s string) string {
	val := murmur3.Sum64([]byte(s))
	return fmt.Sprintf("%016x", val)
}

// Hash of message content for duplicate detection. Case and whitespace differences are ignored.
func ContentHash(content string) string {
	return HashOfString(strings.Join(strings.Fields(strings.ToLower(content)), " "))
}

// based on: https://stackoverflow.com/a/48769624, with no trailing period allowed
var urlRegex = regexp.MustCompile(`(?:(?:https?|ftp):\/\/)?[\w/\-?=%.]+\.[\w/\-&?=%.]*[\w/\-&?=%]+`)

// ExtractTextURLs returns link-like substrings of free text. Without a scheme or "www." prefix the host must end in a lower-case alphabetic label, so prose like "done.Next" is skipped.
func ExtractTextURLs(raw string) []string {
	var out []string
	for _, m := range urlRegex.FindAllString(raw, -1) {
		if strings.Contains(m, "://") || strings.HasPrefix(strings.ToLower(m), "www.") || bareHostEndsLower(m) {
			out = append(out, m)
		}
	}
	return out
}

func bareHostEndsLower(m string) bool {
	host := m
	if i := strings.IndexAny(host, "/?"); i >= 0 {
		host = host[:i]
	}
	i := strings.LastIndex(host, ".")
	if i < 0 {
		return false
	}
	return isLowerLabel(host[i+1:])
}

// at least two ASCII letters, all lower-case
func isLowerLabel(label string) bool {
	if len(label) < 2 {
		return false
	}
	for _, r := range label {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

var (
	customEmojiRegex = regexp.MustCompile(`<a?:\w+:\d+>`)
	mentionRegex     = regexp.MustCompile(`<(?:@[!&]?|#)\d+>`)
)

// StripEmoji removes custom emoji tags and mention tokens, then drops grapheme clusters without a letter or digit.
func StripEmoji(text string) string {
	text = customEmojiRegex.ReplaceAllString(text, "")
	text = mentionRegex.ReplaceAllString(text, "")
	var sb strings.Builder
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		keep := false
		for _, r := range gr.Runes() {
			if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
				keep = true
				break
			}
		}
		if keep {
			sb.WriteString(gr.Str())
		}
	}
	return sb.String()
}

// CapsRatio returns the fraction of counted characters which are upper-case letters, and the number of counted characters.
//
// Characters are grapheme clusters, excluding whitespace. With ignoreEmoji, emoji and symbols are removed first.
func CapsRatio(text string, ignoreEmoji bool) (float64, int) {
	if ignoreEmoji {
		text = StripEmoji(text)
	}
	total := 0
	upper := 0
	gr := uniseg.NewGraphemes(text)
	for gr.Next() {
		rs := gr.Runes()
		if len(rs) == 0 || unicode.IsSpace(rs[0]) {
			continue
		}
		total++
		if unicode.IsUpper(rs[0]) {
			upper++
		}
	}
	if total == 0 {
		return 0, 0
	}
	return float64(upper) / float64(total), total
}
