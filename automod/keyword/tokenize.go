package keyword

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// user, role and channel mentions, and custom emoji
	chatMarkup    = regexp.MustCompile(`<(?:@[!&]?\d+|#\d+|a?:\w+:\d+)>`)
	nonTokenChars = regexp.MustCompile(`[^\pL\pN\s]+`)
)

// StripChatMarkup removes mention and custom emoji tokens, leaving a space in their place.
func StripChatMarkup(text string) string {
	return chatMarkup.ReplaceAllString(text, " ")
}

// foldText undoes the usual evasions of a word list: accents, full-width and "fancy" letters (compatibility forms), and zero-width characters inside words.
func foldText(text string) string {
	// transformers hold state, so the chain is built per call
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.In(unicode.Cf)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return text
	}
	return out
}

// TokenizeText splits a chat message in to lower-case word tokens, for matching against a guild's word list.
//
// Mentions and custom emoji are dropped, letters are folded to their plain form, and anything other than letters and digits separates tokens.
func TokenizeText(text string) []string {
	folded := foldText(StripChatMarkup(text))
	return strings.Fields(strings.ToLower(nonTokenChars.ReplaceAllString(folded, " ")))
}

var leet = strings.NewReplacer("0", "o", "1", "i", "3", "e", "4", "a", "5", "s", "7", "t", "8", "b")

// FoldLeet maps digits used as letters ("fr33 n1tro") back to letters. Tokens which are all digits or have no digits come back unchanged.
func FoldLeet(tok string) string {
	hasDigit, hasLetter := false, false
	for _, r := range tok {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r):
			hasLetter = true
		}
	}
	if !hasDigit || !hasLetter {
		return tok
	}
	return leet.Replace(tok)
}

func splitIdentRune(c rune) bool {
	return !unicode.IsLetter(c) && !unicode.IsNumber(c)
}

// splits "FreeNitroBot" at lower-to-upper case changes
func splitCamel(s string) []string {
	var out []string
	start := 0
	var prev rune
	for i, r := range s {
		if i > start && unicode.IsLower(prev) && unicode.IsUpper(r) {
			out = append(out, s[start:i])
			start = i
		}
		prev = r
	}
	return append(out, s[start:])
}

// Splits a display name or username in to tokens. Removes any single-character tokens.
//
// For example, "FreeNitro_giveaway.gg" would be split in to ["free", "nitro", "giveaway", "gg"]
func TokenizeIdentifier(orig string) []string {
	fields := strings.FieldsFunc(foldText(orig), splitIdentRune)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		for _, part := range splitCamel(f) {
			tok := Slugify(part)
			if len(tok) > 1 {
				out = append(out, tok)
			}
		}
	}
	return out
}
