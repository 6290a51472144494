package keyword

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^\pL\pN]+`)

// Slugify reduces a display name to its folded lower-case letters and digits, so "Ｆｒｅｅ-Ｎｉｔｒｏ" and "free nitro" both become "freenitro". Mentions and custom emoji are dropped first.
func Slugify(orig string) string {
	return strings.ToLower(nonSlugChars.ReplaceAllString(foldText(StripChatMarkup(orig)), ""))
}
