package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractURL(t *testing.T) {
	assert := assert.New(t)

	fixtures := []struct {
		s   string
		out []string
	}{
		{
			s:   "this is a description with example.com mentioned in the middle",
			out: []string{"example.com"},
		},
		{
			s:   "this is another example with https://en.wikipedia.org/index.html: and archive.org, and https://eff.org/... and discord.gg.",
			out: []string{"https://en.wikipedia.org/index.html", "archive.org", "https://eff.org/", "discord.gg"},
		},
		{
			s:   "that's done.Next we ship",
			out: nil,
		},
		{
			s:   "go to www.Example.COM or https://Shop.IO/deal, not version 1.2.3 or file.TXT",
			out: []string{"www.Example.COM", "https://Shop.IO/deal"},
		},
	}

	for _, fix := range fixtures {
		assert.Equal(fix.out, ExtractTextURLs(fix.s))
	}
}

func TestHashOfString(t *testing.T) {
	assert := assert.New(t)

	// hashing function should be consistent over time
	assert.Equal("4e6f69c0e3d10992", HashOfString("dummy-value"))

	assert.Equal(ContentHash("Buy  NOW"), ContentHash("buy now"))
	assert.NotEqual(ContentHash("buy now"), ContentHash("buy later"))
}

func TestCapsRatio(t *testing.T) {
	assert := assert.New(t)

	r, n := CapsRatio("", false)
	assert.Equal(0.0, r)
	assert.Equal(0, n)

	r, n = CapsRatio("HELLO world", false)
	assert.Equal(10, n)
	assert.InDelta(0.5, r, 0.0001)

	// emoji and symbols count toward length unless ignored
	r, n = CapsRatio("HEY 😀😀", false)
	assert.Equal(5, n)
	assert.InDelta(0.6, r, 0.0001)

	r, n = CapsRatio("HEY 😀😀 <:pepe:123456> <@42>", true)
	assert.Equal(3, n)
	assert.InDelta(1.0, r, 0.0001)
}

func TestStripEmoji(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("hi  there ", StripEmoji("hi 👋🏽 there <a:wave:998877>"))
	assert.Equal("ok", StripEmoji("ok!!!"))
}
