package keyword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher(t *testing.T) {
	assert := assert.New(t)

	m, errs := NewMatcher([]string{"Scam", "free nitro", "", "crème"}, []string{`b+a+d+w+o+r+d`, `(unclosed`})
	assert.Len(errs, 1)
	assert.False(m.Empty())

	fixtures := []struct {
		text  string
		match string
		ok    bool
	}{
		{text: "hello there", ok: false},
		{text: "this is a SCAM!", match: "scam", ok: true},
		{text: "obvious scams everywhere", match: "scams", ok: true},
		{text: "get FREE Nitro here", match: "free nitro", ok: true},
		{text: "free stuff, nitro later", ok: false},
		{text: "creme brulee", match: "creme", ok: true},
		{text: "you baaadword", match: "baaadword", ok: true},
		{text: "scammer", ok: false},
		{text: "fr33 n1tr0 for everyone", match: "free nitro", ok: true},
		{text: "<@123> 5cam alert", match: "scam", ok: true},
		{text: "meet at 2024", ok: false},
	}

	for _, fix := range fixtures {
		match, ok := m.Match(fix.text)
		assert.Equal(fix.ok, ok, fix.text)
		assert.Equal(fix.match, match, fix.text)
	}
}

func TestMatcherIdentifier(t *testing.T) {
	assert := assert.New(t)

	m, errs := NewMatcher([]string{"scam", "freenitro"}, nil)
	assert.Empty(errs)

	_, ok := m.MatchIdentifier("Free.Nitro")
	assert.True(ok)
	_, ok = m.MatchIdentifier("the-scam-bot")
	assert.True(ok)
	_, ok = m.MatchIdentifier("friendly_helper")
	assert.False(ok)

	m, _ = NewMatcher([]string{"free nitro"}, nil)
	match, ok := m.MatchIdentifier("FreeNitro")
	assert.True(ok)
	assert.Equal("free nitro", match)
	_, ok = m.MatchIdentifier("free.nitro.giveaway")
	assert.True(ok)
}

func TestEmptyMatcher(t *testing.T) {
	assert := assert.New(t)

	m, errs := NewMatcher(nil, []string{"", "  "})
	assert.Empty(errs)
	assert.True(m.Empty())
	_, ok := m.Match("anything")
	assert.False(ok)
}
