package setstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemSetStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	s := NewDefaultSetStore()
	ok, err := s.InSet(ctx, SetURLShorteners, "bit.ly")
	assert.NoError(err)
	assert.True(ok)

	ok, err = s.InSet(ctx, "missing-set", "bit.ly")
	assert.NoError(err)
	assert.False(ok)

	s.Add(SetBlockedDomains, " Grabify.Link ")
	ok, err = s.InSet(ctx, SetBlockedDomains, "grabify.link")
	assert.NoError(err)
	assert.True(ok)

	members, err := s.Members(ctx, SetBlockedDomains)
	assert.NoError(err)
	assert.Equal([]string{"grabify.link"}, members)
}

func TestLoadFromFileJSON(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "sets.json")
	assert.NoError(os.WriteFile(p, []byte(`{"blocked-domains": ["iplogger.org", "Example.NET"], "url-shorteners": ["x.co"]}`), 0o644))

	s := NewDefaultSetStore()
	assert.NoError(s.LoadFromFileJSON(p))

	ok, err := s.InSet(ctx, SetBlockedDomains, "example.net")
	assert.NoError(err)
	assert.True(ok)

	// file contents replace built-in sets
	ok, err = s.InSet(ctx, SetURLShorteners, "bit.ly")
	assert.NoError(err)
	assert.False(ok)

	assert.Error(s.LoadFromFileJSON(filepath.Join(t.TempDir(), "nope.json")))
}
