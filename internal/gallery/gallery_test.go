package gallery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupFindsNearestWithinThreshold(t *testing.T) {
	t.Parallel()
	g := New([]Entry{
		{Name: "alice", Embedding: []float64{1, 0}},
		{Name: "bob", Embedding: []float64{0, 1}},
	})

	name, ok := g.Lookup([]float64{0.99, 0.01})
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestLookupRejectsBeyondThreshold(t *testing.T) {
	t.Parallel()
	g := New([]Entry{{Name: "alice", Embedding: []float64{1, 0}}})
	g.Threshold = 0.01

	_, ok := g.Lookup([]float64{0, 1})
	assert.False(t, ok)
}

func TestLookupOnEmptyGalleryNeverMatches(t *testing.T) {
	t.Parallel()
	g := New(nil)
	_, ok := g.Lookup([]float64{1, 0})
	assert.False(t, ok)
}

func TestRegisterReplacesExistingEntryByName(t *testing.T) {
	t.Parallel()
	g := New([]Entry{{Name: "alice", Embedding: []float64{1, 0}}})
	g.Register("alice", []float64{0, 1})
	assert.Equal(t, 1, g.Len())

	name, ok := g.Lookup([]float64{0, 1})
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestLoadParsesYAMLEntries(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "gallery.yaml")
	doc := "- name: alice\n  embedding: [1, 0]\n- name: bob\n  embedding: [0, 1]\n"
	assert.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	g, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 2, g.Len())

	name, ok := g.Lookup([]float64{1, 0})
	assert.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
