// Package gallery implements a small pre-registered face gallery: a set of
// named embeddings a confirmed track is matched against by nearest cosine
// distance, producing the track.NameLookup callback (spec.md §4.1 step 4:
// "nearest face in the gallery if cosine distance < 0.5").
package gallery

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultThreshold is the acceptance cutoff named in spec.md §4.1 step 4.
const DefaultThreshold = 0.5

// Entry is one registered identity.
type Entry struct {
	Name      string    `yaml:"name"`
	Embedding []float64 `yaml:"embedding"`
}

// Gallery holds registered entries and matches against them by cosine
// distance. The zero value is an empty gallery.
type Gallery struct {
	Threshold float64
	entries   []Entry
}

// New creates a Gallery seeded with entries, using DefaultThreshold.
func New(entries []Entry) *Gallery {
	return &Gallery{Threshold: DefaultThreshold, entries: append([]Entry(nil), entries...)}
}

// Register adds or replaces (by name) an entry.
func (g *Gallery) Register(name string, embedding []float64) {
	for i, e := range g.entries {
		if e.Name == name {
			g.entries[i].Embedding = embedding
			return
		}
	}
	g.entries = append(g.entries, Entry{Name: name, Embedding: embedding})
}

// Len reports how many identities are registered.
func (g *Gallery) Len() int {
	return len(g.entries)
}

// Lookup finds the nearest registered identity to embedding, returning
// false if none are within the gallery's acceptance threshold. Matches
// the track.NameLookup signature.
func (g *Gallery) Lookup(embedding []float64) (string, bool) {
	if g == nil || len(embedding) == 0 {
		return "", false
	}

	threshold := g.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	bestName := ""
	bestDist := threshold
	found := false
	for _, e := range g.entries {
		d := cosineDistance(e.Embedding, embedding)
		if d < bestDist {
			bestDist = d
			bestName = e.Name
			found = true
		}
	}
	return bestName, found
}

// Load reads a YAML file of {name, embedding} entries into a new Gallery.
func Load(path string) (*Gallery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gallery: read %s: %w", path, err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("gallery: parse %s: %w", path, err)
	}
	return New(entries), nil
}

func cosineDistance(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2 // max possible cosine distance, guarantees no match
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 2
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return 1 - cos
}
