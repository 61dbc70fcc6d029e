package classify

import (
	_ "embed"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Classification is an audience group and a position within it.
type Classification struct {
	Audience string `json:"audience" yaml:"audience"`
	Position string `json:"position" yaml:"position"`
}

// Audience is one closed-set group with its allowed positions.
type Audience struct {
	Name      string   `yaml:"name"`
	Positions []string `yaml:"positions"`
}

// Taxonomy is the closed set of audiences and the fallback pair used for
// anything outside it.
type Taxonomy struct {
	Fallback  Classification `yaml:"fallback"`
	Audiences []Audience     `yaml:"audiences"`
}

// DefaultTaxonomy returns the embedded taxonomy.
func DefaultTaxonomy() (*Taxonomy, error) {
	return ParseTaxonomy(defaultTaxonomy)
}

// ParseTaxonomy decodes and checks a taxonomy document.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "classify: parse taxonomy")
	}
	if t.Fallback.Audience == "" || t.Fallback.Position == "" {
		return nil, eris.New("classify: taxonomy has no fallback")
	}
	if len(t.Audiences) == 0 {
		return nil, eris.New("classify: taxonomy has no audiences")
	}
	for _, a := range t.Audiences {
		if a.Name == "" || len(a.Positions) == 0 {
			return nil, eris.Errorf("classify: audience %q has no positions", a.Name)
		}
	}
	return &t, nil
}

func (t *Taxonomy) audience(name string) (Audience, bool) {
	for _, a := range t.Audiences {
		if a.Name == name {
			return a, true
		}
	}
	return Audience{}, false
}

// Coerce maps a raw classifier answer onto the closed set. An unknown
// audience yields the fallback pair. The fallback audience always pairs with
// the fallback position. An unknown position inside a known audience becomes
// the fallback position. ok is false whenever anything was replaced.
func (t *Taxonomy) Coerce(raw Classification) (c Classification, ok bool) {
	audience := strings.TrimSpace(raw.Audience)
	position := strings.TrimSpace(raw.Position)

	if audience == t.Fallback.Audience {
		return t.Fallback, position == t.Fallback.Position
	}
	a, found := t.audience(audience)
	if !found {
		return t.Fallback, false
	}
	if !slices.Contains(a.Positions, position) {
		return Classification{Audience: a.Name, Position: t.Fallback.Position}, false
	}
	return Classification{Audience: a.Name, Position: position}, true
}
