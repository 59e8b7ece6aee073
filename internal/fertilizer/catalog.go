package fertilizer

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/andreevsm/aquadose/internal/chem"
)

// entrySpec is the YAML shape of one catalog entry: either a plain formula
// or a weighted compound blend. Exactly one of the two shapes must match.
type entrySpec struct {
	Formula     string             `yaml:"formula"`
	Compounds   map[string]float64 `yaml:"compounds"`
	Description string             `yaml:"description"`
}

// Catalog maps fertilizer names to fertilizers. Load it once (possibly
// from several sources) during startup; afterwards treat it as read-only —
// concurrent readers need no locking. A serving layer that wants live
// reloads should swap whole catalogs under its own write lock rather than
// mutate one in place.
type Catalog struct {
	fertilizers map[string]Fertilizer
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{fertilizers: make(map[string]Fertilizer)}
}

// Load parses a YAML table of name → entry and adds every fertilizer to
// the catalog. Later entries (within one source or across several Load
// calls) override earlier ones with the same name. A single malformed
// entry fails the whole load and leaves the catalog untouched.
func (c *Catalog) Load(data []byte, elements *chem.Catalog) error {
	var specs map[string]entrySpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return fmt.Errorf("fertilizer catalog: %w", err)
	}

	staged := make(map[string]Fertilizer, len(specs))
	for name, spec := range specs {
		fert, err := buildEntry(name, spec, elements)
		if err != nil {
			return err
		}
		staged[name] = fert
	}

	for name, fert := range staged {
		c.fertilizers[name] = fert
	}
	return nil
}

func buildEntry(name string, spec entrySpec, elements *chem.Catalog) (Fertilizer, error) {
	switch {
	case spec.Formula != "" && len(spec.Compounds) > 0:
		return nil, fmt.Errorf("%w: %s: both formula and compounds given", ErrInvalidEntry, name)
	case spec.Formula != "":
		compound, err := chem.Parse(spec.Formula, elements)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return compound, nil
	case len(spec.Compounds) > 0:
		return NewFromCompounds(name, spec.Description, spec.Compounds, false, elements)
	default:
		return nil, fmt.Errorf("%w: %s: needs either formula or compounds", ErrInvalidEntry, name)
	}
}

// Get looks up a fertilizer by name.
func (c *Catalog) Get(name string) (Fertilizer, error) {
	fert, ok := c.fertilizers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFertilizer, name)
	}
	return fert, nil
}

// Len returns the number of loaded fertilizers.
func (c *Catalog) Len() int { return len(c.fertilizers) }

// Names returns all fertilizer names sorted alphabetically. Shells use
// this for listings and input completion.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.fertilizers))
	for name := range c.fertilizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
