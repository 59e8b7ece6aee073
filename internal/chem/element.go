// Package chem holds the chemical core: the element catalog, the formula
// parser, and compound math (molar masses, per-element mass fractions,
// alias conversion rates). Everything here is pure computation — catalogs
// are immutable once loaded and safe for concurrent readers.
package chem

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// aliasEpsilon is the smallest element share an alias molecule may carry.
// Below this the alias conversion rate would blow up toward infinity, so
// catalog loading rejects the alias instead.
const aliasEpsilon = 1e-9

// Element is a tracked nutrient with its molar mass and display metadata.
// Identity is by Name alone.
type Element struct {
	Name          string
	MolarMass     float64
	Insignificant bool
	// Priority orders report output: higher first, ties by name.
	Priority uint
	// Aliases are molecule formulas this element is commonly re-expressed
	// as, e.g. N as NO3, P as P2O5.
	Aliases []string
}

// elementSpec is the YAML shape of one catalog entry.
type elementSpec struct {
	MolarMass     float64  `yaml:"molar_mass"`
	Insignificant bool     `yaml:"insignificant"`
	Priority      uint     `yaml:"priority"`
	Aliases       []string `yaml:"aliases"`
}

// Catalog maps element symbols to elements. Immutable after LoadCatalog.
type Catalog struct {
	elements map[string]Element
}

// LoadCatalog parses a YAML table of symbol → element spec and validates
// every alias against the finished table: an alias must itself parse and
// must contain the aliased element with a non-negligible mass share. A
// single bad entry fails the whole load.
func LoadCatalog(data []byte) (*Catalog, error) {
	var specs map[string]elementSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("element catalog: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("element catalog: %w: no elements defined", ErrInvalidCatalogEntry)
	}

	cat := &Catalog{elements: make(map[string]Element, len(specs))}
	for name, spec := range specs {
		if spec.MolarMass <= 0 {
			return nil, fmt.Errorf("element %s: %w: molar_mass must be positive", name, ErrInvalidCatalogEntry)
		}
		cat.elements[name] = Element{
			Name:          name,
			MolarMass:     spec.MolarMass,
			Insignificant: spec.Insignificant,
			Priority:      spec.Priority,
			Aliases:       spec.Aliases,
		}
	}

	// Second pass: aliases reference other catalog entries, so they can
	// only be checked once the table is complete.
	for name, elt := range cat.elements {
		for _, alias := range elt.Aliases {
			if _, err := AliasShare(cat, name, alias); err != nil {
				return nil, fmt.Errorf("element %s: alias %s: %w", name, alias, err)
			}
		}
	}

	return cat, nil
}

// Get looks up an element by symbol.
func (c *Catalog) Get(name string) (Element, bool) {
	elt, ok := c.elements[name]
	return elt, ok
}

// Len returns the number of elements in the catalog.
func (c *Catalog) Len() int {
	return len(c.elements)
}

// Names returns all element symbols in display order. Interactive shells
// use this for completion; the catalog itself stays oblivious to input
// handling.
func (c *Catalog) Names() []string {
	elts := make([]Element, 0, len(c.elements))
	for _, elt := range c.elements {
		elts = append(elts, elt)
	}
	SortElements(elts)
	names := make([]string, len(elts))
	for i, elt := range elts {
		names[i] = elt.Name
	}
	return names
}

// SortElements orders elements for display: priority descending, then name
// ascending.
func SortElements(elts []Element) {
	sort.Slice(elts, func(i, j int) bool {
		if elts[i].Priority != elts[j].Priority {
			return elts[i].Priority > elts[j].Priority
		}
		return elts[i].Name < elts[j].Name
	})
}

// AliasShare returns the mass fraction of element name within the parsed
// alias molecule, e.g. the share of P within P2O5 (≈0.436). Errors if the
// alias does not parse or carries none of the element.
func AliasShare(cat *Catalog, name, alias string) (float64, error) {
	molecule, err := Parse(alias, cat)
	if err != nil {
		return 0, err
	}
	share, ok := molecule.ElementFraction(name)
	if !ok || share < aliasEpsilon {
		return 0, fmt.Errorf("%w: %s carries no %s", ErrInvalidCatalogEntry, alias, name)
	}
	return share, nil
}

// AliasRate returns the factor converting one unit of the element into
// units of the alias molecule (the inverse of AliasShare).
func AliasRate(cat *Catalog, name, alias string) (float64, error) {
	share, err := AliasShare(cat, name, alias)
	if err != nil {
		return 0, err
	}
	return 1 / share, nil
}
