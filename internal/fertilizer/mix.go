package fertilizer

import (
	"fmt"

	"github.com/andreevsm/aquadose/internal/chem"
)

// macroEpsilon filters out zero-valued macro percentages.
const macroEpsilon = 1e-9

// Mix is a blended fertilizer: element → mass fraction, with no underlying
// single formula. Fractions are non-negative and need not sum to 1.
type Mix struct {
	name        string
	description string
	composition map[string]elementFraction
}

type elementFraction struct {
	element  chem.Element
	fraction float64
}

// Macro is the N-P-K(+Mg) label of a commercial fertilizer. Nitrogen is
// elemental percent; phosphorus, potassium and magnesium are given the way
// labels state them — as P2O5, K2O and MgO equivalents.
type Macro struct {
	Nitrogen float64
	P2O5     float64
	K2O      float64
	MgO      float64
}

// Label renders the conventional name, e.g. NPK-24:8:16 or
// NPK+Mg-11:9:30+2.5.
func (m Macro) Label() string {
	if m.MgO > macroEpsilon {
		return fmt.Sprintf("NPK+Mg-%g:%g:%g+%g", m.Nitrogen, m.P2O5, m.K2O, m.MgO)
	}
	return fmt.Sprintf("NPK-%g:%g:%g", m.Nitrogen, m.P2O5, m.K2O)
}

// NewFromMacro builds a mix from label percentages. Oxide-equivalent
// percentages convert to elemental fractions through the alias share of
// the element within its oxide, so the catalog must define N, P, K and Mg
// with the P2O5, K2O and MgO aliases.
func NewFromMacro(m Macro, cat *chem.Catalog) (*Mix, error) {
	mix := &Mix{
		name:        m.Label(),
		composition: make(map[string]elementFraction),
	}

	type oxide struct {
		element string
		alias   string // empty = elemental percentage
		percent float64
	}
	parts := []oxide{
		{"N", "", m.Nitrogen},
		{"P", "P2O5", m.P2O5},
		{"K", "K2O", m.K2O},
		{"Mg", "MgO", m.MgO},
	}

	for _, part := range parts {
		elt, ok := cat.Get(part.element)
		if !ok {
			return nil, fmt.Errorf("%w: catalog lacks %s", ErrInvalidEntry, part.element)
		}
		if part.percent < 0 {
			return nil, fmt.Errorf("%w: negative %s percentage", ErrInvalidEntry, part.element)
		}
		if part.percent <= macroEpsilon {
			continue
		}
		frac := part.percent / 100
		if part.alias != "" {
			share, err := chem.AliasShare(cat, part.element, part.alias)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
			}
			frac *= share
		}
		mix.composition[part.element] = elementFraction{element: elt, fraction: frac}
	}

	if len(mix.composition) == 0 {
		return nil, fmt.Errorf("%w: all macro percentages are zero", ErrInvalidEntry)
	}
	return mix, nil
}

// NewFromCompounds builds a mix from weighted (formula, portion) pairs.
// Portions are fractions of the blend, or percentages when percent is set.
// Each compound's own composition, scaled by its portion, accumulates per
// element across all pairs.
func NewFromCompounds(name, description string, parts map[string]float64, percent bool, cat *chem.Catalog) (*Mix, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s: no compounds", ErrInvalidEntry, name)
	}

	scale := 1.0
	if percent {
		scale = 0.01
	}

	mix := &Mix{
		name:        name,
		description: description,
		composition: make(map[string]elementFraction),
	}

	for formula, portion := range parts {
		if portion < 0 {
			return nil, fmt.Errorf("%w: %s: negative portion for %s", ErrInvalidEntry, name, formula)
		}
		compound, err := chem.Parse(formula, cat)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", name, formula, err)
		}
		comps, err := compound.Components(cat)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", name, formula, err)
		}
		for _, comp := range comps {
			ef := mix.composition[comp.Element.Name]
			ef.element = comp.Element
			ef.fraction += comp.Fraction * portion * scale
			mix.composition[comp.Element.Name] = ef
		}
	}

	return mix, nil
}

// Name returns the public name of the mix.
func (m *Mix) Name() string { return m.name }

// Description returns the free-form description, possibly empty.
func (m *Mix) Description() string { return m.description }

// Components re-exposes the stored elemental fractions directly — no
// molar-mass step — under the same significance filter, alias conversion
// and ordering as a plain compound.
func (m *Mix) Components(cat *chem.Catalog) ([]chem.ElementConcentration, error) {
	elts := make([]chem.Element, 0, len(m.composition))
	for _, ef := range m.composition {
		if ef.element.Insignificant {
			continue
		}
		elts = append(elts, ef.element)
	}
	chem.SortElements(elts)

	out := make([]chem.ElementConcentration, 0, len(elts))
	for _, elt := range elts {
		frac := m.composition[elt.Name].fraction
		aliases := make([]chem.AliasConcentration, 0, len(elt.Aliases))
		for _, alias := range elt.Aliases {
			rate, err := chem.AliasRate(cat, elt.Name, alias)
			if err != nil {
				return nil, err
			}
			aliases = append(aliases, chem.AliasConcentration{Alias: alias, Fraction: frac * rate})
		}
		out = append(out, chem.ElementConcentration{Element: elt, Fraction: frac, Aliases: aliases})
	}
	return out, nil
}
