package chem

import (
	"fmt"
	"math"
	"sort"
)

// Compound is a parsed chemical formula: per-element atom counts plus the
// original formula text. Build one with Parse; a successful parse is never
// empty.
type Compound struct {
	formula  string
	elements map[string]elementCount
}

type elementCount struct {
	Element Element
	Count   uint
}

// ElementConcentration is one element's mass fraction within a fertilizer,
// together with the same fraction re-expressed as each of the element's
// alias molecules.
type ElementConcentration struct {
	Element  Element
	Fraction float64
	Aliases  []AliasConcentration
}

// AliasConcentration is a fraction re-expressed in alias-molecule terms,
// e.g. N restated as NO3.
type AliasConcentration struct {
	Alias    string
	Fraction float64
}

// Parse scans a formula left to right and produces a Compound. The scanner
// keeps a name accumulator, a pending decimal multiplier, the last resolved
// element, and a pending parenthesized sub-compound; nested groups are
// captured verbatim until the parens balance and re-parsed recursively.
// An element name is registered with a provisional count of 1 the moment it
// resolves; a trailing digit then tops the count up by digit−1 so the final
// count equals the literal. A '*' introduces a hydrate: an optional leading
// integer followed by a sub-formula whose counts merge in multiplied, which
// ends the current scan level. Characters that are neither letters, digits,
// parens nor '*' are ignored.
func Parse(formula string, cat *Catalog) (*Compound, error) {
	c := &Compound{
		formula:  formula,
		elements: make(map[string]elementCount),
	}

	var (
		acc      string
		last     string // last resolved element, "" = none
		sub      *Compound
		mult     uint
		haveMult bool
		obraces  int
		ebraces  int
	)

	reset := func() {
		last = ""
		sub = nil
		mult = 0
		haveMult = false
	}

	// flushTrail folds the pending digit / element / sub-compound into the
	// outer map. Reports whether anything was consumed.
	flushTrail := func() (bool, error) {
		switch {
		case haveMult && sub != nil:
			c.merge(sub, mult)
			return true, nil
		case haveMult && last != "":
			// The element already holds a provisional 1; top it up so the
			// final count equals the literal digit.
			if mult > 0 {
				c.add(c.elements[last].Element, mult-1)
			}
			return true, nil
		case haveMult:
			return false, fmt.Errorf("%w in %q", ErrDanglingMultiplier, formula)
		case sub != nil:
			c.merge(sub, 1)
			return true, nil
		}
		return false, nil
	}

	// resolveAcc registers the accumulated name or fails it.
	resolveAcc := func() error {
		elt, ok := cat.Get(acc)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownElement, acc)
		}
		c.add(elt, 1)
		return nil
	}

	for i := 0; i < len(formula); i++ {
		ch := formula[i]

		if obraces > 0 {
			// Verbatim capture until the parens balance, then recurse.
			if ch == ')' {
				ebraces++
			} else if ch == '(' {
				obraces++
			}
			if ebraces != obraces {
				acc += string(ch)
				continue
			}
			inner, err := Parse(acc, cat)
			if err != nil {
				return nil, err
			}
			sub = inner
			obraces, ebraces = 0, 0
			acc = ""
			continue
		}

		switch {
		case isLetter(ch):
			flushed, err := flushTrail()
			if err != nil {
				return nil, err
			}
			if flushed {
				reset()
			}
			acc += string(ch)
			if elt, ok := cat.Get(acc); ok {
				c.add(elt, 1)
				acc = ""
				last = elt.Name
			}

		case isDigit(ch):
			mult = mult*10 + uint(ch-'0')
			haveMult = true

		case ch == '(':
			flushed, err := flushTrail()
			if err != nil {
				return nil, err
			}
			if !flushed && acc != "" {
				if err := resolveAcc(); err != nil {
					return nil, err
				}
			}
			acc = ""
			reset()
			obraces++

		case ch == '*':
			// Hydrate suffix: the rest of the string is one sub-formula
			// with an optional leading multiplier.
			flushed, err := flushTrail()
			if err != nil {
				return nil, err
			}
			if !flushed && acc != "" {
				if err := resolveAcc(); err != nil {
					return nil, err
				}
			}
			rest := formula[i+1:]
			j := 0
			var hm uint
			for j < len(rest) && isDigit(rest[j]) {
				hm = hm*10 + uint(rest[j]-'0')
				j++
			}
			if j == 0 {
				hm = 1
			}
			hydrate, err := Parse(rest[j:], cat)
			if err != nil {
				return nil, err
			}
			c.merge(hydrate, hm)
			return c.finish()

		default:
			// Ignore garbage characters.
		}
	}

	if _, err := flushTrail(); err != nil {
		return nil, err
	}
	if acc != "" {
		if err := resolveAcc(); err != nil {
			return nil, err
		}
	}

	return c.finish()
}

func (c *Compound) finish() (*Compound, error) {
	if len(c.elements) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyCompound, c.formula)
	}
	return c, nil
}

func (c *Compound) add(elt Element, n uint) {
	ec := c.elements[elt.Name]
	ec.Element = elt
	ec.Count += n
	c.elements[elt.Name] = ec
}

func (c *Compound) merge(other *Compound, mult uint) {
	for _, ec := range other.elements {
		c.add(ec.Element, ec.Count*mult)
	}
}

// Name returns the original formula text.
func (c *Compound) Name() string { return c.formula }

// Description is empty for plain compounds; the formula speaks for itself.
func (c *Compound) Description() string { return "" }

// Count returns the atom count for an element symbol, 0 if absent.
func (c *Compound) Count(name string) uint {
	return c.elements[name].Count
}

// Size returns the number of distinct elements.
func (c *Compound) Size() int { return len(c.elements) }

// MolarMass sums count × molar mass over all elements using Neumaier
// compensated summation, keeping the error bounded when large hydrate
// counts meet small masses.
func (c *Compound) MolarMass() float64 {
	var sum, comp float64
	for _, name := range c.sortedNames() {
		ec := c.elements[name]
		term := float64(ec.Count) * ec.Element.MolarMass
		t := sum + term
		if math.Abs(sum) >= math.Abs(term) {
			comp += (sum - t) + term
		} else {
			comp += (term - t) + sum
		}
		sum = t
	}
	return sum + comp
}

// ElementFraction returns the element's mass fraction of the whole
// compound, and whether the element is present at all.
func (c *Compound) ElementFraction(name string) (float64, bool) {
	ec, ok := c.elements[name]
	if !ok {
		return 0, false
	}
	return float64(ec.Count) * ec.Element.MolarMass / c.MolarMass(), true
}

// Components returns the mass fraction of every significant element, in
// display order, each with its alias restatements. The alias fraction is
// the element fraction divided by the element's share within the alias
// molecule — the rate turning one unit of the element into units of the
// alias.
func (c *Compound) Components(cat *Catalog) ([]ElementConcentration, error) {
	elts := make([]Element, 0, len(c.elements))
	for _, ec := range c.elements {
		if ec.Element.Insignificant {
			continue
		}
		elts = append(elts, ec.Element)
	}
	SortElements(elts)

	out := make([]ElementConcentration, 0, len(elts))
	for _, elt := range elts {
		frac, _ := c.ElementFraction(elt.Name)
		aliases := make([]AliasConcentration, 0, len(elt.Aliases))
		for _, alias := range elt.Aliases {
			share, err := AliasShare(cat, elt.Name, alias)
			if err != nil {
				return nil, err
			}
			aliases = append(aliases, AliasConcentration{Alias: alias, Fraction: frac / share})
		}
		out = append(out, ElementConcentration{Element: elt, Fraction: frac, Aliases: aliases})
	}
	return out, nil
}

func (c *Compound) sortedNames() []string {
	names := make([]string, 0, len(c.elements))
	for name := range c.elements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
