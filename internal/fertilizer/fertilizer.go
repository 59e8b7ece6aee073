// Package fertilizer defines the fertilizer capability shared by plain
// compounds and blended mixes, and the named catalog that serves both.
// Exactly two kinds of fertilizer exist and both are known at load time;
// there is no registration point for further ones.
package fertilizer

import (
	"errors"

	"github.com/andreevsm/aquadose/internal/chem"
)

// Sentinel errors for catalog loading and lookup.
var (
	ErrUnknownFertilizer = errors.New("unknown fertilizer")
	ErrInvalidEntry      = errors.New("invalid fertilizer entry")
)

// Fertilizer is anything that exposes its elemental composition as mass
// fractions: a parsed compound or a blended mix.
type Fertilizer interface {
	Name() string
	Description() string
	// Components returns significant elements in display order with alias
	// restatements, fractions in 0..1.
	Components(cat *chem.Catalog) ([]chem.ElementConcentration, error)
}

// The two known implementations.
var (
	_ Fertilizer = (*chem.Compound)(nil)
	_ Fertilizer = (*Mix)(nil)
)
