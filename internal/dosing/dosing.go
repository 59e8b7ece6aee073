// Package dosing solves the two dosing problems for the two physical
// dosing shapes: adding dry salt straight to the tank, or dissolving it in
// a container and dosing portions of the solution. Forward (ResultOfDose)
// computes the concentration a given amount yields; inverse (TargetDose)
// computes the amount needed to hit a target concentration. Every
// computation is a pure function of its inputs.
package dosing

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/andreevsm/aquadose/internal/chem"
	"github.com/andreevsm/aquadose/internal/fertilizer"
	"github.com/andreevsm/aquadose/internal/tank"
)

// Sentinel errors for dosing requests.
var (
	ErrMissingTargetElement = errors.New("target element is not in the fertilizer")
	ErrInvalidDose          = errors.New("invalid dosing input")
)

// CalcType selects between the forward and the inverse calculation.
type CalcType int

const (
	// ResultOfDose: given an amount, report the resulting concentrations.
	ResultOfDose CalcType = iota
	// TargetDose: given a target concentration, report the required amount.
	TargetDose
)

// String implements fmt.Stringer.
func (c CalcType) String() string {
	switch c {
	case ResultOfDose:
		return "ResultOfDose"
	case TargetDose:
		return "TargetDose"
	default:
		return fmt.Sprintf("CalcType(%d)", int(c))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c CalcType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *CalcType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ResultOfDose", "":
		*c = ResultOfDose
	case "TargetDose":
		*c = TargetDose
	default:
		return fmt.Errorf("%w: unknown calc type %q", ErrInvalidDose, text)
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler (yaml.v3 does not consult
// TextUnmarshaler).
func (c *CalcType) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return c.UnmarshalText([]byte(s))
}

// AliasDose is a dose re-expressed in alias-molecule terms, mg/L.
type AliasDose struct {
	Alias string  `json:"element_alias"`
	Dose  float64 `json:"dose"`
}

// ElementDose is one element's dose in mg/L with alias restatements.
type ElementDose struct {
	Element string      `json:"element"`
	Dose    float64     `json:"dose"`
	Aliases []AliasDose `json:"aliases"`
}

// Result is a completed dose report: grams of fertilizer and the per-
// element concentrations it yields, in display order.
type Result struct {
	CompoundDose float64       `json:"compound_dose"`
	ElementsDose []ElementDose `json:"elements_dose"`
}

// Method is the dosing-shape contract; DryDosing and SolutionDosing
// implement it.
type Method interface {
	Dilute(f fertilizer.Fertilizer, cat *chem.Catalog, tk *tank.Tank) (*Result, error)
}

var (
	_ Method = (*DryDosing)(nil)
	_ Method = (*SolutionDosing)(nil)
)

// DryDosing doses dry salt straight into the tank. DiluteInput is grams
// for ResultOfDose, or the target concentration in mg/L of TargetElement
// for TargetDose. TargetElement accepts an element symbol or an alias
// molecule (N and NO3 both work; alias targets are converted to elemental
// terms).
type DryDosing struct {
	DiluteInput   float64  `json:"dilute_input" yaml:"dilute_input"`
	What          CalcType `json:"what" yaml:"what"`
	TargetElement string   `json:"target_element,omitempty" yaml:"target_element,omitempty"`
}

// Dilute computes the dose report for dry dosing.
func (d *DryDosing) Dilute(f fertilizer.Fertilizer, cat *chem.Catalog, tk *tank.Tank) (*Result, error) {
	if d.DiluteInput <= 0 {
		return nil, fmt.Errorf("%w: dilute_input must be positive", ErrInvalidDose)
	}
	eff, err := effectiveVolume(tk)
	if err != nil {
		return nil, err
	}
	concs, err := f.Components(cat)
	if err != nil {
		return nil, err
	}

	var mult float64
	switch d.What {
	case ResultOfDose:
		mult = d.DiluteInput * 1000 / eff
	case TargetDose:
		frac, err := targetFraction(concs, cat, d.TargetElement)
		if err != nil {
			return nil, err
		}
		elemental := d.DiluteInput * frac.tokenShare
		mult = elemental / frac.fraction
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDose, d.What)
	}

	return &Result{
		CompoundDose: mult * eff / 1000,
		ElementsDose: applyMultiplier(concs, mult),
	}, nil
}

// SolutionDosing doses via a concentrated solution: SolutionInput grams
// dissolved in ContainerVolume mL, dosed PortionVolume mL at a time. For
// TargetDose, SolutionInput is the target concentration in mg/L of
// TargetElement instead.
type SolutionDosing struct {
	ContainerVolume float64  `json:"container_volume" yaml:"container_volume"`
	PortionVolume   float64  `json:"portion_volume" yaml:"portion_volume"`
	SolutionInput   float64  `json:"solution_input" yaml:"solution_input"`
	What            CalcType `json:"what" yaml:"what"`
	TargetElement   string   `json:"target_element,omitempty" yaml:"target_element,omitempty"`
}

// Dilute computes the dose report for solution dosing.
func (s *SolutionDosing) Dilute(f fertilizer.Fertilizer, cat *chem.Catalog, tk *tank.Tank) (*Result, error) {
	if s.ContainerVolume <= 0 || s.PortionVolume <= 0 {
		return nil, fmt.Errorf("%w: container and portion volumes must be positive", ErrInvalidDose)
	}
	if s.SolutionInput <= 0 {
		return nil, fmt.Errorf("%w: solution_input must be positive", ErrInvalidDose)
	}
	eff, err := effectiveVolume(tk)
	if err != nil {
		return nil, err
	}
	concs, err := f.Components(cat)
	if err != nil {
		return nil, err
	}

	var dose float64
	switch s.What {
	case ResultOfDose:
		dose = s.SolutionInput
	case TargetDose:
		frac, err := targetFraction(concs, cat, s.TargetElement)
		if err != nil {
			return nil, err
		}
		elemental := s.SolutionInput * frac.tokenShare
		dose = elemental * eff / frac.fraction * s.ContainerVolume / s.PortionVolume / 1000
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidDose, s.What)
	}

	mult := dose * 1000 / s.ContainerVolume * s.PortionVolume / eff

	return &Result{
		CompoundDose: dose,
		ElementsDose: applyMultiplier(concs, mult),
	}, nil
}

// fileSpec mirrors the on-disk request shape: exactly one of the two
// dosing shapes under its own key.
type fileSpec struct {
	Dry      *DryDosing      `yaml:"dry"`
	Solution *SolutionDosing `yaml:"solution"`
}

// FromYAML decodes a dosing request from a YAML document holding either a
// dry or a solution block, so repeated dosings can come from a file
// instead of the interactive prompts.
func FromYAML(data []byte) (Method, error) {
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDose, err)
	}
	switch {
	case spec.Dry != nil && spec.Solution != nil:
		return nil, fmt.Errorf("%w: both dry and solution given", ErrInvalidDose)
	case spec.Dry != nil:
		return spec.Dry, nil
	case spec.Solution != nil:
		return spec.Solution, nil
	default:
		return nil, fmt.Errorf("%w: needs either dry or solution", ErrInvalidDose)
	}
}

func effectiveVolume(tk *tank.Tank) (float64, error) {
	eff := tk.EffectiveVolume()
	if eff <= 0 {
		return 0, fmt.Errorf("%w: effective volume is zero", tank.ErrInvalidTankSpec)
	}
	return float64(eff), nil
}

// resolvedTarget carries the elemental fraction of the target within the
// fertilizer, and the share converting a token concentration (possibly an
// alias molecule like NO3) to elemental terms.
type resolvedTarget struct {
	fraction   float64
	tokenShare float64
}

// targetFraction parses the target token as a compound, picks its leading
// significant element, and looks that element up in the fertilizer's
// composition. A bare element token has a share of 1; an alias molecule
// scales the requested concentration down to the element it carries.
func targetFraction(concs []chem.ElementConcentration, cat *chem.Catalog, token string) (resolvedTarget, error) {
	if token == "" {
		return resolvedTarget{}, fmt.Errorf("%w: no target element configured", ErrMissingTargetElement)
	}
	molecule, err := chem.Parse(token, cat)
	if err != nil {
		return resolvedTarget{}, err
	}
	comps, err := molecule.Components(cat)
	if err != nil {
		return resolvedTarget{}, err
	}
	if len(comps) == 0 {
		return resolvedTarget{}, fmt.Errorf("%w: %s has no significant elements", ErrMissingTargetElement, token)
	}
	top := comps[0]

	for _, conc := range concs {
		if conc.Element.Name == top.Element.Name {
			return resolvedTarget{fraction: conc.Fraction, tokenShare: top.Fraction}, nil
		}
	}
	return resolvedTarget{}, fmt.Errorf("%w: %s", ErrMissingTargetElement, top.Element.Name)
}

func applyMultiplier(concs []chem.ElementConcentration, mult float64) []ElementDose {
	doses := make([]ElementDose, 0, len(concs))
	for _, conc := range concs {
		aliases := make([]AliasDose, 0, len(conc.Aliases))
		for _, alias := range conc.Aliases {
			aliases = append(aliases, AliasDose{Alias: alias.Alias, Dose: alias.Fraction * mult})
		}
		doses = append(doses, ElementDose{
			Element: conc.Element.Name,
			Dose:    conc.Fraction * mult,
			Aliases: aliases,
		})
	}
	return doses
}
