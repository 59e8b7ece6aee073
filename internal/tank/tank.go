// Package tank models the dosing target: a water volume given either as a
// liter figure or as linear dimensions, with a usable-volume correction
// for substrate, hardscape and fill level.
package tank

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// usableVolumeMult approximates how much of the nominal volume is actually
// water in a typical scaped tank.
const usableVolumeMult = 0.85

// Sentinel errors for tank construction.
var (
	ErrInvalidTankSpec  = errors.New("invalid tank spec")
	ErrInvalidDimension = errors.New("invalid dimension")
)

// Tank holds a resolved volume in liters plus the absolute flag. The zero
// value is not usable; build one with a constructor or by unmarshalling a
// spec.
type Tank struct {
	volume   float64
	absolute bool
}

// NewVolume builds a tank from a literal volume in liters.
func NewVolume(liters float64, absolute bool) (*Tank, error) {
	if liters <= 0 {
		return nil, fmt.Errorf("%w: volume must be positive", ErrInvalidTankSpec)
	}
	return &Tank{volume: liters, absolute: absolute}, nil
}

// NewLinear builds a tank from height, length and width in decimeters;
// their product is the volume in liters.
func NewLinear(height, length, width float64, absolute bool) (*Tank, error) {
	if height <= 0 || length <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", ErrInvalidTankSpec)
	}
	return &Tank{volume: height * length * width, absolute: absolute}, nil
}

// ParseDimension converts a dimension string to decimeters. A bare number
// is assumed to be centimeters; otherwise a metric unit suffix (mm, cm,
// dm, m) is required.
func ParseDimension(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDimension)
	}

	last := s[len(s)-1]
	if last >= '0' && last <= '9' || last == '.' {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDimension, s)
		}
		return v / 10, nil
	}

	var unit string
	for _, u := range []string{"mm", "cm", "dm", "m"} {
		if strings.HasSuffix(s, u) && len(u) > len(unit) {
			unit = u
		}
	}
	if unit == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(s, unit)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDimension, s)
	}

	switch unit {
	case "mm":
		v /= 100
	case "cm":
		v /= 10
	case "dm":
		// already decimeters
	case "m":
		v *= 10
	}
	return v, nil
}

// EffectiveVolume is the usable water volume in whole liters: the nominal
// volume times the correction factor (skipped for absolute tanks),
// truncated.
func (t *Tank) EffectiveVolume() int {
	mult := usableVolumeMult
	if t.absolute {
		mult = 1.0
	}
	return int(math.Floor(t.volume * mult))
}

// MetricVolume is the nominal volume in whole liters, truncated.
func (t *Tank) MetricVolume() int {
	return int(math.Floor(t.volume))
}

// String renders the tank for logs and reports.
func (t *Tank) String() string {
	return fmt.Sprintf("Tank: %d liters usable, %d liters nominal", t.EffectiveVolume(), t.MetricVolume())
}

// spec mirrors the wire shape: volume is either a number (liters) or an
// object with linear dimensions in decimeters.
type spec struct {
	Volume   volumeSpec `yaml:"volume" json:"volume"`
	Absolute bool       `yaml:"absolute" json:"absolute"`
}

type volumeSpec struct {
	liters float64
	linear *linearSpec
}

type linearSpec struct {
	Height float64 `yaml:"height" json:"height"`
	Length float64 `yaml:"length" json:"length"`
	Width  float64 `yaml:"width" json:"width"`
}

func (v *volumeSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		v.linear = &linearSpec{}
		return node.Decode(v.linear)
	}
	return node.Decode(&v.liters)
}

func (v *volumeSpec) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		v.linear = &linearSpec{}
		return json.Unmarshal(data, v.linear)
	}
	return json.Unmarshal(data, &v.liters)
}

func fromSpec(s spec) (*Tank, error) {
	if s.Volume.linear != nil {
		return NewLinear(s.Volume.linear.Height, s.Volume.linear.Length, s.Volume.linear.Width, s.Absolute)
	}
	return NewVolume(s.Volume.liters, s.Absolute)
}

// UnmarshalYAML decodes the {volume, absolute?} spec shape.
func (t *Tank) UnmarshalYAML(node *yaml.Node) error {
	var s spec
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTankSpec, err)
	}
	parsed, err := fromSpec(s)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

// UnmarshalJSON decodes the {volume, absolute?} spec shape.
func (t *Tank) UnmarshalJSON(data []byte) error {
	var s spec
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTankSpec, err)
	}
	parsed, err := fromSpec(s)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}
