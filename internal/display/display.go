// Package display renders compositions and dose reports for the terminal
// and provides the one-line input prompt. The core packages know nothing
// about presentation; everything user-facing happens here.
package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/andreevsm/aquadose/internal/chem"
	"github.com/andreevsm/aquadose/internal/dosing"
	"github.com/andreevsm/aquadose/internal/tank"
)

// ── Styles ───────────────────────────────────────────────────────

var (
	// BannerStyle — muted slate for the startup banner.
	BannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#94a3b8"))

	// Headings — soft mint.
	headingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bbf7d0"))

	// Element symbols — bold light zinc.
	elementStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#d4d4d8"))

	// Values — soft sky blue.
	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bae6fd"))

	// Secondary text — dimmed zinc for aliases and hints.
	secondaryStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#71717a"))

	// ErrorStyle — soft coral for failures.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fca5a5"))
)

// AdjustUnits scales a dose for presentation: at or below 0.01 mg/L the
// value reads better in µg/L. Display rule only — stored doses stay mg/L.
func AdjustUnits(dose float64) (float64, string) {
	if dose <= 0.01 {
		return dose * 1000, "ug"
	}
	return dose, "mg"
}

// Heading renders a section heading.
func Heading(text string) string {
	return headingStyle.Render(text)
}

// Composition renders a fertilizer's elemental percentages with alias
// restatements, one element per line.
func Composition(comps []chem.ElementConcentration) string {
	var b strings.Builder
	for _, comp := range comps {
		fmt.Fprintf(&b, "Element: %s = %s",
			elementStyle.Render(comp.Element.Name),
			valueStyle.Render(fmt.Sprintf("%.2f%%", comp.Fraction*100)))
		for _, alias := range comp.Aliases {
			fmt.Fprintf(&b, " as %s: %s",
				elementStyle.Render(alias.Alias),
				secondaryStyle.Render(fmt.Sprintf("%.2f%%", alias.Fraction*100)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// MolarMassLine renders a compound's molar mass.
func MolarMassLine(mass float64) string {
	return fmt.Sprintf("Molar mass: %s", valueStyle.Render(fmt.Sprintf("%.3f g/mol", mass)))
}

// TankLine renders the tank summary.
func TankLine(tk *tank.Tank) string {
	return secondaryStyle.Render(tk.String())
}

// DoseReport renders a dose result: the fertilizer amount in grams and
// every element's concentration with alias restatements.
func DoseReport(res *dosing.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fertilizer dose: %s\n",
		valueStyle.Render(fmt.Sprintf("%.3f g", res.CompoundDose)))
	for _, elt := range res.ElementsDose {
		dose, units := AdjustUnits(elt.Dose)
		fmt.Fprintf(&b, "Element: %s = %s",
			elementStyle.Render(elt.Element),
			valueStyle.Render(fmt.Sprintf("%.3f %s/l", dose, units)))
		for _, alias := range elt.Aliases {
			dose, units := AdjustUnits(alias.Dose)
			fmt.Fprintf(&b, " as %s: %s",
				elementStyle.Render(alias.Alias),
				secondaryStyle.Render(fmt.Sprintf("%.3f %s/l", dose, units)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
