package display

import (
	_ "embed"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/term"
)

//go:embed banner.txt
var bannerRaw string

// RenderBanner returns the banner art horizontally centred for the
// current terminal, 80 columns when the width cannot be determined.
// To change the banner just replace banner.txt.
func RenderBanner() string {
	width := 80
	if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
		width = w
	}

	art := BannerStyle.Render(strings.TrimRight(bannerRaw, "\n"))
	return lipgloss.PlaceHorizontal(width, lipgloss.Center, art)
}
