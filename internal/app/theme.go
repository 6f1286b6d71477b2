package app

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
)

// SpillColor is the stroke color for spill marks and the live preview.
var SpillColor = color.NRGBA{R: 0xD8, G: 0x1B, B: 0x1B, A: 0xFF}

// MapTheme provides the viewer's theme.
type MapTheme struct{}

var _ fyne.Theme = (*MapTheme)(nil)

func (t *MapTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	switch name {
	case theme.ColorNamePrimary:
		return color.NRGBA{R: 0x15, G: 0x65, B: 0xC0, A: 0xFF} // Water blue
	case theme.ColorNameSelection:
		return color.NRGBA{R: 0xFF, G: 0xD5, B: 0x00, A: 0x80} // Zoom rectangle
	case theme.ColorNameError:
		return SpillColor
	default:
		return theme.DefaultTheme().Color(name, variant)
	}
}

func (t *MapTheme) Font(style fyne.TextStyle) fyne.Resource {
	return theme.DefaultTheme().Font(style)
}

func (t *MapTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}

func (t *MapTheme) Size(name fyne.ThemeSizeName) float32 {
	return theme.DefaultTheme().Size(name)
}
