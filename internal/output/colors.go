package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	File      *color.Color
	FieldPath *color.Color
	Success   *color.Color
	Error     *color.Color
	Warning   *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		File:      color.New(color.FgCyan),
		FieldPath: color.New(color.FgYellow),
		Success:   color.New(color.FgGreen),
		Error:     color.New(color.FgRed, color.Bold),
		Warning:   color.New(color.FgYellow, color.Bold),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()

	scheme.File.DisableColor()
	scheme.FieldPath.DisableColor()
	scheme.Success.DisableColor()
	scheme.Error.DisableColor()
	scheme.Warning.DisableColor()
	scheme.Highlight.DisableColor()

	return scheme
}

// SuccessIcon returns a checkmark symbol with appropriate color
func SuccessIcon(noColor bool) string {
	if noColor {
		return "✓"
	}
	return color.New(color.FgGreen).Sprint("✓")
}

// ErrorIcon returns an X symbol with appropriate color
func ErrorIcon(noColor bool) string {
	if noColor {
		return "✗"
	}
	return color.New(color.FgRed).Sprint("✗")
}

// WarningIcon returns an exclamation symbol with appropriate color
func WarningIcon(noColor bool) string {
	if noColor {
		return "!"
	}
	return color.New(color.FgYellow).Sprint("!")
}
