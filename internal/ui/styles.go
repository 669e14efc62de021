// Package ui styles dynfilter's terminal output.
package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorKey    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorOK     = 114 // green
	colorError  = 203 // red
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderFilter returns s styled as a filter name.
func RenderFilter(s string) string { return paint(colorAccent, s) }

// RenderKey returns s styled as a field key or query kwarg.
func RenderKey(s string) string { return paint(colorKey, s) }

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderOK returns s in the success color.
func RenderOK(s string) string { return paint(colorOK, s) }

// RenderError returns s in the error color.
func RenderError(s string) string { return paint(colorError, s) }

// SetColor enables or disables color output globally.
func SetColor(enabled bool) {
	noColor = !enabled
}
