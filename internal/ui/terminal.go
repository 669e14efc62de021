package ui

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// colorFromEnv applies NO_COLOR, CLICOLOR_FORCE and CLICOLOR. ok is false
// when none of them decides.
func colorFromEnv() (enabled, ok bool) {
	// https://no-color.org: any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false, true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true, true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false, true
	}
	return false, false
}

// ShouldUseColor reports whether ANSI colors should be written to f. The
// environment overrides terminal detection.
func ShouldUseColor(f *os.File) bool {
	if enabled, ok := colorFromEnv(); ok {
		return enabled
	}
	return term.IsTerminal(int(f.Fd()))
}
