// Package ui styles forumgrep's terminal output.
package ui

import (
	"os"

	"golang.org/x/term"
)

// ANSI color and style codes
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// enabled is false when NO_COLOR is set or stderr is not a terminal, so
// redirected output stays free of escape codes.
var enabled = os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stderr.Fd()))

// SetEnabled turns styling on or off.
func SetEnabled(on bool) { enabled = on }

// Enabled reports whether styling is applied.
func Enabled() bool { return enabled }

// Style wraps s in the given codes, or returns it unchanged when styling is off.
func Style(s string, codes ...string) string {
	if !enabled || len(codes) == 0 {
		return s
	}
	var prefix string
	for _, c := range codes {
		prefix += c
	}
	return prefix + s + ColorReset
}

func Bold(s string) string    { return Style(s, ColorBold) }
func Dim(s string) string     { return Style(s, ColorDim) }
func Success(s string) string { return Style(s, ColorGreen) }
func Info(s string) string    { return Style(s, ColorDim, ColorYellow) }
func Error(s string) string   { return Style(s, ColorRed) }

// Highlight marks a value the user should copy or notice, like a command.
func Highlight(s string) string { return Style(s, ColorCyan) }
