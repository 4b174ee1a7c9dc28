package sysroot

import (
	"io"
	"os"

	"github.com/gookit/color"
)

// Global variables
var (
	Debug     bool
	version   = "dev"     // overridden at build time
	buildDate = "unknown" // overridden at build time
	logOut    io.Writer = os.Stdout
)

// color helpers
var (
	colInfo    = color.Info
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
)

// SetOutput redirects progress output. A nil writer discards it.
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	logOut = w
}
