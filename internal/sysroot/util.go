package sysroot

import "fmt"

// color-compatible style (works with *color.Theme and color.RGBColor)
type colorStyle interface {
	Sprint(a ...any) string
	Sprintf(format string, a ...any) string
}

// cPrintf prints with a colored style or falls back to plain text when nil
func cPrintf(s colorStyle, format string, a ...any) {
	if s == nil {
		fmt.Fprintf(logOut, format, a...)
		return
	}
	fmt.Fprint(logOut, s.Sprintf(format, a...))
}

// arrowf prints a "-> " progress line in the given style.
func arrowf(s colorStyle, format string, a ...any) {
	fmt.Fprint(logOut, colArrow.Sprint("-> "))
	cPrintf(s, format, a...)
}

// debugf prints debug messages when Debug is true
func debugf(format string, args ...any) {
	if Debug {
		fmt.Fprintf(logOut, format, args...)
	}
}
