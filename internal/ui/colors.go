package ui

import "os"

// ANSI styles for terminal output.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	green  = "\033[32m"
	yellow = "\033[33m"
	red    = "\033[31m"
	cyan   = "\033[36m"
	white  = "\033[97m"
)

// Enabled turns styling off when NO_COLOR is set.
var Enabled = os.Getenv("NO_COLOR") == ""

func paint(style, s string) string {
	if !Enabled {
		return s
	}
	return style + s + reset
}

func Bold(s string) string    { return paint(bold, s) }
func Success(s string) string { return paint(green, s) }
func Info(s string) string    { return paint(dim+yellow, s) }
func Warn(s string) string    { return paint(yellow, s) }
func Error(s string) string   { return paint(red, s) }
func Dim(s string) string     { return paint(dim, s) }
func Command(s string) string { return paint(cyan, s) }
func Heading(s string) string { return paint(bold+white, s) }
func Title(s string) string   { return paint(bold+cyan, s) }
