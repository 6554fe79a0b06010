package logger

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ANSI color codes. Disabled when NO_COLOR is set or stdout is not a terminal-ish env.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
)

var noColor = os.Getenv("NO_COLOR") != ""

func paint(color, s string) string {
	if noColor {
		return s
	}
	return color + s + reset
}

func stamp() string {
	return time.Now().Format("15:04:05")
}

func line(color, level, tag, msg string) {
	fmt.Printf("%s %s %s %s\n",
		paint(dim, stamp()),
		paint(color, fmt.Sprintf("%-5s", level)),
		paint(bold, fmt.Sprintf("[%s]", tag)),
		msg)
}

// Info logs a neutral progress message.
func Info(tag, msg string) {
	line(blue, "INFO", tag, msg)
}

// Success logs a completed step.
func Success(tag, msg string) {
	line(green, "OK", tag, msg)
}

// Warn logs a recoverable problem.
func Warn(tag, msg string) {
	line(yellow, "WARN", tag, msg)
}

// Error logs a failure.
func Error(tag, msg string) {
	line(red, "ERROR", tag, msg)
}

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Println(paint(cyan, strings.Repeat("=", 46)))
	fmt.Println(paint(cyan+bold, fmt.Sprintf("  craft-pricer %s", version)))
	fmt.Println(paint(cyan, strings.Repeat("=", 46)))
}

// Section prints a visual divider for a new phase of work.
func Section(name string) {
	fmt.Printf("\n%s %s\n", paint(cyan, "──"), paint(bold, name))
}

// Stats prints a single key/value metric line.
func Stats(key string, value interface{}) {
	fmt.Printf("   %s %v\n", paint(dim, key+":"), value)
}
