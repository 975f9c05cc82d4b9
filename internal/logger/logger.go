package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

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

// colorEnabled reports whether stdout is an interactive terminal.
// Checked on every call so tests that swap os.Stdout get plain output.
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func paint(color, s string) string {
	if !colorEnabled() {
		return s
	}
	return color + s + reset
}

func line(color, symbol, tag, msg string) {
	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(os.Stdout, "%s %s %s %s\n",
		paint(dim, ts),
		paint(color, symbol),
		paint(bold, fmt.Sprintf("[%s]", tag)),
		msg,
	)
}

// Info logs a neutral progress message.
func Info(tag, msg string) { line(blue, "·", tag, msg) }

// Success logs a completed step.
func Success(tag, msg string) { line(green, "✓", tag, msg) }

// Warn logs a recoverable problem.
func Warn(tag, msg string) { line(yellow, "!", tag, msg) }

// Error logs a failure.
func Error(tag, msg string) { line(red, "✗", tag, msg) }

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	title := "galnav · interstellar route planner"
	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(os.Stdout, paint(bold+cyan, "  "+title))
	fmt.Fprintln(os.Stdout, paint(dim, "  version "+version))
	fmt.Fprintln(os.Stdout)
}

// Section prints a heading used to group Stats lines.
func Section(title string) {
	fmt.Fprintln(os.Stdout, paint(bold, "  "+title))
	fmt.Fprintln(os.Stdout, paint(dim, "  "+strings.Repeat("─", len(title))))
}

// Stats prints one aligned key/value line under a Section.
func Stats(key string, value any) {
	fmt.Fprintf(os.Stdout, "  %-20s %s\n", key, paint(cyan, fmt.Sprint(value)))
}

// Server announces the listening address.
func Server(addr string) {
	line(green, "→", "Server", "Listening on http://"+addr)
}
