// Package logger provides verbose logging for the docqa CLI.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to help users follow the ingestion and answer pipelines.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu      sync.RWMutex
	writeMu sync.Mutex
	verbose bool
	output  io.Writer = os.Stderr
	colour            = isColourTerminal(os.Stderr)

	debugTag = color.New(color.FgHiBlack)
	infoTag  = color.New(color.FgCyan)
	warnTag  = color.New(color.FgYellow)
	errorTag = color.New(color.FgRed, color.Bold)
	section  = color.New(color.FgMagenta, color.Bold)
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for verbose logs.
// Defaults to os.Stderr. Useful for testing.
// Colour is only used when w is a terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	colour = isColourTerminal(w)
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	write(true, debugTag, "[DEBUG]", format, args...)
}

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		writeMu.Lock()
		fmt.Fprintf(output, "\n%s\n", tag(section, "=== "+name+" ==="))
		writeMu.Unlock()
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	write(true, infoTag, "[INFO]", format, args...)
}

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) {
	write(true, warnTag, "[WARN]", format, args...)
}

// Error prints an error message regardless of verbose mode.
// Used for failures in background work that has no caller to return to.
func Error(format string, args ...any) {
	write(false, errorTag, "[ERROR]", format, args...)
}

// write formats one line. Concurrent callers share the reader lock, so
// writes to the output are serialised separately.
func write(verboseOnly bool, c *color.Color, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verboseOnly && !verbose {
		return
	}
	line := tag(c, prefix) + " " + fmt.Sprintf(format, args...) + "\n"
	writeMu.Lock()
	defer writeMu.Unlock()
	io.WriteString(output, line) //nolint:errcheck
}

// tag renders s in c when colour output is enabled (caller must hold lock).
func tag(c *color.Color, s string) string {
	if !colour {
		return s
	}
	return c.Sprint(s)
}

func isColourTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	return f == os.Stderr || f == os.Stdout
}
