package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Logger writes leveled, human-readable messages to stderr.
// Debug output is suppressed unless enabled; colors can be turned
// off for non-TTY consumers.
type Logger struct {
	out     io.Writer
	debug   bool
	noColor bool
}

// New creates a logger writing to stderr.
func New(debug, noColor bool) *Logger {
	return &Logger{out: os.Stderr, debug: debug, noColor: noColor}
}

// NewWithWriter creates a logger writing to w. Used by tests to capture output.
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	return &Logger{out: w, debug: debug, noColor: noColor}
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("32", "✓", format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.emit("33", "⚠", format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("31", "✗", format, args...)
}

// Debug logs a debug message if debug mode is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.emit("36", "[DEBUG]", format, args...)
}

func (l *Logger) emit(color, marker, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.noColor {
		fmt.Fprintf(l.out, "%s %s\n", marker, msg)
		return
	}
	fmt.Fprintf(l.out, "\033[%sm%s\033[0m %s\n", color, marker, msg)
}

// Secret is a string whose formatted representation is always redacted.
// Wrap any credential material before handing it to a log call.
type Secret string

// String implements fmt.Stringer, returning a redacted value.
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements fmt.GoStringer for %#v formatting.
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces occurrences of the given secret values in s with a
// redaction marker. Values of three characters or fewer are skipped to
// avoid mangling unrelated text.
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if len(secret) > 3 {
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}

// Mask shortens a sensitive value for display, keeping only the first and
// last three characters of values long enough to stay unguessable.
func Mask(value string) string {
	if len(value) <= 8 {
		return "***"
	}
	return value[:3] + "***" + value[len(value)-3:]
}
