// Package log provides logging utilities including colored console output
// and datagram recording.
package log

import (
	"io"
	"os"

	"github.com/fatih/color"
)

var red = color.New(color.FgRed).FprintfFunc()
var blue = color.New(color.FgBlue).FprintfFunc()
var faint = color.New(color.Faint).FprintfFunc()

// ErrorMsg prints an error message to stderr in red color.
func ErrorMsg(format string, a ...interface{}) {
	red(os.Stderr, "[!] Error: "+format, a...)
}

// InfoMsg prints an informational message to stderr in blue color.
func InfoMsg(format string, a ...interface{}) {
	blue(os.Stderr, "[+] "+format, a...)
}

// Logger writes colored messages to an output stream. Verbose messages are
// only printed if the logger was created in verbose mode.
// A nil *Logger discards everything.
type Logger struct {
	out     io.Writer
	verbose bool
}

// NewLogger creates a Logger writing to out. If out is nil, stderr is used.
func NewLogger(out io.Writer, verbose bool) *Logger {
	if out == nil {
		out = os.Stderr
	}
	return &Logger{out: out, verbose: verbose}
}

// Verbose reports whether verbose messages are printed.
func (l *Logger) Verbose() bool {
	return l != nil && l.verbose
}

// ErrorMsg prints an error message in red color.
func (l *Logger) ErrorMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	red(l.out, "[!] Error: "+format+"\n", a...)
}

// InfoMsg prints an informational message in blue color.
func (l *Logger) InfoMsg(format string, a ...interface{}) {
	if l == nil {
		return
	}
	blue(l.out, "[+] "+format+"\n", a...)
}

// VerboseMsg prints a debug message if the logger is verbose.
func (l *Logger) VerboseMsg(format string, a ...interface{}) {
	if !l.Verbose() {
		return
	}
	faint(l.out, "[v] "+format+"\n", a...)
}
