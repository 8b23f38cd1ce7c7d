// Package output handles result serialization and progress reporting.
package output

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Progress reports analysis status to stderr. It satisfies report.Logger.
type Progress struct {
	enabled bool
	verbose bool
	start   time.Time
	out     io.Writer
}

// NewProgress creates a Progress reporter. Set enabled=false for --quiet mode.
func NewProgress(enabled bool) *Progress {
	return &Progress{
		enabled: enabled,
		start:   time.Now(),
		out:     os.Stderr,
	}
}

// NewVerboseProgress creates a Progress reporter with debug logging enabled.
func NewVerboseProgress(enabled, verbose bool) *Progress {
	return &Progress{
		enabled: enabled || verbose, // verbose implies enabled
		verbose: verbose,
		start:   time.Now(),
		out:     os.Stderr,
	}
}

// SetOutput redirects messages, e.g. to a server log.
func (p *Progress) SetOutput(w io.Writer) {
	p.out = w
}

func (p *Progress) writer() io.Writer {
	if p.out == nil {
		return os.Stderr
	}
	return p.out
}

// Log prints a progress message to stderr if enabled.
func (p *Progress) Log(format string, args ...interface{}) {
	if p == nil || !p.enabled {
		return
	}
	elapsed := time.Since(p.start).Round(time.Millisecond)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(p.writer(), "[%s] %s\n", elapsed, msg)
}

// Debug prints a debug message to stderr if verbose is enabled.
func (p *Progress) Debug(format string, args ...interface{}) {
	if p == nil || !p.verbose {
		return
	}
	elapsed := time.Since(p.start).Round(time.Millisecond)
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(p.writer(), "[%s] DEBUG: %s\n", elapsed, msg)
}
