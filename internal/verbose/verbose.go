package verbose

import (
	"fmt"
	"io"
	"os"
)

// Noise levels. Level 0 is silent on success but verbose on error,
// level 1 adds status messages, level 2 adds trace output. Query output
// is never squelched regardless of level.
const (
	Quiet  = 0
	Status = 1
	Trace  = 2
)

// Printer writes leveled diagnostics. It is threaded explicitly into
// each component; there is no process-wide verbosity state.
type Printer struct {
	Level int
	Out   io.Writer
	Err   io.Writer
}

// New returns a Printer at the given level writing to stdout/stderr.
func New(level int) Printer {
	return Printer{Level: level, Out: os.Stdout, Err: os.Stderr}
}

func (p Printer) out() io.Writer {
	if p.Out == nil {
		return os.Stdout
	}
	return p.Out
}

func (p Printer) errw() io.Writer {
	if p.Err == nil {
		return os.Stderr
	}
	return p.Err
}

// Printf writes unconditionally to Out. Used for query results.
func (p Printer) Printf(format string, a ...any) {
	fmt.Fprintf(p.out(), format, a...)
}

// Statusf writes to Out at level >= 1.
func (p Printer) Statusf(format string, a ...any) {
	if p.Level >= Status {
		fmt.Fprintf(p.out(), format, a...)
	}
}

// Tracef writes to Out at level >= 2.
func (p Printer) Tracef(format string, a ...any) {
	if p.Level >= Trace {
		fmt.Fprintf(p.out(), format, a...)
	}
}

// Errorf writes unconditionally to Err.
func (p Printer) Errorf(format string, a ...any) {
	fmt.Fprintf(p.errw(), format, a...)
}
