// Package systool parses the block-oriented text dump produced by
// 'systool -b <bus> -D [-A <attr>] -p'. The dump is a loose mix of many
// subsystems' attributes; only the line shapes below are recognized and
// everything else is skipped.
package systool

import (
	"bufio"
	"io"
	"regexp"
)

// Block is one device stanza from the dump. A stanza opens on a
// Driver = "..." line and runs until the next one or end of input.
type Block struct {
	Driver     string
	DriverPath string
	Device     string
	DevicePath string
	Attrs      map[string]string
}

// Attr returns the named attribute value, or "" when absent.
func (b *Block) Attr(name string) string {
	return b.Attrs[name]
}

var (
	driverRe     = regexp.MustCompile(`^\s*Driver = "(.*)"\s*$`)
	driverPathRe = regexp.MustCompile(`^\s*Driver path = "(.*)"\s*$`)
	deviceRe     = regexp.MustCompile(`^\s*Device = "(.*)"\s*$`)
	devicePathRe = regexp.MustCompile(`^\s*Device path = "(.*)"\s*$`)
	attrRe       = regexp.MustCompile(`^\s*(index|current_vty|vterm_state)\s*= "(.*)"\s*$`)
)

// Scanner streams blocks out of a dump. Only the block under construction
// is held in memory, so arbitrarily large dumps are fine.
type Scanner struct {
	lines *bufio.Scanner
	cur   *Block
	block *Block
	err   error
	done  bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Scanner{lines: lines}
}

// Scan advances to the next complete block. A block completes when the
// following Driver line is seen or the input ends. Attribute lines seen
// before any Driver line attach to nothing and are dropped.
func (s *Scanner) Scan() bool {
	if s.done {
		return false
	}
	for s.lines.Scan() {
		line := s.lines.Text()
		if m := driverRe.FindStringSubmatch(line); m != nil {
			opened := &Block{Driver: m[1], Attrs: make(map[string]string)}
			if s.cur != nil {
				s.block, s.cur = s.cur, opened
				return true
			}
			s.cur = opened
			continue
		}
		if s.cur == nil {
			continue
		}
		if m := driverPathRe.FindStringSubmatch(line); m != nil {
			s.cur.DriverPath = m[1]
		} else if m := devicePathRe.FindStringSubmatch(line); m != nil {
			s.cur.DevicePath = m[1]
		} else if m := deviceRe.FindStringSubmatch(line); m != nil {
			s.cur.Device = m[1]
		} else if m := attrRe.FindStringSubmatch(line); m != nil {
			s.cur.Attrs[m[1]] = m[2]
		}
		// Unrecognized lines are skipped, never an error.
	}
	s.done = true
	if err := s.lines.Err(); err != nil {
		s.err = err
		return false
	}
	if s.cur != nil {
		s.block, s.cur = s.cur, nil
		return true
	}
	return false
}

// Block returns the block produced by the last successful Scan.
func (s *Scanner) Block() *Block {
	return s.block
}

// Err returns the first error encountered while reading the input.
func (s *Scanner) Err() error {
	return s.err
}

// Walk streams blocks from r into visit until visit returns false or the
// input is exhausted.
func Walk(r io.Reader, visit func(*Block) bool) error {
	s := NewScanner(r)
	for s.Scan() {
		if !visit(s.Block()) {
			return nil
		}
	}
	return s.Err()
}
