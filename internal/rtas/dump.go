// Package rtas re-frames RTAS events out of a line-oriented log stream
// and hands each one to the external rtas_event_decode binary. It builds
// no model of the events; framing is the whole job.
package rtas

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Options configures decoding. All flags are passed through to the
// decoder untouched.
type Options struct {
	Debug   bool   // decoder -d
	Verbose int    // decoder -v, repeated
	Width   int    // decoder -w <n>, 0 means unset
	EventNo int    // only dump this event number, <0 means all
	Decoder string // rtas_event_decode path
}

// CheckDecoder verifies the decoder binary exists and is executable.
// This is a fatal precondition for any dump.
func CheckDecoder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file %s does not exist and is needed by rtasdump", path)
	}
	if info.Mode()&0111 == 0 {
		return fmt.Errorf("file %s is not executable", path)
	}
	return nil
}

// ReadEvents scans r for framed RTAS events and passes each to visit.
// An event starts at a line containing "RTAS event begin", carries the
// event number after the "RTAS:" tag, and runs through the line
// containing "RTAS event end". Any prefix a logger prepended before the
// RTAS tag is trimmed per line; lines without the tag pass unchanged.
func ReadEvents(r io.Reader, visit func(no int, body string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.Contains(line, "RTAS event begin") {
			continue
		}
		_, data, ok := strings.Cut(line, "RTAS:")
		if !ok {
			continue
		}
		fields := strings.Fields(data)
		if len(fields) == 0 {
			continue
		}
		no, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		var body strings.Builder
		body.WriteString("RTAS:")
		body.WriteString(data)
		body.WriteByte('\n')
		for sc.Scan() {
			l := sc.Text()
			if idx := strings.Index(l, "RTAS"); idx >= 0 {
				body.WriteString(l[idx:])
			} else {
				body.WriteString(l)
			}
			body.WriteByte('\n')
			if strings.Contains(l, "RTAS event end") {
				break
			}
		}
		if err := visit(no, body.String()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Dump streams r through the decoder, one invocation per event. The
// decoder writes directly to stdout/stderr.
func Dump(r io.Reader, stdout, stderr io.Writer, opts Options) error {
	if err := CheckDecoder(opts.Decoder); err != nil {
		return err
	}

	var base []string
	if opts.Debug {
		base = append(base, "-d")
	}
	for i := 0; i < opts.Verbose; i++ {
		base = append(base, "-v")
	}
	if opts.Width > 0 {
		base = append(base, "-w", strconv.Itoa(opts.Width))
	}

	return ReadEvents(r, func(no int, body string) error {
		if opts.EventNo >= 0 && no != opts.EventNo {
			return nil
		}
		args := append(append([]string{}, base...), "-n", strconv.Itoa(no))
		cmd := exec.Command(opts.Decoder, args...)
		cmd.Stdin = strings.NewReader(body)
		cmd.Stdout = stdout
		cmd.Stderr = stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%s: %w", opts.Decoder, err)
		}
		return nil
	})
}
