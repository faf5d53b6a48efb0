package sysfs

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// System is the narrow capability surface the resolve/mutate logic needs:
// run an introspection tool, read and write sysfs attribute files, probe
// paths and list directories. Keeping it this small lets the core run
// against fixture text and an in-memory filesystem in tests.
type System interface {
	// RunTool runs an external tool to completion and returns its stdout.
	// A non-zero exit is an error carrying the tool's stderr.
	RunTool(name string, args ...string) ([]byte, error)

	// ReadAttr reads a sysfs attribute file and trims surrounding whitespace.
	ReadAttr(path string) (string, error)

	// WriteAttr writes a control value to a sysfs attribute file in a
	// single unbuffered write.
	WriteAttr(path, value string) error

	// Exists reports whether the path exists.
	Exists(path string) bool

	// ReadDir lists directory entry names sorted by name.
	ReadDir(path string) ([]string, error)

	// LookPath searches PATH for an executable.
	LookPath(name string) (string, error)
}

// Host is the real System backed by the local machine.
type Host struct{}

func (Host) RunTool(name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %s: %w", name, msg, err)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

func (Host) ReadAttr(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (Host) WriteAttr(path, value string) error {
	return os.WriteFile(path, []byte(value), 0644)
}

func (Host) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (Host) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (Host) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}
