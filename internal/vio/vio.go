// Package vio resolves vty-server adapters on the vio bus to their sysfs
// device paths by querying systool and scanning its block output.
package vio

import (
	"bytes"
	"errors"
	"regexp"
	"strconv"

	"github.com/powervm-tools/hvcsadmin/internal/config"
	"github.com/powervm-tools/hvcsadmin/internal/sysfs"
	"github.com/powervm-tools/hvcsadmin/internal/systool"
	"github.com/powervm-tools/hvcsadmin/internal/verbose"
)

// ErrSystoolNotInstalled indicates the introspection tool is missing
// from the PATH. Every query requires it.
var ErrSystoolNotInstalled = errors.New("systool not found in PATH")

// LocationCode identifies a virtual adapter's owning partition and slot,
// parsed from a composite string such as "U9406.520.100048A-V15-C0".
// Slot 0 adapters are partition consoles.
type LocationCode struct {
	Machine   string
	Partition int
	Slot      int
}

var clcRe = regexp.MustCompile(`(\w+\.\w+\.\w+)-V(\d+)-C(\d+)$`)

// ParseLocationCode extracts a LocationCode from s. A string that does
// not match the grammar yields ok=false, never an error.
func ParseLocationCode(s string) (LocationCode, bool) {
	m := clcRe.FindStringSubmatch(s)
	if m == nil {
		return LocationCode{}, false
	}
	partition, err := strconv.Atoi(m[2])
	if err != nil {
		return LocationCode{}, false
	}
	slot, err := strconv.Atoi(m[3])
	if err != nil {
		return LocationCode{}, false
	}
	return LocationCode{Machine: m[1], Partition: partition, Slot: slot}, true
}

// Device is one adapter found during a bulk scan.
type Device struct {
	Name string // sysfs device name, e.g. 30000005
	Path string // sysfs device path
}

// Tool queries the live vio bus through systool. Results are never
// cached; every call re-scans.
type Tool struct {
	cfg *config.Config
	sys sysfs.System
	log verbose.Printer
}

func NewTool(cfg *config.Config, sys sysfs.System, log verbose.Printer) *Tool {
	return &Tool{cfg: cfg, sys: sys, log: log}
}

// CheckInstalled verifies the systool binary is available.
func (t *Tool) CheckInstalled() error {
	t.log.Tracef("looking for %q application\n", t.cfg.Systool)
	if _, err := t.sys.LookPath(t.cfg.Systool); err != nil {
		return ErrSystoolNotInstalled
	}
	return nil
}

// scan runs systool, optionally restricted to one attribute, and streams
// the resulting blocks into visit.
func (t *Tool) scan(attr string, visit func(*systool.Block) bool) error {
	args := []string{"-b", t.cfg.Bus, "-D"}
	if attr != "" {
		args = append(args, "-A", attr)
	}
	args = append(args, "-p")
	out, err := t.sys.RunTool(t.cfg.Systool, args...)
	if err != nil {
		return err
	}
	return systool.Walk(bytes.NewReader(out), visit)
}

// DriverPath returns the sysfs path of the configured driver, or "" when
// the driver is not loaded.
func (t *Tool) DriverPath() (string, error) {
	t.log.Tracef("is %s loaded\n", t.cfg.Driver)
	var found string
	err := t.scan("", func(b *systool.Block) bool {
		if b.Driver == t.cfg.Driver && b.DriverPath != "" {
			found = b.DriverPath
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if found != "" {
		t.log.Tracef("verified that %s is loaded at %s\n", t.cfg.Driver, found)
	}
	return found, nil
}

// DevicePathByIndex returns the sysfs device path of the adapter whose
// index attribute equals target. The comparison is an exact string match
// on the numeric text, so a leading-zero mismatch does not resolve.
// Returns "" when no adapter matches.
func (t *Tool) DevicePathByIndex(target string) (string, error) {
	t.log.Tracef("fetching device path for index %s\n", target)
	var found string
	err := t.scan("index", func(b *systool.Block) bool {
		if b.Driver == t.cfg.Driver && b.Attr("index") == target && b.DevicePath != "" {
			found = b.DevicePath
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		t.log.Statusf("/dev/%s%s does not map to a vty-server adapter\n", t.cfg.Node, target)
	}
	return found, nil
}

// DevicePathByPartition returns the sysfs device path of the slot-0
// console adapter for the given partition, or "" when none exists. The
// comparison is an exact string match on the digits in the location
// code, so "015" does not resolve partition 15 and a non-numeric target
// simply matches nothing. If several adapters claim the same partition
// at slot 0 the first in scan order wins; uniqueness is the driver's
// concern, not validated here.
func (t *Tool) DevicePathByPartition(target string) (string, error) {
	t.log.Tracef("fetching device path for partition %s\n", target)
	var found string
	err := t.scan("current_vty", func(b *systool.Block) bool {
		m := clcRe.FindStringSubmatch(b.Attr("current_vty"))
		if m == nil {
			return true
		}
		if b.Driver == t.cfg.Driver && m[2] == target && m[3] == "0" && b.DevicePath != "" {
			found = b.DevicePath
			return false
		}
		return true
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		t.log.Statusf("could not find device path for partition %s\n", target)
	}
	return found, nil
}

// Connected returns every adapter of the configured driver whose
// vterm_state is "1".
func (t *Tool) Connected() ([]Device, error) {
	var devices []Device
	err := t.scan("vterm_state", func(b *systool.Block) bool {
		if b.Driver == t.cfg.Driver && b.Attr("vterm_state") == "1" && b.DevicePath != "" {
			devices = append(devices, Device{Name: b.Device, Path: b.DevicePath})
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return devices, nil
}

// NodeIndices lists the logical indices of every /dev/<node><N> entry,
// sorted by name. Entries are not checked against sysfs here; callers
// resolve each independently and skip the unmapped ones.
func (t *Tool) NodeIndices() ([]string, error) {
	nodeRe := regexp.MustCompile("^" + regexp.QuoteMeta(t.cfg.Node) + `([0-9]+)$`)
	names, err := t.sys.ReadDir(t.cfg.DevDir)
	if err != nil {
		return nil, err
	}
	var indices []string
	for _, name := range names {
		if m := nodeRe.FindStringSubmatch(name); m != nil {
			indices = append(indices, m[1])
		}
	}
	return indices, nil
}
