// Package hvcs administers vty-server adapter connections: targeted and
// bulk disconnects, driver rescan, and status reporting. The sysfs
// pseudo-filesystem is the source of truth for connection state; this
// package observes and mutates it but owns nothing.
package hvcs

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/powervm-tools/hvcsadmin/internal/config"
	"github.com/powervm-tools/hvcsadmin/internal/db"
	"github.com/powervm-tools/hvcsadmin/internal/sysfs"
	"github.com/powervm-tools/hvcsadmin/internal/verbose"
	"github.com/powervm-tools/hvcsadmin/internal/vio"
)

// Adapter ids are the trailing hex-like suffix of the sysfs device path,
// e.g. /sys/devices/vio/30000005 -> 30000005.
var adapterIDRe = regexp.MustCompile(`(3[0-9a-fA-F]+)$`)

func adapterID(path string) string {
	if m := adapterIDRe.FindStringSubmatch(path); m != nil {
		return m[1]
	}
	return ""
}

// Admin performs vty-server adapter operations against the live system.
type Admin struct {
	cfg     *config.Config
	sys     sysfs.System
	tool    *vio.Tool
	log     verbose.Printer
	journal *db.DB // nil when the journal could not be opened
}

func New(cfg *config.Config, sys sysfs.System, log verbose.Printer, journal *db.DB) *Admin {
	return &Admin{
		cfg:     cfg,
		sys:     sys,
		tool:    vio.NewTool(cfg, sys, log),
		log:     log,
		journal: journal,
	}
}

// CheckSystool verifies the introspection tool precondition.
func (a *Admin) CheckSystool() error {
	return a.tool.CheckInstalled()
}

// CheckDriver verifies the driver has a sysfs presence. Reported once as
// a precondition, not per query.
func (a *Admin) CheckDriver() error {
	path, err := a.tool.DriverPath()
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%s is not loaded: %w", a.cfg.Driver, ErrNotFound)
	}
	return nil
}

// parseNode splits a user-supplied device node (e.g. /dev/hvcs2 or hvcs2)
// into its name and index, enforcing the configured node prefix and the
// no-leading-zero index invariant before any I/O happens.
func (a *Admin) parseNode(node string) (name, index string, err error) {
	nodeRe := regexp.MustCompile(`(?:^|/)(` + regexp.QuoteMeta(a.cfg.Node) + `)([0-9]+)$`)
	m := nodeRe.FindStringSubmatch(node)
	if m == nil {
		return "", "", fmt.Errorf("%s is an invalid device node name: %w", node, ErrInvalidNode)
	}
	name, index = m[1], m[2]
	// "0" is a valid index, "01" is not.
	if len(index) > 1 && index[0] == '0' {
		return "", "", fmt.Errorf("%q is an invalid device node number: %w", index, ErrInvalidNode)
	}
	a.log.Tracef("%s is a valid device node index\n", index)
	return name, index, nil
}

// findDevEntry checks the /dev entry exists. A missing entry can mean
// udev is managing /dev and the driver has not been inserted yet.
func (a *Admin) findDevEntry(name, index string) (string, error) {
	devNode := filepath.Join(a.cfg.DevDir, name+index)
	a.log.Tracef("is %s in %s? ...\n", devNode, a.cfg.DevDir)
	if !a.sys.Exists(devNode) {
		return "", fmt.Errorf("%s not found in %s: %w", devNode, a.cfg.DevDir, ErrNotFound)
	}
	return devNode, nil
}

// Close disconnects the vty-server adapter mapped to the given device
// node. Already-disconnected adapters are a success no-op. The control
// write is verified by a single read-back; a mismatch means the driver or
// hardware rejected the transition and there is no retry.
func (a *Admin) Close(node string) error {
	name, index, err := a.parseNode(node)
	if err != nil {
		return err
	}
	devNode, err := a.findDevEntry(name, index)
	if err != nil {
		return err
	}

	path, err := a.tool.DevicePathByIndex(index)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("%s does not map to a vty-server adapter: %w", devNode, ErrNotFound)
	}
	a.log.Tracef("vty-server adapter %s maps to %s\n", path, devNode)

	statePath := filepath.Join(path, "vterm_state")
	if !a.sys.Exists(statePath) {
		return fmt.Errorf("%s: %w", statePath, ErrMissingAttribute)
	}

	state, err := a.sys.ReadAttr(statePath)
	if err != nil {
		return err
	}
	if state == "0" {
		a.log.Statusf("vty-server adapter %s is already disconnected\n", path)
		a.record("close", "vty-server@"+adapterID(path), path, db.OutcomeNoop, "already disconnected")
		return nil
	}

	a.log.Tracef("preparing to terminate vty-server connection at %s\n", path)
	if err := a.sys.WriteAttr(statePath, "0"); err != nil {
		a.record("close", "vty-server@"+adapterID(path), path, db.OutcomeFailed, err.Error())
		return fmt.Errorf("writing %s: %w", statePath, err)
	}

	state, err = a.sys.ReadAttr(statePath)
	if err != nil {
		return err
	}
	if state != "0" {
		a.record("close", "vty-server@"+adapterID(path), path, db.OutcomeFailed, "vterm_state read back "+state)
		return fmt.Errorf("vty-server adapter %s disconnection failed, check dmesg for further information: %w",
			path, ErrVerifyFailed)
	}

	id := adapterID(path)
	a.log.Statusf("%s is mapped to vty-server@%s\n", devNode, id)
	a.log.Statusf("closed vty-server@%s partner adapter connection\n", id)
	a.record("close", "vty-server@"+id, path, db.OutcomeOK, "")
	return nil
}

// CloseResult is the per-adapter outcome of a bulk close.
type CloseResult struct {
	Device string
	Path   string
	Err    error
}

// CloseAll disconnects every connected adapter of the configured driver.
// Each write is best-effort: a failure on one adapter (commonly an
// application holding the device node open) does not abort the sweep,
// and there is no per-adapter read-back.
func (a *Admin) CloseAll() ([]CloseResult, error) {
	devices, err := a.tool.Connected()
	if err != nil {
		return nil, err
	}

	results := make([]CloseResult, 0, len(devices))
	for _, d := range devices {
		werr := a.sys.WriteAttr(filepath.Join(d.Path, "vterm_state"), "0")
		if werr == nil {
			a.log.Statusf("closed vty-server@%s partner adapter connection\n", d.Name)
			a.record("close-all", "vty-server@"+d.Name, d.Path, db.OutcomeOK, "")
		} else {
			a.record("close-all", "vty-server@"+d.Name, d.Path, db.OutcomeFailed, werr.Error())
		}
		results = append(results, CloseResult{Device: d.Name, Path: d.Path, Err: werr})
	}
	return results, nil
}

// Rescan directs the driver to refresh partner info for all adapters by
// writing to the bus-level rescan attribute. The write is not verified.
func (a *Admin) Rescan() error {
	a.log.Tracef("initiating rescan of all vty-server adapter partners\n")
	driverPath, err := a.tool.DriverPath()
	if err != nil {
		return err
	}
	if driverPath == "" {
		return fmt.Errorf("%s sysfs entry or %s rescan attribute not found: %w",
			a.cfg.Driver, a.cfg.Driver, ErrNotFound)
	}

	rescanPath := filepath.Join(driverPath, "rescan")
	if err := a.sys.WriteAttr(rescanPath, "1"); err != nil {
		a.record("rescan", "", driverPath, db.OutcomeFailed, err.Error())
		return fmt.Errorf("writing %s: %w", rescanPath, err)
	}
	a.log.Statusf("%s driver rescan executed\n", a.cfg.Driver)
	a.record("rescan", "", driverPath, db.OutcomeOK, "")
	return nil
}

// QueryNode reports status for the adapter mapped to a device node. An
// unmapped node is informational, not an error.
func (a *Admin) QueryNode(node string) error {
	name, index, err := a.parseNode(node)
	if err != nil {
		return err
	}
	if _, err := a.findDevEntry(name, index); err != nil {
		return err
	}
	path, err := a.tool.DevicePathByIndex(index)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	return a.displayByPath(path)
}

// QueryConsole reports which device node provides the console for a
// partition. Only slot-0 adapters are consoles. No console is
// informational, not an error.
func (a *Admin) QueryConsole(partition string) error {
	path, err := a.tool.DevicePathByPartition(partition)
	if err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	return a.displayByPath(path)
}

// Status prints one line per vty-server adapter found behind a
// /dev/<node><N> entry. Device nodes with no adapter mapping are skipped.
func (a *Admin) Status() error {
	a.log.Tracef("gathering status for all vty-server adapters\n")
	a.log.Tracef("some device nodes won't be mapped to vty-server adapters\n")

	indices, err := a.tool.NodeIndices()
	if err != nil {
		return err
	}

	count := 0
	for _, index := range indices {
		path, err := a.tool.DevicePathByIndex(index)
		if err != nil {
			return err
		}
		if path == "" {
			continue
		}
		if err := a.displayByPath(path); err != nil {
			return err
		}
		count++
	}
	if count == 0 {
		a.log.Printf("no %s adapters found\n", a.cfg.Driver)
	}
	return nil
}

// displayByPath renders one status line for a resolved adapter. The three
// attribute files must exist; an adapter missing any of them is
// structurally invalid for this driver. A malformed location code only
// blanks the partition/slot fields.
func (a *Admin) displayByPath(path string) error {
	a.log.Tracef("displaying status information for %s\n", path)

	for _, attr := range []string{"current_vty", "index", "vterm_state"} {
		p := filepath.Join(path, attr)
		if !a.sys.Exists(p) {
			return fmt.Errorf("%s: %w", p, ErrMissingAttribute)
		}
	}

	currentVty, err := a.sys.ReadAttr(filepath.Join(path, "current_vty"))
	if err != nil {
		return err
	}
	vtermState, err := a.sys.ReadAttr(filepath.Join(path, "vterm_state"))
	if err != nil {
		return err
	}
	index, err := a.sys.ReadAttr(filepath.Join(path, "index"))
	if err != nil {
		return err
	}

	partition, slot := "", ""
	if clc, ok := vio.ParseLocationCode(currentVty); ok {
		partition = strconv.Itoa(clc.Partition)
		slot = strconv.Itoa(clc.Slot)
	}

	a.log.Printf("vty-server@%s partition:%s slot:%s /dev/%s%s vterm-state:%s\n",
		adapterID(path), partition, slot, a.cfg.Node, index, vtermState)
	return nil
}

func (a *Admin) record(operation, device, path, outcome, detail string) {
	if a.journal == nil {
		return
	}
	if err := a.journal.RecordEvent(operation, device, path, outcome, detail); err != nil {
		a.log.Tracef("journal: %v\n", err)
	}
}
