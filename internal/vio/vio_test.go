package vio

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/powervm-tools/hvcsadmin/internal/config"
	"github.com/powervm-tools/hvcsadmin/internal/verbose"
)

// fakeSystem serves canned systool output and an in-memory /dev listing.
type fakeSystem struct {
	toolOutput string
	toolErr    error
	devEntries []string
	havePath   map[string]bool
}

func (f *fakeSystem) RunTool(name string, args ...string) ([]byte, error) {
	if f.toolErr != nil {
		return nil, f.toolErr
	}
	return []byte(f.toolOutput), nil
}

func (f *fakeSystem) ReadAttr(path string) (string, error) { return "", os.ErrNotExist }
func (f *fakeSystem) WriteAttr(path, value string) error   { return os.ErrPermission }
func (f *fakeSystem) Exists(path string) bool              { return f.havePath[path] }
func (f *fakeSystem) ReadDir(path string) ([]string, error) {
	return f.devEntries, nil
}
func (f *fakeSystem) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func testTool(sys *fakeSystem) *Tool {
	cfg := config.Default()
	return NewTool(cfg, sys, verbose.Printer{Out: &strings.Builder{}, Err: &strings.Builder{}})
}

const sampleDump = `  Driver = "ibmvscsi"
  Driver path = "/sys/bus/vio/drivers/ibmvscsi"
  Device = "2000"
  Device path = "/sys/devices/vio/2000"
    index               = "0"
  Driver = "hvcs"
  Driver path = "/sys/bus/vio/drivers/hvcs"
  Device = "30000005"
  Device path = "/sys/devices/vio/30000005"
    current_vty         = "U9406.520.100048A-V15-C0"
    index               = "0"
    vterm_state         = "1"
  Driver = "hvcs"
  Driver path = "/sys/bus/vio/drivers/hvcs"
  Device = "30000006"
  Device path = "/sys/devices/vio/30000006"
    current_vty         = "U9406.520.100048A-V16-C1"
    index               = "1"
    vterm_state         = "0"
`

func TestParseLocationCode(t *testing.T) {
	tests := []struct {
		input     string
		ok        bool
		machine   string
		partition int
		slot      int
	}{
		{"U9406.520.100048A-V15-C0", true, "U9406.520.100048A", 15, 0},
		{"9406.520.100048A-V15-C0", true, "9406.520.100048A", 15, 0},
		{"U9406.520.100048A-V2-C11", true, "U9406.520.100048A", 2, 11},
		{"U9406.520.100048A-V15", false, "", 0, 0},
		{"U9406.520-V15-C0", false, "", 0, 0},
		{"", false, "", 0, 0},
		{"garbage", false, "", 0, 0},
	}
	for _, tt := range tests {
		clc, ok := ParseLocationCode(tt.input)
		if ok != tt.ok {
			t.Errorf("ParseLocationCode(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		if clc.Machine != tt.machine || clc.Partition != tt.partition || clc.Slot != tt.slot {
			t.Errorf("ParseLocationCode(%q) = %+v, want %s/%d/%d",
				tt.input, clc, tt.machine, tt.partition, tt.slot)
		}
	}
}

func TestDevicePathByIndex(t *testing.T) {
	tool := testTool(&fakeSystem{toolOutput: sampleDump})

	path, err := tool.DevicePathByIndex("1")
	if err != nil {
		t.Fatalf("DevicePathByIndex: %v", err)
	}
	if path != "/sys/devices/vio/30000006" {
		t.Errorf("path = %q", path)
	}

	// Index "0" appears under both drivers; only the hvcs block counts.
	path, err = tool.DevicePathByIndex("0")
	if err != nil {
		t.Fatalf("DevicePathByIndex: %v", err)
	}
	if path != "/sys/devices/vio/30000005" {
		t.Errorf("path = %q", path)
	}
}

func TestDevicePathByIndexNotFound(t *testing.T) {
	tool := testTool(&fakeSystem{toolOutput: sampleDump})
	path, err := tool.DevicePathByIndex("9")
	if err != nil {
		t.Fatalf("DevicePathByIndex: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
}

func TestDevicePathByIndexExactStringMatch(t *testing.T) {
	// "01" in sysfs must not resolve a query for "1" and vice versa.
	dump := strings.ReplaceAll(sampleDump, `index               = "1"`, `index               = "01"`)
	tool := testTool(&fakeSystem{toolOutput: dump})
	path, err := tool.DevicePathByIndex("1")
	if err != nil {
		t.Fatalf("DevicePathByIndex: %v", err)
	}
	if path != "" {
		t.Errorf("leading-zero index resolved to %q", path)
	}
}

func TestDevicePathByPartition(t *testing.T) {
	tool := testTool(&fakeSystem{toolOutput: sampleDump})

	path, err := tool.DevicePathByPartition("15")
	if err != nil {
		t.Fatalf("DevicePathByPartition: %v", err)
	}
	if path != "/sys/devices/vio/30000005" {
		t.Errorf("path = %q", path)
	}

	// Partition 16 exists but only at slot 1; slot 0 is the console.
	path, err = tool.DevicePathByPartition("16")
	if err != nil {
		t.Fatalf("DevicePathByPartition: %v", err)
	}
	if path != "" {
		t.Errorf("non-console adapter resolved to %q", path)
	}
}

func TestDevicePathByPartitionFirstMatchWins(t *testing.T) {
	dup := sampleDump + `  Driver = "hvcs"
  Device = "30000007"
  Device path = "/sys/devices/vio/30000007"
    current_vty         = "U9406.520.100048A-V15-C0"
`
	tool := testTool(&fakeSystem{toolOutput: dup})
	path, err := tool.DevicePathByPartition("15")
	if err != nil {
		t.Fatalf("DevicePathByPartition: %v", err)
	}
	if path != "/sys/devices/vio/30000005" {
		t.Errorf("path = %q, want first match in scan order", path)
	}
}

func TestDevicePathByPartitionExactStringMatch(t *testing.T) {
	// The digits in the location code are compared as text, so a
	// leading-zero or non-numeric target matches nothing rather than
	// resolving or failing.
	tool := testTool(&fakeSystem{toolOutput: sampleDump})
	for _, target := range []string{"015", "fifteen", ""} {
		path, err := tool.DevicePathByPartition(target)
		if err != nil {
			t.Fatalf("DevicePathByPartition(%q): %v", target, err)
		}
		if path != "" {
			t.Errorf("DevicePathByPartition(%q) = %q, want not found", target, path)
		}
	}
}

func TestDriverPath(t *testing.T) {
	tool := testTool(&fakeSystem{toolOutput: sampleDump})
	path, err := tool.DriverPath()
	if err != nil {
		t.Fatalf("DriverPath: %v", err)
	}
	if path != "/sys/bus/vio/drivers/hvcs" {
		t.Errorf("path = %q", path)
	}
}

func TestDriverPathNotLoaded(t *testing.T) {
	dump := strings.ReplaceAll(sampleDump, `"hvcs"`, `"other"`)
	tool := testTool(&fakeSystem{toolOutput: dump})
	path, err := tool.DriverPath()
	if err != nil {
		t.Fatalf("DriverPath: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
}

func TestConnected(t *testing.T) {
	tool := testTool(&fakeSystem{toolOutput: sampleDump})
	devices, err := tool.Connected()
	if err != nil {
		t.Fatalf("Connected: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d connected devices, want 1", len(devices))
	}
	if devices[0].Name != "30000005" || devices[0].Path != "/sys/devices/vio/30000005" {
		t.Errorf("device = %+v", devices[0])
	}
}

func TestConnectedToolFailure(t *testing.T) {
	tool := testTool(&fakeSystem{toolErr: errors.New("systool: exit status 1")})
	if _, err := tool.Connected(); err == nil {
		t.Error("expected error when systool fails")
	}
}

func TestNodeIndices(t *testing.T) {
	tool := testTool(&fakeSystem{
		devEntries: []string{"hvc0", "hvcs0", "hvcs1", "hvcs12", "hvcsX", "tty0"},
	})
	indices, err := tool.NodeIndices()
	if err != nil {
		t.Fatalf("NodeIndices: %v", err)
	}
	want := []string{"0", "1", "12"}
	if len(indices) != len(want) {
		t.Fatalf("indices = %v, want %v", indices, want)
	}
	for i := range want {
		if indices[i] != want[i] {
			t.Errorf("indices[%d] = %q, want %q", i, indices[i], want[i])
		}
	}
}
