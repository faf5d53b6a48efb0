// Package snap captures a diagnostic snapshot of system configuration:
// a fixed manifest of files and command outputs staged into a directory
// and packed into a tar archive for support.
package snap

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/powervm-tools/hvcsadmin/internal/sysfs"
	"github.com/powervm-tools/hvcsadmin/internal/verbose"
)

// Options controls what gets collected and where it lands.
type Options struct {
	All       bool   // collect the detailed manifest too
	Dir       string // staging directory
	Output    string // archive filename, .tar or .tar.gz
	Timestamp bool   // append hostname and timestamp to the output name
}

const commandDir = "snap_commands"

// Files collected in every snapshot.
var generalPaths = []string{
	"/var/log/messages",
	"/var/log/platform",
	"/var/log/scanoutlog.*",
	"/proc/cmdline",
	"/proc/cpuinfo",
	"/proc/devices",
	"/proc/dma",
	"/proc/filesystems",
	"/proc/interrupts",
	"/proc/iomem",
	"/proc/ioports",
	"/proc/loadavg",
	"/proc/locks",
	"/proc/mdstat",
	"/proc/meminfo",
	"/proc/misc",
	"/proc/modules",
	"/proc/mounts",
	"/proc/partitions",
	"/proc/ppc64/lparcfg",
	"/proc/ppc64/eeh",
	"/proc/ppc64/systemcfg",
	"/proc/slabinfo",
	"/proc/stat",
	"/proc/swaps",
	"/proc/uptime",
	"/proc/version",
	"/etc/fstab",
	"/etc/yaboot.conf",
}

var redhatPaths = []string{
	"/etc/redhat-release",
	"/var/log/dmesg",
}

var susePaths = []string{
	"/etc/SuSE-release",
	"/var/log/boot.msg",
}

// Files collected only with the -a option.
var detailedPaths = []string{
	"/proc/tty",
	"/etc/inittab",
	"/proc/ppc64/",
	"/proc/device-tree/",
}

// Command output captured in every snapshot.
var generalCommands = []string{
	"lscfg -vp",
	"ifconfig -a",
	"lspci -vvv",
}

// Command output captured only with the -a option.
var detailedCommands = []string{
	"rpm -qa",
	"servicelog --dump",
	"lparstat -i",
	"lsmcode -A",
	"lsvpd --debug",
	"lsvio -des",
	"ppc64_cpu --smt --cores-present --cores-on --run-mode --frequency --dscr",
}

// Sysfs attributes that no longer exist on current kernels and whose
// reads would only produce noise.
var deprecatedNames = []string{
	"retrans_time",
	"base_reachable_time",
}

// Run stages the manifest under opts.Dir and archives it. Per-item
// collection failures are warnings; only archiving failures are fatal.
// Returns the archive path.
func Run(sys sysfs.System, opts Options, log verbose.Printer) (string, error) {
	paths := append([]string{}, generalPaths...)
	if sys.Exists("/etc/SuSE-release") {
		paths = append(paths, susePaths...)
	}
	if sys.Exists("/etc/redhat-release") {
		paths = append(paths, redhatPaths...)
	}
	if opts.All {
		paths = append(paths, detailedPaths...)
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create directory %s: %w", opts.Dir, err)
	}

	for _, path := range paths {
		if err := copyPath(path, opts.Dir); err != nil {
			log.Statusf("snap: %v\n", err)
		}
	}

	commands := append([]string{}, generalCommands...)
	if opts.All {
		commands = append(commands, detailedCommands...)
	}
	captureCommands(sys, commands, filepath.Join(opts.Dir, commandDir), log)

	output := outputName(opts)
	if err := archive(opts.Dir, output); err != nil {
		return "", fmt.Errorf("archiving %s: %w", opts.Dir, err)
	}
	return output, nil
}

// outputName derives the archive filename, optionally tagging it with
// hostname and timestamp before the extension.
func outputName(opts Options) string {
	name := opts.Output
	if !opts.Timestamp {
		return name
	}
	ext := ""
	for _, e := range []string{".tar.gz", ".tar"} {
		if strings.HasSuffix(name, e) {
			ext = e
			name = strings.TrimSuffix(name, e)
			break
		}
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%s-%s%s", name, host, time.Now().Format("20060102150405"), ext)
}

// copyPath stages one manifest entry: a directory tree, a wildcard-tail
// pattern, or a single file. The source path is mirrored under outdir.
func copyPath(path, outdir string) error {
	if info, err := os.Lstat(path); err == nil && info.IsDir() {
		return copyTree(path, outdir)
	}
	if strings.HasSuffix(path, "*") {
		dir, prefix := filepath.Split(strings.TrimSuffix(path, "*"))
		names, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("could not open directory %s: %w", dir, err)
		}
		for _, entry := range names {
			if strings.HasPrefix(entry.Name(), prefix) && !entry.IsDir() {
				src := filepath.Join(dir, entry.Name())
				if err := copyFile(src, filepath.Join(outdir, src)); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return copyFile(path, filepath.Join(outdir, path))
}

// copyTree mirrors a directory, skipping symlinks and deprecated names.
func copyTree(dir, outdir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are expected under /proc; move on.
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		for _, depr := range deprecatedNames {
			if strings.Contains(d.Name(), depr) {
				return nil
			}
		}
		return copyFile(path, filepath.Join(outdir, path))
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("cannot open file for reading: %s", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("cannot create directory: %s", filepath.Dir(dst))
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("cannot open file for writing: %s", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("error while copying %s: %v", src, err)
	}
	return nil
}

// captureCommands runs each manifest command and stages its output as
// <outdir>/<command>.out with spaces and slashes flattened.
func captureCommands(sys sysfs.System, commands []string, outdir string, log verbose.Printer) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		log.Statusf("snap: cannot create directory: %s\n", outdir)
		return
	}
	for _, command := range commands {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			continue
		}
		out, err := sys.RunTool(fields[0], fields[1:]...)
		if err != nil {
			log.Statusf("snap: %v\n", err)
			continue
		}
		name := commandFileName(command)
		if err := os.WriteFile(filepath.Join(outdir, name), out, 0644); err != nil {
			log.Statusf("snap: cannot write %s: %v\n", name, err)
		}
	}
}

func commandFileName(command string) string {
	name := strings.NewReplacer(" ", "_", "/", "_").Replace(command)
	return name + ".out"
}

// archive packs the staging directory into a tar archive, gzipped unless
// the name ends in plain .tar. Entry names are relative to the staging
// directory.
func archive(dir, output string) error {
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	var w io.Writer = f
	if !strings.HasSuffix(output, ".tar") {
		gz := gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	tw := tar.NewWriter(w)
	defer tw.Close()

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(tw, in)
		return err
	})
}
