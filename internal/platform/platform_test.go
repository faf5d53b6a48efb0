package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

const pseriesCpuinfo = `processor	: 0
cpu		: POWER5 (gs)
clock		: 1656.392000MHz
revision	: 2.1 (pvr 003a 0201)

timebase	: 207652352
platform	: pSeries
machine		: CHRP IBM,9113-550
`

func TestDetectPSeriesLPAR(t *testing.T) {
	dir := t.TempDir()
	cpuinfo := writeFile(t, dir, "cpuinfo", pseriesCpuinfo)
	lparcfg := writeFile(t, dir, "lparcfg", "lparcfg 1.9\nserial_number=IBM,0210004  8A\n")

	if got := detect(cpuinfo, lparcfg); got != PSeriesLPAR {
		t.Errorf("detect = %v, want PSeriesLPAR", got)
	}
}

func TestDetectPSeriesBareMetal(t *testing.T) {
	dir := t.TempDir()
	cpuinfo := writeFile(t, dir, "cpuinfo", pseriesCpuinfo)

	if got := detect(cpuinfo, filepath.Join(dir, "no-lparcfg")); got != PSeries {
		t.Errorf("detect = %v, want PSeries", got)
	}
}

func TestDetectPowerNV(t *testing.T) {
	dir := t.TempDir()
	cpuinfo := writeFile(t, dir, "cpuinfo", "processor\t: 0\nplatform\t: PowerNV\n")

	if got := detect(cpuinfo, filepath.Join(dir, "lparcfg")); got != PowerNV {
		t.Errorf("detect = %v, want PowerNV", got)
	}
}

func TestDetectUnknown(t *testing.T) {
	dir := t.TempDir()
	cpuinfo := writeFile(t, dir, "cpuinfo", "processor\t: 0\nvendor_id\t: GenuineIntel\n")

	if got := detect(cpuinfo, filepath.Join(dir, "lparcfg")); got != Unknown {
		t.Errorf("detect = %v, want Unknown", got)
	}
	if got := detect(filepath.Join(dir, "missing"), filepath.Join(dir, "lparcfg")); got != Unknown {
		t.Errorf("detect with missing cpuinfo = %v, want Unknown", got)
	}
}

func TestCheckDistro(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	tests := []struct {
		name    string
		redhat  string
		suse    string
		issue   string
		refused bool
	}{
		{"rhel6", "Red Hat Enterprise Linux Server release 6.5 (Santiago)\n", "", "", false},
		{"rhel7", "Red Hat Enterprise Linux Server release 7.2 (Maipo)\n", "", "", true},
		{"sles11", "", "SUSE Linux Enterprise Server 11 (ppc64)\nVERSION = 11\nPATCHLEVEL = 4\n", "", false},
		{"sles12", "", "SUSE Linux Enterprise Server 12 (ppc64le)\nVERSION = 12\n", "", true},
		{"ubuntu", "", "", "Ubuntu 14.04.2 LTS \\n \\l\n", true},
		{"debian", "", "", "Debian GNU/Linux 8 \\n \\l\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			redhat, suse, issue := missing, missing, missing
			if tt.redhat != "" {
				redhat = writeFile(t, dir, "redhat-release", tt.redhat)
			}
			if tt.suse != "" {
				suse = writeFile(t, dir, "SuSE-release", tt.suse)
			}
			if tt.issue != "" {
				issue = writeFile(t, dir, "issue", tt.issue)
			}

			err := checkDistro(redhat, suse, issue)
			if tt.refused && err == nil {
				t.Error("expected refusal, got nil")
			}
			if !tt.refused && err != nil {
				t.Errorf("unexpected refusal: %v", err)
			}
		})
	}
}
