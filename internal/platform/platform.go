// Package platform gates the tools to the machines they can actually
// administer. Detection is two file probes: the platform field in
// /proc/cpuinfo and the lparcfg presence that distinguishes an LPAR from
// bare metal.
package platform

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Platform identifies the host firmware environment.
type Platform int

const (
	Unknown Platform = iota
	PSeries          // pSeries bare metal
	PSeriesLPAR      // pSeries logical partition
	PowerNV          // non-virtualized Power
)

func (p Platform) String() string {
	switch p {
	case PSeries:
		return "pSeries"
	case PSeriesLPAR:
		return "pSeries (LPAR)"
	case PowerNV:
		return "PowerNV"
	}
	return "unknown"
}

const (
	cpuinfoPath = "/proc/cpuinfo"
	lparcfgPath = "/proc/ppc64/lparcfg"
)

// Detect identifies the running platform.
func Detect() Platform {
	return detect(cpuinfoPath, lparcfgPath)
}

func detect(cpuinfo, lparcfg string) Platform {
	f, err := os.Open(cpuinfo)
	if err != nil {
		return Unknown
	}
	defer f.Close()

	var platform string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(key) == "platform" {
			platform = strings.TrimSpace(value)
			break
		}
	}

	switch platform {
	case "pSeries":
		if _, err := os.Stat(lparcfg); err == nil {
			return PSeriesLPAR
		}
		return PSeries
	case "PowerNV":
		return PowerNV
	}
	return Unknown
}

// RequireLPAR returns an error unless running on a pSeries LPAR. The
// vty-server bus only exists there.
func RequireLPAR() error {
	if p := Detect(); p != PSeriesLPAR {
		return fmt.Errorf("is not supported on the %s platform", p)
	}
	return nil
}

// RequirePSeries returns an error on unknown and PowerNV platforms.
// RTAS events exist on any pSeries flavor.
func RequirePSeries() error {
	p := Detect()
	if p == Unknown || p == PowerNV {
		return fmt.Errorf("is not supported on the %s platform", p)
	}
	return nil
}

// CheckDistro refuses to collect snapshots on distributions whose vendors
// ship their own collector.
func CheckDistro() error {
	return checkDistro("/etc/redhat-release", "/etc/SuSE-release", "/etc/issue")
}

func checkDistro(redhatRelease, suseRelease, issue string) error {
	if data, err := os.ReadFile(redhatRelease); err == nil {
		if v, ok := firstNumber(string(data)); ok && v >= 7.0 {
			return fmt.Errorf("not supported on RHEL 7 onwards, use sosreport to collect log data")
		}
		return nil
	}
	if data, err := os.ReadFile(suseRelease); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			key, value, ok := strings.Cut(line, "=")
			if !ok || !strings.Contains(key, "VERSION") {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil && v >= 12 {
				return fmt.Errorf("deprecated from SLES 12 onwards, use supportconfig to collect log data")
			}
		}
		return nil
	}
	if data, err := os.ReadFile(issue); err == nil {
		first, _, _ := strings.Cut(string(data), "\n")
		if strings.Contains(first, "Ubuntu") {
			return fmt.Errorf("not supported on the Ubuntu platform")
		}
	}
	return nil
}

// firstNumber finds the first numeric token in a release string like
// "Red Hat Enterprise Linux Server release 6.5 (Santiago)".
func firstNumber(s string) (float64, bool) {
	for _, token := range strings.Fields(s) {
		if v, err := strconv.ParseFloat(token, 64); err == nil {
			return v, true
		}
	}
	return 0, false
}
