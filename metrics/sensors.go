package metrics

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/the-black-eagle/Thermalright-usblcd/internal/vfs"
)

// hwmonCandidate is one glob match under /sys/class/hwmon paired with the
// sibling "name" file that identifies the chip driving it, following the
// discovery pattern of the teacher's thermal sensor driver
// (host/sysfs/thermal_sensor.go discoverDevices).
type hwmonCandidate struct {
	inputPath string
	chipName  string
}

// discoverHwmon globs pattern (e.g. "/sys/class/hwmon/hwmon*/temp*_input")
// and reads each match's sibling file (relative to the hwmon* directory,
// e.g. "name") to identify the owning chip.
func discoverHwmon(pattern, siblingFile string) []hwmonCandidate {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return nil
	}
	sort.Strings(matches)
	var out []hwmonCandidate
	for _, m := range matches {
		dir := hwmonDirOf(m)
		raw, err := vfs.ReadFile(filepath.Join(dir, siblingFile))
		if err != nil {
			continue
		}
		out = append(out, hwmonCandidate{inputPath: m, chipName: strings.TrimSpace(string(raw))})
	}
	return out
}

// hwmonDirOf returns the hwmon* directory owning a glob match such as
// "/sys/class/hwmon/hwmon2/temp1_input".
func hwmonDirOf(match string) string {
	return filepath.Dir(match)
}

// hwmonDirByChipName returns the "/sys/class/hwmon/hwmon*" directory
// whose "name" file equals chipName, or "" if none match.
func hwmonDirByChipName(chipName string) string {
	dirs, err := filepath.Glob("/sys/class/hwmon/hwmon*")
	if err != nil {
		return ""
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		raw, err := vfs.ReadFile(filepath.Join(d, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(raw)) == chipName {
			return d
		}
	}
	return ""
}

func readIntFile(path string) (int64, bool) {
	raw, err := vfs.ReadFile(path)
	if err != nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	return v, err == nil
}

var cpuTempChipNames = map[string]struct{}{
	"k10temp": {}, "coretemp": {},
}

// sampleCPUTemp reports the maximum plausible temperature (°C) across all
// hwmon temp*_input files owned by a known CPU chip, per spec §4.5's
// plausibility window (15, 100) exclusive.
func sampleCPUTemp() (float64, bool) {
	candidates := discoverHwmon("/sys/class/hwmon/hwmon*/temp*_input", "name")
	var best float64
	found := false
	for _, c := range candidates {
		if _, ok := cpuTempChipNames[c.chipName]; !ok {
			continue
		}
		raw, ok := readIntFile(c.inputPath)
		if !ok {
			continue
		}
		celsius := float64(raw) / 1000
		if celsius <= 15 || celsius >= 100 {
			continue
		}
		if !found || celsius > best {
			best, found = celsius, true
		}
	}
	return best, found
}
