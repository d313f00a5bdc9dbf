package metrics

import "github.com/prometheus/procfs"

// sampleMemory returns mem_percent and mem_used_gb from /proc/meminfo,
// following spec §4.5: used = MemTotal - MemAvailable.
func sampleMemory(fs procfs.FS) (percent, usedGB float64, ok bool) {
	info, err := fs.Meminfo()
	if err != nil || info.MemTotal == nil || info.MemAvailable == nil {
		return 0, 0, false
	}
	total := *info.MemTotal
	if total == 0 {
		return 0, 0, false
	}
	available := *info.MemAvailable
	used := total - available
	percent = float64(used) / float64(total) * 100
	usedGB = float64(used) / (1024 * 1024)
	return percent, usedGB, true
}

func probeMemory(fs procfs.FS) bool {
	_, _, ok := sampleMemory(fs)
	return ok
}
