package metrics

import (
	"runtime"

	"github.com/prometheus/procfs"
)

// cpuPercentSampler tracks the previous /proc/stat cpu-total sample so
// cpu_percent can be derived as a delta between ticks, the way the
// vendor tool itself does it (spec §4.5).
type cpuPercentSampler struct {
	haveLast  bool
	lastTotal float64
	lastIdle  float64
}

func (c *cpuPercentSampler) sample(fs procfs.FS) (float64, bool) {
	stat, err := fs.Stat()
	if err != nil {
		return 0, false
	}
	cpu := stat.CPUTotal
	idle := cpu.Idle + cpu.Iowait
	total := cpu.User + cpu.Nice + cpu.System + cpu.Idle + cpu.Iowait + cpu.IRQ + cpu.SoftIRQ + cpu.Steal

	if !c.haveLast {
		c.lastTotal, c.lastIdle, c.haveLast = total, idle, true
		return 0, false
	}
	deltaTotal := total - c.lastTotal
	deltaIdle := idle - c.lastIdle
	c.lastTotal, c.lastIdle = total, idle
	if deltaTotal <= 0 {
		return 0, false
	}
	pct := (deltaTotal - deltaIdle) / deltaTotal * 100
	if pct <= 0 || pct > 100 {
		return 0, false
	}
	return pct, true
}

// probeCPUPercent reports whether cpu_percent can ever be sampled on this
// host: it needs two consecutive /proc/stat reads, so detection only
// confirms /proc/stat itself is readable.
func probeCPUPercent(fs procfs.FS) bool {
	_, err := fs.Stat()
	return err == nil
}

func probeCPUCount() (int, bool) {
	n := runtime.NumCPU()
	return n, n > 0
}

func sampleCPUFreq(fs procfs.FS) (float64, bool) {
	infos, err := fs.CPUInfo()
	if err != nil || len(infos) == 0 {
		return 0, false
	}
	mhz := infos[0].CPUMHz
	return mhz, mhz > 0
}
