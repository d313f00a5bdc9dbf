package metrics

import (
	"errors"
	"os"
)

// intelGPU reports presence-only clock info from the i915 sysfs gt node,
// per spec §4.5. Selected only when no AMD GPU is present.
type intelGPU struct{}

const intelGTDir = "/sys/class/drm/card0/gt/gt0"

func (g *intelGPU) String() string { return "intel-gpu" }

func (g *intelGPU) Probe() error {
	if _, err := os.Stat(intelGTDir); err != nil {
		return errors.New("metrics: intel gt0 node not found")
	}
	return nil
}

func (g *intelGPU) Sample() map[string]float64 {
	out := map[string]float64{}
	if raw, ok := readIntFile(intelGTDir + "/freq0_cur_freq"); ok {
		out["gpu_clock"] = float64(raw) / 1e6
	}
	return out
}
