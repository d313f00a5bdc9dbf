package metrics

import "errors"

// amdGPU reads the amdgpu hwmon node plus its DRM sysfs siblings, per
// spec §4.5. It is preferred over Intel and NVIDIA.
type amdGPU struct {
	hwmonDir string
	drmDir   string
}

func (g *amdGPU) String() string { return "amdgpu" }

func (g *amdGPU) Probe() error {
	dir := hwmonDirByChipName("amdgpu")
	if dir == "" {
		return errors.New("metrics: amdgpu hwmon node not found")
	}
	g.hwmonDir = dir
	g.drmDir = "/sys/class/drm/card1/device"
	return nil
}

// gpuTempPlausible/gpuUsagePlausible/gpuClockPlausible/gpuFanPlausible are
// the "per-field sanity" checks spec §4.5 calls for on the AMD GPU
// metrics, the same discard-on-implausible-value spirit as cpu_temp's
// (15, 100) window: a garbage or stuck-at-zero sysfs read should not
// overwrite a previously good value.
func gpuTempPlausible(c float64) bool   { return c > 0 && c < 150 }
func gpuUsagePlausible(p float64) bool  { return p >= 0 && p <= 100 }
func gpuClockPlausible(mhz float64) bool { return mhz > 0 }
func gpuFanPlausible(rpm float64) bool   { return rpm >= 0 }

func (g *amdGPU) Sample() map[string]float64 {
	out := map[string]float64{}
	if raw, ok := readIntFile(g.hwmonDir + "/temp1_input"); ok {
		if v := float64(raw) / 1000; gpuTempPlausible(v) {
			out["gpu_temp"] = v
		}
	}
	if raw, ok := readIntFile(g.drmDir + "/gpu_busy_percent"); ok {
		if v := float64(raw); gpuUsagePlausible(v) {
			out["gpu_usage"] = v
		}
	}
	if raw, ok := readIntFile(g.drmDir + "/freq1_input"); ok {
		if v := float64(raw) / 1e6; gpuClockPlausible(v) {
			out["gpu_clock"] = v
		}
	}
	if raw, ok := readIntFile(g.hwmonDir + "/fan1_input"); ok {
		if v := float64(raw); gpuFanPlausible(v) {
			out["gpu_fan"] = v
		}
	}
	return out
}
