package metrics

import (
	"errors"
	"os"
	"unsafe"

	"github.com/ebitengine/purego"
)

// nvidiaGPU talks to the NVIDIA management library (NVML) without cgo,
// resolving its symbols dynamically the way purego-based loaders resolve
// native entry points at runtime rather than link time. Selected only
// when neither AMD nor Intel is present, per spec §4.5.
type nvidiaGPU struct {
	handle uintptr

	init              uintptr
	shutdown          uintptr
	deviceGetCount    uintptr
	deviceGetByIndex  uintptr
	deviceGetTemp     uintptr
	deviceGetUtil     uintptr
	deviceGetClock    uintptr
	deviceGetFanSpeed uintptr

	device uintptr
}

func newNvidiaGPU() *nvidiaGPU { return &nvidiaGPU{} }

func (g *nvidiaGPU) String() string { return "nvidia-gpu" }

var nvmlSearchPaths = []string{
	"libnvidia-ml.so.1",
	"libnvidia-ml.so",
	"/usr/lib/x86_64-linux-gnu/libnvidia-ml.so.1",
	"/usr/lib64/libnvidia-ml.so.1",
}

// resolveWithFallback resolves name, retrying with a "_v2" suffix if the
// bare symbol is absent, per spec §4.5.
func resolveWithFallback(handle uintptr, name string) (uintptr, error) {
	if sym, err := purego.Dlsym(handle, name); err == nil {
		return sym, nil
	}
	return purego.Dlsym(handle, name+"_v2")
}

func (g *nvidiaGPU) Probe() error {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err != nil {
		return errors.New("metrics: no nvidia driver present")
	}

	var handle uintptr
	var err error
	for _, p := range nvmlSearchPaths {
		handle, err = purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if handle == 0 {
		return errors.New("metrics: libnvidia-ml.so not found")
	}

	symbols := map[string]*uintptr{
		"nvmlInit":                      &g.init,
		"nvmlShutdown":                  &g.shutdown,
		"nvmlDeviceGetCount":            &g.deviceGetCount,
		"nvmlDeviceGetHandleByIndex":    &g.deviceGetByIndex,
		"nvmlDeviceGetTemperature":      &g.deviceGetTemp,
		"nvmlDeviceGetUtilizationRates": &g.deviceGetUtil,
		"nvmlDeviceGetClockInfo":        &g.deviceGetClock,
		"nvmlDeviceGetFanSpeed":         &g.deviceGetFanSpeed,
	}
	for name, slot := range symbols {
		sym, err := resolveWithFallback(handle, name)
		if err != nil {
			return errors.New("metrics: nvml symbol " + name + " unresolved")
		}
		*slot = sym
	}

	g.handle = handle
	if ret, _, _ := purego.SyscallN(g.init); ret != 0 {
		return errors.New("metrics: nvmlInit failed")
	}

	var count uint32
	if ret, _, _ := purego.SyscallN(g.deviceGetCount, uintptr(unsafe.Pointer(&count))); ret != 0 || count == 0 {
		return errors.New("metrics: no nvml devices")
	}

	var dev uintptr
	if ret, _, _ := purego.SyscallN(g.deviceGetByIndex, 0, uintptr(unsafe.Pointer(&dev))); ret != 0 {
		return errors.New("metrics: nvmlDeviceGetHandleByIndex failed")
	}
	g.device = dev
	return nil
}

const nvmlTemperatureGPU = 0

func (g *nvidiaGPU) Sample() map[string]float64 {
	out := map[string]float64{}

	var temp uint32
	if ret, _, _ := purego.SyscallN(g.deviceGetTemp, g.device, nvmlTemperatureGPU, uintptr(unsafe.Pointer(&temp))); ret == 0 {
		out["gpu_temp"] = float64(temp)
	}

	var util struct{ GPU, Memory uint32 }
	if ret, _, _ := purego.SyscallN(g.deviceGetUtil, g.device, uintptr(unsafe.Pointer(&util))); ret == 0 {
		out["gpu_usage"] = float64(util.GPU)
	}

	var clock uint32
	const nvclkGraphics = 0
	if ret, _, _ := purego.SyscallN(g.deviceGetClock, g.device, nvclkGraphics, uintptr(unsafe.Pointer(&clock))); ret == 0 {
		out["gpu_clock"] = float64(clock)
	}

	var fan uint32
	if ret, _, _ := purego.SyscallN(g.deviceGetFanSpeed, g.device, uintptr(unsafe.Pointer(&fan))); ret == 0 {
		out["gpu_fan"] = float64(fan)
	}

	return out
}
