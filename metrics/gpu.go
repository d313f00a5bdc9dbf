package metrics

import "github.com/the-black-eagle/Thermalright-usblcd/drv"

// gpuBackend extends drv.Backend with the ability to sample its metrics.
// AMD, Intel, and NVIDIA each implement this; drv.First applies the
// AMD-then-Intel-then-NVIDIA preference from spec §4.5.
type gpuBackend interface {
	drv.Backend
	Sample() map[string]float64
}

func registerGPUBackends() {
	drv.Register(&amdGPU{})
	drv.Register(&intelGPU{})
	drv.Register(newNvidiaGPU())
}

// selectGPUBackend returns the highest-preference GPU backend whose
// Probe succeeded, or nil if none is available on this host.
func selectGPUBackend() gpuBackend {
	b, ok := drv.First()
	if !ok {
		return nil
	}
	gb, ok := b.(gpuBackend)
	if !ok {
		return nil
	}
	return gb
}
