package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

// DefaultFastInterval and DefaultSlowInterval are the two sampling
// cadences checked on every scheduler tick, per spec §4.5.
const (
	DefaultFastInterval = 200 * time.Millisecond
	DefaultSlowInterval = 2500 * time.Millisecond
	tickInterval        = 50 * time.Millisecond
)

var registerGPUOnce sync.Once

// Poller is the system info poller (spec component C5): it detects
// available sensors once, then runs one background worker that merges
// fast-cadence and slow-cadence samples into a shared Snapshot, mirroring
// the teacher's single ticking goroutine in
// host/sysfs/thermal_sensor.go's SenseContinuous.
type Poller struct {
	fastInterval time.Duration
	slowInterval time.Duration

	procfsFS  procfs.FS
	hasProcfs bool

	hasCPUPercent bool
	hasCPUCount   bool
	cpuCount      float64
	hasCPUFreq    bool
	hasCPUTemp    bool
	hasMem        bool
	hasDisk       bool
	gpu           gpuBackend

	cpuSampler cpuPercentSampler

	snapshot *Snapshot

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewPoller detects every metric named in spec §4.5 and returns a Poller
// ready to Start. Detection never fails: undetected metrics are simply
// absent from GetAvailableMetrics and GetInfo.
func NewPoller() *Poller {
	registerGPUOnce.Do(registerGPUBackends)

	p := &Poller{
		fastInterval: DefaultFastInterval,
		slowInterval: DefaultSlowInterval,
	}

	if fs, err := procfs.NewDefaultFS(); err == nil {
		p.procfsFS = fs
		p.hasProcfs = true
		p.hasCPUPercent = probeCPUPercent(fs)
		p.hasMem = probeMemory(fs)
		if _, ok := sampleCPUFreq(fs); ok {
			p.hasCPUFreq = true
		}
	}
	if n, ok := probeCPUCount(); ok {
		p.hasCPUCount = true
		p.cpuCount = float64(n)
	}
	if _, ok := sampleCPUTemp(); ok {
		p.hasCPUTemp = true
	}
	p.hasDisk = probeDisk()
	p.gpu = selectGPUBackend()

	var keys []string
	if p.hasCPUPercent {
		keys = append(keys, "cpu_percent")
	}
	if p.hasCPUCount {
		keys = append(keys, "cpu_count")
	}
	if p.hasCPUFreq {
		keys = append(keys, "cpu_freq")
	}
	if p.hasCPUTemp {
		keys = append(keys, "cpu_temp")
	}
	if p.hasMem {
		keys = append(keys, "mem_percent", "mem_used_gb")
	}
	if p.hasDisk {
		keys = append(keys, "disk_percent", "disk_free_gb")
	}
	if p.gpu != nil {
		keys = append(keys, "gpu_temp", "gpu_usage", "gpu_clock", "gpu_fan")
	}
	p.snapshot = newSnapshot(keys)

	return p
}

// GetAvailableMetrics returns the detected metric name set. Stable across
// calls after Start, per spec §8.
func (p *Poller) GetAvailableMetrics() []string {
	return p.snapshot.keys()
}

// GetInfo returns a copy of the current snapshot.
func (p *Poller) GetInfo() map[string]float64 {
	return p.snapshot.All()
}

// Snapshot exposes the underlying Snapshot for callers that want typed
// per-key reads via Snapshot.Get.
func (p *Poller) Snapshot() *Snapshot {
	return p.snapshot
}

// Start launches the background worker. Idempotent: a second Start while
// already running is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.running = true
	go p.run(p.stopCh, p.doneCh)
}

// Stop stops and joins the background worker. Idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (p *Poller) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var sinceFast, sinceSlow time.Duration
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			sinceFast += tickInterval
			sinceSlow += tickInterval
			if sinceFast >= p.fastInterval {
				sinceFast = 0
				p.snapshot.merge(p.sampleFast())
			}
			if sinceSlow >= p.slowInterval {
				sinceSlow = 0
				p.snapshot.merge(p.sampleSlow())
			}
		}
	}
}

// sampleFast gathers the fast-cadence batch: CPU %, CPU temp, CPU freq,
// GPU stats. Any individual failure is silently omitted for this tick,
// per spec §4.5's failure semantics.
func (p *Poller) sampleFast() map[string]float64 {
	out := map[string]float64{}
	if p.hasCPUPercent {
		if v, ok := p.cpuSampler.sample(p.procfsFS); ok {
			out["cpu_percent"] = v
		}
	}
	if p.hasCPUTemp {
		if v, ok := sampleCPUTemp(); ok {
			out["cpu_temp"] = v
		}
	}
	if p.hasCPUFreq {
		if v, ok := sampleCPUFreq(p.procfsFS); ok {
			out["cpu_freq"] = v
		}
	}
	if p.gpu != nil {
		for k, v := range p.gpu.Sample() {
			out[k] = v
		}
	}
	return out
}

// sampleSlow gathers the slow-cadence batch: CPU count, disk info, memory
// info.
func (p *Poller) sampleSlow() map[string]float64 {
	out := map[string]float64{}
	if p.hasCPUCount {
		out["cpu_count"] = p.cpuCount
	}
	if p.hasMem {
		if pct, gb, ok := sampleMemory(p.procfsFS); ok {
			out["mem_percent"] = pct
			out["mem_used_gb"] = gb
		}
	}
	if p.hasDisk {
		if mounts, err := candidateMounts(); err == nil {
			if pct, gb, ok := sampleDisk(mounts); ok {
				out["disk_percent"] = pct
				out["disk_free_gb"] = gb
			}
		}
	}
	return out
}
