package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/procfs"
)

func writeProcStat(t *testing.T, dir, line string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "stat"), []byte(line+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCPUPercentSampler_firstSampleIsNotOK(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir, "cpu  100 0 50 850 0 0 0 0 0 0")
	fs, err := procfs.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	var s cpuPercentSampler
	if _, ok := s.sample(fs); ok {
		t.Fatal("first sample must establish a baseline only")
	}
}

func TestCPUPercentSampler_secondSampleComputesDelta(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir, "cpu  100 0 50 850 0 0 0 0 0 0")
	fs, err := procfs.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	var s cpuPercentSampler
	if _, ok := s.sample(fs); ok {
		t.Fatal("expected baseline sample")
	}

	// Advance: total grows by 200 (100 active + 100 idle).
	writeProcStat(t, dir, "cpu  150 0 100 950 0 0 0 0 0 0")
	pct, ok := s.sample(fs)
	if !ok {
		t.Fatal("expected second sample to be OK")
	}
	if pct <= 0 || pct > 100 {
		t.Fatalf("pct out of range: %v", pct)
	}
}

func TestSampleMemory_computesUsedFromTotalMinusAvailable(t *testing.T) {
	dir := t.TempDir()
	content := "MemTotal:       16000000 kB\nMemAvailable:   10000000 kB\n"
	if err := os.WriteFile(filepath.Join(dir, "meminfo"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	fs, err := procfs.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}

	pct, usedGB, ok := sampleMemory(fs)
	if !ok {
		t.Fatal("expected sampleMemory to succeed")
	}
	wantPct := float64(6000000) / float64(16000000) * 100
	if pct != wantPct {
		t.Fatalf("pct = %v, want %v", pct, wantPct)
	}
	wantGB := float64(6000000) / (1024 * 1024)
	if usedGB != wantGB {
		t.Fatalf("usedGB = %v, want %v", usedGB, wantGB)
	}
}

func TestGetAvailableMetrics_stableAcrossStartStop(t *testing.T) {
	p := NewPoller()
	before := p.GetAvailableMetrics()
	p.Start()
	p.Stop()
	after := p.GetAvailableMetrics()
	if len(before) != len(after) {
		t.Fatalf("metric set changed across start/stop: %v -> %v", before, after)
	}
}

func TestPoller_startStopIsIdempotent(t *testing.T) {
	p := NewPoller()
	p.Start()
	p.Start()
	p.Stop()
	p.Stop()
}
