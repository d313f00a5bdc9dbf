package metrics

import (
	"strings"
	"testing"

	"github.com/the-black-eagle/Thermalright-usblcd/internal/vfs"
)

type fakeSysfsFile struct{ r *strings.Reader }

func (f *fakeSysfsFile) Read(b []byte) (int, error) { return f.r.Read(b) }
func (f *fakeSysfsFile) Close() error { return nil }

func withFakeSysfsContent(t *testing.T, content string) {
	t.Helper()
	orig := vfs.Open
	vfs.Open = func(path string) (vfs.File, error) {
		return &fakeSysfsFile{r: strings.NewReader(content)}, nil
	}
	t.Cleanup(func() { vfs.Open = orig })
}

func TestReadIntFile_parsesTrimmedValue(t *testing.T) {
	withFakeSysfsContent(t, "42000\n")
	v, ok := readIntFile("/sys/class/hwmon/hwmon0/temp1_input")
	if !ok || v != 42000 {
		t.Fatalf("got %d, %v", v, ok)
	}
}

func TestReadIntFile_rejectsNonNumeric(t *testing.T) {
	withFakeSysfsContent(t, "not-a-number\n")
	if _, ok := readIntFile("/x"); ok {
		t.Fatal("expected failure on non-numeric content")
	}
}

func TestCPUTempChipNames_coversSpecList(t *testing.T) {
	for _, name := range []string{"k10temp", "coretemp"} {
		if _, ok := cpuTempChipNames[name]; !ok {
			t.Fatalf("expected %q to be a recognized CPU chip", name)
		}
	}
	if _, ok := cpuTempChipNames["amdgpu"]; ok {
		t.Fatal("amdgpu must not be treated as a CPU temp source")
	}
}

// TestCPUTempPlausibility documents the boundary behavior from spec §8:
// 15°C and 100°C themselves are rejected (exclusive bounds).
func TestCPUTempPlausibility_boundaries(t *testing.T) {
	cases := []struct {
		milliC int64
		ok     bool
	}{
		{14900, false},
		{15100, true},
		{100000, false},
		{99900, true},
	}
	for _, c := range cases {
		celsius := float64(c.milliC) / 1000
		plausible := celsius > 15 && celsius < 100
		if plausible != c.ok {
			t.Fatalf("milliC=%d: plausible=%v, want %v", c.milliC, plausible, c.ok)
		}
	}
}
