package metrics

import "testing"

func TestSnapshot_getUndetectedKeyIsNotOK(t *testing.T) {
	s := newSnapshot([]string{"cpu_percent"})
	if _, ok := s.Get("gpu_temp"); ok {
		t.Fatal("expected gpu_temp to be undetected")
	}
}

func TestSnapshot_mergeIgnoresUndetectedKeys(t *testing.T) {
	s := newSnapshot([]string{"cpu_percent"})
	s.merge(map[string]float64{"cpu_percent": 42, "gpu_temp": 70})
	if v, ok := s.Get("cpu_percent"); !ok || v != 42 {
		t.Fatalf("cpu_percent = %v, %v", v, ok)
	}
	if _, ok := s.Get("gpu_temp"); ok {
		t.Fatal("gpu_temp should remain undetected after merge")
	}
}

func TestSnapshot_allReturnsCopy(t *testing.T) {
	s := newSnapshot([]string{"cpu_percent"})
	s.merge(map[string]float64{"cpu_percent": 1})
	all := s.All()
	all["cpu_percent"] = 999
	if v, _ := s.Get("cpu_percent"); v != 1 {
		t.Fatal("All() leaked a mutable reference to internal state")
	}
}

func TestSnapshot_keysStableAfterMerge(t *testing.T) {
	s := newSnapshot([]string{"cpu_percent", "mem_percent"})
	before := len(s.keys())
	s.merge(map[string]float64{"cpu_percent": 5})
	if after := len(s.keys()); after != before {
		t.Fatalf("key set grew from %d to %d", before, after)
	}
}
