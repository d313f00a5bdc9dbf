// Package drv is a small registry of best-effort hardware backends.
//
// It is used by the metrics poller to pick the first GPU vendor backend
// that actually detects hardware (AMD, then Intel, then NVIDIA), without
// hard-coding the preference order into the poller itself: the backends are
// registered in preference order (metrics does this once, on its first
// NewPoller call) and the registry tries them in registration order,
// stopping at the first one whose Probe() succeeds.
package drv

import (
	"fmt"
	"sync"
)

// Backend is a best-effort hardware probe.
//
// Unlike a mandatory driver, a Backend is expected to fail to detect on
// most hosts (wrong vendor, no such sysfs tree, etc); that is not an error
// condition for the registry, only for the caller that wanted the backend.
type Backend interface {
	// String returns the backend's name, e.g. "amdgpu", "nvidia".
	//
	// It must be unique among all registered backends.
	String() string
	// Probe attempts to detect the backend's hardware.
	//
	// It returns nil on success. Any error means the backend is not present
	// on this host and the registry moves on to the next one.
	Probe() error
}

// Register adds a backend to the registry, in priority order.
//
// It is meant to be called from a package init() function. It panics if a
// backend with the same name was already registered.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	n := b.String()
	if _, ok := byName[n]; ok {
		panic(fmt.Sprintf("drv: backend %q already registered", n))
	}
	byName[n] = struct{}{}
	all = append(all, b)
}

// First returns the first registered backend whose Probe() succeeds.
//
// Backends are tried in registration order. If none succeed, ok is false.
func First() (b Backend, ok bool) {
	mu.Lock()
	backends := make([]Backend, len(all))
	copy(backends, all)
	mu.Unlock()

	for _, b := range backends {
		if err := b.Probe(); err == nil {
			return b, true
		}
	}
	return nil, false
}

// All returns every registered backend, in registration order.
func All() []Backend {
	mu.Lock()
	defer mu.Unlock()
	out := make([]Backend, len(all))
	copy(out, all)
	return out
}

var (
	mu     sync.Mutex
	all    []Backend
	byName = map[string]struct{}{}
)
