package metrics

import (
	"bufio"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/the-black-eagle/Thermalright-usblcd/internal/vfs"
)

var excludedFSTypes = map[string]struct{}{
	"tmpfs": {}, "devtmpfs": {}, "proc": {}, "sysfs": {},
	"cgroup": {}, "overlay": {}, "squashfs": {}, "ramfs": {},
}

func excludedMount(device, mountpoint string) bool {
	if strings.HasPrefix(device, "/dev/loop") || strings.HasPrefix(device, "/dev/sr") {
		return true
	}
	return strings.Contains(mountpoint, "/run")
}

// candidateMounts parses /proc/mounts into the device/mountpoint/fstype
// triples eligible for disk accounting under spec §4.5's exclusion list.
func candidateMounts() ([][3]string, error) {
	raw, err := vfs.ReadFile("/proc/mounts")
	if err != nil {
		return nil, err
	}
	var out [][3]string
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		device, mountpoint, fstype := fields[0], fields[1], fields[2]
		if _, bad := excludedFSTypes[fstype]; bad {
			continue
		}
		if excludedMount(device, mountpoint) {
			continue
		}
		out = append(out, [3]string{device, mountpoint, fstype})
	}
	return out, scanner.Err()
}

// statfs is overridden in tests; production uses unix.Statfs directly.
var statfs = func(path string) (total, free uint64, ok bool) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, false
	}
	bs := uint64(st.Bsize)
	return st.Blocks * bs, st.Bavail * bs, true
}

// sampleDisk sums total and free bytes across every eligible mountpoint
// returned by candidateMounts, per spec §4.5.
func sampleDisk(mounts [][3]string) (percent, freeGB float64, ok bool) {
	var total, free uint64
	for _, m := range mounts {
		t, f, mok := statfs(m[1])
		if !mok {
			continue
		}
		total += t
		free += f
	}
	if total == 0 {
		return 0, 0, false
	}
	percent = float64(total-free) / float64(total) * 100
	freeGB = float64(free) / (1024 * 1024 * 1024)
	return percent, freeGB, true
}

func probeDisk() bool {
	mounts, err := candidateMounts()
	if err != nil || len(mounts) == 0 {
		return false
	}
	_, _, ok := sampleDisk(mounts)
	return ok
}
