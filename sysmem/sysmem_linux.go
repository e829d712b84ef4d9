//go:build linux

package sysmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// totalMemory reads total RAM from sysinfo(2).
func totalMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	return uint64(info.Totalram) * uint64(info.Unit), nil
}
