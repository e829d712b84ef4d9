//go:build darwin || freebsd || netbsd || openbsd

package sysmem

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

func sysctlName() string {
	switch runtime.GOOS {
	case "darwin":
		return "hw.memsize"
	case "freebsd":
		return "hw.physmem"
	default:
		return "hw.physmem64"
	}
}

func totalMemory() (uint64, error) {
	name := sysctlName()
	total, err := unix.SysctlUint64(name)
	if err != nil {
		return 0, fmt.Errorf("sysctl %s: %w", name, err)
	}
	return total, nil
}
