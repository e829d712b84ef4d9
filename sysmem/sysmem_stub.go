//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package sysmem

import "errors"

var errUnsupported = errors.New("memory introspection is not supported on this platform")

func totalMemory() (uint64, error) {
	return 0, errUnsupported
}
