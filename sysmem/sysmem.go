/*
Package sysmem reports the total physical memory of the host.

Platforms without a supported probe report ok=false and callers fall back to a fixed default.
*/
package sysmem

// Total returns the total physical memory in bytes and whether it could be determined.
func Total() (uint64, bool) {
	total, err := totalMemory()
	if err != nil || total == 0 {
		return 0, false
	}
	return total, true
}
