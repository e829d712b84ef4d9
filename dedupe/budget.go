package dedupe

import "math"

// DefaultMemoryBudget is used when no limit is given or total memory is unknown.
const DefaultMemoryBudget uint64 = 100 * 1_000_000 // 100 MB

// limits up to this value are a percentage of total memory, larger ones are megabytes
const maxPercentLimit = 50

// MemoryBudget converts a --memory-limit value into the byte budget for the in-memory set.
//
// A nil limit or unsupported memory introspection gives DefaultMemoryBudget. 1-50 is a
// percentage of totalMemory, anything larger is megabytes capped at 90% of totalMemory.
// An explicit 0 returns 0, which the cache treats as unbounded.
func MemoryBudget(limit *uint64, totalMemory uint64, supported bool) uint64 {
	if !supported || limit == nil {
		return DefaultMemoryBudget
	}
	v := *limit
	if v == 0 {
		return 0
	}
	if v <= maxPercentLimit {
		return totalMemory * v / 100
	}
	// never take more than 90% and starve the host
	hardCap := uint64(float64(totalMemory) * 0.9)
	if v > math.MaxUint64/1_000_000 {
		return hardCap
	}
	return min(v*1_000_000, hardCap)
}
