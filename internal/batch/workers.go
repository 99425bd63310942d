package batch

import (
	"github.com/shirou/gopsutil/v4/cpu"
)

const (
	minAutoWorkers = 2
	maxAutoWorkers = 8
)

// resolveWorkers turns a requested pool size into an actual worker
// count. 0 stays 0 (sequential). A negative value asks for "auto":
// the host's logical CPU count, clamped to [minAutoWorkers,
// maxAutoWorkers]. A failed core-count query falls back to
// minAutoWorkers rather than failing the whole run.
func resolveWorkers(requested int) int {
	if requested >= 0 {
		return requested
	}

	counts, err := cpu.Counts(true)
	if err != nil || counts <= 0 {
		return minAutoWorkers
	}
	if counts < minAutoWorkers {
		return minAutoWorkers
	}
	if counts > maxAutoWorkers {
		return maxAutoWorkers
	}
	return counts
}
