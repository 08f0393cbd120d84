//go:build linux

package cmd

import (
	perf "github.com/hodgesds/perf-utils"
)

// measureInstructions runs fn under a CPU instruction counter. When the counter can
// not be opened fn is run unmeasured and zero is reported.
func measureInstructions(fn func() error) (instructions uint64, err error) {
	var (
		ran bool
		pv  *perf.ProfileValue
	)
	pv, err = perf.CPUInstructions(func() error {
		ran = true
		return fn()
	})
	if err != nil {
		if ran {
			return
		}
		return 0, fn()
	}
	return pv.Value, nil
}
