package monitor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Kernel constants on every mainstream Linux distribution. Reading them
// properly needs sysconf, which would pull in cgo.
const clockTicksPerSecond = 100

// ReadSelfUsage reads CPU time and resident set size for the current
// process from procfs.
func ReadSelfUsage() (Usage, error) {
	stat, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		return Usage{}, fmt.Errorf("monitor: reading stat: %w", err)
	}

	// The comm field is parenthesized and may contain spaces; fields
	// after the closing paren are space-separated starting with state.
	s := string(stat)
	idx := strings.LastIndexByte(s, ')')
	if idx < 0 || idx+2 >= len(s) {
		return Usage{}, fmt.Errorf("monitor: malformed stat line")
	}
	fields := strings.Fields(s[idx+2:])
	// utime and stime are fields 14 and 15 of the full line; state is
	// field 3, so they sit at offsets 11 and 12 here.
	if len(fields) < 13 {
		return Usage{}, fmt.Errorf("monitor: short stat line (%d fields)", len(fields))
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("monitor: parse utime: %w", err)
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("monitor: parse stime: %w", err)
	}

	statm, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return Usage{}, fmt.Errorf("monitor: reading statm: %w", err)
	}
	mfields := strings.Fields(string(statm))
	if len(mfields) < 2 {
		return Usage{}, fmt.Errorf("monitor: short statm line")
	}
	rssPages, err := strconv.ParseInt(mfields[1], 10, 64)
	if err != nil {
		return Usage{}, fmt.Errorf("monitor: parse rss: %w", err)
	}

	return Usage{
		CPUSeconds: float64(utime+stime) / clockTicksPerSecond,
		RSSBytes:   rssPages * int64(os.Getpagesize()),
	}, nil
}
