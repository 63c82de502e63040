//go:build !linux

package monitor

import "fmt"

// ReadSelfUsage is unsupported off Linux; monitoring degrades to a no-op.
func ReadSelfUsage() (Usage, error) {
	return Usage{}, fmt.Errorf("monitor: resource sampling not supported on this platform")
}
