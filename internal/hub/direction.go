// Package hub implements the inter-scale data-exchange hub: one manager per
// exchange direction, each bridging a receive endpoint and a send endpoint
// and pivoting the data between spike and rate form in flight.
package hub

import "fmt"

// Direction identifies a data exchange direction. The numeric codes are the
// values the Application Companion passes on the command line.
type Direction int

const (
	DirectionUnknown Direction = 0

	// SpikesToRates carries spiking activity toward the rate simulator
	// (historically NEST_TO_TVB).
	SpikesToRates Direction = 1

	// RatesToSpikes carries rate waves toward the spiking simulator
	// (historically TVB_TO_NEST).
	RatesToSpikes Direction = 2
)

// String returns the wire name used in payloads and port-info files.
func (d Direction) String() string {
	switch d {
	case SpikesToRates:
		return "NEST_TO_TVB"
	case RatesToSpikes:
		return "TVB_TO_NEST"
	default:
		return "UNKNOWN"
	}
}

// EndpointName returns the stable file name used for endpoint discovery.
func (d Direction) EndpointName() string {
	switch d {
	case SpikesToRates:
		return "spikes_to_rates"
	case RatesToSpikes:
		return "rates_to_spikes"
	default:
		return "unknown"
	}
}

// ParseDirectionCode maps the argv direction code ("1" or "2").
func ParseDirectionCode(code string) (Direction, error) {
	switch code {
	case "1":
		return SpikesToRates, nil
	case "2":
		return RatesToSpikes, nil
	default:
		return DirectionUnknown, fmt.Errorf("hub: unknown direction code: %q", code)
	}
}

// ParseDirectionName maps the payload direction name.
func ParseDirectionName(name string) (Direction, error) {
	switch name {
	case "NEST_TO_TVB":
		return SpikesToRates, nil
	case "TVB_TO_NEST":
		return RatesToSpikes, nil
	default:
		return DirectionUnknown, fmt.Errorf("hub: unknown direction name: %q", name)
	}
}
