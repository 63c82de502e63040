// Package science loads the scientific parameter file shared by the hub and
// simulator adapters. Parameters arrive as a YAML document whose path is
// handed to the adapter on the command line; every field is validated before
// a simulation is configured from it.
package science

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parameters holds the per-experiment scientific configuration.
type Parameters struct {
	// WhiteMatterSpeed is the conduction speed through the connectivity,
	// in mm/ms.
	WhiteMatterSpeed float64 `yaml:"white_matter_speed"`

	// CouplingStrength is the linear coupling coefficient between regions.
	CouplingStrength float64 `yaml:"coupling_strength"`

	// IntegrationStepMs is the integrator step size dt, in ms.
	IntegrationStepMs float64 `yaml:"integration_step_ms"`

	// SynchronizationTimeMs is the window after which the simulators
	// exchange state. It is also the local minimum step size reported to
	// the Application Companion.
	SynchronizationTimeMs float64 `yaml:"synchronization_time_ms"`

	// SimulationLengthMs is the total simulated time.
	SimulationLengthMs float64 `yaml:"simulation_length_ms"`

	// RegionCount is the number of regions in the rate model network.
	RegionCount int `yaml:"region_count"`

	// ProxyNodeIDs are the region indices simulated by the spiking side
	// and fed into the rate model as proxies.
	ProxyNodeIDs []int `yaml:"proxy_node_ids"`

	// FirstNeuronIDs are the first neuron IDs of each spiking population,
	// used to address generated spike trains.
	FirstNeuronIDs []int `yaml:"first_neuron_ids"`

	// PopulationSize is the number of neurons per spiking population.
	PopulationSize int `yaml:"population_size"`

	// SpikeWindowMs is the histogram window width for the spikes-to-rates
	// transformation, in ms.
	SpikeWindowMs float64 `yaml:"spike_window_ms"`

	// FiringRateScale converts model state to a firing rate in Hz for the
	// rates-to-spikes side.
	FiringRateScale float64 `yaml:"firing_rate_scale"`

	// Seed makes the Poisson spike generation reproducible.
	Seed int64 `yaml:"seed"`
}

// Default returns the parameter set used when the experiment file leaves a
// field unset. Values match the historical hard-coded parameter block.
func Default() Parameters {
	return Parameters{
		WhiteMatterSpeed:      4.0,
		CouplingStrength:      0.154,
		IntegrationStepMs:     0.1,
		SynchronizationTimeMs: 100.0,
		SimulationLengthMs:    1000.0,
		RegionCount:           68,
		ProxyNodeIDs:          []int{0},
		FirstNeuronIDs:        []int{1},
		PopulationSize:        100,
		SpikeWindowMs:         20.0,
		FiringRateScale:       1.0,
		Seed:                  125,
	}
}

// Load reads and validates a parameter file. An empty path returns the
// defaults unchanged.
func Load(path string) (Parameters, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("science: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Parameters{}, fmt.Errorf("science: parsing %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, fmt.Errorf("science: %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the physical plausibility constraints.
func (p Parameters) Validate() error {
	if p.WhiteMatterSpeed <= 0 {
		return fmt.Errorf("white_matter_speed must be positive, got %v", p.WhiteMatterSpeed)
	}
	if p.IntegrationStepMs <= 0 {
		return fmt.Errorf("integration_step_ms must be positive, got %v", p.IntegrationStepMs)
	}
	if p.SynchronizationTimeMs < p.IntegrationStepMs {
		return fmt.Errorf("synchronization_time_ms %v shorter than integration step %v",
			p.SynchronizationTimeMs, p.IntegrationStepMs)
	}
	if p.SimulationLengthMs < p.SynchronizationTimeMs {
		return fmt.Errorf("simulation_length_ms %v shorter than synchronization window %v",
			p.SimulationLengthMs, p.SynchronizationTimeMs)
	}
	if p.RegionCount < 2 {
		return fmt.Errorf("region_count must be at least 2, got %d", p.RegionCount)
	}
	if len(p.ProxyNodeIDs) == 0 {
		return fmt.Errorf("proxy_node_ids must not be empty")
	}
	for _, id := range p.ProxyNodeIDs {
		if id < 0 || id >= p.RegionCount {
			return fmt.Errorf("proxy node %d out of range [0, %d)", id, p.RegionCount)
		}
	}
	if len(p.FirstNeuronIDs) != len(p.ProxyNodeIDs) {
		return fmt.Errorf("first_neuron_ids has %d entries for %d proxy nodes",
			len(p.FirstNeuronIDs), len(p.ProxyNodeIDs))
	}
	if p.PopulationSize <= 0 {
		return fmt.Errorf("population_size must be positive, got %d", p.PopulationSize)
	}
	if p.SpikeWindowMs <= 0 {
		return fmt.Errorf("spike_window_ms must be positive, got %v", p.SpikeWindowMs)
	}
	if p.FiringRateScale <= 0 {
		return fmt.Errorf("firing_rate_scale must be positive, got %v", p.FiringRateScale)
	}
	return nil
}

// WindowCount returns how many synchronization windows cover the full
// simulation length. A partial trailing window counts as a full one.
func (p Parameters) WindowCount() int {
	n := int(p.SimulationLengthMs / p.SynchronizationTimeMs)
	if float64(n)*p.SynchronizationTimeMs < p.SimulationLengthMs {
		n++
	}
	return n
}
