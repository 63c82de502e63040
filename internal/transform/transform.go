// Package transform converts between the two representations exchanged
// across scales: spike trains from the spiking side and population firing
// rates for the rate side. These are elementary reference transformations;
// the science lives in the parameter file, not here.
package transform

import (
	"math"
	"math/rand"
	"sort"

	"github.com/multiscale-cosim/cosim-adapters/internal/wire"
)

// Population maps a proxy node of the rate model to a contiguous block of
// neuron IDs on the spiking side.
type Population struct {
	NodeID      int32
	FirstNeuron int32
	Size        int32
}

// Contains reports whether the sender ID belongs to this population.
func (p Population) Contains(sender int32) bool {
	return sender >= p.FirstNeuron && sender < p.FirstNeuron+p.Size
}

// SpikesToRates bins one synchronization window of spikes into mean
// population firing rates. The window [startMs, endMs) is sliced into
// sub-windows of widthMs (the last slice may be shorter); each population
// yields one RateSample per slice, in time order. Spikes outside every
// population are dropped.
func SpikesToRates(events []wire.SpikeEvent, pops []Population, startMs, endMs, widthMs float64) []wire.RateSample {
	if endMs <= startMs || widthMs <= 0 || len(pops) == 0 {
		return nil
	}

	nSlices := int(math.Ceil((endMs - startMs) / widthMs))
	counts := make([][]int, len(pops))
	for i := range counts {
		counts[i] = make([]int, nSlices)
	}

	for _, ev := range events {
		if ev.TimeMs < startMs || ev.TimeMs >= endMs {
			continue
		}
		slice := int((ev.TimeMs - startMs) / widthMs)
		if slice >= nSlices {
			slice = nSlices - 1
		}
		for i, pop := range pops {
			if pop.Contains(ev.SenderID) {
				counts[i][slice]++
				break
			}
		}
	}

	samples := make([]wire.RateSample, 0, len(pops)*nSlices)
	for s := 0; s < nSlices; s++ {
		sliceStart := startMs + float64(s)*widthMs
		sliceEnd := math.Min(sliceStart+widthMs, endMs)
		durSec := (sliceEnd - sliceStart) / 1000.0
		for i, pop := range pops {
			rate := 0.0
			if pop.Size > 0 && durSec > 0 {
				rate = float64(counts[i][s]) / (float64(pop.Size) * durSec)
			}
			samples = append(samples, wire.RateSample{
				NodeID:  pop.NodeID,
				RateHz:  rate,
				StartMs: sliceStart,
				EndMs:   sliceEnd,
			})
		}
	}
	return samples
}

// Generator produces spike trains from rate waves. It is deterministic for
// a given seed, so co-simulation runs are reproducible.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded for reproducible output.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// RatesToSpikes draws an inhomogeneous-Poisson spike train for every neuron
// of every addressed population. Each RateSample drives its population over
// [StartMs, EndMs); samples whose NodeID matches no population are ignored.
// Events are returned sorted by time.
func (g *Generator) RatesToSpikes(samples []wire.RateSample, pops []Population) []wire.SpikeEvent {
	byNode := make(map[int32]Population, len(pops))
	for _, pop := range pops {
		byNode[pop.NodeID] = pop
	}

	var events []wire.SpikeEvent
	for _, s := range samples {
		pop, ok := byNode[s.NodeID]
		if !ok || s.RateHz <= 0 || s.EndMs <= s.StartMs {
			continue
		}
		meanISIMs := 1000.0 / s.RateHz
		for n := int32(0); n < pop.Size; n++ {
			sender := pop.FirstNeuron + n
			t := s.StartMs + g.rng.ExpFloat64()*meanISIMs
			for t < s.EndMs {
				events = append(events, wire.SpikeEvent{SenderID: sender, TimeMs: t})
				t += g.rng.ExpFloat64() * meanISIMs
			}
		}
	}

	sort.Slice(events, func(i, j int) bool { return events[i].TimeMs < events[j].TimeMs })
	return events
}
