// Package model implements the reference rate model driven by the simulator
// adapter: a network of generic two-dimensional oscillators with linear
// coupling, advanced by deterministic Heun integration. Proxy nodes receive
// their coupling input from the spiking side instead of from the network.
//
// This is a compact stand-in for an external whole-brain simulator; it
// exists so the adapter lifecycle and the data exchange have real state to
// move, not to reproduce any published model's dynamics.
package model

import (
	"fmt"
	"math"
)

// oscillator parameters of the generic 2D model.
const (
	oscTau   = 1.0
	oscA     = -2.0
	oscB     = -10.0
	oscC     = 0.0
	oscD     = 0.02
	oscE     = 3.0
	oscF     = 1.0
	oscG     = 0.0
	oscAlpha = 1.0
	oscBeta  = 1.0
	oscGamma = 1.0
)

// Config describes a network instance.
type Config struct {
	// Nodes is the number of regions.
	Nodes int

	// DtMs is the integration step in ms.
	DtMs float64

	// Coupling is the linear coupling coefficient.
	Coupling float64

	// ProxyNodes are region indices whose coupling input comes from
	// outside the network.
	ProxyNodes []int
}

// Network is a coupled oscillator network.
type Network struct {
	cfg     Config
	weights [][]float64
	isProxy []bool
	v, w    []float64
	timeMs  float64
}

// New validates cfg and builds a network in a reproducible initial state.
func New(cfg Config) (*Network, error) {
	if cfg.Nodes < 2 {
		return nil, fmt.Errorf("model: need at least 2 nodes, got %d", cfg.Nodes)
	}
	if cfg.DtMs <= 0 {
		return nil, fmt.Errorf("model: dt must be positive, got %v", cfg.DtMs)
	}
	isProxy := make([]bool, cfg.Nodes)
	for _, id := range cfg.ProxyNodes {
		if id < 0 || id >= cfg.Nodes {
			return nil, fmt.Errorf("model: proxy node %d out of range [0, %d)", id, cfg.Nodes)
		}
		isProxy[id] = true
	}

	// Homogeneous all-to-all connectivity without self-connections.
	weights := make([][]float64, cfg.Nodes)
	norm := 1.0 / float64(cfg.Nodes-1)
	for i := range weights {
		weights[i] = make([]float64, cfg.Nodes)
		for j := range weights[i] {
			if i != j {
				weights[i][j] = norm
			}
		}
	}

	nw := &Network{
		cfg:     cfg,
		weights: weights,
		isProxy: isProxy,
		v:       make([]float64, cfg.Nodes),
		w:       make([]float64, cfg.Nodes),
	}
	// Deterministic non-uniform start so nodes do not move in lockstep.
	for i := range nw.v {
		nw.v[i] = 0.1 * math.Sin(float64(i+1))
		nw.w[i] = 0.1 * math.Cos(float64(i+1))
	}
	return nw, nil
}

// TimeMs returns the simulated time.
func (nw *Network) TimeMs() float64 { return nw.timeMs }

// State returns a copy of the V state variable per node.
func (nw *Network) State() []float64 {
	out := make([]float64, len(nw.v))
	copy(out, nw.v)
	return out
}

// derivatives evaluates the oscillator equations for one node given its
// coupling input.
func derivatives(v, w, coupled float64) (dv, dw float64) {
	dv = oscD * oscTau * (-oscF*v*v*v + oscE*v*v + oscG*v + oscAlpha*w + oscGamma*coupled)
	dw = oscD * (oscA + oscB*v + oscC*v*v - oscBeta*w) / oscTau
	return dv, dw
}

// couplingInput computes the afferent linear coupling for node i from
// state v. Proxy nodes take their value from proxyInput instead.
func (nw *Network) couplingInput(i int, v []float64, proxyInput map[int]float64) float64 {
	if nw.isProxy[i] {
		return proxyInput[i]
	}
	sum := 0.0
	for j, wij := range nw.weights[i] {
		sum += wij * v[j]
	}
	return nw.cfg.Coupling * sum
}

// Step advances the network by one dt using Heun's method. proxyInput maps
// proxy node index to the externally supplied activity for this step;
// missing entries read as zero.
func (nw *Network) Step(proxyInput map[int]float64) {
	n := nw.cfg.Nodes
	dt := nw.cfg.DtMs

	dv1 := make([]float64, n)
	dw1 := make([]float64, n)
	for i := 0; i < n; i++ {
		c := nw.couplingInput(i, nw.v, proxyInput)
		dv1[i], dw1[i] = derivatives(nw.v[i], nw.w[i], c)
	}

	// Predictor.
	vp := make([]float64, n)
	wp := make([]float64, n)
	for i := 0; i < n; i++ {
		vp[i] = nw.v[i] + dt*dv1[i]
		wp[i] = nw.w[i] + dt*dw1[i]
	}

	// Corrector.
	for i := 0; i < n; i++ {
		c := nw.couplingInput(i, vp, proxyInput)
		dv2, dw2 := derivatives(vp[i], wp[i], c)
		nw.v[i] += dt * 0.5 * (dv1[i] + dv2)
		nw.w[i] += dt * 0.5 * (dw1[i] + dw2)
	}

	nw.timeMs += dt
}

// Advance steps the network until windowMs of simulated time has elapsed,
// holding proxyInput constant over the window. It returns the node states
// at the end of the window.
func (nw *Network) Advance(windowMs float64, proxyInput map[int]float64) []float64 {
	end := nw.timeMs + windowMs
	// Tolerate float accumulation at window edges.
	for nw.timeMs < end-nw.cfg.DtMs/2 {
		nw.Step(proxyInput)
	}
	return nw.State()
}

// CouplingRates converts the proxy nodes' afferent coupling into
// non-negative firing rates (Hz) using scale. This is what the rate side
// sends toward the spiking side each window.
func (nw *Network) CouplingRates(scale float64) map[int]float64 {
	out := make(map[int]float64, len(nw.cfg.ProxyNodes))
	for _, id := range nw.cfg.ProxyNodes {
		sum := 0.0
		for j, wij := range nw.weights[id] {
			sum += wij * nw.v[j]
		}
		rate := scale * nw.cfg.Coupling * sum
		if rate < 0 {
			rate = 0
		}
		out[id] = rate
	}
	return out
}
