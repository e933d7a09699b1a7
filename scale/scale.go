// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package scale computes the weights, external drive weight and compensatory
currents of a microcircuit whose connection density has been reduced.

When indegrees are multiplied by KScaling < 1, every weight (recurrent and
external) is divided by sqrt(KScaling). This keeps K*w^2, and so the input
variance under the Poisson shot-noise approximation, unchanged, but
reduces the mean input by a factor sqrt(KScaling). The lost mean,

	1e-3 * tauSyn * (1 - sqrt(KScaling)) * (sum_j W[i][j] K[i][j] rate[j] + wPSP KExt[i] bgRate)

is added back to each population as a constant current. The mean input is
matched exactly; the variance only under the shot-noise approximation,
since independent connectivity makes exact matching of both moments
impossible in general.

All functions here are pure and do not touch the kernel.
*/
package scale

import (
	"math"

	"github.com/emer/microcircuit/faults"
)

// Inputs are the full-scale quantities the scaled state is derived from.
// Matrices are indexed [target][source].
type Inputs struct {

	// full-scale population sizes
	NFull []int

	// neuron number scaling factor
	NScaling float64

	// indegree scaling factor
	KScaling float64

	// full-indegree synapse counts S_full
	Synapses [][]float64

	// mean weights W in pA
	Weights [][]float64

	// relative weight standard deviations
	WeightStd [][]float64

	// compensatory currents before scaling, in pA
	DC []float64

	// weight derived from the excitatory PSP, used for external input
	WFromPSP float64

	// full-scale mean rates of each population, spikes/s
	Rates []float64

	// number of external inputs per neuron (full scale)
	KExt []float64

	// rate of each external input, spikes/s
	BgRate float64

	// excitatory synaptic time constant in ms
	TauSyn float64

	// whether external input is delivered as Poisson spikes.
	// If false, it is already part of DC and is not rescaled.
	PoissonInput bool
}

// State is the scaled state consumed by the connectivity planner.
// It is computed once per assembly and not modified afterwards.
type State struct {

	// indegree scaling factor the state was computed for
	KScaling float64

	// full-scale indegrees K_full[i][j] = S_full[i][j] / (NFull[i] * NScaling)
	Indegrees [][]float64

	// scaled synapse counts S_full * KScaling, not yet rounded
	Synapses [][]float64

	// scaled mean weights W'
	Weights [][]float64

	// relative weight standard deviations, unchanged by scaling
	WeightStd [][]float64

	// scaled external input weight
	WExt float64

	// scaled external indegrees KExt * KScaling
	KExt []float64

	// compensatory currents DC' in pA
	DC []float64
}

// Validate checks the shapes and values of the inputs.
func (in *Inputs) Validate() error {
	n := len(in.NFull)
	if n == 0 {
		return faults.Configf("scale: no populations")
	}
	if !posFinite(in.NScaling) || !posFinite(in.KScaling) {
		return faults.Configf("scale: scaling factors must be finite and > 0, are N %v K %v", in.NScaling, in.KScaling)
	}
	for _, m := range []struct {
		name string
		m    [][]float64
	}{{"synapses", in.Synapses}, {"weights", in.Weights}, {"weight std", in.WeightStd}} {
		if err := checkSquare(m.name, m.m, n); err != nil {
			return err
		}
	}
	for _, v := range []struct {
		name string
		v    []float64
	}{{"DC", in.DC}, {"rates", in.Rates}, {"KExt", in.KExt}} {
		if err := checkVec(v.name, v.v, n); err != nil {
			return err
		}
	}
	for i, nf := range in.NFull {
		if nf < 0 {
			return faults.Configf("scale: NFull[%d] = %d is negative", i, nf)
		}
		for j, s := range in.Synapses[i] {
			if s < 0 {
				return faults.Configf("scale: synapses[%d][%d] = %v is negative", i, j, s)
			}
		}
	}
	if !isFinite(in.WFromPSP) || !isFinite(in.BgRate) || !isFinite(in.TauSyn) {
		return faults.Configf("scale: non-finite external input parameters")
	}
	return nil
}

// Compute derives the scaled state. With KScaling == 1 the weights,
// external weight and currents are passed through unchanged.
func Compute(in *Inputs) (*State, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	n := len(in.NFull)
	st := &State{
		KScaling:  in.KScaling,
		Indegrees: Indegrees(in.Synapses, in.NFull, in.NScaling),
		Synapses:  scaleMatrix(in.Synapses, in.KScaling),
		WeightStd: scaleMatrix(in.WeightStd, 1),
		KExt:      make([]float64, n),
	}
	for i := range st.KExt {
		st.KExt[i] = in.KExt[i] * in.KScaling
	}
	if in.KScaling == 1 {
		st.Weights = scaleMatrix(in.Weights, 1)
		st.WExt = in.WFromPSP
		st.DC = append([]float64(nil), in.DC...)
		return st, st.checkFinite()
	}

	sk := math.Sqrt(in.KScaling)
	st.Weights = scaleMatrix(in.Weights, 1/sk)
	st.WExt = in.WFromPSP / sk
	st.DC = make([]float64, n)
	for i := range st.DC {
		x1 := 0.0
		for j := range in.Weights[i] {
			x1 += in.Weights[i][j] * st.Indegrees[i][j] * in.Rates[j]
		}
		if in.PoissonInput {
			x1 += in.WFromPSP * in.KExt[i] * in.BgRate
		}
		st.DC[i] = 0.001*in.TauSyn*(1-sk)*x1 + in.DC[i]
	}
	return st, st.checkFinite()
}

// Indegrees returns K[i][j] = syn[i][j] / (nFull[i] * nScaling),
// zero for empty target populations.
func Indegrees(syn [][]float64, nFull []int, nScaling float64) [][]float64 {
	k := make([][]float64, len(syn))
	for i := range syn {
		k[i] = make([]float64, len(syn[i]))
		den := float64(nFull[i]) * nScaling
		if den == 0 {
			continue
		}
		for j, s := range syn[i] {
			k[i][j] = s / den
		}
	}
	return k
}

// SynapseCount returns the rounded scaled synapse count from j onto i.
func (st *State) SynapseCount(i, j int) int {
	c := int(math.Round(st.Synapses[i][j]))
	if c < 0 {
		return 0
	}
	return c
}

// MeanInput returns the full-scale mean input current (pA) to a neuron of
// population i: recurrent and external synaptic input plus DC.
func (in *Inputs) MeanInput(i int) float64 {
	k := Indegrees(in.Synapses, in.NFull, in.NScaling)
	x := 0.0
	for j := range in.Weights[i] {
		x += k[i][j] * in.Weights[i][j] * in.Rates[j]
	}
	if in.PoissonInput {
		x += in.KExt[i] * in.WFromPSP * in.BgRate
	}
	return 0.001*in.TauSyn*x + in.DC[i]
}

// MeanInput returns the mean input current (pA) to a neuron of population
// i in the scaled network, assuming the full-scale rates of in.
func (st *State) MeanInput(in *Inputs, i int) float64 {
	x := 0.0
	for j := range st.Weights[i] {
		x += st.Indegrees[i][j] * st.KScaling * st.Weights[i][j] * in.Rates[j]
	}
	if in.PoissonInput {
		x += st.KExt[i] * st.WExt * in.BgRate
	}
	return 0.001*in.TauSyn*x + st.DC[i]
}

// ScaleThalamic returns the thalamic weight and synapse counts for the given
// indegree scaling, using the same 1/sqrt(K) weight rule as Compute.
func ScaleThalamic(w float64, syn []float64, kScaling float64) (float64, []float64) {
	out := append([]float64(nil), syn...)
	if kScaling == 1 {
		return w, out
	}
	for i := range out {
		out[i] *= kScaling
	}
	return w / math.Sqrt(kScaling), out
}

func (st *State) checkFinite() error {
	if !isFinite(st.WExt) {
		return faults.Configf("scale: external weight is %v", st.WExt)
	}
	for i := range st.Weights {
		if !isFinite(st.DC[i]) {
			return faults.Configf("scale: DC[%d] is %v", i, st.DC[i])
		}
		for j := range st.Weights[i] {
			if !isFinite(st.Weights[i][j]) || !isFinite(st.Synapses[i][j]) || !isFinite(st.Indegrees[i][j]) {
				return faults.Configf("scale: non-finite value for pair [%d][%d]", i, j)
			}
		}
	}
	return nil
}

func scaleMatrix(m [][]float64, f float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = v * f
		}
	}
	return out
}

func checkSquare(name string, m [][]float64, n int) error {
	if len(m) != n {
		return faults.Configf("scale: %s has %d rows, want %d", name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return faults.Configf("scale: %s row %d has %d columns, want %d", name, i, len(row), n)
		}
		for j, v := range row {
			if !isFinite(v) {
				return faults.Configf("scale: %s[%d][%d] is %v", name, i, j, v)
			}
		}
	}
	return nil
}

func checkVec(name string, v []float64, n int) error {
	if len(v) != n {
		return faults.Configf("scale: %s has %d entries, want %d", name, len(v), n)
	}
	for i, x := range v {
		if !isFinite(x) {
			return faults.Configf("scale: %s[%d] is %v", name, i, x)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func posFinite(v float64) bool {
	return isFinite(v) && v > 0
}
