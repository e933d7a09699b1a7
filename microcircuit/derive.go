// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package microcircuit

import (
	"github.com/emer/microcircuit/config"
	"github.com/emer/microcircuit/conn"
	"github.com/emer/microcircuit/faults"
	"github.com/emer/microcircuit/scale"
)

// Derived holds everything computed from the configuration before any
// kernel call. It is immutable once returned by Derive.
type Derived struct {

	// scaled size of each population
	Sizes []int

	// inputs of the scaling engine
	Inputs scale.Inputs

	// scaled weights, external weight and currents
	State *scale.State

	// recurrent connection plans in (target, source) order
	Pairs []conn.PairPlan

	// background Poisson plans, nil if background input is a current
	Poisson []conn.ExternalPlan

	// rate of the background generator of each population in spikes/s
	PoissonRates []float64

	// thalamic plans, nil if thalamic input is off
	Thalamic []conn.ExternalPlan

	// scaled thalamic weight and synapse counts
	ThalWeight   float64
	ThalSynapses []float64

	// stimulus current amplitude of each population in pA, nil if off
	DCAmp []float64
}

// Derive computes the scaled state and all connection plans from cfg,
// which must be updated and validated. Failures are ErrConfiguration.
func Derive(cfg *config.Config) (*Derived, error) {
	net := &cfg.Net
	nrn := &net.Neuron
	n := net.NPops()
	d := &Derived{Sizes: make([]int, n)}
	for i := range d.Sizes {
		d.Sizes[i] = net.ScaledN(i)
	}

	syn := net.Synapses
	if len(syn) == 0 {
		var err error
		syn, err = scale.TotalSynapses(net.NFull, net.ConnProbs, net.NScaling)
		if err != nil {
			return nil, err
		}
	}
	wFromPSP := scale.PSCFromPSP(net.PSPe, nrn.CM, nrn.TauM, nrn.TauSynEx)
	dc := make([]float64, n)
	if !net.PoissonInput {
		dc = scale.BackgroundDC(net.BgRate, net.KExt, wFromPSP, nrn.TauSynEx)
	}
	d.Inputs = scale.Inputs{
		NFull:        net.NFull,
		NScaling:     net.NScaling,
		KScaling:     net.KScaling,
		Synapses:     syn,
		Weights:      scale.WeightMatrix(net.PSPMean, nrn.CM, nrn.TauM, nrn.TauSynEx),
		WeightStd:    net.PSPStd,
		DC:           dc,
		WFromPSP:     wFromPSP,
		Rates:        net.FullMeanRates,
		KExt:         net.KExt,
		BgRate:       net.BgRate,
		TauSyn:       nrn.TauSynEx,
		PoissonInput: net.PoissonInput,
	}
	st, err := scale.Compute(&d.Inputs)
	if err != nil {
		return nil, err
	}
	d.State = st

	inhib := make([]bool, n)
	for j := range inhib {
		inhib[j] = net.IsInhibitory(j)
	}
	d.Pairs, err = conn.Plan(st, net.MeanDelay, net.StdDelay, cfg.Sim.Resolution, inhib)
	if err != nil {
		return nil, err
	}

	if net.PoissonInput {
		d.Poisson, err = conn.PoissonPlans(n, st.WExt, net.PoissonDelay)
		if err != nil {
			return nil, err
		}
		d.PoissonRates = make([]float64, n)
		for i := range d.PoissonRates {
			d.PoissonRates[i] = net.BgRate * st.KExt[i]
		}
	}

	stim := &cfg.Stim
	if stim.ThalamicInput {
		thSyn, err := scale.ThalamicSynapses(stim.NThal, net.NFull, stim.ConnProbsTh, net.NScaling)
		if err != nil {
			return nil, err
		}
		d.ThalWeight = scale.PSCFromPSP(stim.PSPth, nrn.CM, nrn.TauM, nrn.TauSynEx)
		d.ThalSynapses = thSyn
		if net.KScaling != 1 {
			d.ThalWeight, d.ThalSynapses = scale.ScaleThalamic(d.ThalWeight, thSyn, net.KScaling)
		}
		d.Thalamic, err = conn.ThalamicPlans(d.ThalWeight, net.PSPsd, d.ThalSynapses, stim.DelayTh, stim.DelayThSd, cfg.Sim.Resolution)
		if err != nil {
			return nil, err
		}
	}

	if stim.DCInput {
		d.DCAmp = make([]float64, n)
		for i := range d.DCAmp {
			d.DCAmp[i] = net.KExt[i] * stim.DCAmp[i]
		}
	}

	if err := d.checkDelays(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// checkDelays rejects fixed delays the kernel would refuse.
func (d *Derived) checkDelays(cfg *config.Config) error {
	if d.Poisson != nil && cfg.Net.PoissonDelay > cfg.Sim.MaxDelay {
		return faults.Configf("poisson delay %v exceeds max delay %v", cfg.Net.PoissonDelay, cfg.Sim.MaxDelay)
	}
	return nil
}

// SynapseCounts returns the rounded recurrent synapse counts, [target][source].
func (d *Derived) SynapseCounts() [][]int {
	n := len(d.Sizes)
	cnt := make([][]int, n)
	for i := range cnt {
		cnt[i] = make([]int, n)
	}
	for _, pp := range d.Pairs {
		cnt[pp.Target][pp.Source] = pp.Conn.N
	}
	return cnt
}
