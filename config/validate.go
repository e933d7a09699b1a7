// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"math"

	"github.com/emer/microcircuit/faults"
)

// Validate checks every group, returning the first ErrConfiguration found.
// Update must have been called first.
func (cfg *Config) Validate() error {
	if err := cfg.Sim.Validate(); err != nil {
		return err
	}
	if err := cfg.Net.Validate(cfg.Sim.Resolution); err != nil {
		return err
	}
	return cfg.Stim.Validate(cfg.Net.NPops(), cfg.Sim.Resolution)
}

func (sp *SimParams) Validate() error {
	if !positive(sp.Resolution) {
		return faults.Configf("Sim.Resolution must be > 0, is %v", sp.Resolution)
	}
	if !finite(sp.MaxDelay) || sp.MaxDelay < sp.Resolution {
		return faults.Configf("Sim.MaxDelay %v must be >= Resolution %v", sp.MaxDelay, sp.Resolution)
	}
	if sp.Threads < 1 {
		return faults.Configf("Sim.Threads must be >= 1, is %d", sp.Threads)
	}
	if !finite(sp.TSim) || sp.TSim < 0 {
		return faults.Configf("Sim.TSim must be >= 0, is %v", sp.TSim)
	}
	if !positive(sp.RecVInt) {
		return faults.Configf("Sim.RecVInt must be > 0, is %v", sp.RecVInt)
	}
	return nil
}

func (np *NeuronParams) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{{"CM", np.CM}, {"TauM", np.TauM}, {"TauSynEx", np.TauSynEx}, {"TauSynIn", np.TauSynIn}} {
		if !positive(v.val) {
			return faults.Configf("Net.Neuron.%s must be > 0, is %v", v.name, v.val)
		}
	}
	if np.TauM == np.TauSynEx || np.TauM == np.TauSynIn {
		return faults.Configf("Net.Neuron.TauM must differ from the synaptic time constants")
	}
	if !finite(np.EL) || !finite(np.VTh) || !finite(np.VReset) {
		return faults.Configf("Net.Neuron potentials must be finite")
	}
	if np.VReset >= np.VTh {
		return faults.Configf("Net.Neuron.VReset %v must be below VTh %v", np.VReset, np.VTh)
	}
	if !finite(np.TRef) || np.TRef < 0 {
		return faults.Configf("Net.Neuron.TRef must be >= 0, is %v", np.TRef)
	}
	return nil
}

func (np *NetParams) Validate(resolution float64) error {
	n := np.NPops()
	if n == 0 {
		return faults.Configf("Net.Populations is empty")
	}
	if len(np.Types) != n {
		return faults.Configf("Net.Types has %d entries for %d populations", len(np.Types), n)
	}
	for j, t := range np.Types {
		if t != Excitatory && t != Inhibitory {
			return faults.Configf("Net.Types[%d] = %q is not E or I", j, t)
		}
	}
	if len(np.NFull) != n {
		return faults.Configf("Net.NFull has %d entries for %d populations", len(np.NFull), n)
	}
	for i, nf := range np.NFull {
		if nf < 0 {
			return faults.Configf("Net.NFull[%d] must be >= 0, is %d", i, nf)
		}
	}
	if !positive(np.NScaling) {
		return faults.Configf("Net.NScaling must be > 0, is %v", np.NScaling)
	}
	if !positive(np.KScaling) {
		return faults.Configf("Net.KScaling must be > 0, is %v", np.KScaling)
	}
	if len(np.Synapses) == 0 {
		if err := checkMatrix("Net.ConnProbs", np.ConnProbs, n, 0, 1); err != nil {
			return err
		}
		for i := range np.ConnProbs {
			for j, p := range np.ConnProbs[i] {
				if p >= 1 {
					return faults.Configf("Net.ConnProbs[%d][%d] must be < 1, is %v", i, j, p)
				}
			}
		}
	} else if err := checkMatrix("Net.Synapses", np.Synapses, n, 0, math.Inf(1)); err != nil {
		return err
	}
	if err := np.Neuron.Validate(); err != nil {
		return err
	}
	if err := checkMatrix("Net.PSPMean", np.PSPMean, n, math.Inf(-1), math.Inf(1)); err != nil {
		return err
	}
	if err := checkMatrix("Net.PSPStd", np.PSPStd, n, 0, math.Inf(1)); err != nil {
		return err
	}
	if err := checkMatrix("Net.MeanDelay", np.MeanDelay, n, resolution, math.Inf(1)); err != nil {
		return err
	}
	if err := checkMatrix("Net.StdDelay", np.StdDelay, n, 0, math.Inf(1)); err != nil {
		return err
	}
	if err := checkVector("Net.KExt", np.KExt, n, 0); err != nil {
		return err
	}
	if err := checkVector("Net.FullMeanRates", np.FullMeanRates, n, 0); err != nil {
		return err
	}
	if !finite(np.BgRate) || np.BgRate < 0 {
		return faults.Configf("Net.BgRate must be >= 0, is %v", np.BgRate)
	}
	if np.PoissonInput && (!finite(np.PoissonDelay) || np.PoissonDelay < resolution) {
		return faults.Configf("Net.PoissonDelay %v must be >= resolution %v", np.PoissonDelay, resolution)
	}
	for _, r := range np.Recorders {
		if r != SpikeRecorder && r != Voltmeter {
			return faults.Configf("Net.Recorders: unknown device %q", r)
		}
	}
	return nil
}

// Validate checks the stimulus parameters that are switched on.
func (sp *StimParams) Validate(npops int, resolution float64) error {
	if sp.ThalamicInput {
		if sp.NThal <= 0 {
			return faults.Configf("Stim.NThal must be > 0, is %d", sp.NThal)
		}
		if !finite(sp.ThRate) || sp.ThRate < 0 {
			return faults.Configf("Stim.ThRate must be >= 0, is %v", sp.ThRate)
		}
		if !finite(sp.ThStart) || sp.ThStart < 0 || !finite(sp.ThDuration) || sp.ThDuration < 0 {
			return faults.Configf("Stim thalamic start and duration must be >= 0")
		}
		if !finite(sp.PSPth) {
			return faults.Configf("Stim.PSPth must be finite")
		}
		if err := checkVector("Stim.DelayTh", sp.DelayTh, npops, resolution); err != nil {
			return err
		}
		if err := checkVector("Stim.DelayThSd", sp.DelayThSd, npops, 0); err != nil {
			return err
		}
		if err := checkVector("Stim.ConnProbsTh", sp.ConnProbsTh, npops, 0); err != nil {
			return err
		}
		for i, p := range sp.ConnProbsTh {
			if p >= 1 {
				return faults.Configf("Stim.ConnProbsTh[%d] must be < 1, is %v", i, p)
			}
		}
	}
	if sp.DCInput {
		if !finite(sp.DCStart) || sp.DCStart < 0 || !finite(sp.DCDur) || sp.DCDur < 0 {
			return faults.Configf("Stim DC start and duration must be >= 0")
		}
		if err := checkVector("Stim.DCAmp", sp.DCAmp, npops, math.Inf(-1)); err != nil {
			return err
		}
	}
	return nil
}

func checkMatrix(name string, m [][]float64, n int, lo, hi float64) error {
	if len(m) != n {
		return faults.Configf("%s has %d rows, want %d", name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return faults.Configf("%s row %d has %d columns, want %d", name, i, len(row), n)
		}
		for j, v := range row {
			if !finite(v) || v < lo || v > hi {
				return faults.Configf("%s[%d][%d] = %v out of range [%v, %v]", name, i, j, v, lo, hi)
			}
		}
	}
	return nil
}

func checkVector(name string, v []float64, n int, lo float64) error {
	if len(v) != n {
		return faults.Configf("%s has %d entries, want %d", name, len(v), n)
	}
	for i, x := range v {
		if !finite(x) || x < lo {
			return faults.Configf("%s[%d] = %v must be finite and >= %v", name, i, x, lo)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func positive(v float64) bool {
	return finite(v) && v > 0
}
