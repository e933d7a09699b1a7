// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import "math"

// PopulationNames are the 8 populations of the cortical microcircuit.
var PopulationNames = []string{"L23E", "L23I", "L4E", "L4I", "L5E", "L5I", "L6E", "L6I"}

// full-scale sizes per population
var defaultNFull = []int{20683, 5834, 21915, 5479, 4850, 1065, 14395, 2948}

// connection probabilities, [target][source]
var defaultConnProbs = [][]float64{
	{0.1009, 0.1689, 0.0437, 0.0818, 0.0323, 0., 0.0076, 0.},
	{0.1346, 0.1371, 0.0316, 0.0515, 0.0755, 0., 0.0042, 0.},
	{0.0077, 0.0059, 0.0497, 0.135, 0.0067, 0.0003, 0.0453, 0.},
	{0.0691, 0.0029, 0.0794, 0.1597, 0.0033, 0., 0.1057, 0.},
	{0.1004, 0.0622, 0.0505, 0.0057, 0.0831, 0.3726, 0.0204, 0.},
	{0.0548, 0.0269, 0.0257, 0.0022, 0.06, 0.3158, 0.0086, 0.},
	{0.0156, 0.0066, 0.0211, 0.0166, 0.0572, 0.0197, 0.0396, 0.2252},
	{0.0364, 0.001, 0.0034, 0.0005, 0.0277, 0.008, 0.0658, 0.1443},
}

// number of external inputs per neuron
var defaultKExt = []float64{1600, 1500, 2100, 1900, 2000, 1900, 2900, 2100}

// mean rates of the full-scale network in spikes/s
var defaultFullMeanRates = []float64{0.971, 2.868, 4.746, 5.396, 8.142, 9.078, 0.991, 7.523}

// thalamic connection probabilities
var defaultConnProbsTh = []float64{0.0, 0.0, 0.0983, 0.0619, 0.0, 0.0, 0.0512, 0.0196}

func (sp *SimParams) Defaults() {
	sp.Resolution = 0.1
	sp.MaxDelay = 20
	sp.Threads = 1
	sp.MasterSeed = 55
	sp.DataPath = "data"
	sp.TSim = 1000
	sp.RecVInt = 1
	sp.Overwrite = true
	sp.TSV = true
	sp.EventDB = false
}

func (np *NeuronParams) Defaults() {
	np.CM = 250
	np.TauM = 10
	np.TauSynEx = 0.5
	np.TauSynIn = 0.5
	np.EL = -65
	np.VTh = -50
	np.VReset = -65
	np.TRef = 2
}

func (np *NetParams) Defaults() {
	np.Populations = append([]string(nil), PopulationNames...)
	np.Types = nil
	np.NeuronModel = "iaf_psc_exp"
	np.NFull = append([]int(nil), defaultNFull...)
	np.NScaling = 0.1
	np.KScaling = 0.1
	np.ConnProbs = copyMatrix(defaultConnProbs)
	np.Synapses = nil
	np.Neuron.Defaults()
	np.PSPe = 0.15
	np.PSPsd = 0.1
	np.G = -4
	np.PSPMean = nil
	np.PSPStd = nil
	np.DelayE = 1.5
	np.DelayI = 0.75
	np.DelayRelStd = 0.5
	np.MeanDelay = nil
	np.StdDelay = nil
	np.KExt = append([]float64(nil), defaultKExt...)
	np.BgRate = 8
	np.FullMeanRates = append([]float64(nil), defaultFullMeanRates...)
	np.PoissonInput = true
	np.PoissonDelay = 1.5
	np.Recorders = []string{SpikeRecorder}
}

// Update fills the derived matrices that are empty.
// The L4E to L2/3E PSP is doubled, as in Potjans & Diesmann (2014).
func (np *NetParams) Update() {
	n := np.NPops()
	if len(np.Types) == 0 {
		np.Types = make([]PopType, n)
		for j := range np.Types {
			if j%2 == 1 {
				np.Types[j] = Inhibitory
			} else {
				np.Types[j] = Excitatory
			}
		}
	}
	if len(np.PSPMean) == 0 {
		np.PSPMean = newMatrix(n)
		for i := range np.PSPMean {
			for j := range np.PSPMean[i] {
				if np.IsInhibitory(j) {
					np.PSPMean[i][j] = np.G * np.PSPe
				} else {
					np.PSPMean[i][j] = np.PSPe
				}
			}
		}
		l23e, l4e := indexOf(np.Populations, "L23E"), indexOf(np.Populations, "L4E")
		if l23e >= 0 && l4e >= 0 {
			np.PSPMean[l23e][l4e] = 2 * np.PSPe
		}
	}
	if len(np.PSPStd) == 0 {
		np.PSPStd = newMatrix(n)
		for i := range np.PSPStd {
			for j := range np.PSPStd[i] {
				np.PSPStd[i][j] = np.PSPsd
			}
		}
	}
	if len(np.MeanDelay) == 0 {
		np.MeanDelay = newMatrix(n)
		for i := range np.MeanDelay {
			for j := range np.MeanDelay[i] {
				if np.IsInhibitory(j) {
					np.MeanDelay[i][j] = np.DelayI
				} else {
					np.MeanDelay[i][j] = np.DelayE
				}
			}
		}
	}
	if len(np.StdDelay) == 0 {
		np.StdDelay = newMatrix(n)
		for i := range np.StdDelay {
			for j := range np.StdDelay[i] {
				np.StdDelay[i][j] = np.MeanDelay[i][j] * np.DelayRelStd
			}
		}
	}
}

func (sp *StimParams) Defaults() {
	n := len(PopulationNames)
	sp.ThalamicInput = false
	sp.NThal = 902
	sp.ThRate = 120
	sp.ThStart = 700
	sp.ThDuration = 10
	sp.PSPth = 0.15
	sp.DelayTh = filled(n, 1.5)
	sp.DelayThSd = filled(n, 0.75)
	sp.ConnProbsTh = append([]float64(nil), defaultConnProbsTh...)
	sp.DCInput = false
	sp.DCStart = 650
	sp.DCDur = 100
	sp.DCAmp = filled(n, 0.3)
}

// Update resizes per-population stimulus vectors that are empty.
func (sp *StimParams) Update(npops int) {
	if len(sp.DelayTh) == 0 {
		sp.DelayTh = filled(npops, 1.5)
	}
	if len(sp.DelayThSd) == 0 {
		sp.DelayThSd = filled(npops, 0.75)
	}
	if len(sp.ConnProbsTh) == 0 {
		sp.ConnProbsTh = filled(npops, 0)
	}
	if len(sp.DCAmp) == 0 {
		sp.DCAmp = filled(npops, 0)
	}
}

// ThStop returns the end time of the thalamic input.
func (sp *StimParams) ThStop() float64 {
	return sp.ThStart + sp.ThDuration
}

// DCStop returns the end time of the DC stimulus.
func (sp *StimParams) DCStop() float64 {
	return sp.DCStart + sp.DCDur
}

// ScaledSize returns round(n * scl), the number of neurons
// actually created for a population of full size n.
func ScaledSize(n int, scl float64) int {
	return int(math.Round(float64(n) * scl))
}

func newMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	return m
}

func copyMatrix(src [][]float64) [][]float64 {
	m := make([][]float64, len(src))
	for i := range src {
		m[i] = append([]float64(nil), src[i]...)
	}
	return m
}

func filled(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func indexOf(names []string, nm string) int {
	for i, n := range names {
		if n == nm {
			return i
		}
	}
	return -1
}
