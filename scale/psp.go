// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scale

import "math"

// PSCOverPSP returns the ratio between the peak post-synaptic current
// and the peak post-synaptic potential it produces in an
// exponential-current LIF neuron with capacitance cm (pF), membrane time
// constant tauM and synaptic time constant tauSyn (ms).
// tauM must differ from tauSyn.
func PSCOverPSP(cm, tauM, tauSyn float64) float64 {
	r := tauM / tauSyn
	d := tauM - tauSyn
	peak := math.Pow(r, -tauM/d) - math.Pow(r, -tauSyn/d)
	return 1 / (1 / cm * tauM * tauSyn / (tauSyn - tauM) * peak)
}

// PSCFromPSP converts a PSP amplitude in mV into a synaptic weight in pA.
func PSCFromPSP(psp, cm, tauM, tauSyn float64) float64 {
	return PSCOverPSP(cm, tauM, tauSyn) * psp
}

// WeightMatrix converts a PSP amplitude matrix into a weight matrix.
func WeightMatrix(psp [][]float64, cm, tauM, tauSyn float64) [][]float64 {
	f := PSCOverPSP(cm, tauM, tauSyn)
	w := make([][]float64, len(psp))
	for i, row := range psp {
		w[i] = make([]float64, len(row))
		for j, v := range row {
			w[i][j] = f * v
		}
	}
	return w
}

// BackgroundDC returns the constant current per population (pA) that
// replaces Poisson background input of the given rate (spikes/s),
// indegree kExt and weight wExt, for synaptic time constant tauSyn (ms).
func BackgroundDC(bgRate float64, kExt []float64, wExt, tauSyn float64) []float64 {
	dc := make([]float64, len(kExt))
	for i, k := range kExt {
		dc[i] = bgRate * k * wExt * tauSyn * 0.001
	}
	return dc
}
