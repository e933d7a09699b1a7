// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scale

import (
	"errors"
	"math"
	"testing"

	"github.com/emer/microcircuit/faults"
)

// difTol is the numerical difference tolerance for comparing vs. target values
const difTol = 1.0e-9

func twoPopInputs(kScl float64) *Inputs {
	return &Inputs{
		NFull:        []int{100, 50},
		NScaling:     1,
		KScaling:     kScl,
		Synapses:     [][]float64{{1000, 500}, {500, 1000}},
		Weights:      [][]float64{{1, 1}, {1, 1}},
		WeightStd:    [][]float64{{0.1, 0.1}, {0.1, 0.1}},
		DC:           []float64{0, 0},
		WFromPSP:     87.8,
		Rates:        []float64{3, 8},
		KExt:         []float64{1600, 1500},
		BgRate:       8,
		TauSyn:       0.5,
		PoissonInput: true,
	}
}

func TestPassThrough(t *testing.T) {
	in := twoPopInputs(1)
	in.Weights = [][]float64{{87.8, -351.2}, {175.6, -351.2}}
	in.DC = []float64{12, -3}
	st, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in.Weights {
		for j := range in.Weights[i] {
			if st.Weights[i][j] != in.Weights[i][j] {
				t.Errorf("W'[%d][%d] = %v, want %v", i, j, st.Weights[i][j], in.Weights[i][j])
			}
			if st.Synapses[i][j] != in.Synapses[i][j] {
				t.Errorf("S'[%d][%d] = %v, want %v", i, j, st.Synapses[i][j], in.Synapses[i][j])
			}
		}
		if st.DC[i] != in.DC[i] {
			t.Errorf("DC'[%d] = %v, want %v", i, st.DC[i], in.DC[i])
		}
	}
	if st.WExt != in.WFromPSP {
		t.Errorf("w_ext = %v, want %v", st.WExt, in.WFromPSP)
	}
	// outputs must not alias the inputs
	st.Weights[0][0] = 0
	if in.Weights[0][0] == 0 {
		t.Errorf("scaled weights alias input weights")
	}
}

func TestTwoPopScenario(t *testing.T) {
	in := twoPopInputs(0.5)
	st, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{500, 250}, {250, 500}}
	for i := range want {
		for j := range want[i] {
			if st.Synapses[i][j] != want[i][j] {
				t.Errorf("S_scaled[%d][%d] = %v, want %v", i, j, st.Synapses[i][j], want[i][j])
			}
			if c := st.SynapseCount(i, j); c != int(want[i][j]) {
				t.Errorf("SynapseCount(%d, %d) = %d, want %v", i, j, c, want[i][j])
			}
			if !(st.Weights[i][j] > in.Weights[i][j]) {
				t.Errorf("W'[%d][%d] = %v not inflated above %v", i, j, st.Weights[i][j], in.Weights[i][j])
			}
		}
	}
	if !(st.WExt > in.WFromPSP) {
		t.Errorf("w_ext = %v not inflated above %v", st.WExt, in.WFromPSP)
	}
	// indegree of the full network: 1000 synapses over 100 targets
	if dif := math.Abs(st.Indegrees[0][0] - 10); dif > difTol {
		t.Errorf("K_full[0][0] = %v, want 10", st.Indegrees[0][0])
	}
}

func TestMeanInputPreserved(t *testing.T) {
	for _, ks := range []float64{0.9, 0.5, 0.25, 0.1, 0.01} {
		for _, poisson := range []bool{true, false} {
			in := twoPopInputs(ks)
			in.Weights = [][]float64{{87.8, -351.2}, {175.6, -351.2}}
			in.DC = []float64{5, 0}
			in.PoissonInput = poisson
			st, err := Compute(in)
			if err != nil {
				t.Fatal(err)
			}
			for i := range in.NFull {
				full := in.MeanInput(i)
				scl := st.MeanInput(in, i)
				if dif := math.Abs(full - scl); dif > 1.0e-6*math.Max(1, math.Abs(full)) {
					t.Errorf("K %v poisson %v pop %d: mean input full %v scaled %v dif %v", ks, poisson, i, full, scl, dif)
				}
			}
		}
	}
}

func TestVarianceShotNoise(t *testing.T) {
	// K * w^2 is invariant under the 1/sqrt(K) rule
	in := twoPopInputs(0.3)
	st, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in.Weights {
		for j := range in.Weights[i] {
			full := st.Indegrees[i][j] * in.Weights[i][j] * in.Weights[i][j]
			scl := st.Indegrees[i][j] * st.KScaling * st.Weights[i][j] * st.Weights[i][j]
			if dif := math.Abs(full - scl); dif > 1.0e-9*full {
				t.Errorf("K w^2 [%d][%d] full %v scaled %v", i, j, full, scl)
			}
		}
	}
}

func TestCountsNonNegative(t *testing.T) {
	in := twoPopInputs(0.0001)
	in.Synapses = [][]float64{{0, 3}, {1, 0.4}}
	st, err := Compute(in)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in.Synapses {
		for j := range in.Synapses[i] {
			if c := st.SynapseCount(i, j); c < 0 {
				t.Errorf("SynapseCount(%d, %d) = %d", i, j, c)
			}
		}
	}
}

func TestComputeErrors(t *testing.T) {
	cases := map[string]func(in *Inputs){
		"zero K":        func(in *Inputs) { in.KScaling = 0 },
		"negative N":    func(in *Inputs) { in.NScaling = -1 },
		"NaN weight":    func(in *Inputs) { in.Weights[1][0] = math.NaN() },
		"Inf synapses":  func(in *Inputs) { in.Synapses[0][1] = math.Inf(1) },
		"short DC":      func(in *Inputs) { in.DC = []float64{0} },
		"ragged matrix": func(in *Inputs) { in.WeightStd[1] = []float64{0.1} },
		"NaN rate":      func(in *Inputs) { in.Rates[0] = math.NaN() },
		"NaN psp":       func(in *Inputs) { in.WFromPSP = math.NaN() },
		"huge weight":   func(in *Inputs) { in.Weights[0][0] = math.MaxFloat64; in.KScaling = 1.0e-10 },
	}
	for name, mod := range cases {
		in := twoPopInputs(0.5)
		mod(in)
		_, err := Compute(in)
		if !errors.Is(err, faults.ErrConfiguration) {
			t.Errorf("%s: got err %v, want configuration error", name, err)
		}
	}
}

func TestScaleThalamic(t *testing.T) {
	w, syn := ScaleThalamic(10, []float64{100, 0, 40}, 0.25)
	if dif := math.Abs(w - 20); dif > difTol {
		t.Errorf("thalamic weight %v, want 20", w)
	}
	want := []float64{25, 0, 10}
	for i := range want {
		if syn[i] != want[i] {
			t.Errorf("thalamic synapses[%d] = %v, want %v", i, syn[i], want[i])
		}
	}
	w, syn = ScaleThalamic(10, []float64{100}, 1)
	if w != 10 || syn[0] != 100 {
		t.Errorf("K 1 changed thalamic values: %v %v", w, syn)
	}
}
