// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scale

import (
	"math"

	"github.com/emer/microcircuit/faults"
)

// pairSynapses returns the expected number of synapses between a population
// of size ni and one of size nj connected with probability p, when
// multapses are allowed: log(1-p) / log((ni*nj - 1) / (ni*nj)).
func pairSynapses(ni, nj int, p float64) (float64, error) {
	if math.IsNaN(p) || p < 0 || p >= 1 {
		return 0, faults.Configf("connection probability %v out of range [0, 1)", p)
	}
	if p == 0 || ni == 0 || nj == 0 {
		return 0, nil
	}
	prod := float64(ni) * float64(nj)
	if prod <= 1 {
		return p * prod, nil
	}
	return math.Log(1-p) / math.Log((prod-1)/prod), nil
}

// TotalSynapses returns the full-indegree synapse counts S[i][j] from source
// j onto target i for a network whose sizes are nFull scaled by nScaling.
// S[i][j] / (nFull[i] * nScaling) is exactly the full-scale indegree, so the
// counts stay fractional here and are truncated when connections are made.
func TotalSynapses(nFull []int, connProbs [][]float64, nScaling float64) ([][]float64, error) {
	n := len(nFull)
	if len(connProbs) != n {
		return nil, faults.Configf("connection probabilities have %d rows for %d populations", len(connProbs), n)
	}
	syn := make([][]float64, n)
	for i := range syn {
		if len(connProbs[i]) != n {
			return nil, faults.Configf("connection probabilities row %d has %d columns, want %d", i, len(connProbs[i]), n)
		}
		syn[i] = make([]float64, n)
		if nFull[i] == 0 {
			continue
		}
		nScaled := float64(nFull[i]) * nScaling
		for j := range syn[i] {
			k, err := pairSynapses(nFull[i], nFull[j], connProbs[i][j])
			if err != nil {
				return nil, err
			}
			syn[i][j] = k * nScaled / float64(nFull[i])
		}
	}
	return syn, nil
}

// ThalamicSynapses returns the number of synapses from a thalamic
// population of size nThal onto each population, derived as in
// TotalSynapses.
func ThalamicSynapses(nThal int, nFull []int, connProbs []float64, nScaling float64) ([]float64, error) {
	if len(connProbs) != len(nFull) {
		return nil, faults.Configf("thalamic connection probabilities have %d entries for %d populations", len(connProbs), len(nFull))
	}
	syn := make([]float64, len(nFull))
	for i, nf := range nFull {
		if nf == 0 {
			continue
		}
		k, err := pairSynapses(nThal, nf, connProbs[i])
		if err != nil {
			return nil, err
		}
		syn[i] = k * nScaling
	}
	return syn, nil
}
