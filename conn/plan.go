// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package conn turns the scaled state into concrete connection plans: the
rule, synapse count, and weight and delay distributions of every
population pair and every external input.

Recurrent pairs use the fixed-total-number rule. Weights are clipped
normal around the scaled mean, clipped at zero on the side that keeps the
sign of the source population: excitatory sources never produce negative
weights, inhibitory sources never positive ones. Delays are clipped normal
with the simulation resolution as lower bound.
*/
package conn

import (
	"fmt"
	"math"

	"github.com/emer/microcircuit/faults"
	"github.com/emer/microcircuit/kernel"
	"github.com/emer/microcircuit/scale"
)

// PairPlan is the connection from population Source onto population Target.
type PairPlan struct {
	Target int
	Source int
	Conn   kernel.ConnSpec
	Syn    kernel.SynSpec
}

func (pp *PairPlan) String() string {
	return fmt.Sprintf("%d <- %d: %v N=%d weight=%v delay=%v", pp.Target, pp.Source, pp.Conn.Rule, pp.Conn.N, pp.Syn.Weight, pp.Syn.Delay)
}

// ExternalPlan is the connection from an external source onto population Target.
type ExternalPlan struct {
	Target int
	Conn   kernel.ConnSpec
	Syn    kernel.SynSpec
}

// Plan returns the recurrent connection plans in (target, source) order.
// inhibitory[j] gives the sign role of source j. Pairs with a zero count are
// included and create no connections.
func Plan(st *scale.State, meanDelay, stdDelay [][]float64, minDelay float64, inhibitory []bool) ([]PairPlan, error) {
	n := len(st.Weights)
	if len(inhibitory) != n {
		return nil, faults.Configf("conn: %d sign roles for %d populations", len(inhibitory), n)
	}
	if !(minDelay > 0) || math.IsInf(minDelay, 0) {
		return nil, faults.Configf("conn: minimum delay must be > 0, is %v", minDelay)
	}
	if err := checkShape("mean delay", meanDelay, n); err != nil {
		return nil, err
	}
	if err := checkShape("delay std", stdDelay, n); err != nil {
		return nil, err
	}
	plans := make([]PairPlan, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := st.Weights[i][j]
			if st.SynapseCount(i, j) > 0 && ((inhibitory[j] && w > 0) || (!inhibitory[j] && w < 0)) {
				return nil, faults.Configf("conn: pair %d <- %d: mean weight %v has the wrong sign for an %s source", i, j, w, roleName(inhibitory[j]))
			}
			wsd := math.Abs(w * st.WeightStd[i][j])
			var wd kernel.Dist
			if inhibitory[j] {
				wd = kernel.NormalClippedDist(w, wsd, math.Inf(-1), 0)
			} else {
				wd = kernel.NormalClippedDist(w, wsd, 0, math.Inf(1))
			}
			pp := PairPlan{
				Target: i,
				Source: j,
				Conn:   kernel.ConnSpec{Rule: kernel.FixedTotalNumber, N: st.SynapseCount(i, j)},
				Syn: kernel.SynSpec{
					Model:  kernel.StaticSynapse,
					Weight: wd,
					Delay:  kernel.NormalClippedDist(meanDelay[i][j], stdDelay[i][j], minDelay, math.Inf(1)),
				},
			}
			if pp.Conn.N > 0 {
				if err := validate(&pp.Syn); err != nil {
					return nil, faults.Configf("conn: pair %d <- %d: %v", i, j, err)
				}
			}
			plans = append(plans, pp)
		}
	}
	return plans, nil
}

// PoissonPlans returns the background input plans: every generator of a
// population's drive set connects to every neuron of it with the fixed
// external weight and a fixed delay.
func PoissonPlans(npops int, wExt, delay float64) ([]ExternalPlan, error) {
	syn := kernel.SynSpec{Model: kernel.StaticSynapse, Weight: kernel.ConstDist(wExt), Delay: kernel.ConstDist(delay)}
	if err := validate(&syn); err != nil {
		return nil, faults.Configf("conn: poisson input: %v", err)
	}
	plans := make([]ExternalPlan, npops)
	for i := range plans {
		plans[i] = ExternalPlan{Target: i, Conn: kernel.ConnSpec{Rule: kernel.AllToAll}, Syn: syn}
	}
	return plans, nil
}

// ThalamicPlans returns the thalamic relay plans: a fixed total number of
// synapses per target population, with clipped normal weights of relative
// standard deviation relStd and clipped normal delays per target.
// The count comes from the thalamic connection probability, so relays are
// not wired all-to-all.
func ThalamicPlans(weight, relStd float64, synapses, delay, delaySd []float64, minDelay float64) ([]ExternalPlan, error) {
	n := len(synapses)
	if len(delay) != n || len(delaySd) != n {
		return nil, faults.Configf("conn: thalamic delays have %d/%d entries for %d populations", len(delay), len(delaySd), n)
	}
	if weight < 0 {
		return nil, faults.Configf("conn: thalamic weight %v is negative for an excitatory source", weight)
	}
	plans := make([]ExternalPlan, n)
	for i := range plans {
		cnt := int(math.Round(synapses[i]))
		if cnt < 0 {
			cnt = 0
		}
		plans[i] = ExternalPlan{
			Target: i,
			Conn:   kernel.ConnSpec{Rule: kernel.FixedTotalNumber, N: cnt},
			Syn: kernel.SynSpec{
				Model:  kernel.StaticSynapse,
				Weight: kernel.NormalClippedDist(weight, math.Abs(weight*relStd), 0, math.Inf(1)),
				Delay:  kernel.NormalClippedDist(delay[i], delaySd[i], minDelay, math.Inf(1)),
			},
		}
		if cnt > 0 {
			if err := validate(&plans[i].Syn); err != nil {
				return nil, faults.Configf("conn: thalamic input to %d: %v", i, err)
			}
		}
	}
	return plans, nil
}

func roleName(inhibitory bool) string {
	if inhibitory {
		return "inhibitory"
	}
	return "excitatory"
}

func validate(syn *kernel.SynSpec) error {
	if err := syn.Weight.Validate(); err != nil {
		return fmt.Errorf("weight: %w", err)
	}
	if err := syn.Delay.Validate(); err != nil {
		return fmt.Errorf("delay: %w", err)
	}
	return nil
}

func checkShape(name string, m [][]float64, n int) error {
	if len(m) != n {
		return faults.Configf("conn: %s has %d rows, want %d", name, len(m), n)
	}
	for i, row := range m {
		if len(row) != n {
			return faults.Configf("conn: %s row %d has %d columns, want %d", name, i, len(row), n)
		}
	}
	return nil
}
