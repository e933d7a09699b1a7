// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kernel

import (
	"fmt"
	"math"

	"cogentcore.org/lab/base/randx"
)

// Rule is a connection rule.
type Rule int

const (
	// AllToAll connects every source to every target once.
	AllToAll Rule = iota

	// FixedTotalNumber draws exactly N (source, target) pairs at random,
	// independent of population sizes. Multapses and autapses are allowed.
	FixedTotalNumber

	// OneToOne connects the k-th source to the k-th target.
	OneToOne
)

func (r Rule) String() string {
	switch r {
	case AllToAll:
		return "all_to_all"
	case FixedTotalNumber:
		return "fixed_total_number"
	case OneToOne:
		return "one_to_one"
	}
	return fmt.Sprintf("Rule(%d)", int(r))
}

// ConnSpec selects the connection rule.
type ConnSpec struct {
	Rule Rule

	// number of connections for FixedTotalNumber
	N int
}

// DistKind is the kind of distribution a weight or delay is drawn from.
type DistKind int

const (
	// Const always returns Mu.
	Const DistKind = iota

	// NormalClipped draws from a normal distribution, redrawing
	// samples outside [Low, High].
	NormalClipped
)

func (dk DistKind) String() string {
	switch dk {
	case Const:
		return "const"
	case NormalClipped:
		return "normal_clipped"
	}
	return fmt.Sprintf("DistKind(%d)", int(dk))
}

// maxRedraw bounds the number of redraws of a clipped sample
// before it is clamped to the nearest bound.
const maxRedraw = 1000

// Dist is a distribution of weights or delays.
type Dist struct {
	Kind  DistKind
	Mu    float64
	Sigma float64
	Low   float64
	High  float64
}

// ConstDist returns a distribution that always yields v.
func ConstDist(v float64) Dist {
	return Dist{Kind: Const, Mu: v, Low: math.Inf(-1), High: math.Inf(1)}
}

// NormalClippedDist returns a clipped normal distribution.
// Use math.Inf for an open side.
func NormalClippedDist(mu, sigma, low, high float64) Dist {
	return Dist{Kind: NormalClipped, Mu: mu, Sigma: sigma, Low: low, High: high}
}

// Validate checks that samples can be drawn.
func (d Dist) Validate() error {
	if math.IsNaN(d.Mu) || math.IsInf(d.Mu, 0) {
		return fmt.Errorf("distribution mean is %v", d.Mu)
	}
	if d.Kind == Const {
		return nil
	}
	if math.IsNaN(d.Sigma) || math.IsInf(d.Sigma, 0) || d.Sigma < 0 {
		return fmt.Errorf("distribution sigma is %v", d.Sigma)
	}
	if math.IsNaN(d.Low) || math.IsNaN(d.High) || d.Low > d.High {
		return fmt.Errorf("distribution bounds [%v, %v] are empty", d.Low, d.High)
	}
	if d.Sigma == 0 && (d.Mu < d.Low || d.Mu > d.High) {
		return fmt.Errorf("distribution mean %v outside bounds [%v, %v] with zero sigma", d.Mu, d.Low, d.High)
	}
	return nil
}

// Gen draws one sample using the given random stream.
func (d Dist) Gen(rnd randx.Rand) float64 {
	if d.Kind == Const || d.Sigma == 0 {
		return d.Mu
	}
	rp := randx.RandParams{Dist: randx.Gaussian, Mean: d.Mu, Var: d.Sigma}
	v := rp.Gen(rnd)
	for i := 0; i < maxRedraw && (v < d.Low || v > d.High); i++ {
		v = rp.Gen(rnd)
	}
	return min(max(v, d.Low), d.High)
}

func (d Dist) String() string {
	if d.Kind == Const {
		return fmt.Sprintf("%g", d.Mu)
	}
	return fmt.Sprintf("%v(mu=%g, sigma=%g, low=%g, high=%g)", d.Kind, d.Mu, d.Sigma, d.Low, d.High)
}

// SynSpec is the synapse model and its weight and delay distributions.
type SynSpec struct {
	Model  string
	Weight Dist
	Delay  Dist
}

// StaticSynapse is the only synapse model used by the microcircuit.
const StaticSynapse = "static_synapse"
