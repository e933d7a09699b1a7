// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkernel

import (
	"fmt"
	"math"

	"cogentcore.org/lab/base/randx"
	"github.com/emer/microcircuit/kernel"
)

// synapse is a static synapse from a neuron or parrot.
type synapse struct {
	target int
	weight float64
	steps  int
}

// genSynapse is a static synapse from a generator.
type genSynapse struct {
	gen    int
	target int
	weight float64
	steps  int
}

// probe is a voltmeter sampling a neuron.
type probe struct {
	dev    int
	target int
}

// Synapse is one connection as reported by Connections.
type Synapse struct {
	Source kernel.NodeID
	Target kernel.NodeID
	Weight float64

	// delay in ms
	Delay float64
}

// delaySteps converts a delay to steps, checking it against the
// resolution and the maximum delay.
func (k *Kernel) delaySteps(d float64) (int, error) {
	h := k.status.Resolution
	if math.IsNaN(d) || d < h*(1-1e-9) || d > k.status.MaxDelay*(1+1e-9) {
		return 0, fmt.Errorf("memkernel: delay %v outside [%v, %v]", d, h, k.status.MaxDelay)
	}
	return max(int(math.Round(d/h)), 1), nil
}

// Connect connects pre onto post under the given rule. Weights and delays
// are drawn from the stream of the virtual process owning the target.
func (k *Kernel) Connect(pre, post kernel.NodeCollection, conn kernel.ConnSpec, syn kernel.SynSpec) error {
	if err := k.checkCollection(pre); err != nil {
		return err
	}
	if err := k.checkCollection(post); err != nil {
		return err
	}
	if syn.Model != "" && syn.Model != kernel.StaticSynapse {
		return fmt.Errorf("memkernel: unknown synapse model %q", syn.Model)
	}
	if err := syn.Weight.Validate(); err != nil {
		return fmt.Errorf("memkernel: weight: %w", err)
	}
	if err := syn.Delay.Validate(); err != nil {
		return fmt.Errorf("memkernel: delay: %w", err)
	}
	if pre.Len() == 0 || post.Len() == 0 {
		if conn.Rule == kernel.FixedTotalNumber && conn.N > 0 {
			return fmt.Errorf("memkernel: %d connections between %v and %v", conn.N, pre, post)
		}
		return nil
	}
	if syn.Delay.Kind == kernel.Const {
		if _, err := k.delaySteps(syn.Delay.Mu); err != nil {
			return err
		}
	}

	preKind := k.nodes[pre.First-1].kind
	postKind := k.nodes[post.First-1].kind
	for _, nc := range []kernel.NodeCollection{pre, post} {
		kind := k.nodes[nc.First-1].kind
		for id := nc.First; id <= nc.Last; id++ {
			if k.nodes[id-1].kind != kind {
				return fmt.Errorf("memkernel: %v mixes models", nc)
			}
		}
	}

	switch {
	case preKind == voltmeterNode:
		if postKind != iafNode {
			return fmt.Errorf("memkernel: voltmeter cannot sample %s", k.nodes[post.First-1].model)
		}
		return k.pairs(pre, post, conn, func(src, tgt int, rnd randx.Rand) error {
			vp := k.vpOf(kernel.NodeID(tgt + 1))
			k.vpProbe[vp] = append(k.vpProbe[vp], probe{dev: src, target: tgt})
			return nil
		})
	case postKind == spikeRecNode:
		if !preKind.hasRing() {
			return fmt.Errorf("memkernel: spike recorder cannot record %s", k.nodes[pre.First-1].model)
		}
		return k.pairs(pre, post, conn, func(src, tgt int, rnd randx.Rand) error {
			k.nodes[src].recorders = append(k.nodes[src].recorders, tgt)
			return nil
		})
	case !postKind.hasRing():
		return fmt.Errorf("memkernel: %s cannot receive connections", k.nodes[post.First-1].model)
	case preKind == dcNode && postKind != iafNode:
		return fmt.Errorf("memkernel: dc generator cannot drive %s", k.nodes[post.First-1].model)
	case preKind.isGenerator():
		return k.pairs(pre, post, conn, func(src, tgt int, rnd randx.Rand) error {
			w := syn.Weight.Gen(rnd)
			steps, err := k.delaySteps(syn.Delay.Gen(rnd))
			if err != nil {
				return err
			}
			vp := k.vpOf(kernel.NodeID(tgt + 1))
			k.vpGen[vp] = append(k.vpGen[vp], genSynapse{gen: src, target: tgt, weight: w, steps: steps})
			k.maxSteps = max(k.maxSteps, steps)
			return nil
		})
	case preKind.hasRing():
		return k.pairs(pre, post, conn, func(src, tgt int, rnd randx.Rand) error {
			w := syn.Weight.Gen(rnd)
			steps, err := k.delaySteps(syn.Delay.Gen(rnd))
			if err != nil {
				return err
			}
			k.out[src] = append(k.out[src], synapse{target: tgt, weight: w, steps: steps})
			k.maxSteps = max(k.maxSteps, steps)
			return nil
		})
	}
	return fmt.Errorf("memkernel: cannot connect %s to %s", k.nodes[pre.First-1].model, k.nodes[post.First-1].model)
}

// pairs calls fun for every (source, target) index pair the rule yields,
// with the stream of the virtual process owning the target.
func (k *Kernel) pairs(pre, post kernel.NodeCollection, conn kernel.ConnSpec, fun func(src, tgt int, rnd randx.Rand) error) error {
	npre, npost := pre.Len(), post.Len()
	s0, t0 := int(pre.First-1), int(post.First-1)
	rng := func(tgt int) randx.Rand {
		rnd, _ := k.streams.VP(k.vpOf(kernel.NodeID(tgt + 1)))
		return rnd
	}
	switch conn.Rule {
	case kernel.AllToAll:
		for t := t0; t < t0+npost; t++ {
			rnd := rng(t)
			for s := s0; s < s0+npre; s++ {
				if err := fun(s, t, rnd); err != nil {
					return err
				}
			}
		}
	case kernel.OneToOne:
		if npre != npost {
			return fmt.Errorf("memkernel: one_to_one needs equal sizes, have %d and %d", npre, npost)
		}
		for i := 0; i < npre; i++ {
			if err := fun(s0+i, t0+i, rng(t0+i)); err != nil {
				return err
			}
		}
	case kernel.FixedTotalNumber:
		if conn.N < 0 {
			return fmt.Errorf("memkernel: fixed_total_number with N = %d", conn.N)
		}
		for c := 0; c < conn.N; c++ {
			t := t0 + k.grng.Intn(npost)
			rnd := rng(t)
			s := s0 + rnd.Intn(npre)
			if err := fun(s, t, rnd); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("memkernel: unknown rule %v", conn.Rule)
	}
	return nil
}

// Connections returns all synapses from nodes of pre onto nodes of post,
// in creation order per virtual process.
func (k *Kernel) Connections(pre, post kernel.NodeCollection) []Synapse {
	h := k.status.Resolution
	var syns []Synapse
	for s := pre.First; pre.Len() > 0 && s <= pre.Last && int(s) <= len(k.out); s++ {
		for _, sy := range k.out[s-1] {
			if tid := kernel.NodeID(sy.target + 1); post.Contains(tid) {
				syns = append(syns, Synapse{Source: s, Target: tid, Weight: sy.weight, Delay: float64(sy.steps) * h})
			}
		}
	}
	for _, gs := range k.vpGen {
		for _, sy := range gs {
			sid, tid := kernel.NodeID(sy.gen+1), kernel.NodeID(sy.target+1)
			if pre.Contains(sid) && post.Contains(tid) {
				syns = append(syns, Synapse{Source: sid, Target: tid, Weight: sy.weight, Delay: float64(sy.steps) * h})
			}
		}
	}
	return syns
}

// NumConnections returns the total number of synapses.
func (k *Kernel) NumConnections() int {
	n := 0
	for _, o := range k.out {
		n += len(o)
	}
	for _, gs := range k.vpGen {
		n += len(gs)
	}
	return n
}
