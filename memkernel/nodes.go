// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkernel

import (
	"fmt"
	"math"
	"sort"

	"github.com/emer/emergent/v2/ringidx"
	"github.com/emer/microcircuit/kernel"
)

// nodeKind is the kind of a node, one per supported model.
type nodeKind int

const (
	iafNode nodeKind = iota
	parrotNode
	poissonNode
	dcNode
	spikeRecNode
	voltmeterNode
)

var modelKinds = map[string]nodeKind{
	kernel.IAFPscExp:        iafNode,
	kernel.ParrotNeuron:     parrotNode,
	kernel.PoissonGenerator: poissonNode,
	kernel.DCGenerator:      dcNode,
	kernel.SpikeRecorder:    spikeRecNode,
	kernel.Voltmeter:        voltmeterNode,
}

// Models returns the names of the supported models.
func Models() []string {
	mods := make([]string, 0, len(modelKinds))
	for m := range modelKinds {
		mods = append(mods, m)
	}
	sort.Strings(mods)
	return mods
}

// hasRing returns whether nodes of this kind receive spikes.
func (nk nodeKind) hasRing() bool {
	return nk == iafNode || nk == parrotNode
}

// isGenerator returns whether nodes of this kind stimulate their targets
// without being updated themselves.
func (nk nodeKind) isGenerator() bool {
	return nk == poissonNode || nk == dcNode
}

// GenParams are the parameters of Poisson and DC generators. A generator
// is active in steps starting at times t with Start <= t < Stop.
type GenParams struct {

	// firing rate of a Poisson generator in Hz
	Rate float64

	// current of a DC generator in pA
	Amplitude float64

	// activation time in ms
	Start float64

	// deactivation time in ms
	Stop float64
}

func (gp *GenParams) Defaults() {
	gp.Rate = 0
	gp.Amplitude = 0
	gp.Start = 0
	gp.Stop = math.Inf(1)
}

// Active returns whether the generator emits in the step starting at t.
func (gp *GenParams) Active(t float64) bool {
	return t >= gp.Start && t < gp.Stop
}

func (gp *GenParams) set(kind nodeKind, pars kernel.Params) error {
	for k, v := range pars {
		switch {
		case k == "start":
			gp.Start = v
		case k == "stop":
			gp.Stop = v
		case k == "rate" && kind == poissonNode:
			gp.Rate = v
		case k == "amplitude" && kind == dcNode:
			gp.Amplitude = v
		default:
			return fmt.Errorf("unknown parameter %q", k)
		}
	}
	if kind == poissonNode && (!(gp.Rate >= 0) || math.IsInf(gp.Rate, 0)) {
		return fmt.Errorf("rate must be finite and >= 0, is %v", gp.Rate)
	}
	if math.IsNaN(gp.Amplitude) || math.IsInf(gp.Amplitude, 0) || math.IsNaN(gp.Start) || math.IsNaN(gp.Stop) {
		return fmt.Errorf("parameters must be numbers")
	}
	if gp.Stop < gp.Start {
		return fmt.Errorf("stop %v before start %v", gp.Stop, gp.Start)
	}
	return nil
}

// recording is the event store of a recording device.
type recording struct {
	events kernel.Events

	// number of events already written to the sink
	flushed int

	// sampling interval of a voltmeter in steps
	interval int
}

// ring holds the input arriving at one node in each of the next steps.
// Logical index 0 is the current step.
type ring struct {
	ringidx.FIx
	ex  []float64
	in  []float64
	cur []float64
}

func newRing(n int) *ring {
	return &ring{FIx: ringidx.FIx{Len: uint32(n)}, ex: make([]float64, n), in: make([]float64, n), cur: make([]float64, n)}
}

// resize changes the ring length to n keeping pending input.
func (r *ring) resize(n int) {
	nr := newRing(n)
	for off := 0; off < min(int(r.Len), n); off++ {
		si := r.Index(uint32(off))
		nr.ex[off], nr.in[off], nr.cur[off] = r.ex[si], r.in[si], r.cur[si]
	}
	*r = *nr
}

// next returns and clears the input of the current step, and advances
// the ring to the following step.
func (r *ring) next() (ex, in, cur float64) {
	si := r.Index(0)
	ex, in, cur = r.ex[si], r.in[si], r.cur[si]
	r.ex[si], r.in[si], r.cur[si] = 0, 0, 0
	r.Shift(1)
	return
}

// node is one node of any model.
type node struct {
	kind  nodeKind
	model string

	// neuron parameters, shared by nodes created together until changed
	iaf *IAFParams

	// neuron state
	nrn Neuron

	// generator parameters
	gen GenParams

	// recorded events of devices
	rec *recording

	// pending input of neurons and parrots
	ring *ring

	// indices of spike recorders observing this node
	recorders []int
}

// Create makes n nodes of the given model with the given parameters.
// Creating zero nodes returns an empty collection.
func (k *Kernel) Create(model string, n int, params kernel.Params) (kernel.NodeCollection, error) {
	kind, ok := modelKinds[model]
	if !ok {
		return kernel.NodeCollection{}, fmt.Errorf("memkernel: unknown model %q", model)
	}
	if n < 0 {
		return kernel.NodeCollection{}, fmt.Errorf("memkernel: cannot create %d nodes", n)
	}
	if n == 0 {
		return kernel.NodeCollection{}, nil
	}
	proto := node{kind: kind, model: model}
	switch kind {
	case iafNode:
		ip := &IAFParams{H: k.status.Resolution}
		ip.Defaults()
		rest := ip.SetParams(params)
		if err := ip.Validate(); err != nil {
			return kernel.NodeCollection{}, fmt.Errorf("memkernel: %w", err)
		}
		proto.iaf = ip
		for nm, v := range rest {
			if err := proto.nrn.SetVarByName(nm, v, ip.EL); err != nil {
				return kernel.NodeCollection{}, fmt.Errorf("memkernel: %s: %w", model, err)
			}
		}
	case poissonNode, dcNode:
		proto.gen.Defaults()
		if err := proto.gen.set(kind, params); err != nil {
			return kernel.NodeCollection{}, fmt.Errorf("memkernel: %s: %w", model, err)
		}
	case voltmeterNode:
		iv := 1.0
		for nm, v := range params {
			if nm != "interval" {
				return kernel.NodeCollection{}, fmt.Errorf("memkernel: %s: unknown parameter %q", model, nm)
			}
			iv = v
		}
		steps := k.time.Steps(iv)
		if steps < 1 || math.Abs(float64(steps)*k.status.Resolution-iv) > 1e-9*iv {
			return kernel.NodeCollection{}, fmt.Errorf("memkernel: %s: interval %v is not a multiple of the resolution %v", model, iv, k.status.Resolution)
		}
		proto.rec = &recording{interval: steps}
	default:
		if len(params) > 0 {
			return kernel.NodeCollection{}, fmt.Errorf("memkernel: %s takes no parameters", model)
		}
		if kind == spikeRecNode {
			proto.rec = &recording{}
		}
	}

	first := kernel.NodeID(len(k.nodes) + 1)
	for i := 0; i < n; i++ {
		nd := proto
		if proto.rec != nil {
			rc := *proto.rec
			nd.rec = &rc
		}
		k.nodes = append(k.nodes, nd)
		k.out = append(k.out, nil)
		if kind.hasRing() {
			id := first + kernel.NodeID(i)
			vp := k.vpOf(id)
			k.vpNodes[vp] = append(k.vpNodes[vp], int(id-1))
		}
	}
	return kernel.NodeCollection{First: first, Last: first + kernel.NodeID(n-1)}, nil
}

// SetStatus sets parameters or state variables of one node.
func (k *Kernel) SetStatus(id kernel.NodeID, params kernel.Params) error {
	nd, err := k.node(id)
	if err != nil {
		return err
	}
	switch nd.kind {
	case iafNode:
		state := kernel.Params{}
		pars := kernel.Params{}
		for nm, v := range params {
			if _, ok := NeuronVarsMap[nm]; ok {
				state[nm] = v
			} else {
				pars[nm] = v
			}
		}
		if len(pars) > 0 {
			ip := *nd.iaf
			if rest := ip.SetParams(pars); len(rest) > 0 {
				return fmt.Errorf("memkernel: %s %d: unknown parameters %v", nd.model, id, rest)
			}
			if err := ip.Validate(); err != nil {
				return fmt.Errorf("memkernel: node %d: %w", id, err)
			}
			nd.iaf = &ip
		}
		for nm, v := range state {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("memkernel: node %d: %s must be finite, is %v", id, nm, v)
			}
			nd.nrn.SetVarByName(nm, v, nd.iaf.EL)
		}
	case poissonNode, dcNode:
		gp := nd.gen
		if err := gp.set(nd.kind, params); err != nil {
			return fmt.Errorf("memkernel: %s %d: %w", nd.model, id, err)
		}
		nd.gen = gp
	default:
		if len(params) > 0 {
			return fmt.Errorf("memkernel: %s %d has no settable parameters", nd.model, id)
		}
	}
	return nil
}

// GetStatus returns the parameters and state variables of one node.
func (k *Kernel) GetStatus(id kernel.NodeID) (kernel.Params, error) {
	nd, err := k.node(id)
	if err != nil {
		return nil, err
	}
	pars := kernel.Params{}
	switch nd.kind {
	case iafNode:
		ip := nd.iaf
		pars["C_m"] = ip.CM
		pars["tau_m"] = ip.TauM
		pars["tau_syn_ex"] = ip.TauSynEx
		pars["tau_syn_in"] = ip.TauSynIn
		pars["t_ref"] = ip.TRef
		pars["E_L"] = ip.EL
		pars["V_th"] = ip.VTh
		pars["V_reset"] = ip.VReset
		pars["I_e"] = ip.IE
		for _, nm := range NeuronVars {
			pars[nm], _ = nd.nrn.VarByName(nm, ip.EL)
		}
	case poissonNode:
		pars["rate"] = nd.gen.Rate
		pars["start"] = nd.gen.Start
		pars["stop"] = nd.gen.Stop
	case dcNode:
		pars["amplitude"] = nd.gen.Amplitude
		pars["start"] = nd.gen.Start
		pars["stop"] = nd.gen.Stop
	case voltmeterNode:
		pars["interval"] = float64(nd.rec.interval) * k.status.Resolution
	}
	if nd.rec != nil {
		pars["n_events"] = float64(nd.rec.events.Len())
	}
	return pars, nil
}
