// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkernel

import (
	"fmt"
	"math"

	"cogentcore.org/lab/base/randx"
	"github.com/emer/microcircuit/kernel"
)

// spike is a spike emitted by a node, with multiplicity.
type spike struct {
	src  int
	mult int
}

// sample is one voltmeter reading.
type sample struct {
	dev    int
	target int
	vm     float64
}

// Simulate advances simulated time by t ms, which must be a multiple of
// the resolution. Simulating zero time is a no-op.
func (k *Kernel) Simulate(t float64) error {
	h := k.status.Resolution
	if math.IsNaN(t) || t < 0 || math.IsInf(t, 0) {
		return fmt.Errorf("memkernel: cannot simulate %v ms", t)
	}
	steps := k.time.Steps(t)
	if math.Abs(float64(steps)*h-t) > 1e-9*max(t, 1) {
		return fmt.Errorf("memkernel: simulation time %v is not a multiple of the resolution %v", t, h)
	}
	if steps == 0 {
		return nil
	}
	k.prepare()
	flushSteps := max(k.time.Steps(k.flushMs), 1)

	k.StartThreads()
	defer k.StopThreads()
	for i := 0; i < steps; i++ {
		k.ThrVPFun()
		k.deliver()
		k.time.StepInc()
		if k.time.Step-k.lastFlush >= flushSteps {
			if err := k.flush(); err != nil {
				return err
			}
		}
	}
	return k.flush()
}

// prepare sizes the input rings of all receiving nodes to hold the
// longest delay.
func (k *Kernel) prepare() {
	n := k.maxSteps + 1
	for i := range k.nodes {
		nd := &k.nodes[i]
		if !nd.kind.hasRing() {
			continue
		}
		switch {
		case nd.ring == nil:
			nd.ring = newRing(n)
		case int(nd.ring.Len) != n:
			nd.ring.resize(n)
		}
	}
}

//////////////////////////////////////////////////////////////////////////////////////
//  Threading infrastructure

// StartThreads starts one worker per virtual process, which updates the
// nodes of that process each time it receives a step.
func (k *Kernel) StartThreads() {
	if k.nvp() <= 1 {
		return
	}
	k.thrChans = make([]chan int, k.nvp())
	for vp := range k.thrChans {
		k.thrChans[vp] = make(chan int)
		go k.ThrWorker(vp)
	}
}

// StopThreads stops the workers.
func (k *Kernel) StopThreads() {
	for _, ch := range k.thrChans {
		close(ch)
	}
	k.thrChans = nil
}

// ThrWorker is the worker function run by the worker goroutines.
func (k *Kernel) ThrWorker(vp int) {
	for step := range k.thrChans[vp] {
		k.UpdateVP(vp, step)
		k.waitGp.Done()
	}
}

// ThrVPFun updates all virtual processes for the current step, using the
// workers if there is more than one.
func (k *Kernel) ThrVPFun() {
	step := k.time.Step
	if len(k.thrChans) == 0 {
		for vp := 0; vp < k.nvp(); vp++ {
			k.UpdateVP(vp, step)
		}
		return
	}
	for vp := range k.thrChans {
		k.waitGp.Add(1)
		k.thrChans[vp] <- step
	}
	k.waitGp.Wait()
}

// UpdateVP advances the nodes owned by one virtual process by one step.
// It only touches state owned by vp.
func (k *Kernel) UpdateVP(vp, step int) {
	rnd, _ := k.streams.VP(vp)
	h := k.status.Resolution
	t0 := float64(step) * h
	k.vpSpikes[vp] = k.vpSpikes[vp][:0]
	k.vpSamples[vp] = k.vpSamples[vp][:0]

	for _, gs := range k.vpGen[vp] {
		gn := &k.nodes[gs.gen]
		if !gn.gen.Active(t0) {
			continue
		}
		tn := &k.nodes[gs.target]
		slot := tn.ring.Index(uint32(gs.steps))
		switch gn.kind {
		case poissonNode:
			cnt := poissonDraw(gn.gen.Rate*h*1e-3, rnd)
			if cnt == 0 {
				continue
			}
			tn.ring.add(tn.kind, int(slot), gs.weight, cnt)
		case dcNode:
			tn.ring.cur[slot] += gs.weight * gn.gen.Amplitude
		}
	}

	for _, ni := range k.vpNodes[vp] {
		nd := &k.nodes[ni]
		ex, in, cur := nd.ring.next()
		switch nd.kind {
		case iafNode:
			if nd.iaf.Step(&nd.nrn, ex, in, cur) {
				k.vpSpikes[vp] = append(k.vpSpikes[vp], spike{src: ni, mult: 1})
			}
		case parrotNode:
			if m := int(math.Round(ex)); m > 0 {
				k.vpSpikes[vp] = append(k.vpSpikes[vp], spike{src: ni, mult: m})
			}
		}
	}

	for _, pr := range k.vpProbe[vp] {
		if (step+1)%k.nodes[pr.dev].rec.interval != 0 {
			continue
		}
		nd := &k.nodes[pr.target]
		k.vpSamples[vp] = append(k.vpSamples[vp], sample{dev: pr.dev, target: pr.target, vm: nd.nrn.Vm + nd.iaf.EL})
	}
}

// add adds cnt spikes of the given weight to a slot. Parrots count spikes
// regardless of weight.
func (r *ring) add(kind nodeKind, slot int, w float64, cnt int) {
	switch {
	case kind == parrotNode:
		r.ex[slot] += float64(cnt)
	case w >= 0:
		r.ex[slot] += w * float64(cnt)
	default:
		r.in[slot] += w * float64(cnt)
	}
}

// deliver sends the spikes of the current step to their targets and
// recorders, and stores voltmeter samples, in virtual process order.
func (k *Kernel) deliver() {
	step := k.time.Step
	ts := k.time.StepTime(step)
	for vp := range k.vpSpikes {
		for _, sp := range k.vpSpikes[vp] {
			for _, sy := range k.out[sp.src] {
				tn := &k.nodes[sy.target]
				// the ring of tn has already advanced past this step
				tn.ring.add(tn.kind, int(tn.ring.Index(uint32(sy.steps-1))), sy.weight, sp.mult)
			}
			for _, ri := range k.nodes[sp.src].recorders {
				ev := &k.nodes[ri].rec.events
				for m := 0; m < sp.mult; m++ {
					ev.Senders = append(ev.Senders, kernel.NodeID(sp.src+1))
					ev.Times = append(ev.Times, ts)
				}
			}
		}
		for _, sm := range k.vpSamples[vp] {
			ev := &k.nodes[sm.dev].rec.events
			ev.Senders = append(ev.Senders, kernel.NodeID(sm.target+1))
			ev.Times = append(ev.Times, ts)
			ev.Values = append(ev.Values, sm.vm)
		}
	}
}

// poissonDraw returns the number of events of a Poisson process with
// mean lambda.
func poissonDraw(lambda float64, rnd randx.Rand) int {
	if lambda <= 0 {
		return 0
	}
	return int(randx.PoissonGen(lambda, rnd))
}
