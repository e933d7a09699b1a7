// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package memkernel is an in-process spiking simulation kernel implementing
kernel.Kernel. It hosts exponential-current LIF neurons integrated exactly
on a fixed time grid, parrot relays, Poisson and DC generators, spike
recorders and voltmeters.

Nodes are distributed over virtual processes by id, and every random draw
that concerns a node (its connection weights and delays, its Poisson
input) comes from the stream of the virtual process that owns it, so a
run is reproducible for a given seed and virtual process count. Each step
the virtual processes are updated in parallel, one worker goroutine each,
and the emitted spikes are then delivered sequentially in virtual process
order.

All virtual processes are simulated in this process: Processes and Rank
only affect which nodes NodeInfo reports as local.
*/
package memkernel

import (
	"fmt"
	"math"
	"sync"

	"cogentcore.org/lab/base/randx"
	"github.com/emer/microcircuit/kernel"
)

// Option configures a Kernel.
type Option func(k *Kernel)

// WithSink makes the kernel write recorded events to sink while it runs.
func WithSink(sink kernel.EventSink) Option {
	return func(k *Kernel) { k.sink = sink }
}

// WithFlushInterval sets the interval of simulated time in ms after which
// recorded events are written to the sink. Events are always written at
// the end of each Simulate call.
func WithFlushInterval(ms float64) Option {
	return func(k *Kernel) { k.flushMs = ms }
}

// Kernel is the in-process kernel. It is not safe for concurrent use.
type Kernel struct {
	status kernel.Status
	time   Time

	// all nodes, node id-1 is the index
	nodes []node

	// outgoing synapses of neurons and parrots, by source index
	out [][]synapse

	// ring-bearing node indices owned by each virtual process
	vpNodes [][]int

	// generator synapses onto nodes of each virtual process
	vpGen [][]genSynapse

	// voltmeter samples of nodes of each virtual process
	vpProbe [][]probe

	// spikes and samples produced by each virtual process in the current step
	vpSpikes  [][]spike
	vpSamples [][]sample

	// largest delay in steps of any connection
	maxSteps int

	grng    randx.Rand
	streams *kernel.Streams

	sink      kernel.EventSink
	flushMs   float64
	lastFlush int

	// worker goroutines, one per virtual process, while simulating
	thrChans []chan int
	waitGp   sync.WaitGroup
}

// New returns a kernel with default status.
func New(opts ...Option) *Kernel {
	k := &Kernel{flushMs: 10}
	for _, o := range opts {
		o(k)
	}
	k.ResetKernel()
	return k
}

// DefaultStatus returns the status of a freshly reset kernel.
func DefaultStatus() kernel.Status {
	return kernel.Status{
		Resolution: 0.1,
		MaxDelay:   100,
		Threads:    1,
		Processes:  1,
		GlobalSeed: 1,
		VPSeeds:    []int64{2},
	}
}

// ResetKernel discards all nodes, connections and recorded events.
func (k *Kernel) ResetKernel() error {
	sink, flushMs := k.sink, k.flushMs
	*k = Kernel{sink: sink, flushMs: flushMs}
	return k.SetKernelStatus(DefaultStatus())
}

// SetKernelStatus applies the kernel configuration. Missing VP seeds are
// derived from the global seed.
func (k *Kernel) SetKernelStatus(st kernel.Status) error {
	if len(k.nodes) > 0 {
		return fmt.Errorf("memkernel: kernel status must be set before nodes are created")
	}
	if !(st.Resolution > 0) || math.IsInf(st.Resolution, 0) {
		return fmt.Errorf("memkernel: resolution must be > 0, is %v", st.Resolution)
	}
	if !(st.MaxDelay >= st.Resolution) || math.IsInf(st.MaxDelay, 0) {
		return fmt.Errorf("memkernel: max delay %v must be >= resolution %v", st.MaxDelay, st.Resolution)
	}
	if st.Threads < 1 || st.Processes < 1 {
		return fmt.Errorf("memkernel: threads %d and processes %d must be >= 1", st.Threads, st.Processes)
	}
	if st.Rank < 0 || st.Rank >= st.Processes {
		return fmt.Errorf("memkernel: rank %d outside [0, %d)", st.Rank, st.Processes)
	}
	nvp := st.TotalVPs()
	switch len(st.VPSeeds) {
	case 0:
		st.VPSeeds = make([]int64, nvp)
		for i := range st.VPSeeds {
			st.VPSeeds[i] = st.GlobalSeed + 1 + int64(i)
		}
	case nvp:
		st.VPSeeds = append([]int64(nil), st.VPSeeds...)
	default:
		return fmt.Errorf("memkernel: %d VP seeds for %d virtual processes", len(st.VPSeeds), nvp)
	}
	k.status = st
	k.time.Resolution = st.Resolution
	k.time.Reset()
	k.grng = randx.NewSysRand(st.GlobalSeed)
	k.streams = kernel.NewStreamsFromSeeds(st.VPSeeds)
	k.vpNodes = make([][]int, nvp)
	k.vpGen = make([][]genSynapse, nvp)
	k.vpProbe = make([][]probe, nvp)
	k.vpSpikes = make([][]spike, nvp)
	k.vpSamples = make([][]sample, nvp)
	return nil
}

// KernelStatus returns the current kernel configuration.
func (k *Kernel) KernelStatus() kernel.Status {
	st := k.status
	st.VPSeeds = append([]int64(nil), st.VPSeeds...)
	return st
}

// Time returns the simulated time in ms.
func (k *Kernel) Time() float64 {
	return k.time.Time
}

func (k *Kernel) nvp() int {
	return len(k.vpNodes)
}

// vpOf returns the virtual process owning node id.
func (k *Kernel) vpOf(id kernel.NodeID) int {
	return int(id) % k.nvp()
}

// node returns the node with the given id.
func (k *Kernel) node(id kernel.NodeID) (*node, error) {
	if id < 1 || int(id) > len(k.nodes) {
		return nil, fmt.Errorf("memkernel: unknown node %d", id)
	}
	return &k.nodes[id-1], nil
}

// checkCollection checks that all nodes of nc exist.
func (k *Kernel) checkCollection(nc kernel.NodeCollection) error {
	if nc.Len() == 0 {
		return nil
	}
	if nc.First < 1 || nc.Last < nc.First || int(nc.Last) > len(k.nodes) {
		return fmt.Errorf("memkernel: invalid node collection %v", nc)
	}
	return nil
}

// NodeInfo returns the owning virtual process of each node.
func (k *Kernel) NodeInfo(nc kernel.NodeCollection) ([]kernel.NodeInfo, error) {
	if err := k.checkCollection(nc); err != nil {
		return nil, err
	}
	inf := make([]kernel.NodeInfo, nc.Len())
	for i := range inf {
		id := nc.First + kernel.NodeID(i)
		vp := k.vpOf(id)
		inf[i] = kernel.NodeInfo{ID: id, VP: vp, Local: vp%k.status.Processes == k.status.Rank}
	}
	return inf, nil
}

// Events returns a copy of all events recorded so far by a device.
func (k *Kernel) Events(dev kernel.NodeID) (*kernel.Events, error) {
	nd, err := k.node(dev)
	if err != nil {
		return nil, err
	}
	if nd.rec == nil {
		return nil, fmt.Errorf("memkernel: node %d is a %s, not a recording device", dev, nd.model)
	}
	ev := &kernel.Events{}
	ev.Append(&nd.rec.events)
	return ev, nil
}

// flush writes the events recorded since the last flush to the sink.
func (k *Kernel) flush() error {
	k.lastFlush = k.time.Step
	if k.sink == nil {
		return nil
	}
	for i := range k.nodes {
		rc := k.nodes[i].rec
		if rc == nil || rc.flushed == rc.events.Len() {
			continue
		}
		ev := &kernel.Events{
			Senders: rc.events.Senders[rc.flushed:],
			Times:   rc.events.Times[rc.flushed:],
		}
		if len(rc.events.Values) > 0 {
			ev.Values = rc.events.Values[rc.flushed:]
		}
		if err := k.sink.WriteEvents(kernel.NodeID(i+1), ev); err != nil {
			return fmt.Errorf("memkernel: writing events of device %d: %w", i+1, err)
		}
		rc.flushed = rc.events.Len()
	}
	return nil
}
