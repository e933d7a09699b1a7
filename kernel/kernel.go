// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package kernel defines the boundary between the microcircuit assembler and
a spiking simulation kernel. Any implementation of Kernel can host the
network: it must create populations of model instances, connect them under
a named rule with weights and delays drawn from a distribution, advance
simulated time, and record events on devices.

Node identifiers are positive and assigned consecutively in creation order,
so every Create returns a contiguous NodeCollection.
*/
package kernel

import (
	"fmt"
)

// Model names understood by kernels.
const (
	IAFPscExp        = "iaf_psc_exp"
	ParrotNeuron     = "parrot_neuron"
	PoissonGenerator = "poisson_generator"
	DCGenerator      = "dc_generator"
	SpikeRecorder    = "spike_recorder"
	Voltmeter        = "voltmeter"
)

// NodeID identifies a node (neuron, generator or device). Valid ids are > 0.
type NodeID int

// NodeCollection is a contiguous range of node ids, First..Last inclusive.
// The zero value is an empty collection.
type NodeCollection struct {
	First NodeID
	Last  NodeID
}

// Len returns the number of nodes.
func (nc NodeCollection) Len() int {
	if nc.First == 0 {
		return 0
	}
	return int(nc.Last-nc.First) + 1
}

// Contains returns whether id is part of the collection.
func (nc NodeCollection) Contains(id NodeID) bool {
	return nc.First != 0 && id >= nc.First && id <= nc.Last
}

// IDs returns all ids in the collection.
func (nc NodeCollection) IDs() []NodeID {
	ids := make([]NodeID, nc.Len())
	for i := range ids {
		ids[i] = nc.First + NodeID(i)
	}
	return ids
}

func (nc NodeCollection) String() string {
	if nc.Len() == 0 {
		return "NodeCollection()"
	}
	return fmt.Sprintf("NodeCollection(%d..%d)", nc.First, nc.Last)
}

// NodeInfo reports where a node lives.
type NodeInfo struct {
	ID NodeID

	// virtual process that owns the node
	VP int

	// whether the node is owned by this process
	Local bool
}

// Params are numeric model or node parameters, by name.
type Params map[string]float64

// Status is the kernel-wide configuration.
type Status struct {

	// time resolution in ms
	Resolution float64

	// maximum delay in ms. Connections with longer delays are rejected.
	MaxDelay float64

	// threads per process
	Threads int

	// number of processes and rank of this process
	Processes int
	Rank      int

	// seed of the global random stream
	GlobalSeed int64

	// one seed per virtual process
	VPSeeds []int64
}

// TotalVPs returns the number of virtual processes.
func (st *Status) TotalVPs() int {
	return max(st.Threads, 1) * max(st.Processes, 1)
}

// Events are recorded events of one device, in recording order.
type Events struct {
	Senders []NodeID
	Times   []float64

	// sampled membrane potentials; empty for spike events
	Values []float64
}

// Len returns the number of events.
func (ev *Events) Len() int {
	return len(ev.Senders)
}

// Append adds the events of other.
func (ev *Events) Append(other *Events) {
	ev.Senders = append(ev.Senders, other.Senders...)
	ev.Times = append(ev.Times, other.Times...)
	ev.Values = append(ev.Values, other.Values...)
}

// EventSink receives events from recording devices while the kernel runs.
type EventSink interface {
	WriteEvents(dev NodeID, ev *Events) error
}

// Kernel is the set of capabilities the assembler needs from a simulator.
type Kernel interface {

	// ResetKernel discards all nodes, connections and status.
	ResetKernel() error

	// SetKernelStatus applies the kernel configuration.
	// It must be called before any node is created.
	SetKernelStatus(st Status) error

	// KernelStatus returns the current kernel configuration.
	KernelStatus() Status

	// Create makes n nodes of the given model with the given parameters.
	Create(model string, n int, params Params) (NodeCollection, error)

	// NodeInfo returns the owning virtual process of each node.
	NodeInfo(nc NodeCollection) ([]NodeInfo, error)

	// SetStatus sets parameters or state variables of one node.
	SetStatus(id NodeID, params Params) error

	// Connect connects pre onto post.
	Connect(pre, post NodeCollection, conn ConnSpec, syn SynSpec) error

	// Simulate advances simulated time by t ms and returns when done.
	Simulate(t float64) error

	// Events returns all events recorded so far by a device.
	Events(dev NodeID) (*Events, error)
}
