// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package microcircuit

import (
	"errors"
	"fmt"

	"github.com/emer/microcircuit/kernel"
)

// call is one recorded kernel call.
type call struct {
	op    string
	model string
	n     int
	pre   kernel.NodeCollection
	post  kernel.NodeCollection
	conn  kernel.ConnSpec
	syn   kernel.SynSpec
	id    kernel.NodeID
	pars  kernel.Params
}

// fakeKernel records calls and hands out consecutive ids.
type fakeKernel struct {
	status kernel.Status
	calls  []call
	models map[kernel.NodeID]string
	next   kernel.NodeID

	// op that fails, e.g. "Connect"
	failOn string
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{models: map[kernel.NodeID]string{}, next: 1}
}

var errFake = errors.New("fake kernel failure")

func (fk *fakeKernel) fail(op string) error {
	if fk.failOn == op {
		return errFake
	}
	return nil
}

func (fk *fakeKernel) ResetKernel() error {
	fk.calls = append(fk.calls, call{op: "ResetKernel"})
	fk.models = map[kernel.NodeID]string{}
	fk.next = 1
	return fk.fail("ResetKernel")
}

func (fk *fakeKernel) SetKernelStatus(st kernel.Status) error {
	fk.calls = append(fk.calls, call{op: "SetKernelStatus"})
	fk.status = st
	return fk.fail("SetKernelStatus")
}

func (fk *fakeKernel) KernelStatus() kernel.Status {
	return fk.status
}

func (fk *fakeKernel) Create(model string, n int, params kernel.Params) (kernel.NodeCollection, error) {
	fk.calls = append(fk.calls, call{op: "Create", model: model, n: n, pars: params})
	if err := fk.fail("Create"); err != nil {
		return kernel.NodeCollection{}, err
	}
	if n == 0 {
		return kernel.NodeCollection{}, nil
	}
	nc := kernel.NodeCollection{First: fk.next, Last: fk.next + kernel.NodeID(n-1)}
	for id := nc.First; id <= nc.Last; id++ {
		fk.models[id] = model
	}
	fk.next = nc.Last + 1
	return nc, nil
}

func (fk *fakeKernel) NodeInfo(nc kernel.NodeCollection) ([]kernel.NodeInfo, error) {
	nvp := fk.status.TotalVPs()
	procs := max(fk.status.Processes, 1)
	inf := make([]kernel.NodeInfo, 0, nc.Len())
	for _, id := range nc.IDs() {
		vp := int(id) % nvp
		inf = append(inf, kernel.NodeInfo{ID: id, VP: vp, Local: vp%procs == fk.status.Rank})
	}
	return inf, fk.fail("NodeInfo")
}

func (fk *fakeKernel) SetStatus(id kernel.NodeID, params kernel.Params) error {
	fk.calls = append(fk.calls, call{op: "SetStatus", id: id, pars: params})
	if _, ok := fk.models[id]; !ok {
		return fmt.Errorf("unknown node %d", id)
	}
	return fk.fail("SetStatus")
}

func (fk *fakeKernel) Connect(pre, post kernel.NodeCollection, conn kernel.ConnSpec, syn kernel.SynSpec) error {
	fk.calls = append(fk.calls, call{op: "Connect", pre: pre, post: post, conn: conn, syn: syn})
	return fk.fail("Connect")
}

func (fk *fakeKernel) Simulate(t float64) error {
	fk.calls = append(fk.calls, call{op: "Simulate"})
	return fk.fail("Simulate")
}

func (fk *fakeKernel) Events(dev kernel.NodeID) (*kernel.Events, error) {
	return &kernel.Events{}, fk.fail("Events")
}

// ops returns the sequence of ops, with the model of Create calls and
// without SetStatus calls.
func (fk *fakeKernel) ops() []string {
	var ops []string
	for _, c := range fk.calls {
		switch c.op {
		case "SetStatus":
		case "Create":
			ops = append(ops, "Create "+c.model)
		default:
			ops = append(ops, c.op)
		}
	}
	return ops
}
