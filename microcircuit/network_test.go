// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package microcircuit

import (
	"errors"
	"math"
	"os"
	"slices"
	"testing"

	"github.com/emer/microcircuit/config"
	"github.com/emer/microcircuit/faults"
	"github.com/emer/microcircuit/kernel"
	"github.com/emer/microcircuit/memkernel"
	"github.com/emer/microcircuit/record"
)

// testConfig returns a small full-structure microcircuit writing into a
// temporary directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Sim.DataPath = t.TempDir()
	cfg.Sim.TSim = 50
	cfg.Net.NScaling = 0.01
	cfg.Net.KScaling = 0.02
	cfg.Update()
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTestNetwork(t *testing.T, cfg *config.Config, k kernel.Kernel) *Network {
	t.Helper()
	nt, err := NewNetwork(cfg, k)
	if err != nil {
		t.Fatal(err)
	}
	return nt
}

func TestAssembleOrder(t *testing.T) {
	cfg := testConfig(t)
	fk := newFakeKernel()
	nt := newTestNetwork(t, cfg, fk)
	if err := nt.Assemble(); err != nil {
		t.Fatal(err)
	}
	npop := cfg.Net.NPops()
	want := []string{"ResetKernel", "SetKernelStatus"}
	for range npop {
		want = append(want, "Create "+kernel.IAFPscExp)
	}
	for range npop {
		want = append(want, "Create "+kernel.PoissonGenerator)
	}
	for _, pp := range nt.Derived.Pairs {
		if pp.Conn.N > 0 {
			want = append(want, "Connect")
		}
	}
	for range npop {
		want = append(want, "Connect")
	}
	for range npop {
		want = append(want, "Create "+kernel.SpikeRecorder, "Connect")
	}
	got := fk.ops()
	if !slices.Equal(got, want) {
		t.Errorf("kernel calls:\n%v\nwant:\n%v", got, want)
	}
	if slices.Contains(got, "Create "+kernel.ParrotNeuron) {
		t.Error("thalamic relay created although thalamic input is off")
	}
	if !nt.Assembled() {
		t.Error("network not marked assembled")
	}
	for i := range nt.Pops {
		if nt.Pops[i].Nodes.Len() != nt.Derived.Sizes[i] {
			t.Errorf("%s has %d neurons, want %d", nt.Pops[i].Name, nt.Pops[i].Nodes.Len(), nt.Derived.Sizes[i])
		}
	}
}

func TestSeeds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sim.Threads = 2
	fk := newFakeKernel()
	nt := newTestNetwork(t, cfg, fk)
	nt.Processes = 2
	if err := nt.Assemble(); err != nil {
		t.Fatal(err)
	}
	st := fk.KernelStatus()
	m := cfg.Sim.MasterSeed
	if st.GlobalSeed != m+4 {
		t.Errorf("global seed %d, want %d", st.GlobalSeed, m+4)
	}
	if !slices.Equal(st.VPSeeds, []int64{m + 5, m + 6, m + 7, m + 8}) {
		t.Errorf("vp seeds %v", st.VPSeeds)
	}
	if !slices.Equal(nt.Streams.Seeds(), []int64{m, m + 1, m + 2, m + 3}) {
		t.Errorf("assembler seeds %v", nt.Streams.Seeds())
	}
}

func TestInitVm(t *testing.T) {
	cfg := testConfig(t)
	fk := newFakeKernel()
	nt := newTestNetwork(t, cfg, fk)
	nt.Processes = 2
	nt.Rank = 1
	if err := nt.Assemble(); err != nil {
		t.Fatal(err)
	}
	np := &cfg.Net.Neuron
	set := map[kernel.NodeID]int{}
	for _, c := range fk.calls {
		if c.op != "SetStatus" {
			continue
		}
		vm, ok := c.pars["V_m"]
		if !ok {
			continue
		}
		if vm < np.VReset || vm > np.VTh {
			t.Errorf("node %d: V_m %v outside [%v, %v]", c.id, vm, np.VReset, np.VTh)
		}
		set[c.id]++
	}
	for i := range nt.Pops {
		for _, id := range nt.Pops[i].Nodes.IDs() {
			local := int(id)%2 == 1
			switch {
			case local && set[id] != 1:
				t.Errorf("local node %d initialized %d times", id, set[id])
			case !local && set[id] != 0:
				t.Errorf("remote node %d initialized", id)
			}
		}
	}
	if _, err := os.Stat(nt.GIDsPath()); !os.IsNotExist(err) {
		t.Error("rank 1 wrote the population registry")
	}
}

func TestThalamicAndDC(t *testing.T) {
	cfg := testConfig(t)
	cfg.Stim.ThalamicInput = true
	cfg.Stim.DCInput = true
	fk := newFakeKernel()
	nt := newTestNetwork(t, cfg, fk)
	if err := nt.Assemble(); err != nil {
		t.Fatal(err)
	}
	if nt.Thalamus.Len() != cfg.Stim.NThal {
		t.Errorf("thalamus has %d relays, want %d", nt.Thalamus.Len(), cfg.Stim.NThal)
	}
	var parrot, dcs int
	for ci, c := range fk.calls {
		if c.op != "Create" {
			continue
		}
		switch c.model {
		case kernel.ParrotNeuron:
			parrot = ci
		case kernel.PoissonGenerator:
			if c.pars["start"] == cfg.Stim.ThStart {
				if c.pars["rate"] != cfg.Stim.ThRate || c.pars["stop"] != cfg.Stim.ThStop() {
					t.Errorf("thalamic generator params %v", c.pars)
				}
				if ci != parrot+1 {
					t.Error("thalamic generator not created right after the relays")
				}
			}
		case kernel.DCGenerator:
			want := cfg.Net.KExt[dcs] * cfg.Stim.DCAmp[dcs]
			if math.Abs(c.pars["amplitude"]-want) > 1e-9 {
				t.Errorf("dc %d amplitude %v, want %v", dcs, c.pars["amplitude"], want)
			}
			dcs++
		}
	}
	if dcs != cfg.Net.NPops() {
		t.Errorf("%d dc generators, want %d", dcs, cfg.Net.NPops())
	}
	thal := map[kernel.NodeCollection]int{}
	for _, c := range fk.calls {
		if c.op == "Connect" && c.pre == nt.Thalamus {
			thal[c.post] = c.conn.N
		}
	}
	for i, ep := range nt.Derived.Thalamic {
		n, ok := thal[nt.Pops[i].Nodes]
		if ep.Conn.N == 0 && ok {
			t.Errorf("thalamus connected to %s with zero synapses", nt.Pops[i].Name)
		}
		if ep.Conn.N > 0 && n != ep.Conn.N {
			t.Errorf("thalamus -> %s: %d synapses, want %d", nt.Pops[i].Name, n, ep.Conn.N)
		}
		if cfg.Stim.ConnProbsTh[i] == 0 && ep.Conn.N != 0 {
			t.Errorf("%s gets %d thalamic synapses at zero probability", nt.Pops[i].Name, ep.Conn.N)
		}
	}
}

func TestAssemblyFailure(t *testing.T) {
	for _, op := range []string{"ResetKernel", "Create", "SetStatus", "Connect"} {
		cfg := testConfig(t)
		fk := newFakeKernel()
		fk.failOn = op
		nt := newTestNetwork(t, cfg, fk)
		err := nt.Assemble()
		if !errors.Is(err, faults.ErrAssembly) || !errors.Is(err, errFake) {
			t.Errorf("%s failure: got %v", op, err)
		}
		if nt.Assembled() {
			t.Errorf("%s failure: network marked assembled", op)
		}
	}
}

func TestAssembleTwice(t *testing.T) {
	nt := newTestNetwork(t, testConfig(t), newFakeKernel())
	if err := nt.Assemble(); err != nil {
		t.Fatal(err)
	}
	if err := nt.Assemble(); !errors.Is(err, faults.ErrAssembly) {
		t.Errorf("second Assemble: got %v", err)
	}
}

func TestConfigError(t *testing.T) {
	cfg := testConfig(t)
	cfg.Net.PoissonDelay = cfg.Sim.MaxDelay + 1
	fk := newFakeKernel()
	_, err := NewNetwork(cfg, fk)
	if !errors.Is(err, faults.ErrConfiguration) {
		t.Errorf("got %v, want configuration error", err)
	}
	if len(fk.calls) > 0 {
		t.Errorf("kernel called on bad configuration: %v", fk.ops())
	}
}

func TestDeriveCurrentInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Net.PoissonInput = false
	cfg.Net.KScaling = 1
	d, err := Derive(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if d.Poisson != nil || d.PoissonRates != nil {
		t.Error("poisson plans derived for current input")
	}
	for i, dc := range d.State.DC {
		if !(dc > 0) {
			t.Errorf("population %d: background current %v", i, dc)
		}
	}
}

func TestAssembleMemKernel(t *testing.T) {
	cfg := testConfig(t)
	k := memkernel.New()
	nt := newTestNetwork(t, cfg, k)
	if err := nt.Assemble(); err != nil {
		t.Fatal(err)
	}
	np := &cfg.Net.Neuron
	for i := range nt.Pops {
		pop := &nt.Pops[i]
		for _, id := range pop.Nodes.IDs() {
			st, err := k.GetStatus(id)
			if err != nil {
				t.Fatal(err)
			}
			if st["V_m"] < np.VReset || st["V_m"] > np.VTh {
				t.Errorf("%s node %d: V_m %v", pop.Name, id, st["V_m"])
			}
			if math.Abs(st["I_e"]-pop.DC) > 1e-9 {
				t.Errorf("%s node %d: I_e %v, want %v", pop.Name, id, st["I_e"], pop.DC)
			}
		}
	}

	nsyn := 0
	for _, pp := range nt.Derived.Pairs {
		nsyn += pp.Conn.N
	}
	for _, sz := range nt.Derived.Sizes {
		nsyn += sz // poisson input
	}
	if n := k.NumConnections(); n != nsyn {
		t.Errorf("%d connections, want %d", n, nsyn)
	}

	reg, err := record.ReadGIDs(nt.GIDsPath())
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(reg, nt.Registry()) {
		t.Errorf("registry file %v, want %v", reg, nt.Registry())
	}

	if err := k.Simulate(cfg.Sim.TSim); err != nil {
		t.Fatal(err)
	}
	spikes := 0
	for dev := range nt.Devices() {
		ev, err := k.Events(dev)
		if err != nil {
			t.Fatal(err)
		}
		spikes += ev.Len()
	}
	if spikes == 0 {
		t.Error("no spikes recorded")
	}
}

func TestReproducible(t *testing.T) {
	build := func() (*Network, *memkernel.Kernel) {
		cfg := testConfig(t)
		k := memkernel.New()
		nt := newTestNetwork(t, cfg, k)
		if err := nt.Assemble(); err != nil {
			t.Fatal(err)
		}
		return nt, k
	}
	nt1, k1 := build()
	nt2, k2 := build()
	for i := range nt1.Pops {
		for _, id := range nt1.Pops[i].Nodes.IDs() {
			s1, _ := k1.GetStatus(id)
			s2, _ := k2.GetStatus(id)
			if s1["V_m"] != s2["V_m"] {
				t.Fatalf("node %d: V_m %v != %v", id, s1["V_m"], s2["V_m"])
			}
		}
	}
	l4e1, l4e2 := nt1.PopByName("L4E").Nodes, nt2.PopByName("L4E").Nodes
	if !slices.Equal(k1.Connections(l4e1, l4e1), k2.Connections(l4e2, l4e2)) {
		t.Error("L4E -> L4E connectivity differs for the same seed")
	}
}

func TestOverwriteRefused(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sim.Overwrite = false
	nt := newTestNetwork(t, cfg, newFakeKernel())
	if err := os.WriteFile(nt.GIDsPath(), []byte("old\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := nt.Assemble(); !errors.Is(err, faults.ErrAssembly) {
		t.Errorf("got %v, want assembly error", err)
	}
	b, _ := os.ReadFile(nt.GIDsPath())
	if string(b) != "old\n" {
		t.Error("registry file was overwritten")
	}
}

func TestManifest(t *testing.T) {
	cfg := testConfig(t)
	nt := newTestNetwork(t, cfg, newFakeKernel())
	if err := nt.Assemble(); err != nil {
		t.Fatal(err)
	}
	m := nt.Manifest()
	if m.RunID == "" {
		t.Error("manifest has no run id")
	}
	if len(m.Populations) != cfg.Net.NPops() {
		t.Fatalf("%d populations in manifest", len(m.Populations))
	}
	for i, pe := range m.Populations {
		if pe.Size != nt.Derived.Sizes[i] || pe.Name != cfg.Net.Populations[i] {
			t.Errorf("manifest entry %d: %+v", i, pe)
		}
	}
	for _, pp := range nt.Derived.Pairs {
		if m.Synapses[pp.Target][pp.Source] != pp.Conn.N {
			t.Errorf("synapses %d <- %d: %d, want %d", pp.Target, pp.Source, m.Synapses[pp.Target][pp.Source], pp.Conn.N)
		}
	}
}
