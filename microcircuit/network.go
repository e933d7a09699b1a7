// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package microcircuit assembles the multi-layer cortical microcircuit on a
simulation kernel: it derives the scaled network from the configuration,
then creates populations, external inputs, connections and recording
devices, in a fixed order, and keeps the registry of populations.

Derivation happens in NewNetwork, before any kernel call, so configuration
errors never leave a partially built network behind. Every kernel failure
during Assemble is an ErrAssembly, and the network is not usable after it.
*/
package microcircuit

import (
	"io"
	"log/slog"
	"path/filepath"

	"github.com/emer/microcircuit/config"
	"github.com/emer/microcircuit/faults"
	"github.com/emer/microcircuit/kernel"
	"github.com/emer/microcircuit/record"
)

// Population is one entry of the population registry.
type Population struct {
	Name  string
	Index int
	Type  config.PopType

	// neurons of the population
	Nodes kernel.NodeCollection

	// compensatory current given to every neuron as I_e, in pA
	DC float64

	// background Poisson generator, empty if none
	Poisson kernel.NodeCollection

	// stimulus current generator, empty if none
	DCGen kernel.NodeCollection

	// recording devices, 0 if not attached
	SpikeRecorder kernel.NodeID
	Voltmeter     kernel.NodeID
}

// Registrar is told about every recording device when it is created.
type Registrar interface {
	Register(dev kernel.NodeID, label record.Label) error
}

// Network is the assembler of one microcircuit run.
type Network struct {
	Config  *config.Config
	Derived *Derived
	Kernel  kernel.Kernel

	// logger for assembly progress
	Logger *slog.Logger

	// optional receiver of device labels
	Recorder Registrar

	// number of processes and rank of this one
	Processes int
	Rank      int

	// seeds of all random streams of the run
	Seeds kernel.SeedPlan

	// assembler streams, one per virtual process
	Streams *kernel.Streams

	// population registry, in configuration order
	Pops []Population

	// thalamic relay neurons and their generator, empty if off
	Thalamus    kernel.NodeCollection
	ThalPoisson kernel.NodeCollection

	assembled bool
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// NewNetwork derives the scaled network from cfg, which must be updated
// and validated. No kernel call is made.
func NewNetwork(cfg *config.Config, k kernel.Kernel) (*Network, error) {
	d, err := Derive(cfg)
	if err != nil {
		return nil, err
	}
	nt := &Network{Config: cfg, Derived: d, Kernel: k, Logger: discard, Processes: 1}
	return nt, nil
}

// NVP returns the number of virtual processes.
func (nt *Network) NVP() int {
	return max(nt.Config.Sim.Threads, 1) * max(nt.Processes, 1)
}

// Assembled returns whether Assemble completed.
func (nt *Network) Assembled() bool {
	return nt.assembled
}

// Assemble builds the network on the kernel in strict order: kernel setup
// and seeding, populations, thalamic relay, background generators, DC
// generators, recurrent connections, external connections, devices.
func (nt *Network) Assemble() error {
	if nt.assembled {
		return faults.Assembly("assemble", errAssembled)
	}
	steps := []struct {
		name string
		fun  func() error
	}{
		{"setup", nt.setup},
		{"create populations", nt.createPopulations},
		{"create thalamic input", nt.createThalamus},
		{"create poisson input", nt.createPoisson},
		{"create dc input", nt.createDC},
		{"connect populations", nt.connectPopulations},
		{"connect external input", nt.connectExternal},
		{"create devices", nt.createDevices},
	}
	for _, st := range steps {
		if err := st.fun(); err != nil {
			nt.Logger.Error("assembly failed", "step", st.name, "err", err)
			return faults.Assembly(st.name, err)
		}
		nt.Logger.Debug("assembly step done", "step", st.name)
	}
	nt.assembled = true
	nt.Logger.Info("network assembled", "populations", len(nt.Pops), "vps", nt.NVP())
	return nil
}

// Registry returns the neuron range of each population.
func (nt *Network) Registry() []kernel.NodeCollection {
	reg := make([]kernel.NodeCollection, len(nt.Pops))
	for i := range nt.Pops {
		reg[i] = nt.Pops[i].Nodes
	}
	return reg
}

// PopByName returns the population with the given name, or nil.
func (nt *Network) PopByName(name string) *Population {
	for i := range nt.Pops {
		if nt.Pops[i].Name == name {
			return &nt.Pops[i]
		}
	}
	return nil
}

// GIDsPath returns the path of the population registry file.
func (nt *Network) GIDsPath() string {
	return filepath.Join(nt.Config.Sim.DataPath, record.GIDsFile)
}

// Manifest returns the run manifest of the assembled network.
func (nt *Network) Manifest() *record.Manifest {
	cfg := nt.Config
	d := nt.Derived
	m := record.NewManifest()
	m.MasterSeed = cfg.Sim.MasterSeed
	m.VPs = nt.NVP()
	m.Processes = max(nt.Processes, 1)
	m.NScaling = cfg.Net.NScaling
	m.KScaling = cfg.Net.KScaling
	m.Resolution = cfg.Sim.Resolution
	m.TSim = cfg.Sim.TSim
	m.WExt = d.State.WExt
	m.Weights = d.State.Weights
	m.Synapses = d.SynapseCounts()
	m.PoissonInput = cfg.Net.PoissonInput
	m.ThalamicInput = cfg.Stim.ThalamicInput
	m.DCInput = cfg.Stim.DCInput
	for i := range nt.Pops {
		pop := &nt.Pops[i]
		m.Populations = append(m.Populations, record.PopEntry{
			Name:  pop.Name,
			Type:  string(pop.Type),
			Size:  pop.Nodes.Len(),
			First: int(pop.Nodes.First),
			Last:  int(pop.Nodes.Last),
			DC:    pop.DC,
			KExt:  d.State.KExt[i],
		})
	}
	return m
}
