// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package microcircuit

import (
	"errors"
	"fmt"

	"github.com/emer/microcircuit/config"
	"github.com/emer/microcircuit/kernel"
	"github.com/emer/microcircuit/record"
)

var errAssembled = errors.New("network already assembled")

// oneToAll returns the rule and synapse of generator, relay and device connections.
func (nt *Network) oneToAll() (kernel.ConnSpec, kernel.SynSpec) {
	h := nt.Config.Sim.Resolution
	return kernel.ConnSpec{Rule: kernel.AllToAll}, kernel.SynSpec{Model: kernel.StaticSynapse, Weight: kernel.ConstDist(1), Delay: kernel.ConstDist(h)}
}

// setup resets the kernel and derives every random stream from the
// master seed and the number of virtual processes.
func (nt *Network) setup() error {
	sim := &nt.Config.Sim
	nvp := nt.NVP()
	nt.Seeds = kernel.SeedPlan{Master: sim.MasterSeed, NVP: nvp}
	nt.Streams = kernel.NewStreams(nt.Seeds.Assembler(), nvp)
	if err := nt.Kernel.ResetKernel(); err != nil {
		return err
	}
	st := kernel.Status{
		Resolution: sim.Resolution,
		MaxDelay:   sim.MaxDelay,
		Threads:    sim.Threads,
		Processes:  max(nt.Processes, 1),
		Rank:       nt.Rank,
		GlobalSeed: nt.Seeds.Global(),
		VPSeeds:    nt.Seeds.VPSeeds(),
	}
	if err := nt.Kernel.SetKernelStatus(st); err != nil {
		return err
	}
	nt.Logger.Info("kernel set up", "vps", nvp, "master_seed", sim.MasterSeed, "resolution", sim.Resolution)
	return nil
}

// neuronParams returns the model parameters of population i.
func (nt *Network) neuronParams(i int) kernel.Params {
	np := &nt.Config.Net.Neuron
	return kernel.Params{
		"C_m":        np.CM,
		"tau_m":      np.TauM,
		"tau_syn_ex": np.TauSynEx,
		"tau_syn_in": np.TauSynIn,
		"E_L":        np.EL,
		"V_th":       np.VTh,
		"V_reset":    np.VReset,
		"t_ref":      np.TRef,
		"I_e":        nt.Derived.State.DC[i],
	}
}

// createPopulations creates every population and sets the membrane
// potential of each local neuron to a uniform draw in [V_reset, V_th]
// from the stream of its virtual process. The registry file is written
// by rank 0.
func (nt *Network) createPopulations() error {
	net := &nt.Config.Net
	nt.Pops = make([]Population, net.NPops())
	for i := range nt.Pops {
		nc, err := nt.Kernel.Create(net.NeuronModel, nt.Derived.Sizes[i], nt.neuronParams(i))
		if err != nil {
			return fmt.Errorf("population %s: %w", net.Populations[i], err)
		}
		nt.Pops[i] = Population{Name: net.Populations[i], Index: i, Type: net.Types[i], Nodes: nc, DC: nt.Derived.State.DC[i]}
		if err := nt.initVm(nc); err != nil {
			return fmt.Errorf("population %s: %w", net.Populations[i], err)
		}
		nt.Logger.Debug("population created", "name", net.Populations[i], "nodes", nc.String(), "dc", nt.Derived.State.DC[i])
	}
	if nt.Rank == 0 {
		if err := record.WriteGIDs(nt.GIDsPath(), nt.Registry(), nt.Config.Sim.Overwrite); err != nil {
			return err
		}
	}
	nt.Logger.Info("populations created", "n", len(nt.Pops))
	return nil
}

// initVm draws the initial membrane potentials of the local nodes of nc.
func (nt *Network) initVm(nc kernel.NodeCollection) error {
	np := &nt.Config.Net.Neuron
	infos, err := nt.Kernel.NodeInfo(nc)
	if err != nil {
		return err
	}
	for _, ni := range infos {
		if !ni.Local {
			continue
		}
		rnd, err := nt.Streams.VP(ni.VP)
		if err != nil {
			return err
		}
		vm := np.VReset + (np.VTh-np.VReset)*rnd.Float64()
		if err := nt.Kernel.SetStatus(ni.ID, kernel.Params{"V_m": vm}); err != nil {
			return err
		}
	}
	return nil
}

// createThalamus creates the thalamic relay neurons, driven together by
// one Poisson generator during the thalamic input window.
func (nt *Network) createThalamus() error {
	if nt.Derived.Thalamic == nil {
		return nil
	}
	stim := &nt.Config.Stim
	var err error
	nt.Thalamus, err = nt.Kernel.Create(kernel.ParrotNeuron, stim.NThal, nil)
	if err != nil {
		return err
	}
	nt.ThalPoisson, err = nt.Kernel.Create(kernel.PoissonGenerator, 1, kernel.Params{
		"rate":  stim.ThRate,
		"start": stim.ThStart,
		"stop":  stim.ThStop(),
	})
	if err != nil {
		return err
	}
	cs, ss := nt.oneToAll()
	if err := nt.Kernel.Connect(nt.ThalPoisson, nt.Thalamus, cs, ss); err != nil {
		return err
	}
	nt.Logger.Info("thalamic input created", "relays", nt.Thalamus.String(), "rate", stim.ThRate)
	return nil
}

// createPoisson creates one background generator per population.
func (nt *Network) createPoisson() error {
	if nt.Derived.Poisson == nil {
		return nil
	}
	for i := range nt.Pops {
		pg, err := nt.Kernel.Create(kernel.PoissonGenerator, 1, kernel.Params{"rate": nt.Derived.PoissonRates[i]})
		if err != nil {
			return fmt.Errorf("population %s: %w", nt.Pops[i].Name, err)
		}
		nt.Pops[i].Poisson = pg
	}
	nt.Logger.Info("poisson background input created")
	return nil
}

// createDC creates one stimulus current generator per population.
func (nt *Network) createDC() error {
	if nt.Derived.DCAmp == nil {
		return nil
	}
	stim := &nt.Config.Stim
	for i := range nt.Pops {
		dc, err := nt.Kernel.Create(kernel.DCGenerator, 1, kernel.Params{
			"amplitude": nt.Derived.DCAmp[i],
			"start":     stim.DCStart,
			"stop":      stim.DCStop(),
		})
		if err != nil {
			return fmt.Errorf("population %s: %w", nt.Pops[i].Name, err)
		}
		nt.Pops[i].DCGen = dc
	}
	nt.Logger.Info("dc stimulus created", "start", stim.DCStart, "stop", stim.DCStop())
	return nil
}

// connectPopulations issues every recurrent connection plan with a
// non-zero count.
func (nt *Network) connectPopulations() error {
	nsyn := 0
	for i := range nt.Derived.Pairs {
		pp := &nt.Derived.Pairs[i]
		if pp.Conn.N == 0 {
			continue
		}
		pre, post := nt.Pops[pp.Source].Nodes, nt.Pops[pp.Target].Nodes
		if err := nt.Kernel.Connect(pre, post, pp.Conn, pp.Syn); err != nil {
			return fmt.Errorf("%s -> %s: %w", nt.Pops[pp.Source].Name, nt.Pops[pp.Target].Name, err)
		}
		nsyn += pp.Conn.N
	}
	nt.Logger.Info("recurrent connections established", "synapses", nsyn)
	return nil
}

// connectExternal connects the background generators, the thalamic relay
// and the stimulus generators to their populations.
func (nt *Network) connectExternal() error {
	d := nt.Derived
	for _, ep := range d.Poisson {
		pop := &nt.Pops[ep.Target]
		if err := nt.Kernel.Connect(pop.Poisson, pop.Nodes, ep.Conn, ep.Syn); err != nil {
			return fmt.Errorf("poisson -> %s: %w", pop.Name, err)
		}
	}
	for _, ep := range d.Thalamic {
		if ep.Conn.N == 0 {
			continue
		}
		pop := &nt.Pops[ep.Target]
		if err := nt.Kernel.Connect(nt.Thalamus, pop.Nodes, ep.Conn, ep.Syn); err != nil {
			return fmt.Errorf("thalamus -> %s: %w", pop.Name, err)
		}
	}
	if d.DCAmp != nil {
		cs, ss := nt.oneToAll()
		for i := range nt.Pops {
			pop := &nt.Pops[i]
			if err := nt.Kernel.Connect(pop.DCGen, pop.Nodes, cs, ss); err != nil {
				return fmt.Errorf("dc -> %s: %w", pop.Name, err)
			}
		}
	}
	nt.Logger.Info("external input connected")
	return nil
}

// createDevices creates and attaches the recording devices of every
// population and registers them with the Recorder.
func (nt *Network) createDevices() error {
	net := &nt.Config.Net
	cs, ss := nt.oneToAll()
	for i := range nt.Pops {
		pop := &nt.Pops[i]
		if net.HasRecorder(config.SpikeRecorder) {
			sr, err := nt.Kernel.Create(kernel.SpikeRecorder, 1, nil)
			if err != nil {
				return err
			}
			if err := nt.Kernel.Connect(pop.Nodes, sr, cs, ss); err != nil {
				return fmt.Errorf("%s -> spike recorder: %w", pop.Name, err)
			}
			pop.SpikeRecorder = sr.First
			if err := nt.register(sr.First, pop.Name, kernel.SpikeRecorder); err != nil {
				return err
			}
		}
		if net.HasRecorder(config.Voltmeter) {
			vm, err := nt.Kernel.Create(kernel.Voltmeter, 1, kernel.Params{"interval": nt.Config.Sim.RecVInt})
			if err != nil {
				return err
			}
			if err := nt.Kernel.Connect(vm, pop.Nodes, cs, ss); err != nil {
				return fmt.Errorf("voltmeter -> %s: %w", pop.Name, err)
			}
			pop.Voltmeter = vm.First
			if err := nt.register(vm.First, pop.Name, kernel.Voltmeter); err != nil {
				return err
			}
		}
	}
	nt.Logger.Info("devices connected", "recorders", net.Recorders)
	return nil
}

func (nt *Network) register(dev kernel.NodeID, pop, model string) error {
	if nt.Recorder == nil {
		return nil
	}
	return nt.Recorder.Register(dev, record.Label{Population: pop, Model: model})
}

// Devices returns the recording devices of all populations with their labels.
func (nt *Network) Devices() map[kernel.NodeID]record.Label {
	devs := map[kernel.NodeID]record.Label{}
	for i := range nt.Pops {
		pop := &nt.Pops[i]
		if pop.SpikeRecorder != 0 {
			devs[pop.SpikeRecorder] = record.Label{Population: pop.Name, Model: kernel.SpikeRecorder}
		}
		if pop.Voltmeter != 0 {
			devs[pop.Voltmeter] = record.Label{Population: pop.Name, Model: kernel.Voltmeter}
		}
	}
	return devs
}
