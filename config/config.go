// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package config holds the three parameter groups of a microcircuit run:
simulation (SimParams), network (NetParams) and stimulus (StimParams).

Each group has Defaults, which sets the Potjans & Diesmann (2014)
full-scale values, Update, which derives the dependent matrices that were
not given explicitly, and Validate, which range- and shape-checks every
field. Load applies them in that order on top of an optional TOML file
and its includes, so malformed input is rejected before any kernel call.
*/
package config

import (
	"cogentcore.org/core/base/iox/tomlx"
)

// PopType is the synaptic sign role of a population as a source.
type PopType string

const (
	// Excitatory sources have weights lower-clipped at zero.
	Excitatory PopType = "E"

	// Inhibitory sources have weights upper-clipped at zero.
	Inhibitory PopType = "I"
)

// Recording device model names accepted in NetParams.Recorders.
const (
	SpikeRecorder = "spike_recorder"
	Voltmeter     = "voltmeter"
)

// SimParams are the simulation-level parameters.
type SimParams struct {

	// simulation time resolution in ms. Also the minimum synaptic delay.
	Resolution float64 `default:"0.1"`

	// maximum synaptic delay in ms accepted by the kernel.
	MaxDelay float64 `default:"20"`

	// number of threads per process. The parallelism degree is
	// Threads times the number of MPI processes.
	Threads int `default:"1" min:"1"`

	// master seed from which every random stream is derived.
	MasterSeed int64 `default:"55"`

	// directory all output files are written to.
	DataPath string `default:"data"`

	// total simulated time in ms.
	TSim float64 `default:"1000"`

	// voltmeter sampling interval in ms.
	RecVInt float64 `default:"1"`

	// if false, existing output files cause an assembly error
	// instead of being replaced.
	Overwrite bool `default:"true"`

	// write per-device event files as tab separated tables.
	TSV bool `default:"true"`

	// also write all events into a SQLite database (events.db).
	EventDB bool
}

// NeuronParams are the exponential-current LIF model parameters,
// shared by all populations.
type NeuronParams struct {

	// membrane capacitance in pF.
	CM float64 `default:"250"`

	// membrane time constant in ms.
	TauM float64 `default:"10"`

	// excitatory synaptic current time constant in ms.
	TauSynEx float64 `default:"0.5"`

	// inhibitory synaptic current time constant in ms.
	TauSynIn float64 `default:"0.5"`

	// resting potential in mV.
	EL float64 `default:"-65"`

	// spike threshold in mV.
	VTh float64 `default:"-50"`

	// reset potential in mV.
	VReset float64 `default:"-65"`

	// absolute refractory period in ms.
	TRef float64 `default:"2"`
}

// NetParams are the network structure parameters.
type NetParams struct {

	// population names, in matrix index order.
	Populations []string

	// sign role of each population as a source. Derived from index
	// parity (even = E, odd = I) if empty.
	Types []PopType

	// neuron model name passed to the kernel.
	NeuronModel string `default:"iaf_psc_exp"`

	// full-scale population sizes.
	NFull []int

	// scaling factor for the number of neurons.
	NScaling float64 `default:"0.1"`

	// scaling factor for the number of synapses (indegrees).
	KScaling float64 `default:"0.1"`

	// connection probabilities, [target][source].
	ConnProbs [][]float64

	// explicit full-scale synapse counts, [target][source]. Derived from
	// ConnProbs and NFull if empty.
	Synapses [][]float64

	// neuron model parameters
	Neuron NeuronParams

	// mean amplitude of excitatory PSPs in mV.
	PSPe float64 `default:"0.15"`

	// relative standard deviation of PSP amplitudes.
	PSPsd float64 `default:"0.1"`

	// relative inhibitory synaptic strength.
	G float64 `default:"-4"`

	// mean PSP amplitude matrix in mV. Derived from PSPe and G if empty.
	PSPMean [][]float64

	// relative PSP standard deviation matrix. Filled with PSPsd if empty.
	PSPStd [][]float64

	// mean delay of excitatory connections in ms.
	DelayE float64 `default:"1.5"`

	// mean delay of inhibitory connections in ms.
	DelayI float64 `default:"0.75"`

	// relative standard deviation of delays.
	DelayRelStd float64 `default:"0.5"`

	// mean delay matrix in ms. Derived from DelayE, DelayI if empty.
	MeanDelay [][]float64

	// delay standard deviation matrix in ms. Derived if empty.
	StdDelay [][]float64

	// number of external (background) inputs per neuron.
	KExt []float64

	// rate of each background input in spikes/s.
	BgRate float64 `default:"8"`

	// mean firing rates of the full-scale network in spikes/s, used
	// to compute the compensatory currents when KScaling != 1.
	FullMeanRates []float64

	// if true, background input is Poisson spike trains,
	// otherwise an equivalent constant current.
	PoissonInput bool `default:"true"`

	// delay of background Poisson input in ms.
	PoissonDelay float64 `default:"1.5"`

	// recording devices attached to every population.
	Recorders []string
}

// StimParams are the optional stimulus parameters.
type StimParams struct {

	// turn thalamic relay input on or off.
	ThalamicInput bool

	// number of thalamic relay neurons.
	NThal int `default:"902"`

	// thalamic firing rate during input in spikes/s.
	ThRate float64 `default:"120"`

	// start of thalamic input in ms.
	ThStart float64 `default:"700"`

	// duration of thalamic input in ms.
	ThDuration float64 `default:"10"`

	// mean PSP amplitude of thalamic connections in mV.
	PSPth float64 `default:"0.15"`

	// mean delay of thalamic input per target population in ms.
	DelayTh []float64

	// delay standard deviation of thalamic input per target population in ms.
	DelayThSd []float64

	// connection probabilities of the thalamus to each population.
	ConnProbsTh []float64

	// turn DC stimulus on or off.
	DCInput bool

	// start of the DC stimulus in ms.
	DCStart float64 `default:"650"`

	// duration of the DC stimulus in ms.
	DCDur float64 `default:"100"`

	// amplitude of the DC stimulus per population, in pA per external input.
	DCAmp []float64
}

// Config is the complete run configuration.
type Config struct {

	// specify include files here, and after configuration,
	// it contains list of include files added.
	Includes []string

	// simulation parameters
	Sim SimParams

	// network parameters
	Net NetParams

	// stimulus parameters
	Stim StimParams
}

// NewConfig returns a Config with default parameters.
func NewConfig() *Config {
	cfg := &Config{}
	cfg.Defaults()
	return cfg
}

// Defaults sets all groups to their default values.
func (cfg *Config) Defaults() {
	cfg.Sim.Defaults()
	cfg.Net.Defaults()
	cfg.Stim.Defaults()
}

// Update derives all dependent values that were not set explicitly.
func (cfg *Config) Update() {
	cfg.Net.Update()
	cfg.Stim.Update(cfg.Net.NPops())
}

// Load returns the default configuration overlaid with the given TOML file
// (if non-empty), updated and validated. An unreadable or malformed file is
// a configuration error.
func Load(file string) (*Config, error) {
	cfg := NewConfig()
	if file != "" {
		if err := openWithIncludes(cfg, file); err != nil {
			return nil, err
		}
	}
	cfg.Update()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a TOML file.
func (cfg *Config) Save(file string) error {
	return tomlx.Save(cfg, file)
}

// NPops returns the number of populations.
func (np *NetParams) NPops() int {
	return len(np.Populations)
}

// IsInhibitory returns whether population j acts as an inhibitory source.
func (np *NetParams) IsInhibitory(j int) bool {
	if j < len(np.Types) {
		return np.Types[j] == Inhibitory
	}
	return j%2 == 1
}

// HasRecorder returns whether the given device model is to be attached.
func (np *NetParams) HasRecorder(model string) bool {
	for _, r := range np.Recorders {
		if r == model {
			return true
		}
	}
	return false
}

// ScaledN returns the scaled size of population i.
func (np *NetParams) ScaledN(i int) int {
	return ScaledSize(np.NFull[i], np.NScaling)
}
