// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkernel

import (
	"fmt"
)

// Neuron holds the state of one exponential-current LIF neuron.
// Vm is stored relative to the resting potential.
type Neuron struct {

	// membrane potential relative to E_L, in mV
	Vm float64

	// excitatory synaptic current in pA
	ISynEx float64

	// inhibitory synaptic current in pA (negative)
	ISynIn float64

	// external stimulus current received in the last step, in pA
	IStim float64

	// remaining refractory steps
	RefCount int
}

// NeuronVars are the names of the state variables of a Neuron,
// as used by SetStatus and GetStatus.
var NeuronVars = []string{"V_m", "I_syn_ex", "I_syn_in"}

var NeuronVarsMap map[string]int

func init() {
	NeuronVarsMap = make(map[string]int, len(NeuronVars))
	for i, v := range NeuronVars {
		NeuronVarsMap[v] = i
	}
}

// VarByName returns a state variable by name, with V_m in absolute terms
// for resting potential el.
func (nrn *Neuron) VarByName(varNm string, el float64) (float64, error) {
	switch varNm {
	case "V_m":
		return nrn.Vm + el, nil
	case "I_syn_ex":
		return nrn.ISynEx, nil
	case "I_syn_in":
		return nrn.ISynIn, nil
	}
	return 0, fmt.Errorf("Neuron VarByName: variable name: %v not valid", varNm)
}

// SetVarByName sets a state variable by name, with V_m in absolute terms.
func (nrn *Neuron) SetVarByName(varNm string, val, el float64) error {
	switch varNm {
	case "V_m":
		nrn.Vm = val - el
	case "I_syn_ex":
		nrn.ISynEx = val
	case "I_syn_in":
		nrn.ISynIn = val
	default:
		return fmt.Errorf("Neuron SetVarByName: variable name: %v not valid", varNm)
	}
	return nil
}
