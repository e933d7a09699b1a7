// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkernel

import (
	"fmt"
	"math"

	"github.com/emer/microcircuit/kernel"
)

///////////////////////////////////////////////////////////////////////
//  iaf.go contains the leaky integrate-and-fire neuron with
//  exponentially decaying postsynaptic currents

// IAFParams are the parameters of the iaf_psc_exp model, plus the exact
// integration propagators derived from them for a given resolution.
type IAFParams struct {

	// membrane capacitance in pF
	CM float64 `def:"250"`

	// membrane time constant in ms
	TauM float64 `def:"10"`

	// excitatory synaptic time constant in ms
	TauSynEx float64 `def:"0.5"`

	// inhibitory synaptic time constant in ms
	TauSynIn float64 `def:"0.5"`

	// refractory period in ms
	TRef float64 `def:"2"`

	// resting potential in mV
	EL float64 `def:"-65"`

	// spike threshold in mV
	VTh float64 `def:"-50"`

	// reset potential in mV
	VReset float64 `def:"-65"`

	// constant external input current in pA
	IE float64

	// resolution the propagators were computed for, in ms
	H float64 `view:"-"`

	// membrane decay over one step
	P22 float64 `view:"-"`

	// synaptic current decays over one step
	P11Ex float64 `view:"-"`
	P11In float64 `view:"-"`

	// synaptic current to membrane propagators
	P21Ex float64 `view:"-"`
	P21In float64 `view:"-"`

	// constant current to membrane propagator
	P20 float64 `view:"-"`

	// refractory period in steps
	RefSteps int `view:"-"`
}

func (ip *IAFParams) Defaults() {
	ip.CM = 250
	ip.TauM = 10
	ip.TauSynEx = 0.5
	ip.TauSynIn = 0.5
	ip.TRef = 2
	ip.EL = -65
	ip.VTh = -50
	ip.VReset = -65
	ip.IE = 0
	if ip.H == 0 {
		ip.H = 0.1
	}
	ip.Update()
}

// Update must be called after any changes to parameters
func (ip *IAFParams) Update() {
	h := ip.H
	ip.P22 = math.Exp(-h / ip.TauM)
	ip.P11Ex = math.Exp(-h / ip.TauSynEx)
	ip.P11In = math.Exp(-h / ip.TauSynIn)
	ip.P21Ex = propagator21(ip.TauSynEx, ip.TauM, ip.CM, h)
	ip.P21In = propagator21(ip.TauSynIn, ip.TauM, ip.CM, h)
	ip.P20 = ip.TauM / ip.CM * (1 - ip.P22)
	ip.RefSteps = int(math.Round(ip.TRef / h))
}

// propagator21 is the contribution of a unit synaptic current to the
// membrane potential over one step.
func propagator21(tauSyn, tauM, cm, h float64) float64 {
	return tauM * tauSyn / (cm * (tauSyn - tauM)) * (math.Exp(-h/tauSyn) - math.Exp(-h/tauM))
}

// IAFParamNames are the parameter names accepted by SetParams.
var IAFParamNames = []string{"C_m", "tau_m", "tau_syn_ex", "tau_syn_in", "t_ref", "E_L", "V_th", "V_reset", "I_e"}

// SetParams sets parameters by name and updates the propagators.
// Parameters not listed in IAFParamNames are ignored and returned.
func (ip *IAFParams) SetParams(pars kernel.Params) (rest kernel.Params) {
	for k, v := range pars {
		switch k {
		case "C_m":
			ip.CM = v
		case "tau_m":
			ip.TauM = v
		case "tau_syn_ex":
			ip.TauSynEx = v
		case "tau_syn_in":
			ip.TauSynIn = v
		case "t_ref":
			ip.TRef = v
		case "E_L":
			ip.EL = v
		case "V_th":
			ip.VTh = v
		case "V_reset":
			ip.VReset = v
		case "I_e":
			ip.IE = v
		default:
			if rest == nil {
				rest = kernel.Params{}
			}
			rest[k] = v
		}
	}
	ip.Update()
	return
}

// Validate checks that the parameters describe a working neuron.
func (ip *IAFParams) Validate() error {
	if !(ip.CM > 0) || !(ip.TauM > 0) || !(ip.TauSynEx > 0) || !(ip.TauSynIn > 0) {
		return fmt.Errorf("%s: capacitance and time constants must be > 0", kernel.IAFPscExp)
	}
	if ip.TauSynEx == ip.TauM || ip.TauSynIn == ip.TauM {
		return fmt.Errorf("%s: synaptic and membrane time constants must differ", kernel.IAFPscExp)
	}
	if ip.TRef < 0 {
		return fmt.Errorf("%s: refractory period must be >= 0", kernel.IAFPscExp)
	}
	if ip.VReset >= ip.VTh {
		return fmt.Errorf("%s: reset potential %v must be below threshold %v", kernel.IAFPscExp, ip.VReset, ip.VTh)
	}
	return nil
}

// Step advances the neuron by one step, given the summed excitatory and
// inhibitory weights and the stimulus current arriving in this step.
// It returns true if the neuron spiked.
func (ip *IAFParams) Step(nrn *Neuron, inEx, inIn, iStim float64) bool {
	if nrn.RefCount == 0 {
		nrn.Vm = nrn.Vm*ip.P22 + (ip.IE+nrn.IStim)*ip.P20 + nrn.ISynEx*ip.P21Ex + nrn.ISynIn*ip.P21In
	} else {
		nrn.RefCount--
	}
	nrn.ISynEx = nrn.ISynEx*ip.P11Ex + inEx
	nrn.ISynIn = nrn.ISynIn*ip.P11In + inIn
	nrn.IStim = iStim
	if nrn.Vm >= ip.VTh-ip.EL {
		nrn.RefCount = ip.RefSteps
		nrn.Vm = ip.VReset - ip.EL
		return true
	}
	return false
}
