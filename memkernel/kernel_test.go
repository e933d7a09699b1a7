// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package memkernel

import (
	"math"
	"testing"

	"github.com/emer/microcircuit/kernel"
	"github.com/emer/microcircuit/scale"
)

const difTol = 1.0e-8

func newKernel(t *testing.T, threads int, seed int64, opts ...Option) *Kernel {
	t.Helper()
	k := New(opts...)
	sp := kernel.SeedPlan{Master: seed, NVP: threads}
	err := k.SetKernelStatus(kernel.Status{
		Resolution: 0.1,
		MaxDelay:   20,
		Threads:    threads,
		Processes:  1,
		GlobalSeed: sp.Global(),
		VPSeeds:    sp.VPSeeds(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func mustCreate(t *testing.T, k *Kernel, model string, n int, pars kernel.Params) kernel.NodeCollection {
	t.Helper()
	nc, err := k.Create(model, n, pars)
	if err != nil {
		t.Fatal(err)
	}
	return nc
}

func TestIAFPropagators(t *testing.T) {
	ip := &IAFParams{H: 0.1}
	ip.Defaults()
	if dif := math.Abs(ip.P22 - math.Exp(-0.01)); dif > difTol {
		t.Errorf("P22 = %v", ip.P22)
	}
	if dif := math.Abs(ip.P11Ex - math.Exp(-0.2)); dif > difTol {
		t.Errorf("P11 = %v", ip.P11Ex)
	}
	if ip.P21Ex <= 0 || ip.P21Ex != ip.P21In {
		t.Errorf("P21 = %v, %v", ip.P21Ex, ip.P21In)
	}
	if ip.RefSteps != 20 {
		t.Errorf("refractory steps = %d", ip.RefSteps)
	}
	bad := *ip
	bad.VReset = bad.VTh
	if bad.Validate() == nil {
		t.Errorf("reset at threshold validated")
	}
}

// A neuron driven by a constant current fires first when the exact
// solution crosses threshold.
func TestConstantCurrentSpike(t *testing.T) {
	k := newKernel(t, 1, 12)
	nrn := mustCreate(t, k, kernel.IAFPscExp, 1, kernel.Params{"I_e": 1000})
	sr := mustCreate(t, k, kernel.SpikeRecorder, 1, nil)
	if err := k.Connect(nrn, sr, kernel.ConnSpec{Rule: kernel.AllToAll}, kernel.SynSpec{Weight: kernel.ConstDist(1), Delay: kernel.ConstDist(0.1)}); err != nil {
		t.Fatal(err)
	}
	if err := k.Simulate(50); err != nil {
		t.Fatal(err)
	}
	ev, err := k.Events(sr.First)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Len() < 2 {
		t.Fatalf("got %d spikes, want several", ev.Len())
	}
	vinf := 1000 * 10.0 / 250
	vm := func(ts float64) float64 { return vinf * (1 - math.Exp(-ts/10)) }
	ts := ev.Times[0]
	if !(vm(ts-0.1) < 15-difTol && vm(ts) >= 15-difTol) {
		t.Errorf("first spike at %v: V before %v, at %v", ts, vm(ts-0.1), vm(ts))
	}
	if ev.Senders[0] != nrn.First {
		t.Errorf("sender %d", ev.Senders[0])
	}
	// refractory period separates spikes
	for i := 1; i < ev.Len(); i++ {
		if ev.Times[i]-ev.Times[i-1] < 2 {
			t.Errorf("interval %v shorter than refractory period", ev.Times[i]-ev.Times[i-1])
		}
	}
	if math.Abs(k.Time()-50) > difTol {
		t.Errorf("time %v after 50 ms", k.Time())
	}
}

// A weight computed for a 1 mV PSP gives a 1 mV peak deflection.
func TestPSPAmplitude(t *testing.T) {
	k := newKernel(t, 1, 12)
	pre := mustCreate(t, k, kernel.IAFPscExp, 1, kernel.Params{"I_e": 1000})
	post := mustCreate(t, k, kernel.IAFPscExp, 1, nil)
	vm := mustCreate(t, k, kernel.Voltmeter, 1, kernel.Params{"interval": 0.1})
	w := scale.PSCFromPSP(1, 250, 10, 0.5)
	if err := k.Connect(pre, post, kernel.ConnSpec{Rule: kernel.OneToOne}, kernel.SynSpec{Weight: kernel.ConstDist(w), Delay: kernel.ConstDist(1)}); err != nil {
		t.Fatal(err)
	}
	if err := k.Connect(vm, post, kernel.ConnSpec{Rule: kernel.AllToAll}, kernel.SynSpec{Weight: kernel.ConstDist(1), Delay: kernel.ConstDist(0.1)}); err != nil {
		t.Fatal(err)
	}
	if err := k.Simulate(11); err != nil {
		t.Fatal(err)
	}
	ev, err := k.Events(vm.First)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Len() != 110 {
		t.Fatalf("got %d samples, want 110", ev.Len())
	}
	peak := math.Inf(-1)
	for i, v := range ev.Values {
		if ev.Times[i] < 4 && v != -65 {
			t.Errorf("V_m %v at %v before any input", v, ev.Times[i])
		}
		peak = max(peak, v)
	}
	if dif := math.Abs(peak + 64); dif > 0.01 {
		t.Errorf("PSP peak %v mV, want 1", peak+65)
	}
}

func TestPoissonParrot(t *testing.T) {
	k := newKernel(t, 1, 3)
	pg := mustCreate(t, k, kernel.PoissonGenerator, 1, kernel.Params{"rate": 100, "start": 200, "stop": 1200})
	par := mustCreate(t, k, kernel.ParrotNeuron, 2, nil)
	sr := mustCreate(t, k, kernel.SpikeRecorder, 1, nil)
	one := kernel.SynSpec{Weight: kernel.ConstDist(1), Delay: kernel.ConstDist(0.5)}
	if err := k.Connect(pg, par, kernel.ConnSpec{Rule: kernel.AllToAll}, one); err != nil {
		t.Fatal(err)
	}
	if err := k.Connect(par, sr, kernel.ConnSpec{Rule: kernel.AllToAll}, one); err != nil {
		t.Fatal(err)
	}
	if err := k.Simulate(1500); err != nil {
		t.Fatal(err)
	}
	ev, _ := k.Events(sr.First)
	cnt := map[kernel.NodeID]int{}
	for i, s := range ev.Senders {
		cnt[s]++
		if ts := ev.Times[i]; ts < 200.5 || ts > 1200.6 {
			t.Errorf("parrot spike at %v outside active window", ts)
		}
	}
	for _, id := range par.IDs() {
		if cnt[id] < 50 || cnt[id] > 150 {
			t.Errorf("parrot %d relayed %d spikes, want about 100", id, cnt[id])
		}
	}
}

func TestDCGenerator(t *testing.T) {
	k := newKernel(t, 1, 3)
	dc := mustCreate(t, k, kernel.DCGenerator, 1, kernel.Params{"amplitude": 1000, "start": 10, "stop": 20})
	nrn := mustCreate(t, k, kernel.IAFPscExp, 2, nil)
	sr := mustCreate(t, k, kernel.SpikeRecorder, 1, nil)
	if err := k.Connect(dc, kernel.NodeCollection{First: nrn.First, Last: nrn.First}, kernel.ConnSpec{Rule: kernel.AllToAll}, kernel.SynSpec{Weight: kernel.ConstDist(1), Delay: kernel.ConstDist(0.1)}); err != nil {
		t.Fatal(err)
	}
	if err := k.Connect(nrn, sr, kernel.ConnSpec{Rule: kernel.AllToAll}, kernel.SynSpec{Weight: kernel.ConstDist(1), Delay: kernel.ConstDist(0.1)}); err != nil {
		t.Fatal(err)
	}
	if err := k.Simulate(40); err != nil {
		t.Fatal(err)
	}
	ev, _ := k.Events(sr.First)
	if ev.Len() == 0 {
		t.Fatalf("driven neuron did not fire")
	}
	for i, s := range ev.Senders {
		if s != nrn.First {
			t.Errorf("undriven neuron %d fired", s)
		}
		if ev.Times[i] < 10 || ev.Times[i] > 21 {
			t.Errorf("spike at %v outside stimulus window", ev.Times[i])
		}
	}
}
