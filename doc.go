// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package microcircuit is the overall repository for the multi-layer cortical
microcircuit model of Potjans & Diesmann (2014), implemented in the Go
language (golang), downscalable in neuron count and indegree.

This top-level of the repository has no functional code -- everything is organized
into the following sub-repositories:

* config: the simulation, network and stimulus parameter groups, with
full-scale defaults, TOML loading and validation.

* scale: the scaling engine: PSP to PSC weight conversion, synapse counts
from connection probabilities, and scaled weights with the compensatory
currents that preserve the mean input of each population.

* conn: the connectivity planner, turning the scaled state into
fixed-total-number connection plans with clipped normal weights and delays.

* kernel: the boundary to a spiking simulation kernel, with the random
stream plan of each virtual process.

* memkernel: an in-process kernel with exact-integration LIF neurons,
Poisson and DC generators and recording devices, updating each virtual
process in its own goroutine.

* microcircuit: the network assembler and population registry.

* record: population registry file, event sinks (TSV, SQLite) and the
run manifest.

* sim: the driver of one run: setup, assembly, simulation and event
collection.

* examples: these actually compile into runnable programs. examples/microcircuit
is the command line tool, examples/bench times assembly and simulation.
*/
package microcircuit
