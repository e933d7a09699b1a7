// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the name of the run manifest.
const ManifestFile = "manifest.yaml"

// PopEntry describes one assembled population.
type PopEntry struct {
	Name  string  `yaml:"name"`
	Type  string  `yaml:"type"`
	Size  int     `yaml:"size"`
	First int     `yaml:"first"`
	Last  int     `yaml:"last"`
	DC    float64 `yaml:"dc_pA"`
	KExt  float64 `yaml:"k_ext"`
}

// Manifest summarizes an assembled run: its identity, parallelism,
// scale factors and the scaled quantities the network was built from.
type Manifest struct {
	RunID      string `yaml:"run_id"`
	MasterSeed int64  `yaml:"master_seed"`
	VPs        int    `yaml:"virtual_processes"`
	Processes  int    `yaml:"processes"`

	NScaling float64 `yaml:"n_scaling"`
	KScaling float64 `yaml:"k_scaling"`

	Resolution float64 `yaml:"resolution_ms"`
	TSim       float64 `yaml:"t_sim_ms"`

	WExt    float64     `yaml:"w_ext_pA"`
	Weights [][]float64 `yaml:"weights_pA"`

	// rounded synapse counts actually requested, [target][source]
	Synapses [][]int `yaml:"synapses"`

	PoissonInput  bool `yaml:"poisson_input"`
	ThalamicInput bool `yaml:"thalamic_input"`
	DCInput       bool `yaml:"dc_input"`

	Populations []PopEntry `yaml:"populations"`
}

// NewManifest returns a manifest with a fresh run id.
func NewManifest() *Manifest {
	return &Manifest{RunID: uuid.NewString()}
}

// WriteManifest writes m as YAML.
func WriteManifest(path string, m *Manifest, overwrite bool) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	f, err := create(path, overwrite)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadManifest reads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, err
	}
	return m, nil
}
