// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package record writes the outputs of a microcircuit run: the population
registry file, the recorded events of every device (as tab separated
tables and optionally a SQLite database) and a YAML run manifest.

No output file is replaced unless overwriting is allowed.
*/
package record

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emer/microcircuit/kernel"
)

// GIDsFile is the name of the population registry file.
const GIDsFile = "population_GIDs.dat"

// CheckWritable returns an error if path exists and overwrite is false.
func CheckWritable(path string, overwrite bool) error {
	if overwrite {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s exists and overwriting is disabled", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

// create creates path and its directory, honoring overwrite.
func create(path string, overwrite bool) (*os.File, error) {
	if err := CheckWritable(path, overwrite); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.Create(path)
}

// WriteGIDs writes one "first  last" line per population.
func WriteGIDs(path string, pops []kernel.NodeCollection, overwrite bool) error {
	f, err := create(path, overwrite)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, nc := range pops {
		fmt.Fprintf(w, "%d  %d\n", nc.First, nc.Last)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadGIDs reads a file written by WriteGIDs.
func ReadGIDs(path string) ([]kernel.NodeCollection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pops []kernel.NodeCollection
	for i, ln := range strings.Split(strings.TrimSpace(string(b)), "\n") {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		var nc kernel.NodeCollection
		if _, err := fmt.Sscan(ln, &nc.First, &nc.Last); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
		pops = append(pops, nc)
	}
	return pops, nil
}
