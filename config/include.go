// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"path/filepath"

	"cogentcore.org/core/base/iox/tomlx"
	"github.com/emer/microcircuit/faults"
)

// maxIncludeDepth bounds include chains, so that a file including itself
// is reported instead of recursing.
const maxIncludeDepth = 16

// openWithIncludes reads cfg from the given TOML file, first applying any
// Includes it names in the natural include order, so that the includer
// overwrites included settings. Include files are looked up next to the
// file that names them and in the current directory. On return, Includes
// holds the full include stack.
func openWithIncludes(cfg *Config, file string) error {
	paths := []string{filepath.Dir(file), "."}
	if err := tomlx.Open(cfg, file); err != nil {
		return faults.Configf("config: reading %s: %v", file, err)
	}
	incs, err := includeStack(cfg.Includes, paths, 0)
	if err != nil {
		return err
	}
	if len(incs) == 0 {
		return nil
	}
	for i := len(incs) - 1; i >= 0; i-- {
		if err := openOnPaths(cfg, incs[i], paths); err != nil {
			return faults.Configf("config: reading include %s: %v", incs[i], err)
		}
	}
	// reopen original
	if err := tomlx.Open(cfg, file); err != nil {
		return faults.Configf("config: reading %s: %v", file, err)
	}
	cfg.Includes = incs
	return nil
}

// includeStack returns the include files in the order encountered,
// each level in reverse so that later entries overwrite earlier ones.
// Files are read into a scratch Config, leaving the caller's untouched.
func includeStack(incs []string, paths []string, depth int) ([]string, error) {
	if len(incs) == 0 {
		return nil, nil
	}
	if depth >= maxIncludeDepth {
		return nil, faults.Configf("config: includes nested deeper than %d: %v", maxIncludeDepth, incs)
	}
	var stack []string
	for i := len(incs) - 1; i >= 0; i-- {
		stack = append(stack, incs[i])
	}
	var errs []error
	for _, inc := range incs {
		clone := &Config{}
		if err := openOnPaths(clone, inc, paths); err != nil {
			errs = append(errs, faults.Configf("config: reading include %s: %v", inc, err))
			continue
		}
		sub, err := includeStack(clone.Includes, paths, depth+1)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		stack = append(stack, sub...)
	}
	return stack, errors.Join(errs...)
}

// openOnPaths reads v from file, looking for a relative file on paths.
func openOnPaths(v any, file string, paths []string) error {
	if filepath.IsAbs(file) {
		return tomlx.Open(v, file)
	}
	return tomlx.OpenFromPaths(v, file, paths...)
}
