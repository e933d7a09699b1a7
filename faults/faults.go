// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package faults defines the error kinds raised while building and running a
microcircuit. All of them are fatal: there is no recoverable category.
Callers test for a kind with errors.Is.
*/
package faults

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is a malformed or inconsistent configuration, or a
	// non-finite derived quantity. Raised before any kernel call.
	ErrConfiguration = errors.New("configuration error")

	// ErrAssembly is a kernel rejection of a population, connection
	// or device request.
	ErrAssembly = errors.New("assembly error")

	// ErrRun is a kernel failure while advancing simulated time.
	ErrRun = errors.New("run error")
)

// Configf returns an ErrConfiguration with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Assembly wraps err as an ErrAssembly, naming the step that failed.
func Assembly(step string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAssembly) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrAssembly, step, err)
}

// Run wraps err as an ErrRun.
func Run(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRun) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRun, err)
}
