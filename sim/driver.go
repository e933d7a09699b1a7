// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package sim drives one microcircuit run: Setup builds the kernel and the
event sinks and derives the network, Assemble builds it on the kernel,
Run advances simulated time, and CollectEvents returns what the recording
devices saw. A Driver owns the kernel for the whole run; there is no
package-level simulator state.
*/
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	cerrors "cogentcore.org/core/base/errors"
	"cogentcore.org/lab/base/mpi"
	"github.com/emer/microcircuit/config"
	"github.com/emer/microcircuit/faults"
	"github.com/emer/microcircuit/kernel"
	"github.com/emer/microcircuit/memkernel"
	"github.com/emer/microcircuit/microcircuit"
	"github.com/emer/microcircuit/record"
)

var (
	errNotSetup     = errors.New("driver is not set up")
	errNotAssembled = errors.New("network is not assembled")
)

// Driver is one run of the microcircuit.
type Driver struct {
	Config *config.Config
	Logger *slog.Logger

	// simulation kernel. If nil at Setup, an in-process memkernel
	// streaming into Sink is created.
	Kernel kernel.Kernel

	// network assembler, set by Setup
	Net *microcircuit.Network

	// event sinks of the run, set by Setup on rank 0
	Sink record.MultiSink

	// event database, nil unless Sim.EventDB
	DB *record.SQLiteSink

	// number of processes and rank of this one, from mpi at Setup
	Processes int
	Rank      int

	// simulated time so far in ms
	Time float64

	ctx context.Context
}

// Option configures a Driver.
type Option func(*Driver)

// WithKernel runs the network on k instead of a new memkernel.
// Events of k are not streamed to the sinks.
func WithKernel(k kernel.Kernel) Option {
	return func(dr *Driver) { dr.Kernel = k }
}

// WithLogger sets the logger of the driver and the assembler.
func WithLogger(l *slog.Logger) Option {
	return func(dr *Driver) { dr.Logger = l }
}

// WithContext sets the context used for database writes.
func WithContext(ctx context.Context) Option {
	return func(dr *Driver) { dr.ctx = ctx }
}

// NewDriver returns a driver of the run configured by cfg, which must be
// updated and validated.
func NewDriver(cfg *config.Config, opts ...Option) *Driver {
	dr := &Driver{Config: cfg, ctx: context.Background()}
	for _, o := range opts {
		o(dr)
	}
	if dr.Logger == nil {
		dr.Logger = slog.Default()
	}
	return dr
}

// Setup derives the network, opens the event sinks and creates the
// kernel. Configuration failures are ErrConfiguration and happen before
// any kernel call or output file; failures to open outputs are ErrAssembly.
func (dr *Driver) Setup() error {
	dr.Processes = max(mpi.WorldSize(), 1)
	dr.Rank = mpi.WorldRank()
	cfg := dr.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	nt, err := microcircuit.NewNetwork(cfg, dr.Kernel)
	if err != nil {
		return err
	}
	if dr.Kernel == nil {
		if err := dr.openSinks(); err != nil {
			dr.closeSinks()
			return faults.Assembly("open sinks", err)
		}
		var opts []memkernel.Option
		if len(dr.Sink) > 0 {
			opts = append(opts, memkernel.WithSink(dr.Sink))
		}
		dr.Kernel = memkernel.New(opts...)
		nt.Kernel = dr.Kernel
	}
	nt.Logger = dr.Logger
	nt.Processes = dr.Processes
	nt.Rank = dr.Rank
	if len(dr.Sink) > 0 {
		nt.Recorder = dr.Sink
	}
	dr.Net = nt
	dr.Logger.Info("driver set up", "processes", dr.Processes, "rank", dr.Rank, "vps", nt.NVP())
	return nil
}

// openSinks opens the configured outputs. Only rank 0 writes files.
func (dr *Driver) openSinks() error {
	sim := &dr.Config.Sim
	if dr.Rank != 0 {
		return nil
	}
	if sim.TSV {
		dr.Sink = append(dr.Sink, record.NewTSVSink(sim.DataPath, sim.Overwrite))
	}
	if sim.EventDB {
		db, err := record.OpenSQLiteSink(dr.ctx, filepath.Join(sim.DataPath, record.EventDBFile), sim.Overwrite)
		if err != nil {
			return err
		}
		dr.DB = db
		dr.Sink = append(dr.Sink, db)
	}
	return nil
}

// Assemble builds the network on the kernel and writes the run manifest.
func (dr *Driver) Assemble() error {
	if dr.Net == nil {
		return faults.Assembly("assemble", errNotSetup)
	}
	if err := dr.Net.Assemble(); err != nil {
		return err
	}
	if dr.Rank == 0 {
		sim := &dr.Config.Sim
		path := filepath.Join(sim.DataPath, record.ManifestFile)
		if err := record.WriteManifest(path, dr.Net.Manifest(), sim.Overwrite); err != nil {
			return faults.Assembly("write manifest", err)
		}
	}
	mpi.Printf("Assembled %d populations on %d virtual processes\n", len(dr.Net.Pops), dr.Net.NVP())
	return nil
}

// Run advances the simulation by duration ms. A zero duration is accepted
// and does nothing. Any kernel failure is an ErrRun and ends the run.
func (dr *Driver) Run(duration float64) error {
	if dr.Net == nil || !dr.Net.Assembled() {
		return faults.Run(errNotAssembled)
	}
	if duration < 0 {
		return faults.Run(fmt.Errorf("negative duration %v", duration))
	}
	if duration == 0 {
		return nil
	}
	dr.Logger.Info("simulating", "from", dr.Time, "duration", duration)
	if err := dr.Kernel.Simulate(duration); err != nil {
		dr.Logger.Error("simulation failed", "err", err)
		return faults.Run(err)
	}
	dr.Time += duration
	return nil
}

// CollectEvents returns the events recorded so far by every device,
// keyed by device label.
func (dr *Driver) CollectEvents() (map[record.Label]*kernel.Events, error) {
	if dr.Net == nil || !dr.Net.Assembled() {
		return nil, faults.Run(errNotAssembled)
	}
	evs := map[record.Label]*kernel.Events{}
	for dev, lb := range dr.Net.Devices() {
		ev, err := dr.Kernel.Events(dev)
		if err != nil {
			return nil, faults.Run(err)
		}
		evs[lb] = ev
	}
	return evs, nil
}

// RunAll sets up, assembles and runs for the configured TSim.
func (dr *Driver) RunAll() error {
	if err := dr.Setup(); err != nil {
		return err
	}
	if err := dr.Assemble(); err != nil {
		return err
	}
	mpi.Printf("Simulating %v ms\n", dr.Config.Sim.TSim)
	return dr.Run(dr.Config.Sim.TSim)
}

// Close ends the run: it resets the kernel, discarding the network, and
// closes all event sinks. Events must be collected before Close.
func (dr *Driver) Close() error {
	var errs []error
	if dr.Kernel != nil && dr.Net != nil {
		errs = append(errs, cerrors.Log(dr.Kernel.ResetKernel()))
	}
	dr.Net = nil
	errs = append(errs, dr.closeSinks())
	return errors.Join(errs...)
}

func (dr *Driver) closeSinks() error {
	if len(dr.Sink) == 0 {
		return nil
	}
	err := cerrors.Log(dr.Sink.Close())
	dr.Sink = nil
	dr.DB = nil
	return err
}
