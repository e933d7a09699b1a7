// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"errors"
	"fmt"

	"github.com/emer/microcircuit/kernel"
)

// Label names the population and model of a recording device.
type Label struct {
	Population string
	Model      string
}

func (lb Label) String() string {
	return lb.Model + "-" + lb.Population
}

// Sink is an event sink that must know each device before its events.
type Sink interface {
	kernel.EventSink

	// Register announces a recording device.
	Register(dev kernel.NodeID, label Label) error

	// Close flushes and releases the sink.
	Close() error
}

// MultiSink fans events out to several sinks, in order.
type MultiSink []Sink

func (ms MultiSink) Register(dev kernel.NodeID, label Label) error {
	for _, s := range ms {
		if err := s.Register(dev, label); err != nil {
			return err
		}
	}
	return nil
}

func (ms MultiSink) WriteEvents(dev kernel.NodeID, ev *kernel.Events) error {
	for _, s := range ms {
		if err := s.WriteEvents(dev, ev); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all sinks and returns the joined errors.
func (ms MultiSink) Close() error {
	var errs []error
	for _, s := range ms {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// MemSink keeps all events in memory.
type MemSink struct {
	Labels map[kernel.NodeID]Label
	Events map[kernel.NodeID]*kernel.Events
}

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{Labels: map[kernel.NodeID]Label{}, Events: map[kernel.NodeID]*kernel.Events{}}
}

func (ms *MemSink) Register(dev kernel.NodeID, label Label) error {
	ms.Labels[dev] = label
	ms.Events[dev] = &kernel.Events{}
	return nil
}

func (ms *MemSink) WriteEvents(dev kernel.NodeID, ev *kernel.Events) error {
	evs, ok := ms.Events[dev]
	if !ok {
		return fmt.Errorf("record: events of unregistered device %d", dev)
	}
	evs.Append(ev)
	return nil
}

func (ms *MemSink) Close() error {
	return nil
}
