// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"cogentcore.org/core/base/errors"
	"github.com/emer/etensor/tensor"
	"github.com/emer/etensor/tensor/table"
	"github.com/emer/microcircuit/kernel"
)

// tsvFile is the open event file of one device. Rows are staged in dt and
// appended to the file on every write.
type tsvFile struct {
	file *os.File
	w    *bufio.Writer
	dt   *table.Table

	sender *tensor.Int
	time   *tensor.Float64

	// nil for spike recorders
	value *tensor.Float64
}

// TSVSink writes the events of each device to its own tab separated file
// in Dir, named after the device label and id.
type TSVSink struct {
	Dir       string
	Overwrite bool

	files map[kernel.NodeID]*tsvFile
}

// NewTSVSink returns a sink writing into dir.
func NewTSVSink(dir string, overwrite bool) *TSVSink {
	return &TSVSink{Dir: dir, Overwrite: overwrite, files: map[kernel.NodeID]*tsvFile{}}
}

// FileName returns the file name of a device's events.
func (ts *TSVSink) FileName(dev kernel.NodeID, label Label) string {
	return filepath.Join(ts.Dir, fmt.Sprintf("%s-%d.tsv", label, dev))
}

// Register creates the device file and writes its header.
func (ts *TSVSink) Register(dev kernel.NodeID, label Label) error {
	if _, has := ts.files[dev]; has {
		return fmt.Errorf("record: device %d registered twice", dev)
	}
	f, err := create(ts.FileName(dev, label), ts.Overwrite)
	if err != nil {
		return err
	}
	tf := &tsvFile{file: f, w: bufio.NewWriter(f), dt: table.NewTable(label.String())}
	tf.sender = tf.dt.AddIntColumn("sender")
	tf.time = tf.dt.AddFloat64Column("time_ms")
	if label.Model == kernel.Voltmeter {
		tf.value = tf.dt.AddFloat64Column("V_m")
	}
	if _, err := tf.dt.WriteCSVHeaders(tf.w, table.Tab); err != nil {
		f.Close()
		return err
	}
	ts.files[dev] = tf
	return nil
}

// WriteEvents appends the events as rows of the device file.
func (ts *TSVSink) WriteEvents(dev kernel.NodeID, ev *kernel.Events) error {
	tf, ok := ts.files[dev]
	if !ok {
		return fmt.Errorf("record: events of unregistered device %d", dev)
	}
	n := ev.Len()
	tf.dt.SetNumRows(n)
	for i := 0; i < n; i++ {
		tf.sender.SetFloat1D(i, float64(ev.Senders[i]))
		tf.time.SetFloat1D(i, ev.Times[i])
		if tf.value != nil {
			tf.value.SetFloat1D(i, ev.Values[i])
		}
	}
	for i := 0; i < n; i++ {
		if err := tf.dt.WriteCSVRow(tf.w, i, table.Tab); err != nil {
			return err
		}
	}
	return tf.w.Flush()
}

// Close flushes and closes all device files.
func (ts *TSVSink) Close() error {
	var err error
	for _, tf := range ts.files {
		if ferr := tf.w.Flush(); ferr != nil {
			err = ferr
		}
		if cerr := tf.file.Close(); errors.Log(cerr) != nil && err == nil {
			err = cerr
		}
	}
	ts.files = map[kernel.NodeID]*tsvFile{}
	return err
}
