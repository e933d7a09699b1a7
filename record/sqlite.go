// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/emer/microcircuit/kernel"

	_ "modernc.org/sqlite"
)

// EventDBFile is the name of the event database.
const EventDBFile = "events.db"

// SQLiteSink stores the events of all devices in one SQLite database,
// with a devices table and an events table.
type SQLiteSink struct {
	path string
	db   *sql.DB
	ctx  context.Context
}

// OpenSQLiteSink creates the event database at path.
func OpenSQLiteSink(ctx context.Context, path string, overwrite bool) (*SQLiteSink, error) {
	f, err := create(path, overwrite)
	if err != nil {
		return nil, err
	}
	f.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createEventTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteSink{path: path, db: db, ctx: ctx}, nil
}

func createEventTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`DROP TABLE IF EXISTS events`,
		`DROP TABLE IF EXISTS devices`,
		`CREATE TABLE devices (
			id INTEGER PRIMARY KEY,
			population TEXT NOT NULL,
			model TEXT NOT NULL
		)`,
		`CREATE TABLE events (
			device INTEGER NOT NULL REFERENCES devices(id),
			sender INTEGER NOT NULL,
			time_ms REAL NOT NULL,
			value REAL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// DB returns the underlying database.
func (ss *SQLiteSink) DB() *sql.DB {
	return ss.db
}

func (ss *SQLiteSink) Register(dev kernel.NodeID, label Label) error {
	_, err := ss.db.ExecContext(ss.ctx, `INSERT INTO devices (id, population, model) VALUES (?, ?, ?)`, int64(dev), label.Population, label.Model)
	return err
}

// WriteEvents inserts the events in one transaction.
func (ss *SQLiteSink) WriteEvents(dev kernel.NodeID, ev *kernel.Events) error {
	tx, err := ss.db.BeginTx(ss.ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ss.ctx, `INSERT INTO events (device, sender, time_ms, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for i := 0; i < ev.Len(); i++ {
		var val any
		if len(ev.Values) > 0 {
			val = ev.Values[i]
		}
		if _, err := stmt.ExecContext(ss.ctx, int64(dev), int64(ev.Senders[i]), ev.Times[i], val); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("record: inserting events of device %d: %w", dev, err)
		}
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// CountEvents returns the number of stored events of a device.
func (ss *SQLiteSink) CountEvents(dev kernel.NodeID) (int, error) {
	var n int
	err := ss.db.QueryRowContext(ss.ctx, `SELECT COUNT(*) FROM events WHERE device = ?`, int64(dev)).Scan(&n)
	return n, err
}

func (ss *SQLiteSink) Close() error {
	if ss.db == nil {
		return errors.New("record: event database already closed")
	}
	err := ss.db.Close()
	ss.db = nil
	return err
}
