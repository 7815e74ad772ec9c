// Copyright 2025 Edgeo SCADA
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package journal persists received traps in a SQLite database.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/edgeo-scada/snmptrap/snmp"
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// VarbindRecord is the stored form of a varbind.
type VarbindRecord struct {
	OID   string `json:"oid"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Entry is one journaled trap.
type Entry struct {
	ID         int64
	ReceivedAt time.Time
	Source     string
	Version    string
	Community  string
	PDUType    string
	RequestID  int32
	TrapOID    string
	Uptime     uint32
	Varbinds   []VarbindRecord
}

// Query selects entries for Recent. Zero fields do not filter.
type Query struct {
	Source  string
	TrapOID string
	Since   time.Time
	Limit   int
}

const schema = `
CREATE TABLE IF NOT EXISTS traps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	received_at INTEGER NOT NULL,
	source TEXT NOT NULL,
	version TEXT NOT NULL,
	community TEXT NOT NULL,
	pdu_type TEXT NOT NULL,
	request_id INTEGER NOT NULL,
	trap_oid TEXT NOT NULL,
	uptime INTEGER NOT NULL,
	varbinds TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traps_received_at ON traps(received_at);
CREATE INDEX IF NOT EXISTS idx_traps_trap_oid ON traps(trap_oid);`

// Journal stores traps in SQLite. Record, Recent, Count and Prune may be
// called concurrently; Close must not race with them.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path. ":memory:" gives a
// private in-memory database.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: ping %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record stores trap and returns its row id.
func (j *Journal) Record(ctx context.Context, trap *snmp.ReceivedTrap) (int64, error) {
	if j.db == nil {
		return 0, ErrClosed
	}

	vbs := make([]VarbindRecord, len(trap.Varbinds))
	for i, vb := range trap.Varbinds {
		vbs[i] = VarbindRecord{OID: vb.OID.String(), Type: vb.Type.String(), Value: vb.ValueString()}
	}
	vbJSON, err := json.Marshal(vbs)
	if err != nil {
		return 0, fmt.Errorf("journal: marshal varbinds: %w", err)
	}

	receivedAt := trap.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	source := ""
	if trap.Source != nil {
		source = trap.Source.String()
	}

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO traps (
			received_at, source, version, community, pdu_type,
			request_id, trap_oid, uptime, varbinds
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receivedAt.UnixNano(), source, trap.Version.String(), trap.Community,
		trap.PDUType.String(), trap.RequestID, trap.TrapOID.String(),
		int64(trap.Uptime), string(vbJSON))
	if err != nil {
		return 0, fmt.Errorf("journal: insert: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns matching entries, newest first.
func (j *Journal) Recent(ctx context.Context, q Query) ([]Entry, error) {
	if j.db == nil {
		return nil, ErrClosed
	}

	query := `SELECT id, received_at, source, version, community, pdu_type,
		request_id, trap_oid, uptime, varbinds FROM traps WHERE 1=1`
	var args []interface{}

	if q.Source != "" {
		query += " AND source = ?"
		args = append(args, q.Source)
	}
	if q.TrapOID != "" {
		query += " AND trap_oid = ?"
		args = append(args, q.TrapOID)
	}
	if !q.Since.IsZero() {
		query += " AND received_at >= ?"
		args = append(args, q.Since.UnixNano())
	}
	query += " ORDER BY received_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			receivedAt int64
			uptime     int64
			vbJSON     string
		)
		if err := rows.Scan(&e.ID, &receivedAt, &e.Source, &e.Version, &e.Community,
			&e.PDUType, &e.RequestID, &e.TrapOID, &uptime, &vbJSON); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.ReceivedAt = time.Unix(0, receivedAt)
		e.Uptime = uint32(uptime)
		if err := json.Unmarshal([]byte(vbJSON), &e.Varbinds); err != nil {
			return nil, fmt.Errorf("journal: entry %d varbinds: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of stored traps.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	if j.db == nil {
		return 0, ErrClosed
	}
	var n int64
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM traps").Scan(&n); err != nil {
		return 0, fmt.Errorf("journal: count: %w", err)
	}
	return n, nil
}

// Prune deletes entries received before cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if j.db == nil {
		return 0, ErrClosed
	}
	res, err := j.db.ExecContext(ctx, "DELETE FROM traps WHERE received_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. Further calls return ErrClosed.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}
