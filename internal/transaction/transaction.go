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

// Package transaction sends transaction status traps. A Record's named
// fields are mapped onto OIDs and sent as OCTET STRING varbinds through a
// generic snmp.Sender.
package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/edgeo-scada/snmptrap/snmp"
)

// ErrUnmappedField is returned when a record sets a field the mapping
// has no OID for.
var ErrUnmappedField = errors.New("transaction: field has no OID mapping")

// ErrUnknownField is returned when parsing a mapping with an unknown field name.
var ErrUnknownField = errors.New("transaction: unknown field")

// Field names a transaction attribute.
type Field int

const (
	FieldStatus Field = iota
	FieldType
	FieldAmount
	FieldEntity
	FieldMID
	FieldDepositDatetime
	FieldOpenDatetime
	FieldCloseDatetime
	FieldSubmissionDatetime
)

// Fields lists every field in varbind order.
var Fields = []Field{
	FieldStatus,
	FieldType,
	FieldAmount,
	FieldEntity,
	FieldMID,
	FieldDepositDatetime,
	FieldOpenDatetime,
	FieldCloseDatetime,
	FieldSubmissionDatetime,
}

var fieldNames = map[Field]string{
	FieldStatus:             "status",
	FieldType:               "type",
	FieldAmount:             "amount",
	FieldEntity:             "entity",
	FieldMID:                "mid",
	FieldDepositDatetime:    "deposit_datetime",
	FieldOpenDatetime:       "open_datetime",
	FieldCloseDatetime:      "close_datetime",
	FieldSubmissionDatetime: "submission_datetime",
}

// String returns the field's configuration name.
func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// ParseField parses a configuration name such as "deposit_datetime".
func ParseField(s string) (Field, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, name := range fieldNames {
		if name == s {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// DefaultNotificationOID is the notification sent for transaction records.
var DefaultNotificationOID = snmp.MustParseOID("1.3.6.1.4.1.9.9.599.1.1")

// Mapping assigns an OID to each field.
type Mapping map[Field]snmp.OID

// DefaultMapping places the fields under 1.3.6.1.4.1.9.9.599.1.3, in
// Fields order starting at arc 1.
func DefaultMapping() Mapping {
	base := snmp.MustParseOID("1.3.6.1.4.1.9.9.599.1.3")
	m := make(Mapping, len(Fields))
	for i, f := range Fields {
		m[f] = append(base.Copy(), i+1)
	}
	return m
}

// ParseMapping converts field-name to OID-string pairs. Fields absent from
// raw keep their default OID.
func ParseMapping(raw map[string]string) (Mapping, error) {
	m := DefaultMapping()
	for name, oidStr := range raw {
		f, err := ParseField(name)
		if err != nil {
			return nil, err
		}
		oid, err := snmp.ParseOID(oidStr)
		if err != nil {
			return nil, fmt.Errorf("transaction: mapping for %s: %w", f, err)
		}
		m[f] = oid
	}
	return m, nil
}

// Record is one transaction. Empty fields are not sent.
type Record struct {
	Status             string
	Type               string
	Amount             string
	Entity             string
	MID                string
	DepositDatetime    string
	OpenDatetime       string
	CloseDatetime      string
	SubmissionDatetime string
}

// Get returns the value of field f.
func (r *Record) Get(f Field) string {
	switch f {
	case FieldStatus:
		return r.Status
	case FieldType:
		return r.Type
	case FieldAmount:
		return r.Amount
	case FieldEntity:
		return r.Entity
	case FieldMID:
		return r.MID
	case FieldDepositDatetime:
		return r.DepositDatetime
	case FieldOpenDatetime:
		return r.OpenDatetime
	case FieldCloseDatetime:
		return r.CloseDatetime
	case FieldSubmissionDatetime:
		return r.SubmissionDatetime
	}
	return ""
}

// Set assigns the value of field f.
func (r *Record) Set(f Field, value string) error {
	switch f {
	case FieldStatus:
		r.Status = value
	case FieldType:
		r.Type = value
	case FieldAmount:
		r.Amount = value
	case FieldEntity:
		r.Entity = value
	case FieldMID:
		r.MID = value
	case FieldDepositDatetime:
		r.DepositDatetime = value
	case FieldOpenDatetime:
		r.OpenDatetime = value
	case FieldCloseDatetime:
		r.CloseDatetime = value
	case FieldSubmissionDatetime:
		r.SubmissionDatetime = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	return nil
}

// Varbinds maps the non-empty fields onto OCTET STRING varbinds, in
// Fields order.
func (r *Record) Varbinds(m Mapping) (snmp.VarbindList, error) {
	var list snmp.VarbindList
	for _, f := range Fields {
		value := r.Get(f)
		if value == "" {
			continue
		}
		oid, ok := m[f]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnmappedField, f)
		}
		if err := list.Append(snmp.OctetString(oid, value)); err != nil {
			return nil, fmt.Errorf("transaction: %s: %w", f, err)
		}
	}
	return list, nil
}

const midAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultMIDLength is the length of generated merchant IDs.
const DefaultMIDLength = 8

// GenerateMID returns a random merchant ID of n characters from [A-Z0-9].
func GenerateMID(n int) string {
	var sb strings.Builder
	sb.Grow(n)
	for i := 0; i < n; i++ {
		sb.WriteByte(midAlphabet[rand.IntN(len(midAlphabet))])
	}
	return sb.String()
}

// Agent sends transaction records as traps.
type Agent struct {
	Sender          *snmp.Sender
	Target          snmp.Target
	NotificationOID snmp.OID
	Mapping         Mapping
	Version         snmp.SNMPVersion
	Community       string
}

// NewAgent creates an agent with the default notification OID and mapping.
func NewAgent(sender *snmp.Sender, target snmp.Target) *Agent {
	return &Agent{
		Sender:          sender,
		Target:          target,
		NotificationOID: DefaultNotificationOID,
		Mapping:         DefaultMapping(),
		Version:         snmp.Version2c,
		Community:       snmp.DefaultCommunity,
	}
}

// Notification builds the notification for r. An empty MID is filled with
// a generated one.
func (a *Agent) Notification(r Record) (snmp.Notification, error) {
	if r.MID == "" {
		r.MID = GenerateMID(DefaultMIDLength)
	}
	vbs, err := r.Varbinds(a.Mapping)
	if err != nil {
		return snmp.Notification{}, err
	}
	return snmp.Notification{
		Version:   a.Version,
		Community: a.Community,
		TrapOID:   a.NotificationOID,
		Varbinds:  vbs,
	}, nil
}

// Send sends r as one trap.
func (a *Agent) Send(ctx context.Context, r Record) error {
	n, err := a.Notification(r)
	if err != nil {
		return err
	}
	return a.Sender.Send(ctx, a.Target, n)
}
