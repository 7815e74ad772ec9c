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

// Package trapconfig reads and writes saved trap configurations:
//
//	{
//	    "ipv4_host": "127.0.0.1",
//	    "port": "162",
//	    "notification_OID": "1.3.6.1.4.1.9.9.599.1.1",
//	    "varbinds": [{"1.3.6.1.4.1.9.9.599.1.3.1": "status"}]
//	}
//
// Varbind values are sent as OCTET STRING. Varbind order is preserved.
package trapconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/edgeo-scada/snmptrap/snmp"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("trapconfig: invalid config")

// Varbind is one {"<oid>": "<message>"} entry.
type Varbind struct {
	OID     string
	Message string
}

// MarshalJSON writes the entry as a single-key object.
func (v Varbind) MarshalJSON() ([]byte, error) {
	key, err := json.Marshal(v.OID)
	if err != nil {
		return nil, err
	}
	val, err := json.Marshal(v.Message)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(val)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a single-key object.
func (v *Varbind) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("%w: varbind entry must have exactly one key, has %d", ErrInvalidConfig, len(m))
	}
	for oid, msg := range m {
		v.OID, v.Message = oid, msg
	}
	return nil
}

// Port is a port number stored as a JSON string. Numbers are accepted too.
type Port string

// UnmarshalJSON accepts "162" and 162.
func (p *Port) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = Port(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("%w: port must be a string or number", ErrInvalidConfig)
	}
	*p = Port(n.String())
	return nil
}

// Config is a saved trap configuration.
type Config struct {
	Host            string    `json:"ipv4_host"`
	Port            Port      `json:"port"`
	NotificationOID string    `json:"notification_OID"`
	Varbinds        []Varbind `json:"varbinds"`
}

// Validate checks the host, port and every OID.
func (c *Config) Validate() error {
	if !snmp.ValidateHostIP(c.Host) && !snmp.ValidateHostIPv6(c.Host) {
		return fmt.Errorf("%w: host %q", ErrInvalidConfig, c.Host)
	}
	if !snmp.ValidatePort(string(c.Port)) {
		return fmt.Errorf("%w: port %q", ErrInvalidConfig, c.Port)
	}
	if _, err := snmp.ParseOID(c.NotificationOID); err != nil {
		return fmt.Errorf("%w: notification OID: %v", ErrInvalidConfig, err)
	}
	for i, vb := range c.Varbinds {
		if _, err := snmp.ParseOID(vb.OID); err != nil {
			return fmt.Errorf("%w: varbind %d: %v", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

// Target returns the configured destination.
func (c *Config) Target() (snmp.Target, error) {
	if !snmp.ValidatePort(string(c.Port)) {
		return snmp.Target{}, fmt.Errorf("%w: port %q", ErrInvalidConfig, c.Port)
	}
	port, _ := strconv.Atoi(string(c.Port))
	t := snmp.Target{Host: c.Host, Port: port}
	if err := t.Validate(); err != nil {
		return snmp.Target{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return t, nil
}

// VarbindList converts the entries to OCTET STRING varbinds, in order.
func (c *Config) VarbindList() (snmp.VarbindList, error) {
	list := make(snmp.VarbindList, 0, len(c.Varbinds))
	for i, vb := range c.Varbinds {
		oid, err := snmp.ParseOID(vb.OID)
		if err != nil {
			return nil, fmt.Errorf("%w: varbind %d: %v", ErrInvalidConfig, i, err)
		}
		list = append(list, snmp.OctetString(oid, vb.Message))
	}
	return list, nil
}

// Notification builds the notification described by c.
func (c *Config) Notification(version snmp.SNMPVersion, community string) (snmp.Notification, error) {
	if err := c.Validate(); err != nil {
		return snmp.Notification{}, err
	}
	trapOID, _ := snmp.ParseOID(c.NotificationOID)
	vbs, err := c.VarbindList()
	if err != nil {
		return snmp.Notification{}, err
	}
	return snmp.Notification{
		Version:   version,
		Community: community,
		TrapOID:   trapOID,
		Varbinds:  vbs,
	}, nil
}

// Decode reads a config from r without validating it.
func Decode(r io.Reader) (*Config, error) {
	var c Config
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("trapconfig: decode: %w", err)
	}
	return &c, nil
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("trapconfig: %w", err)
	}
	defer f.Close()

	c, err := Decode(f)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save validates c and writes it to path with four-space indentation.
// An invalid config is never written.
func Save(path string, c *Config) error {
	if err := c.Validate(); err != nil {
		return err
	}
	out := *c
	if out.Varbinds == nil {
		out.Varbinds = []Varbind{}
	}
	data, err := json.MarshalIndent(&out, "", "    ")
	if err != nil {
		return fmt.Errorf("trapconfig: encode: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("trapconfig: %w", err)
	}
	return nil
}
