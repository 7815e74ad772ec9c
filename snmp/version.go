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

// Package snmp provides a pure Go SNMP v1/v2c trap engine: BER encoding,
// trap PDU construction, UDP transport, a trap sender and a trap listener.
package snmp

import (
	"fmt"
	"strings"
)

// Version is the current version of the trap library.
const Version = "1.0.0"

// SNMPVersion represents the SNMP protocol version as carried on the wire.
type SNMPVersion int

const (
	// Version1 is SNMP v1.
	Version1 SNMPVersion = 0
	// Version2c is SNMP v2c.
	Version2c SNMPVersion = 1
)

// String returns the string representation of the SNMP version.
func (v SNMPVersion) String() string {
	switch v {
	case Version1:
		return "SNMPv1"
	case Version2c:
		return "SNMPv2c"
	default:
		return fmt.Sprintf("Unknown(%d)", int(v))
	}
}

// Supported reports whether the version is one this package can encode and decode.
func (v SNMPVersion) Supported() bool {
	return v == Version1 || v == Version2c
}

// ParseVersion parses the command-line forms "1", "v1", "2c", "v2c" and "2".
func ParseVersion(s string) (SNMPVersion, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "v1":
		return Version1, nil
	case "2c", "v2c", "2":
		return Version2c, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedVersion, s)
	}
}
