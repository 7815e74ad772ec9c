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

package snmp

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"
)

// BERType is an ASN.1 BER tag used in SNMP trap messages.
type BERType byte

const (
	// Primitive types
	TypeInteger          BERType = 0x02
	TypeOctetString      BERType = 0x04
	TypeNull             BERType = 0x05
	TypeObjectIdentifier BERType = 0x06

	// Application types (SNMP-specific)
	TypeIPAddress BERType = 0x40
	TypeCounter32 BERType = 0x41
	TypeGauge32   BERType = 0x42
	TypeTimeTicks BERType = 0x43
	TypeCounter64 BERType = 0x46

	// Sequence type
	TypeSequence BERType = 0x30

	// Context-specific types (PDU types)
	TypeTrapV1        BERType = 0xA4 // SNMPv1 Trap
	TypeInformRequest BERType = 0xA6
	TypeTrapV2        BERType = 0xA7 // SNMPv2c Trap
)

// String returns the string representation of the BER type.
func (t BERType) String() string {
	switch t {
	case TypeInteger:
		return "INTEGER"
	case TypeOctetString:
		return "OCTET STRING"
	case TypeNull:
		return "NULL"
	case TypeObjectIdentifier:
		return "OBJECT IDENTIFIER"
	case TypeIPAddress:
		return "IpAddress"
	case TypeCounter32:
		return "Counter32"
	case TypeGauge32:
		return "Gauge32"
	case TypeTimeTicks:
		return "TimeTicks"
	case TypeCounter64:
		return "Counter64"
	case TypeSequence:
		return "SEQUENCE"
	case TypeTrapV1:
		return "Trap-PDU (v1)"
	case TypeInformRequest:
		return "InformRequest-PDU"
	case TypeTrapV2:
		return "SNMPv2-Trap-PDU"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", byte(t))
	}
}

// isValueType reports whether t may appear as a varbind value.
func (t BERType) isValueType() bool {
	switch t {
	case TypeInteger, TypeOctetString, TypeNull, TypeObjectIdentifier,
		TypeIPAddress, TypeCounter32, TypeGauge32, TypeTimeTicks, TypeCounter64:
		return true
	}
	return false
}

// OID represents an SNMP Object Identifier.
type OID []int

// String returns the dotted-decimal string representation.
func (o OID) String() string {
	if len(o) == 0 {
		return ""
	}
	parts := make([]string, len(o))
	for i, n := range o {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".")
}

// ParseOID parses a dotted-decimal OID string. A leading dot is accepted.
// The result satisfies Validate.
func ParseOID(s string) (OID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), ".")
	if !ValidateOID(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOID, s)
	}

	parts := strings.Split(s, ".")
	oid := make(OID, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: component %q out of range", ErrInvalidOID, p)
		}
		oid[i] = int(n)
	}

	if err := oid.Validate(); err != nil {
		return nil, err
	}
	return oid, nil
}

// MustParseOID parses an OID string and panics on error.
func MustParseOID(s string) OID {
	oid, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// Validate checks the structural invariants of an OID: at least two arcs,
// first arc in {0,1,2}, second arc below 40 under 0 and 1, and every arc
// within the uint32 range.
func (o OID) Validate() error {
	if len(o) < 2 {
		return fmt.Errorf("%w: %q has fewer than 2 arcs", ErrInvalidOID, o.String())
	}
	if o[0] < 0 || o[0] > 2 {
		return fmt.Errorf("%w: first arc of %q must be 0, 1 or 2", ErrInvalidOID, o.String())
	}
	if o[0] < 2 && o[1] >= 40 {
		return fmt.Errorf("%w: second arc of %q must be below 40", ErrInvalidOID, o.String())
	}
	for _, n := range o {
		if n < 0 || uint64(n) > math.MaxUint32 {
			return fmt.Errorf("%w: arc %d of %q out of range", ErrInvalidOID, n, o.String())
		}
	}
	return nil
}

// Equal checks if two OIDs are equal.
func (o OID) Equal(other OID) bool {
	if len(o) != len(other) {
		return false
	}
	for i, n := range o {
		if n != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix checks if the OID starts with the given prefix.
func (o OID) HasPrefix(prefix OID) bool {
	if len(prefix) > len(o) {
		return false
	}
	for i, n := range prefix {
		if n != o[i] {
			return false
		}
	}
	return true
}

// Copy returns a copy of the OID.
func (o OID) Copy() OID {
	c := make(OID, len(o))
	copy(c, o)
	return c
}

// ReceivedTrap is a trap decoded by the listener.
type ReceivedTrap struct {
	Version   SNMPVersion
	Community string
	PDUType   BERType
	RequestID int32

	// TrapOID is snmpTrapOID.0 for v2c, or the RFC 3584 translation of the
	// v1 enterprise/generic/specific triple.
	TrapOID OID
	// Uptime is sysUpTime.0 for v2c and the time-stamp field for v1.
	Uptime uint32

	Enterprise   OID    // v1 only
	AgentAddress net.IP // v1 only
	GenericTrap  int    // v1 only
	SpecificTrap int    // v1 only

	// Varbinds holds the payload varbinds, in wire order. For v2c the
	// leading sysUpTime.0 and snmpTrapOID.0 bindings are not repeated here.
	Varbinds VarbindList
	// AllVarbinds holds every binding as received.
	AllVarbinds VarbindList

	Source     *net.UDPAddr
	ReceivedAt time.Time
}

// TrapHandler is a callback for received traps. It is called from the
// listener's receive goroutine, one trap at a time, in arrival order.
type TrapHandler func(from *net.UDPAddr, trap *ReceivedTrap)

// Common OIDs
var (
	OIDSysDescr    = MustParseOID("1.3.6.1.2.1.1.1.0")
	OIDSysObjectID = MustParseOID("1.3.6.1.2.1.1.2.0")
	OIDSysUpTime   = MustParseOID("1.3.6.1.2.1.1.3.0")
	OIDSysName     = MustParseOID("1.3.6.1.2.1.1.5.0")

	// SNMPv2-MIB trap OIDs
	OIDSnmpTrapOID        = MustParseOID("1.3.6.1.6.3.1.1.4.1.0")
	OIDSnmpTrapEnterprise = MustParseOID("1.3.6.1.6.3.1.1.4.3.0")
	OIDSnmpTraps          = MustParseOID("1.3.6.1.6.3.1.1.5")

	// Generic notifications (RFC 3418)
	OIDColdStart             = MustParseOID("1.3.6.1.6.3.1.1.5.1")
	OIDWarmStart             = MustParseOID("1.3.6.1.6.3.1.1.5.2")
	OIDLinkDown              = MustParseOID("1.3.6.1.6.3.1.1.5.3")
	OIDLinkUp                = MustParseOID("1.3.6.1.6.3.1.1.5.4")
	OIDAuthenticationFailure = MustParseOID("1.3.6.1.6.3.1.1.5.5")
	OIDEgpNeighborLoss       = MustParseOID("1.3.6.1.6.3.1.1.5.6")
)

// Generic trap codes of the v1 Trap-PDU.
const (
	GenericColdStart             = 0
	GenericWarmStart             = 1
	GenericLinkDown              = 2
	GenericLinkUp                = 3
	GenericAuthenticationFailure = 4
	GenericEgpNeighborLoss       = 5
	GenericEnterpriseSpecific    = 6
)

// Default values.
const (
	DefaultTrapPort     = 162
	DefaultCommunity    = "public"
	DefaultPollInterval = 200 * time.Millisecond
	DefaultWriteTimeout = 5 * time.Second
	MaxDatagramSize     = 65535
)

// SecondsToTimeTicks converts seconds to TimeTicks (centiseconds).
func SecondsToTimeTicks(seconds float64) uint32 {
	return uint32(seconds * 100)
}

// DurationToTimeTicks converts a duration to TimeTicks, wrapping at 2^32.
func DurationToTimeTicks(d time.Duration) uint32 {
	return uint32(uint64(d/(10*time.Millisecond)) & math.MaxUint32)
}

// TimeTicksToString converts TimeTicks to a human-readable string.
func TimeTicksToString(ticks uint32) string {
	totalSeconds := ticks / 100
	days := totalSeconds / 86400
	hours := (totalSeconds % 86400) / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60
	centiseconds := ticks % 100

	if days > 0 {
		return fmt.Sprintf("%d days, %02d:%02d:%02d.%02d", days, hours, minutes, seconds, centiseconds)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%02d", hours, minutes, seconds, centiseconds)
}
