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
	"sync/atomic"
)

var requestID atomic.Int32

// nextRequestID returns the next process-wide request-id in [1, 2^31-1].
func nextRequestID() int32 {
	for {
		cur := requestID.Load()
		next := cur + 1
		if cur == math.MaxInt32 || next <= 0 {
			next = 1
		}
		if requestID.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// TrapBuilder accumulates the fields and varbinds of a trap. It is not safe
// for concurrent use; Build snapshots it into an immutable Trap.
type TrapBuilder struct {
	version      SNMPVersion
	community    string
	trapOID      OID
	uptime       uint32
	agentAddress net.IP
	enterprise   OID
	generic      int
	specific     int
	v1Explicit   bool
	varbinds     VarbindList
	err          error
}

// NewTrapBuilder creates a builder for a notification identified by trapOID.
func NewTrapBuilder(version SNMPVersion, trapOID OID) *TrapBuilder {
	return &TrapBuilder{
		version:      version,
		community:    DefaultCommunity,
		trapOID:      trapOID.Copy(),
		agentAddress: net.IPv4zero.To4(),
	}
}

// SetCommunity sets the community string.
func (b *TrapBuilder) SetCommunity(community string) *TrapBuilder {
	b.community = community
	return b
}

// SetUptime sets sysUpTime (v2c) or the time-stamp field (v1), in TimeTicks.
func (b *TrapBuilder) SetUptime(ticks uint32) *TrapBuilder {
	b.uptime = ticks
	return b
}

// SetAgentAddress sets the v1 agent-addr field. An address that is not
// IPv4 makes Build fail with ErrInvalidValue.
func (b *TrapBuilder) SetAgentAddress(ip net.IP) *TrapBuilder {
	ip4 := ip.To4()
	if ip4 == nil {
		b.err = fmt.Errorf("%w: agent address %v is not IPv4", ErrInvalidValue, ip)
		return b
	}
	b.agentAddress = ip4
	return b
}

// SetV1Trap overrides the v1 enterprise, generic-trap and specific-trap fields
// that would otherwise be derived from the notification OID.
func (b *TrapBuilder) SetV1Trap(enterprise OID, generic, specific int) *TrapBuilder {
	b.enterprise = enterprise.Copy()
	b.generic = generic
	b.specific = specific
	b.v1Explicit = true
	return b
}

// AddVarbind appends a binding. Duplicate OIDs are kept.
func (b *TrapBuilder) AddVarbind(oid OID, typ BERType, value interface{}) error {
	vb, err := NewVarbind(oid, typ, value)
	if err != nil {
		return err
	}
	b.varbinds = append(b.varbinds, vb)
	return nil
}

// Add appends already constructed varbinds in order. Nothing is appended
// if any OID is invalid.
func (b *TrapBuilder) Add(vbs ...Varbind) error {
	for i, vb := range vbs {
		if err := vb.OID.Validate(); err != nil {
			return fmt.Errorf("varbind %d: %w", i, err)
		}
		if !vb.Type.isValueType() {
			return fmt.Errorf("varbind %d: %w: unsupported type %s", i, ErrInvalidValue, vb.Type)
		}
	}
	b.varbinds = append(b.varbinds, vbs...)
	return nil
}

// Len returns the number of pending varbinds.
func (b *TrapBuilder) Len() int {
	return len(b.varbinds)
}

// Build snapshots the builder into a Trap with a fresh request-id.
func (b *TrapBuilder) Build() (*Trap, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.version.Supported() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, b.version)
	}
	if err := b.trapOID.Validate(); err != nil {
		return nil, fmt.Errorf("notification OID: %w", err)
	}

	t := &Trap{
		Version:   b.version,
		Community: b.community,
		TrapOID:   b.trapOID.Copy(),
		Uptime:    b.uptime,
		Varbinds:  b.varbinds.Clone(),
	}

	if b.version == Version1 {
		t.AgentAddress = append(net.IP(nil), b.agentAddress...)
		if b.v1Explicit {
			t.Enterprise, t.GenericTrap, t.SpecificTrap = b.enterprise.Copy(), b.generic, b.specific
		} else {
			t.Enterprise, t.GenericTrap, t.SpecificTrap = V1TrapFields(b.trapOID)
		}
		if err := t.Enterprise.Validate(); err != nil {
			return nil, fmt.Errorf("enterprise: %w", err)
		}
		if t.GenericTrap < GenericColdStart || t.GenericTrap > GenericEnterpriseSpecific {
			return nil, fmt.Errorf("%w: generic-trap %d out of range", ErrInvalidValue, t.GenericTrap)
		}
		if t.SpecificTrap < 0 || t.SpecificTrap > math.MaxInt32 {
			return nil, fmt.Errorf("%w: specific-trap %d out of range", ErrInvalidValue, t.SpecificTrap)
		}
	} else {
		t.RequestID = nextRequestID()
	}

	return t, nil
}

// V1TrapFields translates a notification OID into the v1 enterprise,
// generic-trap and specific-trap fields (RFC 3584 section 3.2).
func V1TrapFields(trapOID OID) (enterprise OID, generic, specific int) {
	if len(trapOID) == len(OIDSnmpTraps)+1 && trapOID.HasPrefix(OIDSnmpTraps) {
		n := trapOID[len(trapOID)-1]
		if n >= 1 && n <= 6 {
			return OIDSnmpTraps.Copy(), n - 1, 0
		}
	}

	specific = trapOID[len(trapOID)-1]
	enterprise = trapOID[:len(trapOID)-1].Copy()
	if len(enterprise) > 2 && enterprise[len(enterprise)-1] == 0 {
		enterprise = enterprise[:len(enterprise)-1]
	}
	return enterprise, GenericEnterpriseSpecific, specific
}

// V2TrapOID translates v1 trap fields into a notification OID (RFC 3584
// section 3.1).
func V2TrapOID(enterprise OID, generic, specific int) OID {
	if generic >= GenericColdStart && generic < GenericEnterpriseSpecific {
		return append(OIDSnmpTraps.Copy(), generic+1)
	}
	return append(append(enterprise.Copy(), 0), specific)
}

// Trap is an immutable, fully specified trap ready for encoding.
type Trap struct {
	Version   SNMPVersion
	Community string
	RequestID int32 // v2c only
	TrapOID   OID
	Uptime    uint32

	Enterprise   OID    // v1 only
	AgentAddress net.IP // v1 only
	GenericTrap  int    // v1 only
	SpecificTrap int    // v1 only

	// Varbinds are the caller's bindings, without the v2c header bindings.
	Varbinds VarbindList
}

// WireVarbinds returns the varbind list as transmitted. For v2c the
// sysUpTime.0 and snmpTrapOID.0 bindings come first (RFC 3416 section 4.2.6).
func (t *Trap) WireVarbinds() VarbindList {
	if t.Version == Version1 {
		return t.Varbinds
	}
	list := make(VarbindList, 0, len(t.Varbinds)+2)
	list = append(list,
		TimeTicks(OIDSysUpTime, t.Uptime),
		ObjectIdentifier(OIDSnmpTrapOID, t.TrapOID),
	)
	return append(list, t.Varbinds...)
}

// EncodePDU encodes only the PDU: tag 0xA7 for v2c, 0xA4 for v1.
func (t *Trap) EncodePDU() ([]byte, error) {
	varbinds, err := EncodeVarbindList(t.WireVarbinds())
	if err != nil {
		return nil, err
	}

	if t.Version == Version1 {
		enterprise, err := EncodeOID(t.Enterprise)
		if err != nil {
			return nil, fmt.Errorf("enterprise: %w", err)
		}
		agent, err := EncodeIPAddress(t.AgentAddress)
		if err != nil {
			return nil, fmt.Errorf("agent address: %w", err)
		}
		return EncodeTLV(TypeTrapV1, concat(
			enterprise,
			agent,
			EncodeInteger(int64(t.GenericTrap)),
			EncodeInteger(int64(t.SpecificTrap)),
			EncodeUnsigned(TypeTimeTicks, uint64(t.Uptime)),
			varbinds,
		)), nil
	}

	return EncodeTLV(TypeTrapV2, concat(
		EncodeInteger(int64(t.RequestID)),
		EncodeInteger(0), // error-status
		EncodeInteger(0), // error-index
		varbinds,
	)), nil
}

// Encode encodes the complete SNMP message.
func (t *Trap) Encode() ([]byte, error) {
	pdu, err := t.EncodePDU()
	if err != nil {
		return nil, err
	}
	return EncodeMessage(t.Version, t.Community, pdu)
}

func concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// DecodePDU decodes a trap PDU (v1 Trap, SNMPv2-Trap or InformRequest).
// Other PDU types fail with ErrUnsupportedPDU.
func DecodePDU(data []byte) (*ReceivedTrap, error) {
	return decodePDU(&berReader{buf: data})
}

func decodePDU(r *berReader) (*ReceivedTrap, error) {
	start := r.off
	pduType, content, off, err := r.next()
	if err != nil {
		return nil, fmt.Errorf("pdu: %w", err)
	}
	if !r.empty() {
		return nil, NewParseError("trailing bytes after PDU", r.off)
	}

	pr := sub(content, off)
	switch pduType {
	case TypeTrapV1:
		return decodeTrapV1(pr)
	case TypeTrapV2, TypeInformRequest:
		trap, err := decodeTrapV2(pr)
		if err != nil {
			return nil, err
		}
		trap.PDUType = pduType
		return trap, nil
	default:
		return nil, fmt.Errorf("%w: %s at offset %d", ErrUnsupportedPDU, pduType, start)
	}
}

func decodeTrapV2(r *berReader) (*ReceivedTrap, error) {
	trap := &ReceivedTrap{PDUType: TypeTrapV2}

	data, off, err := r.expect(TypeInteger, "request-id")
	if err != nil {
		return nil, err
	}
	id, err := DecodeInteger(data)
	if err != nil {
		return nil, withOffset(err, off)
	}
	if id < math.MinInt32 || id > math.MaxInt32 {
		return nil, NewParseError("request-id out of range", off)
	}
	trap.RequestID = int32(id)

	for _, field := range []string{"error-status", "error-index"} {
		data, off, err := r.expect(TypeInteger, field)
		if err != nil {
			return nil, err
		}
		if _, err := DecodeInteger(data); err != nil {
			return nil, withOffset(err, off)
		}
	}

	trap.AllVarbinds, err = decodeVarbindList(r)
	if err != nil {
		return nil, err
	}
	if !r.empty() {
		return nil, NewParseError("trailing bytes in PDU", r.off)
	}

	trap.Varbinds = trap.AllVarbinds
	if len(trap.Varbinds) > 0 && trap.Varbinds[0].OID.Equal(OIDSysUpTime) {
		if ticks, ok := trap.Varbinds[0].Value.(uint32); ok {
			trap.Uptime = ticks
		}
		trap.Varbinds = trap.Varbinds[1:]
	}
	if len(trap.Varbinds) > 0 && trap.Varbinds[0].OID.Equal(OIDSnmpTrapOID) {
		if oid, ok := trap.Varbinds[0].Value.(OID); ok {
			trap.TrapOID = oid
		}
		trap.Varbinds = trap.Varbinds[1:]
	}
	return trap, nil
}

func decodeTrapV1(r *berReader) (*ReceivedTrap, error) {
	trap := &ReceivedTrap{PDUType: TypeTrapV1}

	data, off, err := r.expect(TypeObjectIdentifier, "enterprise")
	if err != nil {
		return nil, err
	}
	if trap.Enterprise, err = DecodeOID(data); err != nil {
		return nil, withOffset(err, off)
	}

	data, off, err = r.expect(TypeIPAddress, "agent-addr")
	if err != nil {
		return nil, err
	}
	if len(data) != net.IPv4len {
		return nil, NewParseError(fmt.Sprintf("agent-addr of %d octets", len(data)), off)
	}
	trap.AgentAddress = net.IP(data)

	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"generic-trap", &trap.GenericTrap},
		{"specific-trap", &trap.SpecificTrap},
	} {
		data, off, err := r.expect(TypeInteger, field.name)
		if err != nil {
			return nil, err
		}
		n, err := DecodeInteger(data)
		if err != nil {
			return nil, withOffset(err, off)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, NewParseError(field.name+" out of range", off)
		}
		*field.dst = int(n)
	}

	data, off, err = r.expect(TypeTimeTicks, "time-stamp")
	if err != nil {
		return nil, err
	}
	ts, err := decodeValue(TypeTimeTicks, data)
	if err != nil {
		return nil, withOffset(err, off)
	}
	trap.Uptime = ts.(uint32)

	trap.AllVarbinds, err = decodeVarbindList(r)
	if err != nil {
		return nil, err
	}
	if !r.empty() {
		return nil, NewParseError("trailing bytes in PDU", r.off)
	}
	trap.Varbinds = trap.AllVarbinds
	trap.TrapOID = V2TrapOID(trap.Enterprise, trap.GenericTrap, trap.SpecificTrap)
	return trap, nil
}
