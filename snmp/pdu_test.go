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
	"math"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildV2cPrependsHeaderVarbinds(t *testing.T) {
	b := NewTrapBuilder(Version2c, OIDLinkDown).SetUptime(4242)
	require.NoError(t, b.Add(Integer(MustParseOID("1.3.6.1.2.1.2.2.1.1.3"), 3)))

	trap, err := b.Build()
	require.NoError(t, err)
	assert.NotZero(t, trap.RequestID)

	wire := trap.WireVarbinds()
	require.Len(t, wire, 3)
	assert.True(t, wire[0].OID.Equal(OIDSysUpTime))
	assert.Equal(t, TypeTimeTicks, wire[0].Type)
	assert.Equal(t, uint32(4242), wire[0].Value)
	assert.True(t, wire[1].OID.Equal(OIDSnmpTrapOID))
	assert.Equal(t, OIDLinkDown, wire[1].Value)
	assert.Equal(t, "1.3.6.1.2.1.2.2.1.1.3", wire[2].OID.String())
}

func TestBuildEncodeDecodePreservesOrderAndDuplicates(t *testing.T) {
	dup := MustParseOID("1.3.6.1.4.1.2021.1.1")
	b := NewTrapBuilder(Version2c, MustParseOID("1.3.6.1.4.1.2021.0.1")).SetCommunity("private")
	require.NoError(t, b.AddVarbind(dup, TypeOctetString, "first"))
	require.NoError(t, b.AddVarbind(OIDSysDescr, TypeOctetString, "Device is up"))
	require.NoError(t, b.AddVarbind(dup, TypeOctetString, "second"))
	require.NoError(t, b.AddVarbind(MustParseOID("1.3.6.1.4.1.2021.1.2"), TypeInteger, -5))
	assert.Equal(t, 4, b.Len())

	trap, err := b.Build()
	require.NoError(t, err)
	data, err := trap.Encode()
	require.NoError(t, err)

	got, err := DecodeTrap(data)
	require.NoError(t, err)
	assert.Equal(t, Version2c, got.Version)
	assert.Equal(t, "private", got.Community)
	assert.Equal(t, TypeTrapV2, got.PDUType)
	assert.Equal(t, trap.RequestID, got.RequestID)
	assert.Equal(t, trap.TrapOID, got.TrapOID)
	assert.Equal(t, trap.Varbinds, got.Varbinds)
	assert.Len(t, got.AllVarbinds, 6)

	assert.Equal(t, []byte("first"), got.Varbinds[0].Value)
	assert.Equal(t, []byte("second"), got.Varbinds[2].Value)
	assert.True(t, got.Varbinds[0].OID.Equal(got.Varbinds[2].OID))
}

func TestBuildSnapshotsVarbinds(t *testing.T) {
	b := NewTrapBuilder(Version2c, OIDColdStart)
	require.NoError(t, b.AddVarbind(OIDSysName, TypeOctetString, "a"))
	trap, err := b.Build()
	require.NoError(t, err)

	require.NoError(t, b.AddVarbind(OIDSysName, TypeOctetString, "b"))
	assert.Len(t, trap.Varbinds, 1)
	assert.Equal(t, 2, b.Len())

	again, err := b.Build()
	require.NoError(t, err)
	assert.NotEqual(t, trap.RequestID, again.RequestID)
}

func TestBuilderRejectsInvalidVarbinds(t *testing.T) {
	b := NewTrapBuilder(Version2c, OIDColdStart)
	assert.ErrorIs(t, b.AddVarbind(OID{1}, TypeNull, nil), ErrInvalidOID)
	assert.ErrorIs(t, b.Add(OctetString(OIDSysName, "ok"), OctetString(OID{4, 1}, "bad")), ErrInvalidOID)
	assert.ErrorIs(t, b.Add(Varbind{OID: OIDSysName, Type: TypeSequence}), ErrInvalidValue)
	assert.Zero(t, b.Len())
}

func TestBuildErrors(t *testing.T) {
	_, err := NewTrapBuilder(SNMPVersion(3), OIDColdStart).Build()
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = NewTrapBuilder(Version2c, OID{1}).Build()
	assert.ErrorIs(t, err, ErrInvalidOID)

	_, err = NewTrapBuilder(Version1, OIDColdStart).SetV1Trap(OID{1}, 6, 1).Build()
	assert.ErrorIs(t, err, ErrInvalidOID)
}

func TestRequestIDWraps(t *testing.T) {
	prev := requestID.Load()
	defer requestID.Store(prev)

	requestID.Store(math.MaxInt32 - 1)
	assert.Equal(t, int32(math.MaxInt32), nextRequestID())
	assert.Equal(t, int32(1), nextRequestID())
	assert.Equal(t, int32(2), nextRequestID())
}

func TestRequestIDConcurrentDistinct(t *testing.T) {
	const n = 200
	ids := make(chan int32, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			trap, err := NewTrapBuilder(Version2c, OIDColdStart).Build()
			if err == nil {
				ids <- trap.RequestID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int32]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate request-id %d", id)
		assert.Positive(t, id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestV1TrapFields(t *testing.T) {
	tests := []struct {
		trapOID    string
		enterprise string
		generic    int
		specific   int
	}{
		{"1.3.6.1.6.3.1.1.5.1", "1.3.6.1.6.3.1.1.5", GenericColdStart, 0},
		{"1.3.6.1.6.3.1.1.5.3", "1.3.6.1.6.3.1.1.5", GenericLinkDown, 0},
		{"1.3.6.1.6.3.1.1.5.6", "1.3.6.1.6.3.1.1.5", GenericEgpNeighborLoss, 0},
		{"1.3.6.1.6.3.1.1.5.7", "1.3.6.1.6.3.1.1.5", GenericEnterpriseSpecific, 7},
		{"1.3.6.1.4.1.9.9.599.0.5", "1.3.6.1.4.1.9.9.599", GenericEnterpriseSpecific, 5},
		{"1.3.6.1.4.1.9.9.599.1.1", "1.3.6.1.4.1.9.9.599.1", GenericEnterpriseSpecific, 1},
		{"1.3.0", "1.3", GenericEnterpriseSpecific, 0},
	}
	for _, tt := range tests {
		t.Run(tt.trapOID, func(t *testing.T) {
			enterprise, generic, specific := V1TrapFields(MustParseOID(tt.trapOID))
			assert.Equal(t, tt.enterprise, enterprise.String())
			assert.Equal(t, tt.generic, generic)
			assert.Equal(t, tt.specific, specific)
		})
	}
}

func TestV2TrapOID(t *testing.T) {
	enterprise := MustParseOID("1.3.6.1.4.1.9")
	assert.Equal(t, OIDColdStart, V2TrapOID(enterprise, GenericColdStart, 0))
	assert.Equal(t, OIDAuthenticationFailure, V2TrapOID(enterprise, GenericAuthenticationFailure, 0))
	assert.Equal(t, "1.3.6.1.4.1.9.0.17", V2TrapOID(enterprise, GenericEnterpriseSpecific, 17).String())
}

func TestBuildV1RoundTrip(t *testing.T) {
	trapOID := MustParseOID("1.3.6.1.4.1.9.9.599.0.5")
	b := NewTrapBuilder(Version1, trapOID).
		SetUptime(100).
		SetAgentAddress(net.ParseIP("192.168.1.20"))
	require.NoError(t, b.AddVarbind(OIDSysDescr, TypeOctetString, "Device is up"))

	trap, err := b.Build()
	require.NoError(t, err)
	assert.Zero(t, trap.RequestID)
	assert.Equal(t, "1.3.6.1.4.1.9.9.599", trap.Enterprise.String())
	assert.Equal(t, GenericEnterpriseSpecific, trap.GenericTrap)
	assert.Equal(t, 5, trap.SpecificTrap)
	require.Len(t, trap.WireVarbinds(), 1)

	data, err := trap.Encode()
	require.NoError(t, err)
	got, err := DecodeTrap(data)
	require.NoError(t, err)

	assert.Equal(t, Version1, got.Version)
	assert.Equal(t, TypeTrapV1, got.PDUType)
	assert.Equal(t, trap.Enterprise, got.Enterprise)
	assert.True(t, got.AgentAddress.Equal(net.IPv4(192, 168, 1, 20)))
	assert.Equal(t, uint32(100), got.Uptime)
	assert.Equal(t, trapOID, got.TrapOID)
	assert.Equal(t, trap.Varbinds, got.Varbinds)
}

func TestBuildV1ExplicitFields(t *testing.T) {
	enterprise := MustParseOID("1.3.6.1.4.1.2021")
	trap, err := NewTrapBuilder(Version1, OIDColdStart).SetV1Trap(enterprise, GenericLinkUp, 0).Build()
	require.NoError(t, err)
	assert.Equal(t, enterprise, trap.Enterprise)
	assert.Equal(t, GenericLinkUp, trap.GenericTrap)
	assert.Equal(t, net.IP{0, 0, 0, 0}, trap.AgentAddress)
}

func TestBuildV1RejectsOutOfRangeTrapFields(t *testing.T) {
	tests := []struct {
		name string
		b    *TrapBuilder
	}{
		{"derived specific above INTEGER range", NewTrapBuilder(Version1, MustParseOID("1.3.6.1.4.1.9.0.3000000000"))},
		{"explicit negative specific", NewTrapBuilder(Version1, OIDColdStart).SetV1Trap(MustParseOID("1.3.6.1.4.1.9"), GenericEnterpriseSpecific, -1)},
		{"explicit generic above 6", NewTrapBuilder(Version1, OIDColdStart).SetV1Trap(MustParseOID("1.3.6.1.4.1.9"), 7, 0)},
		{"explicit negative generic", NewTrapBuilder(Version1, OIDColdStart).SetV1Trap(MustParseOID("1.3.6.1.4.1.9"), -1, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Build()
			assert.ErrorIs(t, err, ErrInvalidValue)
		})
	}

	trap, err := NewTrapBuilder(Version1, MustParseOID("1.3.6.1.4.1.9.0.2147483647")).Build()
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt32, trap.SpecificTrap)
}

func TestBuildRejectsNonIPv4AgentAddress(t *testing.T) {
	_, err := NewTrapBuilder(Version1, OIDColdStart).SetAgentAddress(net.ParseIP("2001:db8::1")).Build()
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = NewTrapBuilder(Version1, OIDColdStart).SetAgentAddress(nil).Build()
	assert.ErrorIs(t, err, ErrInvalidValue)

	trap, err := NewTrapBuilder(Version1, OIDColdStart).SetAgentAddress(net.ParseIP("192.0.2.7")).Build()
	require.NoError(t, err)
	assert.Equal(t, net.IP{192, 0, 2, 7}, trap.AgentAddress)
}

func TestDecodePDUUnsupportedTag(t *testing.T) {
	getRequest := EncodeTLV(BERType(0xA0), concat(
		EncodeInteger(1), EncodeInteger(0), EncodeInteger(0), EncodeSequence(),
	))
	_, err := DecodePDU(getRequest)
	assert.ErrorIs(t, err, ErrUnsupportedPDU)
	assert.NotErrorIs(t, err, ErrMalformedEncoding)
}

func TestDecodePDUInform(t *testing.T) {
	vbs, err := EncodeVarbindList(VarbindList{
		TimeTicks(OIDSysUpTime, 1),
		ObjectIdentifier(OIDSnmpTrapOID, OIDWarmStart),
	})
	require.NoError(t, err)
	inform := EncodeTLV(TypeInformRequest, concat(
		EncodeInteger(77), EncodeInteger(0), EncodeInteger(0), vbs,
	))

	got, err := DecodePDU(inform)
	require.NoError(t, err)
	assert.Equal(t, TypeInformRequest, got.PDUType)
	assert.Equal(t, int32(77), got.RequestID)
	assert.Equal(t, OIDWarmStart, got.TrapOID)
	assert.Empty(t, got.Varbinds)
}

func TestDecodePDUErrors(t *testing.T) {
	trap, err := NewTrapBuilder(Version2c, OIDColdStart).Build()
	require.NoError(t, err)
	pdu, err := trap.EncodePDU()
	require.NoError(t, err)

	_, err = DecodePDU(append(pdu, 0x00))
	assert.ErrorIs(t, err, ErrMalformedEncoding)

	_, err = DecodePDU(pdu[:len(pdu)-1])
	assert.ErrorIs(t, err, ErrMalformedEncoding)

	missingVarbinds := EncodeTLV(TypeTrapV2, concat(EncodeInteger(1), EncodeInteger(0), EncodeInteger(0)))
	_, err = DecodePDU(missingVarbinds)
	assert.ErrorIs(t, err, ErrTruncatedInput)

	wrongField := EncodeTLV(TypeTrapV2, concat(EncodeOctetString([]byte("x"))))
	_, err = DecodePDU(wrongField)
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Offset)
}
