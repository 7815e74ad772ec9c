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
	"bytes"
	"errors"
	"fmt"
	"math"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInteger(t *testing.T) {
	tests := []struct {
		in   int64
		want []byte
	}{
		{0, []byte{0x02, 0x01, 0x00}},
		{1, []byte{0x02, 0x01, 0x01}},
		{127, []byte{0x02, 0x01, 0x7f}},
		{128, []byte{0x02, 0x02, 0x00, 0x80}},
		{255, []byte{0x02, 0x02, 0x00, 0xff}},
		{256, []byte{0x02, 0x02, 0x01, 0x00}},
		{-1, []byte{0x02, 0x01, 0xff}},
		{-128, []byte{0x02, 0x01, 0x80}},
		{-129, []byte{0x02, 0x02, 0xff, 0x7f}},
		{math.MaxInt32, []byte{0x02, 0x04, 0x7f, 0xff, 0xff, 0xff}},
		{math.MinInt32, []byte{0x02, 0x04, 0x80, 0x00, 0x00, 0x00}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.in), func(t *testing.T) {
			got := EncodeInteger(tt.in)
			assert.Equal(t, tt.want, got)

			typ, content, rest, err := DecodeTLV(got)
			require.NoError(t, err)
			assert.Equal(t, TypeInteger, typ)
			assert.Empty(t, rest)
			n, err := DecodeInteger(content)
			require.NoError(t, err)
			assert.Equal(t, tt.in, n)
		})
	}
}

func TestEncodeUnsigned(t *testing.T) {
	assert.Equal(t, []byte{0x43, 0x01, 0x00}, EncodeUnsigned(TypeTimeTicks, 0))
	assert.Equal(t, []byte{0x41, 0x02, 0x00, 0x80}, EncodeUnsigned(TypeCounter32, 128))
	assert.Equal(t, []byte{0x42, 0x05, 0x00, 0xff, 0xff, 0xff, 0xff}, EncodeUnsigned(TypeGauge32, math.MaxUint32))

	c64 := EncodeUnsigned(TypeCounter64, math.MaxUint64)
	_, content, _, err := DecodeTLV(c64)
	require.NoError(t, err)
	n, err := DecodeUnsigned(content)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), n)
}

func TestOctetStringLengthBoundaries(t *testing.T) {
	tests := []struct {
		size   int
		header []byte
	}{
		{0, []byte{0x04, 0x00}},
		{1, []byte{0x04, 0x01}},
		{127, []byte{0x04, 0x7f}},
		{128, []byte{0x04, 0x81, 0x80}},
		{255, []byte{0x04, 0x81, 0xff}},
		{256, []byte{0x04, 0x82, 0x01, 0x00}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.size), func(t *testing.T) {
			payload := bytes.Repeat([]byte{'a'}, tt.size)
			enc := EncodeOctetString(payload)
			assert.Equal(t, tt.header, enc[:len(tt.header)])
			assert.Len(t, enc, len(tt.header)+tt.size)

			typ, content, rest, err := DecodeTLV(enc)
			require.NoError(t, err)
			assert.Equal(t, TypeOctetString, typ)
			assert.Equal(t, payload, content)
			assert.Empty(t, rest)
		})
	}
}

func TestEncodeOID(t *testing.T) {
	tests := []struct {
		oid  string
		want []byte
	}{
		{"1.3", []byte{0x06, 0x01, 0x2b}},
		{"1.3.6", []byte{0x06, 0x02, 0x2b, 0x06}},
		{"1.3.6.1.2.1.1.3.0", []byte{0x06, 0x08, 0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x03, 0x00}},
		{"1.3.6.1.4.1.9.9.599.1", []byte{0x06, 0x0a, 0x2b, 0x06, 0x01, 0x04, 0x01, 0x09, 0x09, 0x84, 0x57, 0x01}},
		{"2.999.3", []byte{0x06, 0x03, 0x88, 0x37, 0x03}},
		{"1.3.6.1.4.1.4294967295", []byte{0x06, 0x0a, 0x2b, 0x06, 0x01, 0x04, 0x01, 0x8f, 0xff, 0xff, 0xff, 0x7f}},
	}
	for _, tt := range tests {
		t.Run(tt.oid, func(t *testing.T) {
			oid := MustParseOID(tt.oid)
			got, err := EncodeOID(oid)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			_, content, _, err := DecodeTLV(got)
			require.NoError(t, err)
			decoded, err := DecodeOID(content)
			require.NoError(t, err)
			assert.Equal(t, oid, decoded)
		})
	}
}

func TestOIDRoundTripArcCounts(t *testing.T) {
	for _, s := range []string{"1.3", "1.3.6", "1.3.6.1.4.1.2021.10.1.3.1"} {
		oid := MustParseOID(s)
		enc, err := EncodeOID(oid)
		require.NoError(t, err)
		_, content, _, err := DecodeTLV(enc)
		require.NoError(t, err)
		decoded, err := DecodeOID(content)
		require.NoError(t, err)
		assert.Equal(t, s, decoded.String())
	}
}

func TestEncodeOIDInvalid(t *testing.T) {
	for _, oid := range []OID{{1}, {3, 1}, {1, 40}, {1, 3, -1}, {1, 3, math.MaxUint32 + 1}} {
		_, err := EncodeOID(oid)
		assert.ErrorIs(t, err, ErrInvalidOID, "oid %v", []int(oid))
	}
}

func TestDecodeTLVErrors(t *testing.T) {
	tests := []struct {
		name      string
		in        []byte
		truncated bool
	}{
		{"empty", []byte{}, true},
		{"tag only", []byte{0x04}, true},
		{"missing long length octets", []byte{0x04, 0x82, 0x01}, true},
		{"content overruns buffer", []byte{0x04, 0x05, 'a', 'b'}, false},
		{"indefinite length", []byte{0x30, 0x80, 0x00, 0x00}, false},
		{"too many length octets", []byte{0x04, 0x85, 0, 0, 0, 0, 1, 'a'}, false},
		{"multi-byte tag", []byte{0x1f, 0x01, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := DecodeTLV(tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedEncoding)
			assert.Equal(t, tt.truncated, errors.Is(err, ErrTruncatedInput))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.GreaterOrEqual(t, pe.Offset, 0)
		})
	}
}

func TestDecodeTLVRest(t *testing.T) {
	buf := append(EncodeInteger(5), EncodeNull()...)
	typ, content, rest, err := DecodeTLV(buf)
	require.NoError(t, err)
	assert.Equal(t, TypeInteger, typ)
	assert.Equal(t, []byte{5}, content)
	assert.Equal(t, []byte{0x05, 0x00}, rest)
}

func TestDecodeContentErrors(t *testing.T) {
	_, err := DecodeInteger(nil)
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	_, err = DecodeInteger(make([]byte, 9))
	assert.ErrorIs(t, err, ErrMalformedEncoding)

	_, err = DecodeOID(nil)
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	_, err = DecodeOID([]byte{0x2b, 0x86})
	assert.ErrorIs(t, err, ErrMalformedEncoding, "trailing continuation bit")
	_, err = DecodeOID([]byte{0x2b, 0xff, 0xff, 0xff, 0xff, 0x7f})
	assert.ErrorIs(t, err, ErrMalformedEncoding, "arc overflow")

	_, err = decodeValue(TypeIPAddress, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	_, err = decodeValue(TypeNull, []byte{0})
	assert.ErrorIs(t, err, ErrMalformedEncoding)
	_, err = decodeValue(BERType(0x44), []byte{0})
	assert.ErrorIs(t, err, ErrMalformedEncoding)
}

func TestExpectTLV(t *testing.T) {
	buf := EncodeInteger(7)
	content, rest, err := ExpectTLV(buf, TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, []byte{7}, content)
	assert.Empty(t, rest)

	_, _, err = ExpectTLV(buf, TypeSequence)
	assert.ErrorIs(t, err, ErrMalformedEncoding)
}

func TestVarbindListRoundTrip(t *testing.T) {
	list := VarbindList{
		Integer(MustParseOID("1.3.6.1.4.1.1.1"), -42),
		OctetString(MustParseOID("1.3.6.1.4.1.1.2"), "hello"),
		ObjectIdentifier(MustParseOID("1.3.6.1.4.1.1.3"), MustParseOID("1.3.6.1.4.1.9")),
		TimeTicks(MustParseOID("1.3.6.1.4.1.1.4"), 123456),
		{OID: MustParseOID("1.3.6.1.4.1.1.5"), Type: TypeNull},
		{OID: MustParseOID("1.3.6.1.4.1.1.6"), Type: TypeCounter32, Value: uint32(9)},
		{OID: MustParseOID("1.3.6.1.4.1.1.7"), Type: TypeGauge32, Value: uint32(math.MaxUint32)},
		{OID: MustParseOID("1.3.6.1.4.1.1.8"), Type: TypeCounter64, Value: uint64(1) << 40},
		{OID: MustParseOID("1.3.6.1.4.1.1.9"), Type: TypeIPAddress, Value: net.IP{10, 0, 0, 1}},
		OctetString(MustParseOID("1.3.6.1.4.1.1.2"), ""),
	}
	enc, err := EncodeVarbindList(list)
	require.NoError(t, err)

	got, err := decodeVarbindList(&berReader{buf: enc})
	require.NoError(t, err)
	assert.Equal(t, list, got)
}
