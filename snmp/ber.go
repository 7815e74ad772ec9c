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
	"fmt"
	"math"
	"net"
)

// BER encoding/decoding functions for SNMP trap messages.

// maxLengthOctets bounds long-form lengths; SNMP messages never exceed 2^32.
const maxLengthOctets = 4

// encodeLength encodes a BER length.
func encodeLength(length int) []byte {
	if length < 128 {
		return []byte{byte(length)}
	}

	// Long form
	buf := make([]byte, 0, 5)
	temp := length
	for temp > 0 {
		buf = append([]byte{byte(temp & 0xff)}, buf...)
		temp >>= 8
	}
	return append([]byte{byte(0x80 | len(buf))}, buf...)
}

// EncodeTLV encodes a Type-Length-Value structure.
func EncodeTLV(berType BERType, value []byte) []byte {
	length := encodeLength(len(value))
	result := make([]byte, 1+len(length)+len(value))
	result[0] = byte(berType)
	copy(result[1:], length)
	copy(result[1+len(length):], value)
	return result
}

// encodeIntegerContent returns the minimal two's-complement form of value.
func encodeIntegerContent(value int64) []byte {
	n := 1
	for x := value; x > 127 || x < -128; x >>= 8 {
		n++
	}
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(value)
		value >>= 8
	}
	return buf
}

// encodeUnsignedContent encodes an unsigned integer, adding a leading zero
// octet when the high bit would otherwise read as a sign.
func encodeUnsignedContent(value uint64) []byte {
	if value == 0 {
		return []byte{0}
	}

	var buf []byte
	temp := value
	for temp > 0 {
		buf = append([]byte{byte(temp & 0xff)}, buf...)
		temp >>= 8
	}

	if buf[0]&0x80 != 0 {
		buf = append([]byte{0}, buf...)
	}
	return buf
}

// encodeSubidentifier encodes one OID subidentifier in base 128.
func encodeSubidentifier(value uint64) []byte {
	if value < 128 {
		return []byte{byte(value)}
	}

	var buf []byte
	temp := value
	for temp > 0 {
		buf = append([]byte{byte(temp & 0x7f)}, buf...)
		temp >>= 7
	}

	// Set high bit on all but last byte
	for i := 0; i < len(buf)-1; i++ {
		buf[i] |= 0x80
	}
	return buf
}

// encodeOIDContent encodes the content octets of an OID.
func encodeOIDContent(oid OID) ([]byte, error) {
	if err := oid.Validate(); err != nil {
		return nil, err
	}

	// First two components are combined: first*40 + second
	buf := encodeSubidentifier(uint64(oid[0])*40 + uint64(oid[1]))
	for _, arc := range oid[2:] {
		buf = append(buf, encodeSubidentifier(uint64(arc))...)
	}
	return buf, nil
}

// EncodeInteger encodes an INTEGER TLV.
func EncodeInteger(n int64) []byte {
	return EncodeTLV(TypeInteger, encodeIntegerContent(n))
}

// EncodeUnsigned encodes one of the unsigned application types
// (Counter32, Gauge32, TimeTicks, Counter64).
func EncodeUnsigned(t BERType, n uint64) []byte {
	return EncodeTLV(t, encodeUnsignedContent(n))
}

// EncodeOctetString encodes an OCTET STRING TLV.
func EncodeOctetString(b []byte) []byte {
	return EncodeTLV(TypeOctetString, b)
}

// EncodeNull encodes a NULL TLV.
func EncodeNull() []byte {
	return []byte{byte(TypeNull), 0}
}

// EncodeOID encodes an OBJECT IDENTIFIER TLV.
func EncodeOID(oid OID) ([]byte, error) {
	content, err := encodeOIDContent(oid)
	if err != nil {
		return nil, err
	}
	return EncodeTLV(TypeObjectIdentifier, content), nil
}

// EncodeIPAddress encodes an IpAddress TLV.
func EncodeIPAddress(ip net.IP) ([]byte, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("%w: not an IPv4 address: %v", ErrInvalidValue, ip)
	}
	return EncodeTLV(TypeIPAddress, ip4), nil
}

// EncodeSequence wraps already encoded children in a SEQUENCE.
func EncodeSequence(children ...[]byte) []byte {
	return EncodeTLV(TypeSequence, bytes.Join(children, nil))
}

// encodeValue encodes the value half of a varbind.
func encodeValue(v *Varbind) ([]byte, error) {
	switch v.Type {
	case TypeNull:
		return EncodeNull(), nil

	case TypeInteger:
		val, ok := v.AsInt()
		if !ok {
			return nil, fmt.Errorf("%w: integer value %v", ErrInvalidValue, v.Value)
		}
		return EncodeInteger(val), nil

	case TypeOctetString:
		switch val := v.Value.(type) {
		case []byte:
			return EncodeOctetString(val), nil
		case string:
			return EncodeOctetString([]byte(val)), nil
		}
		return nil, fmt.Errorf("%w: octet string value %v", ErrInvalidValue, v.Value)

	case TypeObjectIdentifier:
		oid, ok := v.Value.(OID)
		if !ok {
			return nil, fmt.Errorf("%w: OID value %v", ErrInvalidValue, v.Value)
		}
		return EncodeOID(oid)

	case TypeIPAddress:
		switch val := v.Value.(type) {
		case net.IP:
			return EncodeIPAddress(val)
		case string:
			return EncodeIPAddress(net.ParseIP(val))
		}
		return nil, fmt.Errorf("%w: IP address value %v", ErrInvalidValue, v.Value)

	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		val, ok := v.AsUint()
		if !ok || val > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %s value %v", ErrInvalidValue, v.Type, v.Value)
		}
		return EncodeUnsigned(v.Type, val), nil

	case TypeCounter64:
		val, ok := v.AsUint()
		if !ok {
			return nil, fmt.Errorf("%w: Counter64 value %v", ErrInvalidValue, v.Value)
		}
		return EncodeUnsigned(TypeCounter64, val), nil

	default:
		return nil, fmt.Errorf("%w: unsupported type %s", ErrInvalidValue, v.Type)
	}
}

// encodeVarbind encodes a Varbind as SEQUENCE { name, value }.
func encodeVarbind(v *Varbind) ([]byte, error) {
	name, err := EncodeOID(v.OID)
	if err != nil {
		return nil, err
	}
	value, err := encodeValue(v)
	if err != nil {
		return nil, fmt.Errorf("varbind %s: %w", v.OID, err)
	}
	return EncodeSequence(name, value), nil
}

// EncodeVarbindList encodes a list of varbinds in order.
func EncodeVarbindList(list VarbindList) ([]byte, error) {
	children := make([][]byte, 0, len(list))
	for i := range list {
		vb, err := encodeVarbind(&list[i])
		if err != nil {
			return nil, err
		}
		children = append(children, vb)
	}
	return EncodeSequence(children...), nil
}

// DecodeTLV decodes one TLV from the front of buf and returns its tag,
// its content and the unconsumed remainder.
func DecodeTLV(buf []byte) (BERType, []byte, []byte, error) {
	r := berReader{buf: buf}
	t, content, _, err := r.next()
	if err != nil {
		return 0, nil, nil, err
	}
	return t, content, r.buf, nil
}

// berReader walks consecutive TLVs. off is the absolute offset of buf[0]
// within the datagram, used for error reporting.
type berReader struct {
	buf []byte
	off int
}

func (r *berReader) empty() bool {
	return len(r.buf) == 0
}

// next consumes one TLV. It returns the content and its absolute offset.
func (r *berReader) next() (BERType, []byte, int, error) {
	if len(r.buf) < 2 {
		return 0, nil, 0, truncated("need tag and length", r.off)
	}

	t := BERType(r.buf[0])
	if r.buf[0]&0x1f == 0x1f {
		return 0, nil, 0, NewParseError(fmt.Sprintf("multi-byte tag 0x%02X", r.buf[0]), r.off)
	}

	length := int(r.buf[1])
	hdr := 2
	if length >= 0x80 {
		numBytes := length & 0x7f
		if numBytes == 0 {
			return 0, nil, 0, NewParseError("indefinite length", r.off+1)
		}
		if numBytes > maxLengthOctets {
			return 0, nil, 0, NewParseError(fmt.Sprintf("length uses %d octets", numBytes), r.off+1)
		}
		if len(r.buf) < 2+numBytes {
			return 0, nil, 0, truncated("length octets", r.off+2)
		}
		length = 0
		for _, b := range r.buf[2 : 2+numBytes] {
			length = length<<8 | int(b)
		}
		hdr += numBytes
	}

	if length > len(r.buf)-hdr {
		return 0, nil, 0, NewParseError(
			fmt.Sprintf("%s length %d exceeds remaining %d bytes", t, length, len(r.buf)-hdr), r.off)
	}

	content := make([]byte, length)
	copy(content, r.buf[hdr:hdr+length])
	contentOff := r.off + hdr

	r.buf = r.buf[hdr+length:]
	r.off = contentOff + length
	return t, content, contentOff, nil
}

// expect consumes one TLV and requires its tag to be want.
func (r *berReader) expect(want BERType, what string) ([]byte, int, error) {
	start := r.off
	t, content, off, err := r.next()
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", what, err)
	}
	if t != want {
		return nil, 0, NewParseError(fmt.Sprintf("%s: expected %s, got %s", what, want, t), start)
	}
	return content, off, nil
}

// sub returns a reader over content located at off.
func sub(content []byte, off int) *berReader {
	return &berReader{buf: content, off: off}
}

// ExpectTLV decodes one TLV and fails with ErrMalformedEncoding if its tag
// is not want.
func ExpectTLV(buf []byte, want BERType) ([]byte, []byte, error) {
	r := berReader{buf: buf}
	content, _, err := r.expect(want, want.String())
	if err != nil {
		return nil, nil, err
	}
	return content, r.buf, nil
}

// DecodeInteger decodes INTEGER content octets.
func DecodeInteger(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, NewParseError("empty integer", -1)
	}
	if len(data) > 8 {
		return 0, NewParseError(fmt.Sprintf("integer of %d octets", len(data)), -1)
	}

	var value int64
	if data[0]&0x80 != 0 {
		// Negative number
		value = -1
	}
	for _, b := range data {
		value = (value << 8) | int64(b)
	}
	return value, nil
}

// DecodeUnsigned decodes the content octets of an unsigned application type.
func DecodeUnsigned(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, NewParseError("empty unsigned integer", -1)
	}
	if len(data) > 9 || (len(data) == 9 && data[0] != 0) {
		return 0, NewParseError(fmt.Sprintf("unsigned integer of %d octets", len(data)), -1)
	}

	var value uint64
	for _, b := range data {
		value = (value << 8) | uint64(b)
	}
	return value, nil
}

// DecodeOID decodes OBJECT IDENTIFIER content octets.
func DecodeOID(data []byte) (OID, error) {
	if len(data) == 0 {
		return nil, NewParseError("empty OID", -1)
	}
	if data[len(data)-1]&0x80 != 0 {
		return nil, NewParseError("OID ends inside a subidentifier", -1)
	}

	var (
		oid     OID
		current uint64
	)
	for _, b := range data {
		current = current<<7 | uint64(b&0x7f)
		if current > math.MaxUint32+80 {
			return nil, NewParseError("OID subidentifier overflows uint32", -1)
		}
		if b&0x80 != 0 {
			continue
		}

		if oid == nil {
			// First subidentifier packs the first two arcs.
			switch {
			case current < 40:
				oid = OID{0, int(current)}
			case current < 80:
				oid = OID{1, int(current - 40)}
			default:
				oid = OID{2, int(current - 80)}
			}
		} else {
			if current > math.MaxUint32 {
				return nil, NewParseError("OID arc overflows uint32", -1)
			}
			oid = append(oid, int(current))
		}
		current = 0
	}

	if err := oid.Validate(); err != nil {
		return nil, NewParseError(err.Error(), -1)
	}
	return oid, nil
}

// decodeValue decodes a varbind value of type t.
func decodeValue(t BERType, data []byte) (interface{}, error) {
	switch t {
	case TypeNull:
		if len(data) != 0 {
			return nil, NewParseError("NULL with content", -1)
		}
		return nil, nil

	case TypeInteger:
		return DecodeInteger(data)

	case TypeOctetString:
		return data, nil

	case TypeObjectIdentifier:
		return DecodeOID(data)

	case TypeIPAddress:
		if len(data) != net.IPv4len {
			return nil, NewParseError(fmt.Sprintf("IpAddress of %d octets", len(data)), -1)
		}
		return net.IP(data), nil

	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		v, err := DecodeUnsigned(data)
		if err != nil {
			return nil, err
		}
		if v > math.MaxUint32 {
			return nil, NewParseError(fmt.Sprintf("%s overflows uint32", t), -1)
		}
		return uint32(v), nil

	case TypeCounter64:
		return DecodeUnsigned(data)

	default:
		return nil, NewParseError(fmt.Sprintf("unrecognized value tag 0x%02X", byte(t)), -1)
	}
}

// decodeVarbindList decodes a SEQUENCE OF VarBind.
func decodeVarbindList(r *berReader) (VarbindList, error) {
	content, off, err := r.expect(TypeSequence, "variable-bindings")
	if err != nil {
		return nil, err
	}

	list := VarbindList{}
	seq := sub(content, off)
	for !seq.empty() {
		vbContent, vbOff, err := seq.expect(TypeSequence, "varbind")
		if err != nil {
			return nil, err
		}
		vbr := sub(vbContent, vbOff)

		nameData, nameOff, err := vbr.expect(TypeObjectIdentifier, "varbind name")
		if err != nil {
			return nil, err
		}
		oid, err := DecodeOID(nameData)
		if err != nil {
			return nil, withOffset(err, nameOff)
		}

		valOff := vbr.off
		valType, valData, _, err := vbr.next()
		if err != nil {
			return nil, fmt.Errorf("varbind %s value: %w", oid, err)
		}
		value, err := decodeValue(valType, valData)
		if err != nil {
			return nil, withOffset(err, valOff)
		}
		if !vbr.empty() {
			return nil, NewParseError("trailing bytes in varbind", vbr.off)
		}

		list = append(list, Varbind{OID: oid, Type: valType, Value: value})
	}
	return list, nil
}

// withOffset fills in the offset of a content-level parse error.
func withOffset(err error, off int) error {
	if pe, ok := err.(*ParseError); ok && pe.Offset < 0 {
		pe.Offset = off
	}
	return err
}
