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
)

// Varbind represents an SNMP variable binding.
//
// Value holds the canonical Go representation of Type:
//
//	INTEGER            int64
//	OCTET STRING       []byte
//	OBJECT IDENTIFIER  OID
//	NULL               nil
//	Counter32, Gauge32 uint32
//	TimeTicks          uint32
//	Counter64          uint64
//	IpAddress          net.IP (4 bytes)
type Varbind struct {
	OID   OID
	Type  BERType
	Value interface{}
}

// NewVarbind creates a varbind, converting value to the canonical
// representation of typ.
func NewVarbind(oid OID, typ BERType, value interface{}) (Varbind, error) {
	if err := oid.Validate(); err != nil {
		return Varbind{}, err
	}
	v, err := normalizeValue(typ, value)
	if err != nil {
		return Varbind{}, err
	}
	return Varbind{OID: oid.Copy(), Type: typ, Value: v}, nil
}

// OctetString returns an OCTET STRING varbind.
func OctetString(oid OID, s string) Varbind {
	return Varbind{OID: oid, Type: TypeOctetString, Value: []byte(s)}
}

// Integer returns an INTEGER varbind.
func Integer(oid OID, n int64) Varbind {
	return Varbind{OID: oid, Type: TypeInteger, Value: n}
}

// ObjectIdentifier returns an OBJECT IDENTIFIER varbind.
func ObjectIdentifier(oid OID, value OID) Varbind {
	return Varbind{OID: oid, Type: TypeObjectIdentifier, Value: value}
}

// TimeTicks returns a TimeTicks varbind.
func TimeTicks(oid OID, ticks uint32) Varbind {
	return Varbind{OID: oid, Type: TypeTimeTicks, Value: ticks}
}

// String returns a string representation of the varbind.
func (v Varbind) String() string {
	return fmt.Sprintf("%s = %s: %s", v.OID, v.Type, v.ValueString())
}

// ValueString renders the value without type information.
func (v Varbind) ValueString() string {
	switch val := v.Value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	case OID:
		return val.String()
	case net.IP:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// AsInt returns the value as an integer.
func (v Varbind) AsInt() (int64, bool) {
	switch val := v.Value.(type) {
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint32:
		return int64(val), true
	case uint64:
		if val > math.MaxInt64 {
			return 0, false
		}
		return int64(val), true
	default:
		return 0, false
	}
}

// AsUint returns the value as an unsigned integer.
func (v Varbind) AsUint() (uint64, bool) {
	switch val := v.Value.(type) {
	case int:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case int32:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case int64:
		if val < 0 {
			return 0, false
		}
		return uint64(val), true
	case uint:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	default:
		return 0, false
	}
}

// AsBytes returns the value as bytes.
func (v Varbind) AsBytes() []byte {
	switch val := v.Value.(type) {
	case []byte:
		return val
	case string:
		return []byte(val)
	default:
		return nil
	}
}

func normalizeValue(typ BERType, value interface{}) (interface{}, error) {
	tmp := Varbind{Type: typ, Value: value}

	switch typ {
	case TypeNull:
		if value != nil {
			return nil, fmt.Errorf("%w: NULL carries no value, got %T", ErrInvalidValue, value)
		}
		return nil, nil

	case TypeInteger:
		n, ok := tmp.AsInt()
		if !ok {
			return nil, fmt.Errorf("%w: integer from %T", ErrInvalidValue, value)
		}
		return n, nil

	case TypeOctetString:
		switch val := value.(type) {
		case []byte:
			out := make([]byte, len(val))
			copy(out, val)
			return out, nil
		case string:
			return []byte(val), nil
		}
		return nil, fmt.Errorf("%w: octet string from %T", ErrInvalidValue, value)

	case TypeObjectIdentifier:
		var oid OID
		switch val := value.(type) {
		case OID:
			oid = val.Copy()
		case string:
			parsed, err := ParseOID(val)
			if err != nil {
				return nil, err
			}
			oid = parsed
		default:
			return nil, fmt.Errorf("%w: OID from %T", ErrInvalidValue, value)
		}
		if err := oid.Validate(); err != nil {
			return nil, err
		}
		return oid, nil

	case TypeIPAddress:
		var ip net.IP
		switch val := value.(type) {
		case net.IP:
			ip = val
		case string:
			ip = net.ParseIP(val)
		case []byte:
			ip = net.IP(val)
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("%w: IpAddress must be IPv4, got %v", ErrInvalidValue, value)
		}
		out := make(net.IP, net.IPv4len)
		copy(out, ip4)
		return out, nil

	case TypeCounter32, TypeGauge32, TypeTimeTicks:
		n, ok := tmp.AsUint()
		if !ok || n > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %s from %v", ErrInvalidValue, typ, value)
		}
		return uint32(n), nil

	case TypeCounter64:
		n, ok := tmp.AsUint()
		if !ok {
			return nil, fmt.Errorf("%w: Counter64 from %v", ErrInvalidValue, value)
		}
		return n, nil

	default:
		return nil, fmt.Errorf("%w: unsupported varbind type %s", ErrInvalidValue, typ)
	}
}

// ParseVarbind parses a varbind from its command-line form. typeSpec uses
// the net-snmp letters: i (INTEGER), u (Gauge32), c (Counter32),
// C (Counter64), s (string), x (hex string), d (dotted decimal string),
// n (NULL), o (OID), t (TimeTicks), a (IpAddress).
func ParseVarbind(oidStr, typeSpec, valueStr string) (Varbind, error) {
	oid, err := ParseOID(oidStr)
	if err != nil {
		return Varbind{}, err
	}

	var (
		typ   BERType
		value interface{}
	)

	switch typeSpec {
	case "i":
		n, err := strconv.ParseInt(valueStr, 10, 32)
		if err != nil {
			return Varbind{}, fmt.Errorf("%w: integer %q", ErrInvalidValue, valueStr)
		}
		typ, value = TypeInteger, n

	case "u", "c", "t":
		n, err := strconv.ParseUint(valueStr, 10, 32)
		if err != nil {
			return Varbind{}, fmt.Errorf("%w: unsigned %q", ErrInvalidValue, valueStr)
		}
		switch typeSpec {
		case "u":
			typ = TypeGauge32
		case "c":
			typ = TypeCounter32
		default:
			typ = TypeTimeTicks
		}
		value = uint32(n)

	case "C":
		n, err := strconv.ParseUint(valueStr, 10, 64)
		if err != nil {
			return Varbind{}, fmt.Errorf("%w: counter64 %q", ErrInvalidValue, valueStr)
		}
		typ, value = TypeCounter64, n

	case "s":
		typ, value = TypeOctetString, valueStr

	case "x":
		b, err := parseHexString(valueStr)
		if err != nil {
			return Varbind{}, fmt.Errorf("%w: hex string: %v", ErrInvalidValue, err)
		}
		typ, value = TypeOctetString, b

	case "d":
		b, err := parseDottedDecimal(valueStr)
		if err != nil {
			return Varbind{}, fmt.Errorf("%w: decimal string: %v", ErrInvalidValue, err)
		}
		typ, value = TypeOctetString, b

	case "n":
		typ, value = TypeNull, nil

	case "o":
		typ, value = TypeObjectIdentifier, valueStr

	case "a":
		typ, value = TypeIPAddress, valueStr

	default:
		return Varbind{}, fmt.Errorf("%w: unknown type specifier %q (use i, u, c, C, s, x, d, n, o, t, or a)", ErrInvalidValue, typeSpec)
	}

	return NewVarbind(oid, typ, value)
}

func parseHexString(s string) ([]byte, error) {
	// Remove common separators and whitespace
	s = strings.NewReplacer(" ", "", ":", "", "-", "", "0x", "", "0X", "").Replace(s)

	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex characters")
	}

	out := make([]byte, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		val, err := strconv.ParseUint(s[i:i+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i/2] = byte(val)
	}
	return out, nil
}

func parseDottedDecimal(s string) ([]byte, error) {
	parts := strings.Split(s, ".")
	out := make([]byte, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseUint(part, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte value: %s", part)
		}
		out[i] = byte(val)
	}
	return out, nil
}

// VarbindList is an ordered list of varbinds. Order is preserved on the wire
// and duplicate OIDs are legal.
type VarbindList []Varbind

// Append validates the varbind's OID and appends it.
func (l *VarbindList) Append(vb Varbind) error {
	if err := vb.OID.Validate(); err != nil {
		return err
	}
	*l = append(*l, vb)
	return nil
}

// Set replaces the varbind at index i.
func (l VarbindList) Set(i int, vb Varbind) error {
	if i < 0 || i >= len(l) {
		return fmt.Errorf("%w: index %d of %d", ErrNoSuchVarbind, i, len(l))
	}
	if err := vb.OID.Validate(); err != nil {
		return err
	}
	l[i] = vb
	return nil
}

// Remove deletes the varbind at index i, keeping the order of the rest.
func (l *VarbindList) Remove(i int) error {
	if i < 0 || i >= len(*l) {
		return fmt.Errorf("%w: index %d of %d", ErrNoSuchVarbind, i, len(*l))
	}
	*l = append((*l)[:i], (*l)[i+1:]...)
	return nil
}

// Index returns the position of the first varbind named oid, or -1.
func (l VarbindList) Index(oid OID) int {
	for i, vb := range l {
		if vb.OID.Equal(oid) {
			return i
		}
	}
	return -1
}

// Validate checks every OID in the list.
func (l VarbindList) Validate() error {
	for i, vb := range l {
		if err := vb.OID.Validate(); err != nil {
			return fmt.Errorf("varbind %d: %w", i, err)
		}
	}
	return nil
}

// Clone returns a deep copy of the list.
func (l VarbindList) Clone() VarbindList {
	if l == nil {
		return nil
	}
	out := make(VarbindList, len(l))
	for i, vb := range l {
		out[i] = Varbind{OID: vb.OID.Copy(), Type: vb.Type, Value: cloneValue(vb.Value)}
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		out := make([]byte, len(val))
		copy(out, val)
		return out
	case OID:
		return val.Copy()
	case net.IP:
		out := make(net.IP, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
