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
)

// Message is a decoded SNMP message envelope.
type Message struct {
	Version   SNMPVersion
	Community string
	// PDU holds the raw PDU TLV, tag included.
	PDU []byte
}

// EncodeMessage wraps an encoded PDU into SEQUENCE { version, community, pdu }.
func EncodeMessage(version SNMPVersion, community string, pdu []byte) ([]byte, error) {
	if !version.Supported() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, int(version))
	}
	if len(pdu) == 0 {
		return nil, fmt.Errorf("%w: empty PDU", ErrInvalidValue)
	}
	return EncodeSequence(
		EncodeInteger(int64(version)),
		EncodeOctetString([]byte(community)),
		pdu,
	), nil
}

// DecodeMessage decodes the message envelope. The PDU is left encoded.
func DecodeMessage(data []byte) (*Message, error) {
	msg, _, err := decodeEnvelope(data)
	return msg, err
}

func decodeEnvelope(data []byte) (*Message, *berReader, error) {
	r := &berReader{buf: data}
	content, off, err := r.expect(TypeSequence, "message")
	if err != nil {
		return nil, nil, err
	}
	if !r.empty() {
		return nil, nil, NewParseError(fmt.Sprintf("%d trailing bytes after message", len(r.buf)), r.off)
	}

	body := sub(content, off)

	verData, verOff, err := body.expect(TypeInteger, "version")
	if err != nil {
		return nil, nil, err
	}
	ver, err := DecodeInteger(verData)
	if err != nil {
		return nil, nil, withOffset(err, verOff)
	}
	version := SNMPVersion(ver)
	if ver < 0 || ver > 1 {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, ver)
	}

	community, _, err := body.expect(TypeOctetString, "community")
	if err != nil {
		return nil, nil, err
	}

	if body.empty() {
		return nil, nil, truncated("missing PDU", body.off)
	}
	pduStart := body.off
	pdu := make([]byte, len(body.buf))
	copy(pdu, body.buf)

	return &Message{
		Version:   version,
		Community: string(community),
		PDU:       pdu,
	}, &berReader{buf: pdu, off: pduStart}, nil
}

// DecodeTrap decodes a complete trap message. Offsets in parse errors are
// relative to data.
func DecodeTrap(data []byte) (*ReceivedTrap, error) {
	msg, pr, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	trap, err := decodePDU(pr)
	if err != nil {
		return nil, err
	}
	if msg.Version == Version1 && trap.PDUType != TypeTrapV1 {
		return nil, fmt.Errorf("%w: %s in a v1 message", ErrUnsupportedPDU, trap.PDUType)
	}
	if msg.Version == Version2c && trap.PDUType == TypeTrapV1 {
		return nil, fmt.Errorf("%w: %s in a v2c message", ErrUnsupportedPDU, trap.PDUType)
	}
	trap.Version = msg.Version
	trap.Community = msg.Community
	return trap, nil
}
