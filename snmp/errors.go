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
	"errors"
	"fmt"
)

// Standard errors.
var (
	ErrInvalidAddress     = errors.New("snmp: invalid address")
	ErrInvalidOID         = errors.New("snmp: invalid OID")
	ErrInvalidPort        = errors.New("snmp: invalid port")
	ErrInvalidValue       = errors.New("snmp: invalid value")
	ErrMalformedEncoding  = errors.New("snmp: malformed encoding")
	ErrTruncatedInput     = errors.New("snmp: truncated input")
	ErrUnsupportedVersion = errors.New("snmp: unsupported SNMP version")
	ErrUnsupportedPDU     = errors.New("snmp: unsupported PDU type")
	ErrTransport          = errors.New("snmp: transport error")
	ErrTransportClosed    = errors.New("snmp: transport closed")
	ErrAddressInUse       = errors.New("snmp: address already in use")
	ErrListenerClosed     = errors.New("snmp: listener closed")
	ErrPollTimeout        = errors.New("snmp: poll interval elapsed")
	ErrInvalidState       = errors.New("snmp: invalid listener state")
	ErrNoSuchVarbind      = errors.New("snmp: no such varbind")
)

// ParseError represents a BER decoding error at a byte offset.
// Err is ErrMalformedEncoding or ErrTruncatedInput.
type ParseError struct {
	Message string
	Offset  int
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%v at offset %d: %s", e.Err, e.Offset, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Message)
}

// Unwrap returns the error kind.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is makes truncated input also match ErrMalformedEncoding.
func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedEncoding && e.Err == ErrTruncatedInput
}

// NewParseError creates a malformed-encoding parse error.
func NewParseError(message string, offset int) *ParseError {
	return &ParseError{
		Message: message,
		Offset:  offset,
		Err:     ErrMalformedEncoding,
	}
}

func truncated(message string, offset int) *ParseError {
	return &ParseError{
		Message: message,
		Offset:  offset,
		Err:     ErrTruncatedInput,
	}
}

// SendError is returned by Sender.Send. It wraps the validation, encoding or
// socket error that prevented the datagram from being handed to the network.
type SendError struct {
	Target Target
	Err    error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	return fmt.Sprintf("snmp: send trap to %s: %v", e.Target, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SendError) Unwrap() error {
	return e.Err
}

// IsMalformed returns true if the error is a decoding error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedEncoding)
}

// IsTransport returns true if the error originated at the socket level.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrTransportClosed)
}

// IsUnsupportedVersion returns true if the message carried a version other than v1/v2c.
func IsUnsupportedVersion(err error) bool {
	return errors.Is(err, ErrUnsupportedVersion)
}

// IsTruncated returns true if the input ended before a complete encoding.
func IsTruncated(err error) bool {
	return errors.Is(err, ErrTruncatedInput)
}
