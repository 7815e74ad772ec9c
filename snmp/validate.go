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
	"net"
	"regexp"
	"strconv"
	"strings"
)

var (
	oidPattern  = regexp.MustCompile(`^\d+(\.\d+)+$`)
	ipv4Pattern = regexp.MustCompile(`^(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.` +
		`(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.` +
		`(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.` +
		`(25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	portPattern = regexp.MustCompile(`^\d{1,5}$`)
)

// ValidateOID reports whether s is a dotted-integer OID with at least two arcs.
func ValidateOID(s string) bool {
	return oidPattern.MatchString(s)
}

// ValidateHostIP reports whether s is a dotted-quad IPv4 address: exactly
// four groups, each 0-255. Surrounding whitespace is ignored.
func ValidateHostIP(s string) bool {
	return ipv4Pattern.MatchString(strings.TrimSpace(s))
}

// ValidateHostIPv6 reports whether s is a hex-colon IPv6 address.
func ValidateHostIPv6(s string) bool {
	s = strings.TrimSpace(s)
	return strings.Contains(s, ":") && net.ParseIP(s) != nil
}

// ValidatePort reports whether s is a decimal port number in 0-65535.
func ValidatePort(s string) bool {
	if !portPattern.MatchString(s) {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= 0 && n <= 65535
}

// Target is a UDP endpoint for sending or receiving traps.
type Target struct {
	Host string
	Port int
}

// String returns host:port, bracketing IPv6 hosts.
func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// IsIPv6 reports whether the host is an IPv6 literal.
func (t Target) IsIPv6() bool {
	return ValidateHostIPv6(t.Host)
}

// Validate checks the host grammar and the port range for sending (0-65535).
func (t Target) Validate() error {
	return t.validate(0)
}

// ValidateBind checks the host grammar and the port range for binding (1-65535).
func (t Target) ValidateBind() error {
	return t.validate(1)
}

func (t Target) validate(minPort int) error {
	if !ValidateHostIP(t.Host) && !ValidateHostIPv6(t.Host) {
		return fmt.Errorf("%w: %q is neither a dotted-quad IPv4 nor an IPv6 address", ErrInvalidAddress, t.Host)
	}
	if t.Port < minPort || t.Port > 65535 {
		return fmt.Errorf("%w: %d not in [%d, 65535]", ErrInvalidPort, t.Port, minPort)
	}
	return nil
}

// UDPAddr returns the resolved socket address and network ("udp4" or "udp6").
func (t Target) UDPAddr() (*net.UDPAddr, string, error) {
	host := strings.TrimSpace(t.Host)
	ip := net.ParseIP(host)
	if ip == nil {
		// The IPv4 grammar accepts leading zeros that net.ParseIP rejects.
		parts := strings.Split(host, ".")
		if len(parts) == 4 {
			b := make(net.IP, net.IPv4len)
			for i, p := range parts {
				n, err := strconv.Atoi(p)
				if err != nil || n < 0 || n > 255 {
					return nil, "", fmt.Errorf("%w: %q", ErrInvalidAddress, t.Host)
				}
				b[i] = byte(n)
			}
			ip = b
		}
	}
	if ip == nil {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidAddress, t.Host)
	}
	network := "udp6"
	if !strings.Contains(host, ":") {
		ip = ip.To4()
		network = "udp4"
	}
	return &net.UDPAddr{IP: ip, Port: t.Port}, network, nil
}

// ParseTarget parses "host:port", "[v6]:port" or a bare host (default trap port).
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port given.
		host, portStr = strings.Trim(s, "[]"), strconv.Itoa(DefaultTrapPort)
	}
	if !ValidatePort(portStr) {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidPort, portStr)
	}
	port, _ := strconv.Atoi(portStr)
	t := Target{Host: host, Port: port}
	if err := t.Validate(); err != nil {
		return Target{}, err
	}
	return t, nil
}
