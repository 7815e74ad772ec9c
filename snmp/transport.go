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
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
	"time"
)

// Transport is a connected UDP socket used to send trap datagrams to one
// target. The address family of the target selects udp4 or udp6.
type Transport struct {
	target Target
	conn   *net.UDPConn

	mu     sync.Mutex
	closed bool
}

// NewTransport validates target and opens a socket towards it.
func NewTransport(target Target) (*Transport, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	raddr, network, err := target.UDPAddr()
	if err != nil {
		return nil, err
	}

	conn, err := net.DialUDP(network, nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s %s: %v", ErrTransport, network, target, err)
	}
	return &Transport{target: target, conn: conn}, nil
}

// Send writes payload as exactly one datagram. The write deadline is taken
// from ctx when it has one.
func (t *Transport) Send(ctx context.Context, payload []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	n, err := t.conn.Write(payload)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return ErrTransportClosed
		}
		return fmt.Errorf("%w: write to %s: %v", ErrTransport, t.target, err)
	}
	if n != len(payload) {
		return fmt.Errorf("%w: short write to %s (%d of %d bytes)", ErrTransport, t.target, n, len(payload))
	}
	return nil
}

// LocalAddr returns the local address of the socket.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Close releases the socket. It is safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// PacketListener is a bound UDP socket that receives datagrams.
type PacketListener struct {
	conn         *net.UDPConn
	pollInterval time.Duration

	mu     sync.Mutex
	closed bool
}

// ListenUDP binds a UDP socket on host:port. Port must be 1-65535.
func ListenUDP(host string, port int) (*PacketListener, error) {
	target := Target{Host: host, Port: port}
	if err := target.ValidateBind(); err != nil {
		return nil, err
	}
	laddr, network, err := target.UDPAddr()
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("%w: %s", ErrAddressInUse, target)
		}
		return nil, fmt.Errorf("%w: listen %s %s: %v", ErrTransport, network, target, err)
	}
	return &PacketListener{conn: conn}, nil
}

// SetPollInterval makes Receive return ErrPollTimeout after d without a
// datagram. Zero disables the timeout.
func (p *PacketListener) SetPollInterval(d time.Duration) {
	p.pollInterval = d
}

// Receive blocks until a datagram arrives, the poll interval elapses
// (ErrPollTimeout) or the listener is closed (ErrListenerClosed).
func (p *PacketListener) Receive(buf []byte) (int, *net.UDPAddr, error) {
	if p.isClosed() {
		return 0, nil, ErrListenerClosed
	}

	deadline := time.Time{}
	if p.pollInterval > 0 {
		deadline = time.Now().Add(p.pollInterval)
	}
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		if p.isClosed() {
			return 0, nil, ErrListenerClosed
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	n, from, err := p.conn.ReadFromUDP(buf)
	if err != nil {
		switch {
		case p.isClosed(), errors.Is(err, net.ErrClosed):
			return 0, nil, ErrListenerClosed
		case errors.Is(err, os.ErrDeadlineExceeded):
			return 0, nil, ErrPollTimeout
		default:
			return 0, nil, fmt.Errorf("%w: read: %v", ErrTransport, err)
		}
	}
	return n, from, nil
}

// Addr returns the bound address.
func (p *PacketListener) Addr() *net.UDPAddr {
	addr, _ := p.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

// Close releases the socket and wakes a blocked Receive. It is safe to
// call more than once, from any goroutine.
func (p *PacketListener) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.conn.Close()
}

func (p *PacketListener) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
