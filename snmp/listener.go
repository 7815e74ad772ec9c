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
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// ListenerState represents the lifecycle state of a TrapListener.
type ListenerState int32

const (
	StateStopped ListenerState = iota
	StateBound
	StateRunning
)

// String returns the string representation of the state.
func (s ListenerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateBound:
		return "bound"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// TrapListener receives traps on one UDP address and dispatches them to a
// handler.
type TrapListener struct {
	opts    *ListenerOptions
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.Mutex
	state   ListenerState
	pl      *PacketListener
	handler TrapHandler
	done    chan struct{}
	wg      sync.WaitGroup

	// set while the receive goroutine runs the handler
	inHandler atomic.Bool
}

// NewTrapListener creates a new trap listener in StateStopped.
func NewTrapListener(opts ...ListenerOption) *TrapListener {
	options := NewListenerOptions()
	for _, opt := range opts {
		opt(options)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := options.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	return &TrapListener{
		opts:    options,
		logger:  logger,
		metrics: metrics,
	}
}

// Bind opens the socket on host:port. The listener must be stopped.
func (l *TrapListener) Bind(host string, port int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateStopped {
		return fmt.Errorf("%w: bind while %s", ErrInvalidState, l.state)
	}

	pl, err := ListenUDP(host, port)
	if err != nil {
		return err
	}
	pl.SetPollInterval(l.opts.PollInterval)

	l.pl = pl
	l.state = StateBound
	l.logger.Info("trap listener bound", "address", pl.Addr().String())
	return nil
}

// Start launches the receive loop. handler is called for every accepted
// trap, one at a time, in arrival order. The loop ends when Stop is called
// or ctx is done.
func (l *TrapListener) Start(ctx context.Context, handler TrapHandler) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateBound {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, l.state)
	}

	l.handler = handler
	l.done = make(chan struct{})
	l.state = StateRunning

	l.wg.Add(1)
	go l.receiveLoop(ctx, l.pl, l.done)

	l.logger.Info("trap listener started", "address", l.pl.Addr().String())
	return nil
}

// Stop closes the socket and waits for the receive loop to exit. It may be
// called from any goroutine, any number of times, including from the
// handler. While a handler is running Stop does not wait for it to return;
// the loop exits as soon as it does.
func (l *TrapListener) Stop() error {
	l.mu.Lock()
	if l.state == StateStopped {
		l.mu.Unlock()
		return nil
	}
	pl, done := l.pl, l.done
	wasRunning := l.state == StateRunning
	l.state = StateStopped
	l.pl = nil
	l.mu.Unlock()

	if done != nil && wasRunning {
		close(done)
	}
	err := pl.Close()
	if !l.inHandler.Load() {
		l.wg.Wait()
	}

	l.logger.Info("trap listener stopped")
	return err
}

// State returns the current state.
func (l *TrapListener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Addr returns the bound address, or nil when stopped.
func (l *TrapListener) Addr() *net.UDPAddr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pl == nil {
		return nil
	}
	return l.pl.Addr()
}

// Metrics returns the listener metrics.
func (l *TrapListener) Metrics() *Metrics {
	return l.metrics
}

func (l *TrapListener) receiveLoop(ctx context.Context, pl *PacketListener, done chan struct{}) {
	defer l.wg.Done()

	buf := make([]byte, l.opts.BufferSize)
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			l.logger.Debug("trap listener context done", "error", ctx.Err())
			go l.Stop()
			return
		default:
		}

		n, from, err := pl.Receive(buf)
		if err != nil {
			switch {
			case errors.Is(err, ErrPollTimeout):
			case errors.Is(err, ErrListenerClosed):
				return
			default:
				l.logger.Warn("error reading trap", "error", err)
			}
			continue
		}

		l.dispatch(buf[:n], from)
	}
}

func (l *TrapListener) dispatch(data []byte, from *net.UDPAddr) {
	trap, err := DecodeTrap(data)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnsupportedVersion):
		l.metrics.UnsupportedVersion.Add(1)
		l.logger.Warn("unsupported SNMP version", "source", from.String(), "error", err)
		return
	case errors.Is(err, ErrUnsupportedPDU):
		l.metrics.Dropped.Add(1)
		l.logger.Debug("dropping non-trap PDU", "source", from.String(), "error", err)
		return
	default:
		l.metrics.DecodeErrors.Add(1)
		l.logger.Warn("failed to decode trap", "source", from.String(), "error", err)
		return
	}

	if !l.acceptCommunity(trap.Community) {
		l.metrics.CommunityMismatch.Add(1)
		l.logger.Warn("trap community mismatch", "source", from.String(), "received", trap.Community)
		return
	}

	if trap.PDUType == TypeInformRequest {
		// Informs expect a Response-PDU, which this package does not send.
		l.metrics.InformsReceived.Add(1)
		l.metrics.Dropped.Add(1)
		l.logger.Info("dropping unacknowledged inform", "source", from.String(), "request_id", trap.RequestID)
		return
	}

	l.metrics.TrapsReceived.Add(1)
	l.metrics.VarbindsReceived.Add(int64(len(trap.Varbinds)))

	trap.Source = from
	trap.ReceivedAt = time.Now()

	if l.handler != nil {
		l.inHandler.Store(true)
		defer l.inHandler.Store(false)
		l.handler(from, trap)
	}
}

func (l *TrapListener) acceptCommunity(community string) bool {
	if len(l.opts.Communities) == 0 {
		return true
	}
	for _, c := range l.opts.Communities {
		if c == community {
			return true
		}
	}
	return false
}
