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
	"log/slog"
	"net"
	"time"
)

// Notification is the input of a single trap send.
type Notification struct {
	Version   SNMPVersion
	Community string // the sender's default when empty
	TrapOID   OID
	// Uptime in TimeTicks. When zero, the time since the Sender was
	// created is used.
	Uptime uint32

	// v1 only. Enterprise, GenericTrap and SpecificTrap are derived from
	// TrapOID unless Enterprise is set.
	Enterprise   OID
	GenericTrap  int
	SpecificTrap int
	AgentAddress net.IP

	Varbinds VarbindList
}

// Sender sends traps. Every Send opens and closes its own socket, so a
// Sender may be used from many goroutines at once.
type Sender struct {
	opts    *SenderOptions
	logger  *slog.Logger
	metrics *Metrics
	started time.Time
}

// NewSender creates a new trap sender.
func NewSender(opts ...SenderOption) *Sender {
	options := NewSenderOptions()
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

	return &Sender{
		opts:    options,
		logger:  logger,
		metrics: metrics,
		started: time.Now(),
	}
}

// NewNotification returns a Notification carrying the sender's default
// version and community.
func (s *Sender) NewNotification(trapOID OID, varbinds ...Varbind) Notification {
	return Notification{
		Version:   s.opts.Version,
		Community: s.opts.Community,
		TrapOID:   trapOID,
		Varbinds:  varbinds,
	}
}

// Build validates n and turns it into an encodable Trap.
func (s *Sender) Build(n Notification) (*Trap, error) {
	if err := n.Varbinds.Validate(); err != nil {
		return nil, err
	}

	community := n.Community
	if community == "" {
		community = s.opts.Community
	}
	uptime := n.Uptime
	if uptime == 0 {
		uptime = DurationToTimeTicks(time.Since(s.started))
	}

	b := NewTrapBuilder(n.Version, n.TrapOID).
		SetCommunity(community).
		SetUptime(uptime)
	if n.AgentAddress != nil {
		b.SetAgentAddress(n.AgentAddress)
	}
	if n.Enterprise != nil {
		b.SetV1Trap(n.Enterprise, n.GenericTrap, n.SpecificTrap)
	}
	if err := b.Add(n.Varbinds...); err != nil {
		return nil, err
	}
	return b.Build()
}

// Send builds n and writes it to target as one UDP datagram. Validation
// failures are reported before any socket is opened. A nil error means only
// that the local network stack accepted the datagram; traps are
// unacknowledged. Errors are of type *SendError.
func (s *Sender) Send(ctx context.Context, target Target, n Notification) error {
	start := time.Now()

	err := s.send(ctx, target, n)
	if err != nil {
		s.metrics.SendErrors.Add(1)
		s.logger.Warn("trap send failed", "target", target.String(), "error", err)
		return &SendError{Target: target, Err: err}
	}

	s.metrics.TrapsSent.Add(1)
	s.metrics.VarbindsSent.Add(int64(len(n.Varbinds)))
	s.metrics.SendLatency.ObserveDuration(time.Since(start))
	s.logger.Debug("trap sent",
		"target", target.String(),
		"version", n.Version,
		"trap_oid", n.TrapOID.String(),
		"varbinds", len(n.Varbinds))
	return nil
}

func (s *Sender) send(ctx context.Context, target Target, n Notification) error {
	if err := target.Validate(); err != nil {
		return err
	}
	trap, err := s.Build(n)
	if err != nil {
		return err
	}
	payload, err := trap.Encode()
	if err != nil {
		return err
	}

	if _, ok := ctx.Deadline(); !ok && s.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.WriteTimeout)
		defer cancel()
	}

	tr, err := NewTransport(target)
	if err != nil {
		return err
	}
	defer tr.Close()

	return tr.Send(ctx, payload)
}

// Metrics returns the sender metrics.
func (s *Sender) Metrics() *Metrics {
	return s.metrics
}

// SendTrap sends a single trap with a default Sender.
func SendTrap(ctx context.Context, target Target, community string, version SNMPVersion, notificationOID OID, varbinds VarbindList) error {
	s := NewSender(WithSenderCommunity(community), WithSenderVersion(version))
	return s.Send(ctx, target, s.NewNotification(notificationOID, varbinds...))
}
