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
	"log/slog"
	"time"
)

// SenderOptions contains configuration options for a Sender.
type SenderOptions struct {
	// Community is used when a Notification leaves it empty.
	Community string
	// Version is used when a Notification does not set one.
	Version SNMPVersion
	// WriteTimeout bounds a single datagram write when the context has no deadline.
	WriteTimeout time.Duration
	// Metrics receives send counters. A fresh instance is used when nil.
	Metrics *Metrics
	// Logger
	Logger *slog.Logger
}

// NewSenderOptions creates SenderOptions with default values.
func NewSenderOptions() *SenderOptions {
	return &SenderOptions{
		Community:    DefaultCommunity,
		Version:      Version2c,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// SenderOption is a functional option for configuring a Sender.
type SenderOption func(*SenderOptions)

// WithSenderCommunity sets the default community string.
func WithSenderCommunity(community string) SenderOption {
	return func(o *SenderOptions) {
		o.Community = community
	}
}

// WithSenderVersion sets the default SNMP version.
func WithSenderVersion(version SNMPVersion) SenderOption {
	return func(o *SenderOptions) {
		o.Version = version
	}
}

// WithWriteTimeout sets the per-datagram write timeout.
func WithWriteTimeout(d time.Duration) SenderOption {
	return func(o *SenderOptions) {
		o.WriteTimeout = d
	}
}

// WithSenderMetrics shares a Metrics instance with the sender.
func WithSenderMetrics(m *Metrics) SenderOption {
	return func(o *SenderOptions) {
		o.Metrics = m
	}
}

// WithSenderLogger sets the logger.
func WithSenderLogger(logger *slog.Logger) SenderOption {
	return func(o *SenderOptions) {
		o.Logger = logger
	}
}

// ListenerOptions contains configuration for a TrapListener.
type ListenerOptions struct {
	// Communities, when non-empty, is the set of accepted community strings.
	Communities []string
	// PollInterval is how often the receive loop wakes to check for
	// cancellation.
	PollInterval time.Duration
	// BufferSize is the receive buffer size in bytes.
	BufferSize int
	// Metrics receives listener counters. A fresh instance is used when nil.
	Metrics *Metrics
	// Logger
	Logger *slog.Logger
}

// NewListenerOptions creates ListenerOptions with default values.
func NewListenerOptions() *ListenerOptions {
	return &ListenerOptions{
		PollInterval: DefaultPollInterval,
		BufferSize:   MaxDatagramSize,
	}
}

// ListenerOption is a functional option for configuring a TrapListener.
type ListenerOption func(*ListenerOptions)

// WithListenerCommunities restricts accepted traps to the given communities.
func WithListenerCommunities(communities ...string) ListenerOption {
	return func(o *ListenerOptions) {
		o.Communities = append([]string(nil), communities...)
	}
}

// WithPollInterval sets the cancellation poll interval.
func WithPollInterval(d time.Duration) ListenerOption {
	return func(o *ListenerOptions) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

// WithBufferSize sets the receive buffer size.
func WithBufferSize(n int) ListenerOption {
	return func(o *ListenerOptions) {
		if n > 0 {
			o.BufferSize = n
		}
	}
}

// WithListenerMetrics shares a Metrics instance with the listener.
func WithListenerMetrics(m *Metrics) ListenerOption {
	return func(o *ListenerOptions) {
		o.Metrics = m
	}
}

// WithListenerLogger sets the logger.
func WithListenerLogger(logger *slog.Logger) ListenerOption {
	return func(o *ListenerOptions) {
		o.Logger = logger
	}
}
