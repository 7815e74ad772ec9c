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
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTimeout = time.Second

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

// startListener binds a listener on loopback and forwards every trap to
// the returned channel.
func startListener(t *testing.T, opts ...ListenerOption) (*TrapListener, <-chan *ReceivedTrap) {
	t.Helper()
	opts = append([]ListenerOption{WithPollInterval(50 * time.Millisecond)}, opts...)
	l := NewTrapListener(opts...)
	require.NoError(t, l.Bind("127.0.0.1", freePort(t)))

	traps := make(chan *ReceivedTrap, 16)
	require.NoError(t, l.Start(context.Background(), func(_ *net.UDPAddr, trap *ReceivedTrap) {
		traps <- trap
	}))
	t.Cleanup(func() { l.Stop() })
	return l, traps
}

func receiveTrap(t *testing.T, traps <-chan *ReceivedTrap) *ReceivedTrap {
	t.Helper()
	select {
	case trap := <-traps:
		return trap
	case <-time.After(defaultTimeout):
		t.Fatal("timeout waiting for trap")
		return nil
	}
}

func assertNoTrapReceived(t *testing.T, traps <-chan *ReceivedTrap) {
	t.Helper()
	select {
	case trap := <-traps:
		t.Errorf("unexpected trap from %s: %v", trap.Source, trap.Varbinds)
	case <-time.After(100 * time.Millisecond):
	}
}

func sendRaw(t *testing.T, addr *net.UDPAddr, payload []byte) {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(payload)
	require.NoError(t, err)
}

func listenerTarget(l *TrapListener) Target {
	return Target{Host: "127.0.0.1", Port: l.Addr().Port}
}

func TestSendTrapReachesListener(t *testing.T) {
	l, traps := startListener(t)

	varbinds := VarbindList{OctetString(MustParseOID("1.3.6.1.2.1.1.1.0"), "Device is up")}
	err := SendTrap(context.Background(), listenerTarget(l), "public", Version2c,
		MustParseOID("1.3.6.1.6.3.1.1.5.1"), varbinds)
	require.NoError(t, err)

	trap := receiveTrap(t, traps)
	assert.Equal(t, Version2c, trap.Version)
	assert.Equal(t, "public", trap.Community)
	assert.Equal(t, "1.3.6.1.6.3.1.1.5.1", trap.TrapOID.String())
	assert.Equal(t, varbinds, trap.Varbinds)
	require.NotNil(t, trap.Source)
	assert.True(t, trap.Source.IP.IsLoopback())
	assert.False(t, trap.ReceivedAt.IsZero())

	assertNoTrapReceived(t, traps)
	assert.Equal(t, int64(1), l.Metrics().TrapsReceived.Value())
	assert.Equal(t, int64(1), l.Metrics().VarbindsReceived.Value())
}

func TestSendTrapV1ReachesListener(t *testing.T) {
	l, traps := startListener(t)

	varbinds := VarbindList{
		OctetString(OIDSysDescr, "Device is up"),
		OctetString(OIDSysDescr, "Device is still up"),
	}
	trapOID := MustParseOID("1.3.6.1.4.1.9.9.599.0.2")
	require.NoError(t, SendTrap(context.Background(), listenerTarget(l), "public", Version1, trapOID, varbinds))

	trap := receiveTrap(t, traps)
	assert.Equal(t, Version1, trap.Version)
	assert.Equal(t, TypeTrapV1, trap.PDUType)
	assert.Equal(t, trapOID, trap.TrapOID)
	assert.Equal(t, GenericEnterpriseSpecific, trap.GenericTrap)
	assert.Equal(t, 2, trap.SpecificTrap)
	assert.Equal(t, varbinds, trap.Varbinds)
}

func TestListenerSurvivesGarbage(t *testing.T) {
	l, traps := startListener(t)

	valid, err := NewTrapBuilder(Version2c, OIDColdStart).Build()
	require.NoError(t, err)
	data, err := valid.Encode()
	require.NoError(t, err)

	sendRaw(t, l.Addr(), []byte("not an snmp message"))
	sendRaw(t, l.Addr(), data[:len(data)/2])
	sendRaw(t, l.Addr(), []byte{0x30})
	sendRaw(t, l.Addr(), data)

	trap := receiveTrap(t, traps)
	assert.Equal(t, OIDColdStart, trap.TrapOID)
	assert.Equal(t, StateRunning, l.State())
	assert.Equal(t, int64(3), l.Metrics().DecodeErrors.Value())
	assert.Equal(t, int64(1), l.Metrics().TrapsReceived.Value())
}

func TestListenerUnsupportedVersion(t *testing.T) {
	l, traps := startListener(t)

	pdu, err := (&Trap{Version: Version2c, TrapOID: OIDColdStart}).EncodePDU()
	require.NoError(t, err)
	v3 := EncodeSequence(EncodeInteger(3), EncodeOctetString([]byte("public")), pdu)
	sendRaw(t, l.Addr(), v3)

	v2 := EncodeSequence(EncodeInteger(1), EncodeOctetString([]byte("public")), pdu)
	sendRaw(t, l.Addr(), v2)

	receiveTrap(t, traps)
	assert.Equal(t, int64(1), l.Metrics().UnsupportedVersion.Value())
	assert.Zero(t, l.Metrics().DecodeErrors.Value())
}

func TestListenerCommunityFilter(t *testing.T) {
	l, traps := startListener(t, WithListenerCommunities("secret"))
	target := listenerTarget(l)

	require.NoError(t, SendTrap(context.Background(), target, "public", Version2c, OIDWarmStart, nil))
	assertNoTrapReceived(t, traps)

	require.NoError(t, SendTrap(context.Background(), target, "secret", Version2c, OIDWarmStart, nil))
	trap := receiveTrap(t, traps)
	assert.Equal(t, "secret", trap.Community)
	assert.Equal(t, int64(1), l.Metrics().CommunityMismatch.Value())
}

func TestListenerDropsInforms(t *testing.T) {
	l, traps := startListener(t)

	vbs, err := EncodeVarbindList(VarbindList{
		TimeTicks(OIDSysUpTime, 1),
		ObjectIdentifier(OIDSnmpTrapOID, OIDLinkUp),
	})
	require.NoError(t, err)
	inform := EncodeTLV(TypeInformRequest, concat(EncodeInteger(5), EncodeInteger(0), EncodeInteger(0), vbs))
	msg, err := EncodeMessage(Version2c, "public", inform)
	require.NoError(t, err)
	sendRaw(t, l.Addr(), msg)

	require.NoError(t, SendTrap(context.Background(), listenerTarget(l), "public", Version2c, OIDLinkDown, nil))
	trap := receiveTrap(t, traps)
	assert.Equal(t, OIDLinkDown, trap.TrapOID)
	assert.Equal(t, int64(1), l.Metrics().InformsReceived.Value())
	assert.Equal(t, int64(1), l.Metrics().Dropped.Value())
}

func TestListenerStopIsIdempotent(t *testing.T) {
	l, _ := startListener(t)
	assert.Equal(t, StateRunning, l.State())

	require.NoError(t, l.Stop())
	assert.Equal(t, StateStopped, l.State())
	require.NoError(t, l.Stop())
	assert.Equal(t, StateStopped, l.State())
	assert.Nil(t, l.Addr())

	never := NewTrapListener()
	assert.NoError(t, never.Stop())
	assert.Equal(t, StateStopped, never.State())
}

func TestListenerStopIsPrompt(t *testing.T) {
	l := NewTrapListener()
	require.NoError(t, l.Bind("127.0.0.1", freePort(t)))
	require.NoError(t, l.Start(context.Background(), nil))

	start := time.Now()
	stopped := make(chan error, 1)
	go func() { stopped <- l.Stop() }()

	select {
	case err := <-stopped:
		require.NoError(t, err)
		assert.Less(t, time.Since(start), DefaultPollInterval+100*time.Millisecond)
	case <-time.After(defaultTimeout):
		t.Fatal("Stop did not return")
	}
}

func TestListenerStopFromHandler(t *testing.T) {
	l := NewTrapListener(WithPollInterval(50 * time.Millisecond))
	port := freePort(t)
	require.NoError(t, l.Bind("127.0.0.1", port))

	stopped := make(chan error, 1)
	require.NoError(t, l.Start(context.Background(), func(_ *net.UDPAddr, _ *ReceivedTrap) {
		stopped <- l.Stop()
	}))
	t.Cleanup(func() { l.Stop() })

	require.NoError(t, SendTrap(context.Background(), listenerTarget(l), "public", Version2c, OIDColdStart, nil))

	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(defaultTimeout):
		t.Fatal("Stop called from the handler did not return")
	}
	assert.Equal(t, StateStopped, l.State())

	// The listener is reusable once the handler has returned.
	traps := make(chan *ReceivedTrap, 1)
	require.NoError(t, l.Bind("127.0.0.1", port))
	require.NoError(t, l.Start(context.Background(), func(_ *net.UDPAddr, trap *ReceivedTrap) {
		traps <- trap
	}))
	require.NoError(t, SendTrap(context.Background(), listenerTarget(l), "public", Version2c, OIDColdStart, nil))
	receiveTrap(t, traps)
	require.NoError(t, l.Stop())
}

func TestListenerStopsOnContextCancel(t *testing.T) {
	l := NewTrapListener(WithPollInterval(20 * time.Millisecond))
	require.NoError(t, l.Bind("127.0.0.1", freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.Start(ctx, nil))
	cancel()

	assert.Eventually(t, func() bool { return l.State() == StateStopped }, defaultTimeout, 10*time.Millisecond)
}

func TestListenerStateTransitions(t *testing.T) {
	l := NewTrapListener()
	assert.Equal(t, StateStopped, l.State())

	err := l.Start(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, l.Bind("127.0.0.1", freePort(t)))
	assert.Equal(t, StateBound, l.State())
	assert.ErrorIs(t, l.Bind("127.0.0.1", freePort(t)), ErrInvalidState)

	require.NoError(t, l.Start(context.Background(), nil))
	assert.Equal(t, StateRunning, l.State())
	assert.ErrorIs(t, l.Start(context.Background(), nil), ErrInvalidState)

	require.NoError(t, l.Stop())

	// A stopped listener can be bound again.
	require.NoError(t, l.Bind("127.0.0.1", freePort(t)))
	assert.Equal(t, StateBound, l.State())
	require.NoError(t, l.Stop())
	assert.Equal(t, StateStopped, l.State())
}

func TestListenerBindErrors(t *testing.T) {
	first, _ := startListener(t)

	l := NewTrapListener()
	err := l.Bind("127.0.0.1", first.Addr().Port)
	assert.ErrorIs(t, err, ErrAddressInUse)
	assert.Equal(t, StateStopped, l.State())

	assert.ErrorIs(t, l.Bind("1.1.1", 1162), ErrInvalidAddress)
	assert.ErrorIs(t, l.Bind("127.0.0.1", 0), ErrInvalidPort)
	assert.ErrorIs(t, l.Bind("127.0.0.1", 70000), ErrInvalidPort)
}

func TestListenerIPv6(t *testing.T) {
	probe, err := net.ListenPacket("udp6", "[::1]:0")
	if err != nil {
		t.Skip("IPv6 loopback not available")
	}
	port := probe.LocalAddr().(*net.UDPAddr).Port
	probe.Close()

	var received atomic.Int32
	l := NewTrapListener(WithPollInterval(50 * time.Millisecond))
	require.NoError(t, l.Bind("::1", port))
	require.NoError(t, l.Start(context.Background(), func(_ *net.UDPAddr, _ *ReceivedTrap) {
		received.Add(1)
	}))
	defer l.Stop()

	require.NoError(t, SendTrap(context.Background(), Target{Host: "::1", Port: port}, "public", Version2c, OIDColdStart, nil))
	assert.Eventually(t, func() bool { return received.Load() == 1 }, defaultTimeout, 10*time.Millisecond)
}

func TestPacketListenerPollTimeout(t *testing.T) {
	pl, err := ListenUDP("127.0.0.1", freePort(t))
	require.NoError(t, err)
	pl.SetPollInterval(10 * time.Millisecond)

	buf := make([]byte, 64)
	_, _, err = pl.Receive(buf)
	assert.ErrorIs(t, err, ErrPollTimeout)

	require.NoError(t, pl.Close())
	require.NoError(t, pl.Close())
	_, _, err = pl.Receive(buf)
	assert.True(t, errors.Is(err, ErrListenerClosed))
}

func TestListenerStateString(t *testing.T) {
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "bound", StateBound.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "unknown", ListenerState(9).String())
}
