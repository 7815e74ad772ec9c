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

package transaction

import (
	"context"
	"net"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/snmptrap/snmp"
)

func TestGenerateMID(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		mid := GenerateMID(DefaultMIDLength)
		assert.Regexp(t, re, mid)
		seen[mid] = true
	}
	assert.Greater(t, len(seen), 1)
	assert.Len(t, GenerateMID(12), 12)
	assert.Empty(t, GenerateMID(0))
}

func TestParseField(t *testing.T) {
	for _, f := range Fields {
		got, err := ParseField(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	_, err := ParseField("currency")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRecordVarbindsOrder(t *testing.T) {
	r := Record{
		SubmissionDatetime: "2024-01-02T10:00:00Z",
		Status:             "settled",
		Amount:             "12.50",
		MID:                "ABCD1234",
	}
	vbs, err := r.Varbinds(DefaultMapping())
	require.NoError(t, err)
	require.Len(t, vbs, 4)

	assert.Equal(t, "1.3.6.1.4.1.9.9.599.1.3.1", vbs[0].OID.String())
	assert.Equal(t, []byte("settled"), vbs[0].Value)
	assert.Equal(t, "1.3.6.1.4.1.9.9.599.1.3.3", vbs[1].OID.String())
	assert.Equal(t, "1.3.6.1.4.1.9.9.599.1.3.5", vbs[2].OID.String())
	assert.Equal(t, "1.3.6.1.4.1.9.9.599.1.3.9", vbs[3].OID.String())
	for _, vb := range vbs {
		assert.Equal(t, snmp.TypeOctetString, vb.Type)
	}
}

func TestRecordUnmappedField(t *testing.T) {
	m := DefaultMapping()
	delete(m, FieldEntity)

	r := Record{Entity: "acme"}
	_, err := r.Varbinds(m)
	assert.ErrorIs(t, err, ErrUnmappedField)
}

func TestParseMapping(t *testing.T) {
	m, err := ParseMapping(map[string]string{"status": "1.3.6.1.4.1.99.1"})
	require.NoError(t, err)
	assert.Equal(t, "1.3.6.1.4.1.99.1", m[FieldStatus].String())
	assert.Equal(t, "1.3.6.1.4.1.9.9.599.1.3.2", m[FieldType].String())

	_, err = ParseMapping(map[string]string{"status": "not.an.oid"})
	assert.ErrorIs(t, err, snmp.ErrInvalidOID)

	_, err = ParseMapping(map[string]string{"colour": "1.3.6.1"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestRecordSetGet(t *testing.T) {
	var r Record
	for i, f := range Fields {
		require.NoError(t, r.Set(f, f.String()))
		assert.Equal(t, Fields[i].String(), r.Get(f))
	}
	assert.ErrorIs(t, r.Set(Field(99), "x"), ErrUnknownField)
}

func TestAgentFillsMID(t *testing.T) {
	a := NewAgent(snmp.NewSender(), snmp.Target{Host: "127.0.0.1", Port: 162})
	n, err := a.Notification(Record{Status: "open"})
	require.NoError(t, err)

	idx := n.Varbinds.Index(a.Mapping[FieldMID])
	require.NotEqual(t, -1, idx)
	assert.Regexp(t, `^[A-Z0-9]{8}$`, string(n.Varbinds[idx].Value.([]byte)))
	assert.True(t, n.TrapOID.Equal(DefaultNotificationOID))
}

func TestAgentSendReachesListener(t *testing.T) {
	l := snmp.NewTrapListener(snmp.WithPollInterval(50 * time.Millisecond))
	require.NoError(t, l.Bind("127.0.0.1", freePort(t)))

	received := make(chan *snmp.ReceivedTrap, 1)
	require.NoError(t, l.Start(context.Background(), func(_ *net.UDPAddr, trap *snmp.ReceivedTrap) {
		received <- trap
	}))
	defer l.Stop()

	a := NewAgent(snmp.NewSender(), snmp.Target{Host: "127.0.0.1", Port: l.Addr().Port})
	require.NoError(t, a.Send(context.Background(), Record{Status: "settled", MID: "MID00001"}))

	select {
	case trap := <-received:
		assert.True(t, trap.TrapOID.Equal(DefaultNotificationOID))
		require.Len(t, trap.Varbinds, 2)
		assert.Equal(t, "settled", trap.Varbinds[0].ValueString())
		assert.Equal(t, "MID00001", trap.Varbinds[1].ValueString())
	case <-time.After(time.Second):
		t.Fatal("trap not received within 1s")
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}
