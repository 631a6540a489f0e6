// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package proto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCapabilities_EmptyStringFallsBackToPermissiveFS(t *testing.T) {
	caps := ParseCapabilities("")
	require.True(t, caps.AllowFS)
	require.False(t, caps.AllowTell)
}

func TestParseCapabilities_MalformedStringFallsBackToDefaults(t *testing.T) {
	caps := ParseCapabilities("garbage tokens here")
	require.True(t, caps.AllowFS)
	require.False(t, caps.AllowTell)
}

func TestParseCapabilities_RecognizedFieldsOverrideDefaults(t *testing.T) {
	caps := ParseCapabilities("deny-fs allow-tell")
	require.False(t, caps.AllowFS)
	require.True(t, caps.AllowTell)
}

type stubConn struct{ id string }

func (c *stubConn) ID() string                 { return c.id }
func (c *stubConn) Send(msg interface{}) error { return nil }

func TestSession_AttachDrainsPreOpenQueue(t *testing.T) {
	s := NewSession("client-1", nil, Capabilities{})
	var sent []interface{}
	s.Enqueue("m1")
	s.Enqueue("m2")

	conn := &recordingConn{onSend: func(m interface{}) { sent = append(sent, m) }}
	s.Attach(conn)

	require.Equal(t, []interface{}{"m1", "m2"}, sent)
	require.Empty(t, s.PreOpenQueue)
	require.Equal(t, conn.ID(), s.ConnID())
}

func TestSession_AttachSameConnIsNoop(t *testing.T) {
	conn := &stubConn{id: "c1"}
	s := NewSession("client-1", conn, Capabilities{})
	s.Enqueue("m1")

	s.Attach(&stubConn{id: "c1"})
	require.Equal(t, []interface{}{"m1"}, s.PreOpenQueue, "attaching an equal-id connection must not drain the queue")
}

func TestSession_DetachClearsConnID(t *testing.T) {
	s := NewSession("client-1", &stubConn{id: "c1"}, Capabilities{})
	require.Equal(t, "c1", s.ConnID())
	s.Detach()
	require.Empty(t, s.ConnID())
}

type recordingConn struct {
	id     string
	onSend func(interface{})
}

func (c *recordingConn) ID() string { return c.id }
func (c *recordingConn) Send(msg interface{}) error {
	c.onSend(msg)
	return nil
}
