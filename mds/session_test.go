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

package mds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/mds/proto"
)

type fakeConn struct{ id string }

func (c *fakeConn) ID() string            { return c.id }
func (c *fakeConn) Send(msg interface{}) error { return nil }

func TestVerifyAuthorizer_UnknownPeerTypeDecidesInvalid(t *testing.T) {
	f := newTestFixture(t)

	decided, valid := f.d.VerifyAuthorizer(context.Background(), proto.SenderType(99), 5, "1.2.3.4", []byte("x"))
	require.True(t, decided)
	require.False(t, valid)
}

func TestVerifyAuthorizer_RejectsWrongSecret(t *testing.T) {
	f := newTestFixture(t)

	decided, valid := f.d.VerifyAuthorizer(context.Background(), proto.SenderClient, 5, "1.2.3.4", []byte("wrong-secret"))
	require.True(t, decided)
	require.False(t, valid)
}

func TestVerifyAuthorizer_CreatesSessionOnSuccess(t *testing.T) {
	f := newTestFixture(t)

	decided, valid := f.d.VerifyAuthorizer(context.Background(), proto.SenderClient, 5, "1.2.3.4", []byte("test-secret"))
	require.True(t, decided)
	require.True(t, valid)

	sess, ok := f.sessions.Get(sessionKey(proto.SenderClient, 5))
	require.True(t, ok)
	require.True(t, sess.Caps.AllowFS)
}

func TestVerifyAuthorizer_RefusesWhenStopping(t *testing.T) {
	f := newTestFixture(t)
	f.d.mu.Lock()
	f.d.stopping = true
	f.d.mu.Unlock()

	decided, valid := f.d.VerifyAuthorizer(context.Background(), proto.SenderClient, 5, "1.2.3.4", []byte("test-secret"))
	require.False(t, decided)
	require.False(t, valid)
}

func TestHandleAccept_AttachesConnectionToExistingSession(t *testing.T) {
	f := newTestFixture(t)
	name := sessionKey(proto.SenderClient, 5)
	sess := proto.NewSession(name, nil, proto.Capabilities{})
	f.sessions.Put(sess)

	conn := &fakeConn{id: "conn-1"}
	f.d.HandleAccept(context.Background(), proto.SenderClient, 5, conn)

	require.Equal(t, "conn-1", sess.ConnID())
}

func TestHandleAccept_NoopWhenSessionUnknown(t *testing.T) {
	f := newTestFixture(t)
	f.d.HandleAccept(context.Background(), proto.SenderClient, 5, &fakeConn{id: "conn-1"})
	_, ok := f.sessions.Get(sessionKey(proto.SenderClient, 5))
	require.False(t, ok)
}

func TestHandleReset_DetachesOnlyClosedSessions(t *testing.T) {
	f := newTestFixture(t)
	name := sessionKey(proto.SenderClient, 5)
	conn := &fakeConn{id: "conn-1"}
	sess := proto.NewSession(name, conn, proto.Capabilities{})
	sess.Lock()
	sess.State = proto.SessionOpen
	sess.Unlock()
	f.sessions.Put(sess)

	f.d.HandleReset(context.Background(), "conn-1")
	require.Equal(t, "conn-1", sess.ConnID(), "an open session must not be detached on reset")

	sess.Lock()
	sess.State = proto.SessionClosed
	sess.Unlock()

	f.d.HandleReset(context.Background(), "conn-1")
	require.Empty(t, sess.ConnID())
}
