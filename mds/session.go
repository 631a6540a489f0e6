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
	"fmt"

	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/cubefs/mds/proto"
)

// VerifyAuthorizer implements the connection & session glue of spec.md
// §4.F: dispatch to the cluster or service authorizer registry by peer
// type, verify against the monitor's rotating secrets, then find-or-create
// the session and parse its capability string. It returns whether a
// decision was made (mirroring ms_verify_authorizer's bool return) and,
// when a decision was made, whether the authorizer was valid.
func (d *Daemon) VerifyAuthorizer(ctx context.Context, peer proto.SenderType, globalID proto.GlobalID, peerAddr string, token []byte) (decided, valid bool) {
	if d.IsStopping() {
		return false, false
	}
	if d.Wanted() == proto.StateDNE {
		return false, false
	}

	auth, ok := d.transport.Auth.For(peer)
	if !ok {
		log.Warnf("no authorizer registered for peer type %d", peer)
		return true, false
	}

	secret := d.transport.Monitor.RotatingSecret(peer)
	if err := auth.Verify(ctx, globalID, token, secret); err != nil {
		return true, false
	}

	name := sessionKey(peer, globalID)
	sess, ok := d.peers.Sessions.Get(name)
	if !ok {
		sess = proto.NewSession(name, nil, proto.Capabilities{AllowFS: true})
		sess.ClientMeta = map[string]string{"addr": peerAddr}
		d.peers.Sessions.Put(sess)
	}

	ParseCapabilitiesForConnection(sess)
	return true, true
}

// ParseCapabilitiesForConnection re-parses a session's raw auth caps
// string, applying the legacy permissive-fs/deny-tell fallback of
// spec.md §4.F when the string is missing or malformed.
func ParseCapabilitiesForConnection(sess *proto.Session) proto.Capabilities {
	sess.Lock()
	defer sess.Unlock()
	sess.Caps = proto.ParseCapabilities(sess.AuthCaps)
	return sess.Caps
}

func sessionKey(peer proto.SenderType, id proto.GlobalID) string {
	return fmt.Sprintf("%d:%d", peer, id)
}

// HandleAccept implements ms_handle_accept (spec.md §4.F): if the winning
// session's stored connection differs from the newly-accepted one, replace
// it and drain the pre-open outbound queue onto it. This resolves races
// where multiple simultaneous connects pass authorization.
func (d *Daemon) HandleAccept(ctx context.Context, peer proto.SenderType, globalID proto.GlobalID, conn proto.Connection) {
	if d.IsStopping() {
		return
	}
	name := sessionKey(peer, globalID)
	sess, ok := d.peers.Sessions.Get(name)
	if !ok {
		return
	}
	sess.Attach(conn)
}

// HandleReset implements ms_handle_reset/ms_handle_remote_reset (spec.md
// §4.F): for client sessions in the closed state, tear the connection
// down and clear the priv pointer.
func (d *Daemon) HandleReset(ctx context.Context, connID string) {
	if d.IsStopping() {
		return
	}
	if d.Wanted() == proto.StateDNE {
		return
	}
	sess, ok := d.peers.Sessions.GetByConnID(connID)
	if !ok {
		return
	}
	sess.Lock()
	closed := sess.State == proto.SessionClosed
	sess.Unlock()
	if closed {
		sess.Detach()
	}
}
