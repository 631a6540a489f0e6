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
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/mds/proto"
)

// RankDispatcher is the out-of-scope rank-level message dispatcher
// (spec.md §4.C "Rank messages"). Dispatch delegates to it for any
// non-core Kind.
type RankDispatcher interface {
	Dispatch(ctx context.Context, msg *proto.Message) (accepted bool)
}

// Dispatch is the single entry point for inbound messages (spec.md §4.C).
// It does not hold the controller lock across the call; each accessor and
// handler it reaches takes the lock for its own steps. It returns whether
// the message was accepted for processing (as opposed to silently dropped).
func (d *Daemon) Dispatch(ctx context.Context, msg *proto.Message, rank RankDispatcher) bool {
	span := trace.SpanFromContextSafe(ctx)

	d.resetHeartbeat()

	if d.IsStopping() {
		return false
	}
	if d.Wanted() == proto.StateDNE {
		return false
	}

	if !msg.Kind.IsCore() {
		if rank == nil {
			return false
		}
		return rank.Dispatch(ctx, msg)
	}

	allow := proto.AllowedSenders[msg.Kind]
	if !allow[msg.Sender] {
		span.Warnf("dropping message kind %d from disallowed sender type %d", msg.Kind, msg.Sender)
		return false
	}

	switch msg.Kind {
	case proto.KindMonitorMap:
		// acknowledged only; no further interpretation in scope here.
		return true
	case proto.KindClusterMap:
		d.HandleClusterMap(ctx, msg.From, msg.Map)
		return true
	case proto.KindMonitorCommand, proto.KindCommand:
		_ = d.HandleCommand(ctx, msg.Command)
		return true
	case proto.KindOSDMap:
		d.handleOSDMap(ctx, msg.OSDMap)
		return true
	default:
		return false
	}
}

// resetHeartbeat pets the liveness watchdog, matching MDS::heartbeat_reset:
// called on every dispatched message and on every tick so an external
// heartbeat monitor never mistakes healthy-but-busy for hung.
func (d *Daemon) resetHeartbeat() {
	d.mu.Lock()
	d.lastHeartbeat = time.Now()
	d.mu.Unlock()
}

// LastHeartbeat returns the time resetHeartbeat was last called, exposed
// for tests and for a future external watchdog integration.
func (d *Daemon) LastHeartbeat() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastHeartbeat
}

// handleOSDMap implements the KindOSDMap core handler: notify the snapshot
// server when active, notify the snapshot client, request the next map
// (spec.md §4.C). The session table is not notified.
func (d *Daemon) handleOSDMap(ctx context.Context, notice *proto.OSDMapNotice) {
	if notice == nil {
		return
	}
	if d.State() == proto.StateActive {
		d.peers.SnapServer.RefreshOSDMapView(ctx, notice.Epoch)
	}
	d.peers.SnapClient.NotifyMapChanged(ctx)
	_ = d.transport.ObjectStore.RequestNextMap(ctx)
}
