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

// HandleClusterMap processes one cluster-map delivery per spec.md §4.B.
// The caller (the dispatcher, or Init's map-subscription goroutine) holds
// no lock; HandleClusterMap acquires the controller lock itself. from is
// the sending peer's global id, or the zero value when the delivery has no
// peer identity to attach (e.g. the monitor subscription channel).
func (d *Daemon) HandleClusterMap(ctx context.Context, from proto.GlobalID, m *proto.ClusterMap) {
	span := trace.SpanFromContextSafe(ctx)

	d.lock()

	// Step 1: record the sender's advertised epoch for peer-freshness
	// tracking, regardless of whether it ends up admitted. Mirrors
	// MDS.cc::handle_mds_map's peer_mdsmap_epoch[source] update, which
	// keys by the message's source rather than self and only fires when
	// the source is an MDS peer; from is left zero for deliveries with no
	// peer identity (the monitor subscription channel), so those never
	// pollute the map.
	if m != nil && from != 0 {
		d.peerEpochs[from] = m.Epoch
	}

	// Step 2: discard if epoch <= installed epoch (invariant 4).
	if d.installedMap != nil && m.Epoch <= d.installedMap.Epoch {
		d.unlock()
		span.Infof("discarding stale cluster map epoch %d (installed %d)", m.Epoch, d.installedMap.Epoch)
		return
	}

	// A live, non-stale map is direct evidence the monitor channel is up,
	// so it counts as a beacon ack (MDS.cc::handle_mds_map's early
	// beacon.notify_mdsmap(mdsmap) call) even though the monitor never
	// acks a beacon by number: this is what keeps isLaggy's window
	// meaningful once sendBeacon stops self-acking on every send.
	d.lastBeaconAck = time.Now()

	// Step 3: decode/swap, remembering old state for the fan-out.
	oldMap := d.installedMap
	oldState := d.state
	oldRank := d.rank
	d.installedMap = m

	// Step 5: compatibility check.
	if !m.Writable(proto.FeatureTmap2Omap) {
		d.unlock()
		span.Errorf("cluster map epoch %d requires incompatible features, suiciding", m.Epoch)
		_ = d.Suicide(ctx, false)
		return
	}

	// Step 6: recompute identity from the new map.
	info, present := m.Daemons[d.globalID]
	newRank := proto.RankNone
	newState := d.state
	newIncarnation := d.incarnation
	if present {
		newState = info.State
		newIncarnation = info.Incarnation
		switch info.State {
		case proto.StateStandbyReplay, proto.StateOneshotReplay:
			newRank = info.StandbyForRank
		default:
			newRank = info.Rank
		}
	}

	// Step 7: rank transition check.
	if oldRank != proto.RankNone && newRank != proto.RankNone && newRank != oldRank {
		d.unlock()
		span.Errorf("rank changed from %d to %d, respawning", oldRank, newRank)
		_ = d.Respawn(ctx)
		return
	}

	// Step 8: state transition validity check (only when holding a rank).
	if oldRank != proto.RankNone && newState != oldState {
		if !proto.ValidTransition(oldState, newState) {
			d.unlock()
			span.Errorf("invalid state transition %s -> %s, respawning", oldState, newState)
			_ = d.Respawn(ctx)
			return
		}
	}

	d.rank = newRank
	d.state = newState
	d.incarnation = newIncarnation

	// Step 9: peers present in the old map but absent from the new: mark
	// their address down on the messenger.
	if oldMap != nil {
		for id, od := range oldMap.Daemons {
			if _, ok := m.Daemons[id]; !ok {
				d.transport.Messenger.MarkDown(od.Addr)
			}
		}
	}

	diff := proto.DiffMaps(oldMap, m)

	d.unlock()

	if newRank == proto.RankNone {
		d.handleRankNone(ctx)
		return
	}

	if newState != oldState {
		d.fanOutStateChange(ctx, oldState, newState)
	}

	d.handlePeerEvents(ctx, diff, newState, oldMap)

	if !proto.IsReplay(newState) {
		d.peers.Balancer.Rebalance(ctx)
	}
	d.drainEpochWaiters(m.Epoch)
	d.peers.Cache.NotifyMapChanged(ctx, m)

	if d.metrics != nil {
		d.metrics.InstalledEpoch.Set(float64(m.Epoch))
	}

	d.sendBeacon(ctx)
}

// fanOutStateChange dispatches the data-plane entry point for newState
// (spec.md §4.B "Fan-out on state change").
func (d *Daemon) fanOutStateChange(ctx context.Context, oldState, newState proto.DaemonState) {
	cache := d.peers.Cache

	switch newState {
	case proto.StateActive, proto.StateClientReplay:
		if newState == proto.StateActive {
			_ = cache.ActiveStart(ctx)
		} else {
			_ = cache.ClientReplayStart(ctx)
		}
		if proto.IsRecovery(oldState) || oldState == proto.StateReplay {
			_ = cache.RecoveryDone(ctx, oldState)
		}
		if newState == proto.StateActive {
			d.setOSDBarrierFromCurrentEpoch()
		}
	case proto.StateReplay, proto.StateStandbyReplay, proto.StateOneshotReplay:
		_ = cache.ReplayStart(ctx)
	case proto.StateResolve:
		_ = cache.ResolveStart(ctx)
	case proto.StateReconnect:
		_ = cache.ReconnectStart(ctx)
	case proto.StateRejoin:
		_ = cache.RejoinStart(ctx)
	case proto.StateCreating:
		_ = cache.BootCreate(ctx)
	case proto.StateStarting, proto.StateBoot:
		_ = cache.BootStart(ctx)
	case proto.StateStopping:
		_ = cache.StoppingStart(ctx)
	}
}

// setOSDBarrierFromCurrentEpoch implements "On the first transition into
// active, set the OSD epoch barrier to the current object-store map
// epoch" (spec.md §4.B), preserving invariant 5 (non-decreasing).
func (d *Daemon) setOSDBarrierFromCurrentEpoch() {
	epoch := d.transport.ObjectStore.CurrentEpoch()
	d.lock()
	if epoch > d.osdBarrier {
		d.osdBarrier = epoch
	}
	d.unlock()
}

// markOldAddrDown marks id's address down on the messenger as it was
// advertised in oldMap; a nil oldMap or an id absent from it means there
// is no known address to tear down.
func (d *Daemon) markOldAddrDown(oldMap *proto.ClusterMap, id proto.GlobalID) {
	if oldMap == nil {
		return
	}
	if od, ok := oldMap.Daemons[id]; ok {
		d.transport.Messenger.MarkDown(od.Addr)
	}
}

// handlePeerEvents implements the peer-event derivation from map diffs
// (spec.md §4.B). oldMap is the previously installed map (may be nil),
// used to find the stale address to mark down for newly-down and
// address-changed peers, mirroring MDS.cc::handle_mds_map's
// oldmap->get_inst(*p).addr lookups.
func (d *Daemon) handlePeerEvents(ctx context.Context, diff proto.Diff, newState proto.DaemonState, oldMap *proto.ClusterMap) {
	cache := d.peers.Cache

	if diff.StartedResolving {
		recoverySet := append([]proto.GlobalID{}, diff.NewlyVisible...)
		_ = cache.SendResolve(ctx, recoverySet)
	}
	if diff.StartedRejoining {
		_ = cache.RejoinJointStart(ctx)
	}
	if diff.FinishedRejoining {
		cache.DumpForDebug(ctx)
	}

	pastRejoin := newState > proto.StateRejoin
	pastClientReplay := newState > proto.StateClientReplay

	if pastRejoin {
		for _, id := range diff.NewlyVisible {
			cache.KickDiscover(ctx, id)
			cache.KickInodeOpen(ctx, id)
		}
	}
	if pastClientReplay {
		for _, id := range diff.NewlyActive {
			cache.HandleMDSRecovery(ctx, id)
		}
	}

	// Newly-down and address-changed peers get the same treatment: mark
	// their old address down on the messenger before failing them over,
	// so no further traffic reaches the now-stale connection.
	for _, id := range diff.NewlyDown {
		d.markOldAddrDown(oldMap, id)
		cache.HandleMDSFailure(ctx, id)
	}
	for _, id := range diff.AddrChanged {
		d.markOldAddrDown(oldMap, id)
		cache.HandleMDSFailure(ctx, id)
	}

	if proto.Serving(newState) {
		for _, id := range diff.NewlyStopped {
			d.peers.Migrator.HandleStopped(ctx, id)
		}
	}
}

// handleRankNone implements the special rank-none cases closing spec.md
// §4.B, including the name-race/boot-standby demotion (supplemented
// feature #4).
func (d *Daemon) handleRankNone(ctx context.Context) {
	d.lock()
	wanted := d.wanted
	if wanted == proto.StateStandby {
		d.state = proto.StateBoot
		d.wanted = proto.StateBoot
		d.unlock()
		return
	}
	if wanted == proto.StateBoot {
		d.unlock()
		return
	}
	m := d.installedMap
	name := d.name
	self := d.globalID
	d.unlock()

	if d.cfg.UniqueNameEnforce && m != nil {
		for id, info := range m.Daemons {
			if id == self || info.Name != name {
				continue
			}
			if id > self {
				// another daemon with the same name and a larger global id
				// wins the race; we lose.
				_ = d.Suicide(ctx, false)
				return
			}
		}
	}
	_ = d.Respawn(ctx)
}

func (d *Daemon) drainEpochWaiters(installed uint64) {
	d.waitersMu.Lock()
	var ready []func()
	for epoch, fns := range d.waiters {
		if epoch <= installed {
			ready = append(ready, fns...)
			delete(d.waiters, epoch)
		}
	}
	d.waitersMu.Unlock()
	for _, fn := range ready {
		fn()
	}
}
