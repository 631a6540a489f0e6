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
	"time"

	"github.com/cubefs/mds/proto"
)

// scheduleTick arms the first tick timer, called once from Init.
func (d *Daemon) scheduleTick() {
	d.mu.Lock()
	interval := d.cfg.tickInterval()
	d.tickTimer = time.AfterFunc(interval, func() { d.tick(context.Background()) })
	d.mu.Unlock()
}

// resetTick cancels and rearms the tick timer, mirroring MDS::reset_tick.
func (d *Daemon) resetTick() {
	d.mu.Lock()
	if d.tickTimer != nil {
		d.tickTimer.Stop()
	}
	interval := d.cfg.tickInterval()
	d.tickTimer = time.AfterFunc(interval, func() { d.tick(context.Background()) })
	d.mu.Unlock()
}

// tick implements the periodic drive of spec.md §4.E: reset heartbeat,
// reschedule, bail out early if laggy, otherwise wake the progress worker,
// flush the journal, and run the state-gated maintenance steps.
func (d *Daemon) tick(ctx context.Context) {
	if d.IsStopping() {
		return
	}

	d.resetHeartbeat()
	d.resetTick()

	if d.isLaggy() {
		return
	}

	d.pool.TryRun(func() { d.progressOnce(ctx) })

	if _, err := d.peers.Journal.Flush(ctx); err != nil {
		// a periodic tick flush failing is not fatal; the next flush
		// journal admin call or tick will retry.
		_ = err
	}

	state := d.State()

	if state == proto.StateActive || state == proto.StateStopping {
		d.peers.Cache.TrimCache(ctx)
		d.peers.Sessions.TrimLeases(ctx)
		if d.peers.MemMonitor != nil {
			d.peers.MemMonitor.CheckUsage(ctx)
		}
		d.peers.Journal.TrimJournal(ctx)
	}

	load := d.peers.Balancer.Load()
	if d.metrics != nil {
		d.metrics.BalancerLoad.Set(load)
	}

	if state == proto.StateClientReplay || state == proto.StateActive || state == proto.StateStopping {
		d.peers.Locker.Step(ctx)
		d.peers.Sessions.SweepIdle(ctx)
	}

	if state == proto.StateReconnect {
		d.reconnectTick(ctx)
	}

	if state == proto.StateActive {
		d.peers.Balancer.Tick(ctx)
		d.peers.Balancer.CheckStaleFragmentFreezes(ctx)
		d.peers.Balancer.CheckStaleExportFreezes(ctx)
		if d.peers.SnapServer != nil {
			d.peers.SnapServer.RefreshOSDMapView(ctx, d.transport.ObjectStore.CurrentEpoch())
		}
	}

	d.sendBeacon(ctx)
	d.checkOpsInFlight(ctx)
}

// progressOnce is the background progress worker's unit of work, run on
// the task pool started by Init (spec.md §4.A). The original's
// progress_thread re-drains messages that were held back while the
// beacon looked laggy; the messenger's own inbound queue is out of scope
// here (spec.md §6), so this is the hook a real messenger integration
// would call into.
func (d *Daemon) progressOnce(ctx context.Context) {
	if d.isLaggy() {
		return
	}
}

// reconnectTick is the reconnect-state maintenance step; the session
// table's own reconnect bookkeeping is out of scope beyond this hook.
func (d *Daemon) reconnectTick(ctx context.Context) {
	d.peers.Sessions.SweepIdle(ctx)
}

// checkOpsInFlight scans for slow in-flight ops and emits a warning via
// the cluster log for each, matching MDS::check_ops_in_flight.
func (d *Daemon) checkOpsInFlight(ctx context.Context) {
	if d.peers.OpTracker == nil {
		return
	}
	slow := d.peers.OpTracker.SlowOps(d.cfg.OpComplaintTimeS)
	for _, op := range slow {
		d.clog.Warn(ctx, fmt.Sprintf("slow request: %s", op))
	}
	if d.metrics != nil && len(slow) > 0 {
		d.metrics.SlowOps.Add(float64(len(slow)))
	}
}
