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

	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/cubefs/mds/proto"
)

// laggyThreshold is how long a beacon may go unacknowledged before the
// tick treats this daemon as laggy and skips its usual work (spec.md
// §4.E), matching the original's Beacon::is_laggy() window.
const laggyThreshold = 15 * time.Second

func (d *Daemon) buildBeacon() proto.Beacon {
	d.mu.Lock()
	defer d.mu.Unlock()
	return proto.Beacon{
		GlobalID:       d.globalID,
		Wanted:         d.wanted,
		Current:        d.state,
		StandbyForRank: d.standbyForRank,
		StandbyForName: d.standbyForName,
		Health:         d.health(),
		SentAt:         time.Now(),
	}
}

// health must be called with the controller lock held.
func (d *Daemon) health() proto.Health {
	h := proto.Health{}
	if d.peers.OpTracker != nil {
		h.SlowOps = len(d.peers.OpTracker.SlowOps(d.cfg.OpComplaintTimeS))
		h.Degraded = h.SlowOps > 0
	}
	return h
}

// sendBeacon pushes a beacon to the monitor, paced by beaconPacer so a
// flapping map can't storm it (spec.md §6).
func (d *Daemon) sendBeacon(ctx context.Context) {
	if !d.beaconPacer.Allow() {
		return
	}
	b := d.buildBeacon()
	if err := d.transport.Monitor.SendBeacon(ctx, b); err != nil {
		log.Warnf("send beacon failed: %s", err)
		return
	}
	d.mu.Lock()
	d.lastBeaconSent = b.SentAt
	d.mu.Unlock()
	if d.metrics != nil {
		d.metrics.Beacons.Inc()
	}
}

// isLaggy reports whether the last beacon has gone unacknowledged for
// longer than laggyThreshold. Sending a beacon does not by itself count as
// an ack: the ack time only advances when HandleClusterMap installs a live
// map, direct evidence the monitor channel is up. Supplemented feature #2:
// exposed through the status admin command.
func (d *Daemon) isLaggy() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lastBeaconSent.IsZero() {
		return false
	}
	return time.Since(d.lastBeaconAck) > laggyThreshold
}
