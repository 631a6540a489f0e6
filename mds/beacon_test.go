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
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsLaggy_FalseBeforeFirstBeacon(t *testing.T) {
	f := newTestFixture(t)
	require.False(t, f.d.isLaggy())
}

func TestIsLaggy_TrueAfterThresholdUnacknowledged(t *testing.T) {
	f := newTestFixture(t)

	stale := time.Now().Add(-2 * laggyThreshold)
	f.d.mu.Lock()
	f.d.lastBeaconSent = stale
	f.d.lastBeaconAck = stale
	f.d.mu.Unlock()

	require.True(t, f.d.isLaggy())
}

func TestBuildBeacon_ReflectsCurrentWantedAndState(t *testing.T) {
	f := newTestFixture(t)

	b := f.d.buildBeacon()
	require.Equal(t, f.d.globalID, b.GlobalID)
	require.Equal(t, f.d.Wanted(), b.Wanted)
	require.Equal(t, f.d.State(), b.Current)
	require.False(t, b.SentAt.IsZero())
}

func TestHealth_ReportsSlowOpsFromTracker(t *testing.T) {
	f := newTestFixture(t)
	f.d.peers.OpTracker = &slowOpsTracker{slow: []string{"op-1", "op-2", "op-3"}}

	f.d.mu.Lock()
	h := f.d.health()
	f.d.mu.Unlock()

	require.Equal(t, 3, h.SlowOps)
	require.True(t, h.Degraded)
}

func TestSendBeacon_RecordsOnMonitorAndUpdatesSentTime(t *testing.T) {
	f := newTestFixture(t)

	before := time.Now()
	f.d.sendBeacon(context.Background())

	require.Len(t, f.monitor.Beacons, 1)
	require.False(t, f.d.lastBeaconSentUnsafe().Before(before))
}

// sendBeacon no longer self-acks: the ack time only advances when a live
// cluster map is installed (see HandleClusterMap), so a beacon send alone
// must not clear a laggy state.
func TestSendBeacon_DoesNotAdvanceAckTime(t *testing.T) {
	f := newTestFixture(t)

	stale := time.Now().Add(-2 * laggyThreshold)
	f.d.mu.Lock()
	f.d.lastBeaconAck = stale
	f.d.mu.Unlock()

	f.d.sendBeacon(context.Background())

	require.True(t, f.d.lastBeaconAckUnsafe().Equal(stale))
	require.True(t, f.d.isLaggy())
}

func (d *Daemon) lastBeaconSentUnsafe() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastBeaconSent
}

func (d *Daemon) lastBeaconAckUnsafe() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastBeaconAck
}
