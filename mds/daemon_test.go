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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/mds/dataplane"
	"github.com/cubefs/mds/proto"
	"github.com/cubefs/mds/transport"
)

// testFixture bundles a Daemon with its concrete fakes so tests can both
// exercise the controller and assert on what it did to its peers.
type testFixture struct {
	d *Daemon

	cache      *dataplane.FakeCache
	journal    *dataplane.FakeJournal
	balancer   *dataplane.FakeBalancer
	sessions   *dataplane.FakeSessionTable
	snapClient *dataplane.FakeSnapClient

	monitor *transport.FakeMonitorClient
	osd     *transport.FakeObjectStoreClient
	auth    *transport.AuthRegistry
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()

	cache := &dataplane.FakeCache{}
	journal := &dataplane.FakeJournal{}
	balancer := &dataplane.FakeBalancer{}
	sessions := dataplane.NewFakeSessionTable()
	snapClient := &dataplane.FakeSnapClient{}

	peers := Peers{
		Cache:      cache,
		Journal:    journal,
		Balancer:   balancer,
		Migrator:   &dataplane.FakeMigrator{},
		Locker:     &dataplane.FakeLocker{},
		Sessions:   sessions,
		SnapServer: &dataplane.FakeSnapServer{},
		SnapClient: snapClient,
		Allocator:  &dataplane.FakeAllocator{},
		MemMonitor: &dataplane.FakeMemoryMonitor{},
		OpTracker:  &dataplane.FakeOpTracker{},
	}

	monitor := transport.NewFakeMonitorClient()
	osd := transport.NewFakeObjectStoreClient()
	auth := transport.NewAuthRegistry()
	auth.Register(proto.SenderClient, &transport.SharedSecretAuthorizer{Mon: monitor, Typ: proto.SenderClient})
	auth.Register(proto.SenderMDS, &transport.SharedSecretAuthorizer{Mon: monitor, Typ: proto.SenderMDS})

	tr := Transport{
		Messenger:   transport.NewGRPCMessenger(),
		Monitor:     monitor,
		ObjectStore: osd,
		Auth:        auth,
	}

	cfg := &Config{Name: "a", WantedState: "standby"}
	d := NewDaemon(cfg, proto.GlobalID(1), peers, tr)

	return &testFixture{
		d:          d,
		cache:      cache,
		journal:    journal,
		balancer:   balancer,
		sessions:   sessions,
		snapClient: snapClient,
		monitor:    monitor,
		osd:        osd,
		auth:       auth,
	}
}

func TestNewDaemon_DefaultsAndAccessors(t *testing.T) {
	f := newTestFixture(t)

	require.Equal(t, proto.RankNone, f.d.Rank())
	require.Equal(t, proto.StateBoot, f.d.State())
	require.Equal(t, proto.StateStandby, f.d.Wanted())
	require.False(t, f.d.IsStopping())
	require.Zero(t, f.d.InstalledEpoch())
	require.Zero(t, f.d.OSDBarrier())
}
