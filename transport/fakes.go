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

package transport

import (
	"context"
	"sync"
	"time"

	"github.com/cubefs/mds/proto"
)

// FakeMonitorClient is an in-memory MonitorClient: the test controls the
// map stream by pushing into Maps.
type FakeMonitorClient struct {
	mu      sync.Mutex
	AuthErr error
	Maps    chan *proto.ClusterMap
	Beacons []proto.Beacon
	Replies []proto.CommandResponse
}

func NewFakeMonitorClient() *FakeMonitorClient {
	return &FakeMonitorClient{Maps: make(chan *proto.ClusterMap, 16)}
}

func (f *FakeMonitorClient) Authenticate(ctx context.Context) error { return f.AuthErr }

func (f *FakeMonitorClient) WaitForKeyRotation(ctx context.Context, timeout time.Duration) error {
	return nil
}

func (f *FakeMonitorClient) SubscribeClusterMap(ctx context.Context) (<-chan *proto.ClusterMap, error) {
	return f.Maps, nil
}

func (f *FakeMonitorClient) SendBeacon(ctx context.Context, b proto.Beacon) error {
	f.mu.Lock()
	f.Beacons = append(f.Beacons, b)
	f.mu.Unlock()
	return nil
}

func (f *FakeMonitorClient) SendBeaconAndWait(ctx context.Context, b proto.Beacon, timeout time.Duration) error {
	return f.SendBeacon(ctx, b)
}

func (f *FakeMonitorClient) ReplyCommand(ctx context.Context, resp proto.CommandResponse) error {
	f.mu.Lock()
	f.Replies = append(f.Replies, resp)
	f.mu.Unlock()
	return nil
}

func (f *FakeMonitorClient) RotatingSecret(peerType proto.SenderType) []byte {
	return []byte("test-secret")
}

func (f *FakeMonitorClient) LastBeacon() (proto.Beacon, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Beacons) == 0 {
		return proto.Beacon{}, false
	}
	return f.Beacons[len(f.Beacons)-1], true
}

// FakeObjectStoreClient is an in-memory ObjectStoreClient.
type FakeObjectStoreClient struct {
	mu        sync.Mutex
	epoch     uint64
	replicaUp bool
	feature   proto.FeatureSet
}

func NewFakeObjectStoreClient() *FakeObjectStoreClient {
	return &FakeObjectStoreClient{replicaUp: true, feature: proto.FeatureTmap2Omap, epoch: 1}
}

func (f *FakeObjectStoreClient) Start(ctx context.Context) error { return nil }

func (f *FakeObjectStoreClient) ReplicaUp() (bool, proto.FeatureSet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.replicaUp, f.feature
}

func (f *FakeObjectStoreClient) CurrentEpoch() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.epoch
}

func (f *FakeObjectStoreClient) SetEpoch(e uint64) {
	f.mu.Lock()
	f.epoch = e
	f.mu.Unlock()
}

func (f *FakeObjectStoreClient) WaitForEpoch(ctx context.Context, epoch uint64) error {
	for {
		if f.CurrentEpoch() >= epoch {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (f *FakeObjectStoreClient) RequestNextMap(ctx context.Context) error { return nil }
func (f *FakeObjectStoreClient) Close() error                             { return nil }
