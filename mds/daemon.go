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
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/util/taskpool"
	"github.com/cubefs/mds/dataplane"
	"github.com/cubefs/mds/limiter"
	"github.com/cubefs/mds/metrics"
	"github.com/cubefs/mds/proto"
	"github.com/cubefs/mds/transport"
)

// Peers bundles every out-of-scope data-plane collaborator the Daemon
// exclusively constructs and owns (spec Design Notes: controller owns
// peers, peers hold a non-owning back reference). Swapped in wholesale by
// NewDaemon so tests can wire Fakes.
type Peers struct {
	Cache      dataplane.Cache
	Journal    dataplane.Journal
	Balancer   dataplane.Balancer
	Migrator   dataplane.Migrator
	Locker     dataplane.Locker
	Sessions   dataplane.SessionTable
	SnapServer dataplane.SnapServer
	SnapClient dataplane.SnapClient
	Allocator  dataplane.InodeAllocator
	MemMonitor dataplane.MemoryMonitor
	OpTracker  dataplane.OpTracker
}

// Transport bundles the messenger and the two out-of-scope clients.
type Transport struct {
	Messenger   transport.Messenger
	Monitor     transport.MonitorClient
	ObjectStore transport.ObjectStoreClient
	Auth        *transport.AuthRegistry
}

// Daemon is the controller: it owns the single serialization lock (the
// "controller lock") under which all mutation of its own fields and of its
// peers' externally-visible state occurs (spec.md §3 invariant 3, §5).
type Daemon struct {
	mu sync.Mutex // the controller lock

	cfg *Config

	globalID    proto.GlobalID
	name        string
	rank        proto.Rank
	incarnation uint64

	state          proto.DaemonState
	wanted         proto.WantedState
	standbyType    proto.StandbyType
	standbyForRank proto.Rank
	standbyForName string

	installedMap *proto.ClusterMap
	osdBarrier   uint64

	stopping bool

	peerEpochs map[proto.GlobalID]uint64

	peers     Peers
	transport Transport

	metrics *metrics.DaemonMetrics

	commandsMu sync.Mutex
	commands   map[string]*commandHook

	waitersMu sync.Mutex
	waiters   map[uint64][]func()

	configSubsMu sync.Mutex
	configSubs   []func(args []string)

	adminLimiter limiter.CountLimit
	beaconPacer  *limiter.Pacer

	pool taskpool.TaskPool

	tickTimer *time.Timer
	tickSeq   uint64

	lastBeaconSent time.Time
	lastBeaconAck  time.Time
	lastActivity   time.Time
	lastHeartbeat  time.Time

	clog *ClusterLog

	done chan struct{}

	// execFunc replaces syscall.Exec in tests so respawn can be observed
	// without actually replacing the test binary's process image.
	execFunc func(argv0 string, argv, envv []string) error
}

// NewDaemon wires a Daemon from its peers and transport, performing no
// asynchronous work (spec.md §3 Lifecycle: "construction wires peers but
// does nothing asynchronous").
func NewDaemon(cfg *Config, globalID proto.GlobalID, peers Peers, tr Transport) *Daemon {
	cfg.setDefaults()

	d := &Daemon{
		cfg:         cfg,
		globalID:    globalID,
		name:        cfg.Name,
		rank:        proto.RankNone,
		state:       proto.StateBoot,
		wanted:      cfg.wantedState(),
		standbyForRank: proto.Rank(cfg.StandbyForRank),
		standbyForName: cfg.StandbyForName,

		peerEpochs: make(map[proto.GlobalID]uint64),
		peers:      peers,
		transport:  tr,

		commands: make(map[string]*commandHook),
		waiters:  make(map[uint64][]func()),

		adminLimiter: limiter.NewCountLimit(cfg.AdminConcurrency),
		beaconPacer:  limiter.NewPacer(cfg.BeaconRatePerSec, 1),

		done: make(chan struct{}),

		execFunc: syscallExec,
	}
	d.clog = newClusterLog(d, cfg.ClogToMonitors, cfg.ClogToSyslog)
	return d
}

func (d *Daemon) lock()   { d.mu.Lock() }
func (d *Daemon) unlock() { d.mu.Unlock() }

// Rank returns the currently held rank, thread-safe for callers outside
// the controller lock (e.g. admin handlers formatting a response).
func (d *Daemon) Rank() proto.Rank {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rank
}

// State returns the current daemon state.
func (d *Daemon) State() proto.DaemonState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Wanted returns the wanted state last set by this daemon.
func (d *Daemon) Wanted() proto.WantedState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wanted
}

// IsStopping reports whether the stopping latch has been set.
func (d *Daemon) IsStopping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopping
}

// InstalledEpoch returns the epoch of the most recently installed cluster
// map, or 0 if none has been installed yet.
func (d *Daemon) InstalledEpoch() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.installedMap == nil {
		return 0
	}
	return d.installedMap.Epoch
}

// OSDBarrier returns the current OSD epoch barrier.
func (d *Daemon) OSDBarrier() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.osdBarrier
}
