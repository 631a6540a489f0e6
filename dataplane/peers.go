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

// Package dataplane declares the interfaces of the data-plane peers the
// controller owns and drives, but whose internals are out of scope
// (spec.md §1): the metadata cache, journal, balancer, migrator, locker,
// session table, snapshot server/client, and inode allocator. Each peer
// holds a non-owning back reference to the controller (spec.md §9) to
// queue continuations and read state; that reference is passed in at
// construction by the caller, not modeled here.
package dataplane

import (
	"context"

	"github.com/cubefs/mds/proto"
)

// Cache is the metadata cache: the in-memory tree of inodes and dirfrags
// this rank is authoritative for, plus its replicas of other ranks' trees.
type Cache interface {
	// Start* are the fan-out entry points the membership state machine
	// dispatches to on a state transition (spec.md §4.B).
	BootCreate(ctx context.Context) error
	BootStart(ctx context.Context) error
	ReplayStart(ctx context.Context) error
	ResolveStart(ctx context.Context) error
	ReconnectStart(ctx context.Context) error
	RejoinStart(ctx context.Context) error
	ClientReplayStart(ctx context.Context) error
	ActiveStart(ctx context.Context) error
	StoppingStart(ctx context.Context) error
	RecoveryDone(ctx context.Context, old proto.DaemonState) error

	RejoinJointStart(ctx context.Context) error
	DumpForDebug(ctx context.Context)

	SendResolve(ctx context.Context, recoverySet []proto.GlobalID) error
	KickDiscover(ctx context.Context, peer proto.GlobalID)
	KickInodeOpen(ctx context.Context, peer proto.GlobalID)
	HandleMDSRecovery(ctx context.Context, peer proto.GlobalID)
	HandleMDSFailure(ctx context.Context, peer proto.GlobalID)
	NotifyMapChanged(ctx context.Context, m *proto.ClusterMap)

	TrimCache(ctx context.Context)
	ForceReadOnly(ctx context.Context)
	IsReadOnly() bool
	Scrub(ctx context.Context, path string) (<-chan error, error)
	FlushPath(ctx context.Context, path string) error
	Dump(ctx context.Context, path string) error

	// GetSubtrees dumps the subtree map for the admin "get subtrees"
	// command (spec.md §4.D).
	GetSubtrees(ctx context.Context) []SubtreeInfo

	// PathExists reports whether path resolves in cache, used to
	// validate "export dir" and the dirfrag commands.
	PathExists(ctx context.Context, path string) bool

	// RootFragAuth reports whether path's root directory fragment is
	// held (authoritative) by this rank, the second half of "export
	// dir"'s validation (spec.md §4.D).
	RootFragAuth(ctx context.Context, path string) bool

	// DirfragSplit and DirfragMerge implement the auth-only "dirfrag
	// split"/"dirfrag merge" admin commands.
	DirfragSplit(ctx context.Context, path, frag string, bits int) error
	DirfragMerge(ctx context.Context, path, frag string) error

	// DirfragLs lists the leaf fragments under path's inode.
	DirfragLs(ctx context.Context, path string) ([]DirfragInfo, error)
}

// SubtreeInfo is one entry of the admin "get subtrees" dump.
type SubtreeInfo struct {
	Path   string
	IsAuth bool
	Auth1  proto.Rank
	Auth2  proto.Rank
}

// DirfragInfo is one leaf fragment reported by "dirfrag ls".
type DirfragInfo struct {
	Value uint32
	Bits  uint32
	Str   string
}

// Journal is the append-only log of metadata mutations, driven by the
// admin "flush journal" protocol (spec.md §4.D.1) and the periodic tick.
type Journal interface {
	SealCurrentSegment(ctx context.Context) error
	Flush(ctx context.Context) (waitSafe func(ctx context.Context) int, err error)
	TrimAll(ctx context.Context) error
	ExpiringSegments(ctx context.Context) []Waitable
	TrimExpired(ctx context.Context) error
	WriteHeader(ctx context.Context) (wait func(ctx context.Context) int, err error)
	TrimJournal(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// Waitable is a single pending completion, awaited with the controller
// lock released (spec.md §5).
type Waitable interface {
	Wait(ctx context.Context) error
}

// Balancer samples and publishes load and drives subtree migration
// decisions.
type Balancer interface {
	Rebalance(ctx context.Context)
	Tick(ctx context.Context)
	Load() float64
	CheckStaleFragmentFreezes(ctx context.Context)
	CheckStaleExportFreezes(ctx context.Context)
	ExportDir(ctx context.Context, path string, targetRank proto.Rank) error
}

// Migrator carries out subtree export/import and reacts to peer
// down/stopped notifications.
type Migrator interface {
	HandleStopped(ctx context.Context, peer proto.GlobalID)
}

// Locker manages distributed locks over inodes/dirfrags.
type Locker interface {
	Step(ctx context.Context)
}

// SessionTable is the out-of-scope subsystem owning the collection of
// client Sessions; the controller only reaches it through this interface
// (spec.md §4.D, §4.F).
type SessionTable interface {
	Get(clientName string) (*proto.Session, bool)
	GetByConnID(connID string) (*proto.Session, bool)
	Put(s *proto.Session)
	List() []*proto.Session
	Evict(ctx context.Context, clientName string) (committed <-chan error, err error)
	SweepIdle(ctx context.Context)
	TrimLeases(ctx context.Context)
}

// SnapServer and SnapClient stand in for the out-of-scope snapshot table
// server (this rank serving snapshot reads to others) and client (this
// rank consuming another's).
type SnapServer interface {
	RefreshOSDMapView(ctx context.Context, epoch uint64)
	NotifyActive(ctx context.Context)
}

type SnapClient interface {
	NotifyMapChanged(ctx context.Context)
}

// InodeAllocator hands out fresh inode numbers; out of scope beyond this
// interface.
type InodeAllocator interface {
	Reserve(ctx context.Context, n int) (start uint64, err error)
}

// MemoryMonitor checks process memory usage during the tick.
type MemoryMonitor interface {
	CheckUsage(ctx context.Context)
}

// OpTracker records in-flight and historic ops for the admin dump_ops_*
// commands and the tick's slow-op scan.
type OpTracker interface {
	DumpOpsInFlight() []byte
	DumpHistoricOps() []byte
	SlowOps(complaintAge float64) []string
}
