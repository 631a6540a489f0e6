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

package dataplane

import (
	"context"
	"sync"

	apierrors "github.com/cubefs/mds/errors"
	"github.com/cubefs/mds/proto"
)

// FakeCache is an in-memory Cache good enough to drive the controller's
// fan-out logic in tests: it records every call it receives.
type FakeCache struct {
	mu       sync.Mutex
	Calls    []string
	readOnly bool

	// Paths is the set of paths PathExists/RootFragAuth resolve as
	// present/authoritative, populated by tests.
	Paths     map[string]bool
	AuthPaths map[string]bool
	Frags     map[string][]DirfragInfo
	Subtrees  []SubtreeInfo
}

func (f *FakeCache) record(name string) {
	f.mu.Lock()
	f.Calls = append(f.Calls, name)
	f.mu.Unlock()
}

func (f *FakeCache) BootCreate(ctx context.Context) error          { f.record("BootCreate"); return nil }
func (f *FakeCache) BootStart(ctx context.Context) error           { f.record("BootStart"); return nil }
func (f *FakeCache) ReplayStart(ctx context.Context) error         { f.record("ReplayStart"); return nil }
func (f *FakeCache) ResolveStart(ctx context.Context) error        { f.record("ResolveStart"); return nil }
func (f *FakeCache) ReconnectStart(ctx context.Context) error      { f.record("ReconnectStart"); return nil }
func (f *FakeCache) RejoinStart(ctx context.Context) error         { f.record("RejoinStart"); return nil }
func (f *FakeCache) ClientReplayStart(ctx context.Context) error   { f.record("ClientReplayStart"); return nil }
func (f *FakeCache) ActiveStart(ctx context.Context) error         { f.record("ActiveStart"); return nil }
func (f *FakeCache) StoppingStart(ctx context.Context) error       { f.record("StoppingStart"); return nil }
func (f *FakeCache) RecoveryDone(ctx context.Context, old proto.DaemonState) error {
	f.record("RecoveryDone:" + old.String())
	return nil
}
func (f *FakeCache) RejoinJointStart(ctx context.Context) error { f.record("RejoinJointStart"); return nil }
func (f *FakeCache) DumpForDebug(ctx context.Context)            { f.record("DumpForDebug") }

func (f *FakeCache) SendResolve(ctx context.Context, recoverySet []proto.GlobalID) error {
	f.record("SendResolve")
	return nil
}
func (f *FakeCache) KickDiscover(ctx context.Context, peer proto.GlobalID)       { f.record("KickDiscover") }
func (f *FakeCache) KickInodeOpen(ctx context.Context, peer proto.GlobalID)      { f.record("KickInodeOpen") }
func (f *FakeCache) HandleMDSRecovery(ctx context.Context, peer proto.GlobalID)  { f.record("HandleMDSRecovery") }
func (f *FakeCache) HandleMDSFailure(ctx context.Context, peer proto.GlobalID)   { f.record("HandleMDSFailure") }
func (f *FakeCache) NotifyMapChanged(ctx context.Context, m *proto.ClusterMap)   { f.record("NotifyMapChanged") }

func (f *FakeCache) TrimCache(ctx context.Context)   { f.record("TrimCache") }
func (f *FakeCache) ForceReadOnly(ctx context.Context) {
	f.mu.Lock()
	f.readOnly = true
	f.mu.Unlock()
	f.record("ForceReadOnly")
}
func (f *FakeCache) IsReadOnly() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readOnly
}
func (f *FakeCache) Scrub(ctx context.Context, path string) (<-chan error, error) {
	ch := make(chan error, 1)
	ch <- nil
	return ch, nil
}
func (f *FakeCache) FlushPath(ctx context.Context, path string) error { return nil }
func (f *FakeCache) Dump(ctx context.Context, path string) error      { return nil }

func (f *FakeCache) GetSubtrees(ctx context.Context) []SubtreeInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Subtrees
}

func (f *FakeCache) PathExists(ctx context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Paths == nil {
		return false
	}
	return f.Paths[path]
}

func (f *FakeCache) RootFragAuth(ctx context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.AuthPaths == nil {
		return false
	}
	return f.AuthPaths[path]
}

func (f *FakeCache) DirfragSplit(ctx context.Context, path, frag string, bits int) error {
	f.record("DirfragSplit:" + path)
	return nil
}

func (f *FakeCache) DirfragMerge(ctx context.Context, path, frag string) error {
	f.record("DirfragMerge:" + path)
	return nil
}

func (f *FakeCache) DirfragLs(ctx context.Context, path string) ([]DirfragInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Frags[path], nil
}

// FakeJournal is a Journal whose waits complete immediately.
type FakeJournal struct {
	mu      sync.Mutex
	Sealed  int
	Flushed int
	Trimmed int
	TrimPos uint64
}

func (j *FakeJournal) SealCurrentSegment(ctx context.Context) error {
	j.mu.Lock()
	j.Sealed++
	j.mu.Unlock()
	return nil
}

func (j *FakeJournal) Flush(ctx context.Context) (func(ctx context.Context) int, error) {
	j.mu.Lock()
	j.Flushed++
	j.mu.Unlock()
	return func(ctx context.Context) int { return 0 }, nil
}

func (j *FakeJournal) TrimAll(ctx context.Context) error {
	j.mu.Lock()
	j.Trimmed++
	j.TrimPos++
	j.mu.Unlock()
	return nil
}

func (j *FakeJournal) ExpiringSegments(ctx context.Context) []Waitable { return nil }
func (j *FakeJournal) TrimExpired(ctx context.Context) error          { return nil }
func (j *FakeJournal) WriteHeader(ctx context.Context) (func(ctx context.Context) int, error) {
	return func(ctx context.Context) int { return 0 }, nil
}
func (j *FakeJournal) TrimJournal(ctx context.Context) {}
func (j *FakeJournal) Shutdown(ctx context.Context) error { return nil }

func (j *FakeJournal) CurrentTrimPos() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.TrimPos
}

// FakeBalancer, FakeMigrator, FakeLocker, FakeSnapServer, FakeSnapClient,
// FakeAllocator, FakeMemoryMonitor, FakeOpTracker round out the peer set
// with no-op/recording implementations.
type FakeBalancer struct {
	mu   sync.Mutex
	Load_ float64
	Calls []string
}

func (b *FakeBalancer) Rebalance(ctx context.Context) { b.record("Rebalance") }
func (b *FakeBalancer) Tick(ctx context.Context)      { b.record("Tick") }
func (b *FakeBalancer) Load() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Load_
}
func (b *FakeBalancer) CheckStaleFragmentFreezes(ctx context.Context) { b.record("CheckStaleFragmentFreezes") }
func (b *FakeBalancer) CheckStaleExportFreezes(ctx context.Context)   { b.record("CheckStaleExportFreezes") }
func (b *FakeBalancer) ExportDir(ctx context.Context, path string, targetRank proto.Rank) error {
	b.record("ExportDir")
	return nil
}
func (b *FakeBalancer) record(name string) {
	b.mu.Lock()
	b.Calls = append(b.Calls, name)
	b.mu.Unlock()
}

type FakeMigrator struct {
	mu    sync.Mutex
	Calls []proto.GlobalID
}

func (m *FakeMigrator) HandleStopped(ctx context.Context, peer proto.GlobalID) {
	m.mu.Lock()
	m.Calls = append(m.Calls, peer)
	m.mu.Unlock()
}

type FakeLocker struct{ Ticks int }

func (l *FakeLocker) Step(ctx context.Context) { l.Ticks++ }

type FakeSnapServer struct {
	mu          sync.Mutex
	ActiveCalls int
	LastEpoch   uint64
}

func (s *FakeSnapServer) RefreshOSDMapView(ctx context.Context, epoch uint64) {
	s.mu.Lock()
	s.LastEpoch = epoch
	s.mu.Unlock()
}
func (s *FakeSnapServer) NotifyActive(ctx context.Context) {
	s.mu.Lock()
	s.ActiveCalls++
	s.mu.Unlock()
}

type FakeSnapClient struct{ Notified int }

func (c *FakeSnapClient) NotifyMapChanged(ctx context.Context) { c.Notified++ }

type FakeAllocator struct{ next uint64 }

func (a *FakeAllocator) Reserve(ctx context.Context, n int) (uint64, error) {
	start := a.next
	a.next += uint64(n)
	return start, nil
}

type FakeMemoryMonitor struct{ Checks int }

func (m *FakeMemoryMonitor) CheckUsage(ctx context.Context) { m.Checks++ }

type FakeOpTracker struct{ Slow []string }

func (t *FakeOpTracker) DumpOpsInFlight() []byte      { return []byte("[]") }
func (t *FakeOpTracker) DumpHistoricOps() []byte      { return []byte("[]") }
func (t *FakeOpTracker) SlowOps(complaintAge float64) []string { return t.Slow }

// FakeSessionTable is a minimal in-memory SessionTable.
type FakeSessionTable struct {
	mu       sync.Mutex
	sessions map[string]*proto.Session
}

func NewFakeSessionTable() *FakeSessionTable {
	return &FakeSessionTable{sessions: make(map[string]*proto.Session)}
}

func (t *FakeSessionTable) Get(clientName string) (*proto.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[clientName]
	return s, ok
}

func (t *FakeSessionTable) GetByConnID(connID string) (*proto.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.sessions {
		if s.ConnID() == connID {
			return s, true
		}
	}
	return nil, false
}

func (t *FakeSessionTable) Put(s *proto.Session) {
	t.mu.Lock()
	t.sessions[s.ClientName] = s
	t.mu.Unlock()
}

func (t *FakeSessionTable) List() []*proto.Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*proto.Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

func (t *FakeSessionTable) Evict(ctx context.Context, clientName string) (<-chan error, error) {
	t.mu.Lock()
	_, ok := t.sessions[clientName]
	if ok {
		delete(t.sessions, clientName)
	}
	t.mu.Unlock()

	if !ok {
		return nil, apierrors.ErrSessionNotFound
	}
	ch := make(chan error, 1)
	ch <- nil
	return ch, nil
}

func (t *FakeSessionTable) SweepIdle(ctx context.Context)  {}
func (t *FakeSessionTable) TrimLeases(ctx context.Context) {}
