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

package proto

// GlobalID is the id minted by the monitor at authentication time.
type GlobalID uint64

// DaemonInfo is the per-daemon record carried inside a ClusterMap.
type DaemonInfo struct {
	GlobalID  GlobalID
	Name      string
	Addr      string
	Rank      Rank
	State     DaemonState
	Incarnation uint64

	// StandbyForRank/StandbyForName record standby preferences; only
	// meaningful when State is StateStandby, StateStandbyReplay or
	// StateOneshotReplay.
	StandbyForRank Rank
	StandbyForName string
	StandbyType    StandbyType
}

// ClusterMap is the externally-authored snapshot published by the monitor.
// Only monotonically increasing epochs are admitted (spec.md §3 invariant 4).
type ClusterMap struct {
	Epoch uint64

	// Compat is the compatibility feature set this map requires writers
	// to support; an incompatible daemon must suicide.
	Compat FeatureSet

	Daemons map[GlobalID]DaemonInfo

	// Down and Stopped are sets of global ids the monitor currently
	// lists as down / stopped.
	Down    map[GlobalID]bool
	Stopped map[GlobalID]bool

	// OSDEpoch is the object-store map epoch current as of this
	// cluster-map publication.
	OSDEpoch uint64
}

// IncarnationFor returns the incarnation the monitor expects a standby
// following `rank` to boot into, i.e. the incarnation of whichever daemon
// currently holds that rank in this map. Supplemented from
// MDS.cc::handle_mds_map's standby-for-rank incarnation lookup.
func (m *ClusterMap) IncarnationFor(rank Rank) uint64 {
	for _, d := range m.Daemons {
		if d.Rank == rank {
			return d.Incarnation
		}
	}
	return 0
}

// FeatureSet is a bitset of feature flags a map or daemon advertises.
type FeatureSet uint64

const (
	FeatureTmap2Omap FeatureSet = 1 << iota
)

// Has reports whether the set contains all of want's bits.
func (f FeatureSet) Has(want FeatureSet) bool {
	return f&want == want
}

// Writable reports whether a daemon advertising `have` may act as a writer
// under a map that requires `m.Compat`.
func (m *ClusterMap) Writable(have FeatureSet) bool {
	return have.Has(m.Compat)
}

// Diff summarizes the daemon-level deltas between two successive maps, used
// to drive the membership state machine's peer-event fan-out (spec.md §4.B).
type Diff struct {
	NewlyDown     []GlobalID
	NewlyUp       []GlobalID
	NewlyStopped  []GlobalID
	NewlyActive   []GlobalID // entered active|clientreplay for the first time
	NewlyVisible  []GlobalID // active|clientreplay|rejoin appearing for the first time
	AddrChanged   []GlobalID
	Gone          []GlobalID // present in old, absent in new
	StartedResolving bool
	StartedRejoining bool
	FinishedRejoining bool
}

func isUpState(s DaemonState) bool {
	switch s {
	case StateActive, StateClientReplay, StateRejoin:
		return true
	default:
		return false
	}
}

func isActiveState(s DaemonState) bool {
	return s == StateActive || s == StateClientReplay
}

func anyResolving(m *ClusterMap) bool {
	if m == nil {
		return false
	}
	for _, d := range m.Daemons {
		if d.Rank != RankNone && d.State == StateResolve {
			return true
		}
	}
	return false
}

func anyRejoining(m *ClusterMap) bool {
	if m == nil {
		return false
	}
	for _, d := range m.Daemons {
		if d.Rank != RankNone && d.State == StateRejoin {
			return true
		}
	}
	return false
}

// DiffMaps computes the peer-event Diff between oldMap and newMap. oldMap
// may be nil (first map installed).
func DiffMaps(oldMap, newMap *ClusterMap) Diff {
	var d Diff
	if newMap == nil {
		return d
	}

	oldDaemons := map[GlobalID]DaemonInfo{}
	if oldMap != nil {
		oldDaemons = oldMap.Daemons
	}

	for id, nd := range newMap.Daemons {
		od, existed := oldDaemons[id]
		if !existed {
			if isUpState(nd.State) {
				d.NewlyVisible = append(d.NewlyVisible, id)
			}
			if isActiveState(nd.State) {
				d.NewlyActive = append(d.NewlyActive, id)
			}
			continue
		}
		if od.Addr != nd.Addr {
			d.AddrChanged = append(d.AddrChanged, id)
		}
		if !isActiveState(od.State) && isActiveState(nd.State) {
			d.NewlyActive = append(d.NewlyActive, id)
		}
		if !isUpState(od.State) && isUpState(nd.State) {
			d.NewlyVisible = append(d.NewlyVisible, id)
		}
	}

	for id := range oldDaemons {
		if _, ok := newMap.Daemons[id]; !ok {
			d.Gone = append(d.Gone, id)
		}
	}

	for id := range newMap.Down {
		wasDown := oldMap != nil && oldMap.Down[id]
		if !wasDown {
			d.NewlyDown = append(d.NewlyDown, id)
		}
	}
	for id := range newMap.Stopped {
		wasStopped := oldMap != nil && oldMap.Stopped[id]
		if !wasStopped {
			d.NewlyStopped = append(d.NewlyStopped, id)
		}
	}

	d.StartedResolving = !anyResolving(oldMap) && anyResolving(newMap)
	wasRejoining := anyRejoining(oldMap)
	isRejoining := anyRejoining(newMap)
	d.StartedRejoining = !wasRejoining && isRejoining
	d.FinishedRejoining = wasRejoining && !isRejoining

	return d
}
