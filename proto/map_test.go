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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureSet_Has(t *testing.T) {
	require.True(t, FeatureTmap2Omap.Has(FeatureTmap2Omap))
	require.False(t, FeatureSet(0).Has(FeatureTmap2Omap))
}

func TestClusterMap_Writable(t *testing.T) {
	m := &ClusterMap{Compat: FeatureTmap2Omap}
	require.True(t, m.Writable(FeatureTmap2Omap))
	require.False(t, m.Writable(FeatureSet(0)))
}

func TestClusterMap_IncarnationFor(t *testing.T) {
	m := &ClusterMap{Daemons: map[GlobalID]DaemonInfo{
		1: {GlobalID: 1, Rank: 0, Incarnation: 3},
	}}
	require.EqualValues(t, 3, m.IncarnationFor(0))
	require.Zero(t, m.IncarnationFor(1))
}

func TestDiffMaps_NilOldMapMarksAllVisible(t *testing.T) {
	newMap := &ClusterMap{Daemons: map[GlobalID]DaemonInfo{
		1: {GlobalID: 1, Rank: 0, State: StateActive},
	}}
	d := DiffMaps(nil, newMap)
	require.Equal(t, []GlobalID{1}, d.NewlyVisible)
	require.Equal(t, []GlobalID{1}, d.NewlyActive)
}

func TestDiffMaps_DetectsGoneAndNewlyDown(t *testing.T) {
	oldMap := &ClusterMap{Daemons: map[GlobalID]DaemonInfo{
		1: {GlobalID: 1, Rank: 0, State: StateActive},
	}}
	newMap := &ClusterMap{
		Daemons: map[GlobalID]DaemonInfo{},
		Down:    map[GlobalID]bool{1: true},
	}
	d := DiffMaps(oldMap, newMap)
	require.Equal(t, []GlobalID{1}, d.Gone)
	require.Equal(t, []GlobalID{1}, d.NewlyDown)
}

func TestDiffMaps_DetectsAddrChangeAndRejoinTransitions(t *testing.T) {
	oldMap := &ClusterMap{Daemons: map[GlobalID]DaemonInfo{
		1: {GlobalID: 1, Rank: 0, State: StateRejoin, Addr: "a"},
	}}
	newMap := &ClusterMap{Daemons: map[GlobalID]DaemonInfo{
		1: {GlobalID: 1, Rank: 0, State: StateActive, Addr: "b"},
	}}
	d := DiffMaps(oldMap, newMap)
	require.Equal(t, []GlobalID{1}, d.AddrChanged)
	require.Equal(t, []GlobalID{1}, d.NewlyActive)
	require.True(t, d.FinishedRejoining)
}

func TestDiffMaps_NilNewMapReturnsZeroDiff(t *testing.T) {
	d := DiffMaps(&ClusterMap{}, nil)
	require.Empty(t, d.NewlyVisible)
	require.False(t, d.StartedRejoining)
}
