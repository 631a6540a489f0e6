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

func TestValidTransition_SameStateAlwaysValid(t *testing.T) {
	require.True(t, ValidTransition(StateActive, StateActive))
}

func TestValidTransition_ReplayRestrictedToResolveOrReconnect(t *testing.T) {
	require.True(t, ValidTransition(StateReplay, StateResolve))
	require.True(t, ValidTransition(StateReplay, StateReconnect))
	require.False(t, ValidTransition(StateReplay, StateActive))
	require.False(t, ValidTransition(StateReplay, StateRejoin))
}

func TestValidTransition_RejoinRestrictedToThreeTargets(t *testing.T) {
	require.True(t, ValidTransition(StateRejoin, StateActive))
	require.True(t, ValidTransition(StateRejoin, StateClientReplay))
	require.True(t, ValidTransition(StateRejoin, StateStopped))
	require.False(t, ValidTransition(StateRejoin, StateReplay))
}

func TestValidTransition_RecoverySequenceMustAdvanceOneStepAtATime(t *testing.T) {
	require.True(t, ValidTransition(StateReconnect, StateRejoin))
	require.False(t, ValidTransition(StateReconnect, StateClientReplay), "skipping rejoin must be rejected")
}

func TestValidTransition_UnrestrictedOriginAllowsAnyTarget(t *testing.T) {
	require.True(t, ValidTransition(StateStandby, StateStopped))
	require.True(t, ValidTransition(StateBoot, StateActive))
}

func TestIsRecovery_BoundedToReconnectUpToActive(t *testing.T) {
	require.True(t, IsRecovery(StateReconnect))
	require.True(t, IsRecovery(StateRejoin))
	require.False(t, IsRecovery(StateActive))
	require.False(t, IsRecovery(StateBoot))
}

func TestServing_OnlyClientReplayActiveStopping(t *testing.T) {
	require.True(t, Serving(StateClientReplay))
	require.True(t, Serving(StateActive))
	require.True(t, Serving(StateStopping))
	require.False(t, Serving(StateReplay))
	require.False(t, Serving(StateBoot))
}

func TestDaemonState_StringCoversAllValues(t *testing.T) {
	require.Equal(t, "active", StateActive.String())
	require.Equal(t, "dne", StateDNE.String())
	require.Equal(t, "unknown", DaemonState(1000).String())
}
