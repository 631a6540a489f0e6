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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewDaemonMetrics_RegistersAndCounts(t *testing.T) {
	m := NewDaemonMetrics("rank-test-1")
	defer m.Unregister()

	m.Beacons.Inc()
	m.Beacons.Inc()
	require.Equal(t, float64(2), testutil.ToFloat64(m.Beacons))

	m.OSDEpochBarrier.Set(7)
	require.Equal(t, float64(7), testutil.ToFloat64(m.OSDEpochBarrier))
}

func TestDaemonMetrics_UnregisterAllowsReconstruction(t *testing.T) {
	m1 := NewDaemonMetrics("rank-test-2")
	m1.Unregister()

	// re-registering under the same name must not panic now that the
	// first instance's collectors were removed from the shared registry.
	m2 := NewDaemonMetrics("rank-test-2")
	defer m2.Unregister()
	m2.Respawns.Inc()
	require.Equal(t, float64(1), testutil.ToFloat64(m2.Respawns))
}
