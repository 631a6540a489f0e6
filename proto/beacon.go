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

import "time"

// Health summarizes the daemon's self-reported health, carried in every
// Beacon.
type Health struct {
	SlowOps  int
	Degraded bool
}

// Beacon is the periodic heartbeat sent to the monitor, spec.md §6.
type Beacon struct {
	GlobalID       GlobalID
	Wanted         WantedState
	Current        DaemonState
	StandbyForRank Rank
	StandbyForName string
	Health         Health
	SentAt         time.Time
}
