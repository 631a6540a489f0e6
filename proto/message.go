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

// SenderType classifies the kind of peer a message arrived from, used to
// enforce the allow-set for each core message kind (spec.md §4.C).
type SenderType int

const (
	SenderMonitor SenderType = iota
	SenderMDS
	SenderClient
	SenderOSD
)

// Kind is a tagged variant over the inbound message space: either a "core"
// message handled synchronously by the dispatcher, or a "rank" message
// delegated to the (out-of-scope) rank-level dispatcher.
type Kind int

const (
	KindUnknown Kind = iota
	KindMonitorMap
	KindClusterMap
	KindMonitorCommand
	KindCommand
	KindOSDMap
	KindRank
)

func (k Kind) IsCore() bool {
	switch k {
	case KindMonitorMap, KindClusterMap, KindMonitorCommand, KindCommand, KindOSDMap:
		return true
	default:
		return false
	}
}

// AllowedSenders is the per-kind sender allow-set enforced by the
// dispatcher before a core message is handled.
var AllowedSenders = map[Kind]map[SenderType]bool{
	KindMonitorMap:     {SenderMonitor: true},
	KindClusterMap:     {SenderMonitor: true},
	KindMonitorCommand: {SenderMonitor: true},
	KindCommand:        {SenderClient: true, SenderMDS: true},
	KindOSDMap:         {SenderMonitor: true, SenderOSD: true},
}

// Message is the tagged variant delivered to the dispatcher, replacing the
// deep virtual-dispatch hierarchy of the original with a single struct plus
// capability check (spec.md, Design Notes).
type Message struct {
	Kind   Kind
	From   GlobalID
	Sender SenderType

	Map     *ClusterMap
	MonMap  *MonitorMap
	OSDMap  *OSDMapNotice
	Command *CommandRequest

	// Epoch is the sender's advertised epoch. The dispatcher does not read
	// it; peer-freshness tracking records the delivered map's own epoch.
	Epoch uint64
}

// MonitorMap is a minimal stand-in for the monitor's own membership map,
// acknowledged but not otherwise interpreted by this controller.
type MonitorMap struct {
	Epoch uint64
}

// OSDMapNotice carries the object-store map epoch notification.
type OSDMapNotice struct {
	Epoch uint64
}
