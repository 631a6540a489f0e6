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
	"context"
	"sync"

	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/cubefs/mds/proto"
)

// ClusterLog is the textual channel of spec.md §6, routed to the monitor
// and/or syslog depending on the live-reloadable clog_to_* config keys.
// Every entry is also logged locally through log.DefaultLogger so nothing
// is lost when the monitor channel is unavailable.
type ClusterLog struct {
	mu         sync.Mutex
	d          *Daemon
	toMonitors bool
	toSyslog   bool
}

func newClusterLog(d *Daemon, toMonitors, toSyslog bool) *ClusterLog {
	return &ClusterLog{d: d, toMonitors: toMonitors, toSyslog: toSyslog}
}

// UpdateConfig re-applies the clog_to_* routing keys, called from the
// config-change subscription installed during Init.
func (c *ClusterLog) UpdateConfig(toMonitors, toSyslog bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toMonitors = toMonitors
	c.toSyslog = toSyslog
}

func (c *ClusterLog) routing() (toMonitors, toSyslog bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toMonitors, c.toSyslog
}

// Warn routes a warning-level clog entry, used by the tick's slow-op scan
// (spec.md §4.E).
func (c *ClusterLog) Warn(ctx context.Context, msg string) {
	log.Warnf("clog: %s", msg)
	c.forward(ctx, "warn", msg)
}

// Info routes an info-level clog entry.
func (c *ClusterLog) Info(ctx context.Context, msg string) {
	log.Infof("clog: %s", msg)
	c.forward(ctx, "info", msg)
}

// Error routes an error-level clog entry, used by the damaged() escalation
// path (spec.md §4.A).
func (c *ClusterLog) Error(ctx context.Context, msg string) {
	log.Errorf("clog: %s", msg)
	c.forward(ctx, "error", msg)
}

func (c *ClusterLog) forward(ctx context.Context, level, msg string) {
	toMonitors, toSyslog := c.routing()
	if toMonitors && c.d != nil && c.d.transport.Monitor != nil {
		_ = c.d.transport.Monitor.ReplyCommand(ctx, proto.CommandResponse{
			TxnID: "clog",
			Text:  level + ": " + msg,
		})
	}
	if toSyslog {
		// syslog delivery is a thin platform detail outside this
		// controller's scope; the local structured log line above is
		// the durable record within this process.
		log.Infof("syslog[%s]: %s", level, msg)
	}
}
