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

// Package mds implements the lifecycle and membership controller of a
// single MDS rank daemon: the supervisor, the membership state machine,
// the message dispatcher, the admin command surface, the periodic tick,
// and the connection/session glue.
package mds

import (
	"time"

	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/cubefs/mds/proto"
)

// Config is loaded by config.Load in cmd/mds/main.go, mirroring the
// teacher's flat server.Config shape.
type Config struct {
	Name   string `json:"name"`
	Addr   string `json:"addr"`

	WantedState string `json:"wanted_state"`

	StandbyForRank int32  `json:"standby_for_rank"`
	StandbyForName string `json:"standby_for_name"`

	UniqueNameEnforce bool `json:"unique_name_enforce"`

	TickIntervalMs        int64 `json:"tick_interval_ms"`
	AuthKeyWaitTimeoutS   int64 `json:"auth_key_wait_timeout_s"`
	BackendPollIntervalS  int64 `json:"backend_poll_interval_s"`
	MonShutdownTimeoutS   int64 `json:"mon_shutdown_timeout_s"`
	AdminGraceDelayMs     int64 `json:"admin_grace_delay_ms"`

	OpComplaintTimeS    float64 `json:"op_complaint_time_s"`
	OpLogThreshold      int     `json:"op_log_threshold"`
	OpHistorySize       int     `json:"op_history_size"`
	OpHistoryDurationS  int64   `json:"op_history_duration_s"`

	ClogToMonitors bool `json:"clog_to_monitors"`
	ClogToSyslog   bool `json:"clog_to_syslog"`

	AdminConcurrency int     `json:"admin_concurrency"`
	BeaconRatePerSec float64 `json:"beacon_rate_per_sec"`

	TaskPoolSize int `json:"task_pool_size"`

	ProfilerAvailable bool `json:"profiler_available"`

	LogLevel log.Level `json:"log_level"`
}

const (
	defaultTickInterval       = 5 * time.Second
	defaultAuthKeyWaitTimeout = 30 * time.Second
	defaultBackendPollInterval = 10 * time.Second
	defaultMonShutdownTimeout = 5 * time.Second
	defaultAdminGraceDelay    = time.Second
	defaultAdminConcurrency   = 64
	defaultBeaconRatePerSec   = 1
	defaultTaskPoolSize       = 16
	defaultOpComplaintTimeS   = 30
)

// setDefaults fills in zero-valued fields the way the teacher's initConfig
// does for server.Config, and is called once from NewDaemon.
func (c *Config) setDefaults() {
	if c.Name == "" {
		c.Name = "a"
	}
	if c.WantedState == "" {
		c.WantedState = "standby"
	}
	if c.TickIntervalMs == 0 {
		c.TickIntervalMs = defaultTickInterval.Milliseconds()
	}
	if c.AuthKeyWaitTimeoutS == 0 {
		c.AuthKeyWaitTimeoutS = int64(defaultAuthKeyWaitTimeout / time.Second)
	}
	if c.BackendPollIntervalS == 0 {
		c.BackendPollIntervalS = int64(defaultBackendPollInterval / time.Second)
	}
	if c.MonShutdownTimeoutS == 0 {
		c.MonShutdownTimeoutS = int64(defaultMonShutdownTimeout / time.Second)
	}
	if c.AdminGraceDelayMs == 0 {
		c.AdminGraceDelayMs = defaultAdminGraceDelay.Milliseconds()
	}
	if c.OpComplaintTimeS == 0 {
		c.OpComplaintTimeS = defaultOpComplaintTimeS
	}
	if c.AdminConcurrency == 0 {
		c.AdminConcurrency = defaultAdminConcurrency
	}
	if c.BeaconRatePerSec == 0 {
		c.BeaconRatePerSec = defaultBeaconRatePerSec
	}
	if c.TaskPoolSize == 0 {
		c.TaskPoolSize = defaultTaskPoolSize
	}
}

func (c *Config) tickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c *Config) authKeyWaitTimeout() time.Duration {
	return time.Duration(c.AuthKeyWaitTimeoutS) * time.Second
}

func (c *Config) backendPollInterval() time.Duration {
	return time.Duration(c.BackendPollIntervalS) * time.Second
}

func (c *Config) monShutdownTimeout() time.Duration {
	return time.Duration(c.MonShutdownTimeoutS) * time.Second
}

func (c *Config) adminGraceDelay() time.Duration {
	return time.Duration(c.AdminGraceDelayMs) * time.Millisecond
}

func (c *Config) wantedState() proto.DaemonState {
	return ParseWantedState(c.WantedState)
}

// subscribeConfigChanges registers fn to be called with each batch of live
// configuration changes, mirroring MDS.cc::Init's g_conf->add_observer(this)
// (called once, at the end of Init, right after the admin socket is set
// up). The only in-scope trigger for a notification is the admin
// "injectargs" command (a config file watcher is out of scope), but the
// subscription itself is independent of that command: applyLiveConfig runs
// as a subscriber callback rather than being invoked directly.
func (d *Daemon) subscribeConfigChanges(fn func(args []string)) {
	d.configSubsMu.Lock()
	d.configSubs = append(d.configSubs, fn)
	d.configSubsMu.Unlock()
}

// notifyConfigChanged fans a batch of changed key=value pairs out to every
// subscriber, matching handle_conf_change being invoked for each registered
// observer of g_conf.
func (d *Daemon) notifyConfigChanged(args []string) {
	d.configSubsMu.Lock()
	subs := append([]func(args []string){}, d.configSubs...)
	d.configSubsMu.Unlock()
	for _, fn := range subs {
		fn(args)
	}
}

// ParseWantedState translates the configuration file's wanted_state string
// into a proto.WantedState, exported so cmd/mds can resolve it before
// calling Init without reaching into the unexported config accessors.
func ParseWantedState(s string) proto.DaemonState {
	switch s {
	case "standby":
		return proto.StateStandby
	case "standby-replay":
		return proto.StateStandbyReplay
	case "oneshot-replay":
		return proto.StateOneshotReplay
	case "boot":
		return proto.StateBoot
	default:
		return proto.StateStandby
	}
}
