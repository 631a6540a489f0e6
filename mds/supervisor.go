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
	"os"
	"syscall"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/cubefs/cubefs/blobstore/util/taskpool"
	"golang.org/x/sync/errgroup"

	apierrors "github.com/cubefs/mds/errors"
	"github.com/cubefs/mds/metrics"
	"github.com/cubefs/mds/proto"
)

func syscallExec(argv0 string, argv, envv []string) error {
	return syscall.Exec(argv0, argv, envv)
}

// Init performs the sequence spec.md §4.A describes: authenticate, wait for
// rotating keys, start the object store client, subscribe to the cluster
// map, wait for backend quorum, start the tick and progress worker, create
// performance counters, register the admin hook, subscribe to
// configuration change notifications, and publish the initial beacon.
func (d *Daemon) Init(ctx context.Context, wantedState proto.WantedState) error {
	span := trace.SpanFromContextSafe(ctx)

	if err := d.transport.Monitor.Authenticate(ctx); err != nil {
		span.Errorf("authenticate failed: %s", err)
		d.lock()
		d.wanted = proto.StateDNE
		d.unlock()
		d.Suicide(ctx, false)
		return errors.Info(apierrors.ErrAuthFailed, err.Error())
	}

	if err := d.waitForAuthKeys(ctx); err != nil {
		return err
	}

	if err := d.transport.ObjectStore.Start(ctx); err != nil {
		return errors.Info(err, "start object store client")
	}

	mapCh, err := d.transport.Monitor.SubscribeClusterMap(ctx)
	if err != nil {
		return errors.Info(err, "subscribe cluster map")
	}
	go d.consumeClusterMaps(ctx, mapCh)

	d.waitForBackendReady(ctx)

	d.lock()
	d.standbyType, d.wanted = standbyTypeFor(wantedState)
	d.unlock()

	d.pool = taskpool.New(d.cfg.TaskPoolSize, d.cfg.TaskPoolSize)
	d.scheduleTick()

	d.metrics = metrics.NewDaemonMetrics(d.name)
	d.registerAdminCommands()
	d.subscribeConfigChanges(d.applyLiveConfig)

	d.sendBeacon(ctx)

	span.Infof("mds %s initialized, wanted=%s", d.name, d.Wanted())
	return nil
}

// standbyTypeFor translates a standby-replay/oneshot-replay wanted state
// into a boot wanted state plus standby type, per spec.md §4.A.
func standbyTypeFor(wanted proto.WantedState) (proto.StandbyType, proto.WantedState) {
	switch wanted {
	case proto.StateStandbyReplay:
		return proto.StandbyReplay, proto.StateBoot
	case proto.StateOneshotReplay:
		return proto.StandbyOneshot, proto.StateBoot
	default:
		return proto.StandbyNone, wanted
	}
}

func (d *Daemon) waitForAuthKeys(ctx context.Context) error {
	timeout := d.cfg.authKeyWaitTimeout()
	for {
		err := d.transport.Monitor.WaitForKeyRotation(ctx, timeout)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			log.Warnf("waiting for auth key rotation: %s", err)
		}
	}
}

// waitForBackendReady blocks until at least one object-store replica is up
// and advertises the required feature bit, polling every
// backendPollInterval otherwise (spec.md §4.A).
func (d *Daemon) waitForBackendReady(ctx context.Context) {
	for {
		up, features := d.transport.ObjectStore.ReplicaUp()
		if up && features.Has(proto.FeatureTmap2Omap) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.backendPollInterval()):
		}
	}
}

func (d *Daemon) consumeClusterMaps(ctx context.Context, ch <-chan *proto.ClusterMap) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			// The subscription channel carries no per-delivery sender
			// identity; zero means "not a peer" and leaves peerEpochs
			// untouched for this path.
			d.HandleClusterMap(ctx, 0, m)
		}
	}
}

// Suicide is the idempotent, one-shot terminal shutdown path (spec.md
// §4.A, invariant 7). fast skips the final beacon send.
func (d *Daemon) Suicide(ctx context.Context, fast bool) error {
	d.lock()
	if d.stopping {
		d.unlock()
		return apierrors.ErrAlreadyStopping
	}
	d.stopping = true
	d.wanted = proto.StateDNE
	skipBeacon := fast || d.selfIsGone()
	d.unlock()

	span := trace.SpanFromContextSafe(ctx)
	span.Infof("mds %s suiciding, fast=%v", d.name, fast)

	if !skipBeacon {
		sctx, cancel := context.WithTimeout(ctx, d.cfg.monShutdownTimeout())
		_ = d.transport.Monitor.SendBeaconAndWait(sctx, d.buildBeacon(), d.cfg.monShutdownTimeout())
		cancel()
	}

	// Shutdown order: journal first (must finish before anything else may
	// touch storage), then tick, then the object-store and messenger
	// clients fanned out concurrently since neither depends on the other
	// (Design Notes §9).
	_ = d.peers.Journal.Shutdown(ctx)
	close(d.done)
	if d.tickTimer != nil {
		d.tickTimer.Stop()
	}

	var eg errgroup.Group
	eg.Go(func() error { return d.transport.ObjectStore.Close() })
	eg.Go(func() error { return d.transport.Messenger.Close() })
	_ = eg.Wait()

	if d.metrics != nil {
		d.metrics.Suicides.Inc()
		d.metrics.Unregister()
	}
	return nil
}

// selfIsGone reports whether the installed map already lists this daemon
// as gone, in which case the final beacon would reach nobody.
func (d *Daemon) selfIsGone() bool {
	if d.installedMap == nil {
		return false
	}
	_, ok := d.installedMap.Daemons[d.globalID]
	return !ok
}

// Respawn re-executes the current binary in place with the original
// argument vector (spec.md §4.A). It never returns on success; callers
// must treat a returned error as fatal.
func (d *Daemon) Respawn(ctx context.Context) error {
	if d.metrics != nil {
		d.metrics.Respawns.Inc()
	}

	argv0, err := os.Executable()
	if err != nil {
		argv0 = os.Args[0]
	}

	if err := d.execFunc(argv0, os.Args, os.Environ()); err != nil {
		return errors.Info(err, "respawn exec failed")
	}
	// unreachable on success
	return nil
}

// Damaged is the escalation path used when the data plane detects
// unrepairable corruption (spec.md §4.A).
func (d *Daemon) Damaged(ctx context.Context) error {
	d.lock()
	d.wanted = proto.StateDamaged
	d.unlock()

	d.clog.Error(ctx, "data plane signaled unrepairable corruption, respawning into standby")

	sctx, cancel := context.WithTimeout(ctx, d.cfg.monShutdownTimeout())
	_ = d.transport.Monitor.SendBeaconAndWait(sctx, d.buildBeacon(), d.cfg.monShutdownTimeout())
	cancel()

	return d.Respawn(ctx)
}

// HandleSignal implements the SIGINT/SIGTERM path: if not already
// stopping, suicide gracefully.
func (d *Daemon) HandleSignal(ctx context.Context, sig os.Signal) {
	if d.IsStopping() {
		return
	}
	log.Infof("mds %s received signal %v, shutting down", d.name, sig)
	_ = d.Suicide(ctx, false)
}
