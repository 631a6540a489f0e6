/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# mds: the lifecycle and membership controller of a single metadata rank

mds owns the parts of a metadata-server daemon that decide what the daemon
is doing, not how it stores or serves filesystem metadata: booting,
authenticating with the monitor, tracking cluster-map membership, running
the admin command surface, driving the periodic tick, and gluing incoming
connections to client sessions.

## Components

* Supervisor (mds.Daemon.Init/Suicide/Respawn/Damaged) - the boot and
  shutdown sequence, and the escalation paths (respawn on rank change,
  suicide on incompatible map, damaged on unrepairable corruption).

* Membership state machine (mds.Daemon.HandleClusterMap) - consumes
  monotonically increasing cluster-map epochs, validates rank and state
  transitions, and fans state changes and peer events out to the data
  plane.

* Message dispatcher (mds.Daemon.Dispatch) - the single entry point for
  everything arriving over the wire, gated by sender-type allow-sets and
  the stopping/wanted-state latch.

* Admin command surface (mds.Daemon.HandleCommand/HandleLocalCommand) -
  the local command socket and the monitor command channel, including the
  eight-step journal flush protocol.

* Periodic tick (mds.Daemon.tick) - heartbeat reset, journal flush, and
  state-gated maintenance of the cache, sessions, locker, and balancer.

* Connection and session glue (mds.Daemon.VerifyAuthorizer/HandleAccept/
  HandleReset) - authorizer verification, session find-or-create, and
  accept-race resolution.

## Out of scope

The metadata cache, journal, balancer, migrator, locker, session table,
snapshot server/client, inode allocator, wire messenger, monitor client,
and object store client are modeled as Go interfaces in the dataplane and
transport packages, with in-memory fakes for wiring and tests. A
production deployment supplies its own implementations; cmd/mds runs the
controller against the fakes so the full lifecycle exercises real code.

*/

package mds
