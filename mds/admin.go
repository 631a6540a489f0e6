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
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	apierrors "github.com/cubefs/mds/errors"
	"github.com/cubefs/mds/proto"
)

// commandHook is one entry of the admin command table (spec.md §4.D). Args
// is the ordered argument-name schema used by get_command_descriptions.
type commandHook struct {
	help string
	args []string
	fn   func(ctx context.Context, args []string) (string, apierrors.Code)
}

// RegisterCommand installs hook under name, enforcing spec.md §3 invariant
// 6: exactly one hook per command string at any time.
func (d *Daemon) RegisterCommand(name, help string, args []string, fn func(ctx context.Context, args []string) (string, apierrors.Code)) error {
	d.commandsMu.Lock()
	defer d.commandsMu.Unlock()
	if _, exists := d.commands[name]; exists {
		return apierrors.ErrCommandRegistered
	}
	d.commands[name] = &commandHook{help: help, args: args, fn: fn}
	return nil
}

// UnregisterCommand removes a previously registered hook, used by tests
// and by a future admin-socket teardown.
func (d *Daemon) UnregisterCommand(name string) {
	d.commandsMu.Lock()
	delete(d.commands, name)
	d.commandsMu.Unlock()
}

func (d *Daemon) lookupCommand(name string) (*commandHook, bool) {
	d.commandsMu.Lock()
	defer d.commandsMu.Unlock()
	h, ok := d.commands[name]
	return h, ok
}

// registerAdminCommands installs the full command table of spec.md §4.D,
// called once from Init.
func (d *Daemon) registerAdminCommands() {
	reg := func(name, help string, args []string, fn func(context.Context, []string) (string, apierrors.Code)) {
		if err := d.RegisterCommand(name, help, args, fn); err != nil {
			log.Errorf("registering admin command %q: %s", name, err)
		}
	}

	reg("status", "dump rank, state, wanted state, map epochs, barrier, laggy flag and peer map epochs (no fsid)", nil, d.cmdStatus)
	reg("dump_ops_in_flight", "dump in-flight ops", nil, d.cmdDumpOpsInFlight)
	reg("ops", "dump in-flight ops", nil, d.cmdDumpOpsInFlight)
	reg("dump_historic_ops", "dump historic ops", nil, d.cmdDumpHistoricOps)
	reg("osdmap barrier", "set the OSD epoch barrier and block until installed", []string{"target_epoch"}, d.cmdOSDMapBarrier)
	reg("session ls", "list client sessions", nil, d.cmdSessionLs)
	reg("session evict", "evict a client session by client id", []string{"client_id"}, d.cmdSessionEvict)
	reg("session kill", "evict a client session by session id", []string{"session_id"}, d.cmdSessionEvict)
	reg("scrub_path", "scrub an inode", []string{"path"}, d.cmdScrubPath)
	reg("flush_path", "flush an inode and its dir fragments", []string{"path"}, d.cmdFlushPath)
	reg("flush journal", "seal, flush, and trim the journal", nil, d.cmdFlushJournal)
	reg("get subtrees", "dump the subtree map", nil, d.cmdGetSubtrees)
	reg("export dir", "migrate a subtree to another rank", []string{"path", "rank"}, d.cmdExportDir)
	reg("dump cache", "dump the metadata cache", []string{"path?"}, d.cmdDumpCache)
	reg("force_readonly", "flip the cache into read-only mode", nil, d.cmdForceReadonly)
	reg("dirfrag split", "split a directory fragment", []string{"path", "frag", "bits"}, d.cmdDirfragSplit)
	reg("dirfrag merge", "merge a directory fragment", []string{"path", "frag"}, d.cmdDirfragMerge)
	reg("dirfrag ls", "list leaf fragments under an inode", []string{"path"}, d.cmdDirfragLs)
	reg("injectargs", "inject live configuration", []string{"args..."}, d.cmdInjectArgs)
	reg("exit", "schedule suicide after a short grace delay", nil, d.cmdExit)
	reg("respawn", "schedule respawn after a short grace delay", nil, d.cmdRespawn)
	reg("heap", "heap profiler control", []string{"heapcmd"}, d.cmdHeap)
	reg("cpu_profiler", "cpu profiler control", []string{"arg"}, d.cmdCPUProfiler)
	reg("get_command_descriptions", "emit the command schema as JSON", nil, d.cmdGetCommandDescriptions)
}

// HandleCommand dispatches a CommandRequest arriving over the monitor
// command channel (spec.md §4.C, §6) and returns the tagged reply.
func (d *Daemon) HandleCommand(ctx context.Context, req *proto.CommandRequest) proto.CommandResponse {
	if req == nil {
		return proto.CommandResponse{Code: int(apierrors.CodeInvalid), Text: "nil command"}
	}
	if req.TxnID == "" {
		req.TxnID = uuid.NewString()
	}
	if err := d.adminLimiter.Acquire(); err != nil {
		return proto.CommandResponse{TxnID: req.TxnID, Code: int(apierrors.CodeInternal), Text: "admin surface overloaded"}
	}
	defer d.adminLimiter.Release()

	args := req.Args()
	if len(args) == 0 {
		return proto.CommandResponse{TxnID: req.TxnID, Code: int(apierrors.CodeInvalid), Text: "no command given"}
	}

	name, rest := matchCommandName(args, d.commandNames())
	hook, ok := d.lookupCommand(name)
	if !ok {
		return proto.CommandResponse{TxnID: req.TxnID, Code: int(apierrors.CodeInvalid), Text: "unknown command"}
	}

	text, code := hook.fn(ctx, rest)
	return proto.CommandResponse{TxnID: req.TxnID, Code: int(code), Text: text}
}

// HandleLocalCommand serves the synchronous, text-keyed local command
// socket (spec.md §6): line is the whole command line as typed.
func (d *Daemon) HandleLocalCommand(ctx context.Context, line string) (string, apierrors.Code) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "no command given", apierrors.CodeInvalid
	}
	name, rest := matchCommandName(fields, d.commandNames())
	hook, ok := d.lookupCommand(name)
	if !ok {
		return "unknown command", apierrors.CodeInvalid
	}
	return hook.fn(ctx, rest)
}

func (d *Daemon) commandNames() []string {
	d.commandsMu.Lock()
	defer d.commandsMu.Unlock()
	names := make([]string, 0, len(d.commands))
	for n := range d.commands {
		names = append(names, n)
	}
	return names
}

// matchCommandName greedily matches the longest registered command prefix
// (so "session evict" wins over "session"), returning the remaining
// tokens as the command's positional arguments.
func matchCommandName(tokens []string, names []string) (matched string, rest []string) {
	best := ""
	for _, n := range names {
		parts := strings.Fields(n)
		if len(parts) > len(tokens) {
			continue
		}
		ok := true
		for i, p := range parts {
			if tokens[i] != p {
				ok = false
				break
			}
		}
		if ok && len(n) > len(best) {
			best = n
		}
	}
	if best == "" {
		return tokens[0], tokens[1:]
	}
	return best, tokens[len(strings.Fields(best)):]
}

func argMap(args []string) map[string]string {
	m := make(map[string]string, len(args))
	for _, a := range args {
		if kv := strings.SplitN(a, "=", 2); len(kv) == 2 {
			m[kv[0]] = kv[1]
		}
	}
	return m
}

func (d *Daemon) cmdStatus(ctx context.Context, args []string) (string, apierrors.Code) {
	type status struct {
		Rank            proto.Rank        `json:"rank"`
		State           string            `json:"state"`
		Wanted          string            `json:"wanted"`
		MDSMapEpoch     uint64            `json:"mdsmap_epoch"`
		OSDMapEpoch     uint64            `json:"osdmap_epoch"`
		OSDEpochBarrier uint64            `json:"osdmap_epoch_barrier"`
		Laggy           bool              `json:"laggy"`
		PeerEpochs      map[uint64]uint64 `json:"peer_mdsmap_epoch"`
	}

	d.mu.Lock()
	s := status{
		Rank:            d.rank,
		State:           d.state.String(),
		Wanted:          d.wanted.String(),
		OSDEpochBarrier: d.osdBarrier,
		PeerEpochs:      make(map[uint64]uint64, len(d.peerEpochs)),
	}
	if d.installedMap != nil {
		s.MDSMapEpoch = d.installedMap.Epoch
	}
	for id, e := range d.peerEpochs {
		s.PeerEpochs[uint64(id)] = e
	}
	d.mu.Unlock()

	s.OSDMapEpoch = d.transport.ObjectStore.CurrentEpoch()
	s.Laggy = d.isLaggy()

	b, _ := json.Marshal(s)
	return string(b), apierrors.CodeOK
}

func (d *Daemon) cmdDumpOpsInFlight(ctx context.Context, args []string) (string, apierrors.Code) {
	if d.peers.OpTracker == nil {
		return "op tracker not available", apierrors.CodeInternal
	}
	return string(d.peers.OpTracker.DumpOpsInFlight()), apierrors.CodeOK
}

func (d *Daemon) cmdDumpHistoricOps(ctx context.Context, args []string) (string, apierrors.Code) {
	if d.peers.OpTracker == nil {
		return "op tracker not available", apierrors.CodeInternal
	}
	return string(d.peers.OpTracker.DumpHistoricOps()), apierrors.CodeOK
}

func (d *Daemon) cmdOSDMapBarrier(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	raw := m["target_epoch"]
	if raw == "" && len(args) > 0 {
		raw = args[0]
	}
	target, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "no target epoch given", apierrors.CodeInvalid
	}

	d.mu.Lock()
	if target > d.osdBarrier {
		d.osdBarrier = target
	}
	barrier := d.osdBarrier
	d.mu.Unlock()
	if d.metrics != nil {
		d.metrics.OSDEpochBarrier.Set(float64(barrier))
	}

	if err := d.transport.ObjectStore.WaitForEpoch(ctx, target); err != nil {
		return "error waiting for osd epoch: " + err.Error(), apierrors.CodeInternal
	}
	return "", apierrors.CodeOK
}

func (d *Daemon) cmdSessionLs(ctx context.Context, args []string) (string, apierrors.Code) {
	sessions := d.peers.Sessions.List()
	type dump struct {
		ID                string            `json:"id"`
		NumLeases         int               `json:"num_leases"`
		State             string            `json:"state"`
		ReplayRequests    uint64            `json:"replay_requests"`
		CompletedRequests uint64            `json:"completed_requests"`
		ClientMetadata    map[string]string `json:"client_metadata"`
	}
	inClientReplay := d.State() == proto.StateClientReplay
	out := make([]dump, 0, len(sessions))
	for _, s := range sessions {
		s.Lock()
		e := dump{
			ID:                s.ClientName,
			NumLeases:         len(s.Leases),
			CompletedRequests: s.CompletedCount,
			ClientMetadata:    s.ClientMeta,
		}
		if inClientReplay {
			e.ReplayRequests = s.RequestCount
		}
		switch s.State {
		case proto.SessionOpening:
			e.State = "opening"
		case proto.SessionOpen:
			e.State = "open"
		case proto.SessionClosing:
			e.State = "closing"
		case proto.SessionClosed:
			e.State = "closed"
		case proto.SessionStale:
			e.State = "stale"
		}
		s.Unlock()
		out = append(out, e)
	}
	b, _ := json.Marshal(out)
	return string(b), apierrors.CodeOK
}

// evictGroup coalesces concurrent "session evict"/"session kill" calls
// naming the same client id, so a flurry of duplicate admin requests
// (spec.md's DOMAIN STACK: golang.org/x/sync/singleflight) results in one
// underlying SessionTable.Evict.
var evictGroup singleflight.Group

// cmdSessionEvict implements "session evict"/"session kill" (spec.md §4.D,
// scenario S6): reject non-numeric client ids explicitly rather than
// silently evicting session 0 (spec.md §9 Open Question).
func (d *Daemon) cmdSessionEvict(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	raw := m["client_id"]
	if raw == "" {
		raw = m["session_id"]
	}
	if raw == "" && len(args) > 0 {
		raw = args[0]
	}
	if raw == "" {
		return "missing client id", apierrors.CodeInvalid
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
		code, msg := apierrors.ToCode(apierrors.ErrInvalidClientID)
		return msg, code
	}

	_, err, _ := evictGroup.Do(raw, func() (interface{}, error) {
		committed, err := d.peers.Sessions.Evict(ctx, raw)
		if err != nil {
			return nil, err
		}
		return nil, <-committed
	})
	if err != nil {
		code, msg := apierrors.ToCode(err)
		return msg, code
	}
	return "", apierrors.CodeOK
}

func (d *Daemon) cmdScrubPath(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	path := firstNonEmpty(m["path"], firstOf(args))
	if path == "" {
		return "missing path argument", apierrors.CodeInvalid
	}
	done, err := d.peers.Cache.Scrub(ctx, path)
	if err != nil {
		code, msg := apierrors.ToCode(err)
		return msg, code
	}
	if err := <-done; err != nil {
		return err.Error(), apierrors.CodeInternal
	}
	return "", apierrors.CodeOK
}

func (d *Daemon) cmdFlushPath(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	path := firstNonEmpty(m["path"], firstOf(args))
	if path == "" {
		return "missing path argument", apierrors.CodeInvalid
	}
	if err := d.peers.Cache.FlushPath(ctx, path); err != nil {
		code, msg := apierrors.ToCode(err)
		return msg, code
	}
	return "", apierrors.CodeOK
}

// cmdFlushJournal implements the journal flush protocol of spec.md §4.D.1.
func (d *Daemon) cmdFlushJournal(ctx context.Context, args []string) (string, apierrors.Code) {
	code, reason := d.FlushJournal(ctx)
	if code != 0 {
		return reason, apierrors.Code(code)
	}
	return "", apierrors.CodeOK
}

// FlushJournal runs the eight-step protocol of spec.md §4.D.1 under the
// controller lock, releasing it around each awaited step. It returns a
// (code, reason) pair mirroring _command_flush_journal's contract.
func (d *Daemon) FlushJournal(ctx context.Context) (int, string) {
	d.lock()
	if d.peers.Cache.IsReadOnly() {
		d.unlock()
		return int(apierrors.CodeReadOnly), "read-only filesystem"
	}
	if d.state != proto.StateActive {
		d.unlock()
		return 0, ""
	}

	// Step 2: seal the current log segment.
	if err := d.peers.Journal.SealCurrentSegment(ctx); err != nil {
		d.unlock()
		return int(apierrors.CodeInternal), "sealing current segment: " + err.Error()
	}

	// Step 3: flush the journal, release the lock, await safe-commit.
	waitSafe, err := d.peers.Journal.Flush(ctx)
	if err != nil {
		d.unlock()
		return int(apierrors.CodeInternal), "flushing journal: " + err.Error()
	}
	d.unlock()
	if r := waitSafe(ctx); r != 0 {
		return r, "error while flushing journal"
	}
	d.lock()

	// Step 4: re-flush and await once more, guarding against segments
	// dirtied by racing contexts between steps 2 and 3.
	waitSafe2, err := d.peers.Journal.Flush(ctx)
	if err != nil {
		d.unlock()
		return int(apierrors.CodeInternal), "flushing journal: " + err.Error()
	}
	d.unlock()
	if r := waitSafe2(ctx); r != 0 {
		return r, "error while flushing journal"
	}
	d.lock()

	// Step 5: trim_all.
	if err := d.peers.Journal.TrimAll(ctx); err != nil {
		d.unlock()
		return int(apierrors.CodeInternal), "trimming log: " + err.Error()
	}

	// Step 6: gather waiters on every currently-expiring segment, release
	// the lock, await expiry of all. Per the journal's design invariant
	// this must not fail, so we do not surface a per-segment error code.
	segments := d.peers.Journal.ExpiringSegments(ctx)
	d.unlock()
	if len(segments) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, seg := range segments {
			seg := seg
			g.Go(func() error { return seg.Wait(gctx) })
		}
		_ = g.Wait()
	}
	d.lock()

	// Step 7: trim the now-expired segments.
	if err := d.peers.Journal.TrimExpired(ctx); err != nil {
		d.unlock()
		return int(apierrors.CodeInternal), "trimming expired segments: " + err.Error()
	}

	// Step 8: write the journal header, release the lock, await.
	waitHeader, err := d.peers.Journal.WriteHeader(ctx)
	if err != nil {
		d.unlock()
		return int(apierrors.CodeInternal), "writing journal header: " + err.Error()
	}
	d.unlock()
	if r := waitHeader(ctx); r != 0 {
		return r, "error while writing header"
	}
	return 0, ""
}

func (d *Daemon) cmdGetSubtrees(ctx context.Context, args []string) (string, apierrors.Code) {
	subtrees := d.peers.Cache.GetSubtrees(ctx)
	b, _ := json.Marshal(subtrees)
	return string(b), apierrors.CodeOK
}

// cmdExportDir implements "export dir" (spec.md §4.D, scenario S5): the
// target rank must differ from this daemon, be up and in; the named path
// must resolve in cache; the root-fragment directory must be held (auth)
// by this rank.
func (d *Daemon) cmdExportDir(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	path := m["path"]
	rankStr := m["rank"]
	if len(args) >= 2 && (path == "" || rankStr == "") {
		path, rankStr = args[0], args[1]
	}
	if path == "" {
		return "malformed path", apierrors.CodeInvalid
	}
	rankN, err := strconv.ParseInt(rankStr, 10, 32)
	if err != nil {
		return "malformed rank", apierrors.CodeInvalid
	}
	target := proto.Rank(rankN)

	if err := d.validateExportTarget(target); err != nil {
		code, msg := apierrors.ToCode(err)
		return msg, code
	}
	if !d.peers.Cache.PathExists(ctx, path) {
		code, msg := apierrors.ToCode(apierrors.ErrPathNotFound)
		return msg, code
	}
	if !d.peers.Cache.RootFragAuth(ctx, path) {
		code, msg := apierrors.ToCode(apierrors.ErrFragNotAuth)
		return msg, code
	}

	if err := d.peers.Balancer.ExportDir(ctx, path, target); err != nil {
		return err.Error(), apierrors.CodeInternal
	}
	return "", apierrors.CodeOK
}

func (d *Daemon) validateExportTarget(target proto.Rank) error {
	d.mu.Lock()
	self := d.rank
	m := d.installedMap
	d.mu.Unlock()

	if target == self {
		return apierrors.ErrTargetRankIsSelf
	}
	if m == nil {
		return apierrors.ErrTargetRankNotUp
	}
	upAndIn := false
	for id, info := range m.Daemons {
		if info.Rank != target {
			continue
		}
		if m.Down[id] {
			continue
		}
		if info.State == proto.StateActive || info.State == proto.StateClientReplay || proto.IsRecovery(info.State) {
			upAndIn = true
		}
	}
	if !upAndIn {
		return apierrors.ErrTargetRankNotUp
	}
	return nil
}

func (d *Daemon) cmdDumpCache(ctx context.Context, args []string) (string, apierrors.Code) {
	path := firstOf(args)
	if err := d.peers.Cache.Dump(ctx, path); err != nil {
		code, msg := apierrors.ToCode(err)
		return msg, code
	}
	return "", apierrors.CodeOK
}

func (d *Daemon) cmdForceReadonly(ctx context.Context, args []string) (string, apierrors.Code) {
	d.peers.Cache.ForceReadOnly(ctx)
	return "", apierrors.CodeOK
}

func (d *Daemon) cmdDirfragSplit(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	path, frag, bitsStr := m["path"], m["frag"], m["bits"]
	if len(args) >= 3 && (path == "" || frag == "" || bitsStr == "") {
		path, frag, bitsStr = args[0], args[1], args[2]
	}
	if path == "" || frag == "" || bitsStr == "" {
		return "missing argument", apierrors.CodeInvalid
	}
	bits, err := strconv.Atoi(bitsStr)
	if err != nil || bits < 1 {
		code, msg := apierrors.ToCode(apierrors.ErrBitsInvalid)
		return msg, code
	}
	if !d.dirfragAuth(ctx, path, frag) {
		code, msg := apierrors.ToCode(apierrors.ErrFragNotAuth)
		return msg, code
	}
	if err := d.peers.Cache.DirfragSplit(ctx, path, frag, bits); err != nil {
		return err.Error(), apierrors.CodeInternal
	}
	return "", apierrors.CodeOK
}

func (d *Daemon) cmdDirfragMerge(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	path, frag := m["path"], m["frag"]
	if len(args) >= 2 && (path == "" || frag == "") {
		path, frag = args[0], args[1]
	}
	if path == "" || frag == "" {
		return "missing argument", apierrors.CodeInvalid
	}
	if !d.dirfragAuth(ctx, path, frag) {
		code, msg := apierrors.ToCode(apierrors.ErrFragNotAuth)
		return msg, code
	}
	if err := d.peers.Cache.DirfragMerge(ctx, path, frag); err != nil {
		return err.Error(), apierrors.CodeInternal
	}
	return "", apierrors.CodeOK
}

func (d *Daemon) dirfragAuth(ctx context.Context, path, frag string) bool {
	if !d.peers.Cache.PathExists(ctx, path) {
		return false
	}
	return d.peers.Cache.RootFragAuth(ctx, path)
}

func (d *Daemon) cmdDirfragLs(ctx context.Context, args []string) (string, apierrors.Code) {
	m := argMap(args)
	path := firstNonEmpty(m["path"], firstOf(args))
	if path == "" {
		return "missing path argument", apierrors.CodeInvalid
	}
	if !d.peers.Cache.PathExists(ctx, path) {
		code, msg := apierrors.ToCode(apierrors.ErrPathNotFound)
		return msg, code
	}
	frags, err := d.peers.Cache.DirfragLs(ctx, path)
	if err != nil {
		return err.Error(), apierrors.CodeInternal
	}
	b, _ := json.Marshal(frags)
	return string(b), apierrors.CodeOK
}

func (d *Daemon) cmdInjectArgs(ctx context.Context, args []string) (string, apierrors.Code) {
	if len(args) == 0 {
		return "ignoring empty injectargs", apierrors.CodeInvalid
	}
	d.notifyConfigChanged(args)
	return "", apierrors.CodeOK
}

// applyLiveConfig re-applies the tracked configuration keys of spec.md §6,
// matching MDS::handle_conf_change's selective re-application.
func (d *Daemon) applyLiveConfig(args []string) {
	m := argMap(args)
	if v, ok := m["mds_op_complaint_time"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			d.mu.Lock()
			d.cfg.OpComplaintTimeS = f
			d.mu.Unlock()
		}
	}
	if v, ok := m["mds_op_log_threshold"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			d.mu.Lock()
			d.cfg.OpLogThreshold = n
			d.mu.Unlock()
		}
	}
	if v, ok := m["clog_to_monitors"]; ok {
		d.clog.UpdateConfig(v == "true", d.cfg.ClogToSyslog)
	}
	if v, ok := m["clog_to_syslog"]; ok {
		d.clog.UpdateConfig(d.cfg.ClogToMonitors, v == "true")
	}
	if v, ok := m["beacon_rate_per_sec"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			d.beaconPacer.SetLimit(f)
		}
	}
}

// cmdExit and cmdRespawn schedule their continuations after
// adminGraceDelay so the admin reply is sent before teardown begins
// (spec.md §3 "Pending admin continuations").
func (d *Daemon) cmdExit(ctx context.Context, args []string) (string, apierrors.Code) {
	d.scheduleAfterGrace(func() {
		bctx := context.Background()
		_ = d.Suicide(bctx, false)
	})
	return "", apierrors.CodeOK
}

func (d *Daemon) cmdRespawn(ctx context.Context, args []string) (string, apierrors.Code) {
	d.scheduleAfterGrace(func() {
		bctx := context.Background()
		_ = d.Respawn(bctx)
	})
	return "", apierrors.CodeOK
}

func (d *Daemon) scheduleAfterGrace(fn func()) {
	delay := d.cfg.adminGraceDelay()
	time.AfterFunc(delay, fn)
}

// cmdHeap and cmdCPUProfiler are gated on the runtime configuration flag
// Config.ProfilerAvailable (spec.md §4.D, §9 supplemented feature #3):
// both return "unsupported" unless that flag is set.
func (d *Daemon) cmdHeap(ctx context.Context, args []string) (string, apierrors.Code) {
	if !d.cfg.ProfilerAvailable {
		code, msg := apierrors.ToCode(apierrors.ErrProfilerUnsupported)
		return msg, code
	}
	return "heap profiler: " + firstOf(args), apierrors.CodeOK
}

func (d *Daemon) cmdCPUProfiler(ctx context.Context, args []string) (string, apierrors.Code) {
	if !d.cfg.ProfilerAvailable {
		code, msg := apierrors.ToCode(apierrors.ErrProfilerUnsupported)
		return msg, code
	}
	return "cpu profiler: " + firstOf(args), apierrors.CodeOK
}

func (d *Daemon) cmdGetCommandDescriptions(ctx context.Context, args []string) (string, apierrors.Code) {
	d.commandsMu.Lock()
	type desc struct {
		Help string   `json:"help"`
		Args []string `json:"args"`
	}
	out := make(map[string]desc, len(d.commands))
	for name, h := range d.commands {
		out[name] = desc{Help: h.help, Args: h.args}
	}
	d.commandsMu.Unlock()

	b, err := json.Marshal(out)
	if err != nil {
		return errors.Info(err, "marshal command descriptions").Error(), apierrors.CodeInternal
	}
	return string(b), apierrors.CodeOK
}

func firstOf(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
