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
	"testing"

	"github.com/stretchr/testify/require"

	apierrors "github.com/cubefs/mds/errors"
	"github.com/cubefs/mds/proto"
)

func noopHook(ctx context.Context, args []string) (string, apierrors.Code) {
	return "", apierrors.CodeOK
}

func TestRegisterCommand_RejectsDuplicate(t *testing.T) {
	f := newTestFixture(t)

	require.NoError(t, f.d.RegisterCommand("status", "help", nil, noopHook))
	err := f.d.RegisterCommand("status", "help again", nil, noopHook)
	require.ErrorIs(t, err, apierrors.ErrCommandRegistered)

	f.d.UnregisterCommand("status")
	require.NoError(t, f.d.RegisterCommand("status", "help", nil, noopHook))
}

func TestMatchCommandName_PrefersLongestPrefix(t *testing.T) {
	names := []string{"session", "session evict", "session kill"}

	name, rest := matchCommandName([]string{"session", "evict", "42"}, names)
	require.Equal(t, "session evict", name)
	require.Equal(t, []string{"42"}, rest)

	name, rest = matchCommandName([]string{"session", "ls"}, names)
	require.Equal(t, "session", name)
	require.Equal(t, []string{"ls"}, rest)
}

func TestMatchCommandName_FallsBackToFirstToken(t *testing.T) {
	name, rest := matchCommandName([]string{"unknownthing", "x"}, []string{"status"})
	require.Equal(t, "unknownthing", name)
	require.Equal(t, []string{"x"}, rest)
}

func TestHandleLocalCommand_UnknownCommand(t *testing.T) {
	f := newTestFixture(t)
	f.d.registerAdminCommands()

	text, code := f.d.HandleLocalCommand(context.Background(), "no such command")
	require.Equal(t, apierrors.CodeInvalid, code)
	require.Equal(t, "unknown command", text)
}

func TestHandleLocalCommand_Status(t *testing.T) {
	f := newTestFixture(t)
	f.d.registerAdminCommands()

	text, code := f.d.HandleLocalCommand(context.Background(), "status")
	require.Equal(t, apierrors.CodeOK, code)
	require.Contains(t, text, "\"rank\"")
}

func TestCmdSessionEvict_RejectsNonNumericClientID(t *testing.T) {
	f := newTestFixture(t)

	text, code := f.d.cmdSessionEvict(context.Background(), []string{"not-a-number"})
	require.Equal(t, apierrors.CodeInvalid, code)
	require.Contains(t, text, "not numeric")
}

func TestCmdSessionEvict_MissingClientID(t *testing.T) {
	f := newTestFixture(t)

	text, code := f.d.cmdSessionEvict(context.Background(), nil)
	require.Equal(t, apierrors.CodeInvalid, code)
	require.Equal(t, "missing client id", text)
}

func TestCmdSessionEvict_NotFound(t *testing.T) {
	f := newTestFixture(t)

	text, code := f.d.cmdSessionEvict(context.Background(), []string{"42"})
	require.Equal(t, apierrors.CodeNotFound, code)
	require.Contains(t, text, "session not found")
}

func TestCmdSessionEvict_EvictsExistingSession(t *testing.T) {
	f := newTestFixture(t)
	f.sessions.Put(proto.NewSession("7", nil, proto.Capabilities{}))

	_, code := f.d.cmdSessionEvict(context.Background(), []string{"7"})
	require.Equal(t, apierrors.CodeOK, code)

	_, ok := f.sessions.Get("7")
	require.False(t, ok)
}

func TestFlushJournal_ReadOnlySkipsWithCode(t *testing.T) {
	f := newTestFixture(t)
	f.cache.ForceReadOnly(context.Background())

	code, reason := f.d.FlushJournal(context.Background())
	require.Equal(t, int(apierrors.CodeReadOnly), code)
	require.NotEmpty(t, reason)
	require.Zero(t, f.journal.Flushed)
}

func TestFlushJournal_SkipsWhenNotActive(t *testing.T) {
	f := newTestFixture(t)

	code, reason := f.d.FlushJournal(context.Background())
	require.Zero(t, code)
	require.Empty(t, reason)
	require.Zero(t, f.journal.Flushed)
}

func TestFlushJournal_RunsFullProtocolWhenActive(t *testing.T) {
	f := newTestFixture(t)
	m := mapWithSelf(1, f.d.globalID, proto.StateActive, proto.Rank(0))
	f.d.HandleClusterMap(context.Background(), 0, m)
	require.Equal(t, proto.StateActive, f.d.State())

	code, reason := f.d.FlushJournal(context.Background())
	require.Zero(t, code)
	require.Empty(t, reason)

	require.Equal(t, 1, f.journal.Sealed)
	require.Equal(t, 2, f.journal.Flushed, "flush journal must flush twice, per the eight-step protocol")
	require.Equal(t, 1, f.journal.Trimmed)
}

func TestCmdOSDMapBarrier_NeverDecreases(t *testing.T) {
	f := newTestFixture(t)
	f.osd.SetEpoch(20)

	f.d.mu.Lock()
	f.d.osdBarrier = 10
	f.d.mu.Unlock()

	_, code := f.d.cmdOSDMapBarrier(context.Background(), []string{"3"})
	require.Equal(t, apierrors.CodeOK, code)
	require.EqualValues(t, 10, f.d.OSDBarrier())

	_, code = f.d.cmdOSDMapBarrier(context.Background(), []string{"20"})
	require.Equal(t, apierrors.CodeOK, code)
	require.EqualValues(t, 20, f.d.OSDBarrier())
}

func TestCmdOSDMapBarrier_MissingArg(t *testing.T) {
	f := newTestFixture(t)

	_, code := f.d.cmdOSDMapBarrier(context.Background(), nil)
	require.Equal(t, apierrors.CodeInvalid, code)
}

func TestCmdExportDir_RejectsSelfTarget(t *testing.T) {
	f := newTestFixture(t)
	m := mapWithSelf(1, f.d.globalID, proto.StateActive, proto.Rank(0))
	f.d.HandleClusterMap(context.Background(), 0, m)

	_, code := f.d.cmdExportDir(context.Background(), []string{"/foo", "0"})
	require.Equal(t, apierrors.CodeNotFound, code)
}

func TestCmdExportDir_RejectsPathNotFound(t *testing.T) {
	f := newTestFixture(t)
	m := &proto.ClusterMap{
		Epoch: 1,
		Daemons: map[proto.GlobalID]proto.DaemonInfo{
			f.d.globalID: {GlobalID: f.d.globalID, Rank: 0, State: proto.StateActive},
			2:            {GlobalID: 2, Rank: 1, State: proto.StateActive},
		},
	}
	f.d.HandleClusterMap(context.Background(), 0, m)

	_, code := f.d.cmdExportDir(context.Background(), []string{"/nowhere", "1"})
	require.Equal(t, apierrors.CodeNotFound, code)
}

func TestCmdHeap_UnsupportedByDefault(t *testing.T) {
	f := newTestFixture(t)

	text, code := f.d.cmdHeap(context.Background(), []string{"start"})
	require.Equal(t, apierrors.CodeNotSupported, code)
	require.NotEmpty(t, text)
}

func TestCmdHeap_AllowedWhenProfilerAvailable(t *testing.T) {
	f := newTestFixture(t)
	f.d.cfg.ProfilerAvailable = true

	text, code := f.d.cmdHeap(context.Background(), []string{"start"})
	require.Equal(t, apierrors.CodeOK, code)
	require.Contains(t, text, "start")
}

func TestHandleCommand_UnknownCommandOverWire(t *testing.T) {
	f := newTestFixture(t)
	f.d.registerAdminCommands()

	resp := f.d.HandleCommand(context.Background(), &proto.CommandRequest{TxnID: "t1", Argv: []string{"bogus"}})
	require.Equal(t, "t1", resp.TxnID)
	require.Equal(t, int(apierrors.CodeInvalid), resp.Code)
}

func TestHandleCommand_MintsTxnIDWhenMissing(t *testing.T) {
	f := newTestFixture(t)
	f.d.registerAdminCommands()

	resp := f.d.HandleCommand(context.Background(), &proto.CommandRequest{Argv: []string{"status"}})
	require.NotEmpty(t, resp.TxnID)
}

func TestHandleCommand_NilRequest(t *testing.T) {
	f := newTestFixture(t)

	resp := f.d.HandleCommand(context.Background(), nil)
	require.Equal(t, int(apierrors.CodeInvalid), resp.Code)
}
