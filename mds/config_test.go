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
)

func TestNotifyConfigChanged_InvokesEverySubscriber(t *testing.T) {
	f := newTestFixture(t)

	var got1, got2 []string
	f.d.subscribeConfigChanges(func(args []string) { got1 = args })
	f.d.subscribeConfigChanges(func(args []string) { got2 = args })

	f.d.notifyConfigChanged([]string{"mds_op_complaint_time=45"})

	require.Equal(t, []string{"mds_op_complaint_time=45"}, got1)
	require.Equal(t, []string{"mds_op_complaint_time=45"}, got2)
}

func TestNotifyConfigChanged_NoSubscribersIsNoop(t *testing.T) {
	f := newTestFixture(t)
	require.NotPanics(t, func() {
		f.d.notifyConfigChanged([]string{"mds_op_complaint_time=45"})
	})
}

func TestCmdInjectArgs_OnlyAppliesThroughSubscription(t *testing.T) {
	f := newTestFixture(t)
	f.d.registerAdminCommands()

	// Before Init's subscription is wired, injectargs still succeeds but
	// applyLiveConfig never runs since nobody is listening.
	_, code := f.d.cmdInjectArgs(context.Background(), []string{"mds_op_complaint_time=45"})
	require.Equal(t, apierrors.CodeOK, code)
	require.NotEqual(t, float64(45), f.d.cfg.OpComplaintTimeS)

	f.d.subscribeConfigChanges(f.d.applyLiveConfig)

	_, code = f.d.cmdInjectArgs(context.Background(), []string{"mds_op_complaint_time=45"})
	require.Equal(t, apierrors.CodeOK, code)
	require.Equal(t, float64(45), f.d.cfg.OpComplaintTimeS)
}

func TestCmdInjectArgs_RejectsEmptyArgs(t *testing.T) {
	f := newTestFixture(t)

	_, code := f.d.cmdInjectArgs(context.Background(), nil)
	require.Equal(t, apierrors.CodeInvalid, code)
}
