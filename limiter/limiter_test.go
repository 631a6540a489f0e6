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

package limiter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountLimit_AcquireRespectsLimit(t *testing.T) {
	l := NewCountLimit(2)

	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
	require.Error(t, l.Acquire())
	require.Equal(t, 2, l.Running())

	l.Release()
	require.Equal(t, 1, l.Running())
	require.NoError(t, l.Acquire())
}

func TestCountLimit_SetLimitTakesEffectImmediately(t *testing.T) {
	l := NewCountLimit(1)
	require.NoError(t, l.Acquire())
	require.Error(t, l.Acquire())

	l.SetLimit(3)
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Acquire())
}

func TestPacer_AllowRespectsBurst(t *testing.T) {
	p := NewPacer(1, 1)
	require.True(t, p.Allow())
	require.False(t, p.Allow())
}

func TestPacer_WaitReturnsWhenContextCancelled(t *testing.T) {
	p := NewPacer(0.001, 1)
	require.True(t, p.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, p.Wait(ctx))
}
